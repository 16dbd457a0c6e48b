package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agora/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthFlow(t *testing.T) {
	app := setupTestApp(t, 1000)
	ts := startServer(t, app)
	creds := map[string]string{"username": "alice", "password": "alice-password"}

	t.Run("Register without pre auth", func(t *testing.T) {
		c := newClient(t, ts)
		status, body := c.do(http.MethodPost, "/api/auth/register", creds)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Contains(t, string(body), "pre auth required")
	})

	t.Run("Register rotates the session", func(t *testing.T) {
		c := newClient(t, ts)
		status, _ := c.do(http.MethodPost, "/api/auth/pre_auth", nil)
		require.Equal(t, http.StatusOK, status)
		preAuthID := c.sessionID()
		require.NotEmpty(t, preAuthID, "pre_auth should set a session cookie")

		status, body := c.do(http.MethodPost, "/api/auth/register", creds)
		require.Equal(t, http.StatusCreated, status, "body: %s", body)
		loggedIn := c.sessionID()
		assert.NotEqual(t, preAuthID, loggedIn)
		assert.Nil(t, app.sessions.Load(context.Background(), preAuthID), "old session id must not load after rotation")

		sess := app.sessions.Load(context.Background(), loggedIn)
		require.NotNil(t, sess)
		_, ok := sess.UserID()
		assert.True(t, ok)
		assert.False(t, sess.Has("pre_auth"))
	})

	t.Run("Duplicate username", func(t *testing.T) {
		c := newClient(t, ts)
		c.do(http.MethodPost, "/api/auth/pre_auth", nil)
		status, _ := c.do(http.MethodPost, "/api/auth/register", creds)
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("Short password", func(t *testing.T) {
		c := newClient(t, ts)
		c.do(http.MethodPost, "/api/auth/pre_auth", nil)
		status, body := c.do(http.MethodPost, "/api/auth/register", map[string]string{"username": "carol", "password": "short"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), "password")
	})

	t.Run("Login", func(t *testing.T) {
		c := newClient(t, ts)
		status, _ := c.do(http.MethodPost, "/api/auth/login", creds)
		assert.Equal(t, http.StatusUnauthorized, status, "login needs pre auth too")

		c.do(http.MethodPost, "/api/auth/pre_auth", nil)
		status, _ = c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "wrong-password"})
		assert.Equal(t, http.StatusForbidden, status)
		status, _ = c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "nobody", "password": "wrong-password"})
		assert.Equal(t, http.StatusForbidden, status)

		status, body := c.do(http.MethodPost, "/api/auth/login", creds)
		require.Equal(t, http.StatusOK, status, "body: %s", body)
		assert.Contains(t, string(body), `"userId"`)
	})

	t.Run("Logout destroys the session", func(t *testing.T) {
		c := newClient(t, ts)
		c.register("dave", "dave-password")
		id := c.sessionID()
		require.NotNil(t, app.sessions.Load(context.Background(), id))

		status, _ := c.do(http.MethodPost, "/api/auth/logout", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Empty(t, c.sessionID(), "cookie should be cleared")
		assert.Nil(t, app.sessions.Load(context.Background(), id))

		status, _ = c.do(http.MethodPost, "/api/threads", map[string]any{"topicId": 1, "title": "t", "content": "c"})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("Forged cookie is ignored", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/threads", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "10_c", Value: "not-a-uuid"})
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestUserEndpoints(t *testing.T) {
	w := newWorld(t)

	var user struct {
		Username string `json:"username"`
		IsAdmin  bool   `json:"isAdmin"`
	}
	require.Equal(t, http.StatusOK, w.bob.getJSON("/api/users/"+itoa(w.aliceID), &user))
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsAdmin)
	status, _ := w.bob.do(http.MethodGet, "/api/users/9999", nil)
	assert.Equal(t, http.StatusNotFound, status)

	var available struct {
		Available bool `json:"available"`
	}
	status, body := w.bob.do(http.MethodPost, "/api/users/available", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &available))
	assert.False(t, available.Available)
	_, body = w.bob.do(http.MethodPost, "/api/users/available", map[string]string{"username": "zed"})
	require.NoError(t, json.Unmarshal(body, &available))
	assert.True(t, available.Available)

	t.Run("Logs are private", func(t *testing.T) {
		var entries []map[string]any
		assert.Equal(t, http.StatusOK, w.alice.getJSON("/api/users/"+itoa(w.aliceID)+"/logs", &entries))
		status, _ := w.bob.do(http.MethodGet, "/api/users/"+itoa(w.aliceID)+"/logs", nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, http.StatusOK, w.admin.getJSON("/api/users/"+itoa(w.aliceID)+"/logs?page=1", &entries))
		status, _ = w.alice.do(http.MethodGet, "/api/users/"+itoa(w.aliceID)+"/logs?page=0", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestSearch(t *testing.T) {
	w := newWorld(t)

	var containers []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	require.Equal(t, http.StatusOK, w.bob.getJSON("/api/search/topics?q=intro", &containers))
	require.Len(t, containers, 1)
	assert.Equal(t, w.topicID, containers[0].ID)

	require.Equal(t, http.StatusOK, w.bob.getJSON("/api/search/forums?q=nothing", &containers))
	assert.Empty(t, containers)

	var users []struct {
		Username string `json:"username"`
	}
	require.Equal(t, http.StatusOK, w.bob.getJSON("/api/search/users?q=ali", &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	status, _ := w.bob.do(http.MethodGet, "/api/search/posts?q=x", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLateWriteKeepsRotatedCookie(t *testing.T) {
	app := setupTestApp(t, 1000)
	ctx := context.Background()

	seed := models.NewSession()
	require.NoError(t, seed.Set(models.SessionPreAuthKey, true))
	oldID, err := app.sessions.Store(ctx, seed)
	require.NoError(t, err)

	// Two requests load the same session; the first logs in, the second finishes later.
	early := app.sessions.Load(ctx, oldID)
	late := app.sessions.Load(ctx, oldID)
	require.NotNil(t, early)
	require.NotNil(t, late)

	req := httptest.NewRequest(http.MethodGet, "/api/home", nil)
	require.NoError(t, early.Set(models.SessionUserIDKey, int64(1)))
	early.MarkPendingRegeneration()
	rec := httptest.NewRecorder()
	require.NoError(t, commitSession(rec, req, app, early))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	newID := cookies[0].Value
	assert.NotEqual(t, oldID, newID)

	require.NoError(t, late.Set("theme", "light"))
	rec = httptest.NewRecorder()
	require.NoError(t, commitSession(rec, req, app, late))
	assert.Empty(t, rec.Result().Cookies(), "the retired identifier is not sent back")
	assert.NotNil(t, app.sessions.Load(ctx, newID))
	assert.Nil(t, app.sessions.Load(ctx, oldID))
}
