package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"agora/cache"
	"agora/config"
	"agora/database"
	"agora/metrics"
	"agora/models"
	"agora/utils"

	"github.com/stretchr/testify/require"
)

// MockApplication holds dependencies for handler tests.
type MockApplication struct {
	db          *database.DatabaseService
	sessions    *database.SessionStore
	cache       *cache.MemoryCache
	metrics     *metrics.Metrics
	rateLimiter *models.RateLimiter
	hasher      *utils.PasswordHasher
	logger      *slog.Logger
	config      *config.Config
}

func (a *MockApplication) DB() *database.DatabaseService    { return a.db }
func (a *MockApplication) Sessions() *database.SessionStore { return a.sessions }
func (a *MockApplication) Cache() cache.Cache               { return a.cache }
func (a *MockApplication) Metrics() *metrics.Metrics        { return a.metrics }
func (a *MockApplication) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *MockApplication) Hasher() *utils.PasswordHasher    { return a.hasher }
func (a *MockApplication) Logger() *slog.Logger             { return a.logger }
func (a *MockApplication) Config() *config.Config           { return a.config }

// setupTestApp creates a full application stack on a temporary database. burst sizes the
// write rate limiter.
func setupTestApp(t *testing.T, burst int) *MockApplication {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dir := t.TempDir()

	ds, err := database.InitDB(filepath.Join(dir, "test.db")+"?_journal_mode=WAL", logger)
	require.NoError(t, err, "Failed to initialize test database")
	t.Cleanup(func() { ds.Close() })

	cfg := &config.Config{
		BackupDir:  filepath.Join(dir, "backups"),
		BannerFile: filepath.Join(dir, "banner.txt"),
		Session:    config.SessionConfig{CookieName: "10_c", TTL: time.Hour},
		Password:   config.PasswordConfig{Time: 1, MemoryKiB: 64, Threads: 1, KeyLen: 32, SaltLen: 16},
		RateLimit:  config.RateLimitConfig{Every: time.Minute, Burst: burst, Expire: time.Hour},
	}

	return &MockApplication{
		db:          ds,
		sessions:    database.NewSessionStore(ds, cfg.Session.TTL),
		cache:       cache.NewMemoryCache(),
		metrics:     metrics.New(),
		rateLimiter: models.NewRateLimiter(cfg.RateLimit.Every, cfg.RateLimit.Burst, cfg.RateLimit.Expire),
		hasher:      utils.NewPasswordHasher(cfg.Password),
		logger:      logger,
		config:      cfg,
	}
}

func startServer(t *testing.T, app *MockApplication) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(SetupRouter(app))
	t.Cleanup(ts.Close)
	return ts
}

// client is one browser: a cookie jar against a test server.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

// do sends body as JSON when non-nil and returns the status and response body.
func (c *client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, c.base+path, rd)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, out
}

func (c *client) getJSON(path string, dst any) int {
	c.t.Helper()
	status, body := c.do(http.MethodGet, path, nil)
	if status == http.StatusOK {
		require.NoError(c.t, json.Unmarshal(body, dst), "body: %s", body)
	}
	return status
}

// sessionID returns the session cookie currently held by the jar.
func (c *client) sessionID() string {
	u, _ := url.Parse(c.base)
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == "10_c" {
			return ck.Value
		}
	}
	return ""
}

// register signs up a new account through the API and returns its id.
func (c *client) register(username, password string) int64 {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/auth/pre_auth", nil)
	require.Equal(c.t, http.StatusOK, status, "pre_auth: %s", body)
	status, body = c.do(http.MethodPost, "/api/auth/register", map[string]string{"username": username, "password": password})
	require.Equal(c.t, http.StatusCreated, status, "register: %s", body)

	var resp struct {
		UserID int64 `json:"userId"`
	}
	require.NoError(c.t, json.Unmarshal(body, &resp))
	return resp.UserID
}

// world is a running server with an admin, two members and a category > forum > topic chain.
type world struct {
	app     *MockApplication
	ts      *httptest.Server
	admin   *client
	alice   *client
	bob     *client
	adminID int64
	aliceID int64
	bobID   int64
	forumID int64
	topicID int64
}

func newWorld(t *testing.T) *world {
	t.Helper()
	app := setupTestApp(t, 1000)
	ts := startServer(t, app)
	w := &world{app: app, ts: ts, admin: newClient(t, ts), alice: newClient(t, ts), bob: newClient(t, ts)}

	w.adminID = w.admin.register("root", "correct horse")
	require.NoError(t, app.db.SetAdmin(context.Background(), w.adminID, true))
	w.aliceID = w.alice.register("alice", "alice-password")
	w.bobID = w.bob.register("bob", "bob-password")

	catID := w.createContainer("categories", 0, "General")
	w.forumID = w.createContainer("forums", catID, "Chat")
	w.topicID = w.createContainer("topics", w.forumID, "Introductions")
	return w
}

func (w *world) createContainer(kind string, parentID int64, name string) int64 {
	w.admin.t.Helper()
	status, body := w.admin.do(http.MethodPost, "/api/"+kind, map[string]any{"parentId": parentID, "name": name})
	require.Equal(w.admin.t, http.StatusCreated, status, "create %s: %s", kind, body)
	var resp struct {
		ID int64 `json:"id"`
	}
	require.NoError(w.admin.t, json.Unmarshal(body, &resp))
	return resp.ID
}

// createThread opens a thread as c and returns its id and the opening post id.
func (w *world) createThread(c *client, title string) (int64, int64) {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/threads", map[string]any{"topicId": w.topicID, "title": title, "content": "opening post"})
	require.Equal(c.t, http.StatusCreated, status, "create thread: %s", body)
	var resp struct {
		ThreadID int64 `json:"threadId"`
		PostID   int64 `json:"postId"`
	}
	require.NoError(c.t, json.Unmarshal(body, &resp))
	return resp.ThreadID, resp.PostID
}

func (w *world) reply(c *client, threadID int64, content string) models.AppendResult {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/posts", map[string]any{"threadId": threadID, "content": content})
	require.Equal(c.t, http.StatusCreated, status, "reply: %s", body)
	var res models.AppendResult
	require.NoError(c.t, json.Unmarshal(body, &res))
	return res
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
