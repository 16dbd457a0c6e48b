package handlers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"agora/database"
	"agora/models"
	"agora/utils"

	"github.com/go-chi/chi/v5/middleware"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const SessionKey ContextKey = "session"

// sessionFrom returns the request's session. Outside SessionMiddleware it is nil, which
// reads as the absent state.
func sessionFrom(r *http.Request) *models.Session {
	sess, _ := r.Context().Value(SessionKey).(*models.Session)
	return sess
}

// requireUser returns the logged-in account or models.ErrUnauthorized.
func requireUser(r *http.Request) (int64, error) {
	uid, ok := sessionFrom(r).UserID()
	if !ok {
		return 0, models.ErrUnauthorized
	}
	return uid, nil
}

// bufferedWriter holds the response so the session can be committed, and its cookie set,
// after the handler has run but before anything reaches the client.
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) flush() {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.ResponseWriter.WriteHeader(b.status)
	if b.body.Len() > 0 {
		b.ResponseWriter.Write(b.body.Bytes())
	}
}

// SessionMiddleware loads the session named by the cookie, hands it to the handler and
// commits it afterwards. Sessions are only written when something changed.
func SessionMiddleware(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg := app.Config().Session
			var sess *models.Session
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				sess = app.Sessions().Load(r.Context(), c.Value)
			}
			if sess == nil {
				sess = models.NewSession()
			}

			bw := &bufferedWriter{ResponseWriter: w}
			next.ServeHTTP(bw, r.WithContext(context.WithValue(r.Context(), SessionKey, sess)))

			if err := commitSession(w, r, app, sess); err != nil {
				app.Logger().Error("Failed to commit session", "error", err)
				bw.status = http.StatusInternalServerError
				bw.body.Reset()
				bw.Header().Set("Content-Type", "application/json")
				bw.body.WriteString(`{"error":"Internal Server Error"}`)
			}
			bw.flush()
		})
	}
}

func commitSession(w http.ResponseWriter, r *http.Request, app App, sess *models.Session) error {
	cfg := app.Config().Session
	cookie := &http.Cookie{
		Name:     cfg.CookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}

	if sess.Destroyed() {
		if err := app.Sessions().Destroy(r.Context(), sess); err != nil {
			return err
		}
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
		return nil
	}
	if !sess.Changed() && !sess.PendingRegeneration() {
		return nil
	}

	rotating := sess.PendingRegeneration() && sess.ID != ""
	id, err := app.Sessions().Store(r.Context(), sess)
	if errors.Is(err, database.ErrSessionRetired) {
		// Another request rotated or ended this session. Leave the client's cookie alone.
		app.Logger().Debug("Skipping write to retired session")
		return nil
	}
	if err != nil {
		return err
	}
	if rotating {
		app.Metrics().SessionRotations.Inc()
	}
	cookie.Value = id
	cookie.Expires = sess.Expiry
	http.SetCookie(w, cookie)
	return nil
}

// RateLimit throttles write endpoints per account, or per address for anonymous callers.
func RateLimit(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := sessionFrom(r).UserID()
			key := utils.RateLimitKey(utils.GetIPAddress(r, app.Config().ProxyNets), uid, ok)
			if !app.RateLimiter().Allow(key) {
				app.Logger().Warn("Rate limit exceeded", "key", key)
				respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded. Please wait a moment."}, app)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLocal restricts a handler to private or loopback clients. Forwarding headers only
// count when they come from a configured trusted proxy.
func RequireLocal(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !utils.IsLocalRequest(r, app.Config().ProxyNets) {
				app.Logger().Warn("Rejected non-local request", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewStructuredLogger writes one access-log line per request.
func NewStructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("Request handled",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
