// agora/handlers/handlers.go

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"agora/aggregate"
	"agora/cache"
	"agora/config"
	"agora/database"
	"agora/metrics"
	"agora/models"
	"agora/utils"

	"github.com/go-chi/chi/v5"
)

// App is an interface that defines the dependencies our handlers need.
type App interface {
	DB() *database.DatabaseService
	Sessions() *database.SessionStore
	Cache() cache.Cache
	Metrics() *metrics.Metrics
	RateLimiter() *models.RateLimiter
	Hasher() *utils.PasswordHasher
	Logger() *slog.Logger
	Config() *config.Config
}

const latestLimit = 20

// respondJSON sends a JSON response with a given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}, app App) {
	response, err := json.Marshal(payload)
	if err != nil {
		app.Logger().Error("Failed to marshal JSON payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte(`{"error":"Failed to marshal JSON response"}`)); werr != nil {
			app.Logger().Error("Failed to write internal server error response", "error", werr)
		}
		return
	}
	respondRawJSON(w, status, response, app)
}

func respondRawJSON(w http.ResponseWriter, status int, body []byte, app App) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		app.Logger().Error("Failed to write JSON response", "error", err)
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrGuarded):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Server-side failures are logged and their
// details withheld from the client.
func respondError(w http.ResponseWriter, r *http.Request, app App, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		msg = ve.Error()
	case status == http.StatusInternalServerError:
		app.Logger().Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	case errors.Is(err, models.ErrGuarded):
		msg = "admin privileges required"
	}
	respondJSON(w, status, map[string]string{"error": msg}, app)
}

// MakeHandler adapts a handler that needs the App into a plain http.HandlerFunc.
func MakeHandler(app App, fn func(http.ResponseWriter, *http.Request, App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, app)
	}
}

// parseID reads a positive integer path parameter.
func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, models.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// parsePage reads a 1-based page number whose offset still fits in an int at pageSize.
func parsePage(raw string, pageSize int) (int, error) {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, models.NewValidationError("page", "must be a positive integer")
	}
	if page > math.MaxInt/pageSize {
		return 0, models.NewValidationError("page", "is out of range")
	}
	return page, nil
}

// requireExists turns a failed existence check into models.ErrNotFound. Used to tell an
// empty page of a real container apart from a missing container.
func requireExists(ctx context.Context, check func(context.Context, int64) (bool, error), id int64, what string) error {
	ok, err := check(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %d: %w", what, id, models.ErrNotFound)
	}
	return nil
}

// serveByID answers a single-entity read keyed by the {id} path parameter.
func serveByID[T any](w http.ResponseWriter, r *http.Request, app App, fetch func(context.Context, int64) (T, error)) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	v, err := fetch(r.Context(), id)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	respondJSON(w, http.StatusOK, v, app)
}

// --- Listings ---

type homeListing = aggregate.Ordered[int64, *aggregate.Group[models.BasicContainer, models.Container]]

func foldHome(rows []models.HomeRow) *homeListing {
	return aggregate.Fold(rows,
		func(r models.HomeRow) int64 { return r.CategoryID },
		func(r models.HomeRow) models.BasicContainer {
			return models.BasicContainer{Name: r.CategoryName, Description: r.CategoryDescr}
		},
		func(r models.HomeRow) (models.Container, bool) {
			if !r.ForumID.Valid {
				return models.Container{}, false
			}
			return models.Container{ID: r.ForumID.Int64, Name: r.ForumName.String, Description: r.ForumDescr.String}, true
		},
	)
}

// HandleHome serves every category with its forums. The encoded listing is cached until a
// container mutation invalidates it.
func HandleHome(w http.ResponseWriter, r *http.Request, app App) {
	ctx := r.Context()
	if cached, ok := app.Cache().Get(ctx, cache.HomeKey); ok {
		app.Metrics().CacheResult(true)
		respondRawJSON(w, http.StatusOK, cached, app)
		return
	}
	app.Metrics().CacheResult(false)

	rows, err := app.DB().GetHomeRows(ctx)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	payload, err := json.Marshal(foldHome(rows))
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	app.Cache().Set(ctx, cache.HomeKey, payload)
	respondRawJSON(w, http.StatusOK, payload, app)
}

func threadAuthor(r models.ThreadRow) (int64, models.UserSummary, bool) {
	return r.Thread.AuthorID, models.UserSummary{Username: r.Username, ProfileTag: r.ProfileTag, IsAdmin: r.IsAdmin}, true
}

type latestResponse struct {
	Topics *aggregate.Ordered[int64, *aggregate.Group[models.IDContainer, models.ThreadEntry]] `json:"topics"`
	Users  *aggregate.Ordered[int64, models.UserSummary]                                      `json:"users"`
}

// HandleLatest serves the most recently active threads grouped under their topics.
func HandleLatest(w http.ResponseWriter, r *http.Request, app App) {
	rows, err := app.DB().GetLatestRows(r.Context(), latestLimit)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	topics, users := aggregate.FoldWithParticipants(rows,
		func(r models.ThreadRow) int64 { return r.TopicID },
		func(r models.ThreadRow) models.IDContainer { return models.IDContainer{ID: r.TopicID, Name: r.TopicName} },
		func(r models.ThreadRow) (models.ThreadEntry, bool) { return r.Thread, true },
		threadAuthor,
	)
	respondJSON(w, http.StatusOK, latestResponse{Topics: topics, Users: users}, app)
}

func HandleForum(w http.ResponseWriter, r *http.Request, app App) {
	serveByID(w, r, app, app.DB().GetForumData)
}

func HandleTopic(w http.ResponseWriter, r *http.Request, app App) {
	serveByID(w, r, app, app.DB().GetTopicInfo)
}

type topicPageResponse struct {
	Threads []models.ThreadEntry                          `json:"threads"`
	Users   *aggregate.Ordered[int64, models.UserSummary] `json:"users"`
}

// HandleTopicPage serves one page of a topic's threads with their opening-post authors.
func HandleTopicPage(w http.ResponseWriter, r *http.Request, app App) {
	ctx := r.Context()
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	page, err := parsePage(chi.URLParam(r, "n"), config.PageSize)
	if err != nil {
		respondError(w, r, app, err)
		return
	}

	rows, err := app.DB().GetTopicThreads(ctx, id, page)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	if len(rows) == 0 {
		if err := requireExists(ctx, app.DB().TopicExists, id, "topic"); err != nil {
			respondError(w, r, app, err)
			return
		}
	}

	threads := make([]models.ThreadEntry, 0, len(rows))
	for _, row := range rows {
		threads = append(threads, row.Thread)
	}
	respondJSON(w, http.StatusOK, topicPageResponse{
		Threads: threads,
		Users:   aggregate.Participants(rows, threadAuthor),
	}, app)
}

func HandleThread(w http.ResponseWriter, r *http.Request, app App) {
	serveByID(w, r, app, app.DB().GetThreadInfo)
}

type threadPageResponse struct {
	Posts []*models.PostView                            `json:"posts"`
	Users *aggregate.Ordered[int64, models.UserSummary] `json:"users"`
}

// HandleThreadPage serves one page of posts with reaction tallies personalized to the viewer.
func HandleThreadPage(w http.ResponseWriter, r *http.Request, app App) {
	ctx := r.Context()
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	page, err := parsePage(chi.URLParam(r, "n"), config.PageSize)
	if err != nil {
		respondError(w, r, app, err)
		return
	}

	viewer := models.AnonymousViewer
	if uid, ok := sessionFrom(r).UserID(); ok {
		viewer = uid
	}

	rows, err := app.DB().GetThreadPostRows(ctx, id, page, viewer)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	if len(rows) == 0 {
		if err := requireExists(ctx, app.DB().ThreadExists, id, "thread"); err != nil {
			respondError(w, r, app, err)
			return
		}
	}
	posts, users, err := aggregate.FoldReactions(rows)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	respondJSON(w, http.StatusOK, threadPageResponse{Posts: posts, Users: users}, app)
}

// HandleBanner serves the current site announcement.
func HandleBanner(w http.ResponseWriter, r *http.Request, app App) {
	content, err := utils.ReadBanner(app.Config().BannerFile)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"banner": content}, app)
}
