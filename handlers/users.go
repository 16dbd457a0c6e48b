package handlers

import (
	"net/http"

	"agora/database"
	"agora/models"

	"github.com/go-chi/chi/v5"
)

const (
	searchLimit  = 50
	logsPageSize = 25
)

func HandleGetUser(w http.ResponseWriter, r *http.Request, app App) {
	serveByID(w, r, app, app.DB().GetUser)
}

// HandleUserLogs serves a user's audit entries to that user or to an admin.
func HandleUserLogs(w http.ResponseWriter, r *http.Request, app App) {
	ctx := r.Context()
	uid, err := requireUser(r)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	target, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err = parsePage(raw, logsPageSize); err != nil {
			respondError(w, r, app, err)
			return
		}
	}

	if uid != target {
		admin, err := app.DB().IsAdmin(ctx, uid)
		if err != nil {
			respondError(w, r, app, err)
			return
		}
		if !admin {
			respondError(w, r, app, models.ErrForbidden)
			return
		}
	}

	entries, err := app.DB().GetUserLogs(ctx, target, page, logsPageSize)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	respondJSON(w, http.StatusOK, entries, app)
}

type usernameRequest struct {
	Username string `json:"username" validate:"required,max=32"`
}

func HandleUsernameAvailable(w http.ResponseWriter, r *http.Request, app App) {
	var req usernameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, app, err)
		return
	}
	ok, err := app.DB().UsernameAvailable(r.Context(), req.Username)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"available": ok}, app)
}

var searchKinds = map[string]database.ContainerKind{
	"categories": database.KindCategory,
	"forums":     database.KindForum,
	"topics":     database.KindTopic,
}

// HandleSearch filters one kind of entity by name with ?q=.
func HandleSearch(w http.ResponseWriter, r *http.Request, app App) {
	ctx := r.Context()
	q := r.URL.Query().Get("q")
	kind := chi.URLParam(r, "kind")

	if kind == "users" {
		users, err := app.DB().SearchUsers(ctx, q, searchLimit)
		if err != nil {
			respondError(w, r, app, err)
			return
		}
		respondJSON(w, http.StatusOK, users, app)
		return
	}

	ck, ok := searchKinds[kind]
	if !ok {
		respondError(w, r, app, models.ErrNotFound)
		return
	}
	results, err := app.DB().SearchContainers(ctx, ck, q, searchLimit)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	respondJSON(w, http.StatusOK, results, app)
}
