// agora/handlers/moderation.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"agora/cache"
	"agora/database"
	"agora/models"
	"agora/utils"
)

type containerRequest struct {
	ParentID    int64  `json:"parentId" validate:"gte=0"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

type bannerRequest struct {
	Banner string `json:"banner" validate:"max=2000"`
}

// HandleCreateContainer returns a handler that creates a container of the given kind.
// Authorization is left to the audit guard, which only accepts admin actors.
func HandleCreateContainer(kind database.ContainerKind) func(http.ResponseWriter, *http.Request, App) {
	return func(w http.ResponseWriter, r *http.Request, app App) {
		ctx := r.Context()
		uid, err := requireUser(r)
		if err != nil {
			respondError(w, r, app, err)
			return
		}
		var req containerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, app, err)
			return
		}
		if kind.ParentTable != "" && req.ParentID == 0 {
			respondError(w, r, app, models.NewValidationError("parentId", "is required"))
			return
		}

		id, err := app.DB().CreateContainer(ctx, kind, req.ParentID, uid,
			models.BasicContainer{Name: strings.TrimSpace(req.Name), Description: req.Description})
		if err != nil {
			respondError(w, r, app, err)
			return
		}
		app.Cache().Invalidate(ctx, cache.HomeKey)
		w.Header().Set("Location", fmt.Sprintf("/api/%s/%d", kind.Table, id))
		respondJSON(w, http.StatusCreated, map[string]int64{"id": id}, app)
	}
}

func HandleUpdateContainer(kind database.ContainerKind) func(http.ResponseWriter, *http.Request, App) {
	return func(w http.ResponseWriter, r *http.Request, app App) {
		ctx := r.Context()
		uid, err := requireUser(r)
		if err != nil {
			respondError(w, r, app, err)
			return
		}
		id, err := parseID(r, "id")
		if err != nil {
			respondError(w, r, app, err)
			return
		}
		var req containerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, app, err)
			return
		}

		err = app.DB().UpdateContainer(ctx, kind, id, uid,
			models.BasicContainer{Name: strings.TrimSpace(req.Name), Description: req.Description})
		if err != nil {
			respondError(w, r, app, err)
			return
		}
		app.Cache().Invalidate(ctx, cache.HomeKey)
		respondJSON(w, http.StatusOK, map[string]int64{"id": id}, app)
	}
}

func HandleDeleteContainer(kind database.ContainerKind) func(http.ResponseWriter, *http.Request, App) {
	return func(w http.ResponseWriter, r *http.Request, app App) {
		ctx := r.Context()
		uid, err := requireUser(r)
		if err != nil {
			respondError(w, r, app, err)
			return
		}
		id, err := parseID(r, "id")
		if err != nil {
			respondError(w, r, app, err)
			return
		}
		if err := app.DB().DeleteContainer(ctx, kind, id, uid); err != nil {
			respondError(w, r, app, err)
			return
		}
		app.Cache().Invalidate(ctx, cache.HomeKey)
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleUpdateBanner replaces the site announcement. An empty banner clears it.
func HandleUpdateBanner(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleUpdateBanner")
	uid, err := requireUser(r)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	var req bannerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, app, err)
		return
	}

	if err := app.DB().LogAdminAction(r.Context(), uid, "update banner", req.Banner); err != nil {
		respondError(w, r, app, err)
		return
	}
	if err := utils.WriteBanner(app.Config().BannerFile, req.Banner); err != nil {
		logger.Error("Failed to write banner file", "error", err)
		respondError(w, r, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"banner": strings.TrimSpace(req.Banner)}, app)
}

// HandleDatabaseBackup snapshots the database into the configured backup directory.
func HandleDatabaseBackup(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDatabaseBackup")
	uid, err := requireUser(r)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	if err := app.DB().LogAdminAction(r.Context(), uid, "database backup", app.Config().BackupDir); err != nil {
		respondError(w, r, app, err)
		return
	}

	backupPath, err := app.DB().BackupDatabase(r.Context(), app.Config().BackupDir)
	if err != nil {
		logger.Error("Failed to create database backup", "error", err)
		respondError(w, r, app, err)
		return
	}
	logger.Info("Database backup created successfully", "path", backupPath)
	respondJSON(w, http.StatusOK, map[string]string{"path": backupPath}, app)
}
