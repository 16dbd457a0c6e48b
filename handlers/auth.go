package handlers

import (
	"errors"
	"net/http"

	"agora/models"
)

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=32"`
	Password string `json:"password" validate:"required,min=8,max=256"`
}

var errPreAuthRequired = errors.New("pre auth required")

// HandlePreAuth marks the session as having started the authentication flow. Register and
// login refuse sessions without the mark.
func HandlePreAuth(w http.ResponseWriter, r *http.Request, app App) {
	if err := sessionFrom(r).Set(models.SessionPreAuthKey, true); err != nil {
		respondError(w, r, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{}, app)
}

func checkPreAuth(w http.ResponseWriter, r *http.Request, app App) bool {
	if sessionFrom(r).Has(models.SessionPreAuthKey) {
		return true
	}
	respondJSON(w, http.StatusUnauthorized, map[string]string{"error": errPreAuthRequired.Error()}, app)
	return false
}

// authenticate binds the session to uid under a fresh identifier.
func authenticate(r *http.Request, uid int64) error {
	sess := sessionFrom(r)
	sess.MarkPendingRegeneration()
	if err := sess.Set(models.SessionUserIDKey, uid); err != nil {
		return err
	}
	sess.Remove(models.SessionPreAuthKey)
	return nil
}

func HandleRegister(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleRegister")
	if !checkPreAuth(w, r, app) {
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, app, err)
		return
	}

	hash, salt, err := app.Hasher().Hash(req.Password)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	uid, err := app.DB().CreateUser(r.Context(), req.Username, hash, salt)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	if err := authenticate(r, uid); err != nil {
		respondError(w, r, app, err)
		return
	}
	logger.Info("User registered", "user_id", uid)
	respondJSON(w, http.StatusCreated, map[string]int64{"userId": uid}, app)
}

func HandleLogin(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleLogin")
	if !checkPreAuth(w, r, app) {
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, app, err)
		return
	}

	creds, err := app.DB().GetCredentials(r.Context(), req.Username)
	if errors.Is(err, models.ErrNotFound) {
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid username or password."}, app)
		return
	}
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	if !app.Hasher().Verify(req.Password, creds.Hash, creds.Salt) {
		logger.Warn("Failed login", "user_id", creds.UserID)
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid username or password."}, app)
		return
	}
	if err := authenticate(r, creds.UserID); err != nil {
		respondError(w, r, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"userId": creds.UserID}, app)
}

func HandleLogout(w http.ResponseWriter, r *http.Request, app App) {
	sessionFrom(r).Destroy()
	respondJSON(w, http.StatusOK, map[string]string{}, app)
}
