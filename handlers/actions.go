// agora/handlers/actions.go
package handlers

import (
	"net/http"
)

type createThreadRequest struct {
	TopicID int64  `json:"topicId" validate:"required,gt=0"`
	Title   string `json:"title" validate:"required,max=100"`
	Content string `json:"content" validate:"required,max=20000"`
}

type createPostRequest struct {
	ThreadID int64  `json:"threadId" validate:"required,gt=0"`
	Content  string `json:"content" validate:"required,max=20000"`
}

type reactionRequest struct {
	Symbol string `json:"symbol" validate:"required,min=1,max=16"`
}

// HandleCreateThread creates a thread with its opening post.
func HandleCreateThread(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleCreateThread")
	uid, err := requireUser(r)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	var req createThreadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, app, err)
		return
	}

	threadID, postID, err := app.DB().CreateThread(r.Context(), req.TopicID, uid, req.Title, req.Content)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	app.Metrics().ThreadsCreated.Inc()
	logger.Info("Thread created", "thread_id", threadID, "user_id", uid)
	respondJSON(w, http.StatusCreated, map[string]int64{"threadId": threadID, "postId": postID}, app)
}

// HandleCreatePost appends a reply and reports the page it landed on.
func HandleCreatePost(w http.ResponseWriter, r *http.Request, app App) {
	uid, err := requireUser(r)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, app, err)
		return
	}

	res, err := app.DB().AppendPost(r.Context(), req.ThreadID, uid, req.Content)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	app.Metrics().PostsAppended.Inc()
	respondJSON(w, http.StatusCreated, res, app)
}

// HandleDeletePost removes a post. Authors may delete their own posts; admins may delete any.
// Success answers 205 so the client reloads the thread, whose positions have shifted.
func HandleDeletePost(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleDeletePost")
	uid, err := requireUser(r)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	postID, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	privileged, err := app.DB().IsAdmin(r.Context(), uid)
	if err != nil {
		respondError(w, r, app, err)
		return
	}

	res, err := app.DB().DeletePost(r.Context(), postID, uid, privileged)
	if err != nil {
		if statusFor(err) == http.StatusForbidden {
			logger.Warn("User failed to delete post they do not own", "user_id", uid, "post_id", postID)
		}
		respondError(w, r, app, err)
		return
	}
	app.Metrics().PostDeleted(res.ThreadDeleted)
	w.WriteHeader(http.StatusResetContent)
}

func HandleAddReaction(w http.ResponseWriter, r *http.Request, app App) {
	handleReaction(w, r, app, true)
}

func HandleRemoveReaction(w http.ResponseWriter, r *http.Request, app App) {
	handleReaction(w, r, app, false)
}

func handleReaction(w http.ResponseWriter, r *http.Request, app App, add bool) {
	uid, err := requireUser(r)
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	postID, err := parseID(r, "id")
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	var req reactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, app, err)
		return
	}

	if add {
		err = app.DB().AddReaction(r.Context(), postID, uid, req.Symbol)
	} else {
		err = app.DB().RemoveReaction(r.Context(), postID, uid, req.Symbol)
	}
	if err != nil {
		respondError(w, r, app, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"success": "Reaction updated."}, app)
}
