package handlers

import (
	"agora/database"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(app App) *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(NewStructuredLogger(app.Logger()))
	mux.Use(middleware.Recoverer)
	mux.Use(app.Metrics().Middleware)

	mux.With(RequireLocal(app)).Handle("/metrics", app.Metrics().Handler())

	mux.Route("/api", func(api chi.Router) {
		api.Use(SessionMiddleware(app))

		// Reads
		api.Get("/home", MakeHandler(app, HandleHome))
		api.Get("/latest", MakeHandler(app, HandleLatest))
		api.Get("/banner", MakeHandler(app, HandleBanner))
		api.Get("/forums/{id}", MakeHandler(app, HandleForum))
		api.Get("/topics/{id}", MakeHandler(app, HandleTopic))
		api.Get("/topics/{id}/page/{n}", MakeHandler(app, HandleTopicPage))
		api.Get("/threads/{id}", MakeHandler(app, HandleThread))
		api.Get("/threads/{id}/page/{n}", MakeHandler(app, HandleThreadPage))

		// Throttled writes
		api.Group(func(rl chi.Router) {
			rl.Use(RateLimit(app))
			rl.Post("/threads", MakeHandler(app, HandleCreateThread))
			rl.Post("/posts", MakeHandler(app, HandleCreatePost))
			rl.Post("/posts/{id}/reactions/add", MakeHandler(app, HandleAddReaction))
			rl.Post("/posts/{id}/reactions/rem", MakeHandler(app, HandleRemoveReaction))
			rl.Post("/auth/register", MakeHandler(app, HandleRegister))
			rl.Post("/auth/login", MakeHandler(app, HandleLogin))
		})
		api.Delete("/posts/{id}", MakeHandler(app, HandleDeletePost))

		api.Post("/auth/pre_auth", MakeHandler(app, HandlePreAuth))
		api.Post("/auth/logout", MakeHandler(app, HandleLogout))

		api.Post("/users/available", MakeHandler(app, HandleUsernameAvailable))
		api.Get("/users/{id}", MakeHandler(app, HandleGetUser))
		api.Get("/users/{id}/logs", MakeHandler(app, HandleUserLogs))
		api.Get("/search/{kind}", MakeHandler(app, HandleSearch))

		for _, kind := range []database.ContainerKind{database.KindCategory, database.KindForum, database.KindTopic} {
			api.Post("/"+kind.Table, MakeHandler(app, HandleCreateContainer(kind)))
			api.Patch("/"+kind.Table+"/{id}", MakeHandler(app, HandleUpdateContainer(kind)))
			api.Delete("/"+kind.Table+"/{id}", MakeHandler(app, HandleDeleteContainer(kind)))
		}

		api.Post("/admin/backup", MakeHandler(app, HandleDatabaseBackup))
		api.Put("/admin/banner", MakeHandler(app, HandleUpdateBanner))
	})

	return mux
}
