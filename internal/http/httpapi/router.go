package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"clipper/internal/http/handlers"
	"clipper/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)
	r.Route("/v1/tasks", func(r chi.Router) {
		r.Get("/", app.ListTasks)
		r.Post("/", app.EnqueueTask)
		r.Get("/{id}", app.GetTask)
	})
	r.Get("/v1/artifacts", app.ListArtifacts)
	r.Get("/v1/credentials", app.ListCredentials)
	r.Get("/v1/stats", app.TaskStats)

	return r
}
