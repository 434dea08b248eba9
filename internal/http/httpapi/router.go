package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"evalserver/internal/http/handlers"
	"evalserver/internal/middleware"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.Logger(app.Logger))

	r.Get("/", app.Root)
	r.Get("/health", app.Health)

	r.Get("/scorers", app.ScorersList)

	r.Route("/evaluate", func(r chi.Router) {
		r.Post("/", app.EvaluateSubmit)
		r.Get("/{job_id}", app.EvaluateStatus)
		r.Get("/{job_id}/results", app.EvaluateResults)
	})

	r.Get("/jobs", app.JobsList)

	return r
}
