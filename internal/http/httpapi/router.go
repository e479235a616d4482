// Package httpapi wires handlers into the chi router.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"drafted/internal/http/handlers"
	"drafted/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logger(*app.Logger),
		chimw.Recoverer,
		middleware.CORS([]string{"http://localhost:3000", "http://localhost:5173"}),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/system/retry-policy", app.RetryPolicy)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(20, time.Minute))
		r.Post("/signup", app.Signup)
		r.Post("/login", app.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.JWTSecret))

		r.Get("/v1/me", app.Me)
		r.Get("/v1/me/limits", app.MeLimits)
		r.Get("/v1/jobs", app.ListUserJobs)

		r.Route("/v1/sessions", func(r chi.Router) {
			r.Post("/", app.CreateSession)
			r.Get("/", app.ListSessions)
			r.Get("/{sessionID}", app.GetSession)
			r.Post("/{sessionID}/jobs", app.CreateJob)
			r.Get("/{sessionID}/jobs", app.ListJobs)
		})

		r.Route("/v1/jobs/{jobID}", func(r chi.Router) {
			r.Get("/", app.GetJob)
			r.Post("/regenerate", app.RegenerateJob)
			r.Get("/spec", app.GetSpec)
			r.Get("/plan", app.GetPlan)
			r.Get("/artifacts", app.ListJobArtifacts)
			r.Get("/artifacts/{artifactID}", app.DownloadArtifact)
			r.Get("/export", app.ExportJob)
		})
	})

	return r
}
