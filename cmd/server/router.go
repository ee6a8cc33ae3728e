package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/inkwell-api/internal/api"
	apiMiddleware "github.com/phrazzld/inkwell-api/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	generationHandler := api.NewGenerationHandler(app.generationService)
	creditHandler := api.NewCreditHandler(app.generationService)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Cost previews are public
		r.Post("/estimate", generationHandler.Estimate)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/jobs", generationHandler.SubmitSingle)
			r.Post("/jobs/bulk", generationHandler.SubmitBulk)
			r.Get("/jobs", generationHandler.ListJobs)
			r.Get("/jobs/{id}", generationHandler.GetJob)
			r.Post("/jobs/{id}/cancel", generationHandler.CancelJob)
			r.Get("/jobs/{id}/articles", generationHandler.ListJobArticles)

			r.Get("/articles", generationHandler.ListArticles)
			r.Get("/articles/{id}", generationHandler.GetArticle)

			r.Post("/titles/suggest", generationHandler.SuggestTitles)

			r.Get("/credits", creditHandler.GetBalance)
			r.Get("/credits/entries", creditHandler.ListEntries)
		})
	})

	// Generated images are written to disk and served from here when the
	// base URL is a local path.
	if base := app.config.LLM.ImageBaseURL; strings.HasPrefix(base, "/") && app.config.LLM.ImageDir != "" {
		base = strings.TrimSuffix(base, "/")
		r.Handle(base+"/*", http.StripPrefix(base, http.FileServer(http.Dir(app.config.LLM.ImageDir))))
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
