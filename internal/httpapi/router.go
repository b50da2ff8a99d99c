// Package httpapi exposes the meal pipeline over HTTP: upload grants,
// analysis, corrections, daily summaries, and nutrition goals.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Healthchecker reports whether a dependency is reachable.
type Healthchecker func(ctx context.Context) error

// NewRouter assembles the API router.
func NewRouter(h *Handlers, verifier TokenVerifier, log *slog.Logger, health ...Healthchecker) *chi.Mux {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recover(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		for _, check := range health {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "health check failed", slog.Any("error", err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(Auth(verifier))

		r.Post("/upload-url", h.CreateUploadURL)

		r.Route("/meals", func(r chi.Router) {
			r.Post("/analyze", h.AnalyzeMeal)
			r.Get("/", h.ListMeals)
			r.Get("/daily-summary", h.DailySummary)
			r.Get("/{id}", h.GetMeal)
			r.Patch("/{id}", h.CorrectMeal)
			r.Delete("/{id}", h.DeleteMeal)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", h.GetGoals)
			r.Put("/", h.UpdateGoals)
			r.Get("/stream", h.StreamGoals)
		})
	})

	return r
}
