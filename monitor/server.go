// Package monitor exposes run progress and Prometheus metrics over HTTP.
package monitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-catalog-harvester/models"
)

// ProgressSource reports live per-category progress.
type ProgressSource interface {
	Snapshot() []models.CategoryResult
}

// NewRouter serves /metrics from registry, /healthz and /categories.
func NewRouter(registry *prometheus.Registry, progress ProgressSource) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/categories", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, progress.Snapshot())
	})
	r.Get("/categories/{category}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "category")
		for _, c := range progress.Snapshot() {
			if c.Category == name {
				respondWithJSON(w, http.StatusOK, c)
				return
			}
		}
		respondWithJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
	})

	return r
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
