package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/sealed-content/pkg/sealedcontent/api"
	"github.com/tendant/sealed-content/pkg/sealedcontent/config"
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Database    string `json:"database"`
	Storage     string `json:"storage"`
}

// NewRouter mounts the API, health and metrics endpoints
func NewRouter(handler *api.Handler, serverConfig *config.ServerConfig, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.MetricsMiddleware())
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	// CORS for development
	if serverConfig.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, HealthResponse{
			Status:      "healthy",
			Environment: serverConfig.Environment,
			Database:    serverConfig.DatabaseType,
			Storage:     serverConfig.Storage.Type,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api/v1", handler.Routes())

	return r
}
