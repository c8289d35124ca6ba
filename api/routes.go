// Package api is the operator HTTP surface: queue review, status
// transitions, and manual pipeline triggers behind a single-operator JWT.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/applyd/internal/config"
	"github.com/garnizeh/applyd/internal/pipeline"
	"github.com/garnizeh/applyd/internal/store"
)

// SetupRoutes builds the full router. runner may be nil when the API runs
// without a configured pipeline; the run endpoints then answer 503.
func SetupRoutes(cfg *config.Config, version, buildTime string, st *store.Store, runner *pipeline.Runner) *mux.Router {
	r := mux.NewRouter()

	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	system := &SystemHandler{}
	auth := NewAuthHandler(cfg.API.OperatorHash, cfg.API.JWTSecret, cfg.API.TokenDuration)
	jobs := NewJobsHandler(st, runner)

	// open endpoints
	r.HandleFunc("/health", system.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/version", system.VersionHandler(version, buildTime)).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/signin", auth.Signin).Methods(http.MethodPost)

	// operator endpoints
	protected := r.PathPrefix("/v1").Subrouter()
	protected.Use(JWTAuthMiddlewareWithSecret(cfg.API.JWTSecret))

	protected.HandleFunc("/auth/signout", auth.Signout).Methods(http.MethodPost)

	protected.HandleFunc("/jobs", jobs.Add).Methods(http.MethodPost)
	protected.HandleFunc("/jobs", jobs.List).Methods(http.MethodGet)
	protected.HandleFunc("/jobs/{id:[0-9]+}", jobs.Get).Methods(http.MethodGet)
	protected.HandleFunc("/jobs/{id:[0-9]+}/answers", jobs.Answers).Methods(http.MethodGet)
	protected.HandleFunc("/jobs/{id:[0-9]+}/approve", jobs.Approve).Methods(http.MethodPost)
	protected.HandleFunc("/jobs/{id:[0-9]+}/skip", jobs.Skip).Methods(http.MethodPost)
	protected.HandleFunc("/jobs/{id:[0-9]+}/submit", jobs.Submit).Methods(http.MethodPost)
	protected.HandleFunc("/jobs/{id:[0-9]+}/retry", jobs.Retry).Methods(http.MethodPost)
	protected.HandleFunc("/jobs/{id:[0-9]+}/run", jobs.RunOne).Methods(http.MethodPost)

	protected.HandleFunc("/stats", jobs.Stats).Methods(http.MethodGet)
	protected.HandleFunc("/run", jobs.Run).Methods(http.MethodPost)

	return r
}
