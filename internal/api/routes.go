package api

import (
	"net/http"

	"fakebatch/internal/health"
	"fakebatch/internal/job"
	"fakebatch/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	JobService    *job.Service
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.JobService, cfg.Metrics, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)
	mux.HandleFunc("GET /v1/health", handler.Health)

	// Job and task endpoints - auth required
	auth := BearerAuth(cfg.APIKey)
	mux.Handle("POST /v1/projects/{project}/locations/{location}/jobs", auth(http.HandlerFunc(handler.CreateJob)))
	mux.Handle("GET /v1/projects/{project}/locations/{location}/jobs", auth(http.HandlerFunc(handler.ListJobs)))
	mux.Handle("GET /v1/projects/{project}/locations/{location}/jobs/{job}", auth(http.HandlerFunc(handler.GetJob)))
	mux.Handle("DELETE /v1/projects/{project}/locations/{location}/jobs/{job}", auth(http.HandlerFunc(handler.DeleteJob)))
	mux.Handle("GET /v1/projects/{project}/locations/{location}/jobs/{job}/tasks", auth(http.HandlerFunc(handler.ListTasks)))
	mux.Handle("GET /v1/projects/{project}/locations/{location}/jobs/{job}/tasks/{task}", auth(http.HandlerFunc(handler.GetTask)))

	mws := []Middleware{Recovery(), Logging()}
	if cfg.Metrics != nil {
		mws = append(mws, RequestMetrics(cfg.Metrics))
	}
	mws = append(mws, CORS(), RequireJSON())

	return chain(mux, mws...)
}
