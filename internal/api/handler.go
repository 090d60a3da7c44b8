// Package api provides the HTTP API handlers and routing for the batch service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"fakebatch/internal/apperrors"
	"fakebatch/internal/batch"
	"fakebatch/internal/health"
	"fakebatch/internal/job"
	"fakebatch/internal/observability"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// Handler contains HTTP handlers for the batch API
type Handler struct {
	svc     *job.Service
	metrics *observability.Metrics
	health  *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(svc *job.Service, metrics *observability.Metrics, healthChecker *health.Checker) *Handler {
	return &Handler{
		svc:     svc,
		metrics: metrics,
		health:  healthChecker,
	}
}

// CreateJob handles POST /v1/projects/{project}/locations/{location}/jobs
// Query params: job_id (optional, generated when absent)
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var spec batch.Job
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	project := r.PathValue("project")
	location := r.PathValue("location")
	jobID := r.URL.Query().Get("job_id")

	created, err := h.svc.CreateJob(r.Context(), project, location, jobID, &spec)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, created)
}

// ListJobs handles GET /v1/projects/{project}/locations/{location}/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	location := r.PathValue("location")

	resp, err := h.svc.ListJobs(r.Context(), project, location)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /v1/projects/{project}/locations/{location}/jobs/{job}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	name := jobNameFromPath(r)

	found, err := h.svc.GetJob(r.Context(), name)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, found)
}

// DeleteJob handles DELETE /v1/projects/{project}/locations/{location}/jobs/{job}
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	name := jobNameFromPath(r)

	deleted, err := h.svc.DeleteJob(r.Context(), name)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, deleted)
}

// ListTasks handles GET /v1/projects/{project}/locations/{location}/jobs/{job}/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	name := jobNameFromPath(r)

	resp, err := h.svc.ListTasks(r.Context(), name)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetTask handles GET /v1/projects/{project}/locations/{location}/jobs/{job}/tasks/{task}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	name := jobNameFromPath(r)
	taskID := r.PathValue("task")

	task, err := h.svc.GetTask(r.Context(), name, taskID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, task)
}

// Health handles GET /v1/health - simple availability check.
// Always returns 200 while the process is alive.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic.
// Returns 503 if the lifecycle scheduler is not running.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// jobNameFromPath rebuilds the full resource name from path segments.
func jobNameFromPath(r *http.Request) string {
	return batch.JobName(r.PathValue("project"), r.PathValue("location"), r.PathValue("job"))
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from service layer with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
