package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fakebatch/internal/batch"
	"fakebatch/internal/health"
	"fakebatch/internal/job"
	"fakebatch/internal/store"
)

func newTestRouter(t *testing.T, apiKey string) http.Handler {
	t.Helper()
	svc := job.NewService(store.New(), nil)
	return NewRouter(RouterConfig{
		JobService:    svc,
		HealthChecker: health.NewChecker(nil),
		APIKey:        apiKey,
	})
}

func jobBody() *bytes.Buffer {
	spec := map[string]any{
		"taskGroups": []map[string]any{
			{
				"taskSpec": map[string]any{
					"runnables": []map[string]any{
						{"container": map[string]any{"imageUri": "busybox", "commands": []string{"echo", "hello"}}},
					},
					"maxRunDuration": "3600s",
				},
				"taskCount":   2,
				"parallelism": 1,
			},
		},
	}
	body, _ := json.Marshal(spec)
	return bytes.NewBuffer(body)
}

func createJob(t *testing.T, router http.Handler, jobID string) *batch.Job {
	t.Helper()
	url := "/v1/projects/proj-1/locations/us-central1/jobs"
	if jobID != "" {
		url += "?job_id=" + jobID
	}
	req := httptest.NewRequest(http.MethodPost, url, jobBody())
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("CreateJob returned %d: %s", w.Code, w.Body.String())
	}

	var created batch.Job
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode created job: %v", err)
	}
	return &created
}

func TestRouter_CreateJob(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")

	created := createJob(t, router, "my-job")

	if created.Name != "projects/proj-1/locations/us-central1/jobs/my-job" {
		t.Errorf("unexpected job name: %s", created.Name)
	}
	if created.State != batch.JobStateQueued {
		t.Errorf("expected QUEUED state, got %s", created.State)
	}
	if created.UID == "" {
		t.Error("expected uid to be set")
	}
}

func TestRouter_CreateJob_GeneratedID(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")

	created := createJob(t, router, "")

	if created.Name == "" {
		t.Fatal("expected generated job name")
	}
	_, _, jobID, err := batch.ParseJobName(created.Name)
	if err != nil {
		t.Fatalf("generated name does not parse: %v", err)
	}
	if len(jobID) != len("job-12345678") || jobID[:4] != "job-" {
		t.Errorf("unexpected generated job ID: %s", jobID)
	}
}

func TestRouter_CreateJob_Duplicate(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")

	createJob(t, router, "dup-job")

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/proj-1/locations/us-central1/jobs?job_id=dup-job", jobBody())
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}
}

func TestRouter_CreateJob_InvalidJSON(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p/locations/us/jobs", bytes.NewBufferString("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestRouter_CreateJob_InvalidSpec(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"no task groups", `{}`},
		{"bad taskCount", `{"taskGroups":[{"taskSpec":{"runnables":[{"container":{"imageUri":"busybox"}}]},"taskCount":0}]}`},
		{"bad maxRunDuration", `{"taskGroups":[{"taskSpec":{"runnables":[{"container":{"imageUri":"busybox"}}],"maxRunDuration":"nonsense"},"taskCount":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/projects/p/locations/us/jobs", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
			}
		})
	}
}

func TestRouter_CreateJob_InvalidJobID(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p/locations/us/jobs?job_id=Not-Valid-", jobBody())
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestRouter_GetJob(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")
	created := createJob(t, router, "get-me")

	req := httptest.NewRequest(http.MethodGet, "/v1/"+created.Name, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var got batch.Job
	json.NewDecoder(w.Body).Decode(&got)
	if got.Name != created.Name {
		t.Errorf("expected name %s, got %s", created.Name, got.Name)
	}
}

func TestRouter_GetJob_NotFound(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/projects/p/locations/us/jobs/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestRouter_ListJobs(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")
	createJob(t, router, "list-a")
	createJob(t, router, "list-b")

	req := httptest.NewRequest(http.MethodGet, "/v1/projects/proj-1/locations/us-central1/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp batch.ListJobsResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(resp.Jobs))
	}
}

func TestRouter_ListJobs_OtherLocationEmpty(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")
	createJob(t, router, "here-only")

	req := httptest.NewRequest(http.MethodGet, "/v1/projects/proj-1/locations/europe-west1/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp batch.ListJobsResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Jobs) != 0 {
		t.Errorf("expected 0 jobs in other location, got %d", len(resp.Jobs))
	}
}

func TestRouter_DeleteJob(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")
	created := createJob(t, router, "delete-me")

	req := httptest.NewRequest(http.MethodDelete, "/v1/"+created.Name, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var deleted batch.Job
	json.NewDecoder(w.Body).Decode(&deleted)
	if deleted.State != batch.JobStateDeleting {
		t.Errorf("expected DELETION_IN_PROGRESS, got %s", deleted.State)
	}
}

func TestRouter_ListTasks(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")
	created := createJob(t, router, "with-tasks")

	req := httptest.NewRequest(http.MethodGet, "/v1/"+created.Name+"/tasks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp batch.ListTasksResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(resp.Tasks))
	}
	for i, task := range resp.Tasks {
		want := fmt.Sprintf("%s/tasks/%d", created.Name, i)
		if task.Name != want {
			t.Errorf("task %d: expected name %s, got %s", i, want, task.Name)
		}
		if task.Status.State != batch.TaskStatePending {
			t.Errorf("task %d: expected PENDING, got %s", i, task.Status.State)
		}
	}
}

func TestRouter_GetTask(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")
	created := createJob(t, router, "task-get")

	req := httptest.NewRequest(http.MethodGet, "/v1/"+created.Name+"/tasks/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var task batch.Task
	json.NewDecoder(w.Body).Decode(&task)
	if task.Status == nil || task.Status.State != batch.TaskStatePending {
		t.Errorf("unexpected task status: %+v", task.Status)
	}
}

func TestRouter_GetTask_OutOfRange(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")
	created := createJob(t, router, "task-range")

	req := httptest.NewRequest(http.MethodGet, "/v1/"+created.Name+"/tasks/99", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %q", resp["status"])
	}
}

func TestHandler_Livez(t *testing.T) {
	t.Parallel()
	handler := &Handler{
		health: health.NewChecker(nil),
	}

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()

	handler.Livez(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response health.Response
	json.NewDecoder(w.Body).Decode(&response)

	if response.Status != health.StatusHealthy {
		t.Errorf("Expected status healthy, got %s", response.Status)
	}
}

func TestHandler_Readyz_NoScheduler(t *testing.T) {
	t.Parallel()
	handler := &Handler{
		health: health.NewChecker(nil), // No scheduler wired
	}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	handler.Readyz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	var response health.Response
	json.NewDecoder(w.Body).Decode(&response)

	if response.Status != health.StatusUnhealthy {
		t.Errorf("Expected status unhealthy, got %s", response.Status)
	}
}

func TestRouter_AuthRequired(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, "secret-key")

	// No auth header
	req := httptest.NewRequest(http.MethodGet, "/v1/projects/p/locations/us/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	// Wrong key
	req = httptest.NewRequest(http.MethodGet, "/v1/projects/p/locations/us/jobs", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	// Correct key
	req = httptest.NewRequest(http.MethodGet, "/v1/projects/p/locations/us/jobs", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	// Health endpoints bypass auth
	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected health to bypass auth, got %d", w.Code)
	}
}

func TestMiddleware_Logging(t *testing.T) {
	t.Parallel()
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	handler := Logging()(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Error("Inner handler was not called")
	}
}

func TestMiddleware_Recovery(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := Recovery()(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestMiddleware_ContentType(t *testing.T) {
	t.Parallel()
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	handler := RequireJSON()(inner)

	// Test with wrong content type
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected status %d, got %d", http.StatusUnsupportedMediaType, w.Code)
	}

	// Test with correct content type
	called = false
	req = httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Error("Inner handler was not called")
	}
}

func TestMiddleware_ContentType_EmptyBodyAllowed(t *testing.T) {
	t.Parallel()
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	handler := RequireJSON()(inner)

	// GET requests don't need content-type
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Error("Inner handler should be called for GET requests")
	}
}

func TestMiddleware_CORS(t *testing.T) {
	t.Parallel()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := CORS()(inner)

	// Test OPTIONS preflight
	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}
