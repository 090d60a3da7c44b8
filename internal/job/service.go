// Package job implements the job engine: expanding job specs into tasks
// and serving the lifecycle operations of the API.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"fakebatch/internal/apperrors"
	"fakebatch/internal/batch"
	"fakebatch/internal/observability"
	"fakebatch/internal/store"
)

// Validation limits
const (
	maxTaskCount    = 10000
	maxTaskGroups   = 16
	maxLabelEntries = 64
	maxLabelKeyLen  = 63
	maxLabelValLen  = 128
)

// Service manages job lifecycle against the orchestration store.
//
// All job and task state lives in the store; the Service itself is
// stateless. Every read returns a deep-copied snapshot, so callers never
// observe a job mid-update.
type Service struct {
	store   *store.Store
	metrics *observability.Metrics
}

// NewService creates a new job service.
func NewService(st *store.Store, metrics *observability.Metrics) *Service {
	return &Service{
		store:   st,
		metrics: metrics,
	}
}

// CreateJob validates and registers a new job, expanding its task groups
// into tasks. The job and all its tasks are registered atomically; on any
// failure nothing is registered. A duplicate job_id under the same
// project/location fails with AlreadyExists and never overwrites.
func (s *Service) CreateJob(ctx context.Context, project, location, jobID string, spec *batch.Job) (*batch.Job, error) {
	if jobID == "" {
		jobID = fmt.Sprintf("job-%s", uuid.New().String()[:8])
	}
	if !batch.ValidJobID(jobID) {
		return nil, apperrors.InvalidArgument("job_id", fmt.Sprintf("job ID %q must start with a lowercase letter and contain only lowercase letters, digits, and hyphens", jobID))
	}

	limits, err := validateSpec(spec)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	name := batch.JobName(project, location, jobID)

	j := spec.Clone()
	j.Name = name
	j.UID = uuid.New().String()
	j.State = batch.JobStateQueued
	j.CreateTime = now
	j.UpdateTime = now
	j.Status = &batch.JobStatus{
		State: batch.JobStateQueued,
		StatusEvents: []*batch.StatusEvent{{
			Type:        "job_created",
			Description: "Job created",
			EventTime:   now,
		}},
		TaskGroups: make(map[string]*batch.TaskGroupStatus),
	}

	rec := &store.Record{Job: j}
	for i, group := range j.TaskGroups {
		if group.Name == "" {
			group.Name = fmt.Sprintf("group%d", i)
		}
		j.Status.TaskGroups[group.Name] = &batch.TaskGroupStatus{
			Counts: map[string]int64{string(batch.TaskStatePending): group.TaskCount},
		}
		for n := int64(0); n < group.TaskCount; n++ {
			rec.Tasks = append(rec.Tasks, &batch.Task{
				Name: batch.TaskName(name, len(rec.Tasks)),
				Status: &batch.TaskStatus{
					State: batch.TaskStatePending,
					StatusEvents: []*batch.StatusEvent{{
						Type:        "task_created",
						Description: "Task created",
						EventTime:   now,
					}},
				},
			})
			rec.Clocks = append(rec.Clocks, store.TaskClock{RunLimit: limits[i]})
		}
	}

	if err := s.store.Put(rec); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordJobCreated(ctx, location)
	}
	slog.Info("Job created", "job", name, "tasks", len(rec.Tasks))

	return rec.SnapshotJob(), nil
}

// GetJob returns a snapshot of a job by resource name.
func (s *Service) GetJob(ctx context.Context, name string) (*batch.Job, error) {
	rec, err := s.store.Get(name)
	if err != nil {
		return nil, err
	}
	return rec.SnapshotJob(), nil
}

// ListJobs returns the jobs under a project/location scope in creation
// order.
func (s *Service) ListJobs(ctx context.Context, project, location string) (*batch.ListJobsResponse, error) {
	recs := s.store.List(project, location)
	resp := &batch.ListJobsResponse{Jobs: make([]*batch.Job, len(recs))}
	for i, rec := range recs {
		resp.Jobs[i] = rec.SnapshotJob()
	}
	return resp, nil
}

// DeleteJob marks a job for deletion and returns it in
// DELETION_IN_PROGRESS state. Task transitions halt immediately; the
// record is reaped on the next scheduler tick, so the job is observably
// gone within one polling interval. Deletion is final.
func (s *Service) DeleteJob(ctx context.Context, name string) (*batch.Job, error) {
	rec, err := s.store.Get(name)
	if err != nil {
		return nil, err
	}

	var snap *batch.Job
	wasTerminal := false
	rec.Update(func(r *store.Record) {
		if !r.Deleting {
			wasTerminal = r.Job.State.Terminal()
			r.Deleting = true
			now := time.Now()
			r.Job.State = batch.JobStateDeleting
			r.Job.UpdateTime = now
			r.Job.Status.State = batch.JobStateDeleting
			r.Job.Status.StatusEvents = append(r.Job.Status.StatusEvents, &batch.StatusEvent{
				Type:        "job_deleting",
				Description: "Job deletion requested",
				EventTime:   now,
			})
		}
		snap = r.Job.Clone()
	})

	if s.metrics != nil {
		if _, location, _, err := batch.ParseJobName(name); err == nil {
			s.metrics.RecordJobDeleted(ctx, location, wasTerminal)
		}
	}
	slog.Info("Job deletion requested", "job", name)

	return snap, nil
}

// ListTasks returns snapshots of a job's tasks in index order.
func (s *Service) ListTasks(ctx context.Context, jobName string) (*batch.ListTasksResponse, error) {
	rec, err := s.store.Get(jobName)
	if err != nil {
		return nil, err
	}
	return &batch.ListTasksResponse{Tasks: rec.SnapshotTasks()}, nil
}

// GetTask returns a snapshot of one task by job name and task index.
func (s *Service) GetTask(ctx context.Context, jobName, taskID string) (*batch.Task, error) {
	rec, err := s.store.Get(jobName)
	if err != nil {
		return nil, err
	}

	index, err := strconv.Atoi(taskID)
	if err != nil || index < 0 {
		return nil, apperrors.NotFound("task", jobName+"/tasks/"+taskID)
	}
	tasks := rec.SnapshotTasks()
	if index >= len(tasks) {
		return nil, apperrors.NotFound("task", batch.TaskName(jobName, index))
	}
	return tasks[index], nil
}

// validateSpec checks a job spec and returns the parsed maxRunDuration of
// each task group, indexed like spec.TaskGroups. Does not modify the spec.
func validateSpec(spec *batch.Job) ([]time.Duration, error) {
	if spec == nil || len(spec.TaskGroups) == 0 {
		return nil, apperrors.InvalidArgument("taskGroups", "at least one task group is required")
	}
	if len(spec.TaskGroups) > maxTaskGroups {
		return nil, apperrors.InvalidArgument("taskGroups", fmt.Sprintf("task groups exceed maximum of %d", maxTaskGroups))
	}

	limits := make([]time.Duration, len(spec.TaskGroups))
	for i, group := range spec.TaskGroups {
		if group == nil {
			return nil, apperrors.InvalidArgument("taskGroups", "task group must not be null")
		}
		if group.TaskCount < 1 {
			return nil, apperrors.InvalidArgument("taskCount", fmt.Sprintf("taskCount must be at least 1, got %d", group.TaskCount))
		}
		if group.TaskCount > maxTaskCount {
			return nil, apperrors.InvalidArgument("taskCount", fmt.Sprintf("taskCount exceeds maximum of %d", maxTaskCount))
		}
		if group.Parallelism < 1 {
			return nil, apperrors.InvalidArgument("parallelism", fmt.Sprintf("parallelism must be at least 1, got %d", group.Parallelism))
		}
		if group.TaskSpec != nil && group.TaskSpec.MaxRunDuration != "" {
			d, err := batch.ParseRunDuration(group.TaskSpec.MaxRunDuration)
			if err != nil {
				return nil, apperrors.InvalidArgument("maxRunDuration", err.Error())
			}
			limits[i] = d
		}
	}

	if len(spec.Labels) > maxLabelEntries {
		return nil, apperrors.InvalidArgument("labels", fmt.Sprintf("labels exceed maximum of %d entries", maxLabelEntries))
	}
	for k, v := range spec.Labels {
		if len(k) > maxLabelKeyLen {
			return nil, apperrors.InvalidArgument("labels", fmt.Sprintf("label key exceeds maximum length of %d", maxLabelKeyLen))
		}
		if len(v) > maxLabelValLen {
			return nil, apperrors.InvalidArgument("labels", fmt.Sprintf("label value exceeds maximum length of %d", maxLabelValLen))
		}
	}

	if spec.Notification != nil {
		if err := validateURL(spec.Notification.URL); err != nil {
			return nil, apperrors.InvalidArgument("notification.url", fmt.Sprintf("invalid notification URL: %v", err))
		}
	}

	return limits, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
