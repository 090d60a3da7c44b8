// Package batch defines the job and task data model for the batch emulator.
//
// The wire shapes follow the Google Cloud Batch v1 API surface so that
// clients built against the real service work unchanged against the
// emulator.
package batch

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JobState represents the state of a batch job.
//
// Job state is always derived from the states of the job's tasks (see
// DeriveJobState); callers never set it directly.
type JobState string

const (
	JobStateUnspecified JobState = "STATE_UNSPECIFIED"
	JobStateQueued      JobState = "QUEUED"
	JobStateScheduled   JobState = "SCHEDULED"
	JobStateRunning     JobState = "RUNNING"
	JobStateSucceeded   JobState = "SUCCEEDED"
	JobStateFailed      JobState = "FAILED"
	JobStateDeleting    JobState = "DELETION_IN_PROGRESS"
)

// Terminal reports whether no further transition can occur from s.
// DELETION_IN_PROGRESS is not terminal in the state-machine sense but
// jobs in it are never advanced either.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// TaskState represents the state of a task within a job.
type TaskState string

const (
	TaskStateUnspecified TaskState = "STATE_UNSPECIFIED"
	TaskStatePending     TaskState = "PENDING"
	TaskStateAssigned    TaskState = "ASSIGNED"
	TaskStateRunning     TaskState = "RUNNING"
	TaskStateSucceeded   TaskState = "SUCCEEDED"
	TaskStateFailed      TaskState = "FAILED"
	TaskStateCancelled   TaskState = "CANCELLED"
)

// Terminal reports whether no further transition can occur from s.
func (s TaskState) Terminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed || s == TaskStateCancelled
}

// Active reports whether s counts against the job's parallelism limit.
func (s TaskState) Active() bool {
	return s == TaskStateAssigned || s == TaskStateRunning
}

// Job represents a batch job.
type Job struct {
	Name             string            `json:"name"`
	UID              string            `json:"uid"`
	Priority         int32             `json:"priority,omitempty"`
	State            JobState          `json:"state"`
	CreateTime       time.Time         `json:"createTime"`
	UpdateTime       time.Time         `json:"updateTime"`
	Labels           map[string]string `json:"labels,omitempty"`
	TaskGroups       []*TaskGroup      `json:"taskGroups"`
	AllocationPolicy *AllocationPolicy `json:"allocationPolicy,omitempty"`
	LogsPolicy       *LogsPolicy       `json:"logsPolicy,omitempty"`
	Notification     *Notification     `json:"notification,omitempty"`
	Status           *JobStatus        `json:"status,omitempty"`
}

// TaskGroup represents a group of tasks with the same specification.
type TaskGroup struct {
	Name        string    `json:"name"`
	TaskSpec    *TaskSpec `json:"taskSpec"`
	TaskCount   int64     `json:"taskCount,omitempty"`
	Parallelism int64     `json:"parallelism,omitempty"`
}

// TaskSpec defines the specification for tasks in a task group.
type TaskSpec struct {
	ComputeResource *ComputeResource `json:"computeResource,omitempty"`
	Runnables       []*Runnable      `json:"runnables"`
	MaxRunDuration  string           `json:"maxRunDuration,omitempty"`
	Environment     *Environment     `json:"environment,omitempty"`
}

// Runnable represents an executable unit within a task.
type Runnable struct {
	Container   *Container   `json:"container,omitempty"`
	Script      *Script      `json:"script,omitempty"`
	Barrier     *Barrier     `json:"barrier,omitempty"`
	DisplayName string       `json:"displayName,omitempty"`
	Background  bool         `json:"background,omitempty"`
	AlwaysRun   bool         `json:"alwaysRun,omitempty"`
	Environment *Environment `json:"environment,omitempty"`
	Timeout     string       `json:"timeout,omitempty"`
}

// Container represents a container configuration. The emulator records it
// but never runs it.
type Container struct {
	ImageURI   string   `json:"imageUri"`
	Commands   []string `json:"commands,omitempty"`
	Entrypoint string   `json:"entrypoint,omitempty"`
	Options    string   `json:"options,omitempty"`
}

// Script represents a script to be executed.
type Script struct {
	Path string `json:"path,omitempty"`
	Text string `json:"text,omitempty"`
}

// Barrier represents a synchronization barrier.
type Barrier struct {
	Name string `json:"name"`
}

// ComputeResource defines the compute resources requested by a task.
type ComputeResource struct {
	CPUMilli    int64 `json:"cpuMilli,omitempty"`
	MemoryMib   int64 `json:"memoryMib,omitempty"`
	GPUCount    int64 `json:"gpuCount,omitempty"`
	BootDiskMib int64 `json:"bootDiskMib,omitempty"`
}

// Environment defines environment variables for a task.
type Environment struct {
	Variables map[string]string `json:"variables,omitempty"`
}

// AllocationPolicy defines resource allocation policies for a job.
type AllocationPolicy struct {
	Location *LocationPolicy   `json:"location,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// LocationPolicy defines location constraints for job execution.
type LocationPolicy struct {
	AllowedLocations []string `json:"allowedLocations,omitempty"`
}

// LogsPolicy defines logging configuration for a job.
type LogsPolicy struct {
	Destination string `json:"destination,omitempty"`
	LogsPath    string `json:"logsPath,omitempty"`
}

// Notification configures webhook delivery of lifecycle events.
// Events are CloudEvents POSTed to URL; an empty Events filter receives
// everything.
type Notification struct {
	URL    string   `json:"url"`
	Events []string `json:"events,omitempty"`
	Key    string   `json:"key,omitempty"` // HMAC signing key
}

// JobStatus represents the current status of a job.
type JobStatus struct {
	State        JobState                    `json:"state"`
	StatusEvents []*StatusEvent              `json:"statusEvents,omitempty"`
	TaskGroups   map[string]*TaskGroupStatus `json:"taskGroups,omitempty"`
	RunDuration  string                      `json:"runDuration,omitempty"`
}

// StatusEvent represents a state change event.
type StatusEvent struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	EventTime   time.Time `json:"eventTime"`
}

// TaskGroupStatus holds per-state task counts for one task group.
type TaskGroupStatus struct {
	Counts map[string]int64 `json:"counts"`
}

// Task represents an individual task within a job.
type Task struct {
	Name   string      `json:"name"`
	Status *TaskStatus `json:"status"`
}

// TaskStatus represents the current status of a task.
type TaskStatus struct {
	State        TaskState      `json:"state"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
	FinishedAt   *time.Time     `json:"finishedAt,omitempty"`
	StatusEvents []*StatusEvent `json:"statusEvents,omitempty"`
}

// ListJobsResponse is the response for listing jobs.
type ListJobsResponse struct {
	Jobs          []*Job `json:"jobs"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// ListTasksResponse is the response for listing tasks.
type ListTasksResponse struct {
	Tasks         []*Task `json:"tasks"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// ParseRunDuration parses an API duration string such as "3600s" or
// "0.5s". Only the seconds-suffixed form is accepted; anything else is a
// caller error.
func ParseRunDuration(s string) (time.Duration, error) {
	num, ok := strings.CutSuffix(s, "s")
	if !ok || num == "" {
		return 0, fmt.Errorf("duration %q must be a number of seconds with an %q suffix", s, "s")
	}
	secs, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("duration %q must be a number of seconds with an %q suffix", s, "s")
	}
	if secs < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// FormatRunDuration renders d in the API's seconds-suffixed form.
func FormatRunDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}
