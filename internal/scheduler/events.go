package scheduler

import (
	"fmt"
	"slices"
	"time"

	"fakebatch/pkg/cloudevent"
)

// Event types for lifecycle notifications
const (
	EventTypeJobState  = "batch.job.state"
	EventTypeTaskState = "batch.task.state"
)

// eventSource identifies this service in outgoing CloudEvents.
const eventSource = "fakebatch"

// FilteredEvents returns true if the event type should be sent based on the
// filter. An empty filter allows all events.
func FilteredEvents(eventType string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	return slices.Contains(filter, eventType)
}

// newJobStateEvent builds a CloudEvent for a job state transition.
func newJobStateEvent(jobName, uid, state string) *cloudevent.CloudEvent {
	return cloudevent.New(EventTypeJobState, eventSource, jobName, eventID(jobName), map[string]any{
		"job":      jobName,
		"uid":      uid,
		"newState": state,
	})
}

// newTaskStateEvent builds a CloudEvent for a task state transition.
func newTaskStateEvent(jobName, taskName, state string) *cloudevent.CloudEvent {
	return cloudevent.New(EventTypeTaskState, eventSource, jobName, eventID(taskName), map[string]any{
		"job":      jobName,
		"task":     taskName,
		"newState": state,
	})
}

func eventID(subject string) string {
	return fmt.Sprintf("%s-%d", subject, time.Now().UnixNano())
}
