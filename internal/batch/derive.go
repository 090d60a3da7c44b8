package batch

import "time"

// DeriveJobState computes a job's state from its tasks' states. The rules
// apply in priority order, first match wins:
//
//  1. any task FAILED          -> FAILED
//  2. all tasks SUCCEEDED      -> SUCCEEDED
//  3. any task RUNNING/ASSIGNED -> RUNNING
//  4. otherwise                -> QUEUED
//
// A job has at least one task, so the all-succeeded rule never fires
// vacuously.
func DeriveJobState(tasks []*Task) JobState {
	if len(tasks) == 0 {
		panic("batch: job has no tasks")
	}

	allSucceeded := true
	anyActive := false
	for _, t := range tasks {
		switch t.Status.State {
		case TaskStateFailed:
			return JobStateFailed
		case TaskStateSucceeded:
		default:
			allSucceeded = false
			if t.Status.State.Active() {
				anyActive = true
			}
		}
	}
	if allSucceeded {
		return JobStateSucceeded
	}
	if anyActive {
		return JobStateRunning
	}
	return JobStateQueued
}

// RunDuration computes the wall-clock span of a finished job:
// max(finishedAt) - min(startedAt) over its tasks. Tasks that never
// started (e.g. cancelled while pending) contribute nothing. Returns
// false if no task ever ran.
func RunDuration(tasks []*Task) (time.Duration, bool) {
	var started, finished time.Time
	for _, t := range tasks {
		if t.Status.StartedAt == nil {
			continue
		}
		if started.IsZero() || t.Status.StartedAt.Before(started) {
			started = *t.Status.StartedAt
		}
		if t.Status.FinishedAt != nil && t.Status.FinishedAt.After(finished) {
			finished = *t.Status.FinishedAt
		}
	}
	if started.IsZero() || finished.IsZero() {
		return 0, false
	}
	return finished.Sub(started), true
}

// CountTaskStates tallies tasks by state, keyed by the state's wire name.
func CountTaskStates(tasks []*Task) map[string]int64 {
	counts := make(map[string]int64)
	for _, t := range tasks {
		counts[string(t.Status.State)]++
	}
	return counts
}
