// Package scheduler implements the lifecycle driver: the background loop
// that advances task and job states over time without caller intervention.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fakebatch/internal/batch"
	"fakebatch/internal/dispatcher"
	"fakebatch/internal/observability"
	"fakebatch/internal/store"
	"fakebatch/pkg/cloudevent"
)

// Driver advances every non-terminal job on a fixed tick. Each tick reaps
// records marked for deletion, then applies the task state machine per job
// under that job's lock:
//
//	PENDING -> ASSIGNED    when fewer than parallelism siblings are active
//	ASSIGNED -> RUNNING    after AssignDelay
//	RUNNING -> SUCCEEDED   after TaskRunTime
//	RUNNING -> FAILED      at the maxRunDuration deadline if TaskRunTime exceeds it
//
// On the first FAILED task of a job all remaining non-terminal tasks are
// cancelled. Job state is recomputed after every transition. Ticking an
// already-terminal job is a no-op, and nothing drives a job past
// DELETION_IN_PROGRESS.
type Driver struct {
	store      *store.Store
	cfg        Config
	dispatcher dispatcher.Dispatcher
	metrics    *observability.Metrics
	logger     *slog.Logger

	// now is swappable so tests can drive ticks deterministically.
	now func() time.Time

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewDriver creates a lifecycle driver over the given store. The
// dispatcher and metrics are optional.
func NewDriver(st *store.Store, cfg Config, d dispatcher.Dispatcher, metrics *observability.Metrics) *Driver {
	return &Driver{
		store:      st,
		cfg:        cfg.withDefaults(),
		dispatcher: d,
		metrics:    metrics,
		logger:     slog.With("component", "scheduler"),
		now:        time.Now,
	}
}

// Start launches the background tick loop.
func (d *Driver) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.running.Store(true)
	d.wg.Add(1)
	go d.run(ctx)
	d.logger.Info("Scheduler started", "tickInterval", d.cfg.TickInterval)
}

// Close stops the tick loop and waits for the in-flight tick to finish.
func (d *Driver) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.running.Store(false)
}

// Ready reports whether the driver loop is running. Satisfies the health
// checker's readiness interface.
func (d *Driver) Ready(ctx context.Context) error {
	if !d.running.Load() {
		return fmt.Errorf("scheduler is not running")
	}
	return nil
}

func (d *Driver) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(context.Background())
		}
	}
}

// Tick inspects every job once: reaps deletions and advances eligible
// tasks. Safe to call concurrently with API requests; exported so tests
// can drive the clock by hand.
func (d *Driver) Tick(ctx context.Context) {
	start := time.Now()
	for _, rec := range d.store.Records() {
		d.advance(ctx, rec)
	}
	if d.metrics != nil {
		d.metrics.RecordSchedulerTick(ctx, time.Since(start).Seconds())
	}
}

// advance updates a single job under its record lock, then dispatches any
// notification events with the lock released.
func (d *Driver) advance(ctx context.Context, rec *store.Record) {
	var (
		events []*cloudevent.CloudEvent
		notify *batch.Notification
		remove string
	)

	rec.Update(func(r *store.Record) {
		if r.Deleting {
			remove = r.Job.Name
			return
		}
		if r.Job.State.Terminal() {
			return
		}
		if len(r.Clocks) != len(r.Tasks) {
			panic(fmt.Sprintf("scheduler: job %s has %d tasks but %d clocks", r.Job.Name, len(r.Tasks), len(r.Clocks)))
		}
		events = d.advanceLocked(ctx, r)
		if r.Job.Notification != nil {
			n := *r.Job.Notification
			notify = &n
		}
	})

	if remove != "" {
		d.store.Remove(remove)
		d.logger.Info("Job removed", "job", remove)
		return
	}

	if notify == nil || d.dispatcher == nil {
		return
	}
	for _, ev := range events {
		if !FilteredEvents(ev.Type, notify.Events) {
			continue
		}
		if err := d.dispatcher.Dispatch(&dispatcher.Event{
			Payload:     ev,
			Destination: notify.URL,
			SigningKey:  notify.Key,
		}); err != nil {
			d.logger.Warn("Notification dropped", "job", ev.Subject, "type", ev.Type, "error", err)
		}
	}
}

// advanceLocked applies one tick's worth of transitions to a job. Caller
// holds the record lock.
func (d *Driver) advanceLocked(ctx context.Context, r *store.Record) []*cloudevent.CloudEvent {
	now := d.now()
	var events []*cloudevent.CloudEvent

	transitioned := false
	failed := false

	offset := 0
	for _, group := range r.Job.TaskGroups {
		n := int(group.TaskCount)
		tasks := r.Tasks[offset : offset+n]
		clocks := r.Clocks[offset : offset+n]
		offset += n

		active := 0
		for _, t := range tasks {
			if t.Status.State.Active() {
				active++
			}
		}

		// Finish running tasks and start assigned ones first, so slots
		// freed this tick are visible to the pending pass below.
		for i, t := range tasks {
			switch t.Status.State {
			case batch.TaskStateAssigned:
				if now.Sub(clocks[i].AssignedAt) >= d.cfg.AssignDelay {
					clocks[i].RunStarted = now
					startedAt := now
					t.Status.StartedAt = &startedAt
					d.transition(ctx, t, batch.TaskStateRunning, "task_started", "Task started running", now)
					events = append(events, newTaskStateEvent(r.Job.Name, t.Name, string(t.Status.State)))
					transitioned = true
				}

			case batch.TaskStateRunning:
				elapsed := now.Sub(clocks[i].RunStarted)
				limit := clocks[i].RunLimit
				if limit > 0 && d.cfg.TaskRunTime > limit {
					// The simulated run would overrun maxRunDuration; the
					// task dies at the deadline instead of succeeding.
					if elapsed >= limit {
						finishedAt := now
						t.Status.FinishedAt = &finishedAt
						d.transition(ctx, t, batch.TaskStateFailed, "task_failed", "Task exceeded maxRunDuration", now)
						events = append(events, newTaskStateEvent(r.Job.Name, t.Name, string(t.Status.State)))
						transitioned = true
						failed = true
						active--
					}
				} else if elapsed >= d.cfg.TaskRunTime {
					finishedAt := now
					t.Status.FinishedAt = &finishedAt
					d.transition(ctx, t, batch.TaskStateSucceeded, "task_completed", "Task completed successfully", now)
					events = append(events, newTaskStateEvent(r.Job.Name, t.Name, string(t.Status.State)))
					transitioned = true
					active--
				}
			}
		}

		for i, t := range tasks {
			if active >= int(group.Parallelism) {
				break
			}
			if t.Status.State == batch.TaskStatePending {
				clocks[i].AssignedAt = now
				d.transition(ctx, t, batch.TaskStateAssigned, "task_assigned", "Task assigned", now)
				events = append(events, newTaskStateEvent(r.Job.Name, t.Name, string(t.Status.State)))
				transitioned = true
				active++
			}
		}
	}

	// Fail fast: the first failed task cancels every remaining
	// non-terminal sibling.
	if failed {
		for _, t := range r.Tasks {
			if !t.Status.State.Terminal() {
				finishedAt := now
				t.Status.FinishedAt = &finishedAt
				d.transition(ctx, t, batch.TaskStateCancelled, "task_cancelled", "Task cancelled after sibling failure", now)
				events = append(events, newTaskStateEvent(r.Job.Name, t.Name, string(t.Status.State)))
			}
		}
	}

	if !transitioned {
		return events
	}

	// Job state is recomputed from the task multiset after every batch of
	// transitions; it is never written from anywhere else.
	offset = 0
	for _, group := range r.Job.TaskGroups {
		n := int(group.TaskCount)
		r.Job.Status.TaskGroups[group.Name].Counts = batch.CountTaskStates(r.Tasks[offset : offset+n])
		offset += n
	}
	r.Job.UpdateTime = now

	newState := batch.DeriveJobState(r.Tasks)
	if newState == r.Job.State {
		return events
	}

	r.Job.State = newState
	r.Job.Status.State = newState
	r.Job.Status.StatusEvents = append(r.Job.Status.StatusEvents, &batch.StatusEvent{
		Type:        "job_state_changed",
		Description: fmt.Sprintf("Job state is now %s", newState),
		EventTime:   now,
	})
	events = append(events, newJobStateEvent(r.Job.Name, r.Job.UID, string(newState)))

	if newState.Terminal() {
		if dur, ok := batch.RunDuration(r.Tasks); ok {
			r.Job.Status.RunDuration = batch.FormatRunDuration(dur)
			if d.metrics != nil {
				if _, location, _, err := batch.ParseJobName(r.Job.Name); err == nil {
					d.metrics.RecordJobCompleted(ctx, location, newState == batch.JobStateSucceeded, dur.Seconds())
				}
			}
		}
		d.logger.Info("Job finished", "job", r.Job.Name, "state", newState, "runDuration", r.Job.Status.RunDuration)
	}

	return events
}

// transition moves a task to state and appends the audit event. Terminal
// tasks never transition again; callers guarantee the source state.
func (d *Driver) transition(ctx context.Context, t *batch.Task, state batch.TaskState, eventType, description string, now time.Time) {
	t.Status.State = state
	t.Status.StatusEvents = append(t.Status.StatusEvents, &batch.StatusEvent{
		Type:        eventType,
		Description: description,
		EventTime:   now,
	})
	if d.metrics != nil {
		d.metrics.RecordTaskTransition(ctx, string(state))
	}
}
