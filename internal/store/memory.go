// Package store provides the in-memory registry of jobs and their tasks.
//
// The registry is constructor-injected, never global, so concurrent test
// instances stay independent. A global RWMutex guards only the index; all
// mutation of a job and its tasks happens under that job's own lock, so a
// scheduler tick never blocks readers for longer than one job's update.
package store

import (
	"strings"
	"sync"
	"time"

	"fakebatch/internal/apperrors"
	"fakebatch/internal/batch"
)

// TaskClock holds the scheduler-facing timing state for one task. It
// parallels the task slice of a Record and is never serialized.
type TaskClock struct {
	AssignedAt time.Time     // when the task left PENDING
	RunStarted time.Time     // when the task entered RUNNING
	RunLimit   time.Duration // maxRunDuration of the owning group, 0 = unbounded
}

// Record holds one job, its tasks, and their scheduling clocks. All fields
// are guarded by the record's lock; use Update and the snapshot helpers.
type Record struct {
	mu sync.Mutex

	Job    *batch.Job
	Tasks  []*batch.Task
	Clocks []TaskClock

	// Deleting marks the record for removal on the next scheduler tick.
	// Once set it never clears; a deleted job cannot be resurrected by an
	// in-flight transition.
	Deleting bool
}

// Update runs fn with the record locked. State and task snapshots observed
// inside fn are mutually consistent.
func (r *Record) Update(fn func(r *Record)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

// SnapshotJob returns a deep copy of the job taken under the record lock.
func (r *Record) SnapshotJob() *batch.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Job.Clone()
}

// SnapshotTasks returns deep copies of the tasks taken under the record lock.
func (r *Record) SnapshotTasks() []*batch.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]*batch.Task, len(r.Tasks))
	for i, t := range r.Tasks {
		tasks[i] = t.Clone()
	}
	return tasks
}

// Store is the in-memory mapping of job name to record.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string // creation order, for stable listing
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]*Record),
	}
}

// Put registers a new record under its job name. Fails with AlreadyExists
// if the name is taken; the store is left untouched on failure.
func (s *Store) Put(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := rec.Job.Name
	if _, exists := s.records[name]; exists {
		return apperrors.AlreadyExists("job", name)
	}
	s.records[name] = rec
	s.order = append(s.order, name)
	return nil
}

// Get retrieves a record by job name.
func (s *Store) Get(name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[name]
	if !exists {
		return nil, apperrors.NotFound("job", name)
	}
	return rec, nil
}

// List returns the records under a project/location scope in creation
// order. The returned slice is a point-in-time snapshot of the index; no
// lock is held across the caller's iteration.
func (s *Store) List(project, location string) []*Record {
	prefix := batch.ListPrefix(project, location)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []*Record
	for _, name := range s.order {
		if strings.HasPrefix(name, prefix) {
			recs = append(recs, s.records[name])
		}
	}
	return recs
}

// Records returns every record in creation order, for the scheduler tick.
func (s *Store) Records() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*Record, 0, len(s.records))
	for _, name := range s.order {
		recs = append(recs, s.records[name])
	}
	return recs
}

// Remove deletes a record and its tasks together. Removing an absent name
// is a no-op, so removal is idempotent.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[name]; !exists {
		return
	}
	delete(s.records, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
