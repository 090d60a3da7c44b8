// Package dispatcher delivers lifecycle notification webhooks
// asynchronously, with buffering, retries and per-host circuit
// breaking.
package dispatcher

import (
	"context"
	"errors"

	"fakebatch/pkg/cloudevent"
)

// ErrBufferFull means the event was dropped because the queue is full.
var ErrBufferFull = errors.New("dispatcher buffer full, event dropped")

// Dispatcher accepts events for delivery to notification webhooks.
type Dispatcher interface {
	// Dispatch queues an event without blocking. ErrBufferFull is
	// returned when there is no room left.
	Dispatch(event *Event) error

	// Stats snapshots delivery counters.
	Stats() Stats

	// Close drains the queue and stops the workers. The context
	// deadline bounds the drain.
	Close(ctx context.Context) error
}

// Event pairs a CloudEvent with its delivery target.
type Event struct {
	Payload     *cloudevent.CloudEvent
	Destination string // webhook URL
	SigningKey  string // HMAC key, empty disables signing
	Requeues    int    // circuit-open requeue count, managed by the dispatcher
}

// Stats are cumulative delivery counters plus current queue state.
type Stats struct {
	QueueDepth    int
	Queued        int64
	Delivered     int64
	Failed        int64 // exhausted retries or got a 4xx
	Dropped       int64 // full buffer or too many requeues
	Requeued      int64
	RetriesTotal  int64
	BreakersTotal int
	BreakersOpen  int
}
