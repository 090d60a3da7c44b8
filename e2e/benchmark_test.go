//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fakebatch/internal/dispatcher"
	"fakebatch/internal/testutil"
	"fakebatch/pkg/cloudevent"
)

// BenchmarkCreateJob stress tests concurrent job creation.
// Run with: go test -tags=e2e -run=^$ -bench=BenchmarkCreateJob ./e2e/
func BenchmarkCreateJob(b *testing.B) {
	server, cleanup := getTestURL(b)
	defer cleanup()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		client := &http.Client{Timeout: 30 * time.Second}
		i := 0
		for pb.Next() {
			i++
			jobID := fmt.Sprintf("bench-%d-%d", time.Now().UnixNano(), i)

			raw, _ := json.Marshal(jobSpec("3600s"))
			resp, err := client.Post(server+"/v1/projects/bench/locations/us-central1/jobs?job_id="+jobID, "application/json", bytes.NewReader(raw))
			if err != nil {
				b.Errorf("Failed to create job: %v", err)
				continue
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				b.Errorf("Expected 200, got %d", resp.StatusCode)
			}
		}
	})
}

// TestNotificationThroughput measures how many notifications the dispatcher can handle.
func TestNotificationThroughput(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping throughput test in short mode")
	}

	const (
		numEvents       = 10000
		concurrency     = 100
		deliveryTimeout = 30 * time.Second
	)

	var received atomic.Int64

	notifyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer notifyServer.Close()

	d := dispatcher.NewMemory(dispatcher.MemoryConfig{
		BufferSize:  numEvents,
		Workers:     concurrency,
		HTTPTimeout: 5 * time.Second,
	}, nil)
	defer d.Close(context.Background())

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	dispatchStart := time.Now()
	for i := 0; i < numEvents; i++ {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(id int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			event := &dispatcher.Event{
				Payload:     newTestEvent(fmt.Sprintf("event-%d", id)),
				Destination: notifyServer.URL,
			}
			if err := d.Dispatch(event); err != nil {
				t.Logf("Dispatch error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	dispatchDuration := time.Since(dispatchStart)

	testutil.WaitForCount(t, &received, numEvents, testutil.WithTimeout(deliveryTimeout))
	totalDuration := time.Since(dispatchStart)

	stats := d.Stats()
	receivedCount := received.Load()

	t.Logf("=== Notification Throughput Test ===")
	t.Logf("Dispatched:    %d events in %v", numEvents, dispatchDuration)
	t.Logf("Dispatch rate: %.0f events/sec", float64(numEvents)/dispatchDuration.Seconds())
	t.Logf("Received:      %d/%d notifications", receivedCount, numEvents)
	t.Logf("Delivered:     %d", stats.Delivered)
	t.Logf("Failed:        %d", stats.Failed)
	t.Logf("Dropped:       %d", stats.Dropped)
	t.Logf("Total time:    %v", totalDuration)
	t.Logf("Throughput:    %.0f notifications/sec", float64(receivedCount)/totalDuration.Seconds())

	if receivedCount < int64(numEvents*0.99) {
		t.Errorf("Expected at least 99%% delivery, got %.1f%%", float64(receivedCount)/float64(numEvents)*100)
	}
}

// TestDispatcherUnderLoad tests dispatcher behavior with a mix of fast and slow receivers.
func TestDispatcherUnderLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping load test in short mode")
	}

	const (
		eventRate     = 1000 // events per second target
		duration      = 10   // seconds
		totalEvents   = eventRate * duration
		slowPercent   = 5   // percentage of slow receivers
		slowLatencyMs = 500 // latency for slow receivers
	)

	var received, slow atomic.Int64

	notifyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if received.Add(1)%int64(100/slowPercent) == 0 {
			slow.Add(1)
			time.Sleep(time.Duration(slowLatencyMs) * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer notifyServer.Close()

	d := dispatcher.NewMemory(dispatcher.MemoryConfig{
		BufferSize:  totalEvents,
		Workers:     50,
		HTTPTimeout: 2 * time.Second,
	}, nil)
	defer d.Close(context.Background())

	ticker := time.NewTicker(time.Second / time.Duration(eventRate))
	defer ticker.Stop()

	start := time.Now()
	var dispatched atomic.Int64

	go func() {
		for i := 0; i < totalEvents; i++ {
			<-ticker.C
			event := &dispatcher.Event{
				Payload:     newTestEvent(fmt.Sprintf("load-%d", i)),
				Destination: notifyServer.URL,
			}
			if err := d.Dispatch(event); err == nil {
				dispatched.Add(1)
			}
		}
	}()

	// Wait for all events to be dispatched, then wait for delivery
	testutil.WaitFor(t, func() bool {
		return dispatched.Load() >= int64(totalEvents)
	}, testutil.WithTimeout(time.Duration(duration+5)*time.Second))

	testutil.WaitFor(t, func() bool {
		stats := d.Stats()
		return stats.Delivered+stats.Failed+stats.Dropped >= dispatched.Load()
	}, testutil.WithTimeout(10*time.Second))

	stats := d.Stats()
	elapsed := time.Since(start)

	t.Logf("=== Dispatcher Load Test ===")
	t.Logf("Target rate:   %d events/sec for %ds", eventRate, duration)
	t.Logf("Dispatched:    %d events", dispatched.Load())
	t.Logf("Received:      %d notifications", received.Load())
	t.Logf("Slow calls:    %d (%.1f%%)", slow.Load(), float64(slow.Load())/float64(received.Load())*100)
	t.Logf("Delivered:     %d", stats.Delivered)
	t.Logf("Failed:        %d", stats.Failed)
	t.Logf("Dropped:       %d", stats.Dropped)
	t.Logf("Retries:       %d", stats.RetriesTotal)
	t.Logf("Requeued:      %d", stats.Requeued)
	t.Logf("Elapsed:       %v", elapsed)
	t.Logf("Actual rate:   %.0f events/sec", float64(received.Load())/elapsed.Seconds())

	dispatchedCount := dispatched.Load()
	receivedCount := received.Load()

	if dispatchedCount < int64(totalEvents*0.9) {
		t.Errorf("Expected to dispatch at least 90%% of events, got %d/%d", dispatchedCount, totalEvents)
	}

	deliveryRate := float64(receivedCount) / float64(dispatchedCount) * 100
	if deliveryRate < 90 {
		t.Errorf("Expected at least 90%% delivery rate, got %.1f%%", deliveryRate)
	}

	if stats.Dropped > int64(totalEvents*0.05) {
		t.Errorf("Too many dropped events: %d (max 5%% of %d)", stats.Dropped, totalEvents)
	}
}

func newTestEvent(id string) *cloudevent.CloudEvent {
	return cloudevent.New("batch.job.state", "fakebatch", "bench", id, map[string]any{"test": true})
}
