package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarix/connector/pkg/connector"
)

// countingProcessor fails the first failures calls, then succeeds.
type countingProcessor struct {
	mu       sync.Mutex
	calls    int
	failures int
	done     chan struct{}
}

func (p *countingProcessor) Process(_ context.Context, _ connector.BillingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("ledger unavailable")
	}
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	return nil
}

func (p *countingProcessor) HandlerName(connector.EventKind) string { return "testHandler" }

func (p *countingProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestWorkerProcessesJob(t *testing.T) {
	q, client := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &countingProcessor{done: make(chan struct{})}
	worker := NewWorker(q, proc, WorkerConfig{Concurrency: 1})

	_, err := q.Enqueue(ctx, testEvent("evt_worker"))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(ctx) }()

	select {
	case <-proc.done:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}

	cancel()
	err = <-errCh
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, proc.callCount())

	// Job metadata was cleaned up.
	keys, err := client.Keys(context.Background(), "test:queue:*:job:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWorkerRetriesFailedJob(t *testing.T) {
	q, _ := newTestQueue(t)
	q.config.Backoff = "fixed"
	q.config.Delay = 30 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &countingProcessor{failures: 2, done: make(chan struct{})}
	worker := NewWorker(q, proc, WorkerConfig{Concurrency: 1})

	_, err := q.Enqueue(ctx, testEvent("evt_flaky"))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(ctx) }()

	select {
	case <-proc.done:
	case <-time.After(10 * time.Second):
		t.Fatal("job never succeeded")
	}

	cancel()
	<-errCh

	assert.Equal(t, 3, proc.callCount())
}

func TestWorkerRecoversStalledOnStart(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := q.Enqueue(ctx, testEvent("evt_crashed"))
	require.NoError(t, err)

	// Simulate a crashed worker by parking the job on the active list.
	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	proc := &countingProcessor{done: make(chan struct{})}
	worker := NewWorker(q, proc, WorkerConfig{Concurrency: 1})

	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(ctx) }()

	select {
	case <-proc.done:
	case <-time.After(5 * time.Second):
		t.Fatal("stalled job was not recovered")
	}

	cancel()
	<-errCh

	assert.Equal(t, 1, proc.callCount())
}
