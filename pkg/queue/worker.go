package queue

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solarix/connector/pkg/connector"
)

const dequeueWait = time.Second

// Processor handles a dequeued billing event. Unknown event kinds must
// return nil: an ignored event is a successful no-op, never a job failure.
type Processor interface {
	Process(ctx context.Context, ev connector.BillingEvent) error
	HandlerName(kind connector.EventKind) string
}

// WorkerConfig configures the worker pool.
type WorkerConfig struct {
	// Concurrency is the fixed pool size (default: 4).
	Concurrency int

	Logger  connector.Logger
	Metrics connector.Metrics
}

// Worker runs a fixed-size pool that pulls jobs from the queue and hands
// them to the processor. Each worker runs one job to completion before
// taking the next; jobs across workers run concurrently.
type Worker struct {
	queue       *Queue
	proc        Processor
	concurrency int
	log         connector.Logger
	metrics     connector.Metrics
}

// NewWorker creates a worker pool over the queue.
func NewWorker(q *Queue, proc Processor, cfg WorkerConfig) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &connector.NoopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &connector.NoopMetrics{}
	}
	return &Worker{
		queue:       q,
		proc:        proc,
		concurrency: concurrency,
		log:         logger,
		metrics:     metrics,
	}
}

// Run blocks until ctx is canceled. Jobs stranded on the active list by a
// previous crash are recovered first.
func (w *Worker) Run(ctx context.Context) error {
	stalled, err := w.queue.RecoverStalled(ctx)
	if err != nil {
		return err
	}
	for _, jobID := range stalled {
		w.log.Debug("queue job stalled",
			connector.Field{Key: "event", Value: "stalled"},
			connector.Field{Key: "job_id", Value: jobID},
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return w.loop(ctx)
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("queue dequeue failed", connector.Field{Key: "error", Value: err.Error()})
			time.Sleep(dequeueWait)
			continue
		}
		if job == nil {
			continue
		}

		w.runJob(ctx, job)
	}
}

// runJob executes one attempt and records the outcome. The processor and
// its collaborators log business failures with their own context; this is
// the only place queue-level telemetry is captured.
func (w *Worker) runJob(ctx context.Context, job *Job) {
	kind := string(job.Event.Kind)
	handler := w.proc.HandlerName(job.Event.Kind)
	job.Attempts++

	w.log.Debug("queue job active",
		connector.Field{Key: "event", Value: "active"},
		connector.Field{Key: "job_id", Value: job.ID},
		connector.Field{Key: "event_id", Value: job.Event.ID},
		connector.Field{Key: "handler", Value: handler},
		connector.Field{Key: "attempt", Value: job.Attempts},
	)

	start := time.Now()
	err := w.proc.Process(ctx, job.Event)
	w.metrics.RecordJobDuration(kind, time.Since(start))

	if err == nil {
		w.metrics.RecordJob(kind, "completed")
		if ackErr := w.queue.Complete(ctx, job); ackErr != nil {
			w.log.Error("queue job ack failed",
				connector.Field{Key: "job_id", Value: job.ID},
				connector.Field{Key: "error", Value: ackErr.Error()},
			)
		}
		return
	}

	if job.Attempts >= job.MaxAttempts {
		w.metrics.RecordJob(kind, "failed")
		w.log.Error("queue job failed terminally",
			connector.Field{Key: "job_id", Value: job.ID},
			connector.Field{Key: "event_id", Value: job.Event.ID},
			connector.Field{Key: "handler", Value: handler},
			connector.Field{Key: "attempts", Value: job.Attempts},
			connector.Field{Key: "error", Value: err.Error()},
		)
		if failErr := w.queue.Fail(ctx, job); failErr != nil {
			w.log.Error("queue job cleanup failed",
				connector.Field{Key: "job_id", Value: job.ID},
				connector.Field{Key: "error", Value: failErr.Error()},
			)
		}
		return
	}

	w.metrics.RecordJob(kind, "retried")
	w.log.Warn("queue job retry scheduled",
		connector.Field{Key: "job_id", Value: job.ID},
		connector.Field{Key: "event_id", Value: job.Event.ID},
		connector.Field{Key: "handler", Value: handler},
		connector.Field{Key: "attempt", Value: job.Attempts},
		connector.Field{Key: "delay", Value: w.queue.BackoffDelay(job.Attempts).String()},
		connector.Field{Key: "error", Value: err.Error()},
	)
	if retryErr := w.queue.Retry(ctx, job, err); retryErr != nil {
		w.log.Error("queue job reschedule failed",
			connector.Field{Key: "job_id", Value: job.ID},
			connector.Field{Key: "error", Value: retryErr.Error()},
		)
	}
}
