package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/solarix/connector/pkg/connector"
)

// Config holds queue configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "connector:queue:").
	KeyPrefix string

	// Name distinguishes this queue's keys from other queues sharing the
	// same Redis (default: "stripe-webhook").
	Name string

	// Attempts is the maximum number of attempts per job (default: 10).
	Attempts int

	// Backoff is "exponential" or "fixed" (default: "exponential").
	Backoff string

	// Delay is the base delay between attempts (default: 15s).
	Delay time.Duration

	// DedupTTL bounds how long an event id blocks re-enqueueing
	// (default: 7 days; 0 keeps dedup keys forever).
	DedupTTL time.Duration
}

// DefaultConfig returns a Config with the connector's defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "connector:queue:",
		Name:      "stripe-webhook",
		Attempts:  10,
		Backoff:   "exponential",
		Delay:     15 * time.Second,
		DedupTTL:  7 * 24 * time.Hour,
	}
}

// Queue is a durable Redis-backed job queue with idempotent enqueue and
// delayed retry scheduling. Atomic transitions go through Lua scripts.
type Queue struct {
	client  redis.UniversalClient
	config  Config
	scripts map[string]*redis.Script
}

// New creates a queue.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Queue, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "connector:queue:"
	}
	if config.Name == "" {
		config.Name = "stripe-webhook"
	}
	if config.Attempts <= 0 {
		config.Attempts = 10
	}
	if config.Backoff == "" {
		config.Backoff = "exponential"
	}
	if config.Delay <= 0 {
		config.Delay = 15 * time.Second
	}

	q := &Queue{
		client:  client,
		config:  config,
		scripts: make(map[string]*redis.Script),
	}
	q.loadScripts()
	return q, nil
}

func (q *Queue) loadScripts() {
	// Enqueue with event-id dedup. Returns 1 when queued, 0 on duplicate.
	q.scripts["enqueue"] = redis.NewScript(`
		local seenKey = KEYS[1]
		local jobKey = KEYS[2]
		local pendingKey = KEYS[3]
		local jobID = ARGV[1]
		local jobData = ARGV[2]
		local seenTTL = tonumber(ARGV[3])

		if redis.call('EXISTS', seenKey) == 1 then
			return 0
		end

		redis.call('SET', seenKey, jobID)
		if seenTTL > 0 then
			redis.call('EXPIRE', seenKey, seenTTL)
		end

		redis.call('SET', jobKey, jobData)
		redis.call('LPUSH', pendingKey, jobID)
		return 1
	`)

	// Promote delayed jobs whose ready time has passed.
	q.scripts["promote"] = redis.NewScript(`
		local delayedKey = KEYS[1]
		local pendingKey = KEYS[2]
		local nowMillis = ARGV[1]

		local due = redis.call('ZRANGEBYSCORE', delayedKey, '-inf', nowMillis, 'LIMIT', 0, 100)
		for _, jobID in ipairs(due) do
			redis.call('ZREM', delayedKey, jobID)
			redis.call('LPUSH', pendingKey, jobID)
		end
		return #due
	`)

	// Reschedule a failed job: persist updated metadata, park it in the
	// delayed set, release the active entry.
	q.scripts["retry"] = redis.NewScript(`
		local jobKey = KEYS[1]
		local delayedKey = KEYS[2]
		local activeKey = KEYS[3]
		local jobID = ARGV[1]
		local jobData = ARGV[2]
		local readyAtMillis = ARGV[3]

		redis.call('SET', jobKey, jobData)
		redis.call('ZADD', delayedKey, readyAtMillis, jobID)
		redis.call('LREM', activeKey, 1, jobID)
		return 1
	`)
}

func (q *Queue) key(suffix string) string {
	return q.config.KeyPrefix + q.config.Name + ":" + suffix
}

func (q *Queue) pendingKey() string      { return q.key("pending") }
func (q *Queue) activeKey() string       { return q.key("active") }
func (q *Queue) delayedKey() string      { return q.key("delayed") }
func (q *Queue) jobKey(id string) string { return q.key("job:" + id) }
func (q *Queue) seenKey(ev string) string {
	return q.key("seen:" + ev)
}

// Enqueue durably queues a billing event and returns the job id. The
// event id is the dedup key: a second enqueue of the same event returns
// connector.ErrDuplicateJob and queues nothing.
func (q *Queue) Enqueue(ctx context.Context, ev connector.BillingEvent) (string, error) {
	if ev.ID == "" {
		return "", fmt.Errorf("enqueue: billing event has no id")
	}

	job := Job{
		ID:          uuid.NewString(),
		Event:       ev,
		Attempts:    0,
		MaxAttempts: q.config.Attempts,
		EnqueuedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("enqueue: marshaling job: %w", err)
	}

	keys := []string{q.seenKey(ev.ID), q.jobKey(job.ID), q.pendingKey()}
	args := []any{job.ID, string(data), int64(q.config.DedupTTL.Seconds())}

	queued, err := q.scripts["enqueue"].Run(ctx, q.client, keys, args...).Int()
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	if queued == 0 {
		return "", fmt.Errorf("event %s: %w", ev.ID, connector.ErrDuplicateJob)
	}
	return job.ID, nil
}

// Dequeue promotes due retries, then blocks up to timeout for the next
// pending job, moving it to the active list. Returns (nil, nil) when the
// wait times out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}

	jobID, err := q.client.BRPopLPush(ctx, q.pendingKey(), q.activeKey(), timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	data, err := q.client.Get(ctx, q.jobKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		// Metadata vanished (manual cleanup or expiry); drop the orphan.
		q.client.LRem(ctx, q.activeKey(), 1, jobID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: reading job %s: %w", jobID, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		q.client.LRem(ctx, q.activeKey(), 1, jobID)
		return nil, fmt.Errorf("dequeue: decoding job %s: %w", jobID, err)
	}
	return &job, nil
}

// Complete acknowledges a finished job and removes its metadata. The dedup
// key stays behind so provider re-deliveries remain no-ops.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.activeKey(), 1, job.ID)
	pipe.Del(ctx, q.jobKey(job.ID))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	return nil
}

// Retry reschedules a failed job after its backoff delay.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) error {
	job.LastError = cause.Error()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("retry job %s: marshaling: %w", job.ID, err)
	}

	readyAt := time.Now().Add(q.BackoffDelay(job.Attempts)).UnixMilli()
	keys := []string{q.jobKey(job.ID), q.delayedKey(), q.activeKey()}
	args := []any{job.ID, string(data), readyAt}

	if err := q.scripts["retry"].Run(ctx, q.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("retry job %s: %w", job.ID, err)
	}
	return nil
}

// Fail removes a terminally failed job. Terminal failures are surfaced by
// the worker's logging and metrics, not kept in Redis.
func (q *Queue) Fail(ctx context.Context, job *Job) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.activeKey(), 1, job.ID)
	pipe.Del(ctx, q.jobKey(job.ID))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	return nil
}

// RecoverStalled moves jobs a crashed worker left on the active list back
// to pending and returns their ids.
func (q *Queue) RecoverStalled(ctx context.Context) ([]string, error) {
	var recovered []string
	for {
		jobID, err := q.client.RPopLPush(ctx, q.activeKey(), q.pendingKey()).Result()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("recover stalled: %w", err)
		}
		recovered = append(recovered, jobID)
	}
}

// BackoffDelay returns the delay before the given attempt number retries.
func (q *Queue) BackoffDelay(attempts int) time.Duration {
	if q.config.Backoff == "fixed" || attempts <= 1 {
		return q.config.Delay
	}
	d := q.config.Delay << (attempts - 1)
	if d < q.config.Delay {
		// Shift overflow on absurd attempt counts.
		return q.config.Delay
	}
	return d
}

func (q *Queue) promoteDue(ctx context.Context) error {
	keys := []string{q.delayedKey(), q.pendingKey()}
	args := []any{strconv.FormatInt(time.Now().UnixMilli(), 10)}
	if err := q.scripts["promote"].Run(ctx, q.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("promote due jobs: %w", err)
	}
	return nil
}
