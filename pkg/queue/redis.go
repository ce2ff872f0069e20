package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"WeatherCast/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// promoteScript moves a due message from the retry set to the work list.
// Only the caller whose ZREM succeeds pushes it, so several workers polling
// the same retry set never duplicate a message.
var promoteScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
	return redis.call('LPUSH', KEYS[2], ARGV[1])
end
return 0
`)

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets the prefix of the work, retry and dead-letter keys.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// RedisQueue is a Redis list queue. Publishers only push; consumers run a
// worker pool over the work list plus a retry promoter over a sorted set.
// Messages that fail permanently or exhaust their retries land on a
// dead-letter list together with the last error.
type RedisQueue struct {
	log       *logger.Logger
	cfg       QueueConfig
	client    *redis.Client
	consume   bool
	keyPrefix string
	now       func() time.Time

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func newRedisQueue(lgr *logger.Logger, cfg QueueConfig, client *redis.Client, consume bool, opts ...RedisQueueOption) *RedisQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	rq := &RedisQueue{
		log:       lgr,
		cfg:       cfg,
		client:    client,
		consume:   consume,
		keyPrefix: "weathercast:queue",
		now:       time.Now,
		jobs:      make(map[string]Job),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// NewRedisPublisher creates a started publish-only queue.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	q := newRedisQueue(lgr, QueueConfig{}, client, false, opts...)
	if err := q.Start(); err != nil {
		lgr.Error("redis publisher start failed", logger.Error(err))
	}
	return q
}

// NewRedisConsumer creates a consumer for jobs; call Start to run it.
func NewRedisConsumer(lgr *logger.Logger, cfg QueueConfig, client *redis.Client, jobs []Job, opts ...RedisQueueOption) *RedisQueue {
	q := newRedisQueue(lgr, cfg, client, true, opts...)
	for _, job := range jobs {
		q.RegisterJob(job)
	}
	return q
}

// RegisterJob adds a handler for job.Type(). The first registration wins.
func (r *RedisQueue) RegisterJob(job Job) {
	if !r.consume {
		r.log.Warn("job registration ignored on a publisher", logger.String("job", job.Name()))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis and, on a consumer, starts the workers and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.running = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	if !r.consume {
		r.log.Info("redis publisher started", logger.String("addr", r.client.Options().Addr))
		return nil
	}
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryPromoter()
	r.log.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.Int("retry_limit", r.cfg.RetryLimit),
		logger.String("addr", r.client.Options().Addr))
	return nil
}

// Stop cancels in-flight handlers and waits for the workers until ctx expires.
// A handler interrupted by Stop is put back on the retry set without using
// up an attempt.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	r.log.Info("stopping redis queue")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		r.log.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	}
}

// PublishMessage marshals payload and pushes it onto the work list.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !running {
		return fmt.Errorf("queue not running")
	}
	if r.consume && !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.workKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.log.Debug("queue worker started", logger.Int("worker_id", id))
	for r.ctx.Err() == nil {
		r.next()
	}
	r.log.Debug("queue worker stopped", logger.Int("worker_id", id))
}

func (r *RedisQueue) next() {
	res, err := r.client.BRPop(r.ctx, time.Second, r.workKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		r.log.Error("brpop error", logger.Error(err))
		select {
		case <-r.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}
	if len(res) < 2 {
		return
	}
	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.log.Error("unmarshal message", logger.Error(err))
		return
	}
	r.process(msg)
}

// outcome is what happens to a message after a delivery.
type outcome int

const (
	outcomeDone outcome = iota
	outcomeRetry
	outcomeRequeue
	outcomeDeadLetter
)

func (r *RedisQueue) delivery(msg Message) Delivery {
	return Delivery{
		ID:       msg.ID,
		Type:     msg.Type,
		Payload:  msg.Payload,
		Attempt:  msg.Attempts + 1,
		Final:    msg.Attempts >= r.cfg.RetryLimit,
		Enqueued: msg.Timestamp,
	}
}

func (r *RedisQueue) outcomeOf(d Delivery, err error) outcome {
	switch {
	case err == nil:
		return outcomeDone
	case r.ctx.Err() != nil && errors.Is(err, context.Canceled):
		return outcomeRequeue
	case IsPermanent(err), d.Final:
		return outcomeDeadLetter
	default:
		return outcomeRetry
	}
}

// backoff is the delay before retry number attempt.
func (r *RedisQueue) backoff(attempt int) time.Duration {
	return time.Duration(attempt) * r.cfg.RetryDelay
}

func (r *RedisQueue) process(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("no job for message type", logger.String("type", msg.Type), logger.String("id", msg.ID))
		msg.LastError = "no job registered"
		r.deadLetter(msg)
		return
	}

	d := r.delivery(msg)
	start := time.Now()
	err := job.Handle(r.ctx, d)

	switch r.outcomeOf(d, err) {
	case outcomeDone:
		r.log.Debug("message handled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	case outcomeRequeue:
		r.log.Warn("message interrupted by shutdown", logger.String("id", msg.ID), logger.String("job", job.Name()))
		r.scheduleRetry(msg, r.now())
	case outcomeRetry:
		msg.Attempts++
		msg.LastError = err.Error()
		at := r.now().Add(r.backoff(msg.Attempts))
		r.log.Warn("message failed, retry scheduled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempt", d.Attempt),
			logger.String("retry_at", at.Format(time.RFC3339)),
			logger.Error(err))
		r.scheduleRetry(msg, at)
	case outcomeDeadLetter:
		msg.LastError = err.Error()
		r.log.Error("message dead-lettered",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempt", d.Attempt),
			logger.Bool("permanent", IsPermanent(err)),
			logger.Error(err))
		if h, ok := job.(DeadLetterHandler); ok {
			h.DeadLettered(context.Background(), d, err)
		}
		r.deadLetter(msg)
	}
}

func (r *RedisQueue) scheduleRetry(msg Message, at time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal retry", logger.Error(err))
		return
	}
	if err := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{Score: float64(at.Unix()), Member: data}).Err(); err != nil {
		r.log.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal dead letter", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), r.deadLetterKey(), data).Err(); err != nil {
		r.log.Error("lpush dead letter", logger.Error(err))
	}
}

func (r *RedisQueue) retryPromoter() {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.promoteDue()
		}
	}
}

func (r *RedisQueue) promoteDue() {
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error("fetch due retries", logger.Error(err))
		}
		return
	}
	for _, member := range due {
		if r.ctx.Err() != nil {
			return
		}
		if err := promoteScript.Run(r.ctx, r.client, []string{r.retryKey(), r.workKey()}, member).Err(); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("promote retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) workKey() string       { return r.keyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }
