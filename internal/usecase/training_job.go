package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"WeatherCast/internal/domain/models"
	"WeatherCast/pkg/cache"
	applogger "WeatherCast/pkg/logger"
	"WeatherCast/pkg/queue"

	"github.com/google/uuid"
)

const TrainJobType = "train_model"

var (
	ErrJobNotFound    = errors.New("training job not found")
	ErrTrainingLocked = errors.New("model is already being trained")
)

type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobRetrying  JobState = "retrying"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// JobStatus is the externally visible record of a training job.
type JobStatus struct {
	ID        string              `json:"id"`
	State     JobState            `json:"state"`
	Params    TrainParams         `json:"params"`
	Result    *models.TrainResult `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
	Attempts  int                 `json:"attempts,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// TrainJobPayload is what travels through the queue.
type TrainJobPayload struct {
	JobID  string      `json:"job_id"`
	Params TrainParams `json:"params"`
}

type TrainingJobConfig struct {
	LockTTL   time.Duration
	StatusTTL time.Duration
}

// TrainingJob runs queued training requests. Only one run per model name
// proceeds at a time; the lock lives in the shared cache so it holds across
// worker processes.
type TrainingJob struct {
	train *TrainUseCase
	state cache.Service
	cfg   TrainingJobConfig
	log   *applogger.Logger
}

func NewTrainingJob(train *TrainUseCase, state cache.Service, cfg TrainingJobConfig, log *applogger.Logger) *TrainingJob {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 24 * time.Hour
	}
	return &TrainingJob{train: train, state: state, cfg: cfg, log: log}
}

func (j *TrainingJob) Name() string { return "training-job" }
func (j *TrainingJob) Type() string { return TrainJobType }

// Handle implements queue.Job. A data error or an undecodable payload is
// permanent; anything else is retried by the queue and the job shows as
// retrying until the last attempt.
func (j *TrainingJob) Handle(ctx context.Context, d queue.Delivery) error {
	p, err := queue.Decode[TrainJobPayload](d.Payload)
	if err != nil {
		return queue.Permanent(err)
	}
	_, err = j.run(ctx, p.JobID, p.Params, d.Attempt, d.Final)
	if models.IsDataError(err) {
		return queue.Permanent(err)
	}
	return err
}

// DeadLettered records the job as failed once the queue gives up on it.
func (j *TrainingJob) DeadLettered(ctx context.Context, d queue.Delivery, cause error) {
	p, err := queue.Decode[TrainJobPayload](d.Payload)
	if err != nil || p.JobID == "" {
		return
	}
	j.save(ctx, &JobStatus{
		ID:       p.JobID,
		State:    JobFailed,
		Params:   p.Params,
		Error:    cause.Error(),
		Attempts: d.Attempt,
	})
}

// Run trains under the per-model lock and records the outcome. A failure
// is final.
func (j *TrainingJob) Run(ctx context.Context, id string, p TrainParams) (*JobStatus, error) {
	return j.run(ctx, id, p, 1, true)
}

func (j *TrainingJob) run(ctx context.Context, id string, p TrainParams, attempt int, final bool) (*JobStatus, error) {
	p.ModelName = j.train.ModelName(p.ModelName)
	lockKey := cache.GenerateKey("train:lock", p.ModelName)
	ok, err := j.state.TryLock(ctx, lockKey, j.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire training lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTrainingLocked, p.ModelName)
	}
	defer func() {
		if err := j.state.Unlock(context.Background(), lockKey); err != nil {
			j.log.Warn("release training lock", applogger.String("model", p.ModelName), applogger.Error(err))
		}
	}()

	j.save(ctx, &JobStatus{ID: id, State: JobRunning, Params: p, Attempts: attempt})
	res, err := j.train.Train(ctx, p)
	st := &JobStatus{ID: id, Params: p, Result: res, State: JobSucceeded, Attempts: attempt}
	if err != nil {
		st.State = JobRetrying
		if final || models.IsDataError(err) {
			st.State = JobFailed
		}
		st.Error = err.Error()
	}
	j.save(ctx, st)

	j.log.Info("training job finished",
		applogger.String("job_id", id),
		applogger.String("model", p.ModelName),
		applogger.String("state", string(st.State)),
	)
	return st, err
}

// Status returns the last recorded state of job id.
func (j *TrainingJob) Status(ctx context.Context, id string) (*JobStatus, error) {
	var st JobStatus
	if err := j.state.Get(ctx, statusKey(id), &st); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (j *TrainingJob) save(ctx context.Context, st *JobStatus) {
	st.UpdatedAt = time.Now().UTC()
	if err := j.state.Set(ctx, statusKey(st.ID), st, j.cfg.StatusTTL); err != nil {
		j.log.Warn("store job status", applogger.String("job_id", st.ID), applogger.Error(err))
	}
}

func statusKey(id string) string { return cache.GenerateKey("train:job", id) }

// TrainingDispatcher hands training requests to the queue, or runs them
// inline when no queue is configured.
type TrainingDispatcher struct {
	job   *TrainingJob
	queue queue.Publisher
}

func NewTrainingDispatcher(job *TrainingJob, q queue.Publisher) *TrainingDispatcher {
	return &TrainingDispatcher{job: job, queue: q}
}

// Async reports whether Submit returns before training completes.
func (d *TrainingDispatcher) Async() bool { return d.queue != nil }

// Submit queues p and returns the queued status; inline runs return the final status.
func (d *TrainingDispatcher) Submit(ctx context.Context, p TrainParams) (*JobStatus, error) {
	id := uuid.NewString()
	if d.queue == nil {
		return d.job.Run(ctx, id, p)
	}

	st := &JobStatus{ID: id, State: JobQueued, Params: p}
	d.job.save(ctx, st)
	if err := d.queue.PublishMessage(ctx, TrainJobType, TrainJobPayload{JobID: id, Params: p}); err != nil {
		return nil, fmt.Errorf("enqueue training: %w", err)
	}
	return st, nil
}

func (d *TrainingDispatcher) Status(ctx context.Context, id string) (*JobStatus, error) {
	return d.job.Status(ctx, id)
}

var (
	_ queue.Job               = (*TrainingJob)(nil)
	_ queue.DeadLetterHandler = (*TrainingJob)(nil)
)
