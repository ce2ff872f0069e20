package server

import (
	"context"
	"time"

	applogger "WeatherCast/pkg/logger"
	"WeatherCast/pkg/queue"
)

// Worker drains the Redis job queue until its context is cancelled.
type Worker struct {
	log   *applogger.Logger
	queue *queue.RedisQueue
}

func NewWorker(log *applogger.Logger, q *queue.RedisQueue) *Worker {
	if log == nil {
		log = applogger.Nop()
	}
	return &Worker{log: log, queue: q}
}

func (w *Worker) Run(ctx context.Context) error {
	if err := w.queue.Start(); err != nil {
		return err
	}
	w.log.Info("worker started")

	<-ctx.Done()
	w.log.Info("worker stopping")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return w.queue.Stop(stopCtx)
}
