package notification

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/privatedrops/internal/observability/metrics"
	"github.com/smallbiznis/privatedrops/internal/providers/email"
	"go.uber.org/zap"
)

const (
	defaultPollWait = 5 * time.Second
	errorBackoff    = time.Second
	requeueTimeout  = time.Second
)

type Worker struct {
	queue   Queue
	sender  email.Provider
	log     *zap.Logger
	metrics *metrics.Metrics
	wait    time.Duration
	requeue time.Duration
}

func NewWorker(queue Queue, sender email.Provider, log *zap.Logger, m *metrics.Metrics) *Worker {
	return &Worker{
		queue:   queue,
		sender:  sender,
		log:     log.Named("notification.worker"),
		metrics: m,
		wait:    defaultPollWait,
		requeue: requeueTimeout,
	}
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("notification worker started")
	defer w.log.Info("notification worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.ProcessOne(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Warn("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
		}
	}
}

// ProcessOne handles at most one job and reports whether one was found.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.queue.Dequeue(ctx, w.wait)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.handle(ctx, *job)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, job Job) {
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	job.Attempt++

	log := w.log.With(
		zap.String("job_id", job.ID),
		zap.String("template", job.Template),
		zap.Int("attempt", job.Attempt),
	)

	err := w.sender.Send(ctx, email.Message{
		To:      job.To,
		Subject: job.Subject,
		Text:    job.Text,
		HTML:    job.HTML,
	})
	if err == nil {
		w.metrics.RecordNotification(ctx, job.Template, "sent")
		log.Info("notification sent")
		return
	}

	if job.Attempt >= maxAttempts {
		w.metrics.RecordNotification(ctx, job.Template, "dropped")
		log.Error("notification.dropped", zap.Error(err))
		return
	}

	w.metrics.RecordNotification(ctx, job.Template, "retried")
	log.Warn("notification send failed, retrying", zap.Error(err))
	// The worker is the queue's only consumer, so a full queue cannot drain while it waits here.
	requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.requeue)
	defer cancel()
	if err := w.queue.Enqueue(requeueCtx, job); err != nil {
		w.metrics.RecordNotification(ctx, job.Template, "dropped")
		log.Error("notification.dropped", zap.String("reason", "requeue_failed"), zap.Error(err))
	}
}
