package scheduler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"storeops/internal/cascade"
	"storeops/internal/cleanup"
	"storeops/internal/metrics"
)

// Deleter runs one store deletion.
type Deleter interface {
	DeleteStore(ctx context.Context, req cleanup.Request) (*cascade.Result, error)
}

// Worker processes store_deletion_jobs one at a time.
type Worker struct {
	queue   *Queue
	deleter Deleter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewWorker creates a worker. metrics may be nil.
func NewWorker(queue *Queue, deleter Deleter, m *metrics.Metrics, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:   queue,
		deleter: deleter,
		metrics: m,
		logger:  logger.Named("worker"),
	}
}

// ProcessNext runs the next due job. It reports whether a job was run.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.Next(ctx)
	if err != nil || job == nil {
		return false, err
	}

	log := w.logger.With(
		zap.Int64("job_id", job.ID),
		zap.String("store_id", job.StoreID),
		zap.Int("attempt", job.Attempts),
	)
	log.Info("Processing deletion job")

	_, runErr := w.deleter.DeleteStore(ctx, cleanup.Request{
		StoreID:     job.StoreID,
		RequestedBy: job.RequestedBy,
		Reason:      job.Reason,
	})

	switch {
	case runErr == nil, errors.Is(runErr, cleanup.ErrAlreadyDeleted):
		err = w.queue.Complete(ctx, job)
	case isPermanent(runErr):
		log.Warn("Deletion job cannot succeed", zap.Error(runErr))
		err = w.queue.Fail(ctx, job, runErr, true)
	default:
		log.Warn("Deletion job failed", zap.Error(runErr))
		err = w.queue.Fail(ctx, job, runErr, false)
	}
	if err != nil {
		log.Error("Failed to save job status", zap.Error(err))
		return true, err
	}

	if w.metrics != nil {
		w.metrics.ObserveJob(job.Status)
	}
	log.Info("Deletion job finished", zap.String("status", job.Status))
	return true, nil
}

// Drain runs due jobs until the queue is empty, max jobs ran, or ctx ends.
func (w *Worker) Drain(ctx context.Context, max int) int {
	processed := 0
	for max <= 0 || processed < max {
		if ctx.Err() != nil {
			break
		}
		ran, err := w.ProcessNext(ctx)
		if err != nil {
			w.logger.Error("Deletion queue error", zap.Error(err))
			break
		}
		if !ran {
			break
		}
		processed++
	}
	return processed
}

func isPermanent(err error) bool {
	return errors.Is(err, cleanup.ErrStoreNotFound) || errors.Is(err, cascade.ErrEmptyStoreID)
}
