package scheduler

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"storeops/internal/cleanup"
	"storeops/internal/models"
)

// Queue stores deletion jobs in store_deletion_jobs.
type Queue struct {
	db    *gorm.DB
	now   func() time.Time
	lease time.Duration
}

// NewQueue creates a queue backed by db.
func NewQueue(db *gorm.DB) *Queue {
	return &Queue{db: db, now: time.Now, lease: models.JobLease}
}

// WithLease sets how long a processing job is held before it is reclaimed.
func (q *Queue) WithLease(lease time.Duration) *Queue {
	if lease > 0 {
		q.lease = lease
	}
	return q
}

// WithClock replaces the time source. Used by tests.
func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

func (q *Queue) clock() time.Time {
	return q.now().UTC()
}

// Enqueue adds a job for req. A store with an unfinished job keeps that job.
func (q *Queue) Enqueue(ctx context.Context, req cleanup.Request) (*models.StoreDeletionJob, error) {
	db := q.db.WithContext(ctx)

	var existing models.StoreDeletionJob
	err := db.Where("store_id = ? AND (status IN ? OR (status = ? AND next_retry_at IS NOT NULL))",
		req.StoreID,
		[]string{models.JobStatusPending, models.JobStatusProcessing},
		models.JobStatusFailed,
	).Order("id ASC").First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	job := &models.StoreDeletionJob{
		StoreID:     req.StoreID,
		Status:      models.JobStatusPending,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	}
	if err := db.Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// Next claims the oldest pending job, else the oldest failed job whose retry
// time has passed, else a processing job whose lease expired because its
// worker died. It returns nil when nothing is due or when another worker
// claimed the job first.
func (q *Queue) Next(ctx context.Context) (*models.StoreDeletionJob, error) {
	db := q.db.WithContext(ctx)
	now := q.clock()

	var job models.StoreDeletionJob
	err := db.Where("status = ?", models.JobStatusPending).
		Order("created_at ASC, id ASC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", models.JobStatusFailed, now).
			Order("next_retry_at ASC, id ASC").
			First(&job).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Where("status = ? AND (claimed_at IS NULL OR claimed_at <= ?)", models.JobStatusProcessing, now.Add(-q.lease)).
			Order("claimed_at ASC, id ASC").
			First(&job).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// attempts changes on every claim, so it guards against a concurrent takeover
	res := db.Model(&models.StoreDeletionJob{}).
		Where("id = ? AND status = ? AND attempts = ?", job.ID, job.Status, job.Attempts).
		Updates(map[string]interface{}{
			"status":     models.JobStatusProcessing,
			"attempts":   gorm.Expr("attempts + 1"),
			"claimed_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	job.Status = models.JobStatusProcessing
	job.Attempts++
	job.ClaimedAt = &now
	return &job, nil
}

// Complete marks job as done.
func (q *Queue) Complete(ctx context.Context, job *models.StoreDeletionJob) error {
	completedAt := q.clock()
	job.Status = models.JobStatusDone
	job.LastError = ""
	job.NextRetryAt = nil
	job.CompletedAt = &completedAt
	return q.db.WithContext(ctx).Save(job).Error
}

// Fail records a failed attempt. Permanent failures and jobs out of attempts
// are closed; others are rescheduled with backoff.
func (q *Queue) Fail(ctx context.Context, job *models.StoreDeletionJob, cause error, permanent bool) error {
	now := q.clock()
	job.LastError = cause.Error()

	switch {
	case permanent:
		job.Status = models.JobStatusPermanentFail
		job.NextRetryAt = nil
		job.CompletedAt = &now
	case job.Attempts >= models.MaxJobAttempts:
		job.Status = models.JobStatusFailed
		job.NextRetryAt = nil
		job.CompletedAt = &now
	default:
		next := now.Add(models.NextRetryDelay(job.Attempts - 1))
		job.Status = models.JobStatusFailed
		job.NextRetryAt = &next
	}
	return q.db.WithContext(ctx).Save(job).Error
}

// Get returns one job.
func (q *Queue) Get(ctx context.Context, id int64) (*models.StoreDeletionJob, error) {
	var job models.StoreDeletionJob
	if err := q.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Stats counts jobs per status.
func (q *Queue) Stats(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := q.db.WithContext(ctx).Model(&models.StoreDeletionJob{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := map[string]int64{
		models.JobStatusPending:       0,
		models.JobStatusProcessing:    0,
		models.JobStatusDone:          0,
		models.JobStatusFailed:        0,
		models.JobStatusPermanentFail: 0,
	}
	for _, r := range rows {
		stats[r.Status] = r.Count
	}
	return stats, nil
}

// Prune deletes closed jobs completed before the retention window.
func (q *Queue) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := q.clock().Add(-retention)
	res := q.db.WithContext(ctx).
		Where("completed_at IS NOT NULL AND completed_at < ?", cutoff).
		Delete(&models.StoreDeletionJob{})
	return res.RowsAffected, res.Error
}
