package models

import (
	"time"
)

// StoreDeletionJob is a queued real deletion.
// Jobs are created for asynchronous requests and for synchronous runs that
// failed part-way; a store deletion is idempotent, so a retry finishes it.
type StoreDeletionJob struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	StoreID     string     `gorm:"type:varchar(36);not null;index:idx_job_store" json:"store_id"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_job_status" json:"status"` // pending, processing, done, failed, permanent_fail
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	RequestedBy string     `gorm:"type:varchar(255)" json:"requested_by"`
	Reason      string     `gorm:"type:varchar(50)" json:"reason"`
	NextRetryAt *time.Time `gorm:"index:idx_job_retry" json:"next_retry_at,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"` // set when a worker takes the job
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (StoreDeletionJob) TableName() string {
	return "store_deletion_jobs"
}

// Job status constants
const (
	JobStatusPending       = "pending"
	JobStatusProcessing    = "processing"
	JobStatusDone          = "done"
	JobStatusFailed        = "failed"
	JobStatusPermanentFail = "permanent_fail" // store vanished or request invalid
)

// MaxJobAttempts before a job is given up on
const MaxJobAttempts = 5

// JobLease is how long a claimed job may stay processing before another
// worker may take it over.
const JobLease = 15 * time.Minute

// NextRetryDelay returns the backoff after the given number of failed attempts.
func NextRetryDelay(attempts int) time.Duration {
	// 1min, 5min, 15min, 1h, 4h
	delays := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		4 * time.Hour,
	}

	if attempts < 0 {
		attempts = 0
	}
	if attempts >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempts]
}
