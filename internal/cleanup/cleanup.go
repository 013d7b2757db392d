package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storeops/internal/cascade"
	"storeops/internal/lock"
	"storeops/internal/metrics"
	"storeops/internal/models"
)

var (
	// ErrStoreNotFound is returned when no store has the requested id.
	ErrStoreNotFound = errors.New("store not found")

	// ErrAlreadyDeleted is returned when the store is already soft-deleted.
	ErrAlreadyDeleted = errors.New("store already deleted")
)

// SearchIndex removes store documents from the search engine.
type SearchIndex interface {
	RemoveStore(storeID string) (int64, error)
}

// RetryQueue takes over real deletions that failed part-way.
type RetryQueue interface {
	Enqueue(ctx context.Context, req Request) (*models.StoreDeletionJob, error)
}

// Config holds configuration for store deletions
type Config struct {
	WriteAuditLog    bool // record every real deletion in store_deletion_logs
	DeleteFromSearch bool // also remove the store from the search index
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		WriteAuditLog:    true,
		DeleteFromSearch: true,
	}
}

// Service runs store deletions on behalf of the HTTP handlers and the CLI.
// The engine does the work; the service adds existence checks, locking,
// auditing, search cleanup and metrics around it.
type Service struct {
	data    cascade.DataStore
	engine  *cascade.Engine
	audit   AuditLog
	search  SearchIndex
	retry   RetryQueue
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  *zap.Logger
	config  Config
}

// Options carries the optional collaborators of a Service.
type Options struct {
	Audit   AuditLog
	Search  SearchIndex
	Retry   RetryQueue
	Locker  lock.Locker
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewService creates a new deletion service
func NewService(data cascade.DataStore, engine *cascade.Engine, config Config, opts Options) *Service {
	s := &Service{
		data:    data,
		engine:  engine,
		audit:   opts.Audit,
		search:  opts.Search,
		retry:   opts.Retry,
		locker:  opts.Locker,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		config:  config,
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Request describes one deletion request.
type Request struct {
	StoreID     string
	DryRun      bool
	RequestedBy string
	Reason      string
}

// StoreInfo is the root row as seen before deletion.
type StoreInfo struct {
	ID      string
	Name    string
	Deleted bool
}

// FindStore reads the store row. It returns ErrStoreNotFound when absent.
func (s *Service) FindStore(ctx context.Context, storeID string) (*StoreInfo, error) {
	root := s.engine.Manifest().Root
	columns := []string{root.IDColumn, root.DeletedAtColumn}
	if root.NameColumn != "" {
		columns = append(columns, root.NameColumn)
	}
	rows, err := s.data.Select(ctx, root.Table, columns, cascade.Eq(root.IDColumn, storeID))
	if err != nil {
		return nil, fmt.Errorf("failed to find store: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrStoreNotFound
	}
	info := &StoreInfo{ID: storeID, Deleted: !isNull(rows[0][root.DeletedAtColumn])}
	info.Name = text(rows[0][root.NameColumn])
	return info, nil
}

// DeleteStore previews or performs the deletion of one store.
func (s *Service) DeleteStore(ctx context.Context, req Request) (*cascade.Result, error) {
	start := time.Now()
	result, err := s.deleteStore(ctx, req)
	if s.metrics != nil {
		s.metrics.ObserveDeletion(req.DryRun, Outcome(err), time.Since(start))
		if result != nil {
			s.metrics.ObservePlan(result.Plan)
			s.metrics.ObserveSummary(result.Summary)
		}
	}
	return result, err
}

func (s *Service) deleteStore(ctx context.Context, req Request) (*cascade.Result, error) {
	if req.StoreID == "" {
		return nil, cascade.ErrEmptyStoreID
	}
	log := s.logger.With(zap.String("store_id", req.StoreID), zap.Bool("dry_run", req.DryRun))

	info, err := s.FindStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	if info.Deleted {
		return nil, ErrAlreadyDeleted
	}

	if req.DryRun {
		return s.engine.Delete(ctx, req.StoreID, true)
	}

	release, err := s.locker.Acquire(ctx, "store:"+req.StoreID)
	if err != nil {
		return nil, err
	}
	defer release()

	log.Info("Starting store deletion", zap.String("store_name", info.Name), zap.String("requested_by", req.RequestedBy))
	result, err := s.engine.Delete(ctx, req.StoreID, false)
	if err != nil {
		log.Error("Store deletion failed", zap.Error(err))
		s.scheduleRetry(ctx, req, log)
		return nil, err
	}

	if s.config.WriteAuditLog && s.audit != nil {
		entry, err := newDeletionLog(info, req, result.Summary)
		if err == nil {
			err = s.audit.Record(ctx, entry)
		}
		if err != nil {
			log.Error("Failed to write deletion log", zap.Error(err))
		}
	}

	if s.config.DeleteFromSearch && s.search != nil {
		if taskUID, err := s.search.RemoveStore(req.StoreID); err != nil {
			log.Warn("Failed to remove store from search index", zap.Error(err))
		} else {
			log.Debug("Search removal enqueued", zap.Int64("task_uid", taskUID))
		}
	}

	log.Info("Store deletion completed",
		zap.Int64("rows_deleted", result.Summary.TotalRows()),
		zap.Int("objects_removed", result.Summary.ObjectsRemoved),
	)
	return result, nil
}

// scheduleRetry queues a failed run. Jobs already queued for the store are
// reused, so a failing queued run does not multiply.
func (s *Service) scheduleRetry(ctx context.Context, req Request, log *zap.Logger) {
	if s.retry == nil {
		return
	}
	job, err := s.retry.Enqueue(context.WithoutCancel(ctx), req)
	if err != nil {
		log.Error("Failed to queue deletion retry", zap.Error(err))
		return
	}
	log.Info("Deletion retry queued", zap.Int64("job_id", job.ID))
}

// GetRecentDeletionLogs returns recent deletion log entries
func (s *Service) GetRecentDeletionLogs(ctx context.Context, limit int) ([]models.StoreDeletionLog, error) {
	if s.audit == nil {
		return []models.StoreDeletionLog{}, nil
	}
	return s.audit.Recent(ctx, limit)
}

// GetDeletionStats returns statistics about completed deletions
func (s *Service) GetDeletionStats(ctx context.Context) (map[string]interface{}, error) {
	if s.audit == nil {
		return map[string]interface{}{"total_deleted": 0}, nil
	}
	return s.audit.Stats(ctx)
}

// Outcome classifies a DeleteStore error for metrics and operator output.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrStoreNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyDeleted):
		return "already_deleted"
	case errors.Is(err, lock.ErrLocked):
		return "locked"
	case errors.Is(err, cascade.ErrEmptyStoreID):
		return "invalid"
	default:
		return "error"
	}
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case *any:
		if t != nil {
			return text(*t)
		}
	}
	return ""
}

func isNull(v any) bool {
	if p, ok := v.(*any); ok {
		return p == nil || *p == nil
	}
	return v == nil
}
