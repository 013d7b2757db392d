package cascade

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Config holds engine settings.
type Config struct {
	// Concurrency bounds the number of table reads issued at once while
	// building a plan. Default: 4
	Concurrency int

	// SampleSize is the number of row ids reported per table. Default: 3
	SampleSize int

	// Clock returns the soft-delete timestamp. Default: time.Now
	Clock func() time.Time
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		SampleSize:  3,
		Clock:       time.Now,
	}
}

func (c *Config) validate() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Concurrency > 32 {
		c.Concurrency = 32
	}
	if c.SampleSize < 0 {
		c.SampleSize = 0
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Engine deletes a root entity together with its dependent rows and media.
type Engine struct {
	data     DataStore
	objects  ObjectStore
	manifest Manifest
	config   Config
	logger   *zap.Logger
}

// NewEngine creates an engine. objects may be nil when only dry runs are needed.
func NewEngine(data DataStore, objects ObjectStore, manifest Manifest, config Config, logger *zap.Logger) *Engine {
	config.validate()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		data:     data,
		objects:  objects,
		manifest: manifest,
		config:   config,
		logger:   logger.Named("cascade"),
	}
}

// Manifest returns the manifest the engine was built with.
func (e *Engine) Manifest() Manifest {
	return e.manifest
}

// Summary reports what a real deletion removed.
type Summary struct {
	RowsDeleted    map[string]int64 `json:"rows_deleted"`
	ObjectsRemoved int              `json:"objects_removed"`
	ObjectsMissing int              `json:"objects_missing"`
	SoftDeleted    bool             `json:"soft_deleted"`
}

// TotalRows sums RowsDeleted.
func (s *Summary) TotalRows() int64 {
	var n int64
	for _, c := range s.RowsDeleted {
		n += c
	}
	return n
}

// Result is the outcome of Delete.
type Result struct {
	Success bool     `json:"success"`
	DryRun  bool     `json:"dryRun,omitempty"`
	Plan    *Plan    `json:"preview,omitempty"`
	Summary *Summary `json:"summary,omitempty"`
}

// Delete builds the plan for storeID and, unless dryRun is set, executes it:
// storage objects first, then direct rows in manifest order, then indirect rows
// before their parents, then the root soft delete. Any failure aborts the
// remaining stages and leaves the root untouched, so the call can be retried.
func (e *Engine) Delete(ctx context.Context, storeID string, dryRun bool) (*Result, error) {
	plan, err := e.BuildPlan(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if dryRun {
		plan.DryRun = true
		return &Result{Success: true, DryRun: true, Plan: plan}, nil
	}

	summary := &Summary{RowsDeleted: map[string]int64{}}
	if err := e.removeObjects(ctx, plan.Storage, summary); err != nil {
		return nil, err
	}
	if err := e.deleteDirect(ctx, storeID, summary); err != nil {
		return nil, err
	}
	if err := e.deleteIndirect(ctx, storeID, summary); err != nil {
		return nil, err
	}
	if err := e.softDeleteRoot(ctx, storeID, summary); err != nil {
		return nil, err
	}

	e.logger.Info("store deleted",
		zap.String("store_id", storeID),
		zap.Int64("rows", summary.TotalRows()),
		zap.Int("objects_removed", summary.ObjectsRemoved),
		zap.Int("objects_missing", summary.ObjectsMissing),
	)
	return &Result{Success: true, Summary: summary}, nil
}

func (e *Engine) removeObjects(ctx context.Context, refs []ObjectRef, summary *Summary) error {
	if len(refs) == 0 {
		return nil
	}
	if e.objects == nil {
		return ErrNoObjectStore
	}
	for _, ref := range refs {
		err := e.objects.Remove(ctx, ref.Bucket, ref.Path)
		if errors.Is(err, ErrObjectNotFound) {
			summary.ObjectsMissing++
			continue
		}
		if err != nil {
			return &ObjectError{Bucket: ref.Bucket, Path: ref.Path, Err: err}
		}
		summary.ObjectsRemoved++
	}
	e.logger.Info("storage objects removed",
		zap.Int("removed", summary.ObjectsRemoved),
		zap.Int("missing", summary.ObjectsMissing),
	)
	return nil
}

func (e *Engine) deleteDirect(ctx context.Context, storeID string, summary *Summary) error {
	for _, entry := range e.manifest.Entries {
		n, err := e.data.Delete(ctx, entry.Table, Eq(entry.Column, storeID))
		if errors.Is(err, ErrTableNotFound) {
			e.logger.Debug("table missing, skipped", zap.String("table", entry.Table))
			continue
		}
		if err != nil {
			return tableErr("delete", entry.Table, entry.Column, err)
		}
		if n > 0 {
			summary.RowsDeleted[entry.Table] += n
		}
	}
	return nil
}

// deleteIndirect removes indirect rows first, then their parents.
func (e *Engine) deleteIndirect(ctx context.Context, storeID string, summary *Summary) error {
	for _, ind := range e.manifest.Indirect {
		parents, err := e.data.Select(ctx, ind.Parent, []string{ind.ParentKey}, Eq(ind.ParentColumn, storeID))
		if errors.Is(err, ErrTableNotFound) {
			e.logger.Debug("table missing, skipped", zap.String("table", ind.Parent))
			continue
		}
		if err != nil {
			return tableErr("select", ind.Parent, ind.ParentColumn, err)
		}

		ids := columnValues(parents, ind.ParentKey)
		for _, batch := range chunk(ids, inBatchSize) {
			n, err := e.data.Delete(ctx, ind.Table, In(ind.Column, batch...))
			if errors.Is(err, ErrTableNotFound) {
				break
			}
			if err != nil {
				return tableErr("delete", ind.Table, ind.Column, err)
			}
			if n > 0 {
				summary.RowsDeleted[ind.Table] += n
			}
		}

		n, err := e.data.Delete(ctx, ind.Parent, Eq(ind.ParentColumn, storeID))
		if errors.Is(err, ErrTableNotFound) {
			continue
		}
		if err != nil {
			return tableErr("delete", ind.Parent, ind.ParentColumn, err)
		}
		if n > 0 {
			summary.RowsDeleted[ind.Parent] += n
		}
	}
	return nil
}

// softDeleteRoot stamps deleted_at on the root row. Rows already stamped keep
// their original timestamp.
func (e *Engine) softDeleteRoot(ctx context.Context, storeID string, summary *Summary) error {
	root := e.manifest.Root
	now := e.config.Clock().UTC()

	values := map[string]any{root.DeletedAtColumn: now}
	if root.UpdatedAtColumn != "" {
		values[root.UpdatedAtColumn] = now
	}
	f := Filter{
		Column:      root.IDColumn,
		Values:      []any{storeID},
		NullColumns: []string{root.DeletedAtColumn},
	}
	n, err := e.data.Update(ctx, root.Table, f, values)
	if err != nil {
		return tableErr("soft delete", root.Table, root.IDColumn, err)
	}
	summary.SoftDeleted = n > 0
	return nil
}
