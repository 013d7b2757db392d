package cascade

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TableCount is the plan entry for one table.
type TableCount struct {
	Table     string   `json:"table"`
	Column    string   `json:"store_id_column"`
	Count     int64    `json:"count"`
	SampleIDs []string `json:"sample_ids,omitempty"`
}

// Plan describes everything a deletion would affect. It is built fresh on
// every call and never stored.
type Plan struct {
	StoreID         string         `json:"store_id"`
	StoreName       string         `json:"store_name,omitempty"`
	DryRun          bool           `json:"dryRun"`
	Tables          []TableCount   `json:"db"`
	Storage         []ObjectRef    `json:"storage"`
	StorageByBucket map[string]int `json:"storageByBucket"`
}

// TotalRows sums the row counts of every table in the plan.
func (p *Plan) TotalRows() int64 {
	var n int64
	for _, t := range p.Tables {
		n += t.Count
	}
	return n
}

// Count returns the planned row count for table.
func (p *Plan) Count(table string) int64 {
	for _, t := range p.Tables {
		if t.Table == table {
			return t.Count
		}
	}
	return 0
}

// tableScan is the result of reading one manifest slot.
type tableScan struct {
	tables []TableCount
	refs   []ObjectRef
}

// BuildPlan reads every manifest table for storeID and assembles a Plan.
// It never mutates either store.
func (e *Engine) BuildPlan(ctx context.Context, storeID string) (*Plan, error) {
	if storeID == "" {
		return nil, ErrEmptyStoreID
	}

	entries := e.manifest.Entries
	indirect := e.manifest.Indirect
	scans := make([]tableScan, len(entries)+len(indirect))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			scan, err := e.scanEntry(gctx, storeID, entry)
			if err != nil {
				return err
			}
			scans[i] = scan
			return nil
		})
	}
	for i, ind := range indirect {
		i, ind := i, ind
		g.Go(func() error {
			scan, err := e.scanIndirect(gctx, storeID, ind)
			if err != nil {
				return err
			}
			scans[len(entries)+i] = scan
			return nil
		})
	}

	var storeName string
	g.Go(func() error {
		storeName = e.lookupName(gctx, storeID)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	plan := &Plan{
		StoreID:         storeID,
		StoreName:       storeName,
		Tables:          []TableCount{},
		Storage:         []ObjectRef{},
		StorageByBucket: map[string]int{},
	}
	var refs []ObjectRef
	for _, scan := range scans {
		plan.Tables = append(plan.Tables, scan.tables...)
		refs = append(refs, scan.refs...)
	}
	plan.Storage = append(plan.Storage, dedupeObjects(refs)...)
	for _, ref := range plan.Storage {
		plan.StorageByBucket[ref.Bucket]++
	}

	e.logger.Info("deletion plan built",
		zap.String("store_id", storeID),
		zap.Int("tables", len(plan.Tables)),
		zap.Int64("rows", plan.TotalRows()),
		zap.Int("objects", len(plan.Storage)),
	)
	return plan, nil
}

func (e *Engine) scanEntry(ctx context.Context, storeID string, entry Entry) (tableScan, error) {
	rows, err := e.selectRows(ctx, entry.Table, entry.Media != nil, Eq(entry.Column, storeID))
	if errors.Is(err, ErrTableNotFound) {
		e.logger.Debug("table missing, skipped", zap.String("table", entry.Table))
		return tableScan{}, nil
	}
	if err != nil {
		return tableScan{}, tableErr("select", entry.Table, entry.Column, err)
	}
	return e.countRows(entry.Table, entry.Column, storeID, rows, entry.Media), nil
}

func (e *Engine) scanIndirect(ctx context.Context, storeID string, ind Indirect) (tableScan, error) {
	parents, err := e.selectRows(ctx, ind.Parent, ind.ParentMedia != nil, Eq(ind.ParentColumn, storeID), ind.ParentKey)
	if errors.Is(err, ErrTableNotFound) {
		e.logger.Debug("table missing, skipped", zap.String("table", ind.Parent))
		return tableScan{}, nil
	}
	if err != nil {
		return tableScan{}, tableErr("select", ind.Parent, ind.ParentColumn, err)
	}

	var scan tableScan
	ids := columnValues(parents, ind.ParentKey)
	if len(ids) > 0 {
		var n int64
		for _, batch := range chunk(ids, inBatchSize) {
			c, err := e.data.Count(ctx, ind.Table, In(ind.Column, batch...))
			if errors.Is(err, ErrTableNotFound) {
				n = 0
				break
			}
			if err != nil {
				return tableScan{}, tableErr("count", ind.Table, ind.Column, err)
			}
			n += c
		}
		if n > 0 {
			scan.tables = append(scan.tables, TableCount{
				Table:  ind.Table,
				Column: fmt.Sprintf("%s (via %s)", ind.Column, ind.Parent),
				Count:  n,
			})
		}
	}

	parent := e.countRows(ind.Parent, ind.ParentColumn, storeID, parents, ind.ParentMedia)
	scan.tables = append(scan.tables, parent.tables...)
	scan.refs = parent.refs
	return scan, nil
}

// selectRows fetches full rows when media must be read. Otherwise it reads
// the primary key plus any extra key columns the caller needs.
func (e *Engine) selectRows(ctx context.Context, table string, withMedia bool, f Filter, keys ...string) ([]Row, error) {
	if withMedia {
		return e.data.Select(ctx, table, nil, f)
	}
	columns := []string{PrimaryKeyColumn}
	for _, k := range keys {
		if k != PrimaryKeyColumn {
			columns = append(columns, k)
		}
	}
	return e.data.Select(ctx, table, columns, f)
}

func (e *Engine) countRows(table, column, storeID string, rows []Row, media MediaExtractor) tableScan {
	var scan tableScan
	if len(rows) == 0 {
		return scan
	}
	if media != nil {
		for _, row := range rows {
			scan.refs = append(scan.refs, CollectStoragePaths(media.URLs(row), storeID)...)
		}
	}
	scan.tables = []TableCount{{
		Table:     table,
		Column:    column,
		Count:     int64(len(rows)),
		SampleIDs: sampleIDs(rows, e.config.SampleSize),
	}}
	return scan
}

// lookupName reads the root's display name. A missing name is not an error.
func (e *Engine) lookupName(ctx context.Context, storeID string) string {
	root := e.manifest.Root
	if root.NameColumn == "" {
		return ""
	}
	rows, err := e.data.Select(ctx, root.Table, []string{root.NameColumn}, Eq(root.IDColumn, storeID))
	if err != nil {
		e.logger.Debug("store name lookup failed", zap.String("store_id", storeID), zap.Error(err))
		return ""
	}
	if len(rows) == 0 {
		return ""
	}
	name, _ := stringValue(rows[0][root.NameColumn])
	return name
}

func sampleIDs(rows []Row, limit int) []string {
	var ids []string
	for _, row := range rows {
		if len(ids) == limit {
			break
		}
		if id, ok := row[PrimaryKeyColumn]; ok && id != nil {
			ids = append(ids, idString(id))
		}
	}
	return ids
}

func columnValues(rows []Row, column string) []any {
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		if v, ok := row[column]; ok && v != nil {
			values = append(values, v)
		}
	}
	return values
}

func idString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

// inBatchSize bounds the length of IN lists sent to the data store.
const inBatchSize = 500

func chunk(values []any, size int) [][]any {
	var batches [][]any
	for len(values) > size {
		batches = append(batches, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		batches = append(batches, values)
	}
	return batches
}
