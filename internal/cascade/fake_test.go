package cascade

import (
	"context"
	"fmt"
	"sync"
)

// call records one DataStore or ObjectStore invocation.
type call struct {
	op    string
	table string
}

// memStore is an in-memory DataStore that records every call.
type memStore struct {
	mu     sync.Mutex
	tables map[string][]Row
	calls  []call
	fail   map[string]error // keyed by op+" "+table
}

func newMemStore() *memStore {
	return &memStore{tables: map[string][]Row{}, fail: map[string]error{}}
}

func (m *memStore) createTable(name string) {
	if _, ok := m.tables[name]; !ok {
		m.tables[name] = []Row{}
	}
}

func (m *memStore) insert(table string, rows ...Row) {
	m.tables[table] = append(m.tables[table], rows...)
}

func (m *memStore) record(op, table string) ([]Row, error) {
	m.calls = append(m.calls, call{op: op, table: table})
	if err := m.fail[op+" "+table]; err != nil {
		return nil, err
	}
	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist: %w", table, ErrTableNotFound)
	}
	return rows, nil
}

func matches(row Row, f Filter) bool {
	for _, col := range f.NullColumns {
		if row[col] != nil {
			return false
		}
	}
	for _, v := range f.Values {
		if fmt.Sprint(row[f.Column]) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

func (m *memStore) Select(_ context.Context, table string, columns []string, f Filter) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.record("select", table)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, row := range rows {
		if !matches(row, f) {
			continue
		}
		if len(columns) == 0 {
			out = append(out, row)
			continue
		}
		picked := Row{}
		for _, c := range columns {
			picked[c] = row[c]
		}
		out = append(out, picked)
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, table string, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.record("count", table)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, row := range rows {
		if matches(row, f) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Delete(_ context.Context, table string, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.record("delete", table)
	if err != nil {
		return 0, err
	}
	kept := rows[:0:0]
	var n int64
	for _, row := range rows {
		if matches(row, f) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	m.tables[table] = kept
	return n, nil
}

func (m *memStore) Update(_ context.Context, table string, f Filter, values map[string]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.record("update", table)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, row := range rows {
		if !matches(row, f) {
			continue
		}
		for k, v := range values {
			row[k] = v
		}
		n++
	}
	return n, nil
}

// mutations returns the delete and update calls in order.
func (m *memStore) mutations() []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []call
	for _, c := range m.calls {
		if c.op == "delete" || c.op == "update" {
			out = append(out, c)
		}
	}
	return out
}

// memObjects is an ObjectStore that records removals.
type memObjects struct {
	objects map[string]bool
	removed []ObjectRef
	fail    map[string]error
}

func newMemObjects(keys ...string) *memObjects {
	o := &memObjects{objects: map[string]bool{}, fail: map[string]error{}}
	for _, k := range keys {
		o.objects[k] = true
	}
	return o
}

func (o *memObjects) Remove(_ context.Context, bucket, path string) error {
	key := bucket + "/" + path
	if err := o.fail[key]; err != nil {
		return err
	}
	o.removed = append(o.removed, ObjectRef{Bucket: bucket, Path: path})
	if !o.objects[key] {
		return ErrObjectNotFound
	}
	delete(o.objects, key)
	return nil
}
