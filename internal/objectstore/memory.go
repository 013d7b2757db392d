package objectstore

import (
	"context"
	"sync"

	"storeops/internal/cascade"
)

// Memory is an in-process object store for local development and tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string]struct{}
	failing map[string]error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]struct{}),
		failing: make(map[string]error),
	}
}

// Put adds an object.
func (m *Memory) Put(bucket, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+path] = struct{}{}
}

// Has reports whether the object exists.
func (m *Memory) Has(bucket, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket+"/"+path]
	return ok
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// FailOn makes every Remove of bucket/path return err.
func (m *Memory) FailOn(bucket, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[bucket+"/"+path] = err
}

// Remove deletes bucket/path.
func (m *Memory) Remove(_ context.Context, bucket, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := bucket + "/" + path
	if err := m.failing[key]; err != nil {
		return err
	}
	if _, ok := m.objects[key]; !ok {
		return cascade.ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}
