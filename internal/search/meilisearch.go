package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"
)

type documentDeleter interface {
	DeleteDocument(identifier string) (*meilisearch.TaskInfo, error)
}

// StoreIndex maintains the stores index used by the store directory search.
type StoreIndex struct {
	client  *meilisearch.Client
	index   string
	docs    documentDeleter
	breaker *CircuitBreaker
}

func NewStoreIndex(host, apiKey, index string) *StoreIndex {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &StoreIndex{
		client:  client,
		index:   index,
		docs:    client.Index(index),
		breaker: NewCircuitBreaker(3, time.Minute),
	}
}

// InitIndex creates the index if needed and configures its attributes
func (s *StoreIndex) InitIndex() error {
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	if err != nil && !strings.Contains(err.Error(), "index_already_exists") {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"name",
		"address",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"id",
		"company_id",
	})
	return err
}

// RemoveStore deletes the store document. Meilisearch applies the deletion
// asynchronously; the returned task uid can be used to follow it.
// Calls are skipped with ErrUnavailable while the breaker is open.
func (s *StoreIndex) RemoveStore(storeID string) (int64, error) {
	if !s.breaker.CanProceed() {
		return 0, fmt.Errorf("remove store %s: %w", storeID, ErrUnavailable)
	}
	task, err := s.docs.DeleteDocument(storeID)
	if err != nil {
		s.breaker.RecordFailure()
		return 0, fmt.Errorf("remove store %s from index %s: %w", storeID, s.index, err)
	}
	s.breaker.RecordSuccess()
	return task.TaskUID, nil
}
