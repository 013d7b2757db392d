package cascade

import (
	"errors"
	"fmt"
)

var (
	// ErrTableNotFound is returned by a DataStore when the table does not exist.
	// The engine skips such tables.
	ErrTableNotFound = errors.New("cascade: table not found")

	// ErrObjectNotFound is returned by an ObjectStore when the object is already gone.
	ErrObjectNotFound = errors.New("cascade: object not found")

	// ErrNoObjectStore is returned when a deletion must remove objects but no
	// ObjectStore was configured.
	ErrNoObjectStore = errors.New("cascade: no object store configured")

	// ErrEmptyStoreID is returned when the engine is invoked without a store id.
	ErrEmptyStoreID = errors.New("cascade: empty store id")
)

// TableError reports a failed operation on one table.
type TableError struct {
	Op     string
	Table  string
	Column string
	Err    error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Table, e.Op, e.Column, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

// ObjectError reports a failed object removal.
type ObjectError struct {
	Bucket string
	Path   string
	Err    error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("storage remove %s/%s: %v", e.Bucket, e.Path, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }

func tableErr(op, table, column string, err error) error {
	return &TableError{Op: op, Table: table, Column: column, Err: err}
}
