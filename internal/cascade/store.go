package cascade

import "context"

// Row is a single record returned by a DataStore, keyed by column name.
type Row map[string]any

// Filter selects rows whose Column matches one of Values.
// A single value is an equality match; several values form an IN list.
type Filter struct {
	Column string
	Values []any

	// NullColumns must additionally be NULL for a row to match.
	NullColumns []string
}

// Eq returns a Filter matching column = value.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Values: []any{value}}
}

// In returns a Filter matching column IN values.
func In(column string, values ...any) Filter {
	return Filter{Column: column, Values: values}
}

// DataStore is the relational backend the engine reads from and deletes through.
// Implementations must return an error wrapping ErrTableNotFound when the table
// does not exist.
type DataStore interface {
	// Select returns the given columns (all columns when empty) of matching rows.
	Select(ctx context.Context, table string, columns []string, f Filter) ([]Row, error)

	// Count returns the exact number of matching rows.
	Count(ctx context.Context, table string, f Filter) (int64, error)

	// Delete removes matching rows and reports how many were removed.
	Delete(ctx context.Context, table string, f Filter) (int64, error)

	// Update sets values on matching rows and reports how many were changed.
	Update(ctx context.Context, table string, f Filter, values map[string]any) (int64, error)
}

// ObjectStore removes binary objects. Removing an absent object must either
// succeed or return an error wrapping ErrObjectNotFound.
type ObjectStore interface {
	Remove(ctx context.Context, bucket, path string) error
}
