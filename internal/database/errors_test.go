package database

import (
	"errors"
	"fmt"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"storeops/internal/cascade"
)

func TestIsTableNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mysql missing table", &mysqldriver.MySQLError{Number: 1146, Message: "Table 'x.lost_items' doesn't exist"}, true},
		{"mysql other", &mysqldriver.MySQLError{Number: 1062}, false},
		{"pgx undefined table", &pgconn.PgError{Code: "42P01"}, true},
		{"pgx undefined column", &pgconn.PgError{Code: "42703"}, false},
		{"pq undefined table", &pq.Error{Code: "42P01"}, true},
		{"wrapped pq", fmt.Errorf("query: %w", &pq.Error{Code: "42P01"}), true},
		{"sqlite", errors.New("no such table: lost_items"), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTableNotFound(tt.err))
		})
	}
}

func TestTranslate(t *testing.T) {
	err := translate(&pq.Error{Code: "42P01", Message: `relation "lost_items" does not exist`})
	assert.ErrorIs(t, err, cascade.ErrTableNotFound)
	assert.Contains(t, err.Error(), "lost_items")

	other := errors.New("timeout")
	assert.Same(t, other, translate(other))
	assert.NoError(t, translate(nil))
}
