package database

import (
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"storeops/internal/cascade"
)

const (
	mysqlNoSuchTable    = 1146
	postgresUndefinedTb = "42P01"
)

// IsTableNotFound reports whether err means the queried table does not exist.
func IsTableNotFound(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlNoSuchTable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUndefinedTb
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == postgresUndefinedTb
	}
	// sqlite reports missing tables only in the message
	return strings.Contains(err.Error(), "no such table")
}

// translate maps driver errors onto cascade sentinels.
func translate(err error) error {
	if IsTableNotFound(err) {
		return fmt.Errorf("%w: %v", cascade.ErrTableNotFound, err)
	}
	return err
}
