package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"storeops/internal/cascade"
	"storeops/internal/config"
)

// SQLStore is a cascade.DataStore issuing hand-written SQL through lib/pq.
// It is used where the GORM stack is unavailable, e.g. read replicas and
// operator tooling pointed straight at PostgreSQL.
type SQLStore struct {
	conn *sql.DB
}

// OpenSQL connects to PostgreSQL with lib/pq.
func OpenSQL(cfg config.DatabaseConfig) (*SQLStore, error) {
	conn, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	conn.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	conn.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	conn.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return &SQLStore{conn: conn}, nil
}

func NewSQLStore(conn *sql.DB) *SQLStore {
	return &SQLStore{conn: conn}
}

func (s *SQLStore) Close() error {
	return s.conn.Close()
}

// whereClause renders f with $n placeholders starting after offset.
func whereClause(f cascade.Filter, offset int) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(f.Values))

	col := pq.QuoteIdentifier(f.Column)
	switch len(f.Values) {
	case 0:
		b.WriteString("FALSE")
	case 1:
		fmt.Fprintf(&b, "%s = $%d", col, offset+1)
		args = append(args, f.Values[0])
	default:
		b.WriteString(col + " IN (")
		for i, v := range f.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", offset+i+1)
			args = append(args, v)
		}
		b.WriteString(")")
	}
	for _, c := range f.NullColumns {
		b.WriteString(" AND " + pq.QuoteIdentifier(c) + " IS NULL")
	}
	return b.String(), args
}

func selectQuery(table string, columns []string, f cascade.Filter) (string, []any) {
	cols := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = pq.QuoteIdentifier(c)
		}
		cols = strings.Join(quoted, ", ")
	}
	where, args := whereClause(f, 0)
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s", cols, pq.QuoteIdentifier(table), where), args
}

func countQuery(table string, f cascade.Filter) (string, []any) {
	where, args := whereClause(f, 0)
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", pq.QuoteIdentifier(table), where), args
}

func deleteQuery(table string, f cascade.Filter) (string, []any) {
	where, args := whereClause(f, 0)
	return fmt.Sprintf("DELETE FROM %s WHERE %s", pq.QuoteIdentifier(table), where), args
}

// updateQuery sets columns in sorted order so the SQL is deterministic.
func updateQuery(table string, f cascade.Filter, values map[string]any) (string, []any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+len(f.Values))
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(k), i+1)
		args = append(args, values[k])
	}
	where, whereArgs := whereClause(f, len(keys))
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", pq.QuoteIdentifier(table), strings.Join(sets, ", "), where),
		append(args, whereArgs...)
}

func (s *SQLStore) Select(ctx context.Context, table string, columns []string, f cascade.Filter) ([]cascade.Row, error) {
	query, args := selectQuery(table, columns, f)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []cascade.Row
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(cascade.Row, len(names))
		for i, name := range names {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	return out, translate(rows.Err())
}

func (s *SQLStore) Count(ctx context.Context, table string, f cascade.Filter) (int64, error) {
	query, args := countQuery(table, f)
	var n int64
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (s *SQLStore) Delete(ctx context.Context, table string, f cascade.Filter) (int64, error) {
	query, args := deleteQuery(table, f)
	return s.exec(ctx, query, args)
}

func (s *SQLStore) Update(ctx context.Context, table string, f cascade.Filter, values map[string]any) (int64, error) {
	query, args := updateQuery(table, f, values)
	return s.exec(ctx, query, args)
}

func (s *SQLStore) exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}
