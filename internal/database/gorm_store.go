package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storeops/internal/cascade"
)

// GormStore is a cascade.DataStore over any GORM dialect. Tables are
// addressed by name, so it works without a model per table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// conditions renders f as GORM clause expressions.
func conditions(f cascade.Filter) []clause.Expression {
	exprs := []clause.Expression{
		clause.IN{Column: clause.Column{Name: f.Column}, Values: f.Values},
	}
	for _, col := range f.NullColumns {
		exprs = append(exprs, clause.Eq{Column: clause.Column{Name: col}, Value: nil})
	}
	return exprs
}

func (s *GormStore) scoped(ctx context.Context, table string, f cascade.Filter) *gorm.DB {
	tx := s.db.WithContext(ctx).Table(table)
	for _, expr := range conditions(f) {
		tx = tx.Where(expr)
	}
	return tx
}

func (s *GormStore) Select(ctx context.Context, table string, columns []string, f cascade.Filter) ([]cascade.Row, error) {
	tx := s.scoped(ctx, table, f)
	if len(columns) > 0 {
		tx = tx.Select(columns)
	}
	var found []map[string]interface{}
	if err := tx.Find(&found).Error; err != nil {
		return nil, translate(err)
	}
	rows := make([]cascade.Row, len(found))
	for i, r := range found {
		rows[i] = r
	}
	return rows, nil
}

func (s *GormStore) Count(ctx context.Context, table string, f cascade.Filter) (int64, error) {
	var n int64
	if err := s.scoped(ctx, table, f).Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (s *GormStore) Delete(ctx context.Context, table string, f cascade.Filter) (int64, error) {
	res := s.db.WithContext(ctx).Exec("DELETE FROM ? WHERE ?",
		clause.Table{Name: table},
		clause.And(conditions(f)...),
	)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Update(ctx context.Context, table string, f cascade.Filter, values map[string]any) (int64, error) {
	res := s.scoped(ctx, table, f).Updates(values)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}
