package cleanup

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"storeops/internal/cascade"
	"storeops/internal/models"
)

// AuditLog persists completed deletions.
type AuditLog interface {
	Record(ctx context.Context, entry *models.StoreDeletionLog) error
	Recent(ctx context.Context, limit int) ([]models.StoreDeletionLog, error)
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// GormAuditLog stores deletion logs in store_deletion_logs.
type GormAuditLog struct {
	db *gorm.DB
}

func NewGormAuditLog(db *gorm.DB) *GormAuditLog {
	return &GormAuditLog{db: db}
}

func (a *GormAuditLog) Record(ctx context.Context, entry *models.StoreDeletionLog) error {
	return a.db.WithContext(ctx).Create(entry).Error
}

func (a *GormAuditLog) Recent(ctx context.Context, limit int) ([]models.StoreDeletionLog, error) {
	var logs []models.StoreDeletionLog
	err := a.db.WithContext(ctx).Order("deleted_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (a *GormAuditLog) Stats(ctx context.Context) (map[string]interface{}, error) {
	db := a.db.WithContext(ctx)
	stats := make(map[string]interface{})

	var totals struct {
		Count        int64
		TotalRows    int64
		TotalObjects int64
	}
	if err := db.Model(&models.StoreDeletionLog{}).
		Select("count(*) as count, coalesce(sum(rows_deleted), 0) as total_rows, coalesce(sum(objects_removed), 0) as total_objects").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	stats["total_deleted"] = totals.Count
	stats["rows_deleted"] = totals.TotalRows
	stats["objects_removed"] = totals.TotalObjects

	var reasonCounts []struct {
		Reason string
		Count  int64
	}
	if err := db.Model(&models.StoreDeletionLog{}).
		Select("reason, count(*) as count").
		Group("reason").
		Scan(&reasonCounts).Error; err != nil {
		return nil, err
	}
	reasonMap := make(map[string]int64)
	for _, rc := range reasonCounts {
		reasonMap[rc.Reason] = rc.Count
	}
	stats["by_reason"] = reasonMap

	var recent int64
	if err := db.Model(&models.StoreDeletionLog{}).
		Where("deleted_at >= ?", time.Now().AddDate(0, 0, -30)).
		Count(&recent).Error; err != nil {
		return nil, err
	}
	stats["deleted_last_30_days"] = recent

	return stats, nil
}

func newDeletionLog(info *StoreInfo, req Request, summary *cascade.Summary) (*models.StoreDeletionLog, error) {
	tables, err := json.Marshal(summary.RowsDeleted)
	if err != nil {
		return nil, err
	}
	reason := req.Reason
	if reason == "" {
		reason = models.DeletionReasonAdmin
	}
	return &models.StoreDeletionLog{
		StoreID:        info.ID,
		StoreName:      info.Name,
		Tables:         tables,
		RowsDeleted:    summary.TotalRows(),
		ObjectsRemoved: summary.ObjectsRemoved,
		ObjectsMissing: summary.ObjectsMissing,
		RequestedBy:    req.RequestedBy,
		Reason:         reason,
	}, nil
}
