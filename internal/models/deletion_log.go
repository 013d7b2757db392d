package models

import (
	"time"

	"gorm.io/datatypes"
)

// StoreDeletionLog records one completed store deletion.
type StoreDeletionLog struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	StoreID        string         `gorm:"type:varchar(36);not null;index" json:"store_id"`
	StoreName      string         `gorm:"type:varchar(255)" json:"store_name"`
	Tables         datatypes.JSON `json:"tables"`
	RowsDeleted    int64          `gorm:"not null;default:0" json:"rows_deleted"`
	ObjectsRemoved int            `gorm:"not null;default:0" json:"objects_removed"`
	ObjectsMissing int            `gorm:"not null;default:0" json:"objects_missing"`
	RequestedBy    string         `gorm:"type:varchar(255)" json:"requested_by,omitempty"`
	Reason         string         `gorm:"type:varchar(50);not null" json:"reason"`
	DeletedAt      time.Time      `gorm:"not null;autoCreateTime;index" json:"deleted_at"`
}

// TableName specifies the table name
func (StoreDeletionLog) TableName() string {
	return "store_deletion_logs"
}

// Deletion reasons
const (
	DeletionReasonAdmin    = "admin_request"
	DeletionReasonBusiness = "business_request"
	DeletionReasonCLI      = "operator_cli"
)
