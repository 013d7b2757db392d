package models

import "time"

// Store is the tenant-owned aggregate root. Stores are never physically
// removed; DeletedAt marks the end of their life.
type Store struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	CompanyID string     `gorm:"type:varchar(36);index" json:"company_id,omitempty"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	Address   string     `gorm:"type:text" json:"address,omitempty"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName はテーブル名を明示的に指定
func (Store) TableName() string {
	return "stores"
}

// IsDeleted reports whether the store has been soft-deleted.
func (s *Store) IsDeleted() bool {
	return s.DeletedAt != nil
}
