package models

import (
	"time"

	"gorm.io/datatypes"
)

// Records that belong to a store. Only the columns the deletion engine reads
// are modelled here; the application owns the rest of each schema.

type StoreAssign struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	UserID    string    `gorm:"type:varchar(36);index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (StoreAssign) TableName() string { return "store_assign" }

type Attendance struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string     `gorm:"type:varchar(36);not null;index" json:"store_id"`
	UserID    string     `gorm:"type:varchar(36);index" json:"user_id"`
	ClockIn   time.Time  `json:"clock_in"`
	ClockOut  *time.Time `json:"clock_out,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Attendance) TableName() string { return "attendance" }

// RequestPhotos are the photo columns shared by request-style records.
type RequestPhotos struct {
	PhotoURL           string `gorm:"type:text" json:"photo_url,omitempty"`
	CompletionPhotoURL string `gorm:"type:text" json:"completion_photo_url,omitempty"`
	RejectionPhotoURL  string `gorm:"type:text" json:"rejection_photo_url,omitempty"`
}

type SupplyRequest struct {
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID string `gorm:"type:varchar(36);not null;index" json:"store_id"`
	Status  string `gorm:"type:varchar(20)" json:"status"`
	RequestPhotos
	CreatedAt time.Time `json:"created_at"`
}

func (SupplyRequest) TableName() string { return "supply_requests" }

type Request struct {
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID string `gorm:"type:varchar(36);not null;index" json:"store_id"`
	Title   string `gorm:"type:text" json:"title"`
	Status  string `gorm:"type:varchar(20)" json:"status"`
	RequestPhotos
	CreatedAt time.Time `json:"created_at"`
}

func (Request) TableName() string { return "requests" }

type ProblemReport struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID     string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	Description string    `gorm:"type:text" json:"description"`
	PhotoURL    string    `gorm:"type:text" json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ProblemReport) TableName() string { return "problem_reports" }

type LostItem struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID     string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	Description string    `gorm:"type:text" json:"description"`
	PhotoURL    string    `gorm:"type:text" json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (LostItem) TableName() string { return "lost_items" }

type Issue struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string         `gorm:"type:varchar(36);not null;index" json:"store_id"`
	Title     string         `gorm:"type:text" json:"title"`
	PhotoURL  string         `gorm:"type:text" json:"photo_url,omitempty"`
	PhotoURLs datatypes.JSON `gorm:"column:photo_urls" json:"photo_urls,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Issue) TableName() string { return "issues" }

// ChecklistItem is one entry of Checklist.Items.
type ChecklistItem struct {
	Name           string `json:"name"`
	Done           bool   `json:"done"`
	BeforePhotoURL string `json:"before_photo_url,omitempty"`
	AfterPhotoURL  string `json:"after_photo_url,omitempty"`
}

type Checklist struct {
	ID        string                             `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string                             `gorm:"type:varchar(36);not null;index" json:"store_id"`
	Items     datatypes.JSONSlice[ChecklistItem] `json:"items"`
	CreatedAt time.Time                          `json:"created_at"`
}

func (Checklist) TableName() string { return "checklist" }

type CleaningPhoto struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	PhotoURL  string    `gorm:"type:text" json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (CleaningPhoto) TableName() string { return "cleaning_photos" }

type ProductPhoto struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string         `gorm:"type:varchar(36);not null;index" json:"store_id"`
	ProductID string         `gorm:"type:varchar(36);index" json:"product_id"`
	PhotoURLs datatypes.JSON `gorm:"column:photo_urls" json:"photo_urls,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (ProductPhoto) TableName() string { return "product_photos" }

type InventoryPhoto struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	PhotoURL  string    `gorm:"type:text" json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (InventoryPhoto) TableName() string { return "inventory_photos" }

type StoreFile struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	FileName  string    `gorm:"type:varchar(255)" json:"file_name"`
	FileURL   string    `gorm:"type:text" json:"file_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (StoreFile) TableName() string { return "store_files" }

type StoreContact struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (StoreContact) TableName() string { return "store_contacts" }

type Expense struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	Amount    int64     `json:"amount"`
	SpentOn   time.Time `json:"spent_on"`
	CreatedAt time.Time `json:"created_at"`
}

func (Expense) TableName() string { return "expenses" }

type RecurringExpense struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID    string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	Amount     int64     `json:"amount"`
	DayOfMonth int       `json:"day_of_month"`
	CreatedAt  time.Time `json:"created_at"`
}

func (RecurringExpense) TableName() string { return "recurring_expenses" }

type StoreProductLocation struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	ProductID string    `gorm:"type:varchar(36);index" json:"product_id"`
	Location  string    `gorm:"type:varchar(255)" json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

func (StoreProductLocation) TableName() string { return "store_product_locations" }

// StoreNameMapping maps an external system's store name onto a store.
type StoreNameMapping struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	SystemStoreID string    `gorm:"type:varchar(36);not null;index" json:"system_store_id"`
	ExternalName  string    `gorm:"type:varchar(255)" json:"external_name"`
	CreatedAt     time.Time `json:"created_at"`
}

func (StoreNameMapping) TableName() string { return "store_name_mappings" }

type Revenue struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string    `gorm:"type:varchar(36);not null;index" json:"store_id"`
	Amount    int64     `json:"amount"`
	EarnedOn  time.Time `json:"earned_on"`
	CreatedAt time.Time `json:"created_at"`
}

func (Revenue) TableName() string { return "revenues" }

// Receipt belongs to a store only through its revenue.
type Receipt struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	RevenueID string    `gorm:"type:varchar(36);not null;index" json:"revenue_id"`
	Number    string    `gorm:"type:varchar(64)" json:"number"`
	CreatedAt time.Time `json:"created_at"`
}

func (Receipt) TableName() string { return "receipts" }

// StoreRecords returns every store-owned model, for AutoMigrate.
func StoreRecords() []interface{} {
	return []interface{}{
		&StoreAssign{},
		&Attendance{},
		&SupplyRequest{},
		&Request{},
		&ProblemReport{},
		&LostItem{},
		&Issue{},
		&Checklist{},
		&CleaningPhoto{},
		&ProductPhoto{},
		&InventoryPhoto{},
		&StoreFile{},
		&StoreContact{},
		&Expense{},
		&RecurringExpense{},
		&StoreProductLocation{},
		&StoreNameMapping{},
		&Revenue{},
		&Receipt{},
	}
}
