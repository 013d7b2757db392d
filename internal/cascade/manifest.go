package cascade

import (
	"errors"
	"fmt"
)

// Root describes the aggregate root table. The root row is soft-deleted,
// never removed.
type Root struct {
	Table           string
	IDColumn        string
	NameColumn      string
	DeletedAtColumn string
	UpdatedAtColumn string
}

// PrimaryKeyColumn is the primary key of every dependent table.
const PrimaryKeyColumn = "id"

// Entry is one table whose Column holds the root id.
//
// Every manifest table must have a primary key column named PrimaryKeyColumn;
// plans read it for sample ids.
type Entry struct {
	Table  string
	Column string

	// Media lists the row's storage URLs. Nil for tables without media;
	// their rows still count toward the plan.
	Media MediaExtractor
}

// Indirect describes rows that reach the root only through an intermediate
// table: Table.Column references Parent.ParentKey, and Parent.ParentColumn
// holds the root id. Indirect rows are always deleted before their parents.
type Indirect struct {
	Table  string
	Column string

	Parent       string
	ParentKey    string
	ParentColumn string
	ParentMedia  MediaExtractor
}

// Manifest is the ordered list of everything that belongs to a root entity.
// Adding a table with a root-scoped foreign key means adding an Entry here.
type Manifest struct {
	Root     Root
	Entries  []Entry
	Indirect []Indirect
}

// Validate checks that every table and column is named and no table is listed twice.
func (m Manifest) Validate() error {
	if m.Root.Table == "" || m.Root.IDColumn == "" || m.Root.DeletedAtColumn == "" {
		return errors.New("manifest: root table, id column and deleted_at column are required")
	}
	seen := map[string]bool{m.Root.Table: true}
	add := func(table, column string) error {
		if table == "" || column == "" {
			return fmt.Errorf("manifest: entry %q has an empty table or column", table)
		}
		if seen[table] {
			return fmt.Errorf("manifest: table %q listed twice", table)
		}
		seen[table] = true
		return nil
	}
	for _, e := range m.Entries {
		if err := add(e.Table, e.Column); err != nil {
			return err
		}
	}
	for _, ind := range m.Indirect {
		if ind.ParentKey == "" || ind.ParentColumn == "" {
			return fmt.Errorf("manifest: indirect %q needs parent key and column", ind.Table)
		}
		if err := add(ind.Table, ind.Column); err != nil {
			return err
		}
		if err := add(ind.Parent, ind.ParentColumn); err != nil {
			return err
		}
	}
	return nil
}

// Tables returns every table the manifest touches, in deletion order, root last.
func (m Manifest) Tables() []string {
	tables := make([]string, 0, len(m.Entries)+2*len(m.Indirect)+1)
	for _, e := range m.Entries {
		tables = append(tables, e.Table)
	}
	for _, ind := range m.Indirect {
		tables = append(tables, ind.Table, ind.Parent)
	}
	return append(tables, m.Root.Table)
}

// requestPhotos are the photo columns shared by request-style tables.
var requestPhotos = Fields{"photo_url", "completion_photo_url", "rejection_photo_url"}

// DefaultManifest returns the store manifest.
func DefaultManifest() Manifest {
	return Manifest{
		Root: Root{
			Table:           "stores",
			IDColumn:        "id",
			NameColumn:      "name",
			DeletedAtColumn: "deleted_at",
			UpdatedAtColumn: "updated_at",
		},
		Entries: []Entry{
			{Table: "store_assign", Column: "store_id"},
			{Table: "attendance", Column: "store_id"},
			{Table: "supply_requests", Column: "store_id", Media: requestPhotos},
			{Table: "requests", Column: "store_id", Media: requestPhotos},
			{Table: "problem_reports", Column: "store_id", Media: Fields{"photo_url"}},
			{Table: "lost_items", Column: "store_id", Media: Fields{"photo_url"}},
			{Table: "issues", Column: "store_id", Media: Combine{Fields{"photo_url"}, JSONStrings("photo_urls")}},
			{Table: "checklist", Column: "store_id", Media: JSONItems{Column: "items", Fields: []string{"before_photo_url", "after_photo_url"}}},
			{Table: "cleaning_photos", Column: "store_id", Media: Fields{"photo_url"}},
			{Table: "product_photos", Column: "store_id", Media: JSONStrings("photo_urls")},
			{Table: "inventory_photos", Column: "store_id", Media: Fields{"photo_url"}},
			{Table: "store_files", Column: "store_id", Media: Fields{"file_url"}},
			{Table: "store_contacts", Column: "store_id"},
			{Table: "expenses", Column: "store_id"},
			{Table: "recurring_expenses", Column: "store_id"},
			{Table: "store_product_locations", Column: "store_id"},
			{Table: "store_name_mappings", Column: "system_store_id"},
		},
		Indirect: []Indirect{
			{
				Table:        "receipts",
				Column:       "revenue_id",
				Parent:       "revenues",
				ParentKey:    "id",
				ParentColumn: "store_id",
			},
		},
	}
}
