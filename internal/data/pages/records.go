package pages

import "time"

// PageRecord is the persisted page row. The slug is the primary key so the
// store itself rejects a second writer for the same slug.
type PageRecord struct {
	Slug      string    `gorm:"primaryKey;size:255"`
	Title     string    `gorm:"size:480;not null"`
	Content   string    `gorm:"type:text;not null"`
	Author    string    `gorm:"size:200;not null;default:''"`
	EditToken string    `gorm:"size:64;not null"`
	Views     int64     `gorm:"not null;default:0"`
	OwnerID   *string   `gorm:"size:64;index:idx_pages_owner"`
	CreatedAt time.Time `gorm:"not null;index:idx_pages_created_at"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName defines the table name for page records.
func (PageRecord) TableName() string {
	return "pages"
}

// RecentEntry is one slot of the recency index. Touching a page deletes and
// re-inserts its entry, so the highest ID is always the most recent slug.
type RecentEntry struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Slug string `gorm:"size:255;not null;uniqueIndex:idx_recent_pages_slug"`
}

// TableName defines the table name for the recency index.
func (RecentEntry) TableName() string {
	return "recent_pages"
}

// OwnerEntry is one membership of the owner index.
type OwnerEntry struct {
	OwnerID string `gorm:"primaryKey;size:64"`
	Slug    string `gorm:"primaryKey;size:255;index:idx_owner_pages_slug"`
}

// TableName defines the table name for the owner index.
func (OwnerEntry) TableName() string {
	return "owner_pages"
}

// Models lists every record type managed by this package, for migrations.
func Models() []any {
	return []any{&PageRecord{}, &RecentEntry{}, &OwnerEntry{}}
}
