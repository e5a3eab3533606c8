package pages

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainpages "shareme/app/internal/domain/pages"
)

// OwnerIndex stores the identity to slug memberships in the owner_pages table.
type OwnerIndex struct {
	db      *gorm.DB
	timeout timeoutFunc
}

var _ domainpages.OwnerIndex = (*OwnerIndex)(nil)

// NewOwnerIndex constructs the owner index over the shared connection.
func NewOwnerIndex(db *gorm.DB, opts Options) (*OwnerIndex, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}
	return &OwnerIndex{db: db, timeout: opts.timeoutFunc()}, nil
}

// Add inserts the membership; adding an existing member is a no-op.
func (o *OwnerIndex) Add(ctx context.Context, owner domainpages.OwnerID, slug string) error {
	ctx, cancel := o.timeout(ctx)
	defer cancel()
	return addOwnerEntry(o.db.WithContext(ctx), owner, slug)
}

// Remove deletes the membership; removing an absent member is a no-op.
func (o *OwnerIndex) Remove(ctx context.Context, owner domainpages.OwnerID, slug string) error {
	ctx, cancel := o.timeout(ctx)
	defer cancel()

	err := o.db.WithContext(ctx).
		Where("owner_id = ? AND slug = ?", strings.TrimSpace(owner.String()), slug).
		Delete(&OwnerEntry{}).Error
	if err != nil {
		return unavailable(err, "removing owner index entry")
	}
	return nil
}

// List returns the owner's slugs in no particular order.
func (o *OwnerIndex) List(ctx context.Context, owner domainpages.OwnerID) ([]string, error) {
	ctx, cancel := o.timeout(ctx)
	defer cancel()

	var slugs []string
	err := o.db.WithContext(ctx).
		Model(&OwnerEntry{}).
		Where("owner_id = ?", strings.TrimSpace(owner.String())).
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, unavailable(err, "listing owner index")
	}
	return slugs, nil
}

func addOwnerEntry(tx *gorm.DB, owner domainpages.OwnerID, slug string) error {
	entry := OwnerEntry{OwnerID: strings.TrimSpace(owner.String()), Slug: slug}
	if entry.OwnerID == "" || entry.Slug == "" {
		return eris.New("owner and slug are required for owner index entries")
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
		return unavailable(err, "adding owner index entry")
	}
	return nil
}

func removeSlugFromOwners(tx *gorm.DB, slug string) error {
	if err := tx.Where("slug = ?", slug).Delete(&OwnerEntry{}).Error; err != nil {
		return unavailable(err, "removing slug from owner index")
	}
	return nil
}
