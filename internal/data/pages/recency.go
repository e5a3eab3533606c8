package pages

import (
	"gorm.io/gorm"
)

// touchRecent moves the slug to the front of the recency index. It must run
// inside the transaction that writes the page so the slug is never listed twice.
func touchRecent(tx *gorm.DB, slug string) error {
	if err := dropRecent(tx, slug); err != nil {
		return err
	}
	if err := tx.Create(&RecentEntry{Slug: slug}).Error; err != nil {
		return unavailable(err, "prepending recency index entry")
	}
	return nil
}

func dropRecent(tx *gorm.DB, slug string) error {
	if err := tx.Where("slug = ?", slug).Delete(&RecentEntry{}).Error; err != nil {
		return unavailable(err, "removing recency index entry")
	}
	return nil
}

func recentSlugs(db *gorm.DB, limit int) ([]string, error) {
	var slugs []string
	err := db.Model(&RecentEntry{}).
		Order("id DESC").
		Limit(limit).
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, unavailable(err, "reading recency index")
	}
	return slugs, nil
}
