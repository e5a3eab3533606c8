package pages

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"shareme/app/internal/data/database"
	domainpages "shareme/app/internal/domain/pages"
)

const defaultTimeout = 3 * time.Second

// Options tunes the repository.
type Options struct {
	Logger *logrus.Logger
	// Timeout bounds every store call; expiry surfaces as ErrStoreUnavailable.
	Timeout time.Duration
	Now     func() time.Time
}

type timeoutFunc func(context.Context) (context.Context, context.CancelFunc)

func (o Options) timeoutFunc() timeoutFunc {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, timeout)
	}
}

// Repository persists pages, the recency index and the owner index in SQLite via Gorm.
type Repository struct {
	db      *gorm.DB
	owners  *OwnerIndex
	logger  *logrus.Logger
	timeout timeoutFunc
	now     func() time.Time
}

var _ domainpages.Repository = (*Repository)(nil)

// NewRepository constructs a Gorm-backed page repository.
func NewRepository(db *gorm.DB, opts Options) (*Repository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	owners, err := NewOwnerIndex(db, opts)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Repository{
		db:      db,
		owners:  owners,
		logger:  opts.Logger,
		timeout: opts.timeoutFunc(),
		now:     now,
	}, nil
}

// Owners exposes the owner index sharing this repository's connection.
func (r *Repository) Owners() *OwnerIndex {
	return r.owners
}

// Create inserts the page, prepends it to the recency index and records its
// owner in one transaction. A live slug yields ErrAlreadyExists.
func (r *Repository) Create(ctx context.Context, page *domainpages.Page) error {
	if page == nil {
		return eris.New("page is nil")
	}

	slug := strings.TrimSpace(page.Slug)
	if slug == "" {
		return eris.New("page slug is required")
	}
	if page.EditToken.IsZero() {
		return eris.New("page edit token is required")
	}

	record := toRecord(page)
	record.Slug = slug

	ctx, cancel := r.timeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			if isDuplicate(err) {
				return eris.Wrapf(domainpages.ErrAlreadyExists, "slug %s", slug)
			}
			return unavailable(err, "inserting page")
		}

		if err := touchRecent(tx, slug); err != nil {
			return err
		}

		if !page.OwnerID.IsZero() {
			return addOwnerEntry(tx, page.OwnerID, slug)
		}
		return nil
	})
	if err != nil {
		err = classify(err, "creating page")
		if !eris.Is(err, domainpages.ErrAlreadyExists) {
			r.logError(logrus.Fields{"slug": slug}, err, "creating page")
		}
		return err
	}

	page.Slug = slug
	return nil
}

// Get returns the page or ErrNotFound.
func (r *Repository) Get(ctx context.Context, slug string) (*domainpages.Page, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return nil, eris.Wrap(domainpages.ErrNotFound, "slug is required")
	}

	ctx, cancel := r.timeout(ctx)
	defer cancel()

	var record PageRecord
	err := r.db.WithContext(ctx).First(&record, "slug = ?", trimmed).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, eris.Wrapf(domainpages.ErrNotFound, "slug %s", trimmed)
		}
		r.logError(logrus.Fields{"slug": trimmed}, err, "fetching page by slug")
		return nil, unavailable(err, "fetching page by slug")
	}

	return toDomainPage(&record), nil
}

// Exists reports whether a live page uses the slug.
func (r *Repository) Exists(ctx context.Context, slug string) (bool, error) {
	ctx, cancel := r.timeout(ctx)
	defer cancel()

	var count int64
	err := r.db.WithContext(ctx).
		Model(&PageRecord{}).
		Where("slug = ?", strings.TrimSpace(slug)).
		Count(&count).Error
	if err != nil {
		r.logError(logrus.Fields{"slug": slug}, err, "checking slug existence")
		return false, unavailable(err, "checking slug existence")
	}

	return count > 0, nil
}

// Update merges the supplied fields and moves the page to the front of the recency index.
// Slug, creation time and edit token are never written.
func (r *Repository) Update(ctx context.Context, slug string, update domainpages.PageUpdate) error {
	trimmed := strings.TrimSpace(slug)

	columns := map[string]any{"updated_at": r.now().UTC()}
	if update.Title != nil {
		columns["title"] = *update.Title
	}
	if update.Content != nil {
		columns["content"] = *update.Content
	}
	if update.Author != nil {
		columns["author"] = *update.Author
	}
	if update.Views != nil {
		if *update.Views < 0 {
			return eris.New("views must not be negative")
		}
		columns["views"] = *update.Views
	}

	ctx, cancel := r.timeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&PageRecord{}).Where("slug = ?", trimmed).UpdateColumns(columns)
		if result.Error != nil {
			return unavailable(result.Error, "updating page")
		}
		if result.RowsAffected == 0 {
			return eris.Wrapf(domainpages.ErrNotFound, "slug %s", trimmed)
		}
		return touchRecent(tx, trimmed)
	})
	if err != nil {
		err = classify(err, "updating page")
		if !eris.Is(err, domainpages.ErrNotFound) {
			r.logError(logrus.Fields{"slug": trimmed}, err, "updating page")
		}
		return err
	}

	return nil
}

// IncrementViews adds one to the view counter in a single statement.
func (r *Repository) IncrementViews(ctx context.Context, slug string) error {
	trimmed := strings.TrimSpace(slug)

	ctx, cancel := r.timeout(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).
		Model(&PageRecord{}).
		Where("slug = ?", trimmed).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if result.Error != nil {
		return unavailable(result.Error, "incrementing views")
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(domainpages.ErrNotFound, "slug %s", trimmed)
	}

	return nil
}

// Delete removes the page together with its recency and owner index entries.
// Deleting a missing slug is not an error.
func (r *Repository) Delete(ctx context.Context, slug string) error {
	trimmed := strings.TrimSpace(slug)

	ctx, cancel := r.timeout(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("slug = ?", trimmed).Delete(&PageRecord{}).Error; err != nil {
			return unavailable(err, "deleting page")
		}
		if err := dropRecent(tx, trimmed); err != nil {
			return err
		}
		return removeSlugFromOwners(tx, trimmed)
	})
	if err != nil {
		err = classify(err, "deleting page")
		r.logError(logrus.Fields{"slug": trimmed}, err, "deleting page")
		return err
	}

	return nil
}

// ListRecent returns up to limit pages, most recently created or updated first.
// Index entries without a backing record are skipped.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]domainpages.Page, error) {
	if limit <= 0 {
		return []domainpages.Page{}, nil
	}

	ctx, cancel := r.timeout(ctx)
	defer cancel()

	db := r.db.WithContext(ctx)
	slugs, err := recentSlugs(db, limit)
	if err != nil {
		r.logError(nil, err, "reading recency index")
		return nil, err
	}

	records, err := r.recordsBySlug(db, slugs)
	if err != nil {
		return nil, err
	}

	pages := make([]domainpages.Page, 0, len(slugs))
	for _, slug := range slugs {
		record, ok := records[slug]
		if !ok {
			continue
		}
		pages = append(pages, *toDomainPage(record))
	}

	if dangling := len(slugs) - len(pages); dangling > 0 && r.logger != nil {
		r.logger.WithField("dangling", dangling).Debug("recency index references missing pages")
	}

	return pages, nil
}

// ListByOwner returns the owner's pages newest first. Owner index entries whose
// page is gone or owned by someone else are dropped and removed from the index.
func (r *Repository) ListByOwner(ctx context.Context, owner domainpages.OwnerID, limit int) ([]domainpages.Page, error) {
	if owner.IsZero() || limit <= 0 {
		return []domainpages.Page{}, nil
	}

	slugs, err := r.owners.List(ctx, owner)
	if err != nil {
		r.logError(logrus.Fields{"owner_id": owner.String()}, err, "listing owner index")
		return nil, err
	}
	if len(slugs) == 0 {
		return []domainpages.Page{}, nil
	}

	readCtx, cancel := r.timeout(ctx)
	defer cancel()

	var records []PageRecord
	err = r.db.WithContext(readCtx).
		Where("slug IN ?", slugs).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		r.logError(logrus.Fields{"owner_id": owner.String()}, err, "loading owner pages")
		return nil, unavailable(err, "loading owner pages")
	}

	matched := make(map[string]struct{}, len(records))
	pages := make([]domainpages.Page, 0, len(records))
	for i := range records {
		record := &records[i]
		if record.OwnerID == nil || *record.OwnerID != strings.TrimSpace(owner.String()) {
			continue
		}
		matched[record.Slug] = struct{}{}
		pages = append(pages, *toDomainPage(record))
	}

	r.healOwnerIndex(ctx, owner, slugs, matched)

	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages, nil
}

// Search matches the query against titles and content, newest first.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]domainpages.Page, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || limit <= 0 {
		return []domainpages.Page{}, nil
	}

	ctx, cancel := r.timeout(ctx)
	defer cancel()

	pattern := "%" + escapeLike(trimmed) + "%"
	var records []PageRecord
	err := r.db.WithContext(ctx).
		Where(`title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		r.logError(logrus.Fields{"query": trimmed}, err, "searching pages")
		return nil, unavailable(err, "searching pages")
	}

	pages := make([]domainpages.Page, 0, len(records))
	for i := range records {
		pages = append(pages, *toDomainPage(&records[i]))
	}
	return pages, nil
}

// Ping checks that the store answers.
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := r.timeout(ctx)
	defer cancel()

	if err := database.Ping(ctx, r.db); err != nil {
		return unavailable(err, "pinging page store")
	}
	return nil
}

func (r *Repository) recordsBySlug(db *gorm.DB, slugs []string) (map[string]*PageRecord, error) {
	result := make(map[string]*PageRecord, len(slugs))
	if len(slugs) == 0 {
		return result, nil
	}

	var records []PageRecord
	if err := db.Where("slug IN ?", slugs).Find(&records).Error; err != nil {
		r.logError(nil, err, "loading pages by slug")
		return nil, unavailable(err, "loading pages by slug")
	}

	for i := range records {
		result[records[i].Slug] = &records[i]
	}
	return result, nil
}

func (r *Repository) healOwnerIndex(ctx context.Context, owner domainpages.OwnerID, slugs []string, matched map[string]struct{}) {
	for _, slug := range slugs {
		if _, ok := matched[slug]; ok {
			continue
		}
		if err := r.owners.Remove(ctx, owner, slug); err != nil {
			r.logError(logrus.Fields{"owner_id": owner.String(), "slug": slug}, err, "removing dangling owner index entry")
			continue
		}
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"owner_id": owner.String(), "slug": slug}).Info("removed dangling owner index entry")
		}
	}
}

func (r *Repository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

func toRecord(page *domainpages.Page) PageRecord {
	record := PageRecord{
		Slug:      page.Slug,
		Title:     page.Title,
		Content:   page.Content,
		Author:    page.Author,
		EditToken: page.EditToken.Reveal(),
		Views:     page.Views,
		CreatedAt: page.CreatedAt,
		UpdatedAt: page.UpdatedAt,
	}
	if !page.OwnerID.IsZero() {
		owner := strings.TrimSpace(page.OwnerID.String())
		record.OwnerID = &owner
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	return record
}

func toDomainPage(record *PageRecord) *domainpages.Page {
	if record == nil {
		return nil
	}

	page := &domainpages.Page{
		Slug:      record.Slug,
		Title:     record.Title,
		Content:   record.Content,
		Author:    record.Author,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
		EditToken: domainpages.ParseEditToken(record.EditToken),
		Views:     record.Views,
	}
	if record.OwnerID != nil {
		page.OwnerID = domainpages.OwnerID(*record.OwnerID)
	}
	return page
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

// unavailable records a backend failure as ErrStoreUnavailable, keeping the driver message.
func unavailable(err error, message string) error {
	return eris.Wrapf(domainpages.ErrStoreUnavailable, "%s: %v", message, err)
}

// classify keeps taxonomy errors returned from a transaction and marks everything else unavailable.
func classify(err error, message string) error {
	switch {
	case eris.Is(err, domainpages.ErrAlreadyExists),
		eris.Is(err, domainpages.ErrNotFound),
		eris.Is(err, domainpages.ErrStoreUnavailable):
		return err
	default:
		return unavailable(err, message)
	}
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
