package pages

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Service is the publishing workflow on top of the repository: slug allocation,
// authorization, sanitization and best-effort read side effects.
type Service interface {
	CheckSlug(ctx context.Context, candidate string) (Availability, error)
	Publish(ctx context.Context, input PublishInput) (*PublishResult, error)
	View(ctx context.Context, slug string) (*Page, error)
	OpenForEdit(ctx context.Context, slug string, token EditToken, owner OwnerID) (*Page, error)
	Delete(ctx context.Context, slug string, token EditToken, owner OwnerID) error
	ListRecent(ctx context.Context, limit int) ([]Summary, error)
	ListOwned(ctx context.Context, owner OwnerID, limit int) ([]Summary, error)
	Search(ctx context.Context, query string, limit int) ([]Summary, error)
	Health(ctx context.Context) error
}

// PublishInput covers both new pages (Slug empty) and edits of an existing page.
type PublishInput struct {
	Slug       string
	EditToken  EditToken
	Owner      OwnerID
	Title      string
	Content    string
	Author     string
	CustomSlug string
}

// PublishResult is returned to the publisher. The token lets anonymous authors edit later.
type PublishResult struct {
	Slug      string
	EditToken EditToken
	Created   bool
}

// Slug strategies used when no custom slug is supplied.
const (
	StrategyRandom = "random"
	StrategyTitle  = "title"
)

const (
	DefaultListLimit      = 50
	MaxListLimit          = 1000
	maxAllocationAttempts = 5
)

// ServiceOptions wires the service dependencies.
type ServiceOptions struct {
	Repository   Repository
	Allocator    *Allocator
	SlugStrategy string
	Logger       *logrus.Logger
	SentryHub    *sentry.Hub
	Now          func() time.Time
}

type service struct {
	repo      Repository
	allocator *Allocator
	strategy  string
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	now       func() time.Time
}

var _ Service = (*service)(nil)

// NewService validates the options and constructs the page service.
func NewService(opts ServiceOptions) (Service, error) {
	if opts.Repository == nil {
		return nil, eris.New("page repository is required")
	}
	if opts.Allocator == nil {
		return nil, eris.New("slug allocator is required")
	}

	strategy := strings.ToLower(strings.TrimSpace(opts.SlugStrategy))
	switch strategy {
	case "":
		strategy = StrategyRandom
	case StrategyRandom, StrategyTitle:
	default:
		return nil, eris.Errorf("unknown slug strategy: %s", opts.SlugStrategy)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:      opts.Repository,
		allocator: opts.Allocator,
		strategy:  strategy,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
		now:       now,
	}, nil
}

func (s *service) CheckSlug(ctx context.Context, candidate string) (Availability, error) {
	result, err := s.allocator.CheckAvailability(ctx, candidate)
	if err != nil {
		s.recordError(logrus.Fields{"slug": result.NormalizedSlug}, err, "checking slug availability")
		return result, err
	}
	return result, nil
}

func (s *service) Publish(ctx context.Context, input PublishInput) (*PublishResult, error) {
	title, content, author, err := cleanFields(input)
	if err != nil {
		return nil, err
	}

	if slug := strings.TrimSpace(input.Slug); slug != "" {
		return s.edit(ctx, slug, input, title, content, author)
	}

	now := s.now().UTC()
	page := &Page{
		Title:     title,
		Content:   content,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
		EditToken: NewEditToken(),
		OwnerID:   OwnerID(strings.TrimSpace(input.Owner.String())),
	}

	if strings.TrimSpace(input.CustomSlug) != "" {
		if err := s.createCustom(ctx, page, input.CustomSlug); err != nil {
			return nil, err
		}
	} else if err := s.createGenerated(ctx, page); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"slug":  page.Slug,
			"owned": page.Owned(),
		}).Info("page published")
	}

	return &PublishResult{Slug: page.Slug, EditToken: page.EditToken, Created: true}, nil
}

func (s *service) createCustom(ctx context.Context, page *Page, custom string) error {
	availability := s.allocator.Validate(custom)
	if !availability.Available {
		return invalid("slug", availability.Reason)
	}

	page.Slug = availability.NormalizedSlug
	if err := s.repo.Create(ctx, page); err != nil {
		if !eris.Is(err, ErrAlreadyExists) {
			s.recordError(logrus.Fields{"slug": page.Slug}, err, "creating page with custom slug")
		}
		return eris.Wrapf(err, "creating page: %s", page.Slug)
	}
	return nil
}

func (s *service) createGenerated(ctx context.Context, page *Page) error {
	var lastErr error
	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		slug, err := s.allocate(page.Title, attempt)
		if err != nil {
			s.recordError(nil, err, "allocating slug")
			return eris.Wrap(err, "allocating slug")
		}

		page.Slug = slug
		err = s.repo.Create(ctx, page)
		if err == nil {
			return nil
		}
		if !eris.Is(err, ErrAlreadyExists) {
			s.recordError(logrus.Fields{"slug": slug}, err, "creating page")
			return eris.Wrapf(err, "creating page: %s", slug)
		}

		lastErr = err
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"slug": slug, "attempt": attempt + 1}).Warn("generated slug collided, retrying")
		}
	}

	s.recordError(nil, lastErr, "exhausted slug allocation attempts")
	return eris.Wrap(lastErr, "exhausted slug allocation attempts")
}

// allocate prefers the configured strategy and falls back to a random slug after a title collision.
func (s *service) allocate(title string, attempt int) (string, error) {
	if s.strategy == StrategyTitle && attempt == 0 {
		return s.allocator.AllocateFromTitle(title)
	}
	return s.allocator.AllocateRandom(DefaultRandomLength)
}

func (s *service) edit(ctx context.Context, slug string, input PublishInput, title, content, author string) (*PublishResult, error) {
	page, err := s.authorize(ctx, slug, input.EditToken, input.Owner)
	if err != nil {
		return nil, err
	}

	update := PageUpdate{Title: &title, Content: &content, Author: &author}
	if err := s.repo.Update(ctx, page.Slug, update); err != nil {
		if !eris.Is(err, ErrNotFound) {
			s.recordError(logrus.Fields{"slug": page.Slug}, err, "updating page")
		}
		return nil, eris.Wrapf(err, "updating page: %s", page.Slug)
	}

	if s.logger != nil {
		s.logger.WithField("slug", page.Slug).Info("page updated")
	}

	return &PublishResult{Slug: page.Slug, EditToken: page.EditToken}, nil
}

func (s *service) View(ctx context.Context, slug string) (*Page, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return nil, eris.Wrap(ErrNotFound, "empty slug")
	}

	page, err := s.repo.Get(ctx, trimmed)
	if err != nil {
		if !eris.Is(err, ErrNotFound) {
			s.recordError(logrus.Fields{"slug": trimmed}, err, "loading page")
		}
		return nil, eris.Wrapf(err, "loading page: %s", trimmed)
	}

	// View counting is best-effort; the read succeeds even if the increment fails.
	if err := s.repo.IncrementViews(ctx, trimmed); err != nil {
		if s.logger != nil {
			s.logger.WithField("slug", trimmed).WithField("error", err.Error()).Warn("incrementing page views failed")
		}
	} else {
		page.Views++
	}

	return page, nil
}

func (s *service) OpenForEdit(ctx context.Context, slug string, token EditToken, owner OwnerID) (*Page, error) {
	return s.authorize(ctx, strings.TrimSpace(slug), token, owner)
}

func (s *service) Delete(ctx context.Context, slug string, token EditToken, owner OwnerID) error {
	page, err := s.authorize(ctx, strings.TrimSpace(slug), token, owner)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, page.Slug); err != nil {
		s.recordError(logrus.Fields{"slug": page.Slug}, err, "deleting page")
		return eris.Wrapf(err, "deleting page: %s", page.Slug)
	}

	if s.logger != nil {
		s.logger.WithField("slug", page.Slug).Info("page deleted")
	}
	return nil
}

func (s *service) authorize(ctx context.Context, slug string, token EditToken, owner OwnerID) (*Page, error) {
	if slug == "" {
		return nil, eris.Wrap(ErrNotFound, "empty slug")
	}

	page, err := s.repo.Get(ctx, slug)
	if err != nil {
		if !eris.Is(err, ErrNotFound) {
			s.recordError(logrus.Fields{"slug": slug}, err, "loading page for authorization")
		}
		return nil, eris.Wrapf(err, "loading page: %s", slug)
	}

	if !CanMutate(page, token, owner) {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{
				"slug":           slug,
				"token_supplied": !token.IsZero(),
				"identity":       !owner.IsZero(),
			}).Warn("page mutation denied")
		}
		return nil, eris.Wrapf(ErrForbidden, "mutating page: %s", slug)
	}

	return page, nil
}

func (s *service) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	pages, err := s.repo.ListRecent(ctx, clampLimit(limit))
	if err != nil {
		return s.degradeList(err, nil, "listing recent pages")
	}
	return summarize(pages), nil
}

func (s *service) ListOwned(ctx context.Context, owner OwnerID, limit int) ([]Summary, error) {
	if owner.IsZero() {
		return []Summary{}, nil
	}

	pages, err := s.repo.ListByOwner(ctx, owner, clampLimit(limit))
	if err != nil {
		return s.degradeList(err, logrus.Fields{"owner_id": owner.String()}, "listing owner pages")
	}
	return summarize(pages), nil
}

func (s *service) Search(ctx context.Context, query string, limit int) ([]Summary, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return []Summary{}, nil
	}

	pages, err := s.repo.Search(ctx, trimmed, clampLimit(limit))
	if err != nil {
		return s.degradeList(err, logrus.Fields{"query": trimmed}, "searching pages")
	}
	return summarize(pages), nil
}

func (s *service) Health(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return eris.Wrap(err, "page store health check")
	}
	return nil
}

// degradeList turns store outages on read paths into empty results.
func (s *service) degradeList(err error, fields logrus.Fields, message string) ([]Summary, error) {
	s.recordError(fields, err, message)
	if eris.Is(err, ErrStoreUnavailable) {
		return []Summary{}, nil
	}
	return nil, eris.Wrap(err, message)
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}

func cleanFields(input PublishInput) (string, string, string, error) {
	title := truncateRunes(PlainText(input.Title), MaxTitleLength)
	if title == "" {
		return "", "", "", invalid("title", ReasonRequired)
	}

	if len(input.Content) > MaxContentLength {
		return "", "", "", invalid("content", ReasonTooLong)
	}

	content, err := SanitizeContent(input.Content)
	if err != nil {
		return "", "", "", invalid("content", ReasonInvalidChars)
	}
	if content == "" {
		return "", "", "", invalid("content", ReasonRequired)
	}

	author := truncateRunes(PlainText(input.Author), MaxAuthorLength)
	return title, content, author, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func summarize(pages []Page) []Summary {
	summaries := make([]Summary, 0, len(pages))
	for i := range pages {
		summaries = append(summaries, pages[i].Summarize())
	}
	return summaries
}
