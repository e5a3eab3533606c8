package accounts

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"shareme/app/internal/domain/pages"
)

const (
	defaultLoginTokenTTL = 24 * time.Hour
	postCountLimit       = pages.MaxListLimit
)

// Service backs the chat-bot account flow: registration, login links and post listings.
type Service interface {
	Start(ctx context.Context, profile Profile) (*Account, error)
	Login(ctx context.Context, token string) (*User, error)
	User(ctx context.Context, id string) (*User, error)
	Posts(ctx context.Context, id string, limit int) ([]pages.Summary, error)
}

// ServiceOptions wires the account service.
type ServiceOptions struct {
	Repository    Repository
	Pages         pages.Service
	BaseURL       string
	LoginTokenTTL time.Duration
	Logger        *logrus.Logger
	SentryHub     *sentry.Hub
	Now           func() time.Time
}

type service struct {
	repo      Repository
	pages     pages.Service
	baseURL   string
	tokenTTL  time.Duration
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	now       func() time.Time
}

var _ Service = (*service)(nil)

// NewService validates the options and constructs the account service.
func NewService(opts ServiceOptions) (Service, error) {
	if opts.Repository == nil {
		return nil, eris.New("account repository is required")
	}
	if opts.Pages == nil {
		return nil, eris.New("page service is required")
	}

	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, eris.New("base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, eris.Wrapf(err, "invalid base url: %s", base)
	}

	ttl := opts.LoginTokenTTL
	if ttl <= 0 {
		ttl = defaultLoginTokenTTL
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:      opts.Repository,
		pages:     opts.Pages,
		baseURL:   base,
		tokenTTL:  ttl,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
		now:       now,
	}, nil
}

// Start registers or refreshes the user, counts their posts and issues a fresh login link.
func (s *service) Start(ctx context.Context, profile Profile) (*Account, error) {
	id := strings.TrimSpace(profile.ID)
	if id == "" {
		return nil, eris.New("user id is required")
	}

	now := s.now().UTC()
	user := &User{ID: id, Name: profile.FullName(), CreatedAt: now}
	if err := s.repo.SaveUser(ctx, user); err != nil {
		s.recordError(logrus.Fields{"user_id": id}, err, "saving bot user")
		return nil, eris.Wrapf(err, "saving user: %s", id)
	}

	token := LoginToken{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserID:    id,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if err := s.repo.SaveLoginToken(ctx, token); err != nil {
		s.recordError(logrus.Fields{"user_id": id}, err, "saving login token")
		return nil, eris.Wrapf(err, "saving login token for user: %s", id)
	}

	if purged, err := s.repo.PurgeExpiredLoginTokens(ctx, now); err != nil {
		s.recordError(nil, err, "purging expired login tokens")
	} else if purged > 0 && s.logger != nil {
		s.logger.WithField("purged", purged).Debug("purged expired login tokens")
	}

	posts, err := s.pages.ListOwned(ctx, pages.OwnerID(id), postCountLimit)
	if err != nil {
		return nil, eris.Wrapf(err, "counting posts for user: %s", id)
	}

	return &Account{
		User:      *user,
		PostCount: len(posts),
		LoginURL:  s.baseURL + "/auth/" + url.PathEscape(token.Token),
	}, nil
}

// Login redeems a login token. Tokens stay valid until they expire so a retried link still works.
func (s *service) Login(ctx context.Context, token string) (*User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, eris.Wrap(ErrInvalidLoginToken, "empty token")
	}

	userID, err := s.repo.ResolveLoginToken(ctx, trimmed, s.now().UTC())
	if err != nil {
		if !eris.Is(err, ErrInvalidLoginToken) {
			s.recordError(nil, err, "resolving login token")
		}
		return nil, eris.Wrap(err, "resolving login token")
	}

	user, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.WithField("user_id", user.ID).Info("user logged in from bot link")
	}
	return user, nil
}

func (s *service) User(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.GetUser(ctx, strings.TrimSpace(id))
	if err != nil {
		if !eris.Is(err, ErrUserNotFound) {
			s.recordError(logrus.Fields{"user_id": id}, err, "loading user")
		}
		return nil, eris.Wrapf(err, "loading user: %s", id)
	}
	return user, nil
}

// Posts lists the user's pages newest first.
func (s *service) Posts(ctx context.Context, id string, limit int) ([]pages.Summary, error) {
	posts, err := s.pages.ListOwned(ctx, pages.OwnerID(strings.TrimSpace(id)), limit)
	if err != nil {
		return nil, eris.Wrapf(err, "listing posts for user: %s", id)
	}
	return posts, nil
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
