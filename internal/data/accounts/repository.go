package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainaccounts "shareme/app/internal/domain/accounts"
)

const defaultTimeout = 3 * time.Second

// Repository persists bot users and login tokens via Gorm.
type Repository struct {
	db      *gorm.DB
	logger  *logrus.Logger
	timeout time.Duration
}

var _ domainaccounts.Repository = (*Repository)(nil)

// NewRepository constructs a Gorm-backed account repository. A non-positive
// timeout falls back to the default store timeout.
func NewRepository(db *gorm.DB, logger *logrus.Logger, timeout time.Duration) (*Repository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Repository{db: db, logger: logger, timeout: timeout}, nil
}

// SaveUser inserts the user or refreshes the display name of an existing one.
// The original creation time is kept and copied back into user.
func (r *Repository) SaveUser(ctx context.Context, user *domainaccounts.User) error {
	if user == nil {
		return eris.New("user is nil")
	}

	id := strings.TrimSpace(user.ID)
	if id == "" {
		return eris.New("user id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	created := user.CreatedAt
	if created.IsZero() {
		created = now
	}

	record := UserRecord{ID: id, Name: strings.TrimSpace(user.Name), CreatedAt: created, UpdatedAt: now}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		r.logError(logrus.Fields{"user_id": id}, err, "saving user")
		return eris.Wrapf(err, "saving user: %s", id)
	}

	var stored UserRecord
	if err := r.db.WithContext(ctx).First(&stored, "id = ?", id).Error; err != nil {
		r.logError(logrus.Fields{"user_id": id}, err, "reloading user")
		return eris.Wrapf(err, "reloading user: %s", id)
	}

	user.ID = stored.ID
	user.Name = stored.Name
	user.CreatedAt = stored.CreatedAt
	return nil
}

// GetUser returns the user or ErrUserNotFound.
func (r *Repository) GetUser(ctx context.Context, id string) (*domainaccounts.User, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, eris.Wrap(domainaccounts.ErrUserNotFound, "user id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var record UserRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", trimmed).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, eris.Wrapf(domainaccounts.ErrUserNotFound, "user %s", trimmed)
		}
		r.logError(logrus.Fields{"user_id": trimmed}, err, "fetching user")
		return nil, eris.Wrapf(err, "fetching user: %s", trimmed)
	}

	return &domainaccounts.User{ID: record.ID, Name: record.Name, CreatedAt: record.CreatedAt}, nil
}

// SaveLoginToken stores a new login token.
func (r *Repository) SaveLoginToken(ctx context.Context, token domainaccounts.LoginToken) error {
	if strings.TrimSpace(token.Token) == "" || strings.TrimSpace(token.UserID) == "" {
		return eris.New("login token and user id are required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	record := LoginTokenRecord{
		Token:     token.Token,
		UserID:    strings.TrimSpace(token.UserID),
		ExpiresAt: token.ExpiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		r.logError(logrus.Fields{"user_id": record.UserID}, err, "saving login token")
		return eris.Wrap(err, "saving login token")
	}
	return nil
}

// ResolveLoginToken returns the user id for a token that has not expired at now.
func (r *Repository) ResolveLoginToken(ctx context.Context, token string, now time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var record LoginTokenRecord
	err := r.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, now.UTC()).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", eris.Wrap(domainaccounts.ErrInvalidLoginToken, "token unknown or expired")
		}
		r.logError(nil, err, "resolving login token")
		return "", eris.Wrap(err, "resolving login token")
	}

	return record.UserID, nil
}

// PurgeExpiredLoginTokens deletes tokens that expired at or before now.
func (r *Repository) PurgeExpiredLoginTokens(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result := r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&LoginTokenRecord{})
	if result.Error != nil {
		r.logError(nil, result.Error, "purging expired login tokens")
		return 0, eris.Wrap(result.Error, "purging expired login tokens")
	}
	return result.RowsAffected, nil
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
