package accounts

import (
	"context"
	"time"
)

// Repository persists bot users and their login tokens.
type Repository interface {
	SaveUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	SaveLoginToken(ctx context.Context, token LoginToken) error
	ResolveLoginToken(ctx context.Context, token string, now time.Time) (string, error)
	PurgeExpiredLoginTokens(ctx context.Context, now time.Time) (int64, error)
}
