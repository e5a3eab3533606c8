package http

import (
	"context"

	"shareme/app/internal/domain/pages"
)

type contextKey string

const (
	requestIDContextKey contextKey = "shareme/request-id"
	sessionContextKey   contextKey = "shareme/session"
)

// RequestIDFromContext extracts the request identifier from the context when available.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDContextKey).(string); ok {
		return value
	}
	return ""
}

// SessionFromContext returns the signed-in user attached by the session middleware.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	session, ok := ctx.Value(sessionContextKey).(Session)
	return session, ok && session.UserID != ""
}

func ownerFromContext(ctx context.Context) pages.OwnerID {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return ""
	}
	return pages.OwnerID(session.UserID)
}
