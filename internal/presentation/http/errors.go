package http

import (
	"context"
	"errors"
	stdhttp "net/http"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"shareme/app/internal/domain/accounts"
	"shareme/app/internal/domain/pages"
)

const errorFallbackMessage = "We couldn't process your request right now."

// apiError is the JSON error body. It satisfies huma.StatusError so Huma writes it as-is.
type apiError struct {
	status int
	OK     bool   `json:"ok"`
	Code   string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (e *apiError) Error() string {
	if e.Reason != "" {
		return e.Code + ": " + e.Reason
	}
	return e.Code
}

func (e *apiError) GetStatus() int {
	return e.status
}

type classifiedError struct {
	status  int
	code    string
	field   string
	reason  string
	message string
}

// classifyError maps the domain error taxonomy onto HTTP semantics.
func classifyError(err error) classifiedError {
	var validation *pages.ValidationError
	switch {
	case err == nil:
		return classifiedError{status: stdhttp.StatusInternalServerError, code: "internal_error", message: errorFallbackMessage}
	case errors.As(err, &validation):
		return classifiedError{
			status:  stdhttp.StatusBadRequest,
			code:    "invalid_input",
			field:   validation.Field,
			reason:  validation.Reason,
			message: "Please check the " + validation.Field + " and try again.",
		}
	case eris.Is(err, pages.ErrAlreadyExists):
		return classifiedError{
			status:  stdhttp.StatusConflict,
			code:    "conflict",
			field:   "slug",
			reason:  pages.ReasonTaken,
			message: "That link is already taken. Pick another one.",
		}
	case eris.Is(err, pages.ErrNotFound):
		return classifiedError{status: stdhttp.StatusNotFound, code: "not_found", message: "We couldn't find that page."}
	case eris.Is(err, pages.ErrForbidden):
		return classifiedError{status: stdhttp.StatusForbidden, code: "forbidden", message: "You do not have permission to change this page."}
	case eris.Is(err, pages.ErrStoreUnavailable):
		return classifiedError{status: stdhttp.StatusServiceUnavailable, code: "unavailable", message: "Storage is temporarily unavailable. Please try again shortly."}
	case eris.Is(err, accounts.ErrInvalidLoginToken):
		return classifiedError{status: stdhttp.StatusBadRequest, code: "invalid_token", message: "Invalid or expired login link. Please request a new one from the bot."}
	case eris.Is(err, accounts.ErrUserNotFound):
		return classifiedError{status: stdhttp.StatusNotFound, code: "user_not_found", message: "User not found. Please start the bot again."}
	default:
		return classifiedError{status: stdhttp.StatusInternalServerError, code: "internal_error", message: errorFallbackMessage}
	}
}

// apiFailure logs err and converts it into the JSON error body.
func (s *Server) apiFailure(ctx context.Context, err error, message string, fields logrus.Fields) error {
	classified := classifyError(err)
	s.logFailure(ctx, classified.status, err, message, fields)
	return &apiError{
		status: classified.status,
		Code:   classified.code,
		Field:  classified.field,
		Reason: classified.reason,
	}
}

// htmlFailure logs err and renders the matching error page.
func (s *Server) htmlFailure(ctx context.Context, err error, message string, fields logrus.Fields) *htmlResponse {
	classified := classifyError(err)
	s.logFailure(ctx, classified.status, err, message, fields)
	return s.renderErrorResponse(ctx, classified.status, classified.message)
}

func (s *Server) logFailure(ctx context.Context, status int, err error, message string, fields logrus.Fields) {
	if status >= stdhttp.StatusInternalServerError {
		s.recordError(ctx, err, message, fields)
		return
	}
	if s.logger == nil {
		return
	}

	entry := s.logger.WithField("status", status).WithField("error", err.Error())
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	entry.Info(message)
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
