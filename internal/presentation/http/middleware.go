package http

import (
	"context"
	"fmt"
	"math"
	"net"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const rateLimitMessage = "You're sending requests a bit too quickly. Please wait a moment and try again."

type middleware = func(huma.Context, func(huma.Context))

func (s *Server) requestIDMiddleware() middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		reqID := strings.TrimSpace(ctx.Header("X-Request-ID"))
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}

		goCtx := context.WithValue(ctx.Context(), requestIDContextKey, reqID)
		ctx = huma.WithContext(ctx, goCtx)
		ctx.SetHeader("X-Request-ID", reqID)

		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}

		next(ctx)
	}
}

// sessionMiddleware attaches the verified session cookie identity, if any, to the context.
func (s *Server) sessionMiddleware() middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		req, _ := humago.Unwrap(ctx)
		session, ok := s.sessions.FromRequest(req)
		if !ok {
			next(ctx)
			return
		}

		goCtx := context.WithValue(ctx.Context(), sessionContextKey, session)
		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetUser(sentry.User{ID: session.UserID})
		}
		next(huma.WithContext(ctx, goCtx))
	}
}

func (s *Server) rateLimitMiddleware() middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		req, _ := humago.Unwrap(ctx)
		if s.rateLimiter == nil || req == nil {
			next(ctx)
			return
		}

		ip := clientIPFromRequest(req)
		wait, allowed := s.rateLimiter.Reserve(ip)
		if allowed {
			next(ctx)
			return
		}

		fields := logrus.Fields{"ip": ip, "path": req.URL.Path}
		if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
			fields["request_id"] = requestID
		}
		if s.logger != nil {
			s.logger.WithFields(fields).Warn("request rate limited")
		}

		retryAfter := int(math.Ceil(wait.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}

		ctx.SetHeader("Retry-After", strconv.Itoa(retryAfter))

		if wantsHTML(req) {
			resp := s.renderErrorResponse(ctx.Context(), stdhttp.StatusTooManyRequests, rateLimitMessage)
			ctx.SetHeader("Content-Type", resp.ContentType)
			ctx.SetStatus(stdhttp.StatusTooManyRequests)
			_, _ = ctx.BodyWriter().Write(resp.Body)
			return
		}

		ctx.SetHeader("Content-Type", jsonContentType)
		ctx.SetStatus(stdhttp.StatusTooManyRequests)
		_, _ = ctx.BodyWriter().Write([]byte(`{"ok":false,"error":"rate_limited"}`))
	}
}

func (s *Server) loggingMiddleware() middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.logger == nil {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		status := ctx.Status()
		if status == 0 {
			status = stdhttp.StatusOK
		}

		fields := logrus.Fields{
			"method":      ctx.Method(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		}

		if op := ctx.Operation(); op != nil {
			fields["route"] = op.Path
		}

		if req, _ := humago.Unwrap(ctx); req != nil {
			fields["path"] = req.URL.Path
			fields["remote_addr"] = req.RemoteAddr
		}

		if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
			fields["request_id"] = requestID
		}

		if session, ok := SessionFromContext(ctx.Context()); ok {
			fields["user_id"] = session.UserID
		}

		entry := s.logger.WithFields(fields)
		if status >= 500 {
			entry.Error("request failed")
		} else {
			entry.Info("request completed")
		}
	}
}

func (s *Server) recoveryMiddleware() middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			if rec := recover(); rec != nil {
				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("panic: %v", v)
				}

				s.recordError(ctx.Context(), err, "panic recovered", nil)

				if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
					hub.RecoverWithContext(ctx.Context(), rec)
					hub.Flush(2 * time.Second)
				}

				ctx.SetHeader("Content-Type", "text/plain; charset=utf-8")
				ctx.SetStatus(stdhttp.StatusInternalServerError)
				_, _ = ctx.BodyWriter().Write([]byte("internal server error"))
			}
		}()

		next(ctx)
	}
}

func (s *Server) sentryMiddleware() middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		scope := hub.Scope()
		scope.SetTag("http.method", ctx.Method())
		if op := ctx.Operation(); op != nil {
			scope.SetTag("http.route", op.Path)
		}

		goCtx := sentry.SetHubOnContext(ctx.Context(), hub)
		ctx = huma.WithContext(ctx, goCtx)

		defer hub.Flush(2 * time.Second)

		next(ctx)
	}
}

func wantsHTML(req *stdhttp.Request) bool {
	if req == nil {
		return false
	}
	path := req.URL.Path
	if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/bot/") {
		return false
	}
	switch path {
	case "/check-slug", "/publish", "/healthz":
		return false
	}
	return !strings.Contains(req.Header.Get("Accept"), "application/json")
}

func clientIPFromRequest(req *stdhttp.Request) string {
	if req == nil {
		return ""
	}

	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		candidate, _, _ := strings.Cut(forwarded, ",")
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}

	if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
