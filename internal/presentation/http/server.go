package http

import (
	stdhttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"shareme/app/internal/domain/accounts"
	"shareme/app/internal/domain/pages"
)

// Options configures the HTTP server wiring.
type Options struct {
	Pages       pages.Service
	Accounts    accounts.Service
	Sessions    *SessionManager
	BaseURL     string
	BotSecret   string
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
	RateLimiter RateLimiterSettings
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer via Huma and templ components.
type Server struct {
	api         huma.API
	mux         *stdhttp.ServeMux
	pages       pages.Service
	accounts    accounts.Service
	sessions    *SessionManager
	baseURL     string
	botSecret   string
	logger      *logrus.Logger
	sentry      *sentry.Hub
	rateLimiter *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Pages == nil {
		return nil, eris.New("page service is required")
	}
	if opts.Accounts == nil {
		return nil, eris.New("account service is required")
	}
	if opts.Sessions == nil {
		return nil, eris.New("session manager is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, eris.Wrapf(err, "invalid base url: %q", opts.BaseURL)
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("ShareMe", "1.0.0")
	config.Info.Description = "Publish pages under short links and edit them later with an edit token or a bot login."

	srv := &Server{
		api:         humago.New(mux, config),
		mux:         mux,
		pages:       opts.Pages,
		accounts:    opts.Accounts,
		sessions:    opts.Sessions,
		baseURL:     baseURL,
		botSecret:   strings.TrimSpace(opts.BotSecret),
		logger:      opts.Logger,
		sentry:      opts.SentryHub,
		rateLimiter: NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL),
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.sessionMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /favicon.ico", faviconHandler)
	s.mux.HandleFunc("HEAD /favicon.ico", faviconHandler)

	s.registerStaticRoute()

	s.registerPageAPIRoutes()
	s.registerBotRoutes()
	s.registerSEORoutes()
	s.registerHealthRoute()

	s.registerViewRoutes()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) absoluteURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.baseURL + path
}

func (s *Server) pageURL(slug string) string {
	return s.absoluteURL("/" + url.PathEscape(slug))
}
