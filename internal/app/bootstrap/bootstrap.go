package bootstrap

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"shareme/app/internal/config"
	dataaccounts "shareme/app/internal/data/accounts"
	"shareme/app/internal/data/database"
	"shareme/app/internal/data/migrations"
	datapages "shareme/app/internal/data/pages"
	domainaccounts "shareme/app/internal/domain/accounts"
	domainpages "shareme/app/internal/domain/pages"
	presentationhttp "shareme/app/internal/presentation/http"
)

type Dependencies struct {
	Config    *config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	PageService    domainpages.Service
	AccountService domainaccounts.Service
	HTTPServer     *presentationhttp.Server
	Database       *gorm.DB
	Cleanup        func() error
}

// Build composes the ShareMe application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	if deps.Config == nil {
		return Result{}, eris.New("config is required")
	}
	cfg := deps.Config

	// A single connection; concurrent SQLite connections fail WAL snapshot upgrades with SQLITE_BUSY.
	db, err := database.Open(database.Options{Path: cfg.DBPath, MaxOpenConns: 1})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := database.Close(db); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := migrations.Migrate(ctx, db, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running schema migrations"))
	}

	pageRepo, err := datapages.NewRepository(db, datapages.Options{
		Logger:  deps.Logger,
		Timeout: cfg.StoreTimeout,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page repository"))
	}

	allocator, err := domainpages.NewAllocator(pageRepo, cfg.ReservedSlugs...)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating slug allocator"))
	}

	pageService, err := domainpages.NewService(domainpages.ServiceOptions{
		Repository:   pageRepo,
		Allocator:    allocator,
		SlugStrategy: cfg.SlugStrategy,
		Logger:       deps.Logger,
		SentryHub:    deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page service"))
	}

	accountRepo, err := dataaccounts.NewRepository(db, deps.Logger, cfg.StoreTimeout)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating account repository"))
	}

	accountService, err := domainaccounts.NewService(domainaccounts.ServiceOptions{
		Repository:    accountRepo,
		Pages:         pageService,
		BaseURL:       cfg.BaseURL,
		LoginTokenTTL: cfg.LoginTokenTTL,
		Logger:        deps.Logger,
		SentryHub:     deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating account service"))
	}

	sessions, err := presentationhttp.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, strings.HasPrefix(cfg.BaseURL, "https://"))
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating session manager"))
	}

	httpServer, err := presentationhttp.NewServer(presentationhttp.Options{
		Pages:     pageService,
		Accounts:  accountService,
		Sessions:  sessions,
		BaseURL:   cfg.BaseURL,
		BotSecret: cfg.BotSecret,
		Logger:    deps.Logger,
		SentryHub: deps.SentryHub,
		RateLimiter: presentationhttp.RateLimiterSettings{
			Burst:             cfg.RateLimit.Burst,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			ClientTTL:         cfg.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	cleanup := func() error {
		httpServer.Close()
		return database.Close(db)
	}

	return Result{
		PageService:    pageService,
		AccountService: accountService,
		HTTPServer:     httpServer,
		Database:       db,
		Cleanup:        cleanup,
	}, nil
}
