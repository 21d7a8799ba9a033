package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"librarydesk/internal/asset"
	"librarydesk/internal/audit"
	"librarydesk/internal/auth"
	"librarydesk/internal/book"
	"librarydesk/internal/category"
	"librarydesk/internal/circulation"
	"librarydesk/internal/config"
	"librarydesk/internal/httpx"
	"librarydesk/internal/member"
	"librarydesk/internal/notification"
	"librarydesk/internal/platform/clock"
	"librarydesk/internal/platform/crypto"
	"librarydesk/internal/platform/logging"
	"librarydesk/internal/platform/mail"
	"librarydesk/internal/platform/openlibrary"
	"librarydesk/internal/platform/postgres"
	"librarydesk/internal/platform/storage"
	"librarydesk/internal/report"
	"librarydesk/internal/session"
	"librarydesk/internal/settings"
	"librarydesk/internal/user"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireJWT(); err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc, err := cfg.Postgres()
	if err != nil {
		return err
	}
	db, err := postgres.Open(ctx, pc)
	if err != nil {
		return fmt.Errorf("%w (%s)", err, config.RedactDSN(cfg.DatabaseDSN))
	}
	defer db.Close()
	log.Info("database connection OK", "dsn", config.RedactDSN(cfg.DatabaseDSN))

	h, acc, err := wire(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	limiter := httpx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	handler := httpx.Chain(routes(h, acc.trail, acc.tokens, acc.sessions, db),
		httpx.RecoveryMiddleware(log),
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(log),
		httpx.SecurityHeadersMiddleware(false),
		httpx.CORSMiddleware(cfg.CORSOrigins),
		httpx.RequestSizeLimitMiddleware(cfg.UploadMaxBytes+1<<20),
		limiter.Middleware,
	)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// access is what routes needs besides handlers to guard and audit requests.
type access struct {
	trail    *audit.Trail
	tokens   *crypto.TokenIssuer
	sessions *session.Service
}

// wire builds every service and handler over db.
func wire(ctx context.Context, cfg config.Config, db *pgxpool.Pool, log *slog.Logger) (handlers, access, error) {
	sys := clock.System{}

	settingsStore := settings.NewStore(settings.NewPostgresRepo(db, cfg.DBTimeout), log)
	if err := settingsStore.Reload(ctx); err != nil {
		log.Warn("settings not loaded, using defaults", "err", err)
	}

	catalog, err := mail.NewCatalog(settingsStore.String(settings.KeySiteName), cfg.SiteURL)
	if err != nil {
		return handlers{}, access{}, err
	}
	sender := mail.NewSender(mail.SMTPConfig(cfg.SMTP), catalog, log)

	tokens := crypto.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	trail := audit.NewTrail(audit.NewPostgresRepo(db, cfg.DBTimeout), sys, log)
	sessions := session.NewService(session.NewPostgresRepo(db, cfg.DBTimeout), sys, log)

	users := user.NewService(user.NewPostgresRepo(db, cfg.DBTimeout))
	members := member.NewService(member.NewPostgresRepo(db, cfg.DBTimeout), sys, cfg.Location, sender, log)
	bookRepo := book.NewPostgresRepo(db, cfg.DBTimeout)
	books := book.NewService(bookRepo, log)
	metadata := openlibrary.NewClient(cfg.MetadataURL, "librarydesk/1.0 (+"+cfg.SiteURL+")", cfg.MetadataRPS, 2)
	categories := category.NewService(category.NewPostgresRepo(db, cfg.DBTimeout))
	notifications := notification.NewService(notification.NewPostgresRepo(db, cfg.DBTimeout), sys, log)
	circ := circulation.NewService(circulation.NewPostgresStore(db, cfg.DBTimeout), settingsStore, sys, cfg.Location,
		sender, notifications, log)
	assets := asset.NewService(asset.NewPostgresRepo(db, cfg.DBTimeout), storage.NewLocal(cfg.UploadDir),
		asset.Limits{AllowedTypes: cfg.UploadAllowedTypes, MaxBytes: cfg.UploadMaxBytes}, log)
	reports := report.NewService(report.NewPostgresRepo(db, cfg.DBTimeout), circ, assets, sys, cfg.Location, log)

	return handlers{
		auth:          auth.NewHTTPHandler(auth.NewService(users, tokens, sender, log)),
		users:         user.NewHTTPHandler(users),
		members:       member.NewHTTPHandler(members),
		books:         book.NewHTTPHandler(books),
		bookLookup:    book.NewLookup(metadata, bookRepo, log),
		categories:    category.NewHTTPHandler(categories),
		circulation:   circulation.NewHTTPHandler(circ, members),
		notifications: notification.NewHTTPHandler(notifications),
		assets:        asset.NewHTTPHandler(assets),
		reports:       report.NewHTTPHandler(reports),
		settings:      settings.NewHTTPHandler(settingsStore),
		logs:          audit.NewHTTPHandler(trail, cfg.Location),
		sessions:      session.NewHTTPHandler(sessions),
	}, access{trail: trail, tokens: tokens, sessions: sessions}, nil
}
