// Command libctl runs circulation and maintenance jobs against the library database.
package main

import (
	"context"
	"fmt"
	"os"

	"librarydesk/internal/audit"
	"librarydesk/internal/book"
	"librarydesk/internal/circulation"
	"librarydesk/internal/config"
	"librarydesk/internal/notification"
	"librarydesk/internal/platform/clock"
	"librarydesk/internal/platform/logging"
	"librarydesk/internal/platform/mail"
	"librarydesk/internal/platform/openlibrary"
	"librarydesk/internal/platform/postgres"
	"librarydesk/internal/session"
	"librarydesk/internal/settings"
)

func main() {
	if err := newRootCmd(connect).Execute(); err != nil {
		os.Exit(1)
	}
}

// connect builds the services libctl drives from the process configuration.
func connect(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	pc, err := cfg.Postgres()
	if err != nil {
		return nil, err
	}
	db, err := postgres.Open(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, config.RedactDSN(cfg.DatabaseDSN))
	}

	sys := clock.System{}
	store := settings.NewStore(settings.NewPostgresRepo(db, cfg.DBTimeout), log)
	if err := store.Reload(ctx); err != nil {
		log.Warn("settings not loaded, using defaults", "err", err)
	}
	catalog, err := mail.NewCatalog(store.String(settings.KeySiteName), cfg.SiteURL)
	if err != nil {
		db.Close()
		return nil, err
	}
	sender := mail.NewSender(mail.SMTPConfig(cfg.SMTP), catalog, log)
	notifications := notification.NewService(notification.NewPostgresRepo(db, cfg.DBTimeout), sys, log)
	trail := audit.NewTrail(audit.NewPostgresRepo(db, cfg.DBTimeout), sys, log)
	bookRepo := book.NewPostgresRepo(db, cfg.DBTimeout)
	metadata := openlibrary.NewClient(cfg.MetadataURL, "librarydesk-libctl/1.0", cfg.MetadataRPS, 2)

	return &app{
		circulation: circulation.NewService(circulation.NewPostgresStore(db, cfg.DBTimeout), store, sys,
			cfg.Location, sender, notifications, log),
		settings:      store,
		notifications: notifications,
		logs:          trail,
		sessions:      session.NewService(session.NewPostgresRepo(db, cfg.DBTimeout), sys, log),
		lookup:        book.NewLookup(metadata, bookRepo, log),
		books:         book.NewService(bookRepo, log),
		close:         db.Close,
	}, nil
}
