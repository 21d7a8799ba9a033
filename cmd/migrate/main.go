package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"librarydesk/internal/config"
	"librarydesk/internal/platform/logging"
	"librarydesk/internal/platform/postgres"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	if err := run(*command, *name); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(command, name string) error {
	if err := checkCommand(command, name); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	dir := migrationsDir()

	if command == "create" {
		return goose.Create(nil, dir, name, "sql")
	}

	pc, err := cfg.Postgres()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := postgres.Open(ctx, pc)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	log.Info("running migrations", "command", command, "dir", dir, "dsn", config.RedactDSN(cfg.DatabaseDSN))
	return migrate(ctx, db, dir, command, os.Stdout)
}

func checkCommand(command, name string) error {
	switch command {
	case "up", "down", "status":
		return nil
	case "create":
		if name == "" {
			return fmt.Errorf("name is required for 'create' command")
		}
		return nil
	}
	return fmt.Errorf("unknown command %q, use: up, down, status, create", command)
}

func migrate(ctx context.Context, db *sql.DB, dir, command string, out io.Writer) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	switch command {
	case "up":
		if err := goose.UpContext(ctx, db, dir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		fmt.Fprintln(out, "migrations applied")
	case "down":
		if err := goose.DownContext(ctx, db, dir); err != nil {
			return fmt.Errorf("roll back migration: %w", err)
		}
		fmt.Fprintln(out, "last migration rolled back")
	case "status":
		return goose.StatusContext(ctx, db, dir)
	}
	return nil
}
