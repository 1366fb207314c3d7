// Package repository implements the monitor's stores on PostgreSQL through
// sqlx and lib/pq.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // also registers the postgres driver

	"github.com/polywatch/monitor/internal/domain"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// pgUniqueViolation is the SQLSTATE for duplicate keys.
const pgUniqueViolation = "23505"

// Open connects to PostgreSQL, applies pool settings and pings. A positive
// queryTimeout becomes the session statement_timeout, so a slow statement
// fails instead of stalling a cycle.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int, maxLifetime, queryTimeout time.Duration) (*sqlx.DB, error) {
	dsn, err := withStatementTimeout(dsn, queryTimeout)
	if err != nil {
		return nil, fmt.Errorf("repository.Open: %w", err)
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository.Open: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository.Open ping: %w", err)
	}
	return db, nil
}

// withStatementTimeout adds statement_timeout to a URL or key=value DSN. lib/pq
// forwards unknown parameters to the server as run-time settings.
func withStatementTimeout(dsn string, d time.Duration) (string, error) {
	if d <= 0 {
		return dsn, nil
	}
	ms := strconv.FormatInt(d.Milliseconds(), 10)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		q := u.Query()
		q.Set("statement_timeout", ms)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return strings.TrimSpace(dsn + " statement_timeout=" + ms), nil
}

// RunMigrations executes every embedded *.sql file in lexical order. The files
// are idempotent (IF NOT EXISTS / ON CONFLICT), so this runs on every boot.
func RunMigrations(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("RunMigrations: read dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := migrationFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("RunMigrations: read %q: %w", f, err)
		}
		if _, err = db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("RunMigrations: exec %q: %w", f, err)
		}
		logger.Info("migration applied", "file", f)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL duplicate-key error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

// wrapErr maps driver errors to the domain sentinels, keeping the operation
// name in the message.
func wrapErr(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrStoreConflict)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreFailure, err)
}
