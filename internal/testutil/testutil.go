// Package testutil opens migrated databases for package tests.
package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/migrations"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/db"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/helpers"
	"github.com/rs/zerolog"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	pgOnce sync.Once
	pgDB   *db.DB
	pgErr  error
)

// SQLite returns a fresh migrated SQLite database in a temp dir
func SQLite(tb testing.TB) *db.DB {
	tb.Helper()

	database, err := db.OpenSQLite(filepath.Join(tb.TempDir(), "test.db"))
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}
	tb.Cleanup(database.Close)

	migrate(tb, database)
	return database
}

// Postgres returns the shared migrated Postgres database with all tables
// emptied. Skips unless TEST_POSTGRES_DSN is set.
func Postgres(tb testing.TB) *db.DB {
	tb.Helper()

	pgOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			pgErr = errMissingDSN
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pgDB, pgErr = db.OpenPostgresDSN(ctx, dsn)
		if pgErr != nil {
			return
		}
		m, err := migrations.NewMigrator(pgDB, zerolog.Nop())
		if err != nil {
			pgErr = err
			return
		}
		pgErr = m.Migrate(ctx)
	})

	if errors.Is(pgErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run postgres integration tests")
	}
	if pgErr != nil {
		tb.Fatalf("failed to init test db: %v", pgErr)
	}

	if _, err := pgDB.SQL.Exec(`TRUNCATE cgpa_snapshots, refresh_tokens, users RESTART IDENTITY CASCADE`); err != nil {
		tb.Fatalf("failed to reset test db: %v", err)
	}
	return pgDB
}

func migrate(tb testing.TB, database *db.DB) {
	tb.Helper()
	m, err := migrations.NewMigrator(database, zerolog.Nop())
	if err != nil {
		tb.Fatalf("failed to create migrator: %v", err)
	}
	if err := m.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate: %v", err)
	}
}

// CreateUser inserts a user row directly and returns it
func CreateUser(tb testing.TB, database *db.DB, email string) *models.User {
	tb.Helper()

	now := helpers.ToMillis(time.Now())
	query := `INSERT INTO users (email, password, display_name, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`
	if database.Dialect == db.DialectPostgres {
		query = `INSERT INTO users (email, password, display_name, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	}

	u := &models.User{Email: email, DisplayName: "Test User", IsActive: true}
	if err := database.SQL.QueryRow(query, email, "x", u.DisplayName, true, now, now).Scan(&u.ID); err != nil {
		tb.Fatalf("failed to create user: %v", err)
	}
	return u
}
