// Package database opens the libsql connection and drives migrations.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tursodatabase/go-libsql"

	"github.com/finboard/finboard-api/internal/database/migrations"
)

// New opens a database handle from the DSN. Three deployment shapes:
//
//   - local file: DATABASE_URL="file:finboard.db"
//   - embedded replica synced with Turso: also set TURSO_URL and
//     TURSO_AUTH_TOKEN
//   - local libsql server (`turso dev`): DATABASE_URL="http://127.0.0.1:8080"
func New(dsn string) (*sql.DB, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func open(dsn string) (*sql.DB, error) {
	tursoURL := os.Getenv("TURSO_URL")
	tursoToken := os.Getenv("TURSO_AUTH_TOKEN")
	if tursoURL == "" || tursoToken == "" {
		db, err := sql.Open("libsql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	}

	// Embedded replica: a local file kept in sync with the remote.
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	connector, err := libsql.NewEmbeddedReplicaConnector(path, tursoURL,
		libsql.WithAuthToken(tursoToken),
		libsql.WithReadYourWrites(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create turso connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// Migrate applies pending schema migrations.
// Note: user accounts live in the identity provider; user_id columns
// store the JWT subject claim and carry no FK constraint.
func Migrate(db *sql.DB) error {
	return MigrateWithLogger(db, nil)
}

// MigrateWithLogger applies pending migrations, logging each one.
func MigrateWithLogger(db *sql.DB, logger *slog.Logger) error {
	return migrations.Run(db, logger)
}

// GetAppliedMigrations returns information about applied migrations.
func GetAppliedMigrations(db *sql.DB) ([]migrations.AppliedMigration, error) {
	return migrations.GetAppliedMigrations(db)
}

// GetPendingMigrations returns registered migrations not yet applied.
func GetPendingMigrations(db *sql.DB) ([]migrations.Migration, error) {
	return migrations.GetPendingMigrations(db)
}
