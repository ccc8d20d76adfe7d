package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tommy/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// DefaultFilename is the store's file name under the destination root.
const DefaultFilename = ".tommy.db"

// Schema version tracking (PRAGMA user_version):
// 0 - Initial schema (pre-migration)
// 1 - Dropped the legacy per-file "files" table of older releases
const currentSchemaVersion = 1

// Records is the narrow interface through which the pipeline, the garbage
// collector and the watch scheduler read and mutate execution records.
// Implementations must make Upsert and Delete atomic per key.
type Records interface {
	Get(ctx context.Context, inputFile string, key model.TaskKey) (model.Record, bool, error)
	GetAllByFile(ctx context.Context, inputFile string) ([]model.Record, error)
	GetAll(ctx context.Context) ([]model.Record, error)
	Upsert(ctx context.Context, rec model.Record) error
	Delete(ctx context.Context, inputFile string, key model.TaskKey) error
	Close() error
}

// Store provides durable storage for execution records.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

var _ Records = (*Store)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times. A process
// should open the store once and share the handle.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 drops the "files (file, hash)" table written by releases that
// cached whole files instead of (file, task) pairs. Its rows can never
// satisfy a cache lookup.
func migrateToV1(db *sql.DB) error {
	if _, err := db.Exec(`DROP TABLE IF EXISTS files`); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
