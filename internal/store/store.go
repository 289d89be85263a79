package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking (sqlite only):
// 0 - Initial schema
// 1 - Added status index for pending scans
const currentSchemaVersion = 1

// ErrMissingCollaborator reports a driver or schema the store cannot work with.
var ErrMissingCollaborator = errors.New("missing storage collaborator")

// Store is the local translation store.
type Store struct {
	db      *sql.DB
	dialect dialect
	sq      sq.StatementBuilderType
}

// Open creates or opens a SQLite database at path with the default driver.
func Open(path string) (*Store, error) {
	return OpenDriver(DriverSQLite3, path)
}

// OpenDriver opens dsn with the named driver and applies the schema.
// Unknown drivers and unusable schemas fail with ErrMissingCollaborator.
func OpenDriver(driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if d.sqlite() {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	if err := applySchema(db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := verifySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, dialect: d, sq: d.builder()}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(q), args...)
}

func (s *Store) selectRows(ctx context.Context, q sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryContext(ctx, query, args...)
}

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
func applySchema(db *sql.DB, d dialect) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if !d.sqlite() {
		_, err := db.Exec(migrationV1)
		return err
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

const migrationV1 = `CREATE INDEX IF NOT EXISTS idx_translations_status ON translations(status)`

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if _, err := db.Exec(migrationV1); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// verifySchema probes the tables the sync engine depends on.
func verifySchema(db *sql.DB) error {
	for _, table := range []string{"sources", "translations"} {
		rows, err := db.Query(fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", table))
		if err != nil {
			return fmt.Errorf("%w: table %s: %v", ErrMissingCollaborator, table, err)
		}
		rows.Close()
	}
	return nil
}
