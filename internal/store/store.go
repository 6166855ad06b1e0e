package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// DBTX is satisfied by both *sql.DB and *sql.Tx, so repositories run the same
// queries inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// ForUpdate is the row-lock suffix for a SELECT inside a transaction. SQLite
// serialises writers on its own and has no such clause.
func (d Dialect) ForUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

type Store struct {
	db      *sql.DB
	driver  string
	dsn     string
	dialect Dialect
}

// Open connects using one of the supported drivers: postgres (lib/pq),
// pgx (jackc/pgx stdlib) or sqlite3 (a file path).
func Open(ctx context.Context, driver, url string) (*Store, error) {
	s := &Store{driver: driver, dsn: url}
	switch driver {
	case "postgres", "pgx":
		s.dialect = Postgres
	case "sqlite3":
		s.dialect = SQLite
		s.dsn = fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", url)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("can not open database: %w", err)
	}
	if s.dialect == SQLite {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("can not connect with database: %w", err)
	}
	s.db = db
	return s, nil
}

func (s *Store) DB() DBTX { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// ExecTx runs fn inside one transaction. Any error or panic from fn rolls the
// whole transaction back; nothing fn wrote is visible unless it returns nil.
func (s *Store) ExecTx(ctx context.Context, fn func(q DBTX) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w, rb err: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// MigrateUp applies every pending migration for the store's dialect.
func (s *Store) MigrateUp() error {
	return s.migrate(func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back the given number of migrations.
func (s *Store) MigrateDown(steps int) error {
	return s.migrate(func(m *migrate.Migrate) error { return m.Steps(-steps) })
}

// migrate runs on a dedicated connection because the migrate drivers close
// the handle they are given.
func (s *Store) migrate(run func(*migrate.Migrate) error) error {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return fmt.Errorf("can not open migration connection: %w", err)
	}

	var driver database.Driver
	switch s.dialect {
	case Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	}
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to set up migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+string(s.dialect))
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, string(s.dialect), driver)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to set up migrate instance: %w", err)
	}
	defer m.Close()

	if err := run(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migration: %w", err)
	}
	return nil
}

// Placeholders renders n positional parameters starting at $start.
func Placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(start+i)
	}
	return strings.Join(parts, ", ")
}
