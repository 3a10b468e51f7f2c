package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL via database/sql
	_ "modernc.org/sqlite"             // Pure Go SQLite driver
)

// Dialect selects placeholder syntax.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is a journal database handle.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the journal. postgres:// and postgresql:// DSNs use pgx; anything else
// is a SQLite path (":memory:" for a throwaway journal).
func Open(dsn string) (*DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return open("pgx", dsn, DialectPostgres)
	}
	return InitSQLite(dsn)
}

// InitSQLite opens the local SQLite journal and creates the schema.
func InitSQLite(dbPath string) (*DB, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return open("sqlite", dbPath, DialectSQLite)
}

func open(driver, dsn string, dialect Dialect) (*DB, error) {
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// Each :memory: connection is its own database; one writer keeps sqlite happy anyway.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	db := &DB{DB: sqlDB, Dialect: dialect}
	if err := createSchemas(db); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return db, nil
}

func createSchemas(db *DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS journal (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			cycle BIGINT NOT NULL,
			ts_ms BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_journal_session_cycle ON journal(session_id, cycle);`,
		`CREATE INDEX IF NOT EXISTS idx_journal_event_type ON journal(event_type);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Rebind rewrites ? placeholders for the handle's dialect.
func (db *DB) Rebind(query string) string {
	if db.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
