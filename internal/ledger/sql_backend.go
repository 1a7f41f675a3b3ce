package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	sqlStateTableName    = "courtwatch_processed_workouts"
	sqlStateKey          = "default"
	sqlOperationTimeout  = 5 * time.Second
	sqliteBusyTimeoutMil = 5000
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

type sqlDialect struct {
	driver      string
	prepare     func(dsn string) error
	createTable string
	selectQuery string
	upsertQuery string
	pragmas     []string
}

func postgresDialect(table string) sqlDialect {
	quoted := quoteIdentifier(table)
	return sqlDialect{
		driver: "postgres",
		createTable: fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				state_key TEXT PRIMARY KEY,
				snapshot TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, quoted),
		selectQuery: fmt.Sprintf("SELECT snapshot FROM %s WHERE state_key = $1", quoted),
		upsertQuery: fmt.Sprintf(`
			INSERT INTO %s (state_key, snapshot, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (state_key)
			DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = NOW()`, quoted),
	}
}

func sqliteDialect(table string) sqlDialect {
	quoted := quoteIdentifier(table)
	return sqlDialect{
		driver:  "sqlite3",
		prepare: ensureParentDir,
		createTable: fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				state_key TEXT PRIMARY KEY,
				snapshot TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`, quoted),
		selectQuery: fmt.Sprintf("SELECT snapshot FROM %s WHERE state_key = ?", quoted),
		upsertQuery: fmt.Sprintf(`
			INSERT INTO %s (state_key, snapshot, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (state_key)
			DO UPDATE SET snapshot = excluded.snapshot, updated_at = CURRENT_TIMESTAMP`, quoted),
		pragmas: []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = FULL",
			fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeoutMil),
		},
	}
}

// SQLBackend keeps the snapshot in one row of a key/value table. The table is created
// lazily on first use.
type SQLBackend struct {
	dsn      string
	table    string
	stateKey string
	dialect  func(table string) sqlDialect
	openDB   sqlOpenFunc

	mu      sync.Mutex
	db      *sql.DB
	queries sqlDialect
}

func NewPostgresBackend(dsn string) (*SQLBackend, error) {
	return newSQLBackend(dsn, postgresDialect)
}

// NewSQLiteBackend opens the database file at path.
func NewSQLiteBackend(path string) (*SQLBackend, error) {
	return newSQLBackend(path, sqliteDialect)
}

func newSQLBackend(dsn string, dialect func(string) sqlDialect) (*SQLBackend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}
	return &SQLBackend{
		dsn:      dsn,
		table:    sqlStateTableName,
		stateKey: sqlStateKey,
		dialect:  dialect,
		openDB:   sql.Open,
	}, nil
}

func (b *SQLBackend) Load(ctx context.Context) (*Snapshot, error) {
	if b == nil {
		return nil, nil
	}
	db, queries, err := b.ensureReady(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	var payload string
	err = db.QueryRowContext(ctx, queries.selectQuery, b.stateKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSnapshot([]byte(payload))
}

func (b *SQLBackend) Save(ctx context.Context, snapshot *Snapshot) error {
	if b == nil || snapshot == nil {
		return nil
	}
	db, queries, err := b.ensureReady(ctx)
	if err != nil {
		return err
	}
	payload, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()
	_, err = db.ExecContext(ctx, queries.upsertQuery, b.stateKey, string(payload))
	return err
}

func (b *SQLBackend) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// ensureReady opens the database and creates the table. A failed attempt leaves the
// backend unopened so the next call tries again.
// ensureReady opens the database on first use. A failed attempt is not cached, so the
// next call tries again.
func (b *SQLBackend) ensureReady(ctx context.Context) (*sql.DB, sqlDialect, error) {
	if b == nil {
		return nil, sqlDialect{}, ErrInvalidInput
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return b.db, b.queries, nil
	}
	queries := b.dialect(b.table)
	if queries.prepare != nil {
		if err := queries.prepare(b.dsn); err != nil {
			return nil, sqlDialect{}, err
		}
	}
	db, err := b.openDB(queries.driver, b.dsn)
	if err != nil {
		return nil, sqlDialect{}, err
	}
	if queries.driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()
	for _, pragma := range queries.pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, sqlDialect{}, err
		}
	}
	if _, err := db.ExecContext(ctx, queries.createTable); err != nil {
		_ = db.Close()
		return nil, sqlDialect{}, err
	}
	b.db = db
	b.queries = queries
	return db, queries, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func quoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "\"\""
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
