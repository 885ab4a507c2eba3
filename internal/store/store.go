package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// SQLiteStore keeps every table as rows of one key/value relation in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ TableStore = (*SQLiteStore)(nil)

// OpenSQLite opens the SQLite database and bootstraps the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Backend() string { return BackendSQLite }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	return currentVersion(s.db)
}

func (s *SQLiteStore) EnsureTables(ctx context.Context, names ...string) (err error) {
	for _, name := range names {
		if err := validateTableName(name); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, name := range names {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO kv_tables (name, next_id) VALUES (?, 0)", name); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) BeginRead(ctx context.Context) (ReadTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{ctx: ctx, tx: tx}, nil
}

func (s *SQLiteStore) BeginWrite(ctx context.Context) (WriteTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{ctx: ctx, tx: tx}, nil
}

type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqliteTx) requireTable(table string) error {
	var exists int
	err := t.tx.QueryRowContext(t.ctx, "SELECT 1 FROM kv_tables WHERE name = ? LIMIT 1", table).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return err
}

func (t *sqliteTx) Get(table string, key uint64) ([]byte, bool, error) {
	if err := t.requireTable(table); err != nil {
		return nil, false, err
	}
	if key > math.MaxInt64 {
		return nil, false, nil
	}
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, "SELECT value FROM kv_rows WHERE table_name = ? AND key = ?", table, int64(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *sqliteTx) Scan(table string, fn func(key uint64, value []byte) error) error {
	if err := t.requireTable(table); err != nil {
		return err
	}
	rows, err := t.tx.QueryContext(t.ctx, "SELECT key, value FROM kv_rows WHERE table_name = ? ORDER BY key ASC", table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key int64
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		if err := fn(uint64(key), value); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return rows.Err()
}

func (t *sqliteTx) Count(table string) (uint64, error) {
	if err := t.requireTable(table); err != nil {
		return 0, err
	}
	var count int64
	if err := t.tx.QueryRowContext(t.ctx, "SELECT COUNT(*) FROM kv_rows WHERE table_name = ?", table).Scan(&count); err != nil {
		return 0, err
	}
	return uint64(count), nil
}

func (t *sqliteTx) Put(table string, key uint64, value []byte) error {
	if err := t.requireTable(table); err != nil {
		return err
	}
	if key > math.MaxInt64 {
		return fmt.Errorf("key %d out of range for sqlite backend", key)
	}
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO kv_rows (table_name, key, value) VALUES (?, ?, ?)
		ON CONFLICT(table_name, key) DO UPDATE SET value = excluded.value
	`, table, int64(key), value)
	if err != nil {
		return err
	}
	// Keep the sequence ahead of explicitly written keys.
	_, err = t.tx.ExecContext(t.ctx, "UPDATE kv_tables SET next_id = ? WHERE name = ? AND next_id <= ?", int64(key)+1, table, int64(key))
	return err
}

func (t *sqliteTx) NextID(table string) (uint64, error) {
	var next int64
	err := t.tx.QueryRowContext(t.ctx, "SELECT next_id FROM kv_tables WHERE name = ?", table).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if err != nil {
		return 0, err
	}
	if next == math.MaxInt64 {
		return 0, fmt.Errorf("sequence for table %s exhausted", table)
	}
	if _, err := t.tx.ExecContext(t.ctx, "UPDATE kv_tables SET next_id = ? WHERE name = ?", next+1, table); err != nil {
		return 0, err
	}
	return uint64(next), nil
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(FULL)",
	"foreign_keys(ON)",
	fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS),
}

func configureDB(db *sql.DB) error {
	// One connection: transactions are serialised and a write never races a read.
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return db.Ping()
}

// sqliteDSN carries the pragmas in the DSN so a recycled connection gets them too.
func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	q := url.Values{}
	for _, pragma := range connPragmas {
		q.Add("_pragma", pragma)
	}
	u := url.URL{Scheme: "file", Path: path, RawQuery: q.Encode()}
	return u.String(), nil
}
