package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
)

var (
	// ErrUnknownTable is returned when a transaction touches a table that was
	// never created with EnsureTables.
	ErrUnknownTable = errors.New("unknown table")
	// ErrStopScan may be returned by a Scan callback to end the scan early.
	ErrStopScan = errors.New("stop scan")
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("transaction already finished")
)

// ReadTx is a consistent snapshot of every table.
type ReadTx interface {
	Get(table string, key uint64) ([]byte, bool, error)
	// Scan visits rows in ascending key order. The callback must not retain
	// value after returning and must not use the transaction.
	Scan(table string, fn func(key uint64, value []byte) error) error
	Count(table string) (uint64, error)
	// Rollback releases the transaction. It is a no-op after Commit.
	Rollback() error
}

// WriteTx is the single active writer. Reads observe its own pending writes.
type WriteTx interface {
	ReadTx
	Put(table string, key uint64, value []byte) error
	// NextID returns the table's next monotonic key and advances the persisted
	// counter as part of this transaction.
	NextID(table string) (uint64, error)
	Commit() error
}

// TableStore is a set of named ordered tables keyed by uint64.
type TableStore interface {
	BeginRead(ctx context.Context) (ReadTx, error)
	BeginWrite(ctx context.Context) (WriteTx, error)
	// EnsureTables creates missing tables and leaves existing ones untouched.
	EnsureTables(ctx context.Context, names ...string) error
	Backend() string
	Close() error
}

// Open opens the table store for backend at path, creating it if absent.
func Open(backend, path string) (TableStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendSQLite:
		return OpenSQLite(path)
	case BackendLevelDB:
		return OpenLevelDB(path)
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", backend)
	}
}

// View runs fn inside a read transaction.
func View(ctx context.Context, s TableStore, fn func(ReadTx) error) error {
	tx, err := s.BeginRead(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	return fn(tx)
}

// Update runs fn inside a write transaction and commits if fn succeeds.
func Update(ctx context.Context, s TableStore, fn func(WriteTx) error) (err error) {
	tx, err := s.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func validateTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("table name is required")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}
