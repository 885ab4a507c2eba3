package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout:
//
//	t\x00<table>           -> u64 big-endian next id
//	r\x00<table>\x00<key>  -> row value, key as u64 big-endian
//
// Big-endian keys make the LevelDB byte order match numeric order.
const (
	tableKeyPrefix = "t\x00"
	rowKeyPrefix   = "r\x00"
)

// LevelDBStore maps tables onto key prefixes of one LevelDB database. Reads
// run against snapshots; a single writer at a time commits through a batch.
type LevelDBStore struct {
	db     *leveldb.DB
	writer chan struct{}
}

var _ TableStore = (*LevelDBStore)(nil)

// OpenLevelDB opens or creates the LevelDB directory at path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db, writer: make(chan struct{}, 1)}, nil
}

func (s *LevelDBStore) Backend() string { return BackendLevelDB }

func (s *LevelDBStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *LevelDBStore) EnsureTables(ctx context.Context, names ...string) error {
	for _, name := range names {
		if err := validateTableName(name); err != nil {
			return err
		}
	}
	return Update(ctx, s, func(tx WriteTx) error {
		w := tx.(*levelWriteTx)
		for _, name := range names {
			if _, ok, err := w.get(tableKey(name)); err != nil {
				return err
			} else if ok {
				continue
			}
			w.set(tableKey(name), encodeUint64(0))
		}
		return nil
	})
}

func (s *LevelDBStore) BeginRead(ctx context.Context) (ReadTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &levelReadTx{snap: snap}, nil
}

func (s *LevelDBStore) BeginWrite(ctx context.Context) (WriteTx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		<-s.writer
		return nil, err
	}
	return &levelWriteTx{
		levelReadTx: levelReadTx{snap: snap},
		store:       s,
		batch:       new(leveldb.Batch),
		pending:     map[string][]byte{},
	}, nil
}

type levelReadTx struct {
	snap *leveldb.Snapshot
	done bool
}

func (t *levelReadTx) get(key []byte) ([]byte, bool, error) {
	if t.done {
		return nil, false, ErrTxDone
	}
	value, err := t.snap.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *levelReadTx) requireTable(table string) error {
	_, ok, err := t.get(tableKey(table))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return nil
}

func (t *levelReadTx) Get(table string, key uint64) ([]byte, bool, error) {
	if err := t.requireTable(table); err != nil {
		return nil, false, err
	}
	return t.get(rowKey(table, key))
}

func (t *levelReadTx) Scan(table string, fn func(key uint64, value []byte) error) error {
	if err := t.requireTable(table); err != nil {
		return err
	}
	prefix := rowPrefix(table)
	it := t.snap.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		key := binary.BigEndian.Uint64(it.Key()[len(prefix):])
		if err := fn(key, it.Value()); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return it.Error()
}

func (t *levelReadTx) Count(table string) (uint64, error) {
	var n uint64
	err := t.Scan(table, func(uint64, []byte) error {
		n++
		return nil
	})
	return n, err
}

func (t *levelReadTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.snap.Release()
	return nil
}

type levelWriteTx struct {
	levelReadTx
	store   *LevelDBStore
	batch   *leveldb.Batch
	pending map[string][]byte
}

func (t *levelWriteTx) get(key []byte) ([]byte, bool, error) {
	if t.done {
		return nil, false, ErrTxDone
	}
	if value, ok := t.pending[string(key)]; ok {
		return value, true, nil
	}
	return t.levelReadTx.get(key)
}

func (t *levelWriteTx) set(key, value []byte) {
	t.pending[string(key)] = value
	t.batch.Put(key, value)
}

func (t *levelWriteTx) requireTable(table string) error {
	_, ok, err := t.get(tableKey(table))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return nil
}

func (t *levelWriteTx) Get(table string, key uint64) ([]byte, bool, error) {
	if err := t.requireTable(table); err != nil {
		return nil, false, err
	}
	return t.get(rowKey(table, key))
}

// Scan merges committed rows with this transaction's pending rows.
func (t *levelWriteTx) Scan(table string, fn func(key uint64, value []byte) error) error {
	if err := t.requireTable(table); err != nil {
		return err
	}
	prefix := rowPrefix(table)
	rows := map[uint64][]byte{}
	it := t.snap.NewIterator(util.BytesPrefix(prefix), nil)
	for it.Next() {
		rows[binary.BigEndian.Uint64(it.Key()[len(prefix):])] = append([]byte(nil), it.Value()...)
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}
	for k, value := range t.pending {
		if len(k) == len(prefix)+8 && k[:len(prefix)] == string(prefix) {
			rows[binary.BigEndian.Uint64([]byte(k[len(prefix):]))] = value
		}
	}

	keys := make([]uint64, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		if err := fn(key, rows[key]); err != nil {
			if errors.Is(err, ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (t *levelWriteTx) Count(table string) (uint64, error) {
	var n uint64
	err := t.Scan(table, func(uint64, []byte) error {
		n++
		return nil
	})
	return n, err
}

func (t *levelWriteTx) Put(table string, key uint64, value []byte) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.requireTable(table); err != nil {
		return err
	}
	t.set(rowKey(table, key), append([]byte(nil), value...))

	next, err := t.nextValue(table)
	if err != nil {
		return err
	}
	if key >= next && key < math.MaxUint64 {
		t.set(tableKey(table), encodeUint64(key+1))
	}
	return nil
}

func (t *levelWriteTx) nextValue(table string) (uint64, error) {
	raw, ok, err := t.get(tableKey(table))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt sequence for table %s", table)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (t *levelWriteTx) NextID(table string) (uint64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	next, err := t.nextValue(table)
	if err != nil {
		return 0, err
	}
	if next == math.MaxUint64 {
		return 0, fmt.Errorf("sequence for table %s exhausted", table)
	}
	t.set(tableKey(table), encodeUint64(next+1))
	return next, nil
}

func (t *levelWriteTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	err := t.store.db.Write(t.batch, &opt.WriteOptions{Sync: true})
	t.finish()
	return err
}

func (t *levelWriteTx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *levelWriteTx) finish() {
	t.done = true
	t.snap.Release()
	<-t.store.writer
}

func tableKey(table string) []byte {
	return append([]byte(tableKeyPrefix), table...)
}

func rowPrefix(table string) []byte {
	b := make([]byte, 0, len(rowKeyPrefix)+len(table)+1)
	b = append(b, rowKeyPrefix...)
	b = append(b, table...)
	return append(b, 0)
}

func rowKey(table string, key uint64) []byte {
	return binary.BigEndian.AppendUint64(rowPrefix(table), key)
}

func encodeUint64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}
