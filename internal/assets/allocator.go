package assets

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"meshvault/internal/blobstore"
	"meshvault/internal/models"
	"meshvault/internal/store"
)

const nameMaxAttempts = 20

// StorageEntry is a storage record together with its key.
type StorageEntry struct {
	ID     uint64               `json:"id" yaml:"id"`
	Record models.StorageRecord `json:"record" yaml:"record"`
}

// StorageAllocator picks, creates, and updates storage records. Placement is
// first fit in key order; a file that has run out of headroom is never chosen
// again.
type StorageAllocator struct {
	tables     store.TableStore
	files      *blobstore.Files
	thresholds *Thresholds
	newName    func() (string, error)
	logger     *slog.Logger
}

func NewStorageAllocator(tables store.TableStore, files *blobstore.Files, thresholds *Thresholds, logger *slog.Logger) *StorageAllocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageAllocator{
		tables:     tables,
		files:      files,
		thresholds: thresholds,
		newName:    func() (string, error) { return blobstore.RandomName(blobstore.NameLength) },
		logger:     logger,
	}
}

// FindOrCreate returns the first storage record of class with room for
// requested more bytes, creating a new record when none has.
func (a *StorageAllocator) FindOrCreate(ctx context.Context, class models.Class, requested uint64) (StorageEntry, error) {
	if !class.Valid() {
		return StorageEntry{}, &Error{Kind: KindInvalidClass, Op: "find storage"}
	}
	threshold := a.thresholds.Get(class)

	var found *StorageEntry
	err := store.View(ctx, a.tables, func(tx store.ReadTx) error {
		return tx.Scan(class.StorageTable(), func(key uint64, value []byte) error {
			rec, err := models.UnmarshalStorageRecord(value)
			if err != nil {
				return wrap(KindEncoding, "find storage", err)
			}
			if rec.Headroom(requested, threshold) {
				found = &StorageEntry{ID: key, Record: rec}
				return store.ErrStopScan
			}
			return nil
		})
	})
	if err != nil {
		return StorageEntry{}, wrap(KindStorage, "find storage", err)
	}
	if found != nil {
		return *found, nil
	}
	return a.create(ctx, class)
}

func (a *StorageAllocator) create(ctx context.Context, class models.Class) (StorageEntry, error) {
	name, err := a.reserveName(ctx)
	if err != nil {
		return StorageEntry{}, err
	}

	entry := StorageEntry{Record: models.StorageRecord{RelativePath: name}}
	err = store.Update(ctx, a.tables, func(tx store.WriteTx) error {
		id, err := tx.NextID(class.StorageTable())
		if err != nil {
			return err
		}
		entry.ID = id
		return tx.Put(class.StorageTable(), id, entry.Record.MarshalRow())
	})
	if err != nil {
		// Nothing references the reserved file yet.
		if rmErr := a.files.Remove(context.WithoutCancel(ctx), name); rmErr != nil {
			a.logger.Warn("remove unreferenced storage file", "path", name, "err", rmErr)
		}
		return StorageEntry{}, wrap(KindStorage, "create storage", err)
	}

	a.logger.Info("created storage file", "class", class, "storage_id", entry.ID, "path", name)
	return entry, nil
}

// reserveName draws random names until one can be created exclusively under
// the base directory.
func (a *StorageAllocator) reserveName(ctx context.Context) (string, error) {
	for i := 0; i < nameMaxAttempts; i++ {
		name, err := a.newName()
		if err != nil {
			return "", wrap(KindIO, "generate storage name", err)
		}
		err = a.files.Reserve(ctx, name)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", wrap(KindIO, "reserve storage file", err)
		}
		a.logger.Debug("storage file name taken", "path", name, "attempt", i+1)
	}
	return "", &Error{Kind: KindExhaustedNamespace, Op: "create storage"}
}

// Persist writes the updated record back in its own transaction.
func (a *StorageAllocator) Persist(ctx context.Context, class models.Class, entry StorageEntry) error {
	if !class.Valid() {
		return &Error{Kind: KindInvalidClass, Op: "persist storage"}
	}
	err := store.Update(ctx, a.tables, func(tx store.WriteTx) error {
		return tx.Put(class.StorageTable(), entry.ID, entry.Record.MarshalRow())
	})
	return wrap(KindStorage, "persist storage", err)
}

// Get returns one storage record.
func (a *StorageAllocator) Get(ctx context.Context, class models.Class, id uint64) (models.StorageRecord, bool, error) {
	if !class.Valid() {
		return models.StorageRecord{}, false, &Error{Kind: KindInvalidClass, Op: "get storage"}
	}
	var rec models.StorageRecord
	var ok bool
	err := store.View(ctx, a.tables, func(tx store.ReadTx) error {
		row, exists, err := tx.Get(class.StorageTable(), id)
		if err != nil || !exists {
			return err
		}
		rec, err = models.UnmarshalStorageRecord(row)
		ok = err == nil
		return wrap(KindEncoding, "get storage", err)
	})
	if err != nil {
		return models.StorageRecord{}, false, wrap(KindStorage, "get storage", err)
	}
	return rec, ok, nil
}

// List returns every storage record of class in key order.
func (a *StorageAllocator) List(ctx context.Context, class models.Class) ([]StorageEntry, error) {
	if !class.Valid() {
		return nil, &Error{Kind: KindInvalidClass, Op: "list storage"}
	}
	entries := []StorageEntry{}
	err := store.View(ctx, a.tables, func(tx store.ReadTx) error {
		return tx.Scan(class.StorageTable(), func(key uint64, value []byte) error {
			rec, err := models.UnmarshalStorageRecord(value)
			if err != nil {
				return wrap(KindEncoding, "list storage", err)
			}
			entries = append(entries, StorageEntry{ID: key, Record: rec})
			return nil
		})
	})
	if err != nil {
		return nil, wrap(KindStorage, "list storage", err)
	}
	return entries, nil
}
