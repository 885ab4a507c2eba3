package assets

import (
	"context"

	"meshvault/internal/models"
	"meshvault/internal/store"
)

// MetaIndex maps monotonic blob ids to location records.
type MetaIndex struct {
	tables store.TableStore
}

func NewMetaIndex(tables store.TableStore) *MetaIndex {
	return &MetaIndex{tables: tables}
}

// Put assigns the next id to loc and commits it.
func (m *MetaIndex) Put(ctx context.Context, loc models.LocationRecord) (uint64, error) {
	if !loc.Class.Valid() {
		return 0, &Error{Kind: KindInvalidClass, Op: "put location"}
	}
	var id uint64
	err := store.Update(ctx, m.tables, func(tx store.WriteTx) error {
		next, err := tx.NextID(models.TableLocation)
		if err != nil {
			return err
		}
		id = next
		return tx.Put(models.TableLocation, id, loc.MarshalRow())
	})
	if err != nil {
		return 0, wrap(KindStorage, "put location", err)
	}
	return id, nil
}

// Get returns the location stored under id, or false if there is none.
func (m *MetaIndex) Get(ctx context.Context, id uint64) (*models.LocationRecord, bool, error) {
	var loc *models.LocationRecord
	err := store.View(ctx, m.tables, func(tx store.ReadTx) error {
		row, ok, err := tx.Get(models.TableLocation, id)
		if err != nil || !ok {
			return err
		}
		rec, err := models.UnmarshalLocationRecord(row)
		if err != nil {
			return wrap(KindEncoding, "get location", err)
		}
		loc = &rec
		return nil
	})
	if err != nil {
		return nil, false, wrap(KindStorage, "get location", err)
	}
	return loc, loc != nil, nil
}

// Count returns the number of stored location records.
func (m *MetaIndex) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := store.View(ctx, m.tables, func(tx store.ReadTx) error {
		var err error
		n, err = tx.Count(models.TableLocation)
		return err
	})
	return n, wrap(KindStorage, "count locations", err)
}
