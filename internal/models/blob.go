package models

import (
	_ "crypto/sha256"
	"fmt"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"meshvault/internal/codec"
)

// StorageRecord is the bookkeeping row for one growable append-only file.
type StorageRecord struct {
	RelativePath string `json:"relative_path" yaml:"relative_path"`
	CurrentSize  uint64 `json:"current_size" yaml:"current_size"`
}

// Path joins the record's file name onto base.
func (r StorageRecord) Path(base string) string {
	return filepath.Join(base, r.RelativePath)
}

// Headroom reports whether size more bytes fit under threshold.
func (r StorageRecord) Headroom(size, threshold uint64) bool {
	return r.CurrentSize <= threshold && size <= threshold-r.CurrentSize
}

func (r StorageRecord) MarshalRow() []byte {
	enc := codec.NewEncoder(16 + len(r.RelativePath))
	enc.PutString(r.RelativePath)
	enc.PutUint64(r.CurrentSize)
	return enc.Bytes()
}

func UnmarshalStorageRecord(row []byte) (StorageRecord, error) {
	dec := codec.NewDecoder(row)
	r := StorageRecord{
		RelativePath: dec.String(),
		CurrentSize:  dec.Uint64(),
	}
	if err := dec.Finish(); err != nil {
		return StorageRecord{}, fmt.Errorf("decode storage record: %w", err)
	}
	return r, nil
}

// LocationRecord says where one stored blob's encoded bytes live.
type LocationRecord struct {
	Class     Class         `json:"class" yaml:"class"`
	StorageID uint64        `json:"storage_id" yaml:"storage_id"`
	Offset    uint64        `json:"offset" yaml:"offset"`
	Size      uint64        `json:"size" yaml:"size"`
	Digest    digest.Digest `json:"digest,omitempty" yaml:"digest,omitempty"`
}

// End returns the offset one past the last byte of the blob.
func (r LocationRecord) End() uint64 {
	return r.Offset + r.Size
}

func (r LocationRecord) MarshalRow() []byte {
	enc := codec.NewEncoder(41 + len(r.Digest))
	enc.PutUint8(uint8(r.Class))
	enc.PutUint64(r.StorageID)
	enc.PutUint64(r.Offset)
	enc.PutUint64(r.Size)
	enc.PutString(r.Digest.String())
	return enc.Bytes()
}

func UnmarshalLocationRecord(row []byte) (LocationRecord, error) {
	dec := codec.NewDecoder(row)
	r := LocationRecord{
		Class:     Class(dec.Uint8()),
		StorageID: dec.Uint64(),
		Offset:    dec.Uint64(),
		Size:      dec.Uint64(),
		Digest:    digest.Digest(dec.String()),
	}
	if err := dec.Finish(); err != nil {
		return LocationRecord{}, fmt.Errorf("decode location record: %w", err)
	}
	if !r.Class.Valid() {
		return LocationRecord{}, fmt.Errorf("decode location record: invalid class %d", uint8(r.Class))
	}
	return r, nil
}
