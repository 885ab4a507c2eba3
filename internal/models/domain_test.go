package models

import (
	"bytes"
	"testing"

	"github.com/opencontainers/go-digest"
)

func TestParseClass(t *testing.T) {
	got, err := ParseClass(" TEXTURE ")
	if err != nil {
		t.Fatalf("parse class: %v", err)
	}
	if got != ClassTexture {
		t.Fatalf("expected %v, got %v", ClassTexture, got)
	}

	if _, err := ParseClass("normal-map"); err == nil {
		t.Fatal("expected invalid class error")
	}
	if _, err := ParseClass(""); err == nil {
		t.Fatal("expected missing class error")
	}
}

func TestClassTables(t *testing.T) {
	if ClassVertex.StorageTable() == ClassTexture.StorageTable() {
		t.Fatal("expected distinct storage tables per class")
	}
	if ClassVertex.DefaultThreshold() != 20*1024*1024 {
		t.Fatalf("unexpected vertex default %d", ClassVertex.DefaultThreshold())
	}
	if ClassTexture.DefaultThreshold() != 1024*1024*1024 {
		t.Fatalf("unexpected texture default %d", ClassTexture.DefaultThreshold())
	}
	if Class(7).Valid() {
		t.Fatal("expected class 7 to be invalid")
	}
}

func TestStorageRecordRow(t *testing.T) {
	rec := StorageRecord{RelativePath: "abc", CurrentSize: 513}
	row := rec.MarshalRow()
	want := []byte{3, 0, 0, 0, 0, 0, 0, 0, 'a', 'b', 'c', 0x01, 0x02, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(row, want) {
		t.Fatalf("unexpected row %x", row)
	}

	got, err := UnmarshalStorageRecord(row)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != rec {
		t.Fatalf("expected %+v, got %+v", rec, got)
	}

	if _, err := UnmarshalStorageRecord(row[:5]); err == nil {
		t.Fatal("expected error for truncated row")
	}
}

func TestLocationRecordRow(t *testing.T) {
	rec := LocationRecord{
		Class:     ClassTexture,
		StorageID: 4,
		Offset:    640000,
		Size:      900000,
		Digest:    digest.FromString("texels"),
	}
	got, err := UnmarshalLocationRecord(rec.MarshalRow())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != rec {
		t.Fatalf("expected %+v, got %+v", rec, got)
	}
	if got.End() != 1540000 {
		t.Fatalf("unexpected end %d", got.End())
	}

	bad := rec.MarshalRow()
	bad[0] = 9
	if _, err := UnmarshalLocationRecord(bad); err == nil {
		t.Fatal("expected invalid class error")
	}
}

func TestStorageRecordHeadroom(t *testing.T) {
	tests := []struct {
		name      string
		current   uint64
		size      uint64
		threshold uint64
		want      bool
	}{
		{name: "empty fits", current: 0, size: 10, threshold: 10, want: true},
		{name: "exact fit", current: 4, size: 6, threshold: 10, want: true},
		{name: "overflow", current: 5, size: 6, threshold: 10, want: false},
		{name: "already over", current: 12, size: 0, threshold: 10, want: false},
		{name: "oversized payload", current: 0, size: 11, threshold: 10, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := StorageRecord{CurrentSize: tt.current}
			if got := rec.Headroom(tt.size, tt.threshold); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
