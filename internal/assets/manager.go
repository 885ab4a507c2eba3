package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"

	"meshvault/internal/blobstore"
	"meshvault/internal/codec"
	"meshvault/internal/models"
	"meshvault/internal/store"
)

// Encoding buffers start at most this large; bigger payloads grow on demand.
const maxEncodeHint = 64 << 20

// DataManager stores payloads in growable flat files and indexes where each
// one lives.
type DataManager struct {
	tables     store.TableStore
	files      *blobstore.Files
	allocator  *StorageAllocator
	index      *MetaIndex
	thresholds *Thresholds
	indexPath  string
	logger     *slog.Logger

	// classLocks serialise select, append, and persist per class.
	classLocks [2]sync.Mutex
}

// Open opens or creates the index at indexPath and resolves the blob
// directory: blobDir when set, otherwise the directory holding the index.
func Open(ctx context.Context, indexPath, blobDir string, opts ...Option) (*DataManager, error) {
	const op = "open"
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(indexPath) == "" {
		return nil, &Error{Kind: KindOpen, Op: op, Err: fmt.Errorf("index path is required")}
	}
	absIndex, err := filepath.Abs(indexPath)
	if err != nil {
		return nil, &Error{Kind: KindOpen, Op: op, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(absIndex), 0o755); err != nil {
		return nil, &Error{Kind: KindOpen, Op: op, Err: err}
	}

	tables, err := store.Open(o.backend, absIndex)
	if err != nil {
		return nil, &Error{Kind: KindOpen, Op: op, Err: fmt.Errorf("open index %s: %w", absIndex, err)}
	}
	m, err := newDataManager(ctx, tables, absIndex, blobDir, o)
	if err != nil {
		_ = tables.Close()
		return nil, &Error{Kind: KindOpen, Op: op, Err: err}
	}
	return m, nil
}

func newDataManager(ctx context.Context, tables store.TableStore, indexPath, blobDir string, o options) (*DataManager, error) {
	tableNames := append(models.StorageTables(), models.TableLocation)
	if err := tables.EnsureTables(ctx, tableNames...); err != nil {
		return nil, fmt.Errorf("ensure tables: %w", err)
	}

	baseDir, err := resolveBaseDir(indexPath, blobDir)
	if err != nil {
		return nil, fmt.Errorf("resolve blob directory: %w", err)
	}
	files, err := blobstore.NewFiles(baseDir)
	if err != nil {
		return nil, err
	}

	thresholds := NewThresholds()
	if o.vertexThreshold > 0 {
		thresholds.Set(models.ClassVertex, o.vertexThreshold)
	}
	if o.textureThreshold > 0 {
		thresholds.Set(models.ClassTexture, o.textureThreshold)
	}

	logger := o.logger.With("component", "assets")
	logger.Info("opened index", "path", indexPath, "backend", tables.Backend(), "blob_dir", baseDir)

	return &DataManager{
		tables:     tables,
		files:      files,
		allocator:  NewStorageAllocator(tables, files, thresholds, logger),
		index:      NewMetaIndex(tables),
		thresholds: thresholds,
		indexPath:  indexPath,
		logger:     logger,
	}, nil
}

func resolveBaseDir(indexPath, blobDir string) (string, error) {
	dir := strings.TrimSpace(blobDir)
	if dir == "" {
		resolved, err := filepath.EvalSymlinks(indexPath)
		if err != nil {
			return "", err
		}
		dir = filepath.Dir(resolved)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// Close closes the index.
func (m *DataManager) Close() error {
	if m == nil || m.tables == nil {
		return nil
	}
	return m.tables.Close()
}

func (m *DataManager) IndexPath() string { return m.indexPath }

// BlobDir returns the resolved directory holding storage files.
func (m *DataManager) BlobDir() string { return m.files.Root() }

func (m *DataManager) Backend() string { return m.tables.Backend() }

func (m *DataManager) Threshold(class models.Class) uint64 { return m.thresholds.Get(class) }

func (m *DataManager) SetVertexThreshold(size uint64) {
	m.thresholds.Set(models.ClassVertex, size)
}

func (m *DataManager) SetTextureThreshold(size uint64) {
	m.thresholds.Set(models.ClassTexture, size)
}

// Store encodes payload, appends it to a storage file of class, and returns
// the id of its location record.
func (m *DataManager) Store(ctx context.Context, payload Payload, class models.Class) (uint64, error) {
	const op = "store"
	if !class.Valid() {
		return 0, &Error{Kind: KindInvalidClass, Op: op, Err: fmt.Errorf("class %d", uint8(class))}
	}
	if payload == nil {
		return 0, &Error{Kind: KindEncoding, Op: op, Err: errors.New("payload is required")}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	declared := payload.DeclaredSize()
	enc := codec.NewEncoder(int(min(declared, maxEncodeHint)))
	if err := payload.EncodeBlob(enc); err != nil {
		return 0, &Error{Kind: KindEncoding, Op: op, Err: err}
	}
	data := enc.Bytes()
	encoded := uint64(len(data))
	if declared != encoded {
		m.logger.Debug("declared size differs from encoded size", "class", class, "declared", declared, "encoded", encoded)
	}

	loc, err := m.place(ctx, class, max(declared, encoded), data)
	if err != nil {
		return 0, err
	}

	// The bytes are on disk and their size is persisted; record them even if
	// ctx was canceled meanwhile.
	id, err := m.index.Put(context.WithoutCancel(ctx), loc)
	if err != nil {
		return 0, err
	}

	m.logger.Debug("stored blob", "id", id, "class", class, "storage_id", loc.StorageID, "offset", loc.Offset, "size", loc.Size)
	return id, nil
}

// place runs select-or-create, append, and persist as one unit per class.
func (m *DataManager) place(ctx context.Context, class models.Class, placement uint64, data []byte) (models.LocationRecord, error) {
	lock := &m.classLocks[class]
	lock.Lock()
	defer lock.Unlock()

	entry, err := m.allocator.FindOrCreate(ctx, class, placement)
	if err != nil {
		return models.LocationRecord{}, err
	}

	res, err := m.files.Append(ctx, entry.Record.RelativePath, data)
	if err != nil {
		return models.LocationRecord{}, wrap(KindIO, "append blob", err)
	}
	entry.Record.CurrentSize = uint64(res.Length)

	if err := m.allocator.Persist(context.WithoutCancel(ctx), class, entry); err != nil {
		return models.LocationRecord{}, err
	}

	return models.LocationRecord{
		Class:     class,
		StorageID: entry.ID,
		Offset:    uint64(res.Offset),
		Size:      uint64(res.Size),
		Digest:    digest.FromBytes(data),
	}, nil
}

// Lookup returns the location record for id, or false if there is none.
func (m *DataManager) Lookup(ctx context.Context, id uint64) (*models.LocationRecord, bool, error) {
	return m.index.Get(ctx, id)
}

// ReadBlob returns the encoded bytes stored under id after checking them
// against the recorded digest.
func (m *DataManager) ReadBlob(ctx context.Context, id uint64) ([]byte, *models.LocationRecord, error) {
	const op = "read blob"
	loc, ok, err := m.index.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("blob %d: %w", id, ErrNotFound)}
	}

	rec, ok, err := m.allocator.Get(ctx, loc.Class, loc.StorageID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, &Error{Kind: KindStorage, Op: op, Err: fmt.Errorf("%s storage %d referenced by blob %d is missing", loc.Class, loc.StorageID, id)}
	}
	if loc.Offset > math.MaxInt64 || loc.Size > math.MaxInt64 {
		return nil, nil, &Error{Kind: KindEncoding, Op: op, Err: fmt.Errorf("blob %d range out of bounds", id)}
	}

	data, err := m.files.ReadAt(ctx, rec.RelativePath, int64(loc.Offset), int64(loc.Size))
	if err != nil {
		return nil, nil, wrap(KindIO, op, err)
	}
	if err := verifyDigest(loc.Digest, data); err != nil {
		return nil, nil, &Error{Kind: KindIntegrity, Op: op, Err: fmt.Errorf("blob %d: %w", id, err)}
	}
	return data, loc, nil
}

func verifyDigest(want digest.Digest, data []byte) error {
	if want == "" {
		return nil
	}
	if err := want.Validate(); err != nil {
		return err
	}
	if got := want.Algorithm().FromBytes(data); got != want {
		return fmt.Errorf("expected %s, got %s", want, got)
	}
	return nil
}

// Load reads the blob stored under id and decodes it into dst.
func (m *DataManager) Load(ctx context.Context, id uint64, dst Decodable) (*models.LocationRecord, error) {
	data, loc, err := m.ReadBlob(ctx, id)
	if err != nil {
		return nil, err
	}
	dec := codec.NewDecoder(data)
	if err := dst.DecodeBlob(dec); err != nil {
		return nil, &Error{Kind: KindEncoding, Op: "load", Err: err}
	}
	if err := dec.Finish(); err != nil {
		return nil, &Error{Kind: KindEncoding, Op: "load", Err: err}
	}
	return loc, nil
}

// StorageFiles lists the storage records of class in key order.
func (m *DataManager) StorageFiles(ctx context.Context, class models.Class) ([]StorageEntry, error) {
	return m.allocator.List(ctx, class)
}

// ClassStats summarises the storage files of one class.
type ClassStats struct {
	Class     models.Class `json:"class" yaml:"class"`
	Threshold uint64       `json:"threshold" yaml:"threshold"`
	Files     int          `json:"files" yaml:"files"`
	Bytes     uint64       `json:"bytes" yaml:"bytes"`
	// Full counts files with no headroom left under the current threshold.
	Full int `json:"full" yaml:"full"`
}

// Stats describes the index as a whole.
type Stats struct {
	IndexPath string       `json:"index_path" yaml:"index_path"`
	BlobDir   string       `json:"blob_dir" yaml:"blob_dir"`
	Backend   string       `json:"backend" yaml:"backend"`
	Blobs     uint64       `json:"blobs" yaml:"blobs"`
	Classes   []ClassStats `json:"classes" yaml:"classes"`
}

func (m *DataManager) Stats(ctx context.Context) (Stats, error) {
	blobs, err := m.index.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		IndexPath: m.indexPath,
		BlobDir:   m.files.Root(),
		Backend:   m.tables.Backend(),
		Blobs:     blobs,
	}
	for _, class := range models.Classes {
		entries, err := m.allocator.List(ctx, class)
		if err != nil {
			return Stats{}, err
		}
		cs := ClassStats{Class: class, Threshold: m.thresholds.Get(class), Files: len(entries)}
		for _, entry := range entries {
			cs.Bytes += entry.Record.CurrentSize
			if entry.Record.CurrentSize >= cs.Threshold {
				cs.Full++
			}
		}
		stats.Classes = append(stats.Classes, cs)
	}
	return stats, nil
}

// StoragePath returns the absolute path of a storage file, or false if class
// has no record under id.
func (m *DataManager) StoragePath(ctx context.Context, class models.Class, id uint64) (string, bool, error) {
	rec, ok, err := m.allocator.Get(ctx, class, id)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.Path(m.files.Root()), true, nil
}
