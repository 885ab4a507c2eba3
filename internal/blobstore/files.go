package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// AppendResult describes one append to a storage file.
type AppendResult struct {
	// Offset is the file length observed before the write.
	Offset int64
	// Size is the number of bytes written.
	Size int64
	// Length is the file length observed after the write.
	Length int64
}

// Files stores append-only flat files directly under one root directory.
type Files struct {
	root string
}

// NewFiles returns a file set rooted at root, which must be an existing directory.
func NewFiles(root string) (*Files, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blob root %s is not a directory", abs)
	}
	return &Files{root: abs}, nil
}

// Root returns the absolute root directory.
func (f *Files) Root() string { return f.root }

// Reserve creates an empty file for name, failing with fs.ErrExist if one is
// already there.
func (f *Files) Reserve(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.pathFromKey(name)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	return file.Close()
}

// Append writes data at the end of name, creating the file if needed, and
// syncs it before returning. Existing bytes are never rewritten.
func (f *Files) Append(ctx context.Context, name string, data []byte) (AppendResult, error) {
	var zero AppendResult
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	path, err := f.pathFromKey(name)
	if err != nil {
		return zero, err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return zero, err
	}
	defer file.Close()

	before, err := file.Stat()
	if err != nil {
		return zero, err
	}
	n, err := file.Write(data)
	if err != nil {
		return zero, fmt.Errorf("append %s: wrote %d of %d bytes: %w", name, n, len(data), err)
	}
	if err := file.Sync(); err != nil {
		return zero, err
	}
	after, err := file.Stat()
	if err != nil {
		return zero, err
	}
	if err := file.Close(); err != nil {
		return zero, err
	}

	return AppendResult{Offset: before.Size(), Size: int64(n), Length: after.Size()}, nil
}

// ReadAt returns size bytes of name starting at offset.
func (f *Files) ReadAt(ctx context.Context, name string, offset, size int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("invalid range [%d, %d+%d)", offset, offset, size)
	}
	path, err := f.pathFromKey(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, size)
	if _, err := file.ReadAt(buf, offset); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read %s: range [%d, %d) past end of file: %w", name, offset, offset+size, io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	return buf, nil
}

// Size returns the current length of name.
func (f *Files) Size(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := f.pathFromKey(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes name. Missing files are ignored.
func (f *Files) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.pathFromKey(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *Files) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("blob file name is required")
	}
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blob file name must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob file name")
	}
	return filepath.Join(f.root, clean), nil
}
