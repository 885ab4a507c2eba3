package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"

	"meshvault/internal/assets"
	"meshvault/internal/format"
	"meshvault/internal/models"
)

var (
	stdout io.Writer = os.Stdout

	// outputFormatter is nil for plain text output.
	outputFormatter format.Formatter
)

func selectOutputFormat(jsonOutput, yamlOutput bool) {
	switch {
	case jsonOutput:
		outputFormatter = format.JSONFormatter{}
	case yamlOutput:
		outputFormatter = format.YAMLFormatter{}
	default:
		outputFormatter = nil
	}
}

func structuredOutput() bool { return outputFormatter != nil }

func writeStructured(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

// blobResponse is the printed form of one indexed blob.
type blobResponse struct {
	ID          uint64        `json:"id" yaml:"id"`
	Class       models.Class  `json:"class" yaml:"class"`
	StorageID   uint64        `json:"storage_id" yaml:"storage_id"`
	Offset      uint64        `json:"offset" yaml:"offset"`
	Size        uint64        `json:"size" yaml:"size"`
	Digest      digest.Digest `json:"digest,omitempty" yaml:"digest,omitempty"`
	StoragePath string        `json:"storage_path,omitempty" yaml:"storage_path,omitempty"`
}

func newBlobResponse(id uint64, loc *models.LocationRecord) blobResponse {
	return blobResponse{
		ID:        id,
		Class:     loc.Class,
		StorageID: loc.StorageID,
		Offset:    loc.Offset,
		Size:      loc.Size,
		Digest:    loc.Digest,
	}
}

func writeBlobDetail(b blobResponse) error {
	lines := []string{
		fmt.Sprintf("id: %d", b.ID),
		fmt.Sprintf("class: %s", b.Class),
		fmt.Sprintf("storage_id: %d", b.StorageID),
		fmt.Sprintf("offset: %d", b.Offset),
		fmt.Sprintf("size: %d (%s)", b.Size, humanize.IBytes(b.Size)),
	}
	if b.Digest != "" {
		lines = append(lines, fmt.Sprintf("digest: %s", b.Digest))
	}
	if b.StoragePath != "" {
		lines = append(lines, fmt.Sprintf("storage_path: %s", b.StoragePath))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatBlobLine(b blobResponse) string {
	return fmt.Sprintf("%d [%s] storage=%d offset=%d size=%s", b.ID, b.Class, b.StorageID, b.Offset, humanize.IBytes(b.Size))
}

func writeStats(stats assets.Stats) error {
	lines := []string{
		fmt.Sprintf("index_path: %s", stats.IndexPath),
		fmt.Sprintf("blob_dir: %s", stats.BlobDir),
		fmt.Sprintf("backend: %s", stats.Backend),
		fmt.Sprintf("blobs: %s", humanize.Comma(int64(stats.Blobs))),
	}
	for _, cs := range stats.Classes {
		lines = append(lines,
			fmt.Sprintf("%s:", cs.Class),
			fmt.Sprintf("  threshold: %s", humanize.IBytes(cs.Threshold)),
			fmt.Sprintf("  files: %d (%d full)", cs.Files, cs.Full),
			fmt.Sprintf("  bytes: %s", humanize.IBytes(cs.Bytes)),
		)
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}
