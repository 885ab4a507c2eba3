package main

import (
	"context"
	"errors"

	"meshvault/internal/assets"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	if errors.Is(err, context.Canceled) {
		lines = append(lines, "hint: interrupted; blobs appended before the interrupt stay on disk but may be unindexed.")
		return uniqueLines(lines)
	}

	switch assets.KindOf(err) {
	case assets.KindOpen:
		lines = append(lines,
			"hint: check --index / MESHVAULT_INDEX and that its directory is writable.",
			"hint: an index written by one backend cannot be opened with the other; check --backend.",
		)
	case assets.KindIO:
		lines = append(lines, "hint: check free space and permissions in the blob directory (--blob-dir / MESHVAULT_BLOB_DIR).")
	case assets.KindExhaustedNamespace:
		lines = append(lines, "hint: the blob directory has too many colliding file names; check it for stray files.")
	case assets.KindIntegrity:
		lines = append(lines, "hint: the storage file was modified outside meshvault; restore it from a backup.")
	case assets.KindNotFound:
		lines = append(lines, "hint: ids are assigned from 0 in store order; run `meshvault info` to see how many blobs exist.")
	case assets.KindInvalidClass:
		lines = append(lines, "hint: valid classes are vertex and texture.")
	case assets.KindStorage:
		lines = append(lines, "hint: the index may be locked by another process or damaged.")
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
