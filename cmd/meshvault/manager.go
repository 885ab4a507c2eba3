package main

import (
	"context"
	"log/slog"

	"meshvault/internal/assets"
	"meshvault/internal/config"
	"meshvault/internal/models"
)

// withManager opens the configured index for the duration of fn.
func withManager(ctx context.Context, cfg *config.Config, fn func(*assets.DataManager) error) error {
	indexPath, err := cfg.ResolveIndexPath()
	if err != nil {
		return err
	}

	m, err := assets.Open(ctx, indexPath, cfg.BlobDir,
		assets.WithBackend(cfg.Backend),
		assets.WithLogger(slog.Default()),
		assets.WithThresholds(cfg.Threshold(models.ClassVertex), cfg.Threshold(models.ClassTexture)),
	)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("close index", "path", indexPath, "err", closeErr)
		}
	}()

	return fn(m)
}
