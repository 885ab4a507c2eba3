package main

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"meshvault/internal/assets"
	"meshvault/internal/config"
	"meshvault/internal/mesh"
	"meshvault/internal/models"
)

type benchResult struct {
	Elapsed     time.Duration  `json:"elapsed_ns" yaml:"elapsed_ns"`
	Concurrency int            `json:"concurrency" yaml:"concurrency"`
	Bytes       uint64         `json:"bytes" yaml:"bytes"`
	Blobs       []blobResponse `json:"blobs" yaml:"blobs"`
}

func newBenchCmd(cfg *config.Config) *cobra.Command {
	var vertices int
	var textureBytes int
	var concurrency int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Store a generated vertex buffer and a texture blob and report timing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if vertices < 0 || textureBytes < 0 {
				return fmt.Errorf("--vertices and --texture-bytes must not be negative")
			}
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}

			vertexData := mesh.DemoVertexData(vertices)
			texture := &mesh.Texture{Data: make([]byte, textureBytes)}

			return withManager(cmd.Context(), cfg, func(m *assets.DataManager) error {
				var mu sync.Mutex
				var ids []uint64

				start := time.Now()
				g, ctx := errgroup.WithContext(cmd.Context())
				for w := 0; w < concurrency; w++ {
					g.Go(func() error {
						vertexID, err := m.Store(ctx, vertexData, models.ClassVertex)
						if err != nil {
							return fmt.Errorf("store vertex data: %w", err)
						}
						textureID, err := m.Store(ctx, texture, models.ClassTexture)
						if err != nil {
							return fmt.Errorf("store texture: %w", err)
						}
						mu.Lock()
						ids = append(ids, vertexID, textureID)
						mu.Unlock()
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}
				result := benchResult{Elapsed: time.Since(start), Concurrency: concurrency}

				for _, id := range ids {
					loc, ok, err := m.Lookup(cmd.Context(), id)
					if err != nil {
						return err
					}
					if !ok {
						return &assets.Error{Kind: assets.KindNotFound, Op: fmt.Sprintf("bench %d", id), Err: assets.ErrNotFound}
					}
					result.Bytes += loc.Size
					result.Blobs = append(result.Blobs, newBlobResponse(id, loc))
				}
				slog.Debug("bench finished", "elapsed", result.Elapsed, "blobs", len(result.Blobs), "bytes", result.Bytes)

				if structuredOutput() {
					return writeStructured(result)
				}
				var rate uint64
				if secs := result.Elapsed.Seconds(); secs > 0 {
					rate = uint64(float64(result.Bytes) / secs)
				}
				if err := writePlain("elapsed: %s (%s/s)\n", result.Elapsed, humanize.IBytes(rate)); err != nil {
					return err
				}
				for _, b := range result.Blobs {
					if err := writePlain("%s\n", formatBlobLine(b)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&vertices, "vertices", 500000, "vertices in the generated vertex buffer")
	cmd.Flags().IntVar(&textureBytes, "texture-bytes", 4096, "size of the generated texture blob")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "number of concurrent store pairs")
	return cmd
}
