package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"meshvault/internal/assets"
	"meshvault/internal/config"
	"meshvault/internal/mesh"
	"meshvault/internal/models"
)

func newStoreCmd(cfg *config.Config) *cobra.Command {
	var className string
	var vertexDemo int

	cmd := &cobra.Command{
		Use:   "store [<file>|-]",
		Short: "Store a file as a blob, or a generated vertex buffer with --vertex-demo",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload assets.Payload
			class := models.ClassTexture

			switch {
			case vertexDemo > 0:
				if len(args) > 0 {
					return fmt.Errorf("--vertex-demo does not take a file")
				}
				payload = mesh.DemoVertexData(vertexDemo)
				class = models.ClassVertex
			case len(args) == 1:
				data, err := readInput(cmd, args[0])
				if err != nil {
					return err
				}
				payload = &mesh.Texture{Data: data}
			default:
				return fmt.Errorf("a file (or - for stdin) is required unless --vertex-demo is set")
			}

			if cmd.Flags().Changed("class") {
				parsed, err := models.ParseClass(className)
				if err != nil {
					return err
				}
				class = parsed
			}

			return withManager(cmd.Context(), cfg, func(m *assets.DataManager) error {
				id, err := m.Store(cmd.Context(), payload, class)
				if err != nil {
					return err
				}
				loc, _, err := m.Lookup(cmd.Context(), id)
				if err != nil {
					return err
				}
				resp := newBlobResponse(id, loc)
				if path, ok, err := m.StoragePath(cmd.Context(), loc.Class, loc.StorageID); err == nil && ok {
					resp.StoragePath = path
				}

				if structuredOutput() {
					return writeStructured(resp)
				}
				return writeBlobDetail(resp)
			})
		},
	}

	cmd.Flags().StringVar(&className, "class", "", "blob class: vertex or texture (default texture, or vertex with --vertex-demo)")
	cmd.Flags().IntVar(&vertexDemo, "vertex-demo", 0, "store a generated vertex buffer with this many vertices")
	return cmd
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
