package main

import (
	"github.com/spf13/cobra"

	"meshvault/internal/assets"
	"meshvault/internal/config"
	"meshvault/internal/format"
	"meshvault/internal/mesh"
	"meshvault/internal/models"
)

func newCatCmd(cfg *config.Config) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "cat <id>",
		Short: "Write a stored blob to stdout",
		Long: `Write a stored blob to stdout.

Texture blobs are written as their original bytes and vertex blobs as a JSON
(or --yaml) document. With --raw the stored encoding is written unchanged.`,
		Args: requireExactlyArgs(1, "exactly one id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBlobID(args[0])
			if err != nil {
				return err
			}

			return withManager(cmd.Context(), cfg, func(m *assets.DataManager) error {
				if raw {
					data, _, err := m.ReadBlob(cmd.Context(), id)
					if err != nil {
						return err
					}
					_, err = stdout.Write(data)
					return err
				}

				loc, ok, err := m.Lookup(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					return &assets.Error{Kind: assets.KindNotFound, Op: "cat", Err: assets.ErrNotFound}
				}

				if loc.Class == models.ClassTexture {
					var tex mesh.Texture
					if _, err := m.Load(cmd.Context(), id, &tex); err != nil {
						return err
					}
					_, err = stdout.Write(tex.Data)
					return err
				}

				var data mesh.VertexData
				if _, err := m.Load(cmd.Context(), id, &data); err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(&data)
				}
				return format.JSONFormatter{Indent: true}.Write(stdout, &data)
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "write the stored encoding instead of decoding it")
	return cmd
}
