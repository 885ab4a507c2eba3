package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meshvault/internal/assets"
	"meshvault/internal/config"
)

func newLookupCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <id> [<id>...]",
		Short: "Show where blobs are stored",
		Args:  requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseBlobIDs(args)
			if err != nil {
				return err
			}

			return withManager(cmd.Context(), cfg, func(m *assets.DataManager) error {
				responses := make([]blobResponse, 0, len(ids))
				for _, id := range ids {
					loc, ok, err := m.Lookup(cmd.Context(), id)
					if err != nil {
						return err
					}
					if !ok {
						return &assets.Error{Kind: assets.KindNotFound, Op: fmt.Sprintf("lookup %d", id), Err: assets.ErrNotFound}
					}
					resp := newBlobResponse(id, loc)
					if path, ok, err := m.StoragePath(cmd.Context(), loc.Class, loc.StorageID); err != nil {
						return err
					} else if ok {
						resp.StoragePath = path
					}
					responses = append(responses, resp)
				}

				if len(responses) == 1 {
					if structuredOutput() {
						return writeStructured(responses[0])
					}
					return writeBlobDetail(responses[0])
				}
				if structuredOutput() {
					return writeStructured(responses)
				}
				for _, resp := range responses {
					if err := writePlain("%s\n", formatBlobLine(resp)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	return cmd
}
