package main

import (
	"github.com/spf13/cobra"

	"meshvault/internal/assets"
	"meshvault/internal/config"
)

func newInfoCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index and storage file statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), cfg, func(m *assets.DataManager) error {
				stats, err := m.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(stats)
				}
				return writeStats(stats)
			})
		},
	}
	return cmd
}
