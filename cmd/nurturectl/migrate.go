package main

import (
	"fmt"

	"github.com/okian/nurture/internal/bootstrap"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Open the configured database and apply the schema. Safe to run repeatedly;
the server applies the same schema on start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := bootstrap.OpenStore(contextOf(cmd), cfg)
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema ready: %s\n", cfg.DatabasePath)
			return err
		},
	}
}
