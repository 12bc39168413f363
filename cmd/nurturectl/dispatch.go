package main

import (
	"github.com/okian/nurture/internal/bootstrap"
	"github.com/okian/nurture/pkg/logger"
	"github.com/spf13/cobra"
)

func dispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run one dispatch sweep and print its summary",
		Long: `Claim due scheduled sends and deliver them with the configured providers.

This is the same sweep POST /nurture/send-scheduled runs, for hosts that
schedule it with cron instead of an HTTP trigger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := contextOf(cmd)
			store, err := bootstrap.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			svc, err := bootstrap.NewService(cfg, store, logger.Get())
			if err != nil {
				return err
			}
			sum, err := svc.Dispatch(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), sum)
		},
	}
}
