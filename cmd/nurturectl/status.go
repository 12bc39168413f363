package main

import (
	"fmt"
	"time"

	"github.com/okian/nurture/internal/bootstrap"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/okian/nurture/pkg/logger"
	"github.com/spf13/cobra"
)

const maxStaleListed = 500

type statusReport struct {
	Counts model.SendCounts      `json:"counts"`
	Stale  []model.ScheduledSend `json:"stale_in_flight"`
}

func statusCmd() *cobra.Command {
	var staleAfter time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show scheduled sends by status and in-flight sends that look stuck",
		Long: `Print send counts and list in_flight sends claimed longer ago than
--stale-after. A send stays in_flight when a sweep claimed it but could not
record the outcome; those are never retried automatically and need a look.`,
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

			svc, err := bootstrap.NewService(cfg, store, logger.Nop())
			if err != nil {
				return err
			}
			counts, err := svc.DispatchStatus(ctx)
			if err != nil {
				return err
			}
			inFlight, err := svc.ListSends(ctx, model.StatusInFlight, maxStaleListed)
			if err != nil {
				return fmt.Errorf("list in-flight sends: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), statusReport{
				Counts: counts,
				Stale:  staleSends(inFlight, time.Now().Add(-staleAfter)),
			})
		},
	}
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 15*time.Minute, "age after which an in_flight send is reported")
	return cmd
}

// staleSends keeps sends claimed before cutoff. Rows without a claim time
// fall back to their schedule.
func staleSends(sends []model.ScheduledSend, cutoff time.Time) []model.ScheduledSend {
	out := []model.ScheduledSend{}
	for _, s := range sends {
		since := s.ScheduledFor
		if s.ClaimedAt != nil {
			since = *s.ClaimedAt
		}
		if since.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}
