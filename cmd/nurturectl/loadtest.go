package main

import (
	"runtime"
	"time"

	"github.com/okian/nurture/internal/loadtest"
	"github.com/okian/nurture/pkg/logger"
	"github.com/spf13/cobra"
)

func loadtestCmd() *cobra.Command {
	lt := loadtest.Config{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Submit generated assessments to a running server and verify the results",
		Long: `Generate synthetic assessments, post them to /assessment concurrently and
compare every score, tier and sequence with the locally computed result.
Category weights come from the same configuration the server reads.

Examples:
  nurturectl loadtest --url http://localhost:9080 --leads 500
  nurturectl loadtest --leads 50 --workers 4 --output run.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			lt.Weights = cfg.CategoryWeights
			lt.DefaultWeight = cfg.DefaultCategoryWeight
			if lt.Seed == 0 {
				lt.Seed = uint64(time.Now().UnixNano())
			}
			stats, err := loadtest.Run(contextOf(cmd), &lt, logger.Get().Named("loadtest"))
			if werr := writeJSON(cmd.OutOrStdout(), stats); werr != nil && err == nil {
				err = werr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&lt.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	cmd.Flags().IntVar(&lt.NumLeads, "leads", 200, "number of assessments to submit")
	cmd.Flags().IntVar(&lt.Workers, "workers", runtime.NumCPU()*2, "concurrent submitters")
	cmd.Flags().DurationVar(&lt.Timeout, "timeout", 30*time.Second, "HTTP request timeout")
	cmd.Flags().StringVar(&lt.OutputFile, "output", "", "write generated assessments and expectations to this file")
	cmd.Flags().StringVar(&lt.Domain, "domain", "example.com", "email domain for generated leads")
	cmd.Flags().Uint64Var(&lt.Seed, "seed", 0, "generator seed (0 picks one from the clock)")
	return cmd
}
