package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/okian/nurture/internal/bootstrap"
	"github.com/okian/nurture/internal/domain/gaps"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/okian/nurture/internal/domain/scoring"
	"github.com/spf13/cobra"
)

type scoreInput struct {
	Answers model.Ratings `json:"answers"`
}

type scoreOutput struct {
	Score           int      `json:"score"`
	Tier            string   `json:"tier"`
	WeightedAverage float64  `json:"weighted_average"`
	TopGaps         []string `json:"top_gaps"`
	Roadmap         []string `json:"roadmap"`
}

func scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score [file]",
		Short: "Score an answers file with the configured weights",
		Long: `Read {"answers": {"Strategy": 3, ...}} from file, or stdin when file is
"-" or omitted, and print the score, tier, weakest categories and roadmap.
Nothing is stored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			out, err := score(in, bootstrap.Scorer(cfg), cfg.GapCount)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func score(r io.Reader, scorer *scoring.Scorer, gapCount int) (scoreOutput, error) {
	var in scoreInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return scoreOutput{}, fmt.Errorf("decode answers: %w", err)
	}
	for _, a := range in.Answers {
		if a.Value < 1 || a.Value > 5 {
			return scoreOutput{}, fmt.Errorf("rating for %q must be between 1 and 5", a.Category)
		}
	}
	res := scorer.Score(in.Answers)
	return scoreOutput{
		Score:           res.Score,
		Tier:            string(res.Tier),
		WeightedAverage: res.WeightedAverage,
		TopGaps:         gaps.Extract(in.Answers, gapCount),
		Roadmap:         scoring.Roadmap(res.Tier),
	}, nil
}
