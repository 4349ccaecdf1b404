package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ratings-cli/internal/aggregate"
	"github.com/sells-group/ratings-cli/internal/config"
	"github.com/sells-group/ratings-cli/internal/dataset"
)

var (
	aggregateInput     string
	aggregateOutput    string
	aggregateMinRating float64
	aggregateLocale    string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Fold enrichment rows into one ranked row per company",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyAggregateFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		_, err := runAggregate(cfg, cmd.OutOrStdout())
		return err
	},
}

func init() {
	f := aggregateCmd.Flags()
	f.StringVar(&aggregateInput, "input", "", "raw enrichment CSV (default: aggregate.input_path)")
	f.StringVar(&aggregateOutput, "output", "", "aggregated CSV, replaced (default: aggregate.output_path)")
	f.Float64Var(&aggregateMinRating, "min-rating", 0, "drop companies rated below this, e.g. 3.8 (default: aggregate.rating_threshold)")
	f.StringVar(&aggregateLocale, "locale", "", "collation locale for name ordering (default: aggregate.locale)")
	rootCmd.AddCommand(aggregateCmd)
}

func applyAggregateFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("input") {
		c.Aggregate.InputPath = aggregateInput
	}
	if f.Changed("output") {
		c.Aggregate.OutputPath = aggregateOutput
	}
	if f.Changed("min-rating") {
		c.Aggregate.RatingThreshold = aggregateMinRating
	}
	if f.Changed("locale") {
		c.Aggregate.Locale = aggregateLocale
	}
}

// runAggregate rebuilds the aggregated file from scratch.
func runAggregate(c *config.Config, out io.Writer) (aggregate.Stats, error) {
	recs, stats, err := aggregate.Aggregate(dataset.Records(c.Aggregate.InputPath), aggregate.Options{
		MinRating: c.Aggregate.RatingThreshold,
		Locale:    c.Aggregate.Locale,
	})
	if err != nil {
		return stats, err
	}
	if err := dataset.WriteAggregated(c.Aggregate.OutputPath, recs); err != nil {
		return stats, err
	}

	zap.L().Info("aggregate: complete",
		zap.Int("raw", stats.Raw),
		zap.Int("unique", stats.Unique),
		zap.Int("retained", stats.Retained),
		zap.Float64("min_rating", c.Aggregate.RatingThreshold),
		zap.String("output", c.Aggregate.OutputPath),
	)
	fmt.Fprintf(out, "aggregate: %d rows, %d unique companies, %d retained, written to %s\n", //nolint:errcheck
		stats.Raw, stats.Unique, stats.Retained, c.Aggregate.OutputPath)
	return stats, nil
}
