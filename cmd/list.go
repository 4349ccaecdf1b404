package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ratings-cli/internal/config"
	"github.com/sells-group/ratings-cli/internal/dataset"
	"github.com/sells-group/ratings-cli/internal/lister"
	"github.com/sells-group/ratings-cli/internal/model"
	"github.com/sells-group/ratings-cli/internal/resilience"
	"github.com/sells-group/ratings-cli/internal/scrape"
)

var (
	listOutput   string
	listMaxPages int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Scrape company names from the configured listing pages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyListFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		env, err := initPipeline(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		_, err = runList(ctx, cfg, env.Fetcher, cmd.OutOrStdout())
		return err
	},
}

func init() {
	listCmd.Flags().StringVar(&listOutput, "output", "", "output CSV (default: list.output_path)")
	listCmd.Flags().IntVar(&listMaxPages, "max-pages", 0, "cap on pages per source (0 = all discovered)")
	rootCmd.AddCommand(listCmd)
}

func applyListFlags(cmd *cobra.Command, c *config.Config) {
	if cmd.Flags().Changed("output") {
		c.List.OutputPath = listOutput
	}
	if cmd.Flags().Changed("max-pages") {
		c.List.MaxPages = listMaxPages
	}
}

// runList scrapes every source and replaces the list output file.
func runList(ctx context.Context, c *config.Config, fetcher scrape.Fetcher, out io.Writer) ([]model.Entity, error) {
	retry := resilience.FromConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
	l := lister.New(fetcher, retry, c.List.MaxPages, c.List.Concurrency)

	entities, err := l.List(ctx, c.List.Sources)
	if err != nil {
		return nil, err
	}
	if err := dataset.WriteEntities(c.List.OutputPath, entities); err != nil {
		return nil, err
	}

	zap.L().Info("list: complete",
		zap.Int("companies", len(entities)),
		zap.String("output", c.List.OutputPath),
	)
	fmt.Fprintf(out, "Listed %d unique companies to %s\n", len(entities), c.List.OutputPath) //nolint:errcheck
	return entities, nil
}
