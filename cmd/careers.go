package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ratings-cli/internal/batch"
	"github.com/sells-group/ratings-cli/internal/config"
	"github.com/sells-group/ratings-cli/internal/dataset"
	"github.com/sells-group/ratings-cli/internal/enrich"
	"github.com/sells-group/ratings-cli/internal/search"
)

var (
	careersInput        string
	careersOutput       string
	careersConcurrency  int
	careersPersistEmpty bool
)

var careersCmd = &cobra.Command{
	Use:   "careers",
	Short: "Find a careers page for each aggregated company",
	Long: `Reads the aggregated CSV and appends each company's first job-openings
search result, carrying its rating and employee count forward. Companies
with no result are not written by default and are retried on the next run.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyCareersFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		env, err := initPipeline(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		_, err = runCareers(ctx, cfg, env.Search, cmd.OutOrStdout())
		return err
	},
}

func init() {
	f := careersCmd.Flags()
	f.StringVar(&careersInput, "input", "", "aggregated CSV (default: careers.input_path)")
	f.StringVar(&careersOutput, "output", "", "output CSV, appended to (default: careers.output_path)")
	f.IntVar(&careersConcurrency, "concurrency", 0, "lookups per chunk (default: careers.concurrency_limit)")
	f.BoolVar(&careersPersistEmpty, "persist-empty", false, "write rows for companies with no careers link")
	rootCmd.AddCommand(careersCmd)
}

func applyCareersFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("input") {
		c.Careers.InputPath = careersInput
	}
	if f.Changed("output") {
		c.Careers.OutputPath = careersOutput
	}
	if f.Changed("concurrency") {
		c.Careers.ConcurrencyLimit = careersConcurrency
	}
	if f.Changed("persist-empty") {
		c.Careers.PersistEmpty = careersPersistEmpty
	}
}

// runCareers runs the careers enricher in chunks of the concurrency limit,
// without pausing between them.
func runCareers(ctx context.Context, c *config.Config, client search.Client, out io.Writer) (batch.Summary, error) {
	entities, err := dataset.ReadEntities(c.Careers.InputPath)
	if err != nil {
		return batch.Summary{}, eris.Wrap(err, "careers: read input")
	}

	enricher := enrich.NewCareers(client, c.Search.CareersQuery, c.Batch.Timeout())
	coord := batch.New(batch.Options{
		ChunkSize:        c.Careers.ConcurrencyLimit,
		ConcurrencyLimit: c.Careers.ConcurrencyLimit,
		PersistEmpty:     c.Careers.PersistEmpty,
	}, enricher, batch.NoPause{})

	sum, err := coord.Process(ctx, entities, c.Careers.OutputPath, dataset.SchemaCareers)
	printSummary(out, "careers", c.Careers.OutputPath, sum)
	return sum, err
}
