package main

import (
	"context"
	"fmt"
	"io"
	"os"
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
	enrichInput        string
	enrichOutput       string
	enrichChunkSize    int
	enrichConcurrency  int
	enrichTimeoutMs    int
	enrichPause        string
	enrichPersistEmpty bool
)

var enrichCmd = &cobra.Command{
	Use:     "enrich",
	Aliases: []string{"batch"},
	Short:   "Look up Glassdoor ratings for listed companies in resumable chunks",
	Long: `Reads company names from the input CSV and appends one row per company to
the output CSV, a chunk at a time. Companies already in the output are
skipped, so an interrupted run picks up where it stopped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyEnrichFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		env, err := initPipeline(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		pauser := batch.NewPauser(cfg.Batch, os.Stdin, cmd.ErrOrStderr())
		_, err = runEnrich(ctx, cfg, env.Search, pauser, cmd.OutOrStdout())
		return err
	},
}

func init() {
	f := enrichCmd.Flags()
	f.StringVar(&enrichInput, "input", "", "input CSV with a Company Name column (default: batch.input_path)")
	f.StringVar(&enrichOutput, "output", "", "output CSV, appended to (default: batch.output_path)")
	f.IntVar(&enrichChunkSize, "chunk-size", 0, "companies per chunk (default: batch.chunk_size)")
	f.IntVar(&enrichConcurrency, "concurrency", 0, "max lookups in flight within a chunk (default: chunk size)")
	f.IntVar(&enrichTimeoutMs, "timeout-ms", 0, "per-lookup timeout in milliseconds (default: batch.timeout_ms)")
	f.StringVar(&enrichPause, "pause", "", "between chunks: prompt, delay or none (default: batch.pause)")
	f.BoolVar(&enrichPersistEmpty, "persist-empty", true, "write rows for companies with nothing found")
	rootCmd.AddCommand(enrichCmd)
}

func applyEnrichFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("input") {
		c.Batch.InputPath = enrichInput
	}
	if f.Changed("output") {
		c.Batch.OutputPath = enrichOutput
	}
	if f.Changed("chunk-size") {
		c.Batch.ChunkSize = enrichChunkSize
		if !f.Changed("concurrency") {
			c.Batch.ConcurrencyLimit = enrichChunkSize
		}
	}
	if f.Changed("concurrency") {
		c.Batch.ConcurrencyLimit = enrichConcurrency
	}
	if f.Changed("timeout-ms") {
		c.Batch.TimeoutMs = enrichTimeoutMs
	}
	if f.Changed("pause") {
		c.Batch.Pause = enrichPause
	}
	if f.Changed("persist-empty") {
		c.Batch.PersistEmpty = enrichPersistEmpty
	}
}

// runEnrich runs the Glassdoor enricher over the batch input file.
func runEnrich(ctx context.Context, c *config.Config, client search.Client, pauser batch.Pauser, out io.Writer) (batch.Summary, error) {
	entities, err := dataset.ReadEntities(c.Batch.InputPath)
	if err != nil {
		return batch.Summary{}, eris.Wrap(err, "enrich: read input")
	}

	enricher := enrich.NewGlassdoor(client, c.Search.GlassdoorQuery, c.Batch.Timeout())
	coord := batch.New(batch.Options{
		ChunkSize:        c.Batch.ChunkSize,
		ConcurrencyLimit: c.Batch.ConcurrencyLimit,
		PersistEmpty:     c.Batch.PersistEmpty,
	}, enricher, pauser)

	sum, err := coord.Process(ctx, entities, c.Batch.OutputPath, dataset.SchemaDetails)
	printSummary(out, "enrich", c.Batch.OutputPath, sum)
	return sum, err
}

func printSummary(out io.Writer, stage, path string, s batch.Summary) {
	fmt.Fprintf(out, "%s: %d companies, %d already done, %d processed in %d chunks (%d found, %d missed, %d blocked), %d rows written to %s\n", //nolint:errcheck
		stage, s.Total, s.Skipped, s.Processed, s.Chunks, s.Found, s.Missed, s.Blocked, s.Persisted, path)
}
