package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ratings-cli/internal/batch"
	"github.com/sells-group/ratings-cli/internal/config"
)

var runSkipList bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "List, enrich and aggregate in one go",
	Long: `Runs the list, enrich and aggregate stages with the configured paths. The
list output feeds the enrich input and the enrich output feeds the
aggregate input. Re-running resumes the enrich stage.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		chainStagePaths(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		env, err := initPipeline(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		out := cmd.OutOrStdout()
		if runSkipList {
			zap.L().Info("run: skipping list stage", zap.String("input", cfg.Batch.InputPath))
		} else if _, err := runList(ctx, cfg, env.Fetcher, out); err != nil {
			return err
		}

		pauser := batch.NewPauser(cfg.Batch, os.Stdin, cmd.ErrOrStderr())
		if _, err := runEnrich(ctx, cfg, env.Search, pauser, out); err != nil {
			return err
		}

		_, err = runAggregate(cfg, out)
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runSkipList, "skip-list", false, "reuse the existing list output instead of scraping again")
	rootCmd.AddCommand(runCmd)
}

// chainStagePaths points each stage's input at the previous stage's output.
func chainStagePaths(c *config.Config) {
	c.Batch.InputPath = c.List.OutputPath
	c.Aggregate.InputPath = c.Batch.OutputPath
}
