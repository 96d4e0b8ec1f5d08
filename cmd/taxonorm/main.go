// taxonorm deduplicates and clusters free-text category labels from tabular
// research data into a compact taxonomy, using an LLM backend for the
// clustering decisions.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"taxonorm/internal/config"
	"taxonorm/internal/llm"
	"taxonorm/internal/pipeline"
	"taxonorm/internal/store"
	"taxonorm/internal/taxonomy"
)

var (
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "taxonorm",
	Short: "Cluster category labels into a compact taxonomy via LLM seed-and-assign",
	Long: `taxonorm reads delimited tables with a category column, clusters the
first N labels in a single seed request, places every remaining label into
the seeded taxonomy with bounded-concurrency per-label requests, and writes
each table back out with Group and Group Name columns.

One failing file does not abort the batch; a missing credential aborts the
run before any file is touched.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context())
	},
}

// parseCmd feeds a saved model response through the payload extraction and
// taxonomy parser, for debugging the free-text protocol without a backend.
var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a saved group-listing response and print the taxonomy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		payload := taxonomy.ExtractPayload(string(data), taxonomy.GroupsBegin, taxonomy.GroupsEnd)
		groups := taxonomy.Parse(payload)
		if len(groups) == 0 {
			return errors.New("no parseable groups in input")
		}
		for _, g := range groups {
			fmt.Fprintf(cmd.OutOrStdout(), "Group %d %s: %d labels\n", g.ID, g.Name, len(g.Labels))
			for _, lab := range g.Labels {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", lab)
			}
		}
		return nil
	},
}

func runPipeline(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			logger.Error("credential missing, aborting before any file work", zap.Error(err))
		}
		return err
	}

	client, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.GetLLMTimeout(),
	})
	if err != nil {
		return err
	}

	var checkpoints pipeline.CheckpointStore
	if cfg.CheckpointDB != "" {
		cs, err := store.NewCheckpointStore(cfg.CheckpointDB)
		if err != nil {
			return err
		}
		defer cs.Close()
		checkpoints = cs
	}

	return pipeline.New(cfg, client, checkpoints, logger).Run(ctx)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to yaml config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(parseCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
