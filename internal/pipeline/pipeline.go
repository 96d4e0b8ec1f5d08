// Package pipeline drives the full per-dataset flow: load table, extract
// labels, seed the taxonomy, assign the remainder against the frozen
// snapshot, and materialize the labeled output table. Failures are isolated
// per file; one failing file never aborts the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taxonorm/internal/cluster"
	"taxonorm/internal/config"
	"taxonorm/internal/llm"
	"taxonorm/internal/materialize"
	"taxonorm/internal/table"
	"taxonorm/internal/taxonomy"
)

// CheckpointStore is the decision cache the pipeline manages per file.
type CheckpointStore interface {
	cluster.DecisionStore
	Clear(scope string) error
}

// Pipeline processes the configured input files in order.
type Pipeline struct {
	cfg         *config.Config
	seeder      *cluster.Seeder
	scheduler   *cluster.Scheduler
	checkpoints CheckpointStore // nil disables checkpointing
	logger      *zap.Logger
}

// New wires a pipeline from its collaborators. checkpoints may be nil.
func New(cfg *config.Config, client llm.Client, checkpoints CheckpointStore, logger *zap.Logger) *Pipeline {
	var decisions cluster.DecisionStore
	if checkpoints != nil {
		decisions = checkpoints
	}
	return &Pipeline{
		cfg:         cfg,
		seeder:      cluster.NewSeeder(client, logger),
		scheduler:   cluster.NewScheduler(client, decisions, cfg.Cluster.MaxConcurrent, cfg.GetBatchTimeout(), logger),
		checkpoints: checkpoints,
		logger:      logger,
	}
}

// Run processes every configured input file, deriving the output path from
// the file's base name. Per-file errors are logged and collected; the
// returned error is nil only when every file succeeded.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("starting run",
		zap.Int("files", len(p.cfg.Dataset.InputFiles)),
		zap.String("model", p.cfg.LLM.Model))

	var failed []error
	for _, input := range p.cfg.Dataset.InputFiles {
		output := filepath.Join(p.cfg.Dataset.OutputDir, filepath.Base(input))
		if err := p.processFile(ctx, logger, input, output); err != nil {
			logger.Error("file failed", zap.String("input", input), zap.Error(err))
			failed = append(failed, fmt.Errorf("%s: %w", input, err))
			continue
		}
	}

	if len(failed) > 0 {
		logger.Warn("run finished with failures",
			zap.Int("failed", len(failed)),
			zap.Int("total", len(p.cfg.Dataset.InputFiles)))
		return errors.Join(failed...)
	}
	logger.Info("run complete")
	return nil
}

// processFile runs the full protocol for one dataset. Output is written only
// after assignment and reconciliation complete, so a failed file leaves no
// partial output behind.
func (p *Pipeline) processFile(ctx context.Context, logger *zap.Logger, input, output string) error {
	start := time.Now()

	tbl, err := table.Load(input)
	if err != nil {
		return err
	}
	labels, err := tbl.Labels(p.cfg.Dataset.CategoryColumn)
	if err != nil {
		return err
	}
	logger.Info("loaded table", zap.String("input", input), zap.Int("rows", len(tbl.Rows)))

	seedWindow := labels
	if len(seedWindow) > p.cfg.Cluster.SeedSize {
		seedWindow = seedWindow[:p.cfg.Cluster.SeedSize]
	}
	remaining := labels[len(seedWindow):]
	logger.Info("label windows",
		zap.Int("seed", len(seedWindow)),
		zap.Int("remaining", len(remaining)))

	groups, err := p.seeder.Seed(ctx, seedWindow)
	if err != nil {
		return err
	}

	snap := taxonomy.NewSnapshot(groups, p.cfg.Cluster.MaxExamples)
	groups, err = p.scheduler.Assign(ctx, input, groups, snap, remaining)
	if err != nil {
		return err
	}

	out, err := materialize.Materialize(tbl, groups, p.cfg.Dataset.CategoryColumn)
	if err != nil {
		return err
	}
	if err := out.Save(output); err != nil {
		return err
	}

	if p.checkpoints != nil {
		if err := p.checkpoints.Clear(input); err != nil {
			logger.Warn("failed to clear checkpoints", zap.String("input", input), zap.Error(err))
		}
	}

	logger.Info("saved output",
		zap.String("output", output),
		zap.Int("rows", len(out.Rows)),
		zap.Int("groups", len(groups)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
