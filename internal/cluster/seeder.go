// Package cluster implements the two-phase label clustering protocol: a
// one-shot seed call that builds the initial taxonomy, and a
// bounded-concurrency assignment phase that places every remaining label
// against a frozen snapshot of that taxonomy.
package cluster

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"taxonorm/internal/llm"
	"taxonorm/internal/taxonomy"
)

// Seeder runs the one-shot initial clustering over the seed window.
type Seeder struct {
	client llm.Client
	logger *zap.Logger
}

// NewSeeder creates a seeder.
func NewSeeder(client llm.Client, logger *zap.Logger) *Seeder {
	return &Seeder{client: client, logger: logger}
}

// Seed sends the seed labels in a single request and parses the response
// into groups. If the response yields zero parseable groups, every seed
// label becomes its own singleton group named after itself, so the pipeline
// always has a non-empty taxonomy to assign against.
func (s *Seeder) Seed(ctx context.Context, labels []string) ([]taxonomy.Group, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	s.logger.Info("seeding groups", zap.Int("labels", len(labels)))

	response, err := s.client.CompleteWithSystem(ctx, seedSystemPrompt, seedUserPrompt(labels), seedMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("seed request failed: %w", err)
	}

	payload := taxonomy.ExtractPayload(response, taxonomy.GroupsBegin, taxonomy.GroupsEnd)
	groups := taxonomy.Parse(payload)
	if len(groups) == 0 {
		s.logger.Warn("no seed groups parsed, falling back to one label per group",
			zap.Int("seed_labels", len(labels)))
		groups = make([]taxonomy.Group, len(labels))
		for i, lab := range labels {
			groups[i] = taxonomy.Group{ID: i + 1, Name: lab, Labels: []string{lab}}
		}
		return groups, nil
	}

	s.logger.Info("parsed seed groups", zap.Int("groups", len(groups)))
	return groups, nil
}
