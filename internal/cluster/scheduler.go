package cluster

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taxonorm/internal/llm"
	"taxonorm/internal/taxonomy"
)

// DecisionStore caches raw decision lines per (scope, label index) so that a
// re-run of a previously failed file replays recorded decisions instead of
// re-asking the model. Implementations must be safe for concurrent use.
type DecisionStore interface {
	// Begin pins the scope's cache to a snapshot fingerprint. Decisions
	// recorded under a different fingerprint must be dropped: a re-seeded
	// file gets a fresh taxonomy, and group numbers decided against the old
	// one do not transfer.
	Begin(scope, fingerprint string) error

	// Get returns the label and decision cached at (scope, index), if any.
	Get(scope string, index int) (label, decision string, ok bool, err error)

	Put(scope string, index int, label, decision string) error
}

// Scheduler places the remaining labels into the seeded taxonomy. All labels
// are dispatched together; in-flight requests are capped by the concurrency
// limit. Taxonomy mutation happens only after every call has resolved,
// sequentially and in input order, so the final group contents are
// deterministic given deterministic model outputs.
type Scheduler struct {
	client        llm.Client
	store         DecisionStore // nil disables checkpointing
	maxConcurrent int
	batchTimeout  time.Duration
	logger        *zap.Logger
}

// NewScheduler creates a scheduler. store may be nil.
func NewScheduler(client llm.Client, store DecisionStore, maxConcurrent int, batchTimeout time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		client:        client,
		store:         store,
		maxConcurrent: maxConcurrent,
		batchTimeout:  batchTimeout,
		logger:        logger,
	}
}

var firstInt = regexp.MustCompile(`\d+`)

// Assign fans out one request per label, waits for all of them, then merges
// the decisions into groups. The snapshot is the frozen summary every prompt
// sees; groups created during the merge are never visible to prompts. The
// first failed request cancels the rest of the batch and aborts the file
// without touching the taxonomy.
func (s *Scheduler) Assign(ctx context.Context, scope string, groups []taxonomy.Group, snap taxonomy.Snapshot, labels []string) ([]taxonomy.Group, error) {
	if len(labels) == 0 {
		return groups, nil
	}

	if s.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.batchTimeout)
		defer cancel()
	}

	s.logger.Info("assigning labels",
		zap.String("scope", scope),
		zap.Int("labels", len(labels)),
		zap.Int("max_concurrent", s.maxConcurrent))

	store := s.store
	if store != nil {
		if err := store.Begin(scope, snap.Fingerprint()); err != nil {
			s.logger.Warn("checkpoint validation failed, caching disabled for this file",
				zap.String("scope", scope), zap.Error(err))
			store = nil
		}
	}

	decisions := make([]string, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i, label := range labels {
		if cached, ok := s.lookup(store, scope, i, label); ok {
			decisions[i] = cached
			continue
		}
		g.Go(func() error {
			decision, err := s.assignOne(gctx, label, snap.Summary)
			if err != nil {
				return fmt.Errorf("assigning %q: %w", label, err)
			}
			decisions[i] = decision
			s.record(store, scope, i, label, decision)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Fan-in merge: strictly sequential, input order. The valid range for
	// existing-group decisions is fixed at the pre-batch group count.
	existing := snap.GroupCount
	for i, label := range labels {
		groups = merge(groups, existing, label, decisions[i])
	}

	s.logger.Info("assignment complete",
		zap.String("scope", scope),
		zap.Int("groups", len(groups)))
	return groups, nil
}

// assignOne issues a single placement request and reduces the response to
// its decision line.
func (s *Scheduler) assignOne(ctx context.Context, label, summary string) (string, error) {
	response, err := s.client.CompleteWithSystem(ctx, assignSystemPrompt, assignUserPrompt(label, summary), assignMaxTokens)
	if err != nil {
		return "", err
	}
	payload := taxonomy.ExtractPayload(response, taxonomy.AssignBegin, taxonomy.AssignEnd)
	decision := ""
	if lines := strings.Split(payload, "\n"); len(lines) > 0 {
		decision = strings.TrimSpace(lines[0])
	}
	s.logger.Debug("label decision", zap.String("label", label), zap.String("decision", decision))
	return decision, nil
}

// merge applies one decision. Unparseable or out-of-range decisions never
// drop the label; they degrade to a new singleton group named after it.
func merge(groups []taxonomy.Group, existing int, label, decision string) []taxonomy.Group {
	lower := strings.ToLower(decision)

	if strings.HasPrefix(lower, "group") {
		if m := firstInt.FindString(decision); m != "" {
			if n, err := strconv.Atoi(m); err == nil && n >= 1 && n <= existing {
				groups[n-1].Labels = append(groups[n-1].Labels, label)
				return groups
			}
		}
	}

	name := label
	if strings.HasPrefix(lower, "new:") {
		if proposed := strings.TrimSpace(decision[len("new:"):]); proposed != "" {
			name = proposed
		}
	}
	return append(groups, taxonomy.Group{
		ID:     len(groups) + 1,
		Name:   name,
		Labels: []string{label},
	})
}

// lookup replays a cached decision only when the stored label still matches
// the label now occupying the slot. Edited inputs shift labels across
// indices; a mismatched slot is a miss and gets re-asked and overwritten.
func (s *Scheduler) lookup(store DecisionStore, scope string, index int, label string) (string, bool) {
	if store == nil {
		return "", false
	}
	cachedLabel, decision, ok, err := store.Get(scope, index)
	if err != nil {
		s.logger.Warn("checkpoint lookup failed", zap.Int("index", index), zap.Error(err))
		return "", false
	}
	if !ok || cachedLabel != label {
		return "", false
	}
	return decision, true
}

func (s *Scheduler) record(store DecisionStore, scope string, index int, label, decision string) {
	if store == nil {
		return
	}
	if err := store.Put(scope, index, label, decision); err != nil {
		s.logger.Warn("checkpoint write failed", zap.Int("index", index), zap.Error(err))
	}
}
