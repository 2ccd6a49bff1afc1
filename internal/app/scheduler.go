package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mwai-labs/synapsed/internal/observe"
	"github.com/mwai-labs/synapsed/pkg/consolidate"
)

// defaultDreamInterval is the default period between offline consolidation
// ("dream") passes.
const defaultDreamInterval = 24 * time.Hour

// defaultDecayInterval is the default period between power-law decay passes.
const defaultDecayInterval = 1 * time.Hour

// Scheduler periodically runs the consolidator's dream and decay passes in
// the background, independent of any direct MCP tool invocation.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	consolidator *consolidate.Consolidator
	metrics      *observe.Metrics

	dreamInterval time.Duration
	decayInterval time.Duration
	dreamOpts     consolidate.DreamOptions
	decayOpts     consolidate.DecayOptions

	done     chan struct{}
	stopOnce sync.Once
}

// SchedulerConfig configures a [Scheduler].
type SchedulerConfig struct {
	// DreamInterval is how often to run a dream pass. Defaults to 24 hours
	// if zero.
	DreamInterval time.Duration

	// DecayInterval is how often to run a decay pass. Defaults to 1 hour if
	// zero.
	DecayInterval time.Duration

	DreamOptions consolidate.DreamOptions
	DecayOptions consolidate.DecayOptions
}

// NewScheduler creates a new [Scheduler] with the given configuration.
func NewScheduler(consolidator *consolidate.Consolidator, metrics *observe.Metrics, cfg SchedulerConfig) *Scheduler {
	dreamInterval := cfg.DreamInterval
	if dreamInterval <= 0 {
		dreamInterval = defaultDreamInterval
	}
	decayInterval := cfg.DecayInterval
	if decayInterval <= 0 {
		decayInterval = defaultDecayInterval
	}
	return &Scheduler{
		consolidator:  consolidator,
		metrics:       metrics,
		dreamInterval: dreamInterval,
		decayInterval: decayInterval,
		dreamOpts:     cfg.DreamOptions,
		decayOpts:     cfg.DecayOptions,
		done:          make(chan struct{}),
	}
}

// Start begins the periodic dream and decay loops in background goroutines.
// Both run until [Scheduler.Stop] is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx, s.dreamInterval, s.runDream)
	go s.loop(ctx, s.decayInterval, s.runDecay)
}

// Stop halts both loops. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// loop runs tick at the given interval until ctx is cancelled or Stop is
// called.
func (s *Scheduler) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (s *Scheduler) runDream(ctx context.Context) {
	log, err := s.consolidator.Dream(ctx, s.dreamOpts)
	if err != nil {
		slog.Warn("scheduled dream pass failed", "err", err)
		return
	}
	slog.Info("scheduled dream pass complete",
		"semantic_linked", log.SemanticLinking.Created,
		"episodic_bound", log.EpisodicBinding.Strengthened,
		"co_activation_strengthened", log.CoActivation.Strengthened,
		"pruned", log.Pruning.Pruned,
	)
}

func (s *Scheduler) runDecay(ctx context.Context) {
	res, err := s.consolidator.Decay(ctx, s.decayOpts)
	if err != nil {
		slog.Warn("scheduled decay pass failed", "err", err)
		return
	}
	slog.Info("scheduled decay pass complete",
		"memories_decayed", res.MemoriesDecayed,
		"concepts_decayed", res.ConceptsDecayed,
		"memories_zeroed", res.MemoriesZeroed,
		"concepts_zeroed", res.ConceptsZeroed,
	)
}
