// Package consolidate implements the two offline consolidation passes:
// the nightly "dream" pipeline (semantic linking, episodic binding,
// co-activation reinforcement, pruning) and the scheduled power-law
// decay pass.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwai-labs/synapsed/pkg/memstore"
)

const (
	DefaultSemanticThreshold  = 0.85
	DefaultTemporalWindowHours = 4.0
	DefaultPruneMinStrength   = 0.05
	DefaultPruneDaysUnused    = 30
	defaultMaxPairs           = 200
	episodicAlpha             = 0.1
	coActivationAlpha         = 0.05
	minSemanticAlpha          = 0.01
)

// DreamOptions configures one dream pass.
type DreamOptions struct {
	SemanticThreshold   float64
	TemporalWindowHours float64
	PruneMinStrength    float64
	PruneDaysUnused     int
	MaxPairs            int
}

// DefaultDreamOptions returns the tuned defaults for a dream pass.
func DefaultDreamOptions() DreamOptions {
	return DreamOptions{
		SemanticThreshold:   DefaultSemanticThreshold,
		TemporalWindowHours: DefaultTemporalWindowHours,
		PruneMinStrength:    DefaultPruneMinStrength,
		PruneDaysUnused:     DefaultPruneDaysUnused,
		MaxPairs:            defaultMaxPairs,
	}
}

// Consolidator runs dream and decay passes against a store.
type Consolidator struct {
	store memstore.Store
}

// New constructs a Consolidator.
func New(store memstore.Store) *Consolidator {
	return &Consolidator{store: store}
}

// Dream runs the four ordered phases of consolidation and returns the
// resulting log. Phases run strictly in order; each is logged with its
// own counters.
func (c *Consolidator) Dream(ctx context.Context, opts DreamOptions) (memstore.DreamLog, error) {
	if opts.MaxPairs <= 0 {
		opts.MaxPairs = defaultMaxPairs
	}

	log := memstore.DreamLog{StartedAt: time.Now()}

	candidates, err := c.store.ListRecent(ctx, opts.MaxPairs)
	if err != nil {
		return log, fmt.Errorf("consolidate: dream: list candidates: %w", err)
	}

	// ── 1. Semantic linking ──────────────────────────────────────────
	semantic, err := c.semanticLinking(ctx, candidates, opts)
	if err != nil {
		return log, fmt.Errorf("consolidate: dream: semantic linking: %w", err)
	}
	log.SemanticLinking = semantic
	slog.Info("dream: semantic linking done", "created", semantic.Created, "strengthened", semantic.Strengthened)

	// ── 2. Episodic binding ──────────────────────────────────────────
	episodic, err := c.episodicBinding(ctx, candidates, opts)
	if err != nil {
		return log, fmt.Errorf("consolidate: dream: episodic binding: %w", err)
	}
	log.EpisodicBinding = episodic
	slog.Info("dream: episodic binding done", "strengthened", episodic.Strengthened)

	// ── 3. Co-activation reinforcement ───────────────────────────────
	coActivation, err := c.coActivationReinforcement(ctx, opts)
	if err != nil {
		return log, fmt.Errorf("consolidate: dream: co-activation: %w", err)
	}
	log.CoActivation = coActivation
	slog.Info("dream: co-activation reinforcement done", "strengthened", coActivation.Strengthened)

	// ── 4. Pruning ────────────────────────────────────────────────────
	pruning, err := c.pruning(ctx, opts)
	if err != nil {
		return log, fmt.Errorf("consolidate: dream: pruning: %w", err)
	}
	log.Pruning = pruning
	slog.Info("dream: pruning done", "pruned", pruning.Pruned)

	log.FinishedAt = time.Now()
	return log, nil
}

// semanticLinking implements phase 1: for every pair of memories with
// cosine similarity >= semantic_threshold and no existing edge (or one
// below a small floor), create/strengthen a semantic edge with amount
// proportional to the similarity above threshold.
func (c *Consolidator) semanticLinking(ctx context.Context, candidates []memstore.Memory, opts DreamOptions) (memstore.DreamPhaseCounters, error) {
	var counters memstore.DreamPhaseCounters
	pairsSeen := 0

	for _, m := range candidates {
		if pairsSeen >= opts.MaxPairs {
			break
		}
		sims, err := c.store.SimilarMemories(ctx, m.Embedding, opts.SemanticThreshold, opts.MaxPairs)
		if err != nil {
			return counters, fmt.Errorf("similar memories for %s: %w", m.ID, err)
		}
		for _, sim := range sims {
			if sim.ID == m.ID || pairsSeen >= opts.MaxPairs {
				continue
			}
			pairsSeen++

			source := memstore.Node{ID: m.ID, Kind: memstore.NodeMemory}
			target := memstore.Node{ID: sim.ID, Kind: memstore.NodeMemory}

			existing, err := c.store.GetEdge(ctx, source, target, memstore.ConnectionSemantic)
			if err != nil {
				return counters, fmt.Errorf("get edge %s->%s: %w", m.ID, sim.ID, err)
			}
			if existing != nil && existing.Strength >= minSemanticAlpha {
				continue
			}

			alpha := sim.Similarity - opts.SemanticThreshold
			if alpha < minSemanticAlpha {
				alpha = minSemanticAlpha
			}
			if _, err := c.store.Strengthen(ctx, source, target, alpha, memstore.ConnectionSemantic); err != nil {
				return counters, fmt.Errorf("strengthen %s->%s: %w", m.ID, sim.ID, err)
			}
			if existing == nil {
				counters.Created++
			} else {
				counters.Strengthened++
			}
		}
	}
	return counters, nil
}

// episodicBinding implements phase 2: memories created within the
// temporal window of each other get a strengthened temporal edge.
func (c *Consolidator) episodicBinding(ctx context.Context, candidates []memstore.Memory, opts DreamOptions) (memstore.DreamPhaseCounters, error) {
	var counters memstore.DreamPhaseCounters
	window := time.Duration(opts.TemporalWindowHours * float64(time.Hour))

	sorted := make([]memstore.Memory, len(candidates))
	copy(sorted, candidates)
	sortByCreatedAt(sorted)

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			delta := sorted[j].CreatedAt.Sub(sorted[i].CreatedAt)
			if delta > window {
				break // sorted ascending: nothing further in range
			}
			source := memstore.Node{ID: sorted[i].ID, Kind: memstore.NodeMemory}
			target := memstore.Node{ID: sorted[j].ID, Kind: memstore.NodeMemory}
			if _, err := c.store.Strengthen(ctx, source, target, episodicAlpha, memstore.ConnectionTemporal); err != nil {
				return counters, fmt.Errorf("strengthen %s->%s: %w", sorted[i].ID, sorted[j].ID, err)
			}
			counters.Strengthened++
		}
	}
	return counters, nil
}

// coActivationReinforcement implements phase 3: every pair of memories
// that co-appeared in a retrieval event logged in the last 24 hours gets a
// small semantic strengthen, refreshing last_used_at.
func (c *Consolidator) coActivationReinforcement(ctx context.Context, opts DreamOptions) (memstore.DreamPhaseCounters, error) {
	var counters memstore.DreamPhaseCounters

	since := time.Now().Add(-24 * time.Hour)
	entries, err := c.store.ActivationLogSince(ctx, since)
	if err != nil {
		return counters, fmt.Errorf("activation log since: %w", err)
	}

	for _, e := range entries {
		nodes := make([]memstore.Node, len(e.ActivatedMemoryIDs))
		for i, id := range e.ActivatedMemoryIDs {
			nodes[i] = memstore.Node{ID: id, Kind: memstore.NodeMemory}
		}
		n, err := c.store.ConnectCoActivated(ctx, nodes, coActivationAlpha)
		if err != nil {
			return counters, fmt.Errorf("connect co-activated: %w", err)
		}
		counters.Strengthened += n
	}
	return counters, nil
}

// pruning implements phase 4: remove weak, long-unused edges. Strong
// edges are never pruned, enforced by the store.
func (c *Consolidator) pruning(ctx context.Context, opts DreamOptions) (memstore.DreamPhaseCounters, error) {
	var counters memstore.DreamPhaseCounters
	unusedSince := time.Now().Add(-time.Duration(opts.PruneDaysUnused) * 24 * time.Hour)

	n, err := c.store.Prune(ctx, opts.PruneMinStrength, unusedSince)
	if err != nil {
		return counters, fmt.Errorf("prune: %w", err)
	}
	counters.Pruned = n
	return counters, nil
}

func sortByCreatedAt(memories []memstore.Memory) {
	for i := 1; i < len(memories); i++ {
		for j := i; j > 0 && memories[j].CreatedAt.Before(memories[j-1].CreatedAt); j-- {
			memories[j], memories[j-1] = memories[j-1], memories[j]
		}
	}
}
