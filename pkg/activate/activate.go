// Package activate implements the spreading activator: concept-first
// seeded retrieval over the connection graph, bounded max-plus Bellman
// relaxation with per-hop geometric decay, and a Hebbian write-back on
// every retrieval.
package activate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwai-labs/synapsed/pkg/embed"
	"github.com/mwai-labs/synapsed/pkg/memstore"
)

const (
	DefaultThreshold    = 0.3
	DefaultMaxDepth     = 3
	DefaultDecayPerHop  = 0.5
	DefaultLimit        = 10
	seedWidth           = 5
	conceptWriteBack    = 0.05
	coActivationStrength = 0.03

	// relaxEdgeFloor matches the get_outgoing contract's edge floor, so
	// relax only ever sees edges that would also pass a direct query.
	relaxEdgeFloor = 0.05
)

// Options configures one Recall call. The zero value is invalid; use
// [DefaultOptions] and override individual fields.
type Options struct {
	Threshold  float64
	MaxDepth   int
	DecayPerHop float64
	Limit      int
	MemoryType memstore.MemoryType
	HasMemoryType bool
	Agent      string
	// UseSpreading, when false, collapses Recall to a single
	// similarity-plus-ranking pass with no graph traversal.
	UseSpreading bool
}

// DefaultOptions returns the tuned defaults with spreading enabled.
func DefaultOptions() Options {
	return Options{
		Threshold:    DefaultThreshold,
		MaxDepth:     DefaultMaxDepth,
		DecayPerHop:  DefaultDecayPerHop,
		Limit:        DefaultLimit,
		UseSpreading: true,
	}
}

// Result is one memory surfaced by Recall, annotated with its final
// activation.
type Result struct {
	Memory     memstore.Memory
	Activation float64
}

// Activator runs spreading-activation recall against a store and an
// embedding gateway.
type Activator struct {
	store    memstore.Store
	embedder embed.Provider
}

// New constructs an Activator.
func New(store memstore.Store, embedder embed.Provider) *Activator {
	return &Activator{store: store, embedder: embedder}
}

// actState holds the per-call transient activation arena: act maps each
// touched node to its current activation. kind is allocated with the arena
// but is not read or written by Recall.
type actState struct {
	act  map[memstore.Node]float64
	kind map[memstore.Node]bool
}

// Recall runs the six-step spreading-activation retrieval: seed, relax,
// persist, rank, fetch, and write back.
func (a *Activator) Recall(ctx context.Context, queryText string, opts Options) ([]Result, error) {
	queryEmbedding, err := a.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("activate: embed query: %w", err)
	}

	if !opts.UseSpreading {
		return a.directSimilarity(ctx, queryEmbedding, opts)
	}

	seedMemories, seedConcepts, err := a.seed(ctx, queryEmbedding, opts.Threshold)
	if err != nil {
		return nil, err
	}

	state := &actState{act: make(map[memstore.Node]float64), kind: make(map[memstore.Node]bool)}
	for _, m := range seedMemories {
		node := memstore.Node{ID: m.ID, Kind: memstore.NodeMemory}
		state.act[node] = m.Similarity
	}
	for _, c := range seedConcepts {
		node := memstore.Node{ID: c.ID, Kind: memstore.NodeConcept}
		state.act[node] = c.Similarity
	}
	if err := a.persist(ctx, state); err != nil {
		return nil, err
	}

	for depth := 0; depth < opts.MaxDepth; depth++ {
		frontier, err := a.relax(ctx, state, opts.Threshold, opts.DecayPerHop)
		if err != nil {
			return nil, err
		}
		if len(frontier) == 0 {
			break
		}
		changed := mergeMax(state.act, frontier)
		if err := a.persist(ctx, onlyChanged(changed)); err != nil {
			return nil, err
		}
	}

	selected, err := a.rankAndFetch(ctx, state, opts)
	if err != nil {
		return nil, err
	}

	if err := a.writeBack(ctx, queryText, queryEmbedding, seedConcepts, selected, opts.Agent); err != nil {
		return nil, err
	}

	return selected, nil
}

// directSimilarity implements the use_spreading_activation=false path: a
// single similarity-plus-scoring pass, no graph traversal.
func (a *Activator) directSimilarity(ctx context.Context, queryEmbedding []float32, opts Options) ([]Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	var similarOpts []memstore.SimilarOpt
	if opts.HasMemoryType {
		similarOpts = append(similarOpts, memstore.WithMemoryType(opts.MemoryType))
	}
	sims, err := a.store.SimilarMemories(ctx, queryEmbedding, opts.Threshold, limit, similarOpts...)
	if err != nil {
		return nil, fmt.Errorf("activate: direct similarity: %w", err)
	}
	ids := make([]string, len(sims))
	simByID := make(map[string]float64, len(sims))
	for i, s := range sims {
		ids[i] = s.ID
		simByID[s.ID] = s.Similarity
	}
	memories, err := a.store.FetchMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("activate: direct similarity: fetch: %w", err)
	}
	out := make([]Result, 0, len(memories))
	for _, m := range memories {
		out = append(out, Result{Memory: m, Activation: simByID[m.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Activation > out[j].Activation })
	return out, nil
}

// seed implements step 2: the top-5 concepts and top-5 memories above
// threshold, fetched concurrently.
func (a *Activator) seed(ctx context.Context, queryEmbedding []float32, threshold float64) ([]memstore.Similarity, []memstore.Similarity, error) {
	var memories, concepts []memstore.Similarity

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		memories, err = a.store.SimilarMemories(egCtx, queryEmbedding, threshold, seedWidth)
		if err != nil {
			return fmt.Errorf("seed memories: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		concepts, err = a.store.SimilarConcepts(egCtx, queryEmbedding, threshold, seedWidth)
		if err != nil {
			return fmt.Errorf("seed concepts: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, fmt.Errorf("activate: %w", err)
	}
	return memories, concepts, nil
}

// relax implements step 3: one max-plus Bellman relaxation wave over the
// current frontier (every node with act >= threshold).
func (a *Activator) relax(ctx context.Context, state *actState, threshold, decayPerHop float64) (map[memstore.Node]float64, error) {
	frontier := make(map[memstore.Node]float64)
	for node, act := range state.act {
		if act < threshold {
			continue
		}
		edges, err := a.store.GetOutgoing(ctx, node, relaxEdgeFloor)
		if err != nil {
			return nil, fmt.Errorf("activate: relax: outgoing edges for %s: %w", node.ID, err)
		}
		for _, e := range edges {
			proposed := act * e.Strength * decayPerHop
			if proposed <= threshold {
				continue
			}
			if cur, ok := frontier[e.Target]; !ok || proposed > cur {
				frontier[e.Target] = proposed
			}
		}
	}
	return frontier, nil
}

// mergeMax folds frontier into act by element-wise max (step 4) and
// returns the subset of nodes whose activation actually changed.
func mergeMax(act map[memstore.Node]float64, frontier map[memstore.Node]float64) map[memstore.Node]float64 {
	changed := make(map[memstore.Node]float64)
	for node, proposed := range frontier {
		cur, ok := act[node]
		if !ok || proposed > cur {
			act[node] = proposed
			changed[node] = proposed
		}
	}
	return changed
}

func onlyChanged(changed map[memstore.Node]float64) *actState {
	return &actState{act: changed}
}

// persist writes every activation in state to the store (idempotent
// clamp, per step 2/4).
func (a *Activator) persist(ctx context.Context, state *actState) error {
	for node, act := range state.act {
		if err := a.store.SetActivation(ctx, node.ID, node.Kind, act); err != nil {
			return fmt.Errorf("activate: persist activation for %s: %w", node.ID, err)
		}
	}
	return nil
}

// rankAndFetch implements step 5: filter to memories above threshold,
// sort, slice to k, fetch bodies.
func (a *Activator) rankAndFetch(ctx context.Context, state *actState, opts Options) ([]Result, error) {
	type candidate struct {
		id  string
		act float64
	}
	var candidates []candidate
	for node, act := range state.act {
		if node.Kind != memstore.NodeMemory || act < opts.Threshold {
			continue
		}
		candidates = append(candidates, candidate{id: node.ID, act: act})
	}

	ids := make([]string, len(candidates))
	actByID := make(map[string]float64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
		actByID[c.id] = c.act
	}

	memories, err := a.store.FetchMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("activate: fetch selected memories: %w", err)
	}
	if opts.HasMemoryType {
		filtered := memories[:0]
		for _, m := range memories {
			if m.Type == opts.MemoryType {
				filtered = append(filtered, m)
			}
		}
		memories = filtered
	}

	sort.SliceStable(memories, func(i, j int) bool {
		ai, aj := actByID[memories[i].ID], actByID[memories[j].ID]
		if ai != aj {
			return ai > aj
		}
		if memories[i].SalienceScore != memories[j].SalienceScore {
			return memories[i].SalienceScore > memories[j].SalienceScore
		}
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(memories) > limit {
		memories = memories[:limit]
	}

	out := make([]Result, len(memories))
	for i, m := range memories {
		out[i] = Result{Memory: m, Activation: actByID[m.ID]}
	}
	return out, nil
}

// writeBack implements step 6: Hebbian strengthening of concept-to-
// selected-memory edges and pairwise selected-memory edges, followed by
// an append-only activation log entry.
func (a *Activator) writeBack(ctx context.Context, queryText string, queryEmbedding []float32, seedConcepts []memstore.Similarity, selected []Result, agent string) error {
	memoryNodes := make([]memstore.Node, len(selected))
	memoryIDs := make([]string, len(selected))
	for i, r := range selected {
		memoryNodes[i] = memstore.Node{ID: r.Memory.ID, Kind: memstore.NodeMemory}
		memoryIDs[i] = r.Memory.ID
	}

	for _, c := range seedConcepts {
		conceptNode := memstore.Node{ID: c.ID, Kind: memstore.NodeConcept}
		for _, m := range memoryNodes {
			if _, err := a.store.Strengthen(ctx, conceptNode, m, conceptWriteBack, memstore.ConnectionSemantic); err != nil {
				return fmt.Errorf("activate: write-back concept edge: %w", err)
			}
		}
	}

	if _, err := a.store.ConnectCoActivated(ctx, memoryNodes, coActivationStrength); err != nil {
		return fmt.Errorf("activate: write-back co-activation: %w", err)
	}

	conceptIDs := make([]string, len(seedConcepts))
	for i, c := range seedConcepts {
		conceptIDs[i] = c.ID
	}

	entry := memstore.ActivationLogEntry{
		QueryText:           queryText,
		QueryEmbedding:      queryEmbedding,
		ActivatedMemoryIDs:  memoryIDs,
		ActivatedConceptIDs: conceptIDs,
		Agent:               agent,
		CreatedAt:           time.Time{},
	}
	if err := a.store.AppendActivationLog(ctx, entry); err != nil {
		return fmt.Errorf("activate: append activation log: %w", err)
	}
	return nil
}
