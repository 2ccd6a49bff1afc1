package mcp

import (
	"context"
	"strconv"
	"time"

	"github.com/mwai-labs/synapsed/pkg/memstore"
)

// fakeStore is a minimal in-memory [memstore.Store] for exercising tool
// handlers without a database.
type fakeStore struct {
	memories    map[string]memstore.Memory
	nextID      int
	strengths   map[memstore.Node]map[memstore.Node]float64
	memoryStats memstore.MemoryStats
	connStats   memstore.ConnectionStats
	actStats    memstore.ActivationStats

	statsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		memories:  make(map[string]memstore.Memory),
		strengths: make(map[memstore.Node]map[memstore.Node]float64),
	}
}

func (f *fakeStore) InsertMemory(ctx context.Context, m memstore.Memory) (string, error) {
	f.nextID++
	id := strconv.Itoa(f.nextID)
	m.ID = id
	f.memories[id] = m
	return id, nil
}

func (f *fakeStore) FetchByID(ctx context.Context, id string) (*memstore.Memory, error) {
	m, ok := f.memories[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakeStore) FetchMany(ctx context.Context, ids []string) ([]memstore.Memory, error) {
	var out []memstore.Memory
	for _, id := range ids {
		if m, ok := f.memories[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) SimilarMemories(ctx context.Context, query []float32, threshold float64, limit int, opts ...memstore.SimilarOpt) ([]memstore.Similarity, error) {
	return nil, nil
}

func (f *fakeStore) KeywordSearch(ctx context.Context, keywords []string, limit int) ([]memstore.Memory, error) {
	var out []memstore.Memory
	for _, m := range f.memories {
		for _, kw := range m.Keywords {
			for _, want := range keywords {
				if kw == want {
					out = append(out, m)
				}
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) IncrementRetrieval(ctx context.Context, id string) error { return nil }

func (f *fakeStore) SetActivation(ctx context.Context, id string, kind memstore.NodeKind, value float64) error {
	return nil
}

func (f *fakeStore) ListRecent(ctx context.Context, n int) ([]memstore.Memory, error) { return nil, nil }

func (f *fakeStore) ActiveMemories(ctx context.Context) ([]memstore.Memory, error) { return nil, nil }

func (f *fakeStore) MemoryStats(ctx context.Context) (memstore.MemoryStats, error) {
	return f.memoryStats, f.statsErr
}

func (f *fakeStore) UpsertConcept(ctx context.Context, name string, embedding []float32) (string, error) {
	return "concept-1", nil
}

func (f *fakeStore) SimilarConcepts(ctx context.Context, query []float32, threshold float64, limit int) ([]memstore.Similarity, error) {
	return nil, nil
}

func (f *fakeStore) GetConcept(ctx context.Context, id string) (*memstore.Concept, error) {
	return nil, nil
}

func (f *fakeStore) SetConceptActivation(ctx context.Context, id string, value float64) error {
	return nil
}

func (f *fakeStore) ActiveConcepts(ctx context.Context) ([]memstore.Concept, error) { return nil, nil }

func (f *fakeStore) AddEntity(ctx context.Context, e memstore.Entity) (string, error) {
	return "entity-1", nil
}

func (f *fakeStore) EntitiesForMemory(ctx context.Context, memoryID string) ([]memstore.Entity, error) {
	return nil, nil
}

func (f *fakeStore) AddRelation(ctx context.Context, r memstore.Relation) (string, error) {
	return "relation-1", nil
}

func (f *fakeStore) RelationsForMemory(ctx context.Context, memoryID string) ([]memstore.Relation, error) {
	return nil, nil
}

func (f *fakeStore) Strengthen(ctx context.Context, source, target memstore.Node, alpha float64, typ memstore.ConnectionType) (float64, error) {
	if f.strengths[source] == nil {
		f.strengths[source] = make(map[memstore.Node]float64)
	}
	w := f.strengths[source][target]
	w = w + alpha*(1-w)
	f.strengths[source][target] = w
	return w, nil
}

func (f *fakeStore) Weaken(ctx context.Context, source, target memstore.Node, beta float64, typ memstore.ConnectionType) (float64, error) {
	return 0, nil
}

func (f *fakeStore) GetOutgoing(ctx context.Context, node memstore.Node, floor float64) ([]memstore.Connection, error) {
	return nil, nil
}

func (f *fakeStore) GetEdge(ctx context.Context, source, target memstore.Node, typ memstore.ConnectionType) (*memstore.Connection, error) {
	return nil, nil
}

func (f *fakeStore) ConnectCoActivated(ctx context.Context, ids []memstore.Node, baseAlpha float64) (int, error) {
	return 0, nil
}

func (f *fakeStore) ConnectionStats(ctx context.Context) (memstore.ConnectionStats, error) {
	return f.connStats, f.statsErr
}

func (f *fakeStore) ActivationStats(ctx context.Context) (memstore.ActivationStats, error) {
	return f.actStats, f.statsErr
}

func (f *fakeStore) AppendActivationLog(ctx context.Context, e memstore.ActivationLogEntry) error {
	return nil
}

func (f *fakeStore) ActivationLogSince(ctx context.Context, since time.Time) ([]memstore.ActivationLogEntry, error) {
	return nil, nil
}

func (f *fakeStore) Prune(ctx context.Context, minStrength float64, unusedSince time.Time) (int, error) {
	return 0, nil
}

var _ memstore.Store = (*fakeStore)(nil)

// fakeEmbedder is a deterministic, dependency-free [embed.Provider] stand-in.
type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dims)
	for i := range v {
		v[i] = float32(len(text))
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) ModelID() string { return "fake-embedder" }
