package app_test

import (
	"context"
	"time"

	"github.com/mwai-labs/synapsed/pkg/memstore"
)

// fakeStore is a minimal in-memory [memstore.Store] for exercising app
// wiring without a database.
type fakeStore struct{}

func (f *fakeStore) InsertMemory(ctx context.Context, m memstore.Memory) (string, error) {
	return "1", nil
}
func (f *fakeStore) FetchByID(ctx context.Context, id string) (*memstore.Memory, error) {
	return nil, nil
}
func (f *fakeStore) FetchMany(ctx context.Context, ids []string) ([]memstore.Memory, error) {
	return nil, nil
}
func (f *fakeStore) SimilarMemories(ctx context.Context, query []float32, threshold float64, limit int, opts ...memstore.SimilarOpt) ([]memstore.Similarity, error) {
	return nil, nil
}
func (f *fakeStore) KeywordSearch(ctx context.Context, keywords []string, limit int) ([]memstore.Memory, error) {
	return nil, nil
}
func (f *fakeStore) IncrementRetrieval(ctx context.Context, id string) error { return nil }
func (f *fakeStore) SetActivation(ctx context.Context, id string, kind memstore.NodeKind, value float64) error {
	return nil
}
func (f *fakeStore) ListRecent(ctx context.Context, n int) ([]memstore.Memory, error) { return nil, nil }
func (f *fakeStore) ActiveMemories(ctx context.Context) ([]memstore.Memory, error)    { return nil, nil }
func (f *fakeStore) MemoryStats(ctx context.Context) (memstore.MemoryStats, error) {
	return memstore.MemoryStats{}, nil
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
	return alpha, nil
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
	return memstore.ConnectionStats{}, nil
}
func (f *fakeStore) ActivationStats(ctx context.Context) (memstore.ActivationStats, error) {
	return memstore.ActivationStats{}, nil
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

// fakeEmbedder is a deterministic, dependency-free embedding provider.
type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dims), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) ModelID() string { return "fake-embedder" }
