package consolidate

import (
	"context"
	"time"

	"github.com/mwai-labs/synapsed/pkg/memstore"
)

// fakeStore is a small in-memory [memstore.Store] for exercising dream and
// decay passes without a database.
type fakeStore struct {
	memories map[string]memstore.Memory
	recent   []memstore.Memory
	concepts []memstore.Concept
	edges    map[string]memstore.Connection // key: source.ID+"->"+target.ID+":"+type
	log      []memstore.ActivationLogEntry

	activationStats memstore.ActivationStats

	strengthenCalls   int
	coActivationCalls int
	prunedCalls       int
	pruneReturn       int

	setActivationValues map[string]float64
	setConceptActValues map[string]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		memories:            make(map[string]memstore.Memory),
		edges:               make(map[string]memstore.Connection),
		setActivationValues: make(map[string]float64),
		setConceptActValues: make(map[string]float64),
	}
}

func (f *fakeStore) InsertMemory(ctx context.Context, m memstore.Memory) (string, error) { return "", nil }
func (f *fakeStore) FetchByID(ctx context.Context, id string) (*memstore.Memory, error)  { return nil, nil }
func (f *fakeStore) FetchMany(ctx context.Context, ids []string) ([]memstore.Memory, error) {
	return nil, nil
}

func (f *fakeStore) SimilarMemories(ctx context.Context, query []float32, threshold float64, limit int, opts ...memstore.SimilarOpt) ([]memstore.Similarity, error) {
	var out []memstore.Similarity
	for _, m := range f.memories {
		sim := cosine(query, m.Embedding)
		if sim >= threshold {
			out = append(out, memstore.Similarity{ID: m.ID, Similarity: sim})
		}
	}
	return out, nil
}

func (f *fakeStore) KeywordSearch(ctx context.Context, keywords []string, limit int) ([]memstore.Memory, error) {
	return nil, nil
}
func (f *fakeStore) IncrementRetrieval(ctx context.Context, id string) error { return nil }

func (f *fakeStore) SetActivation(ctx context.Context, id string, kind memstore.NodeKind, value float64) error {
	f.setActivationValues[id] = value
	return nil
}

func (f *fakeStore) ListRecent(ctx context.Context, n int) ([]memstore.Memory, error) {
	return f.recent, nil
}

func (f *fakeStore) ActiveMemories(ctx context.Context) ([]memstore.Memory, error) {
	return f.recent, nil
}

func (f *fakeStore) MemoryStats(ctx context.Context) (memstore.MemoryStats, error) {
	return memstore.MemoryStats{}, nil
}
func (f *fakeStore) UpsertConcept(ctx context.Context, name string, embedding []float32) (string, error) {
	return "", nil
}
func (f *fakeStore) SimilarConcepts(ctx context.Context, query []float32, threshold float64, limit int) ([]memstore.Similarity, error) {
	return nil, nil
}
func (f *fakeStore) GetConcept(ctx context.Context, id string) (*memstore.Concept, error) {
	return nil, nil
}

func (f *fakeStore) SetConceptActivation(ctx context.Context, id string, value float64) error {
	f.setConceptActValues[id] = value
	return nil
}

func (f *fakeStore) ActiveConcepts(ctx context.Context) ([]memstore.Concept, error) {
	return f.concepts, nil
}
func (f *fakeStore) AddEntity(ctx context.Context, e memstore.Entity) (string, error) { return "", nil }
func (f *fakeStore) EntitiesForMemory(ctx context.Context, memoryID string) ([]memstore.Entity, error) {
	return nil, nil
}
func (f *fakeStore) AddRelation(ctx context.Context, r memstore.Relation) (string, error) {
	return "", nil
}
func (f *fakeStore) RelationsForMemory(ctx context.Context, memoryID string) ([]memstore.Relation, error) {
	return nil, nil
}

func (f *fakeStore) Strengthen(ctx context.Context, source, target memstore.Node, alpha float64, typ memstore.ConnectionType) (float64, error) {
	f.strengthenCalls++
	key := source.ID + "->" + target.ID + ":" + string(typ)
	c, ok := f.edges[key]
	w := 0.0
	if ok {
		w = c.Strength
	}
	w = w + alpha*(1-w)
	f.edges[key] = memstore.Connection{Source: source, Target: target, Type: typ, Strength: w}
	return w, nil
}

func (f *fakeStore) Weaken(ctx context.Context, source, target memstore.Node, beta float64, typ memstore.ConnectionType) (float64, error) {
	return 0, nil
}
func (f *fakeStore) GetOutgoing(ctx context.Context, node memstore.Node, floor float64) ([]memstore.Connection, error) {
	return nil, nil
}

func (f *fakeStore) GetEdge(ctx context.Context, source, target memstore.Node, typ memstore.ConnectionType) (*memstore.Connection, error) {
	key := source.ID + "->" + target.ID + ":" + string(typ)
	c, ok := f.edges[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeStore) ConnectCoActivated(ctx context.Context, ids []memstore.Node, baseAlpha float64) (int, error) {
	f.coActivationCalls++
	return len(ids), nil
}

func (f *fakeStore) ConnectionStats(ctx context.Context) (memstore.ConnectionStats, error) {
	return memstore.ConnectionStats{}, nil
}

func (f *fakeStore) ActivationStats(ctx context.Context) (memstore.ActivationStats, error) {
	return f.activationStats, nil
}

func (f *fakeStore) AppendActivationLog(ctx context.Context, e memstore.ActivationLogEntry) error {
	f.log = append(f.log, e)
	return nil
}

func (f *fakeStore) ActivationLogSince(ctx context.Context, since time.Time) ([]memstore.ActivationLogEntry, error) {
	var out []memstore.ActivationLogEntry
	for _, e := range f.log {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) Prune(ctx context.Context, minStrength float64, unusedSince time.Time) (int, error) {
	f.prunedCalls++
	return f.pruneReturn, nil
}

var _ memstore.Store = (*fakeStore)(nil)

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (sqrt(na) * sqrt(nb))
}

func sqrt(x float64) float64 {
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 40; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}
