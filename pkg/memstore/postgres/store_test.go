package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/mwai-labs/synapsed/pkg/memstore"
	"github.com/mwai-labs/synapsed/pkg/memstore/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if SYNAPSED_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SYNAPSED_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SYNAPSED_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema. It
// calls t.Cleanup to close the store when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool := mustPool(t, ctx, dsn)
	t.Cleanup(cleanPool.Close)
	dropSchema(t, ctx, cleanPool)

	store, err := postgres.NewStore(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// mustPool opens a pgxpool with pgvector types registered (needed so the
// HNSW index doesn't refuse our connection during dropSchema).
func mustPool(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_ = pgxvec.RegisterTypes(ctx, conn) // best-effort: pgvector may not exist on a fresh DB yet
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return pool
}

// dropSchema removes every table Migrate creates, in reverse dependency
// order.
func dropSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS dream_log CASCADE",
		"DROP TABLE IF EXISTS activation_log CASCADE",
		"DROP TABLE IF EXISTS connections CASCADE",
		"DROP TABLE IF EXISTS relations CASCADE",
		"DROP TABLE IF EXISTS entities CASCADE",
		"DROP TABLE IF EXISTS concepts CASCADE",
		"DROP TABLE IF EXISTS memories CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("dropSchema %q: %v", stmt, err)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Memories
// ─────────────────────────────────────────────────────────────────────────────

func TestMemories_InsertFetchAndSimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id1, err := store.InsertMemory(ctx, memstore.Memory{
		Content:          "the build broke because of a missing driver",
		TriggerSituation: "CI failure",
		Type:             memstore.MemoryEpisodic,
		SourceAgent:      "agent-1",
		Embedding:        []float32{1, 0, 0, 0},
		Keywords:         []string{"build", "driver"},
		SalienceScore:    0.6,
	})
	if err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	id2, err := store.InsertMemory(ctx, memstore.Memory{
		Content:       "the dragon guards the cave",
		Type:          memstore.MemorySemantic,
		SourceAgent:   "agent-1",
		Embedding:     []float32{0, 1, 0, 0},
		SalienceScore: 0.3,
	})
	if err != nil {
		t.Fatalf("InsertMemory 2: %v", err)
	}

	got, err := store.FetchByID(ctx, id1)
	if err != nil {
		t.Fatalf("FetchByID: %v", err)
	}
	if got.Content != "the build broke because of a missing driver" {
		t.Errorf("Content: got %q", got.Content)
	}
	if len(got.Embedding) != 4 || got.Embedding[0] != 1 {
		t.Errorf("Embedding round-trip failed: got %v", got.Embedding)
	}

	sims, err := store.SimilarMemories(ctx, []float32{1, 0, 0, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("SimilarMemories: %v", err)
	}
	if len(sims) != 1 || sims[0].ID != id1 {
		t.Errorf("expected only %s above threshold, got %+v", id1, sims)
	}

	many, err := store.FetchMany(ctx, []string{id1, id2, "does-not-exist"})
	if err != nil {
		t.Fatalf("FetchMany: %v", err)
	}
	if len(many) != 2 {
		t.Errorf("FetchMany: want 2, got %d", len(many))
	}

	kw, err := store.KeywordSearch(ctx, []string{"driver"}, 10)
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	if len(kw) != 1 || kw[0].ID != id1 {
		t.Errorf("KeywordSearch: expected only %s, got %+v", id1, kw)
	}

	if err := store.IncrementRetrieval(ctx, id1); err != nil {
		t.Fatalf("IncrementRetrieval: %v", err)
	}
	refetched, _ := store.FetchByID(ctx, id1)
	if refetched.RetrievalCount != 1 {
		t.Errorf("RetrievalCount: want 1, got %d", refetched.RetrievalCount)
	}
	if refetched.LastRetrievedAt == nil {
		t.Error("LastRetrievedAt: want non-nil after retrieval")
	}

	if err := store.SetActivation(ctx, id1, memstore.NodeMemory, 1.5); err != nil {
		t.Fatalf("SetActivation: %v", err)
	}
	activated, _ := store.FetchByID(ctx, id1)
	if activated.CurrentActivation != 1 {
		t.Errorf("SetActivation: want clamped to 1, got %v", activated.CurrentActivation)
	}

	recent, err := store.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != id2 {
		t.Errorf("ListRecent(1): want most recent (%s), got %+v", id2, recent)
	}

	stats, err := store.MemoryStats(ctx)
	if err != nil {
		t.Fatalf("MemoryStats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("MemoryStats.Total: want 2, got %d", stats.Total)
	}
	if stats.ByType[memstore.MemoryEpisodic] != 1 || stats.ByType[memstore.MemorySemantic] != 1 {
		t.Errorf("MemoryStats.ByType: got %+v", stats.ByType)
	}
}

func TestMemories_FetchByIDMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.FetchByID(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatal("expected an error for a missing memory id")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Concepts
// ─────────────────────────────────────────────────────────────────────────────

func TestConcepts_UpsertRefreshesEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.UpsertConcept(ctx, "dependency injection", []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("UpsertConcept: %v", err)
	}

	again, err := store.UpsertConcept(ctx, "dependency injection", []float32{0, 1, 0, 0})
	if err != nil {
		t.Fatalf("UpsertConcept refresh: %v", err)
	}
	if again != id {
		t.Errorf("UpsertConcept: expected the same id back on name conflict, got %s vs %s", again, id)
	}

	got, err := store.GetConcept(ctx, id)
	if err != nil {
		t.Fatalf("GetConcept: %v", err)
	}
	if got.Embedding[1] != 1 {
		t.Errorf("expected the refreshed embedding, got %v", got.Embedding)
	}

	if err := store.SetConceptActivation(ctx, id, 0.8); err != nil {
		t.Fatalf("SetConceptActivation: %v", err)
	}
	active, err := store.ActiveConcepts(ctx)
	if err != nil {
		t.Fatalf("ActiveConcepts: %v", err)
	}
	if len(active) != 1 || active[0].ID != id {
		t.Errorf("ActiveConcepts: want [%s], got %+v", id, active)
	}

	sims, err := store.SimilarConcepts(ctx, []float32{0, 1, 0, 0}, 0.5, 5)
	if err != nil {
		t.Fatalf("SimilarConcepts: %v", err)
	}
	if len(sims) != 1 || sims[0].ID != id {
		t.Errorf("SimilarConcepts: want [%s], got %+v", id, sims)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Entities and relations
// ─────────────────────────────────────────────────────────────────────────────

func TestEntitiesAndRelations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	memID, err := store.InsertMemory(ctx, memstore.Memory{
		Content: "query.sql uses postgresql under the hood", Type: memstore.MemoryProcedural,
		SourceAgent: "agent-1", Embedding: []float32{1, 0, 0, 0},
	})
	if err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	fileID, err := store.AddEntity(ctx, memstore.Entity{
		MemoryID: memID, EntityText: "query.sql", EntityType: memstore.EntityFile, SalienceScore: 0.5,
	})
	if err != nil {
		t.Fatalf("AddEntity file: %v", err)
	}
	toolID, err := store.AddEntity(ctx, memstore.Entity{
		MemoryID: memID, EntityText: "postgresql", EntityType: memstore.EntityTool, SalienceScore: 0.5,
	})
	if err != nil {
		t.Fatalf("AddEntity tool: %v", err)
	}

	// Re-adding the same (memory, type, text) with a lower salience keeps the max.
	sameID, err := store.AddEntity(ctx, memstore.Entity{
		MemoryID: memID, EntityText: "QUERY.SQL", EntityType: memstore.EntityFile, SalienceScore: 0.2,
	})
	if err != nil {
		t.Fatalf("AddEntity conflict: %v", err)
	}
	if sameID != fileID {
		t.Errorf("expected the same entity id on a case-insensitive conflict, got %s vs %s", sameID, fileID)
	}

	entities, err := store.EntitiesForMemory(ctx, memID)
	if err != nil {
		t.Fatalf("EntitiesForMemory: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("EntitiesForMemory: want 2, got %d", len(entities))
	}
	for _, e := range entities {
		if e.ID == fileID && e.SalienceScore != 0.5 {
			t.Errorf("expected the higher salience (0.5) to be kept, got %v", e.SalienceScore)
		}
	}

	relID, err := store.AddRelation(ctx, memstore.Relation{
		MemoryID: memID, SubjectEntityID: fileID, Predicate: "uses", ObjectEntityID: toolID, Confidence: 1,
	})
	if err != nil {
		t.Fatalf("AddRelation: %v", err)
	}
	if relID == "" {
		t.Error("expected a non-empty relation id")
	}

	relations, err := store.RelationsForMemory(ctx, memID)
	if err != nil {
		t.Fatalf("RelationsForMemory: %v", err)
	}
	if len(relations) != 1 || relations[0].Status != memstore.RelationActive {
		t.Fatalf("RelationsForMemory: want one active relation, got %+v", relations)
	}

	// Re-adding the same (subject, predicate, object) supersedes the prior one.
	if _, err := store.AddRelation(ctx, memstore.Relation{
		MemoryID: memID, SubjectEntityID: fileID, Predicate: "uses", ObjectEntityID: toolID, Confidence: 0.9,
	}); err != nil {
		t.Fatalf("AddRelation supersede: %v", err)
	}
	afterResupersede, err := store.RelationsForMemory(ctx, memID)
	if err != nil {
		t.Fatalf("RelationsForMemory after supersede: %v", err)
	}
	active := 0
	for _, r := range afterResupersede {
		if r.Status == memstore.RelationActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("expected exactly one active relation after supersede, got %d of %+v", active, afterResupersede)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Connection graph
// ─────────────────────────────────────────────────────────────────────────────

func TestConnections_StrengthenWeakenAndPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	src := memstore.Node{ID: "m1", Kind: memstore.NodeMemory}
	dst := memstore.Node{ID: "m2", Kind: memstore.NodeMemory}

	w, err := store.Strengthen(ctx, src, dst, 0.5, memstore.ConnectionSemantic)
	if err != nil {
		t.Fatalf("Strengthen: %v", err)
	}
	if w != 0.5 {
		t.Errorf("first strengthen: want 0.5, got %v", w)
	}

	w2, err := store.Strengthen(ctx, src, dst, 0.5, memstore.ConnectionSemantic)
	if err != nil {
		t.Fatalf("Strengthen again: %v", err)
	}
	// w' = 0.5 + 0.5*(1-0.5) = 0.75
	if w2 != 0.75 {
		t.Errorf("second strengthen: want 0.75, got %v", w2)
	}

	edge, err := store.GetEdge(ctx, src, dst, memstore.ConnectionSemantic)
	if err != nil {
		t.Fatalf("GetEdge: %v", err)
	}
	if edge == nil || edge.UsageCount != 2 {
		t.Fatalf("GetEdge: want usage_count 2, got %+v", edge)
	}

	weakened, err := store.Weaken(ctx, src, dst, 0.25, memstore.ConnectionSemantic)
	if err != nil {
		t.Fatalf("Weaken: %v", err)
	}
	if weakened != 0.5 {
		t.Errorf("Weaken: want 0.5, got %v", weakened)
	}

	missing, err := store.Weaken(ctx, src, memstore.Node{ID: "ghost", Kind: memstore.NodeMemory}, 0.1, memstore.ConnectionSemantic)
	if err != nil {
		t.Fatalf("Weaken missing edge: %v", err)
	}
	if missing != 0 {
		t.Errorf("Weaken on a missing edge: want 0, got %v", missing)
	}

	outgoing, err := store.GetOutgoing(ctx, src, 0)
	if err != nil {
		t.Fatalf("GetOutgoing: %v", err)
	}
	if len(outgoing) != 1 || outgoing[0].Target.ID != "m2" {
		t.Errorf("GetOutgoing: want [m2], got %+v", outgoing)
	}

	n, err := store.ConnectCoActivated(ctx, []memstore.Node{
		{ID: "c1", Kind: memstore.NodeMemory},
		{ID: "c2", Kind: memstore.NodeMemory},
		{ID: "c3", Kind: memstore.NodeMemory},
	}, 0.05)
	if err != nil {
		t.Fatalf("ConnectCoActivated: %v", err)
	}
	if n != 3 {
		t.Errorf("ConnectCoActivated: want 3 pairs for 3 nodes, got %d", n)
	}

	connStats, err := store.ConnectionStats(ctx)
	if err != nil {
		t.Fatalf("ConnectionStats: %v", err)
	}
	if connStats.Total != 4 { // m1->m2 plus the 3 co-activation pairs
		t.Errorf("ConnectionStats.Total: want 4, got %d", connStats.Total)
	}

	pruned, err := store.Prune(ctx, 0.9, time.Now().Add(time.Hour)) // everything unused-since-the-future and weak
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned == 0 {
		t.Error("Prune: expected at least one weak, unused edge removed")
	}
}

func TestActivationLog_SinceFiltersByTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendActivationLog(ctx, memstore.ActivationLogEntry{
		QueryText:          "what broke the build",
		QueryEmbedding:     []float32{1, 0, 0, 0},
		ActivatedMemoryIDs: []string{"m1", "m2"},
		Agent:              "agent-1",
	}); err != nil {
		t.Fatalf("AppendActivationLog: %v", err)
	}

	since := time.Now().Add(-time.Hour)
	entries, err := store.ActivationLogSince(ctx, since)
	if err != nil {
		t.Fatalf("ActivationLogSince: %v", err)
	}
	if len(entries) != 1 || len(entries[0].ActivatedMemoryIDs) != 2 {
		t.Fatalf("ActivationLogSince: got %+v", entries)
	}

	future := time.Now().Add(time.Hour)
	none, err := store.ActivationLogSince(ctx, future)
	if err != nil {
		t.Fatalf("ActivationLogSince future: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ActivationLogSince(future): want none, got %+v", none)
	}
}

func TestActivationStats_ReflectsActiveNodes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	memID, err := store.InsertMemory(ctx, memstore.Memory{
		Content: "active memory", Type: memstore.MemoryEpisodic, SourceAgent: "a", Embedding: []float32{1, 0, 0, 0},
	})
	if err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}
	if err := store.SetActivation(ctx, memID, memstore.NodeMemory, 0.6); err != nil {
		t.Fatalf("SetActivation: %v", err)
	}

	stats, err := store.ActivationStats(ctx)
	if err != nil {
		t.Fatalf("ActivationStats: %v", err)
	}
	if stats.ActiveMemoryCount != 1 {
		t.Errorf("ActiveMemoryCount: want 1, got %d", stats.ActiveMemoryCount)
	}
	if stats.MeanActivation != 0.6 {
		t.Errorf("MeanActivation: want 0.6, got %v", stats.MeanActivation)
	}
}
