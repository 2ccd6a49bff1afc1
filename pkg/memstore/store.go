package memstore

import (
	"context"
	"time"
)

// MemoryStore persists [Memory] records and exposes similarity/keyword
// search over them. Implementations must make cosine similarity available
// as stored — no runtime renormalization beyond what the similarity
// operator itself performs — and must make record-level writes
// serializable.
type MemoryStore interface {
	// InsertMemory stores m and returns its generated id. m.ID is ignored on
	// input.
	InsertMemory(ctx context.Context, m Memory) (string, error)

	// FetchByID returns the memory with the given id, or a
	// [synapseerr.KindNotFound] error.
	FetchByID(ctx context.Context, id string) (*Memory, error)

	// FetchMany returns memories for the given ids, omitting ids not found.
	FetchMany(ctx context.Context, ids []string) ([]Memory, error)

	// SimilarMemories returns memories whose embedding has cosine similarity
	// >= threshold against query, ordered by descending similarity (ties
	// broken by higher salience then more recent), capped at limit.
	SimilarMemories(ctx context.Context, query []float32, threshold float64, limit int, opts ...SimilarOpt) ([]Similarity, error)

	// KeywordSearch returns memories whose stored keyword set intersects
	// keywords, capped at limit.
	KeywordSearch(ctx context.Context, keywords []string, limit int) ([]Memory, error)

	// IncrementRetrieval sets last_retrieved_at = now and increments the
	// retrieval counter for id.
	IncrementRetrieval(ctx context.Context, id string) error

	// SetActivation clamps value to [0,1] and updates the node's current
	// activation and last_activated timestamp.
	SetActivation(ctx context.Context, id string, kind NodeKind, value float64) error

	// ListRecent returns the n most recently written memories, for surprise
	// scoring context.
	ListRecent(ctx context.Context, n int) ([]Memory, error)

	// ActiveMemories returns every memory with current_activation > 0, for
	// the decay pass. Mirrors [ConceptStore.ActiveConcepts].
	ActiveMemories(ctx context.Context) ([]Memory, error)

	// MemoryStats returns aggregate counts over the memory table.
	MemoryStats(ctx context.Context) (MemoryStats, error)
}

// ConceptStore persists [Concept] records and exposes similarity search
// over them, mirroring [MemoryStore]'s similarity contract in the concept
// domain.
type ConceptStore interface {
	// UpsertConcept creates a concept with the given name and embedding if
	// none exists with that name, otherwise refreshes its embedding.
	// Concepts are created by extraction and activation layers; this is the
	// write path those layers use.
	UpsertConcept(ctx context.Context, name string, embedding []float32) (string, error)

	// SimilarConcepts returns concepts whose embedding has cosine similarity
	// >= threshold against query, ordered by descending similarity, capped
	// at limit.
	SimilarConcepts(ctx context.Context, query []float32, threshold float64, limit int) ([]Similarity, error)

	// GetConcept returns the concept with the given id, or
	// [synapseerr.KindNotFound].
	GetConcept(ctx context.Context, id string) (*Concept, error)

	// SetConceptActivation clamps value to [0,1] and updates the concept's
	// current activation and last_activated timestamp.
	SetConceptActivation(ctx context.Context, id string, value float64) error

	// ActiveConcepts returns every concept with current_activation > 0, for
	// the decay pass.
	ActiveConcepts(ctx context.Context) ([]Concept, error)
}

// EntityGraph persists [Entity] and [Relation] records extracted from
// memory text.
type EntityGraph interface {
	// AddEntity inserts e, returning its generated id. On conflict with an
	// existing (memory_id, entity_type, lowercased entity_text) triple, the higher
	// salience is kept and no error is returned (idempotent write).
	AddEntity(ctx context.Context, e Entity) (string, error)

	// EntitiesForMemory returns all entities extracted from memoryID.
	EntitiesForMemory(ctx context.Context, memoryID string) ([]Entity, error)

	// AddRelation inserts r with valid_from = now and status = active. If an
	// active relation already exists for the same (subject, predicate,
	// object), it is superseded: its valid_to is set to r's valid_from and
	// its status set to superseded.
	AddRelation(ctx context.Context, r Relation) (string, error)

	// RelationsForMemory returns all relations recorded against memoryID.
	RelationsForMemory(ctx context.Context, memoryID string) ([]Relation, error)
}

// ConnectionGraph is the plastic, typed, weighted edge graph binding
// memories and concepts. Strengthen/weaken obey the Hebbian update formula;
// GetOutgoing is a correctness contract, not just an optimization —
// spreading activation is defined over exactly the returned edges.
type ConnectionGraph interface {
	// Strengthen applies w' = w + alpha*(1-w). If no edge exists between
	// source and target of the given type, one is created with initial
	// strength alpha and unit usage; otherwise the existing edge's strength
	// is updated, its usage counter incremented, and last_used_at set to
	// now. Returns the new strength.
	Strengthen(ctx context.Context, source, target Node, alpha float64, typ ConnectionType) (float64, error)

	// Weaken applies w' = max(0, w-beta) to the edge between source and
	// target of the given type. Returns the new strength. A missing edge is
	// treated as strength 0 and weaken is a no-op.
	Weaken(ctx context.Context, source, target Node, beta float64, typ ConnectionType) (float64, error)

	// GetOutgoing returns node's outgoing edges ordered by descending
	// strength, filtered to strength > floor, capped at 20.
	GetOutgoing(ctx context.Context, node Node, floor float64) ([]Connection, error)

	// GetEdge returns the edge between source and target of the given type,
	// or nil if none exists.
	GetEdge(ctx context.Context, source, target Node, typ ConnectionType) (*Connection, error)

	// ConnectCoActivated creates/strengthens the upper-triangle product of
	// semantic edges between every pair in ids, using Strengthen with the
	// given base alpha. Returns the number of pairs touched.
	ConnectCoActivated(ctx context.Context, ids []Node, baseAlpha float64) (int, error)

	// ConnectionStats returns aggregate counts over the connection graph.
	ConnectionStats(ctx context.Context) (ConnectionStats, error)

	// ActivationStats returns aggregate transient-activation counts.
	ActivationStats(ctx context.Context) (ActivationStats, error)

	// AppendActivationLog appends an append-only record of a retrieval
	// event, the substrate for co-activation learning.
	AppendActivationLog(ctx context.Context, e ActivationLogEntry) error

	// ActivationLogSince returns activation log entries created at or after
	// since, ordered by timestamp, for consolidation's co-activation phase.
	ActivationLogSince(ctx context.Context, since time.Time) ([]ActivationLogEntry, error)

	// Prune removes every edge with strength < minStrength whose
	// last_used_at is null or older than unusedSince, except edges with
	// strength >= 0.7 ("top synapses"), which are never pruned regardless
	// of disuse. Returns the number of edges removed.
	Prune(ctx context.Context, minStrength float64, unusedSince time.Time) (int, error)
}

// Store bundles the four persistence surfaces the engine needs. A backend
// package (e.g. postgres) provides one concrete type implementing all four.
// Distinct method names per surface (SimilarMemories vs SimilarConcepts,
// rather than a shared Search) keep a single implementing type possible.
type Store interface {
	MemoryStore
	ConceptStore
	EntityGraph
	ConnectionGraph
}
