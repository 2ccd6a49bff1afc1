// Package memstore defines the storage-agnostic interfaces and domain types
// for the associative memory engine: memories, concepts, entities, typed
// relations between them, and the plastic connection graph that binds
// memories and concepts together. Concrete backends live in subpackages
// (see [github.com/mwai-labs/synapsed/pkg/memstore/postgres]).
package memstore

import "time"

// MemoryType is the closed set of memory kinds.
type MemoryType string

const (
	MemoryEpisodic  MemoryType = "episodic"
	MemorySemantic  MemoryType = "semantic"
	MemoryProcedural MemoryType = "procedural"
)

// IsValid reports whether t is one of the recognized memory types.
func (t MemoryType) IsValid() bool {
	switch t {
	case MemoryEpisodic, MemorySemantic, MemoryProcedural:
		return true
	default:
		return false
	}
}

// EntityType is the closed set of entity kinds lifted from memory text.
type EntityType string

const (
	EntityPerson   EntityType = "PERSON"
	EntityTool     EntityType = "TOOL"
	EntityConcept  EntityType = "CONCEPT"
	EntityFile     EntityType = "FILE"
	EntityError    EntityType = "ERROR"
	EntitySolution EntityType = "SOLUTION"
)

// IsValid reports whether t is one of the recognized entity types.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityPerson, EntityTool, EntityConcept, EntityFile, EntityError, EntitySolution:
		return true
	default:
		return false
	}
}

// RelationStatus is the closed set of a relation's bi-temporal lifecycle
// states.
type RelationStatus string

const (
	RelationActive     RelationStatus = "active"
	RelationSuperseded RelationStatus = "superseded"
	RelationInvalid    RelationStatus = "invalid"
)

// IsValid reports whether s is one of the recognized relation statuses.
func (s RelationStatus) IsValid() bool {
	switch s {
	case RelationActive, RelationSuperseded, RelationInvalid:
		return true
	default:
		return false
	}
}

// ConnectionType is the closed set of edge semantics in the plasticity
// graph.
type ConnectionType string

const (
	ConnectionSemantic     ConnectionType = "semantic"
	ConnectionTemporal     ConnectionType = "temporal"
	ConnectionCausal       ConnectionType = "causal"
	ConnectionProcedural   ConnectionType = "procedural"
	ConnectionHierarchical ConnectionType = "hierarchical"
)

// IsValid reports whether t is one of the recognized connection types.
func (t ConnectionType) IsValid() bool {
	switch t {
	case ConnectionSemantic, ConnectionTemporal, ConnectionCausal, ConnectionProcedural, ConnectionHierarchical:
		return true
	default:
		return false
	}
}

// NodeKind distinguishes the two node domains that share the connection
// graph: memories and concepts.
type NodeKind string

const (
	NodeMemory  NodeKind = "memory"
	NodeConcept NodeKind = "concept"
)

// IsValid reports whether k is one of the recognized node kinds.
func (k NodeKind) IsValid() bool {
	switch k {
	case NodeMemory, NodeConcept:
		return true
	default:
		return false
	}
}

// Node identifies an endpoint in the connection graph: an id paired with
// the domain (memory or concept) it lives in.
type Node struct {
	ID   string
	Kind NodeKind
}

// Memory is a unit of recall: content, the situation that should trigger
// its recall, and write-time/retrieval-time scoring state.
type Memory struct {
	ID               string
	Content          string
	Summary          string // derived at write time when Content exceeds the compression ceiling
	WasCompressed    bool
	TriggerSituation string
	Resolution       string
	Type             MemoryType
	SourceAgent      string
	Embedding        []float32
	Keywords         []string
	SalienceScore    float64
	RetrievalCount   int
	LastRetrievedAt  *time.Time
	CurrentActivation float64
	LastActivated    *time.Time
	Context          map[string]any
	CreatedAt        time.Time
}

// Concept is a named cluster of meaning that can seed spreading activation.
type Concept struct {
	ID                string
	Name              string
	Embedding         []float32
	CurrentActivation float64
	LastActivated     *time.Time
	CreatedAt         time.Time
}

// Entity is a typed noun lifted from a memory's text by [pkg/extract].
type Entity struct {
	ID            string
	MemoryID      string
	EntityText    string
	EntityType    EntityType
	SalienceScore float64
}

// Relation is a typed, temporally-scoped statement between two entities in
// the context of a memory.
type Relation struct {
	ID              string
	MemoryID        string
	SubjectEntityID string
	Predicate       string
	ObjectEntityID  string
	Confidence      float64
	ValidFrom       time.Time
	ValidTo         *time.Time
	Status          RelationStatus
}

// Connection is a weighted, typed edge in the plasticity graph, either
// between two memories, two concepts, or a concept and a memory.
type Connection struct {
	Source         Node
	Target         Node
	Type           ConnectionType
	Strength       float64
	UsageCount     int
	LastUsedAt     *time.Time
}

// Similarity is one hit from a similarity search: a node id paired with its
// cosine similarity to the query vector.
type Similarity struct {
	ID         string
	Similarity float64
}

// ActivationLogEntry is one append-only record of a spreading-activation
// retrieval, the substrate for the consolidator's co-activation phase.
type ActivationLogEntry struct {
	ID                 string
	QueryText          string
	QueryEmbedding      []float32
	ActivatedMemoryIDs  []string
	ActivatedConceptIDs []string
	Agent               string
	CreatedAt            time.Time
}

// MemoryStats summarizes the memory table for get_memory_stats.
type MemoryStats struct {
	Total          int
	ByType         map[MemoryType]int
	BySourceAgent  map[string]int
}

// ConnectionStats summarizes the connection graph for get_connection_stats.
type ConnectionStats struct {
	Total        int
	ByType       map[ConnectionType]int
	StrongCount  int // strength >= 0.7
	WeakCount    int // strength < 0.1
	MeanStrength float64
}

// ActivationStats summarizes transient activation state for
// get_activation_stats.
type ActivationStats struct {
	ActiveMemoryCount  int
	ActiveConceptCount int
	MeanActivation     float64
}

// DreamPhaseCounters records what one phase of a dream pass did.
type DreamPhaseCounters struct {
	Created      int
	Strengthened int
	Pruned       int
}

// DreamLog is the record of one consolidation ("dream") run.
type DreamLog struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	SemanticLinking    DreamPhaseCounters
	EpisodicBinding    DreamPhaseCounters
	CoActivation       DreamPhaseCounters
	Pruning            DreamPhaseCounters
	Notes              string
}

// DecayResult reports what one power-law decay pass did.
type DecayResult struct {
	MemoriesDecayed  int
	ConceptsDecayed  int
	MemoriesZeroed   int
	ConceptsZeroed   int
}
