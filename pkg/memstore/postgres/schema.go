// Package postgres provides a PostgreSQL + pgvector backed implementation
// of [github.com/mwai-labs/synapsed/pkg/memstore]'s Store interface: the
// memory table, the concept table, the entity/relation tables, the
// connection graph, and the append-only activation log.
//
// A single [pgxpool.Pool] backs all tables. The pgvector extension must be
// available in the target database; [Migrate] installs it automatically via
// CREATE EXTENSION IF NOT EXISTS.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlMemories returns the memories-table DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at
// schema creation time, since pgvector requires a fixed width per column.
func ddlMemories(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
    id                   TEXT         PRIMARY KEY,
    content              TEXT         NOT NULL,
    summary              TEXT         NOT NULL DEFAULT '',
    was_compressed       BOOLEAN      NOT NULL DEFAULT false,
    trigger_situation    TEXT         NOT NULL DEFAULT '',
    resolution           TEXT         NOT NULL DEFAULT '',
    memory_type          TEXT         NOT NULL,
    source_agent         TEXT         NOT NULL DEFAULT '',
    embedding            vector(%d),
    keywords             TEXT[]       NOT NULL DEFAULT '{}',
    salience_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
    retrieval_count      INT          NOT NULL DEFAULT 0,
    last_retrieved_at    TIMESTAMPTZ,
    current_activation   DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_activated       TIMESTAMPTZ,
    context              JSONB        NOT NULL DEFAULT '{}',
    created_at           TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_memories_embedding
    ON memories USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_memories_keywords
    ON memories USING GIN (keywords);

CREATE INDEX IF NOT EXISTS idx_memories_created_at
    ON memories (created_at);

CREATE INDEX IF NOT EXISTS idx_memories_type
    ON memories (memory_type);

CREATE INDEX IF NOT EXISTS idx_memories_source_agent
    ON memories (source_agent);

CREATE INDEX IF NOT EXISTS idx_memories_activation
    ON memories (current_activation) WHERE current_activation > 0;
`, embeddingDimensions)
}

// ddlConcepts returns the concepts-table DDL with the embedding dimension
// substituted.
func ddlConcepts(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS concepts (
    id                   TEXT         PRIMARY KEY,
    name                 TEXT         NOT NULL UNIQUE,
    embedding            vector(%d),
    current_activation   DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_activated       TIMESTAMPTZ,
    created_at           TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_concepts_embedding
    ON concepts USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_concepts_activation
    ON concepts (current_activation) WHERE current_activation > 0;
`, embeddingDimensions)
}

const ddlEntitiesRelations = `
CREATE TABLE IF NOT EXISTS entities (
    id              TEXT         PRIMARY KEY,
    memory_id       TEXT         NOT NULL REFERENCES memories (id) ON DELETE CASCADE,
    entity_text     TEXT         NOT NULL,
    entity_type     TEXT         NOT NULL,
    salience_score  DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_unique
    ON entities (memory_id, entity_type, lower(entity_text));
CREATE INDEX IF NOT EXISTS idx_entities_memory_id ON entities (memory_id);
CREATE INDEX IF NOT EXISTS idx_entities_text ON entities (lower(entity_text));

CREATE TABLE IF NOT EXISTS relations (
    id                  TEXT         PRIMARY KEY,
    memory_id           TEXT         NOT NULL REFERENCES memories (id) ON DELETE CASCADE,
    subject_entity_id   TEXT         NOT NULL REFERENCES entities (id) ON DELETE CASCADE,
    predicate           TEXT         NOT NULL,
    object_entity_id    TEXT         NOT NULL REFERENCES entities (id) ON DELETE CASCADE,
    confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
    valid_from          TIMESTAMPTZ  NOT NULL DEFAULT now(),
    valid_to            TIMESTAMPTZ,
    status              TEXT         NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_relations_memory_id ON relations (memory_id);
CREATE INDEX IF NOT EXISTS idx_relations_subject ON relations (subject_entity_id);
CREATE INDEX IF NOT EXISTS idx_relations_object ON relations (object_entity_id);

-- At most one active relation with an open-ended valid_to per
-- (subject, predicate, object) triple: enforced by a partial unique index
-- rather than a CHECK, since the rule only applies while status='active'.
CREATE UNIQUE INDEX IF NOT EXISTS idx_relations_active_unique
    ON relations (subject_entity_id, predicate, object_entity_id)
    WHERE status = 'active' AND valid_to IS NULL;
`

const ddlConnections = `
CREATE TABLE IF NOT EXISTS connections (
    source_id        TEXT         NOT NULL,
    source_kind      TEXT         NOT NULL,
    target_id        TEXT         NOT NULL,
    target_kind      TEXT         NOT NULL,
    connection_type  TEXT         NOT NULL,
    strength         DOUBLE PRECISION NOT NULL DEFAULT 0,
    usage_count      INT          NOT NULL DEFAULT 0,
    last_used_at     TIMESTAMPTZ,
    PRIMARY KEY (source_id, source_kind, target_id, target_kind, connection_type)
);

CREATE INDEX IF NOT EXISTS idx_connections_source
    ON connections (source_id, source_kind);

CREATE INDEX IF NOT EXISTS idx_connections_strength
    ON connections (strength);

CREATE INDEX IF NOT EXISTS idx_connections_last_used
    ON connections (last_used_at);
`

func ddlActivationLog(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS activation_log (
    id                     TEXT         PRIMARY KEY,
    query_text             TEXT         NOT NULL,
    query_embedding        vector(%d),
    activated_memory_ids   TEXT[]       NOT NULL DEFAULT '{}',
    activated_concept_ids  TEXT[]       NOT NULL DEFAULT '{}',
    agent                  TEXT         NOT NULL DEFAULT '',
    created_at             TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_activation_log_created_at
    ON activation_log (created_at);
`, embeddingDimensions)
}

const ddlDreamLog = `
CREATE TABLE IF NOT EXISTS dream_log (
    id          TEXT         PRIMARY KEY,
    started_at  TIMESTAMPTZ  NOT NULL,
    finished_at TIMESTAMPTZ  NOT NULL,
    counters    JSONB        NOT NULL DEFAULT '{}',
    notes       TEXT         NOT NULL DEFAULT ''
);
`

// Migrate creates or ensures all required database tables, indexes, and
// extensions exist. It is idempotent and safe to call on every application
// start.
//
// embeddingDimensions must match the dimension produced by the configured
// embedding gateway (see [github.com/mwai-labs/synapsed/pkg/embed]).
// Changing this value after the first migration requires a manual schema
// update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlMemories(embeddingDimensions),
		ddlConcepts(embeddingDimensions),
		ddlEntitiesRelations,
		ddlConnections,
		ddlActivationLog(embeddingDimensions),
		ddlDreamLog,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
