package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mwai-labs/synapsed/pkg/memstore"
	"github.com/mwai-labs/synapsed/pkg/synapseerr"
)

// UpsertConcept implements [memstore.ConceptStore]. Concept names act as a
// natural key: a name seen before refreshes its embedding rather than
// creating a duplicate node, so repeated extraction passes over similar
// text converge on one concept per name.
func (s *Store) UpsertConcept(ctx context.Context, name string, embedding []float32) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("memstore: generate id: %w", err)
	}

	const q = `
		INSERT INTO concepts (id, name, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET embedding = EXCLUDED.embedding
		RETURNING id`

	vec := pgvector.NewVector(embedding)
	var gotID string
	if err := s.pool.QueryRow(ctx, q, id, name, vec).Scan(&gotID); err != nil {
		return "", fmt.Errorf("memstore: upsert concept: %w", err)
	}
	return gotID, nil
}

// SimilarConcepts implements [memstore.ConceptStore].
func (s *Store) SimilarConcepts(ctx context.Context, query []float32, threshold float64, limit int) ([]memstore.Similarity, error) {
	vec := pgvector.NewVector(query)
	maxDistance := 1 - threshold

	const q = `
		SELECT id, 1 - (embedding <=> $1) AS similarity
		FROM   concepts
		WHERE  embedding <=> $1 <= $2
		ORDER  BY similarity DESC, created_at DESC
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, vec, maxDistance, limit)
	if err != nil {
		return nil, fmt.Errorf("memstore: similar concepts: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memstore.Similarity, error) {
		var sim memstore.Similarity
		if err := row.Scan(&sim.ID, &sim.Similarity); err != nil {
			return memstore.Similarity{}, err
		}
		return sim, nil
	})
	if err != nil {
		return nil, fmt.Errorf("memstore: similar concepts: scan rows: %w", err)
	}
	if results == nil {
		results = []memstore.Similarity{}
	}
	return results, nil
}

// GetConcept implements [memstore.ConceptStore].
func (s *Store) GetConcept(ctx context.Context, id string) (*memstore.Concept, error) {
	const q = `
		SELECT id, name, embedding, current_activation, last_activated, created_at
		FROM concepts WHERE id = $1`

	var (
		c   memstore.Concept
		vec pgvector.Vector
	)
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&c.ID, &c.Name, &vec, &c.CurrentActivation, &c.LastActivated, &c.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, synapseerr.New(synapseerr.KindNotFound, "concept "+id+" not found")
		}
		return nil, fmt.Errorf("memstore: get concept: %w", err)
	}
	c.Embedding = vec.Slice()
	return &c, nil
}

// SetConceptActivation implements [memstore.ConceptStore].
func (s *Store) SetConceptActivation(ctx context.Context, id string, value float64) error {
	return s.SetActivation(ctx, id, memstore.NodeConcept, value)
}

// ActiveConcepts implements [memstore.ConceptStore].
func (s *Store) ActiveConcepts(ctx context.Context) ([]memstore.Concept, error) {
	const q = `
		SELECT id, name, embedding, current_activation, last_activated, created_at
		FROM concepts WHERE current_activation > 0`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("memstore: active concepts: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memstore.Concept, error) {
		var (
			c   memstore.Concept
			vec pgvector.Vector
		)
		if err := row.Scan(&c.ID, &c.Name, &vec, &c.CurrentActivation, &c.LastActivated, &c.CreatedAt); err != nil {
			return memstore.Concept{}, err
		}
		c.Embedding = vec.Slice()
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("memstore: active concepts: scan rows: %w", err)
	}
	if results == nil {
		results = []memstore.Concept{}
	}
	return results, nil
}
