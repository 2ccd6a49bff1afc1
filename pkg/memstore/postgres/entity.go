package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mwai-labs/synapsed/pkg/memstore"
)

// AddEntity implements [memstore.EntityGraph]. On conflict with an existing
// (memory_id, entity_type, lowercased entity_text) the higher salience is
// kept, since salience tracks the maximum observed for the same text across
// extractions within a memory.
func (s *Store) AddEntity(ctx context.Context, e memstore.Entity) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("memstore: generate id: %w", err)
	}

	const q = `
		INSERT INTO entities (id, memory_id, entity_text, entity_type, salience_score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (memory_id, entity_type, lower(entity_text)) DO UPDATE SET
		    salience_score = GREATEST(entities.salience_score, EXCLUDED.salience_score)
		RETURNING id`

	var gotID string
	if err := s.pool.QueryRow(ctx, q, id, e.MemoryID, e.EntityText, string(e.EntityType), e.SalienceScore).Scan(&gotID); err != nil {
		return "", fmt.Errorf("memstore: add entity: %w", err)
	}
	return gotID, nil
}

// EntitiesForMemory implements [memstore.EntityGraph].
func (s *Store) EntitiesForMemory(ctx context.Context, memoryID string) ([]memstore.Entity, error) {
	const q = `
		SELECT id, memory_id, entity_text, entity_type, salience_score
		FROM entities WHERE memory_id = $1
		ORDER BY salience_score DESC`

	rows, err := s.pool.Query(ctx, q, memoryID)
	if err != nil {
		return nil, fmt.Errorf("memstore: entities for memory: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memstore.Entity, error) {
		var e memstore.Entity
		var t string
		if err := row.Scan(&e.ID, &e.MemoryID, &e.EntityText, &t, &e.SalienceScore); err != nil {
			return memstore.Entity{}, err
		}
		e.EntityType = memstore.EntityType(t)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("memstore: entities for memory: scan rows: %w", err)
	}
	if out == nil {
		out = []memstore.Entity{}
	}
	return out, nil
}

// AddRelation implements [memstore.EntityGraph]. It supersedes any existing
// open-ended active relation for the same (subject, predicate, object)
// triple before inserting the new one, preserving the bi-temporal
// invariant that valid_to of a superseded relation equals the replacing
// relation's valid_from.
func (s *Store) AddRelation(ctx context.Context, r memstore.Relation) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("memstore: generate id: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("memstore: add relation: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const supersede = `
		UPDATE relations
		SET valid_to = now(), status = 'superseded'
		WHERE subject_entity_id = $1 AND predicate = $2 AND object_entity_id = $3
		  AND status = 'active' AND valid_to IS NULL`
	if _, err := tx.Exec(ctx, supersede, r.SubjectEntityID, r.Predicate, r.ObjectEntityID); err != nil {
		return "", fmt.Errorf("memstore: add relation: supersede: %w", err)
	}

	const insert = `
		INSERT INTO relations
		    (id, memory_id, subject_entity_id, predicate, object_entity_id, confidence, valid_from, status)
		VALUES ($1, $2, $3, $4, $5, $6, now(), 'active')
		ON CONFLICT DO NOTHING`
	if _, err := tx.Exec(ctx, insert, id, r.MemoryID, r.SubjectEntityID, r.Predicate, r.ObjectEntityID, r.Confidence); err != nil {
		return "", fmt.Errorf("memstore: add relation: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("memstore: add relation: commit: %w", err)
	}
	return id, nil
}

// RelationsForMemory implements [memstore.EntityGraph].
func (s *Store) RelationsForMemory(ctx context.Context, memoryID string) ([]memstore.Relation, error) {
	const q = `
		SELECT id, memory_id, subject_entity_id, predicate, object_entity_id,
		       confidence, valid_from, valid_to, status
		FROM relations WHERE memory_id = $1
		ORDER BY valid_from`

	rows, err := s.pool.Query(ctx, q, memoryID)
	if err != nil {
		return nil, fmt.Errorf("memstore: relations for memory: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memstore.Relation, error) {
		var r memstore.Relation
		var status string
		if err := row.Scan(
			&r.ID, &r.MemoryID, &r.SubjectEntityID, &r.Predicate, &r.ObjectEntityID,
			&r.Confidence, &r.ValidFrom, &r.ValidTo, &status,
		); err != nil {
			return memstore.Relation{}, err
		}
		r.Status = memstore.RelationStatus(status)
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("memstore: relations for memory: scan rows: %w", err)
	}
	if out == nil {
		out = []memstore.Relation{}
	}
	return out, nil
}
