package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mwai-labs/synapsed/pkg/memstore"
)

// Strengthen implements [memstore.ConnectionGraph]. w' = w + alpha*(1-w): if
// no edge exists one is created with initial strength alpha and unit usage,
// otherwise the existing edge's strength is updated in place and its usage
// counter incremented.
func (s *Store) Strengthen(ctx context.Context, source, target memstore.Node, alpha float64, typ memstore.ConnectionType) (float64, error) {
	const q = `
		INSERT INTO connections
		    (source_id, source_kind, target_id, target_kind, connection_type, strength, usage_count, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, now())
		ON CONFLICT (source_id, source_kind, target_id, target_kind, connection_type) DO UPDATE SET
		    strength = LEAST(1, connections.strength + $6 * (1 - connections.strength)),
		    usage_count = connections.usage_count + 1,
		    last_used_at = now()
		RETURNING strength`

	var newStrength float64
	err := s.pool.QueryRow(ctx, q,
		source.ID, string(source.Kind), target.ID, string(target.Kind), string(typ), alpha,
	).Scan(&newStrength)
	if err != nil {
		return 0, fmt.Errorf("memstore: strengthen: %w", err)
	}
	return newStrength, nil
}

// Weaken implements [memstore.ConnectionGraph]. w' = max(0, w-beta). A
// missing edge is treated as strength 0 and this is a no-op.
func (s *Store) Weaken(ctx context.Context, source, target memstore.Node, beta float64, typ memstore.ConnectionType) (float64, error) {
	const q = `
		UPDATE connections
		SET strength = GREATEST(0, strength - $5)
		WHERE source_id = $1 AND source_kind = $2 AND target_id = $3 AND target_kind = $4
		  AND connection_type = $6
		RETURNING strength`

	var newStrength float64
	err := s.pool.QueryRow(ctx, q,
		source.ID, string(source.Kind), target.ID, string(target.Kind), beta, string(typ),
	).Scan(&newStrength)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("memstore: weaken: %w", err)
	}
	return newStrength, nil
}

// GetOutgoing implements [memstore.ConnectionGraph]. This is the
// correctness contract behind spreading activation: only the top-20
// strongest edges above floor are ever visible.
func (s *Store) GetOutgoing(ctx context.Context, node memstore.Node, floor float64) ([]memstore.Connection, error) {
	const q = `
		SELECT source_id, source_kind, target_id, target_kind, connection_type,
		       strength, usage_count, last_used_at
		FROM connections
		WHERE source_id = $1 AND source_kind = $2 AND strength > $3
		ORDER BY strength DESC
		LIMIT 20`

	rows, err := s.pool.Query(ctx, q, node.ID, string(node.Kind), floor)
	if err != nil {
		return nil, fmt.Errorf("memstore: get outgoing: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memstore.Connection, error) {
		return scanConnection(row)
	})
	if err != nil {
		return nil, fmt.Errorf("memstore: get outgoing: scan rows: %w", err)
	}
	if out == nil {
		out = []memstore.Connection{}
	}
	return out, nil
}

// GetEdge implements [memstore.ConnectionGraph].
func (s *Store) GetEdge(ctx context.Context, source, target memstore.Node, typ memstore.ConnectionType) (*memstore.Connection, error) {
	const q = `
		SELECT source_id, source_kind, target_id, target_kind, connection_type,
		       strength, usage_count, last_used_at
		FROM connections
		WHERE source_id = $1 AND source_kind = $2 AND target_id = $3 AND target_kind = $4
		  AND connection_type = $5`

	row := s.pool.QueryRow(ctx, q, source.ID, string(source.Kind), target.ID, string(target.Kind), string(typ))
	c, err := scanConnection(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("memstore: get edge: %w", err)
	}
	return &c, nil
}

// ConnectCoActivated implements [memstore.ConnectionGraph]. It creates the
// upper-triangle product of semantic edges between every pair in ids via
// [Store.Strengthen].
func (s *Store) ConnectCoActivated(ctx context.Context, ids []memstore.Node, baseAlpha float64) (int, error) {
	count := 0
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if _, err := s.Strengthen(ctx, ids[i], ids[j], baseAlpha, memstore.ConnectionSemantic); err != nil {
				return count, fmt.Errorf("memstore: connect co-activated: pair (%s,%s): %w", ids[i].ID, ids[j].ID, err)
			}
			count++
		}
	}
	return count, nil
}

// ConnectionStats implements [memstore.ConnectionGraph].
func (s *Store) ConnectionStats(ctx context.Context) (memstore.ConnectionStats, error) {
	stats := memstore.ConnectionStats{ByType: make(map[memstore.ConnectionType]int)}

	const totalsQ = `
		SELECT count(*),
		       count(*) FILTER (WHERE strength >= 0.7),
		       count(*) FILTER (WHERE strength < 0.1),
		       coalesce(avg(strength), 0)
		FROM connections`
	if err := s.pool.QueryRow(ctx, totalsQ).Scan(&stats.Total, &stats.StrongCount, &stats.WeakCount, &stats.MeanStrength); err != nil {
		return stats, fmt.Errorf("memstore: connection stats: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT connection_type, count(*) FROM connections GROUP BY connection_type`)
	if err != nil {
		return stats, fmt.Errorf("memstore: connection stats: by type: %w", err)
	}
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			rows.Close()
			return stats, fmt.Errorf("memstore: connection stats: by type scan: %w", err)
		}
		stats.ByType[memstore.ConnectionType(t)] = c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("memstore: connection stats: by type: %w", err)
	}

	return stats, nil
}

// ActivationStats implements [memstore.ConnectionGraph].
func (s *Store) ActivationStats(ctx context.Context) (memstore.ActivationStats, error) {
	var stats memstore.ActivationStats

	const memQ = `SELECT count(*), coalesce(avg(current_activation), 0) FROM memories WHERE current_activation > 0`
	var memMean float64
	if err := s.pool.QueryRow(ctx, memQ).Scan(&stats.ActiveMemoryCount, &memMean); err != nil {
		return stats, fmt.Errorf("memstore: activation stats: memories: %w", err)
	}

	const conQ = `SELECT count(*), coalesce(avg(current_activation), 0) FROM concepts WHERE current_activation > 0`
	var conMean float64
	if err := s.pool.QueryRow(ctx, conQ).Scan(&stats.ActiveConceptCount, &conMean); err != nil {
		return stats, fmt.Errorf("memstore: activation stats: concepts: %w", err)
	}

	total := stats.ActiveMemoryCount + stats.ActiveConceptCount
	if total > 0 {
		stats.MeanActivation = (memMean*float64(stats.ActiveMemoryCount) + conMean*float64(stats.ActiveConceptCount)) / float64(total)
	}
	return stats, nil
}

// AppendActivationLog implements [memstore.ConnectionGraph]. The log is
// append-only: this is always an INSERT, never an UPDATE.
func (s *Store) AppendActivationLog(ctx context.Context, e memstore.ActivationLogEntry) error {
	id, err := generateID()
	if err != nil {
		return fmt.Errorf("memstore: generate id: %w", err)
	}

	const q = `
		INSERT INTO activation_log
		    (id, query_text, query_embedding, activated_memory_ids, activated_concept_ids, agent)
		VALUES ($1, $2, $3, $4, $5, $6)`

	vec := pgvector.NewVector(e.QueryEmbedding)
	if _, err := s.pool.Exec(ctx, q, id, e.QueryText, vec, emptyStrings(e.ActivatedMemoryIDs), emptyStrings(e.ActivatedConceptIDs), e.Agent); err != nil {
		return fmt.Errorf("memstore: append activation log: %w", err)
	}
	return nil
}

// ActivationLogSince implements [memstore.ConnectionGraph].
func (s *Store) ActivationLogSince(ctx context.Context, since time.Time) ([]memstore.ActivationLogEntry, error) {
	const q = `
		SELECT id, query_text, query_embedding, activated_memory_ids, activated_concept_ids, agent, created_at
		FROM activation_log
		WHERE created_at >= $1
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("memstore: activation log since: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memstore.ActivationLogEntry, error) {
		var e memstore.ActivationLogEntry
		var vec pgvector.Vector
		if err := row.Scan(
			&e.ID, &e.QueryText, &vec, &e.ActivatedMemoryIDs, &e.ActivatedConceptIDs, &e.Agent, &e.CreatedAt,
		); err != nil {
			return memstore.ActivationLogEntry{}, err
		}
		e.QueryEmbedding = vec.Slice()
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("memstore: activation log since: scan rows: %w", err)
	}
	if out == nil {
		out = []memstore.ActivationLogEntry{}
	}
	return out, nil
}

// Prune implements [memstore.ConnectionGraph]. Strong edges (strength >=
// 0.7) are never removed, regardless of disuse.
func (s *Store) Prune(ctx context.Context, minStrength float64, unusedSince time.Time) (int, error) {
	const q = `
		DELETE FROM connections
		WHERE strength < $1
		  AND strength < 0.7
		  AND (last_used_at IS NULL OR last_used_at < $2)`

	tag, err := s.pool.Exec(ctx, q, minStrength, unusedSince)
	if err != nil {
		return 0, fmt.Errorf("memstore: prune: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanConnection(row memoryRow) (memstore.Connection, error) {
	var (
		c                        memstore.Connection
		sourceKind, targetKind   string
		connType                 string
	)
	if err := row.Scan(
		&c.Source.ID, &sourceKind, &c.Target.ID, &targetKind, &connType,
		&c.Strength, &c.UsageCount, &c.LastUsedAt,
	); err != nil {
		return memstore.Connection{}, err
	}
	c.Source.Kind = memstore.NodeKind(sourceKind)
	c.Target.Kind = memstore.NodeKind(targetKind)
	c.Type = memstore.ConnectionType(connType)
	return c, nil
}
