package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mwai-labs/synapsed/pkg/memstore"
	"github.com/mwai-labs/synapsed/pkg/synapseerr"
)

// InsertMemory implements [memstore.MemoryStore].
func (s *Store) InsertMemory(ctx context.Context, m memstore.Memory) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("memstore: generate id: %w", err)
	}

	ctxBlob, err := marshalContext(m.Context)
	if err != nil {
		return "", fmt.Errorf("memstore: marshal context: %w", err)
	}

	const q = `
		INSERT INTO memories
		    (id, content, summary, was_compressed, trigger_situation, resolution,
		     memory_type, source_agent, embedding, keywords, salience_score, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	vec := pgvector.NewVector(m.Embedding)
	if _, err := s.pool.Exec(ctx, q,
		id, m.Content, m.Summary, m.WasCompressed, m.TriggerSituation, m.Resolution,
		string(m.Type), m.SourceAgent, vec, emptyStrings(m.Keywords), m.SalienceScore, ctxBlob,
	); err != nil {
		return "", fmt.Errorf("memstore: insert memory: %w", err)
	}
	return id, nil
}

// FetchByID implements [memstore.MemoryStore].
func (s *Store) FetchByID(ctx context.Context, id string) (*memstore.Memory, error) {
	const q = `
		SELECT id, content, summary, was_compressed, trigger_situation, resolution,
		       memory_type, source_agent, embedding, keywords, salience_score,
		       retrieval_count, last_retrieved_at, current_activation, last_activated,
		       context, created_at
		FROM memories WHERE id = $1`

	row := s.pool.QueryRow(ctx, q, id)
	m, err := scanMemory(row)
	if err != nil {
		if isNoRows(err) {
			return nil, synapseerr.New(synapseerr.KindNotFound, "memory "+id+" not found")
		}
		return nil, fmt.Errorf("memstore: fetch by id: %w", err)
	}
	return m, nil
}

// FetchMany implements [memstore.MemoryStore]. Ids not found are silently
// omitted from the result.
func (s *Store) FetchMany(ctx context.Context, ids []string) ([]memstore.Memory, error) {
	if len(ids) == 0 {
		return []memstore.Memory{}, nil
	}

	const q = `
		SELECT id, content, summary, was_compressed, trigger_situation, resolution,
		       memory_type, source_agent, embedding, keywords, salience_score,
		       retrieval_count, last_retrieved_at, current_activation, last_activated,
		       context, created_at
		FROM memories WHERE id = ANY($1)`

	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("memstore: fetch many: %w", err)
	}
	defer rows.Close()

	var out []memstore.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("memstore: fetch many: scan: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memstore: fetch many: %w", err)
	}
	if out == nil {
		out = []memstore.Memory{}
	}
	return out, nil
}

// SimilarMemories implements [memstore.MemoryStore]. It returns memories
// with cosine similarity >= threshold against query, ordered by descending
// similarity, ties broken by higher salience then more recent, capped at
// limit.
func (s *Store) SimilarMemories(ctx context.Context, query []float32, threshold float64, limit int, opts ...memstore.SimilarOpt) ([]memstore.Similarity, error) {
	memType, hasType := memstore.ApplySimilarOpts(opts)

	vec := pgvector.NewVector(query)
	maxDistance := 1 - threshold

	args := []any{vec, maxDistance} // $1 = query vector, $2 = max cosine distance
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"embedding <=> $1 <= $2"}
	if hasType {
		conditions = append(conditions, "memory_type = "+next(string(memType)))
	}

	args = append(args, limit)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1) AS similarity
		FROM   memories
		WHERE  %s
		ORDER  BY similarity DESC, salience_score DESC, created_at DESC
		LIMIT  %s`, strings.Join(conditions, "\n  AND "), limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("memstore: similar memories: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memstore.Similarity, error) {
		var sim memstore.Similarity
		if err := row.Scan(&sim.ID, &sim.Similarity); err != nil {
			return memstore.Similarity{}, err
		}
		return sim, nil
	})
	if err != nil {
		return nil, fmt.Errorf("memstore: similar memories: scan rows: %w", err)
	}
	if results == nil {
		results = []memstore.Similarity{}
	}
	return results, nil
}

// KeywordSearch implements [memstore.MemoryStore]. A record matches iff its
// stored keyword array intersects keywords (set-intersection semantics, not
// ranked text relevance).
func (s *Store) KeywordSearch(ctx context.Context, keywords []string, limit int) ([]memstore.Memory, error) {
	if len(keywords) == 0 {
		return []memstore.Memory{}, nil
	}

	const q = `
		SELECT id, content, summary, was_compressed, trigger_situation, resolution,
		       memory_type, source_agent, embedding, keywords, salience_score,
		       retrieval_count, last_retrieved_at, current_activation, last_activated,
		       context, created_at
		FROM memories
		WHERE keywords && $1
		ORDER BY salience_score DESC, created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, keywords, limit)
	if err != nil {
		return nil, fmt.Errorf("memstore: keyword search: %w", err)
	}
	defer rows.Close()

	var out []memstore.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("memstore: keyword search: scan: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memstore: keyword search: %w", err)
	}
	if out == nil {
		out = []memstore.Memory{}
	}
	return out, nil
}

// IncrementRetrieval implements [memstore.MemoryStore].
func (s *Store) IncrementRetrieval(ctx context.Context, id string) error {
	const q = `
		UPDATE memories
		SET retrieval_count = retrieval_count + 1, last_retrieved_at = now()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("memstore: increment retrieval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return synapseerr.New(synapseerr.KindNotFound, "memory "+id+" not found")
	}
	return nil
}

// SetActivation implements [memstore.MemoryStore]. value is clamped to
// [0,1] before being written. kind selects whether id names a memory or a
// concept, since both domains share one activation-clamping contract.
func (s *Store) SetActivation(ctx context.Context, id string, kind memstore.NodeKind, value float64) error {
	clamped := clamp01(value)
	var q string
	switch kind {
	case memstore.NodeMemory:
		q = `UPDATE memories SET current_activation = $2, last_activated = now() WHERE id = $1`
	case memstore.NodeConcept:
		q = `UPDATE concepts SET current_activation = $2, last_activated = now() WHERE id = $1`
	default:
		return synapseerr.New(synapseerr.KindValidation, "unknown node kind "+string(kind))
	}
	tag, err := s.pool.Exec(ctx, q, id, clamped)
	if err != nil {
		return fmt.Errorf("memstore: set activation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return synapseerr.New(synapseerr.KindNotFound, string(kind)+" "+id+" not found")
	}
	return nil
}

// ListRecent implements [memstore.MemoryStore].
func (s *Store) ListRecent(ctx context.Context, n int) ([]memstore.Memory, error) {
	const q = `
		SELECT id, content, summary, was_compressed, trigger_situation, resolution,
		       memory_type, source_agent, embedding, keywords, salience_score,
		       retrieval_count, last_retrieved_at, current_activation, last_activated,
		       context, created_at
		FROM memories
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("memstore: list recent: %w", err)
	}
	defer rows.Close()

	var out []memstore.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("memstore: list recent: scan: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memstore: list recent: %w", err)
	}
	if out == nil {
		out = []memstore.Memory{}
	}
	return out, nil
}

// ActiveMemories implements [memstore.MemoryStore].
func (s *Store) ActiveMemories(ctx context.Context) ([]memstore.Memory, error) {
	const q = `
		SELECT id, content, summary, was_compressed, trigger_situation, resolution,
		       memory_type, source_agent, embedding, keywords, salience_score,
		       retrieval_count, last_retrieved_at, current_activation, last_activated,
		       context, created_at
		FROM memories
		WHERE current_activation > 0`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("memstore: active memories: %w", err)
	}
	defer rows.Close()

	var out []memstore.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("memstore: active memories: scan: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memstore: active memories: %w", err)
	}
	if out == nil {
		out = []memstore.Memory{}
	}
	return out, nil
}

// MemoryStats implements [memstore.MemoryStore].
func (s *Store) MemoryStats(ctx context.Context) (memstore.MemoryStats, error) {
	stats := memstore.MemoryStats{
		ByType:        make(map[memstore.MemoryType]int),
		BySourceAgent: make(map[string]int),
	}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM memories`).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("memstore: memory stats: total: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT memory_type, count(*) FROM memories GROUP BY memory_type`)
	if err != nil {
		return stats, fmt.Errorf("memstore: memory stats: by type: %w", err)
	}
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			rows.Close()
			return stats, fmt.Errorf("memstore: memory stats: by type scan: %w", err)
		}
		stats.ByType[memstore.MemoryType(t)] = c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("memstore: memory stats: by type: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT source_agent, count(*) FROM memories GROUP BY source_agent`)
	if err != nil {
		return stats, fmt.Errorf("memstore: memory stats: by source agent: %w", err)
	}
	for rows.Next() {
		var a string
		var c int
		if err := rows.Scan(&a, &c); err != nil {
			rows.Close()
			return stats, fmt.Errorf("memstore: memory stats: by source agent scan: %w", err)
		}
		stats.BySourceAgent[a] = c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("memstore: memory stats: by source agent: %w", err)
	}

	return stats, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// memoryRow abstracts over *pgx.Rows and pgx.Row so scanMemory serves both
// single-row and multi-row call sites.
type memoryRow interface {
	Scan(dest ...any) error
}

func scanMemory(row memoryRow) (*memstore.Memory, error) {
	var (
		m           memstore.Memory
		vec         pgvector.Vector
		memType     string
		ctxBlob     []byte
	)
	if err := row.Scan(
		&m.ID, &m.Content, &m.Summary, &m.WasCompressed, &m.TriggerSituation, &m.Resolution,
		&memType, &m.SourceAgent, &vec, &m.Keywords, &m.SalienceScore,
		&m.RetrievalCount, &m.LastRetrievedAt, &m.CurrentActivation, &m.LastActivated,
		&ctxBlob, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.Type = memstore.MemoryType(memType)
	m.Embedding = vec.Slice()
	ctxMap, err := unmarshalContext(ctxBlob)
	if err != nil {
		return nil, err
	}
	m.Context = ctxMap
	return &m, nil
}

func marshalContext(ctx map[string]any) ([]byte, error) {
	if ctx == nil {
		ctx = map[string]any{}
	}
	return json.Marshal(ctx)
}

func unmarshalContext(blob []byte) (map[string]any, error) {
	if len(blob) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func emptyStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
