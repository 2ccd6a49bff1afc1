package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/mwai-labs/synapsed/pkg/memstore"
)

// Compile-time interface check: a single Store satisfies the full
// [memstore.Store] surface directly — SimilarMemories and SimilarConcepts
// don't collide on method name, so no accessor split is needed here.
var _ memstore.Store = (*Store)(nil)

// Store is the PostgreSQL + pgvector backed implementation of
// [memstore.Store]. It holds a single [pgxpool.Pool] shared by the
// memories, concepts, entities, relations, connections, and
// activation_log tables.
//
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store, establishes a bounded connection pool to
// the PostgreSQL database at dsn (max 10 connections, idle connections
// released after 30s, per the engine's resource model), registers pgvector
// types on every connection, and runs [Migrate] to ensure all required
// tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the configured
// embedding gateway. Changing this value after the first migration
// requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 30 * time.Second

	// Register pgvector types on every new connection so that vector
	// columns can be scanned into and inserted from pgvector.Vector
	// values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping reports whether the underlying connection pool can reach the
// database, for use by health checks (see internal/health).
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
// It should be called when the Store is no longer needed, typically via
// defer.
func (s *Store) Close() {
	s.pool.Close()
}

// isNoRows reports whether err represents "no matching row", the signal
// used throughout this package to translate a missing lookup into a
// [memstore] nil-result rather than an error.
func isNoRows(err error) bool {
	return err == pgx.ErrNoRows
}
