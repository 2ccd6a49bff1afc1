// Package embed defines the embedding gateway contract: the sole operation
// is turning text into a fixed-dimension real vector. The rest of the
// engine treats embeddings as opaque; d is a system-wide constant set once
// at install time.
package embed

import "context"

// Provider turns text into dense real vectors of fixed dimension
// [Provider.Dimensions]. Implementations are expected to be side-effect
// free; retries and timeouts are the caller's responsibility — see
// [github.com/mwai-labs/synapsed/internal/resilience] for the circuit
// breaker wrapping used around gateway calls in this repository.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts in one round
	// trip, in the same order as texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns d, the fixed vector length this provider produces.
	Dimensions() int

	// ModelID identifies the underlying embedding model, for logging and
	// metrics attribution.
	ModelID() string
}
