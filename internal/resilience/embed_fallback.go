package resilience

import (
	"context"

	"github.com/mwai-labs/synapsed/pkg/embed"
)

// EmbedFallback implements [embed.Provider] with automatic failover across
// multiple embedding backends. Each backend has its own circuit breaker; when
// the primary fails or its breaker is open, the next healthy fallback is
// tried.
type EmbedFallback struct {
	group *FallbackGroup[embed.Provider]
}

// Compile-time interface assertion.
var _ embed.Provider = (*EmbedFallback)(nil)

// NewEmbedFallback creates an [EmbedFallback] with primary as the preferred
// backend.
func NewEmbedFallback(primary embed.Provider, primaryName string, cfg FallbackConfig) *EmbedFallback {
	return &EmbedFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional embedding provider as a fallback.
func (f *EmbedFallback) AddFallback(name string, provider embed.Provider) {
	f.group.AddFallback(name, provider)
}

// Embed sends text to the first healthy provider and returns its vector. If
// the primary fails, subsequent fallbacks are tried.
func (f *EmbedFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(p embed.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch sends a batch of texts to the first healthy provider. A partial
// batch failure is not retried per-item: the whole batch is retried against
// the next fallback.
func (f *EmbedFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(f.group, func(p embed.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the vector dimensionality of the first entry (the
// primary). This does not participate in failover because dimensionality is
// static metadata and fallbacks are expected to share it.
func (f *EmbedFallback) Dimensions() int {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Dimensions()
	}
	return 0
}

// ModelID returns the model identifier of the first entry (the primary).
func (f *EmbedFallback) ModelID() string {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.ModelID()
	}
	return ""
}
