package embed

import (
	"context"
	"errors"

	"github.com/mwai-labs/synapsed/internal/resilience"
	"github.com/mwai-labs/synapsed/pkg/synapseerr"
)

// Resilient wraps a [Provider] with a circuit breaker so that a flapping
// embedding endpoint fails fast instead of stalling every write/recall
// call. Failures are reported as [synapseerr.KindTransient].
type Resilient struct {
	inner   Provider
	breaker *resilience.CircuitBreaker
}

// NewResilient wraps inner with a circuit breaker using cfg (zero value
// gets the breaker's defaults).
func NewResilient(inner Provider, cfg resilience.CircuitBreakerConfig) *Resilient {
	if cfg.Name == "" {
		cfg.Name = "embedding-gateway"
	}
	return &Resilient{inner: inner, breaker: resilience.NewCircuitBreaker(cfg)}
}

// Embed implements [Provider].
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.breaker.Execute(func() error {
		v, err := r.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, wrapTransient(err)
	}
	return out, nil
}

// EmbedBatch implements [Provider].
func (r *Resilient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.breaker.Execute(func() error {
		v, err := r.inner.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, wrapTransient(err)
	}
	return out, nil
}

// Dimensions implements [Provider].
func (r *Resilient) Dimensions() int { return r.inner.Dimensions() }

// ModelID implements [Provider].
func (r *Resilient) ModelID() string { return r.inner.ModelID() }

func wrapTransient(err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return synapseerr.Wrap(synapseerr.KindTransient, "embedding gateway circuit open", err)
	}
	return synapseerr.Wrap(synapseerr.KindTransient, "embedding gateway call failed", err)
}

var _ Provider = (*Resilient)(nil)
