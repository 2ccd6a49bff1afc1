package consolidate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mwai-labs/synapsed/pkg/memstore"
)

const (
	DefaultDecayRho           = 0.5
	DefaultDecayMinHours      = 1.0
	DefaultDecayZeroThreshold = 0.001
)

// DecayOptions configures one power-law decay pass.
type DecayOptions struct {
	Rho           float64 // exponent ρ; 0 is a valid, explicit identity decay
	MinHours      float64 // h is clamped to at least this many hours
	ZeroThreshold float64 // floor below which a decayed activation clamps to 0
}

// DefaultDecayOptions returns the tuned defaults for a decay pass.
func DefaultDecayOptions() DecayOptions {
	return DecayOptions{
		Rho:           DefaultDecayRho,
		MinHours:      DefaultDecayMinHours,
		ZeroThreshold: DefaultDecayZeroThreshold,
	}
}

// Decay applies act' = act * h^(-rho) to every node with current_activation
// > 0, where h is the number of hours since last_activated clamped to at
// least opts.MinHours. Decay is time-parameterized, not rate-parameterized:
// running this pass more often does not forget faster, because h is always
// measured from last_activated, not from the previous decay run.
func (c *Consolidator) Decay(ctx context.Context, opts DecayOptions) (memstore.DecayResult, error) {
	// Rho has no fallback here: 0 is a valid, explicit exponent (decay
	// identity, h^0 == 1). Callers that want the tuned default build their
	// options from DefaultDecayOptions instead of the zero value.
	if opts.MinHours <= 0 {
		opts.MinHours = DefaultDecayMinHours
	}
	if opts.ZeroThreshold <= 0 {
		opts.ZeroThreshold = DefaultDecayZeroThreshold
	}

	var result memstore.DecayResult
	now := time.Now()

	stats, err := c.store.ActivationStats(ctx)
	if err != nil {
		return result, fmt.Errorf("consolidate: decay: activation stats: %w", err)
	}
	if stats.ActiveMemoryCount == 0 && stats.ActiveConceptCount == 0 {
		return result, nil
	}

	memories, err := c.store.ActiveMemories(ctx)
	if err != nil {
		return result, fmt.Errorf("consolidate: decay: list memories: %w", err)
	}
	for _, m := range memories {
		if m.CurrentActivation <= 0 || m.LastActivated == nil {
			continue
		}
		next := decayedActivation(m.CurrentActivation, *m.LastActivated, now, opts)
		if err := c.store.SetActivation(ctx, m.ID, memstore.NodeMemory, next); err != nil {
			return result, fmt.Errorf("set activation for memory %s: %w", m.ID, err)
		}
		result.MemoriesDecayed++
		if next == 0 {
			result.MemoriesZeroed++
		}
	}

	concepts, err := c.store.ActiveConcepts(ctx)
	if err != nil {
		return result, fmt.Errorf("consolidate: decay: list concepts: %w", err)
	}
	for _, concept := range concepts {
		if concept.LastActivated == nil {
			continue
		}
		next := decayedActivation(concept.CurrentActivation, *concept.LastActivated, now, opts)
		if err := c.store.SetConceptActivation(ctx, concept.ID, next); err != nil {
			return result, fmt.Errorf("set activation for concept %s: %w", concept.ID, err)
		}
		result.ConceptsDecayed++
		if next == 0 {
			result.ConceptsZeroed++
		}
	}

	return result, nil
}

// decayedActivation computes act' = act * h^(-rho), clamping h to
// opts.MinHours and zeroing out anything below opts.ZeroThreshold.
func decayedActivation(activation float64, lastActivated, now time.Time, opts DecayOptions) float64 {
	h := now.Sub(lastActivated).Hours()
	if h < opts.MinHours {
		h = opts.MinHours
	}
	next := activation * math.Pow(h, -opts.Rho)
	if next < opts.ZeroThreshold {
		return 0
	}
	return next
}
