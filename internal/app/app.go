// Package app wires all engine subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems (embedding provider, store, retriever, writer, consolidator,
// MCP server, health checks), Run executes the background consolidation
// scheduler, and Shutdown tears everything down in order.
//
// For testing, inject test doubles via functional options (WithStore,
// WithEmbedder). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mwai-labs/synapsed/internal/config"
	"github.com/mwai-labs/synapsed/internal/health"
	"github.com/mwai-labs/synapsed/internal/mcp"
	"github.com/mwai-labs/synapsed/internal/observe"
	"github.com/mwai-labs/synapsed/internal/resilience"
	"github.com/mwai-labs/synapsed/pkg/activate"
	"github.com/mwai-labs/synapsed/pkg/consolidate"
	"github.com/mwai-labs/synapsed/pkg/embed"
	"github.com/mwai-labs/synapsed/pkg/embed/openai"
	"github.com/mwai-labs/synapsed/pkg/memstore"
	"github.com/mwai-labs/synapsed/pkg/memstore/postgres"
	"github.com/mwai-labs/synapsed/pkg/writepath"
)

// App owns all subsystem lifetimes and orchestrates the memory engine.
type App struct {
	cfg *config.Config

	store     memstore.Store
	embedder  embed.Provider
	activator *activate.Activator
	writer    *writepath.Writer
	consolidator *consolidate.Consolidator

	metrics   *observe.Metrics
	mcpServer *mcp.Server
	health    *health.Handler
	scheduler *Scheduler

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config.
func WithStore(s memstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithEmbedder injects an embedding provider instead of creating one from
// config.
func WithEmbedder(e embed.Provider) Option {
	return func(a *App) { a.embedder = e }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for the store or embedder.
//
// New performs all initialisation synchronously: embedding provider
// construction, store connection, retriever/writer/consolidator assembly,
// MCP tool registration, and health-check wiring.
func New(ctx context.Context, cfg *config.Config, metrics *observe.Metrics, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, metrics: metrics}
	for _, o := range opts {
		o(a)
	}

	if err := a.initEmbedder(); err != nil {
		return nil, fmt.Errorf("app: init embedder: %w", err)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.activator = activate.New(a.store, a.embedder)
	a.writer = writepath.New(a.store, a.embedder)
	a.consolidator = consolidate.New(a.store)

	a.mcpServer = mcp.New(a.store, a.activator, a.writer, a.consolidator, a.metrics,
		cfg.Recall, cfg.Dream, cfg.Decay)

	a.health = health.New(
		health.Checker{Name: "database", Check: a.checkDatabase},
		health.Checker{Name: "embeddings", Check: a.checkEmbeddings},
	)

	a.scheduler = NewScheduler(a.consolidator, a.metrics, SchedulerConfig{
		DreamOptions: consolidate.DreamOptions{
			SemanticThreshold:   cfg.Dream.SemanticThreshold,
			TemporalWindowHours: cfg.Dream.TemporalWindowHours,
			PruneMinStrength:    cfg.Dream.PruneMinStrength,
			PruneDaysUnused:     cfg.Dream.PruneDaysUnused,
		},
		DecayOptions: consolidate.DecayOptions{
			Rho:           cfg.Decay.Exponent,
			MinHours:      cfg.Decay.MinHours,
			ZeroThreshold: cfg.Decay.ZeroThreshold,
		},
	})

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initEmbedder wraps the configured embedding provider with a circuit
// breaker, or uses an injected embedder.
func (a *App) initEmbedder() error {
	if a.embedder != nil {
		return nil
	}

	entry := a.cfg.Embeddings
	switch entry.Name {
	case "", "openai":
		var embOpts []openai.Option
		if entry.BaseURL != "" {
			embOpts = append(embOpts, openai.WithBaseURL(entry.BaseURL))
		}
		provider, err := openai.New(entry.APIKey, entry.Model, embOpts...)
		if err != nil {
			return fmt.Errorf("create openai embedding provider: %w", err)
		}
		a.embedder = embed.NewResilient(provider, resilience.CircuitBreakerConfig{
			Name:        "embeddings",
			MaxFailures: 5,
		})
		return nil
	default:
		return fmt.Errorf("unknown embeddings provider %q", entry.Name)
	}
}

// initStore connects to PostgreSQL or uses an injected store.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Database.URL
	if dsn == "" {
		return fmt.Errorf("database.url is required when a store is not injected")
	}

	dims := a.cfg.Database.EmbeddingDimensions
	if dims == 0 {
		dims = a.embedder.Dimensions()
	}

	store, err := postgres.NewStore(ctx, dsn, dims)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

func (a *App) checkDatabase(ctx context.Context) error {
	pinger, ok := a.store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping(ctx)
}

func (a *App) checkEmbeddings(ctx context.Context) error {
	_, err := a.embedder.Embed(ctx, "healthcheck")
	return err
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Store returns the memory store. Never nil after a successful New.
func (a *App) Store() memstore.Store { return a.store }

// Activator returns the spreading-activation retriever.
func (a *App) Activator() *activate.Activator { return a.activator }

// Writer returns the write-pipeline.
func (a *App) Writer() *writepath.Writer { return a.writer }

// Consolidator returns the offline consolidation/decay engine.
func (a *App) Consolidator() *consolidate.Consolidator { return a.consolidator }

// MCPServer returns the Model Context Protocol server exposing the engine's
// command surface.
func (a *App) MCPServer() *mcp.Server { return a.mcpServer }

// HealthHandler returns the liveness/readiness HTTP handler.
func (a *App) HealthHandler() *health.Handler { return a.health }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the background consolidation scheduler and the MCP server,
// blocking until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start(ctx)
	a.closers = append(a.closers, func() error {
		a.scheduler.Stop()
		return nil
	})

	slog.Info("app running")
	return a.mcpServer.Serve(ctx, a.cfg.MCP.Transport, a.cfg.MCP.ListenAddr)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
