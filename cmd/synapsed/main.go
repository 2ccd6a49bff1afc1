// Command synapsed is the main entry point for the associative memory engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwai-labs/synapsed/internal/app"
	"github.com/mwai-labs/synapsed/internal/config"
	"github.com/mwai-labs/synapsed/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "synapsed: config file %q not found — create it or pass -config with the path to one\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "synapsed: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("synapsed starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Observability ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "synapsed",
		ServiceVersion: "1.0.0",
	})
	if err != nil {
		slog.Error("failed to initialise observability providers", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── Application wiring ─────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, metrics)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Health/metrics HTTP surface ────────────────────────────────────────────
	var httpServer *http.Server
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		application.HealthHandler().Register(mux)
		mux.Handle("/metrics", promhttp.Handler())
		httpServer = &http.Server{Addr: cfg.Server.ListenAddr, Handler: observe.Middleware(metrics)(mux)}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("health/metrics server error", "err", err)
			}
		}()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("observability shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        synapsed — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Embeddings", fmt.Sprintf("%s / %s", cfg.Embeddings.Name, cfg.Embeddings.Model))
	printField("MCP transport", string(cfg.MCP.Transport))
	if cfg.MCP.ListenAddr != "" {
		printField("MCP listen addr", cfg.MCP.ListenAddr)
	}
	if cfg.Server.ListenAddr != "" {
		printField("Health/metrics", cfg.Server.ListenAddr)
	}
	printField("Embedding dims", fmt.Sprintf("%d", cfg.Database.EmbeddingDimensions))
	printField("Recall depth", fmt.Sprintf("%d hops", cfg.Recall.MaxDepth))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(label, value string) {
	if value == "" || value == "/" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
