// Package mcp exposes the associative memory engine's command surface as a
// Model Context Protocol server: recall, store, keyword search, manual
// pathway strengthening, the dream and decay passes, and stat queries. Every
// tool is registered on an official [github.com/modelcontextprotocol/go-sdk]
// server and served over stdio or streamable HTTP, selected by
// [github.com/mwai-labs/synapsed/internal/config.Transport].
//
// Lifecycle:
//
//  1. Call [New] with the engine's store, activator, writer, and
//     consolidator.
//  2. Call [Server.Serve] with a transport and (for streamable-http) a
//     listen address. Serve blocks until ctx is cancelled or the transport
//     reports an unrecoverable error.
//
// All tool handlers are safe for concurrent use; the underlying store and
// embedding gateway own their own concurrency guarantees.
package mcp

import (
	"context"
	"fmt"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mwai-labs/synapsed/internal/config"
	"github.com/mwai-labs/synapsed/internal/observe"
	"github.com/mwai-labs/synapsed/pkg/activate"
	"github.com/mwai-labs/synapsed/pkg/consolidate"
	"github.com/mwai-labs/synapsed/pkg/memstore"
	"github.com/mwai-labs/synapsed/pkg/writepath"
)

// serverName and serverVersion identify this process to connecting MCP
// clients during the initialize handshake.
const (
	serverName    = "synapsed"
	serverVersion = "1.0.0"
)

// Server wraps an [mcpsdk.Server] exposing the engine's command surface.
//
// The zero value is NOT usable; construct with [New].
type Server struct {
	sdk *mcpsdk.Server

	store        memstore.Store
	activator    *activate.Activator
	writer       *writepath.Writer
	consolidator *consolidate.Consolidator
	metrics      *observe.Metrics

	recallDefaults config.RecallConfig
	dreamDefaults  config.DreamConfig
	decayDefaults  config.DecayConfig
}

// New constructs a [Server] and registers every tool. store, activator,
// writer, and consolidator must be non-nil. metrics may be nil, in which
// case tool calls are not instrumented.
func New(
	store memstore.Store,
	activator *activate.Activator,
	writer *writepath.Writer,
	consolidator *consolidate.Consolidator,
	metrics *observe.Metrics,
	recallDefaults config.RecallConfig,
	dreamDefaults config.DreamConfig,
	decayDefaults config.DecayConfig,
) *Server {
	s := &Server{
		sdk:            mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: serverVersion}, nil),
		store:          store,
		activator:      activator,
		writer:         writer,
		consolidator:   consolidator,
		metrics:        metrics,
		recallDefaults: recallDefaults,
		dreamDefaults:  dreamDefaults,
		decayDefaults:  decayDefaults,
	}
	s.registerTools()
	return s
}

// Serve runs the server until ctx is cancelled. For [config.TransportStdio]
// it communicates over stdin/stdout. For [config.TransportStreamableHTTP] it
// listens on listenAddr using the MCP Streamable HTTP protocol.
func (s *Server) Serve(ctx context.Context, transport config.Transport, listenAddr string) error {
	switch transport {
	case config.TransportStdio:
		return s.sdk.Run(ctx, &mcpsdk.StdioTransport{})

	case config.TransportStreamableHTTP:
		if listenAddr == "" {
			return fmt.Errorf("mcp: streamable-http transport requires a non-empty listen address")
		}
		handler := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.sdk }, nil)
		httpServer := &http.Server{Addr: listenAddr, Handler: handler}
		go func() {
			<-ctx.Done()
			_ = httpServer.Close()
		}()
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("mcp: streamable-http server: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("mcp: unknown transport %q", transport)
	}
}
