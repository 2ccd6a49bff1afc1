package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known embedding provider names.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Database
	if cfg.Database.URL == "" {
		errs = append(errs, fmt.Errorf("database.url is required"))
	}
	if cfg.Database.EmbeddingDimensions == 0 {
		slog.Warn("database.embedding_dimensions not set; defaulting to 1536")
		cfg.Database.EmbeddingDimensions = 1536
	} else if cfg.Database.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("database.embedding_dimensions must be positive"))
	}

	// Embeddings provider
	if cfg.Embeddings.Name == "" {
		errs = append(errs, fmt.Errorf("embeddings.name is required"))
	} else {
		validateProviderName("embeddings", cfg.Embeddings.Name)
	}

	// Recall
	if cfg.Recall.Threshold < 0 || cfg.Recall.Threshold > 1 {
		errs = append(errs, fmt.Errorf("recall.threshold %.2f is out of range [0, 1]", cfg.Recall.Threshold))
	}
	if cfg.Recall.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("recall.max_depth must not be negative"))
	}
	if cfg.Recall.DecayPerHop < 0 || cfg.Recall.DecayPerHop > 1 {
		errs = append(errs, fmt.Errorf("recall.decay_per_hop %.2f is out of range [0, 1]", cfg.Recall.DecayPerHop))
	}
	if cfg.Recall.Limit < 0 {
		errs = append(errs, fmt.Errorf("recall.limit must not be negative"))
	}

	// Dream
	if cfg.Dream.SemanticThreshold < 0 || cfg.Dream.SemanticThreshold > 1 {
		errs = append(errs, fmt.Errorf("dream.semantic_threshold %.2f is out of range [0, 1]", cfg.Dream.SemanticThreshold))
	}
	if cfg.Dream.TemporalWindowHours < 0 {
		errs = append(errs, fmt.Errorf("dream.temporal_window_hours must not be negative"))
	}
	if cfg.Dream.PruneMinStrength < 0 || cfg.Dream.PruneMinStrength > 1 {
		errs = append(errs, fmt.Errorf("dream.prune_min_strength %.2f is out of range [0, 1]", cfg.Dream.PruneMinStrength))
	}
	if cfg.Dream.PruneDaysUnused < 0 {
		errs = append(errs, fmt.Errorf("dream.prune_days_unused must not be negative"))
	}

	// Decay
	if cfg.Decay.Exponent < 0 {
		errs = append(errs, fmt.Errorf("decay.exponent must not be negative"))
	}
	if cfg.Decay.MinHours < 0 {
		errs = append(errs, fmt.Errorf("decay.min_hours must not be negative"))
	}
	if cfg.Decay.ZeroThreshold < 0 || cfg.Decay.ZeroThreshold > 1 {
		errs = append(errs, fmt.Errorf("decay.zero_threshold %.2f is out of range [0, 1]", cfg.Decay.ZeroThreshold))
	}

	// Write
	if cfg.Write.MaxContentLength < 0 {
		errs = append(errs, fmt.Errorf("write.max_content_length must not be negative"))
	}
	if cfg.Write.SurpriseThreshold < 0 || cfg.Write.SurpriseThreshold > 1 {
		errs = append(errs, fmt.Errorf("write.surprise_threshold %.2f is out of range [0, 1]", cfg.Write.SurpriseThreshold))
	}

	// MCP
	if cfg.MCP.Transport != "" && !cfg.MCP.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("mcp.transport %q is invalid; valid values: stdio, streamable-http", cfg.MCP.Transport))
	}
	if cfg.MCP.Transport == TransportStreamableHTTP && cfg.MCP.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("mcp.listen_addr is required when mcp.transport is streamable-http"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
