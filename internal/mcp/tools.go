package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mwai-labs/synapsed/pkg/activate"
	"github.com/mwai-labs/synapsed/pkg/consolidate"
	"github.com/mwai-labs/synapsed/pkg/memstore"
	"github.com/mwai-labs/synapsed/pkg/writepath"
)

// registerTools adds every tool in the command surface to s.sdk. Each
// handler records its outcome through s.metrics (when non-nil) using the
// tool's registered name as the metric attribute.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "recall",
		Description: "Retrieve memories relevant to a query via spreading activation or direct similarity search.",
	}, s.handleRecall)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "store",
		Description: "Write a new memory through the full salience/compression/embedding/entity-extraction pipeline.",
	}, s.handleStore)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "search_by_keywords",
		Description: "Find memories whose stored keyword set intersects the given keywords.",
	}, s.handleSearchByKeywords)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "strengthen_pathway",
		Description: "Manually reinforce the connection between two nodes in the plasticity graph.",
	}, s.handleStrengthenPathway)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "trigger_dream",
		Description: "Run an offline consolidation pass: semantic linking, episodic binding, co-activation reinforcement, pruning.",
	}, s.handleTriggerDream)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "run_decay",
		Description: "Apply power-law activation decay to every active memory and concept.",
	}, s.handleRunDecay)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_memory_stats",
		Description: "Report aggregate counts over the memory table.",
	}, s.handleGetMemoryStats)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_connection_stats",
		Description: "Report aggregate counts over the connection graph.",
	}, s.handleGetConnectionStats)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_activation_stats",
		Description: "Report aggregate transient activation state.",
	}, s.handleGetActivationStats)
}

// result wraps v as a successful tool call outcome. The SDK derives the
// structured-content block and the tool's output schema from T.
func result[T any](v T) (*mcpsdk.CallToolResult, T, error) {
	return nil, v, nil
}

// toolError records a failed call on the named tool and returns it as a
// protocol-level tool error rather than a transport error, so the calling
// agent sees the failure instead of the connection dying.
func toolError[T any](s *Server, ctx context.Context, tool string, err error) (*mcpsdk.CallToolResult, T, error) {
	s.recordCall(ctx, tool, "error")
	var zero T
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}, zero, nil
}

func (s *Server) recordCall(ctx context.Context, tool, status string) {
	if s.metrics != nil {
		s.metrics.RecordToolCall(ctx, tool, status)
	}
}

// recallArgs is the input to the recall tool. Zero-valued numeric fields
// fall back to the engine's configured recall defaults.
type recallArgs struct {
	// Query is the natural-language text to seed retrieval with.
	Query string `json:"query"`
	// Threshold is the minimum cosine similarity for a seed hit. 0 uses the
	// configured default.
	Threshold float64 `json:"threshold,omitempty"`
	// MaxDepth bounds spreading-activation hops. 0 uses the configured
	// default.
	MaxDepth int `json:"max_depth,omitempty"`
	// DecayPerHop is the per-hop geometric activation decay. 0 uses the
	// configured default.
	DecayPerHop float64 `json:"decay_per_hop,omitempty"`
	// Limit caps the number of results returned. 0 uses the configured
	// default.
	Limit int `json:"limit,omitempty"`
	// MemoryType restricts results to one memory type. Empty means no
	// restriction.
	MemoryType string `json:"memory_type,omitempty"`
	// Agent attributes the retrieval event to a calling agent for the
	// activation log.
	Agent string `json:"agent,omitempty"`
	// DisableSpreading skips graph traversal and returns direct similarity
	// hits only.
	DisableSpreading bool `json:"disable_spreading,omitempty"`
}

// recallHit mirrors [activate.Result] for JSON transport.
type recallHit struct {
	Memory     memstore.Memory `json:"memory"`
	Activation float64         `json:"activation"`
}

type recallOutput struct {
	Results []recallHit `json:"results"`
}

func (s *Server) handleRecall(ctx context.Context, _ *mcpsdk.CallToolRequest, in recallArgs) (*mcpsdk.CallToolResult, recallOutput, error) {
	if in.Query == "" {
		return toolError[recallOutput](s, ctx, "recall", fmt.Errorf("recall: query must not be empty"))
	}

	opts := activate.Options{
		Threshold:    s.recallDefaults.Threshold,
		MaxDepth:     s.recallDefaults.MaxDepth,
		DecayPerHop:  s.recallDefaults.DecayPerHop,
		Limit:        s.recallDefaults.Limit,
		Agent:        in.Agent,
		UseSpreading: !in.DisableSpreading,
	}
	if in.Threshold > 0 {
		opts.Threshold = in.Threshold
	}
	if in.MaxDepth > 0 {
		opts.MaxDepth = in.MaxDepth
	}
	if in.DecayPerHop > 0 {
		opts.DecayPerHop = in.DecayPerHop
	}
	if in.Limit > 0 {
		opts.Limit = in.Limit
	}
	if in.MemoryType != "" {
		mt := memstore.MemoryType(in.MemoryType)
		if !mt.IsValid() {
			return toolError[recallOutput](s, ctx, "recall", fmt.Errorf("recall: unrecognized memory_type %q", in.MemoryType))
		}
		opts.MemoryType = mt
		opts.HasMemoryType = true
	}

	results, err := s.activator.Recall(ctx, in.Query, opts)
	if err != nil {
		return toolError[recallOutput](s, ctx, "recall", fmt.Errorf("recall: %w", err))
	}

	hits := make([]recallHit, len(results))
	for i, r := range results {
		hits[i] = recallHit{Memory: r.Memory, Activation: r.Activation}
	}
	s.recordCall(ctx, "recall", "ok")
	return result(recallOutput{Results: hits})
}

// storeArgs is the input to the store tool.
type storeArgs struct {
	// Content is the memory text itself.
	Content string `json:"content"`
	// Trigger describes the situation that should cause this memory to be
	// recalled.
	Trigger string `json:"trigger"`
	// Resolution describes how the situation was resolved, if applicable.
	Resolution string `json:"resolution,omitempty"`
	// Type is one of episodic, semantic, procedural.
	Type string `json:"type"`
	// SourceAgent attributes the memory to the agent that produced it.
	SourceAgent string `json:"source_agent,omitempty"`
	// WasUserCorrected raises base salience: the agent was corrected by a
	// human or peer in reaching this memory.
	WasUserCorrected bool `json:"was_user_corrected,omitempty"`
	// WasSurprising raises base salience independent of the embedding-space
	// surprise score computed internally.
	WasSurprising bool `json:"was_surprising,omitempty"`
	// ErrorRecovered raises base salience: this memory records recovery from
	// an error.
	ErrorRecovered bool `json:"error_recovered,omitempty"`
	// EffortLevel is one of none, medium, high; higher effort raises base
	// salience. Empty means none.
	EffortLevel string `json:"effort_level,omitempty"`
}

type storeOutput struct {
	ID            string  `json:"id"`
	WasCompressed bool    `json:"was_compressed"`
	SurpriseScore float64 `json:"surprise_score"`
	EntityCount   int     `json:"entity_count"`
}

func (s *Server) handleStore(ctx context.Context, _ *mcpsdk.CallToolRequest, in storeArgs) (*mcpsdk.CallToolResult, storeOutput, error) {
	if in.Content == "" {
		return toolError[storeOutput](s, ctx, "store", fmt.Errorf("store: content must not be empty"))
	}
	typ := memstore.MemoryType(in.Type)
	if !typ.IsValid() {
		return toolError[storeOutput](s, ctx, "store", fmt.Errorf("store: unrecognized type %q", in.Type))
	}

	effort := writepath.EffortNone
	if in.EffortLevel != "" {
		effort = writepath.EffortLevel(in.EffortLevel)
	}

	res, err := s.writer.Write(ctx, writepath.Input{
		Content:     in.Content,
		Trigger:     in.Trigger,
		Resolution:  in.Resolution,
		Type:        typ,
		SourceAgent: in.SourceAgent,
		Signals: writepath.SalienceSignals{
			WasUserCorrected: in.WasUserCorrected,
			WasSurprising:    in.WasSurprising,
			ErrorRecovered:   in.ErrorRecovered,
			EffortLevel:      effort,
		},
	})
	if err != nil {
		return toolError[storeOutput](s, ctx, "store", fmt.Errorf("store: %w", err))
	}

	s.recordCall(ctx, "store", "ok")
	return result(storeOutput{
		ID:            res.ID,
		WasCompressed: res.WasCompressed,
		SurpriseScore: res.SurpriseScore,
		EntityCount:   res.EntityCount,
	})
}

type searchByKeywordsArgs struct {
	// Keywords is the set of terms to intersect against each memory's stored
	// keyword set.
	Keywords []string `json:"keywords"`
	// Limit caps the number of memories returned.
	Limit int `json:"limit,omitempty"`
}

type searchByKeywordsOutput struct {
	Memories []memstore.Memory `json:"memories"`
}

func (s *Server) handleSearchByKeywords(ctx context.Context, _ *mcpsdk.CallToolRequest, in searchByKeywordsArgs) (*mcpsdk.CallToolResult, searchByKeywordsOutput, error) {
	if len(in.Keywords) == 0 {
		return toolError[searchByKeywordsOutput](s, ctx, "search_by_keywords", fmt.Errorf("search_by_keywords: keywords must not be empty"))
	}
	limit := in.Limit
	if limit <= 0 {
		limit = activate.DefaultLimit
	}

	memories, err := s.store.KeywordSearch(ctx, in.Keywords, limit)
	if err != nil {
		return toolError[searchByKeywordsOutput](s, ctx, "search_by_keywords", fmt.Errorf("search_by_keywords: %w", err))
	}

	s.recordCall(ctx, "search_by_keywords", "ok")
	return result(searchByKeywordsOutput{Memories: memories})
}

// strengthenPathwayArgs is the input to the strengthen_pathway tool: a
// manual, explicit Hebbian reinforcement distinct from the automatic
// strengthening that recall and consolidation perform.
type strengthenPathwayArgs struct {
	SourceID   string  `json:"source_id"`
	SourceKind string  `json:"source_kind"`
	TargetID   string  `json:"target_id"`
	TargetKind string  `json:"target_kind"`
	Type       string  `json:"connection_type"`
	// Alpha is the Hebbian learning rate applied as w' = w + alpha*(1-w).
	Alpha float64 `json:"alpha"`
}

type strengthenPathwayOutput struct {
	Strength float64 `json:"strength"`
}

func (s *Server) handleStrengthenPathway(ctx context.Context, _ *mcpsdk.CallToolRequest, in strengthenPathwayArgs) (*mcpsdk.CallToolResult, strengthenPathwayOutput, error) {
	sourceKind := memstore.NodeKind(in.SourceKind)
	targetKind := memstore.NodeKind(in.TargetKind)
	if !sourceKind.IsValid() || !targetKind.IsValid() {
		return toolError[strengthenPathwayOutput](s, ctx, "strengthen_pathway", fmt.Errorf("strengthen_pathway: node kinds must be %q or %q", memstore.NodeMemory, memstore.NodeConcept))
	}
	typ := memstore.ConnectionType(in.Type)
	if !typ.IsValid() {
		return toolError[strengthenPathwayOutput](s, ctx, "strengthen_pathway", fmt.Errorf("strengthen_pathway: unrecognized connection_type %q", in.Type))
	}
	if in.Alpha <= 0 || in.Alpha > 1 {
		return toolError[strengthenPathwayOutput](s, ctx, "strengthen_pathway", fmt.Errorf("strengthen_pathway: alpha must be in (0,1]"))
	}

	strength, err := s.store.Strengthen(ctx,
		memstore.Node{ID: in.SourceID, Kind: sourceKind},
		memstore.Node{ID: in.TargetID, Kind: targetKind},
		in.Alpha, typ)
	if err != nil {
		return toolError[strengthenPathwayOutput](s, ctx, "strengthen_pathway", fmt.Errorf("strengthen_pathway: %w", err))
	}

	s.recordCall(ctx, "strengthen_pathway", "ok")
	return result(strengthenPathwayOutput{Strength: strength})
}

// triggerDreamArgs is the input to the trigger_dream tool. Zero-valued
// fields fall back to the engine's configured dream defaults.
type triggerDreamArgs struct {
	SemanticThreshold   float64 `json:"semantic_threshold,omitempty"`
	TemporalWindowHours float64 `json:"temporal_window_hours,omitempty"`
	PruneMinStrength    float64 `json:"prune_min_strength,omitempty"`
	PruneDaysUnused     int     `json:"prune_days_unused,omitempty"`
}

func (s *Server) handleTriggerDream(ctx context.Context, _ *mcpsdk.CallToolRequest, in triggerDreamArgs) (*mcpsdk.CallToolResult, memstore.DreamLog, error) {
	opts := consolidate.DreamOptions{
		SemanticThreshold:   s.dreamDefaults.SemanticThreshold,
		TemporalWindowHours: s.dreamDefaults.TemporalWindowHours,
		PruneMinStrength:    s.dreamDefaults.PruneMinStrength,
		PruneDaysUnused:     s.dreamDefaults.PruneDaysUnused,
	}
	if in.SemanticThreshold > 0 {
		opts.SemanticThreshold = in.SemanticThreshold
	}
	if in.TemporalWindowHours > 0 {
		opts.TemporalWindowHours = in.TemporalWindowHours
	}
	if in.PruneMinStrength > 0 {
		opts.PruneMinStrength = in.PruneMinStrength
	}
	if in.PruneDaysUnused > 0 {
		opts.PruneDaysUnused = in.PruneDaysUnused
	}

	log, err := s.consolidator.Dream(ctx, opts)
	if err != nil {
		return toolError[memstore.DreamLog](s, ctx, "trigger_dream", fmt.Errorf("trigger_dream: %w", err))
	}

	s.recordCall(ctx, "trigger_dream", "ok")
	return result(log)
}

// runDecayArgs is the input to the run_decay tool. Omitted fields fall back
// to the engine's configured decay defaults. Exponent is a pointer so an
// explicit 0 (decay identity) is distinguishable from "not supplied" — a
// bare float would coerce either one to the configured default.
type runDecayArgs struct {
	Exponent      *float64 `json:"exponent,omitempty"`
	MinHours      float64  `json:"min_hours,omitempty"`
	ZeroThreshold float64  `json:"zero_threshold,omitempty"`
}

func (s *Server) handleRunDecay(ctx context.Context, _ *mcpsdk.CallToolRequest, in runDecayArgs) (*mcpsdk.CallToolResult, memstore.DecayResult, error) {
	opts := consolidate.DecayOptions{
		Rho:           s.decayDefaults.Exponent,
		MinHours:      s.decayDefaults.MinHours,
		ZeroThreshold: s.decayDefaults.ZeroThreshold,
	}
	if in.Exponent != nil {
		opts.Rho = *in.Exponent
	}
	if in.MinHours > 0 {
		opts.MinHours = in.MinHours
	}
	if in.ZeroThreshold > 0 {
		opts.ZeroThreshold = in.ZeroThreshold
	}

	res, err := s.consolidator.Decay(ctx, opts)
	if err != nil {
		return toolError[memstore.DecayResult](s, ctx, "run_decay", fmt.Errorf("run_decay: %w", err))
	}

	s.recordCall(ctx, "run_decay", "ok")
	return result(res)
}

type emptyArgs struct{}

func (s *Server) handleGetMemoryStats(ctx context.Context, _ *mcpsdk.CallToolRequest, _ emptyArgs) (*mcpsdk.CallToolResult, memstore.MemoryStats, error) {
	stats, err := s.store.MemoryStats(ctx)
	if err != nil {
		return toolError[memstore.MemoryStats](s, ctx, "get_memory_stats", fmt.Errorf("get_memory_stats: %w", err))
	}
	s.recordCall(ctx, "get_memory_stats", "ok")
	return result(stats)
}

func (s *Server) handleGetConnectionStats(ctx context.Context, _ *mcpsdk.CallToolRequest, _ emptyArgs) (*mcpsdk.CallToolResult, memstore.ConnectionStats, error) {
	stats, err := s.store.ConnectionStats(ctx)
	if err != nil {
		return toolError[memstore.ConnectionStats](s, ctx, "get_connection_stats", fmt.Errorf("get_connection_stats: %w", err))
	}
	s.recordCall(ctx, "get_connection_stats", "ok")
	return result(stats)
}

func (s *Server) handleGetActivationStats(ctx context.Context, _ *mcpsdk.CallToolRequest, _ emptyArgs) (*mcpsdk.CallToolResult, memstore.ActivationStats, error) {
	stats, err := s.store.ActivationStats(ctx)
	if err != nil {
		return toolError[memstore.ActivationStats](s, ctx, "get_activation_stats", fmt.Errorf("get_activation_stats: %w", err))
	}
	s.recordCall(ctx, "get_activation_stats", "ok")
	return result(stats)
}
