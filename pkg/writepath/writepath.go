// Package writepath implements the write pipeline that sits in front of
// the memory store and connection graph: salience scoring, compression,
// embedding, surprise scoring, keyword extraction, and entity/relation
// persistence.
package writepath

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mwai-labs/synapsed/pkg/embed"
	"github.com/mwai-labs/synapsed/pkg/extract"
	"github.com/mwai-labs/synapsed/pkg/memstore"
)

const (
	DefaultMaxContentLength = 500
	DefaultSurpriseThreshold = 0.7
	recentWindow             = 5
	keywordMinLength         = 4
	keywordTopN              = 10
)

// Salience signal weights applied during base salience scoring.
const (
	baseSalience           = 0.3
	salienceUserCorrected  = 0.35
	salienceSurprising     = 0.25
	salienceErrorRecovered = 0.3
	salienceEffortHigh     = 0.25
	salienceEffortMedium   = 0.15
)

// EffortLevel is the closed set of effort-level salience signals.
type EffortLevel string

const (
	EffortNone   EffortLevel = ""
	EffortMedium EffortLevel = "medium"
	EffortHigh   EffortLevel = "high"
)

// SalienceSignals carries the write-time signals base salience is
// computed from.
type SalienceSignals struct {
	WasUserCorrected bool
	WasSurprising    bool
	ErrorRecovered   bool
	EffortLevel      EffortLevel
}

// Input is one write request.
type Input struct {
	Content     string
	Trigger     string
	Resolution  string
	Type        memstore.MemoryType
	Signals     SalienceSignals
	SourceAgent string
}

// Result reports what the write pipeline did.
type Result struct {
	ID            string
	WasCompressed bool
	SurpriseScore float64
	EntityCount   int
}

// Writer runs the write pipeline against a store and embedding gateway.
type Writer struct {
	store    memstore.Store
	embedder embed.Provider
}

// New constructs a Writer.
func New(store memstore.Store, embedder embed.Provider) *Writer {
	return &Writer{store: store, embedder: embedder}
}

var solutionPatternRe = regexp.MustCompile(`(?i)(?:solution|fix|resolved by)\s*:[^.\n]*[.\n]?`)
var sentenceEndRe = regexp.MustCompile(`[.!?]`)

// Write runs the full 8-step pipeline: salience, compression, embedding,
// surprise scoring, salience adjustment, keyword extraction, insertion, and
// entity/relation persistence.
func (w *Writer) Write(ctx context.Context, in Input) (Result, error) {
	if err := validate(in); err != nil {
		return Result{}, err
	}

	// 1. Base salience.
	salience := computeBaseSalience(in.Signals)

	// 2. Compression.
	content, wasCompressed, originalLength := compress(in.Content)

	// 3. Embedding.
	embedding, err := w.embedder.Embed(ctx, in.Trigger+"\n"+content)
	if err != nil {
		return Result{}, fmt.Errorf("writepath: embed: %w", err)
	}

	// 4. Surprise scoring.
	surprise, err := w.surpriseScore(ctx, embedding)
	if err != nil {
		return Result{}, fmt.Errorf("writepath: surprise score: %w", err)
	}

	// 5. Salience adjustment.
	if surprise >= DefaultSurpriseThreshold {
		salience = math.Min(1, salience*(1+surprise*0.3))
	}

	// 6. Keywords.
	keywords := extractKeywords(in.Trigger + " " + content)

	// 7. Insert memory.
	memCtx := map[string]any{}
	if wasCompressed {
		memCtx["original_length"] = originalLength
	}
	memory := memstore.Memory{
		Content:          content,
		TriggerSituation: in.Trigger,
		Resolution:       in.Resolution,
		WasCompressed:    wasCompressed,
		Type:             in.Type,
		SourceAgent:      in.SourceAgent,
		Embedding:        embedding,
		Keywords:         keywords,
		SalienceScore:    salience,
		Context:          memCtx,
	}
	if wasCompressed {
		memory.Summary = content
	}

	id, err := w.store.InsertMemory(ctx, memory)
	if err != nil {
		return Result{}, fmt.Errorf("writepath: insert memory: %w", err)
	}

	// 8. Entity/relation extraction — non-fatal on failure.
	entityCount := w.persistEntities(ctx, id, in.Content)

	return Result{
		ID:            id,
		WasCompressed: wasCompressed,
		SurpriseScore: surprise,
		EntityCount:   entityCount,
	}, nil
}

func validate(in Input) error {
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("writepath: content must not be empty")
	}
	if strings.TrimSpace(in.SourceAgent) == "" {
		return fmt.Errorf("writepath: source_agent must not be empty")
	}
	if !in.Type.IsValid() {
		return fmt.Errorf("writepath: invalid memory type %q", in.Type)
	}
	return nil
}

func computeBaseSalience(s SalienceSignals) float64 {
	salience := baseSalience
	if s.WasUserCorrected {
		salience += salienceUserCorrected
	}
	if s.WasSurprising {
		salience += salienceSurprising
	}
	if s.ErrorRecovered {
		salience += salienceErrorRecovered
	}
	switch s.EffortLevel {
	case EffortHigh:
		salience += salienceEffortHigh
	case EffortMedium:
		salience += salienceEffortMedium
	}
	return math.Min(1, salience)
}

// compress implements step 2: content over the length ceiling is reduced
// to its first sentence plus its first solution-pattern match.
func compress(content string) (compressed string, wasCompressed bool, originalLength int) {
	if len(content) <= DefaultMaxContentLength {
		return content, false, len(content)
	}

	originalLength = len(content)

	firstSentence := content
	if loc := sentenceEndRe.FindStringIndex(content); loc != nil {
		firstSentence = strings.TrimSpace(content[:loc[1]])
	}

	solutionMatch := solutionPatternRe.FindString(content)
	solutionMatch = strings.TrimSpace(solutionMatch)

	if solutionMatch != "" && !strings.Contains(firstSentence, solutionMatch) {
		compressed = firstSentence + " " + solutionMatch
	} else {
		compressed = firstSentence
	}
	return compressed, true, originalLength
}

// surpriseScore implements step 4: surprise = max(0, 1 - mean cosine
// similarity) against up to 5 most recent memories; an empty recent set
// scores 0.5.
func (w *Writer) surpriseScore(ctx context.Context, embedding []float32) (float64, error) {
	recent, err := w.store.ListRecent(ctx, recentWindow)
	if err != nil {
		return 0, err
	}
	if len(recent) == 0 {
		return 0.5, nil
	}

	var sum float64
	for _, m := range recent {
		sum += cosineSimilarity(embedding, m.Embedding)
	}
	mean := sum / float64(len(recent))
	return math.Max(0, 1-mean), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var wordRe = regexp.MustCompile(`[a-zA-Z]+`)

var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"were": true, "been": true, "they": true, "their": true, "which": true,
	"when": true, "what": true, "there": true, "here": true, "then": true,
	"than": true, "into": true, "about": true, "after": true, "before": true,
	"would": true, "could": true, "should": true, "these": true, "those": true,
	"will": true, "just": true, "over": true, "some": true, "such": true,
}

// extractKeywords implements step 6: lowercase, strip stopwords, keep
// words of at least keywordMinLength, return the top-10 by frequency
// (ties broken alphabetically for determinism).
func extractKeywords(text string) []string {
	freq := make(map[string]int)
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len(w) < keywordMinLength || stopwords[w] {
			continue
		}
		freq[w]++
	}
	if len(freq) == 0 {
		return nil
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > keywordTopN {
		words = words[:keywordTopN]
	}
	return words
}

// persistEntities implements step 8: extract entities/relations from the
// original (uncompressed) content and persist them. Failures here are
// non-fatal — the memory is already stored.
func (w *Writer) persistEntities(ctx context.Context, memoryID, content string) int {
	entities, relations := extract.Extract(content)

	type entityKey struct {
		typ  memstore.EntityType
		text string
	}
	idByKey := make(map[entityKey]string, len(entities))
	count := 0

	for _, e := range entities {
		entType := memstore.EntityType(e.Type)
		id, err := w.store.AddEntity(ctx, memstore.Entity{
			MemoryID:      memoryID,
			EntityText:    e.Text,
			EntityType:    entType,
			SalienceScore: e.Salience,
		})
		if err != nil {
			slog.Warn("writepath: add entity failed, skipping", "memory_id", memoryID, "text", e.Text, "err", err)
			continue
		}
		idByKey[entityKey{entType, strings.ToLower(e.Text)}] = id
		count++
	}

	for _, r := range relations {
		subjType, objType, ok := relationEntityTypes(r.Predicate)
		if !ok {
			continue
		}
		subjID, ok1 := idByKey[entityKey{subjType, strings.ToLower(r.SubjectText)}]
		objID, ok2 := idByKey[entityKey{objType, strings.ToLower(r.ObjectText)}]
		if !ok1 || !ok2 {
			continue
		}
		_, err := w.store.AddRelation(ctx, memstore.Relation{
			MemoryID:        memoryID,
			SubjectEntityID: subjID,
			Predicate:       r.Predicate,
			ObjectEntityID:  objID,
			Confidence:      1.0,
			ValidFrom:       time.Now(),
			Status:          memstore.RelationActive,
		})
		if err != nil {
			slog.Warn("writepath: add relation failed, skipping", "memory_id", memoryID, "predicate", r.Predicate, "err", err)
		}
	}

	return count
}

func relationEntityTypes(predicate string) (subj, obj memstore.EntityType, ok bool) {
	switch predicate {
	case "solved":
		return memstore.EntitySolution, memstore.EntityError, true
	case "uses":
		return memstore.EntityFile, memstore.EntityTool, true
	default:
		return "", "", false
	}
}
