// Package extract implements the entity extractor: a pure function lifting
// typed entities and candidate relations out of memory text using a small
// set of deterministic regexes and a curated tool vocabulary. No machine
// learning and no I/O.
package extract

import (
	"regexp"
	"sort"
	"strings"
)

// EntityType mirrors [github.com/mwai-labs/synapsed/pkg/memstore.EntityType]
// as plain strings so this package stays dependency-free; callers convert
// at the boundary.
type EntityType string

const (
	TypePerson   EntityType = "PERSON"
	TypeTool     EntityType = "TOOL"
	TypeConcept  EntityType = "CONCEPT"
	TypeFile     EntityType = "FILE"
	TypeError    EntityType = "ERROR"
	TypeSolution EntityType = "SOLUTION"
)

// Entity is one extracted noun, tagged with its type and salience.
type Entity struct {
	Text     string
	Type     EntityType
	Salience float64
	// pos is the entity's first occurrence offset within the source text,
	// used internally to order SOLUTIONs for the solved() relation and
	// dropped from the public result.
	pos int
}

// Relation is one inferred relation between two extracted entities.
type Relation struct {
	SubjectText string // predicate-specific: for "solved" this is the solution text
	ObjectText  string // for "solved" this is the error text
	Predicate   string
}

// salienceDefaults are the per-kind defaults. ERROR has two defaults (typed
// error names score higher than bare numeric codes); the regex passes pick
// the right one per match.
const (
	salienceSolution    = 0.9
	salienceErrorTyped  = 0.8
	salienceErrorCode   = 0.75
	salienceFile        = 0.7
	salienceTool        = 0.6
	salienceConcept     = 0.5
)

const (
	maxEntities = 20
)

var (
	// fileRe matches common source-code file paths/names by extension.
	fileRe = regexp.MustCompile(`\b[\w][\w./-]*\.(go|ts|tsx|js|jsx|py|rs|rb|java|c|h|cpp|hpp|sql|yaml|yml|json|md|sh)\b`)

	// typedErrorRe matches CamelCase/PascalCase identifiers ending in
	// "Error" or "Exception", e.g. NullPointerException, ErrNotFound.
	typedErrorRe = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]*(?:Error|Exception)|Err[A-Z][a-zA-Z0-9]*)\b`)

	// errorCodeRe matches numeric error codes: HTTP-style 3-digit codes or
	// "E1234"/"ERR_1234"-style identifiers.
	errorCodeRe = regexp.MustCompile(`\b(?:[45]\d{2}|E[0-9]{3,5}|ERR_[0-9]{3,5})\b`)

	// solutionRe captures the sentence fragment following a solution marker
	// up to the next sentence terminator.
	solutionRe = regexp.MustCompile(`(?i)(?:solution|fix|resolved by)\s*:\s*([^.\n]+)`)

	// conceptRe matches quoted or Title Case multi-word fragments, e.g.
	// "Dependency Injection" or `"Event Sourcing"`.
	conceptRe = regexp.MustCompile(`"([A-Z][a-zA-Z]*(?:\s[A-Z][a-zA-Z]*)+)"|\b([A-Z][a-z]+(?:\s[A-Z][a-z]+){1,3})\b`)
)

// toolVocabulary is a curated, case-insensitive lookup of known tool/
// technology names. Matching is whole-word.
var toolVocabulary = []string{
	"docker", "kubernetes", "postgresql", "postgres", "redis", "nginx",
	"typescript", "javascript", "python", "golang", "rust", "react",
	"vue", "terraform", "ansible", "jenkins", "git", "github", "gitlab",
	"prometheus", "grafana", "kafka", "elasticsearch", "mongodb", "mysql",
	"webpack", "vite", "eslint", "pytest", "jest",
}

// extensionToTool maps a file extension to the canonical tool name it
// implies, for the deterministic uses(file, tool) relation.
var extensionToTool = map[string]string{
	"ts":  "typescript",
	"tsx": "react",
	"sql": "postgresql",
	"py":  "python",
	"rs":  "rust",
}

// Extract runs the five independent passes over text and returns
// deduplicated, salience-sorted entities (capped at 20) plus the
// deterministic relations inferred between them.
func Extract(text string) ([]Entity, []Relation) {
	var all []Entity

	all = append(all, extractFiles(text)...)
	all = append(all, extractErrors(text)...)
	all = append(all, extractTools(text)...)
	all = append(all, extractSolutions(text)...)
	all = append(all, extractConcepts(text)...)

	entities := dedupe(all)

	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Salience > entities[j].Salience
	})
	if len(entities) > maxEntities {
		entities = entities[:maxEntities]
	}

	relations := inferRelations(entities)

	return stripPositions(entities), relations
}

func extractFiles(text string) []Entity {
	var out []Entity
	for _, loc := range fileRe.FindAllStringIndex(text, -1) {
		out = append(out, Entity{
			Text:     text[loc[0]:loc[1]],
			Type:     TypeFile,
			Salience: salienceFile,
			pos:      loc[0],
		})
	}
	return out
}

func extractErrors(text string) []Entity {
	var out []Entity
	for _, loc := range typedErrorRe.FindAllStringIndex(text, -1) {
		out = append(out, Entity{
			Text:     text[loc[0]:loc[1]],
			Type:     TypeError,
			Salience: salienceErrorTyped,
			pos:      loc[0],
		})
	}
	for _, loc := range errorCodeRe.FindAllStringIndex(text, -1) {
		out = append(out, Entity{
			Text:     text[loc[0]:loc[1]],
			Type:     TypeError,
			Salience: salienceErrorCode,
			pos:      loc[0],
		})
	}
	return out
}

func extractTools(text string) []Entity {
	lower := strings.ToLower(text)
	var out []Entity
	for _, tool := range toolVocabulary {
		idx := indexWholeWord(lower, tool)
		if idx < 0 {
			continue
		}
		out = append(out, Entity{
			Text:     tool,
			Type:     TypeTool,
			Salience: salienceTool,
			pos:      idx,
		})
	}
	return out
}

func extractSolutions(text string) []Entity {
	var out []Entity
	for _, m := range solutionRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, Entity{
			Text:     strings.TrimSpace(text[m[2]:m[3]]),
			Type:     TypeSolution,
			Salience: salienceSolution,
			pos:      m[2],
		})
	}
	return out
}

func extractConcepts(text string) []Entity {
	var out []Entity
	for _, m := range conceptRe.FindAllStringSubmatchIndex(text, -1) {
		var start, end int
		switch {
		case m[2] >= 0: // quoted group
			start, end = m[2], m[3]
		case m[4] >= 0: // bare Title Case group
			start, end = m[4], m[5]
		default:
			continue
		}
		out = append(out, Entity{
			Text:     text[start:end],
			Type:     TypeConcept,
			Salience: salienceConcept,
			pos:      start,
		})
	}
	return out
}

// dedupe keeps the highest-salience occurrence per (type, lowercased text)
// key. On a tie it keeps the earliest-positioned occurrence, so
// solved()/uses() inference downstream stays deterministic.
func dedupe(entities []Entity) []Entity {
	best := make(map[string]Entity, len(entities))
	order := make([]string, 0, len(entities))
	for _, e := range entities {
		key := string(e.Type) + "\x00" + strings.ToLower(e.Text)
		cur, ok := best[key]
		if !ok {
			best[key] = e
			order = append(order, key)
			continue
		}
		if e.Salience > cur.Salience || (e.Salience == cur.Salience && e.pos < cur.pos) {
			best[key] = e
		}
	}
	out := make([]Entity, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// inferRelations implements the two deterministic relation families:
// solved(solution, error) and uses(file, tool).
func inferRelations(entities []Entity) []Relation {
	var (
		errors    []Entity
		solutions []Entity
		files     []Entity
		tools     = make(map[string]bool)
	)
	for _, e := range entities {
		switch e.Type {
		case TypeError:
			errors = append(errors, e)
		case TypeSolution:
			solutions = append(solutions, e)
		case TypeFile:
			files = append(files, e)
		case TypeTool:
			tools[strings.ToLower(e.Text)] = true
		}
	}
	sort.Slice(solutions, func(i, j int) bool { return solutions[i].pos < solutions[j].pos })

	var relations []Relation

	// solved(solution, error): bind each error to the earliest solution
	// occurring after it in the text.
	for _, err := range errors {
		for _, sol := range solutions {
			if sol.pos > err.pos {
				relations = append(relations, Relation{
					SubjectText: sol.Text,
					Predicate:   "solved",
					ObjectText:  err.Text,
				})
				break
			}
		}
	}

	// uses(file, tool): map file extension to canonical tool name, emit the
	// relation only if that tool was also extracted.
	for _, f := range files {
		ext := fileExtension(f.Text)
		tool, ok := extensionToTool[ext]
		if !ok {
			continue
		}
		if tools[tool] {
			relations = append(relations, Relation{
				SubjectText: f.Text,
				Predicate:   "uses",
				ObjectText:  tool,
			})
		}
	}

	return relations
}

func fileExtension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

func indexWholeWord(haystack, word string) int {
	start := 0
	for {
		idx := strings.Index(haystack[start:], word)
		if idx < 0 {
			return -1
		}
		abs := start + idx
		before := abs == 0 || !isWordByte(haystack[abs-1])
		afterIdx := abs + len(word)
		after := afterIdx >= len(haystack) || !isWordByte(haystack[afterIdx])
		if before && after {
			return abs
		}
		start = abs + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

func stripPositions(entities []Entity) []Entity {
	out := make([]Entity, len(entities))
	for i, e := range entities {
		e.pos = 0
		out[i] = e
	}
	return out
}
