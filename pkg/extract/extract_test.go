package extract

import "testing"

func findEntity(entities []Entity, typ EntityType, text string) (Entity, bool) {
	for _, e := range entities {
		if e.Type == typ && e.Text == text {
			return e, true
		}
	}
	return Entity{}, false
}

func TestExtract_FileAndTool(t *testing.T) {
	entities, relations := Extract("the build broke in main.go because of a missing postgres driver")

	if _, ok := findEntity(entities, TypeFile, "main.go"); !ok {
		t.Errorf("expected main.go to be extracted as a FILE entity, got %+v", entities)
	}
	if _, ok := findEntity(entities, TypeTool, "postgres"); !ok {
		t.Errorf("expected postgres to be extracted as a TOOL entity, got %+v", entities)
	}
	if len(relations) != 0 {
		t.Errorf("expected no relations (no .sql/.py/.ts extension with matching tool), got %+v", relations)
	}
}

func TestExtract_UsesRelationRequiresMatchingTool(t *testing.T) {
	entities, relations := Extract("query.sql uses postgresql under the hood")

	if _, ok := findEntity(entities, TypeFile, "query.sql"); !ok {
		t.Fatalf("expected query.sql to be extracted, got %+v", entities)
	}
	if _, ok := findEntity(entities, TypeTool, "postgresql"); !ok {
		t.Fatalf("expected postgresql to be extracted, got %+v", entities)
	}

	found := false
	for _, r := range relations {
		if r.Predicate == "uses" && r.SubjectText == "query.sql" && r.ObjectText == "postgresql" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a uses(query.sql, postgresql) relation, got %+v", relations)
	}
}

func TestExtract_SolvedRelationBindsEarliestFollowingSolution(t *testing.T) {
	text := "hit NullPointerException while loading the config. solution: added a nil check before dereferencing"
	entities, relations := Extract(text)

	if _, ok := findEntity(entities, TypeError, "NullPointerException"); !ok {
		t.Fatalf("expected NullPointerException to be extracted, got %+v", entities)
	}
	if _, ok := findEntity(entities, TypeSolution, "added a nil check before dereferencing"); !ok {
		t.Fatalf("expected the solution fragment to be extracted, got %+v", entities)
	}

	found := false
	for _, r := range relations {
		if r.Predicate == "solved" && r.ObjectText == "NullPointerException" {
			found = true
			if r.SubjectText != "added a nil check before dereferencing" {
				t.Errorf("solved relation subject = %q, want the solution fragment", r.SubjectText)
			}
		}
	}
	if !found {
		t.Errorf("expected a solved(_, NullPointerException) relation, got %+v", relations)
	}
}

func TestExtract_ErrorCodeFallback(t *testing.T) {
	entities, _ := Extract("the request failed with a 404 response")
	if _, ok := findEntity(entities, TypeError, "404"); !ok {
		t.Errorf("expected 404 to be extracted as an ERROR entity, got %+v", entities)
	}
}

func TestExtract_RepeatedToolMentionYieldsOneEntity(t *testing.T) {
	// The tool pass records a vocabulary word at most once, so repeated
	// mentions of "postgres" produce a single entity.
	entities, _ := Extract("postgres postgres postgres")
	count := 0
	for _, e := range entities {
		if e.Type == TypeTool && e.Text == "postgres" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one deduplicated postgres entity, got %d", count)
	}
}

func TestExtract_CapsAtMaxEntities(t *testing.T) {
	text := `docker kubernetes postgresql redis nginx typescript javascript python
	golang rust react vue terraform ansible jenkins git github gitlab prometheus
	grafana kafka elasticsearch mongodb mysql webpack vite eslint pytest jest`
	entities, _ := Extract(text)
	if len(entities) > maxEntities {
		t.Errorf("got %d entities, want at most %d", len(entities), maxEntities)
	}
}

func TestExtract_NoMatchesReturnsEmpty(t *testing.T) {
	entities, relations := Extract("")
	if len(entities) != 0 {
		t.Errorf("expected no entities for empty text, got %+v", entities)
	}
	if len(relations) != 0 {
		t.Errorf("expected no relations for empty text, got %+v", relations)
	}
}

func TestExtract_ConceptQuotedAndBareTitleCase(t *testing.T) {
	entities, _ := Extract(`we applied "Dependency Injection" and also used Event Sourcing here`)
	if _, ok := findEntity(entities, TypeConcept, "Dependency Injection"); !ok {
		t.Errorf("expected quoted concept to be extracted, got %+v", entities)
	}
	if _, ok := findEntity(entities, TypeConcept, "Event Sourcing"); !ok {
		t.Errorf("expected bare Title Case concept to be extracted, got %+v", entities)
	}
}
