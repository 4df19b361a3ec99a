package neo4j

import (
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/thirai-kg/backend/pkg/store"
)

func TestEntityStatement(t *testing.T) {
	stmt := entityStatement(store.EntityMerge{
		Label: "Movie",
		Key:   "jailer",
		Properties: map[string]any{
			"display_name": "Jailer",
			"release_year": int64(2023),
			"genre":        nil,
		},
	})

	for _, want := range []string{
		"MERGE (n:`Movie` {identity_key: $key})",
		"SET n.`display_name` = coalesce(n.`display_name`, $props['display_name']), n.`release_year` = coalesce(n.`release_year`, $props['release_year'])",
		"RETURN created, before",
	} {
		if !strings.Contains(stmt, want) {
			t.Fatalf("statement is missing %q:\n%s", want, stmt)
		}
	}
	if strings.Contains(stmt, "genre") {
		t.Fatalf("null properties must not be set:\n%s", stmt)
	}
}

func TestRelationStatement(t *testing.T) {
	stmt := relationStatement(store.RelationMerge{
		Type:        "ACTED_IN",
		SourceLabel: "Person",
		SourceKey:   "rajinikanth",
		TargetLabel: "Movie",
		TargetKey:   "jailer",
		Properties:  map[string]any{"character": "Muthuvel Pandian"},
	})

	for _, want := range []string{
		"MATCH (s:`Person` {identity_key: $source}), (t:`Movie` {identity_key: $target})",
		"MERGE (s)-[r:`ACTED_IN`]->(t)",
		"SET r.`character` = coalesce(r.`character`, $props['character'])",
	} {
		if !strings.Contains(stmt, want) {
			t.Fatalf("statement is missing %q:\n%s", want, stmt)
		}
	}
}

func TestSetClause_NoProperties(t *testing.T) {
	if got := setClause("n", map[string]any{"identity_key": "x"}); got != "" {
		t.Fatalf("expected empty clause, got %q", got)
	}
}

func TestQuoteEscapesBackticks(t *testing.T) {
	if got := quote("a`b"); got != "`a``b`" {
		t.Fatalf("unexpected quoting: %s", got)
	}
	if got := cypherString(`it's`); got != `'it\'s'` {
		t.Fatalf("unexpected string literal: %s", got)
	}
}

func TestConstraintStatement(t *testing.T) {
	want := "CREATE CONSTRAINT `person_identity_key` IF NOT EXISTS FOR (n:`Person`) REQUIRE n.identity_key IS UNIQUE"
	if got := constraintStatement("Person"); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestClassify(t *testing.T) {
	syntax := classify(&neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "bad"})
	if !errors.Is(syntax, store.ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", syntax)
	}

	transient := classify(&neo4j.Neo4jError{Code: "Neo.TransientError.Transaction.DeadlockDetected"})
	if !store.IsTransient(transient) {
		t.Fatalf("expected transient error, got %v", transient)
	}

	if classify(nil) != nil {
		t.Fatalf("expected nil")
	}
	if !errors.Is(classify(store.ErrEndpointMissing), store.ErrEndpointMissing) {
		t.Fatalf("expected endpoint error to pass through")
	}
}

func TestShortestPathQueryEmbedsHops(t *testing.T) {
	if q := shortestPathQuery(4); !strings.Contains(q, "shortestPath((a)-[*..4]-(b))") {
		t.Fatalf("unexpected query:\n%s", q)
	}
}
