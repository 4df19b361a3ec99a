package schema

import (
	"strings"
	"testing"
)

func TestDefaultVocabulary(t *testing.T) {
	r := Default()

	for _, l := range []string{Person, Movie, Organization, Location} {
		if !r.IsLabel(l) {
			t.Fatalf("expected label %s", l)
		}
	}
	if r.IsLabel("Song") {
		t.Fatal("Song must not be a label")
	}

	tests := []struct {
		rel, src, dst string
		want          bool
	}{
		{ActedIn, Person, Movie, true},
		{Directed, Person, Movie, true},
		{Produced, Organization, Movie, true},
		{BornIn, Person, Location, true},
		{ReleasedIn, Movie, Location, true},
		{Directed, Movie, Person, false},
		{ActedIn, Organization, Movie, false},
		{"MARRIED_TO", Person, Person, false},
	}
	for _, tt := range tests {
		if got := r.AllowsPair(tt.rel, tt.src, tt.dst); got != tt.want {
			t.Errorf("AllowsPair(%s, %s, %s) = %v, want %v", tt.rel, tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestCanonicalNames(t *testing.T) {
	r := Default()

	labels := map[string]string{"person": Person, " MOVIE ": Movie, "organisation": ""}
	for in, want := range labels {
		got, ok := r.CanonicalLabel(in)
		if want == "" {
			if ok {
				t.Errorf("CanonicalLabel(%q) unexpectedly matched %q", in, got)
			}
			continue
		}
		if got != want {
			t.Errorf("CanonicalLabel(%q) = %q, want %q", in, got, want)
		}
	}

	rels := map[string]string{"acted in": ActedIn, "Acted-In": ActedIn, "directed": Directed, "married to": ""}
	for in, want := range rels {
		got, ok := r.CanonicalRelation(in)
		if want == "" {
			if ok {
				t.Errorf("CanonicalRelation(%q) unexpectedly matched %q", in, got)
			}
			continue
		}
		if got != want {
			t.Errorf("CanonicalRelation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCoerceProperties(t *testing.T) {
	r := Default()

	props, warnings := r.CoerceProperties(Movie, []KV{
		{Key: "release_year", Value: "2023"},
		{Key: "Genre", Value: " Action "},
		{Key: "budget", Value: "200 crore"},
		{Key: "identity_key", Value: "hijack"},
		{Key: "title", Value: ""},
	})

	if props["release_year"] != int64(2023) {
		t.Fatalf("expected release_year 2023, got %#v", props["release_year"])
	}
	if props["genre"] != "Action" {
		t.Fatalf("expected trimmed genre, got %#v", props["genre"])
	}
	if _, ok := props["budget"]; ok {
		t.Fatal("unknown property must be dropped")
	}
	if _, ok := props["identity_key"]; ok {
		t.Fatal("identity_key must never come from input")
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}

	_, warnings = r.CoerceProperties(Person, []KV{{Key: "birth_year", Value: "nineteen fifty"}})
	if len(warnings) != 1 || !strings.Contains(warnings[0], "not an integer") {
		t.Fatalf("expected integer warning, got %v", warnings)
	}

	relProps, _ := r.CoerceRelationProperties(ReleasedIn, []KV{{Key: "year", Value: "2023.0"}})
	if relProps["year"] != int64(2023) {
		t.Fatalf("expected year 2023, got %#v", relProps["year"])
	}
}

func TestDescribeMentionsEveryPattern(t *testing.T) {
	r := Default()
	desc := r.Describe()
	for _, rt := range r.RelationTypes() {
		rel, _ := r.Relation(rt)
		if !strings.Contains(desc, rel.Pattern()) {
			t.Errorf("description is missing %s", rel.Pattern())
		}
	}
	if !strings.Contains(desc, KeyProperty) {
		t.Error("description must explain identity_key")
	}
}

func TestNewRejectsDanglingRelation(t *testing.T) {
	_, err := New(
		[]NodeType{{Label: Person}},
		[]RelationType{{Type: Directed, Source: Person, Target: Movie}},
	)
	if err == nil {
		t.Fatal("expected error for relation with unknown target label")
	}
}
