package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := Errorf(KindQueryGeneration, "translate", "mutation keyword %q", "DELETE")

	if !errors.Is(err, ErrQueryGeneration) {
		t.Fatalf("expected %v to match ErrQueryGeneration", err)
	}
	if errors.Is(err, ErrQueryParse) {
		t.Fatalf("did not expect %v to match ErrQueryParse", err)
	}

	wrapped := fmt.Errorf("answer failed: %w", err)
	if !errors.Is(wrapped, ErrQueryGeneration) {
		t.Fatalf("expected wrapped error to match ErrQueryGeneration")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	parse := Errorf(KindQueryParse, "validate", "unterminated string")
	gen := Wrap(KindQueryGeneration, "translate", parse)

	if !errors.Is(gen, ErrQueryGeneration) || !errors.Is(gen, ErrQueryParse) {
		t.Fatalf("expected both kinds in chain, got %v", gen)
	}
	if k, _ := KindOf(gen); k != KindQueryGeneration {
		t.Fatalf("expected outermost kind %s, got %s", KindQueryGeneration, k)
	}
	if Wrap(KindSynthesis, "x", nil) != nil {
		t.Fatal("expected nil for nil cause")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(Wrap(KindTransientService, "llm", context.DeadlineExceeded)) {
		t.Fatal("expected transient")
	}
	if IsTransient(errors.New("boom")) {
		t.Fatal("plain error is not transient")
	}
	if Describe(errors.New("boom")) != "internal" {
		t.Fatal("expected internal for unclassified error")
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindValidation, Op: "ingest", Msg: "empty text"}
	if got, want := err.Error(), "ingest: validation: empty text"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEntityListsFind(t *testing.T) {
	l := NewEntityLists()
	l.Add(ExtractedEntity{Mention: "Jailer", Type: "Movie"})
	l.Add(ExtractedEntity{Mention: "Nelson", Type: "Person"})
	l.Add(ExtractedEntity{Mention: "jailer", Type: "Person"})

	got := l.Find("  JAILER ")
	if len(got) != 2 || got[0].Type != "Movie" || got[1].Type != "Person" {
		t.Fatalf("unexpected matches: %+v", got)
	}
	if l.Len() != 3 || len(l.Of("Person")) != 2 {
		t.Fatalf("unexpected grouping: %+v", l.All())
	}
	var empty *EntityLists
	if empty.Len() != 0 || empty.Find("x") != nil {
		t.Fatalf("nil lists must behave as empty")
	}
}
