package normalize

import (
	"errors"
	"testing"

	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/schema"
)

func TestKey(t *testing.T) {
	n := New(Params{})

	tests := []struct {
		name  string
		label string
		raw   string
		want  string
	}{
		{"trim and fold", schema.Person, "  RajiniKanth  ", "rajinikanth"},
		{"collapse whitespace", schema.Movie, "Vikram \t  Vedha", "vikram vedha"},
		{"honorific", schema.Person, "Superstar Rajinikanth", "rajinikanth"},
		{"multi word honorific", schema.Person, "Ulaga Nayagan Kamal Haasan", "kamal haasan"},
		{"stacked honorifics", schema.Person, "Dr. Thiru M. Karunanidhi", "m karunanidhi"},
		{"initials dotted", schema.Person, "A.R. Rahman", "ar rahman"},
		{"initials spaced", schema.Person, "A R Rahman", "ar rahman"},
		{"initials joined", schema.Person, "AR Rahman", "ar rahman"},
		{"diacritics", schema.Movie, "Café Noir", "cafe noir"},
		{"honorific only keeps name", schema.Person, "Thalapathy", "thalapathy"},
		{"title not stripped on movies", schema.Movie, "Thalapathy", "thalapathy"},
		{"sri kept on organizations", schema.Organization, "Sri Thenandal Films", "sri thenandal films"},
		{"tamil script", schema.Person, "ரஜினிகாந்த்", "ரஜினிகாந்த்"},
		{"punctuation only", schema.Movie, "!!!", "!!!"},
		{"hyphen", schema.Movie, "Ponniyin Selvan-I", "ponniyin selvan i"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Key(tt.label, tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Key(%q, %q) = %q, want %q", tt.label, tt.raw, got, tt.want)
			}
		})
	}
}

func TestKeyRejectsEmpty(t *testing.T) {
	n := New(Params{})
	for _, raw := range []string{"", "   ", "\t\n"} {
		_, err := n.Key(schema.Person, raw)
		if !errors.Is(err, common.ErrValidation) {
			t.Fatalf("Key(%q): expected validation error, got %v", raw, err)
		}
	}
}

func TestKeyIsStable(t *testing.T) {
	n := New(Params{})
	first, _ := n.Key(schema.Person, "Isaignani Ilaiyaraaja")
	for range 50 {
		got, _ := n.Key(schema.Person, "Isaignani Ilaiyaraaja")
		if got != first {
			t.Fatalf("unstable key: %q then %q", first, got)
		}
	}
	plain, _ := n.Key(schema.Person, "ilaiyaraaja")
	if plain != first {
		t.Fatalf("expected honorific variant to collide, got %q and %q", first, plain)
	}
}

func TestCustomHonorifics(t *testing.T) {
	n := New(Params{Honorifics: []string{"Mega Star"}, HonorificLabels: []string{schema.Person, schema.Organization}})

	got, _ := n.Key(schema.Person, "Mega-Star Chiranjeevi")
	if got != "chiranjeevi" {
		t.Fatalf("expected custom honorific stripped, got %q", got)
	}
	got, _ = n.Key(schema.Person, "Dr. Rajkumar")
	if got != "dr rajkumar" {
		t.Fatalf("default list must be replaced, got %q", got)
	}
}
