package ai

import (
	"errors"
	"testing"
)

type movie struct {
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
}

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  movie
	}{
		{
			name:  "valid json object",
			input: `{"title":"Jailer","year":2023}`,
			want:  movie{Title: "Jailer", Year: 2023},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{title: 'Jailer'}`,
			want:  movie{Title: "Jailer"},
		},
		{
			name:  "trailing comma",
			input: `{"title":"Jailer",}`,
			want:  movie{Title: "Jailer"},
		},
		{
			name:  "missing end bracket",
			input: `{"title":"Jailer"`,
			want:  movie{Title: "Jailer"},
		},
		{
			name:  "stringified object",
			input: `"{\"title\": \"Jailer\", \"year\": 2023}"`,
			want:  movie{Title: "Jailer", Year: 2023},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"title\": \"Jailer\"\n}\n",
			want:  movie{Title: "Jailer"},
		},
		{
			name:  "json code fence",
			input: "Here you go:\n```json\n{\"title\": \"Jailer\", \"year\": 2023}\n```",
			want:  movie{Title: "Jailer", Year: 2023},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got movie
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_Array(t *testing.T) {
	var got []movie
	if err := UnmarshalFlexible(`[{title:'Baasha'},{title:'Nayakan',}]`, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0].Title != "Baasha" || got[1].Title != "Nayakan" {
		t.Fatalf("UnmarshalFlexible() got = %+v", got)
	}
}

func TestDecodeResponse_Malformed(t *testing.T) {
	var got movie
	for _, input := range []string{"", "   ", "hello"} {
		err := DecodeResponse(input, &got)
		if !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("DecodeResponse(%q) expected ErrMalformedResponse, got %v", input, err)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"MATCH (n) RETURN n", "MATCH (n) RETURN n"},
		{"```cypher\nMATCH (n) RETURN n\n```", "MATCH (n) RETURN n"},
		{"```\nMATCH (n) RETURN n\n```", "MATCH (n) RETURN n"},
		{"```MATCH (n) RETURN n```", "MATCH (n) RETURN n"},
		{"Query:\n```sql\nMATCH (m:Movie {title: 'x'}) RETURN m\n```\nDone.", "MATCH (m:Movie {title: 'x'}) RETURN m"},
	}
	for _, tt := range tests {
		if got := StripCodeFence(tt.in); got != tt.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyOptions(t *testing.T) {
	o := ApplyOptions(
		GenerateOptions{Model: "base", Temperature: 0.3},
		WithModel(""),
		WithTemperature(0),
		WithSystemPrompts("a", "b"),
		WithMaxTokens(128),
	)
	if o.Model != "base" {
		t.Fatalf("empty model must keep default, got %q", o.Model)
	}
	if o.Temperature != 0 || len(o.SystemPrompts) != 2 || o.MaxTokens != 128 {
		t.Fatalf("unexpected options %+v", o)
	}
}
