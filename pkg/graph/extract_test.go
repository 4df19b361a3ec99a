package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/schema"
)

func newTestExtractor(client *fakeAIClient) *Extractor {
	return NewExtractor(NewExtractorParams{Client: client, Registry: schema.Default(), RetryDelay: 1})
}

func TestExtractEntities(t *testing.T) {
	client := newFakeAIClient().on("extract_entities", fakeReply{text: "```json\n" + `{"entities": [
		{"name": "Rajinikanth", "type": "PERSON", "properties": [{"key": "birth_year", "value": "1950"}, {"key": "salary", "value": "a lot"}]},
		{"name": "Hukum", "type": "Song", "properties": []},
		{"name": "Jailer", "type": "Movie", "properties": [{"key": "release_year", "value": "2023.0"}]},
		{"name": "jailer", "type": "Movie", "properties": [{"key": "genre", "value": "Action"}]},
		{"name": "  ", "type": "Person", "properties": []}
	]}` + "\n```"})

	lists, warnings, err := newTestExtractor(client).ExtractEntities(context.Background(), jailerText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lists.Len() != 2 {
		t.Fatalf("expected 2 entities, got %v", lists.All())
	}
	person := lists.Of(schema.Person)[0]
	if person.Properties["birth_year"] != int64(1950) {
		t.Fatalf("expected birth_year to be coerced, got %#v", person.Properties)
	}
	movie := lists.Of(schema.Movie)[0]
	if movie.Properties["release_year"] != int64(2023) || movie.Properties["genre"] != "Action" {
		t.Fatalf("expected merged movie properties, got %#v", movie.Properties)
	}

	joined := strings.Join(warnings, "\n")
	for _, want := range []string{"salary", `unknown entity type "Song"`, "empty name"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected a warning mentioning %q, got:\n%s", want, joined)
		}
	}
}

func TestExtractEntities_Errors(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		reply fakeReply
		want  error
	}{
		{
			name: "empty text",
			text: " ",
			want: common.ErrValidation,
		},
		{
			name:  "unparseable output",
			text:  jailerText,
			reply: fakeReply{text: "Sorry, I cannot help with that."},
			want:  common.ErrExtractionFormat,
		},
		{
			name:  "nothing fits the schema",
			text:  jailerText,
			reply: fakeReply{text: `{"entities": [{"name": "Hukum", "type": "Song"}]}`},
			want:  common.ErrSchemaViolation,
		},
		{
			name:  "provider keeps timing out",
			text:  jailerText,
			reply: fakeReply{err: common.Errorf(common.KindTransientService, "llm", "timed out")},
			want:  common.ErrTransientService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeAIClient().on("extract_entities", tt.reply)
			_, _, err := newTestExtractor(client).ExtractEntities(context.Background(), tt.text)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestExtractEntities_EmptyResultIsValid(t *testing.T) {
	client := newFakeAIClient().on("extract_entities", fakeReply{text: `{"entities": []}`})
	lists, _, err := newTestExtractor(client).ExtractEntities(context.Background(), "It rained all day.")
	if err != nil || lists.Len() != 0 {
		t.Fatalf("expected empty result, got %v %v", lists.All(), err)
	}
}

func TestExtractEntities_RetriesTransientFailures(t *testing.T) {
	client := newFakeAIClient().on("extract_entities",
		fakeReply{err: common.Errorf(common.KindTransientService, "llm", "rate limited")},
		fakeReply{text: jailerEntities},
	)
	lists, _, err := newTestExtractor(client).ExtractEntities(context.Background(), jailerText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lists.Len() != 3 || client.count("extract_entities") != 2 {
		t.Fatalf("expected success on second attempt, got %d entities after %d calls", lists.Len(), client.count("extract_entities"))
	}
}

func TestExtractEntities_DoesNotRetryOtherFailures(t *testing.T) {
	client := newFakeAIClient().on("extract_entities", fakeReply{text: "not json at all"})
	_, _, _ = newTestExtractor(client).ExtractEntities(context.Background(), jailerText)
	if n := client.count("extract_entities"); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func jailerLists(t *testing.T) *common.EntityLists {
	t.Helper()
	lists, _, err := newTestExtractor(newFakeAIClient().on("extract_entities", fakeReply{text: jailerEntities})).
		ExtractEntities(context.Background(), jailerText)
	if err != nil {
		t.Fatalf("extract entities: %v", err)
	}
	return lists
}

func TestExtractRelations(t *testing.T) {
	client := newFakeAIClient().on("extract_relations", fakeReply{text: `{"relations": [
		{"subject": "rajinikanth", "predicate": "acted in", "object": "Jailer", "properties": [{"key": "character", "value": "Muthuvel Pandian"}]},
		{"subject": "Nelson", "predicate": "MARRIED_TO", "object": "Rajinikanth"},
		{"subject": "Anirudh", "predicate": "ACTED_IN", "object": "Jailer"},
		{"subject": "Nelson", "predicate": "DIRECTED", "object": "Jailer"},
		{"subject": "Nelson", "predicate": "DIRECTED", "object": "Jailer"}
	]}`})

	triples, warnings, err := newTestExtractor(client).ExtractRelations(context.Background(), jailerText, jailerLists(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(triples) != 2 {
		t.Fatalf("expected 2 triples, got %#v", triples)
	}
	if triples[0].Subject != "Rajinikanth" || triples[0].Predicate != schema.ActedIn || triples[0].Properties["character"] != "Muthuvel Pandian" {
		t.Fatalf("unexpected first triple: %#v", triples[0])
	}
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "MARRIED_TO") || !strings.Contains(joined, "Anirudh") {
		t.Fatalf("expected warnings for unknown type and dangling mention, got:\n%s", joined)
	}
}

func TestExtractRelations_SkipsSingleEntity(t *testing.T) {
	client := newFakeAIClient()
	lists := common.NewEntityLists()
	lists.Add(common.ExtractedEntity{Mention: "Jailer", Type: schema.Movie})

	triples, _, err := newTestExtractor(client).ExtractRelations(context.Background(), "Jailer was a hit.", lists)
	if err != nil || triples != nil {
		t.Fatalf("expected no triples, got %v %v", triples, err)
	}
	if client.count("extract_relations") != 0 {
		t.Fatalf("expected no model call")
	}
}

func TestExtractRelations_AllInvalid(t *testing.T) {
	client := newFakeAIClient().on("extract_relations", fakeReply{text: `{"relations": [{"subject": "Nelson", "predicate": "MARRIED_TO", "object": "Rajinikanth"}]}`})
	_, _, err := newTestExtractor(client).ExtractRelations(context.Background(), jailerText, jailerLists(t))
	if !errors.Is(err, common.ErrSchemaViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}
}
