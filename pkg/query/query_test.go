package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/thirai-kg/backend/pkg/common"
)

func newQueryClient(client *fakeAIClient, expansion bool) *QueryClient {
	c := NewQueryClient(NewQueryClientParams{
		AIClient:  client,
		Reader:    jailerGraph(),
		Expansion: expansion,
	})
	c.synthesizer.count = estimateTokens
	return c
}

func TestAnswer_WhoDirectedJailer(t *testing.T) {
	client := newFakeAIClient().
		on("translate", fakeReply{text: `{"query": "` + directorQuery + `", "reasoning": "directors"}`}).
		on("answer", fakeReply{text: "Jailer was directed by Nelson."})
	c := newQueryClient(client, true)
	trace := NewQueryTrace()

	answer, err := c.Answer(context.Background(), "Who directed Jailer?", WithTracer(trace))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer.Answer, "Nelson") || answer.Partial {
		t.Fatalf("unexpected answer %+v", answer)
	}
	if answer.Query != directorQuery+" LIMIT 50" {
		t.Fatalf("unexpected query %q", answer.Query)
	}
	if len(answer.Context.Related) == 0 {
		t.Fatalf("expected expanded context")
	}
	if prompt := client.lastPrompt("answer"); !strings.Contains(prompt, "Nelson") {
		t.Fatalf("answer prompt does not carry the context")
	}
	if len(trace.Snapshot().Queries) != 1 {
		t.Fatalf("expected the generated query to be traced")
	}
}

func TestAnswer_ExpansionOverride(t *testing.T) {
	client := newFakeAIClient().
		on("translate", fakeReply{text: directorQuery}).
		on("answer", fakeReply{text: "Nelson."})
	c := newQueryClient(client, true)

	answer, err := c.Answer(context.Background(), "Who directed Jailer?", WithExpansion(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answer.Context.Related) != 0 {
		t.Fatalf("expansion must be disabled for this run")
	}
}

func TestAnswer_DestructiveQuestion(t *testing.T) {
	client := newFakeAIClient().on("translate", fakeReply{text: "MATCH (n) DETACH DELETE n"})
	c := newQueryClient(client, true)

	answer, err := c.Answer(context.Background(), "delete everything")
	if !errors.Is(err, common.ErrQueryGeneration) || answer != nil {
		t.Fatalf("expected query generation error, got %v", err)
	}
	if client.count("answer") != 0 {
		t.Fatalf("no answer must be synthesized")
	}
}

func TestAnswer_SynthesisFailureIsPartial(t *testing.T) {
	client := newFakeAIClient().
		on("translate", fakeReply{text: directorQuery}).
		on("answer", fakeReply{err: errors.New("model unavailable")})
	c := newQueryClient(client, false)

	answer, err := c.Answer(context.Background(), "Who directed Jailer?")
	if !errors.Is(err, common.ErrSynthesis) {
		t.Fatalf("expected synthesis error, got %v", err)
	}
	if answer == nil || !answer.Partial || answer.Context == nil || answer.Query == "" {
		t.Fatalf("expected a partial answer with context, got %+v", answer)
	}
}

func TestAnswer_Empty(t *testing.T) {
	client := newFakeAIClient()
	c := newQueryClient(client, true)

	_, err := c.Answer(context.Background(), "")
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
