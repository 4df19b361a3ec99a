package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/thirai-kg/backend/pkg/common"
)

func TestSynthesize_EmptyContextSkipsModel(t *testing.T) {
	client := newFakeAIClient()
	s := NewSynthesizer(NewSynthesizerParams{Client: client})

	answer, err := s.Synthesize(context.Background(), "Who directed Kaththi 2?", &common.Context{MainResults: []common.Row{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != NoInformationAnswer {
		t.Fatalf("unexpected answer %q", answer)
	}
	if client.count("answer") != 0 {
		t.Fatalf("model must not be called for an empty context")
	}
}

func TestSynthesize_Failures(t *testing.T) {
	tests := []struct {
		name  string
		reply fakeReply
	}{
		{"model error", fakeReply{err: errors.New("overloaded")}},
		{"empty answer", fakeReply{text: "  \n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeAIClient().on("answer", tt.reply)
			s := NewSynthesizer(NewSynthesizerParams{Client: client})
			s.count = estimateTokens

			_, err := s.Synthesize(context.Background(), "Who directed Jailer?", &common.Context{MainResults: []common.Row{{"n": 1}}})
			if !errors.Is(err, common.ErrSynthesis) {
				t.Fatalf("expected synthesis error, got %v", err)
			}
		})
	}
}

func TestFitContext_Truncates(t *testing.T) {
	rows := make([]common.Row, 0, 20)
	for i := range 20 {
		rows = append(rows, common.Row{"title": strings.Repeat("x", 40), "i": i})
	}
	related := []common.Neighborhood{
		{Anchor: common.Node{ElementID: "1", Properties: map[string]any{"display_name": strings.Repeat("y", 200)}}},
	}

	s := NewSynthesizer(NewSynthesizerParams{MaxContextTokens: 100})
	s.count = estimateTokens
	c := &common.Context{MainResults: rows, Related: related}

	payload, err := s.fitContext(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if estimateTokens(payload) > 100 {
		t.Fatalf("payload over budget: %d tokens", estimateTokens(payload))
	}
	if !c.Truncated || len(c.Notes) != 1 {
		t.Fatalf("expected the context to be marked truncated, got %+v", c.Notes)
	}
	if !strings.Contains(payload, `"omitted_related":1`) || !strings.Contains(payload, `"i":0`) {
		t.Fatalf("expected related groups dropped first and the first row kept: %s", payload)
	}
	if len(c.MainResults) != 20 {
		t.Fatalf("the retrieval context itself must keep every row")
	}
}

func TestFitContext_KeepsFirstRow(t *testing.T) {
	s := NewSynthesizer(NewSynthesizerParams{MaxContextTokens: 5})
	s.count = estimateTokens
	c := &common.Context{MainResults: []common.Row{
		{"bio": strings.Repeat("a", 400)},
		{"bio": strings.Repeat("b", 400)},
	}}

	payload, err := s.fitContext(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(payload, "aaaa") || strings.Contains(payload, "bbbb") {
		t.Fatalf("expected only the first row: %s", payload)
	}
	if !strings.Contains(payload, `"omitted_rows":1`) {
		t.Fatalf("expected the omitted row count: %s", payload)
	}
}

func TestFitContext_NoTruncationWithinBudget(t *testing.T) {
	s := NewSynthesizer(NewSynthesizerParams{})
	s.count = estimateTokens
	c := &common.Context{MainResults: []common.Row{{"n": 1}}}

	if _, err := s.fitContext(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Truncated || len(c.Notes) != 0 {
		t.Fatalf("context must not be marked truncated")
	}
}

func TestSynthesize_RetriesTransientModelErrors(t *testing.T) {
	transient := common.Wrap(common.KindTransientService, "generate", errors.New("timed out"))
	client := newFakeAIClient().on("answer",
		fakeReply{err: transient},
		fakeReply{text: "Nelson directed Jailer."},
	)
	s := NewSynthesizer(NewSynthesizerParams{Client: client, MaxRetries: 2})
	s.backoff.Delay = 0
	s.count = estimateTokens

	answer, err := s.Synthesize(context.Background(), "Who directed Jailer?", &common.Context{MainResults: []common.Row{{"p.display_name": "Nelson"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Nelson directed Jailer." || client.count("answer") != 2 {
		t.Fatalf("expected the second reply after 2 calls, got %q after %d", answer, client.count("answer"))
	}
}

func TestSynthesize_GivesUpAfterMaxRetries(t *testing.T) {
	transient := common.Wrap(common.KindTransientService, "generate", errors.New("rate limited"))
	client := newFakeAIClient().on("answer", fakeReply{err: transient})
	s := NewSynthesizer(NewSynthesizerParams{Client: client, MaxRetries: 3})
	s.backoff.Delay = 0
	s.count = estimateTokens

	_, err := s.Synthesize(context.Background(), "Who directed Jailer?", &common.Context{MainResults: []common.Row{{"n": 1}}})
	if !errors.Is(err, common.ErrSynthesis) {
		t.Fatalf("expected synthesis error, got %v", err)
	}
	if client.count("answer") != 3 {
		t.Fatalf("expected 3 calls, got %d", client.count("answer"))
	}
}

func TestFitContext_ShortensOversizedFirstRow(t *testing.T) {
	movies := make([]any, 200)
	for i := range movies {
		movies[i] = common.Node{ElementID: fmt.Sprint(i), Labels: []string{"Movie"}, Properties: map[string]any{
			"display_name": fmt.Sprintf("Movie %d", i),
			"plot":         strings.Repeat("p", 300),
		}}
	}
	row := common.Row{"movies": movies, "bio": strings.Repeat("b", 5000)}

	s := NewSynthesizer(NewSynthesizerParams{MaxContextTokens: 600})
	s.count = estimateTokens
	c := &common.Context{MainResults: []common.Row{row}}

	payload, err := s.fitContext(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := estimateTokens(payload); n > 600 {
		t.Fatalf("payload over budget: %d tokens", n)
	}
	if !c.Truncated || len(c.Notes) != 1 || !strings.Contains(c.Notes[0], "shortened") {
		t.Fatalf("expected a shortening note, got %+v", c.Notes)
	}
	if !strings.Contains(payload, "Movie 0") || !strings.Contains(payload, "more") {
		t.Fatalf("expected the first movie and an omission marker: %s", payload)
	}
	if len(row["bio"].(string)) != 5000 || len(row["movies"].([]any)) != 200 {
		t.Fatalf("the retrieval context itself must stay unchanged")
	}
}
