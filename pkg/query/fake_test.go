package query

import (
	"context"
	"strings"
	"sync"

	"github.com/thirai-kg/backend/pkg/ai"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/store"
	"github.com/thirai-kg/backend/pkg/store/memstore"
)

type fakeReply struct {
	text string
	err  error
}

// fakeAIClient replies to translation and answer prompts from separate
// queues. The last reply of a queue is repeated.
type fakeAIClient struct {
	mu      sync.Mutex
	replies map[string][]fakeReply
	calls   map[string]int
	prompts map[string][]string
}

func newFakeAIClient() *fakeAIClient {
	return &fakeAIClient{
		replies: map[string][]fakeReply{},
		calls:   map[string]int{},
		prompts: map[string][]string{},
	}
}

func (f *fakeAIClient) on(kind string, replies ...fakeReply) *fakeAIClient {
	f.replies[kind] = append(f.replies[kind], replies...)
	return f
}

func promptKind(prompt string) string {
	if strings.Contains(prompt, "Retrieved context") {
		return "answer"
	}
	return "translate"
}

func (f *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	kind := promptKind(prompt)

	f.mu.Lock()
	n := f.calls[kind]
	f.calls[kind]++
	f.prompts[kind] = append(f.prompts[kind], prompt)
	queue := f.replies[kind]
	f.mu.Unlock()

	if len(queue) == 0 {
		return "", nil
	}
	r := queue[min(n, len(queue)-1)]
	return r.text, r.err
}

func (f *fakeAIClient) GenerateCompletionWithFormat(context.Context, string, string, string, any, ...ai.GenerateOption) error {
	return nil
}

func (f *fakeAIClient) ResetMetrics() {}

func (f *fakeAIClient) GetMetrics() ai.ModelMetrics {
	return ai.ModelMetrics{}
}

func (f *fakeAIClient) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeAIClient) lastPrompt(kind string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.prompts[kind]
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

const directorQuery = "MATCH (p:Person)-[:DIRECTED]->(m:Movie) WHERE toLower(m.display_name) = 'jailer' RETURN p, m"

// jailerGraph seeds a store with the Jailer facts and answers every read with
// the director row.
func jailerGraph(opts ...memstore.Option) *memstore.Store {
	var s *memstore.Store
	read := memstore.WithReadFunc(func(ctx context.Context, query string, params map[string]any) ([]common.Row, error) {
		p, _ := s.Node("Person", "nelson")
		m, _ := s.Node("Movie", "jailer")
		return []common.Row{{"p": p, "m": m}}, nil
	})
	s = memstore.New(append([]memstore.Option{read}, opts...)...)

	ctx := context.Background()
	for _, e := range []store.EntityMerge{
		{Label: "Person", Key: "nelson", Properties: map[string]any{"display_name": "Nelson", "role": "Director"}},
		{Label: "Person", Key: "rajinikanth", Properties: map[string]any{"display_name": "Rajinikanth", "role": "Actor"}},
		{Label: "Movie", Key: "jailer", Properties: map[string]any{"display_name": "Jailer", "title": "Jailer", "release_year": int64(2023)}},
	} {
		if _, err := s.MergeEntity(ctx, e); err != nil {
			panic(err)
		}
	}
	for _, r := range []store.RelationMerge{
		{Type: "DIRECTED", SourceLabel: "Person", SourceKey: "nelson", TargetLabel: "Movie", TargetKey: "jailer"},
		{Type: "ACTED_IN", SourceLabel: "Person", SourceKey: "rajinikanth", TargetLabel: "Movie", TargetKey: "jailer"},
	} {
		if _, err := s.MergeRelation(ctx, r); err != nil {
			panic(err)
		}
	}
	return s
}
