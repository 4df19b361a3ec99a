package graph

import (
	"context"
	"sync"

	"github.com/thirai-kg/backend/pkg/ai"
)

type fakeReply struct {
	text string
	err  error
}

// fakeAIClient answers structured requests from per request name queues. The
// last reply of a queue is repeated.
type fakeAIClient struct {
	mu      sync.Mutex
	replies map[string][]fakeReply
	calls   map[string]int
	prompts []string
}

func newFakeAIClient() *fakeAIClient {
	return &fakeAIClient{replies: map[string][]fakeReply{}, calls: map[string]int{}}
}

func (f *fakeAIClient) on(name string, replies ...fakeReply) *fakeAIClient {
	f.replies[name] = append(f.replies[name], replies...)
	return f
}

func (f *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (f *fakeAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	f.mu.Lock()
	n := f.calls[name]
	f.calls[name]++
	f.prompts = append(f.prompts, prompt)
	queue := f.replies[name]
	f.mu.Unlock()

	if len(queue) == 0 {
		return ai.DecodeResponse(`{}`, out)
	}
	r := queue[min(n, len(queue)-1)]
	if r.err != nil {
		return r.err
	}
	return ai.DecodeResponse(r.text, out)
}

func (f *fakeAIClient) ResetMetrics() {}

func (f *fakeAIClient) GetMetrics() ai.ModelMetrics {
	return ai.ModelMetrics{}
}

func (f *fakeAIClient) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

const jailerEntities = `{"entities": [
	{"name": "Rajinikanth", "type": "Person", "properties": [{"key": "role", "value": "Actor"}]},
	{"name": "Nelson", "type": "person", "properties": [{"key": "role", "value": "Director"}]},
	{"name": "Jailer", "type": "Movie", "properties": [{"key": "release_year", "value": "2023"}]}
]}`

const jailerRelations = `{"relations": [
	{"subject": "Rajinikanth", "predicate": "ACTED_IN", "object": "Jailer", "properties": []},
	{"subject": "Nelson", "predicate": "directed", "object": "Jailer", "properties": []}
]}`

const jailerText = "Rajinikanth starred in Jailer directed by Nelson in 2023"
