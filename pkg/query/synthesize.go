package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/thirai-kg/backend/internal/util"
	"github.com/thirai-kg/backend/pkg/ai"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/logger"
)

const synthesizeOp = "synthesize answer"

// NoInformationAnswer is returned without consulting the model when the
// query found nothing.
const NoInformationAnswer = "The knowledge graph has no information that answers this question."

// Synthesizer writes the final answer from a retrieval context.
type Synthesizer struct {
	client           ai.GraphAIClient
	model            string
	maxContextTokens int
	encoder          string
	backoff          util.Backoff

	once  sync.Once
	count func(string) int
}

type NewSynthesizerParams struct {
	Client           ai.GraphAIClient
	Model            string
	MaxContextTokens int
	TokenEncoder     string
	// MaxRetries bounds the attempts on transient model failures.
	MaxRetries int
}

func NewSynthesizer(params NewSynthesizerParams) *Synthesizer {
	s := &Synthesizer{
		client:           params.Client,
		model:            params.Model,
		maxContextTokens: params.MaxContextTokens,
		encoder:          params.TokenEncoder,
		backoff:          util.Backoff{MaxTries: params.MaxRetries, Delay: 500 * time.Millisecond, MaxDelay: 4 * time.Second},
	}
	if s.maxContextTokens <= 0 {
		s.maxContextTokens = 6000
	}
	if s.encoder == "" {
		s.encoder = "o200k_base"
	}
	if s.backoff.MaxTries <= 0 {
		s.backoff.MaxTries = 3
	}
	return s
}

// synthesisPayload is the JSON handed to the model.
type synthesisPayload struct {
	MainResults    []common.Row          `json:"main_results"`
	Related        []common.Neighborhood `json:"related,omitempty"`
	OmittedRows    int                   `json:"omitted_rows,omitempty"`
	OmittedRelated int                   `json:"omitted_related,omitempty"`
	Notes          []string              `json:"notes,omitempty"`
}

// Synthesize answers question from c. An empty context yields
// NoInformationAnswer and no model call.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, c *common.Context) (string, error) {
	if c.Empty() {
		return NoInformationAnswer, nil
	}

	payload, err := s.fitContext(c)
	if err != nil {
		return "", common.Wrap(common.KindSynthesis, synthesizeOp, err)
	}

	prompt := fmt.Sprintf(ai.AnswerPrompt, payload, question)
	answer, err := util.RetryWithBackoff(ctx, s.backoff, common.IsTransient, func(ctx context.Context) (string, error) {
		return s.client.GenerateCompletion(ctx, prompt,
			ai.WithModel(s.model),
			ai.WithSystemPrompts(ai.AnswerSystemPrompt),
			ai.WithTemperature(0.2),
		)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", common.Wrap(common.KindSynthesis, synthesizeOp, err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", common.Errorf(common.KindSynthesis, synthesizeOp, "model returned an empty answer")
	}
	return answer, nil
}

// fitContext serializes c within the token budget. Related groups are
// dropped from the end first, then result rows; the first row always stays.
// When the first row alone is over budget its long strings and lists are
// shortened.
func (s *Synthesizer) fitContext(c *common.Context) (string, error) {
	p := synthesisPayload{
		MainResults: c.MainResults,
		Related:     c.Related,
		Notes:       c.Notes,
	}
	count := s.counter()

	for {
		b, err := json.Marshal(p)
		if err != nil {
			return "", err
		}
		fits := count(string(b)) <= s.maxContextTokens
		switch {
		case fits || len(p.Related) == 0 && len(p.MainResults) <= 1:
			shortened := false
			if !fits && len(p.MainResults) == 1 {
				if b, err = s.shrinkFirstRow(&p, count); err != nil {
					return "", err
				}
				shortened = true
			}
			if p.OmittedRows > 0 || p.OmittedRelated > 0 || shortened {
				c.Truncated = true
				note := fmt.Sprintf("context truncated: %d rows and %d related groups omitted", p.OmittedRows, p.OmittedRelated)
				if shortened {
					note += ", long values shortened"
				}
				c.Notes = append(c.Notes, note)
				logger.Debug("[Query] truncated answer context", "omitted_rows", p.OmittedRows, "omitted_related", p.OmittedRelated, "shortened", shortened)
			}
			return string(b), nil
		case len(p.Related) > 0:
			p.Related = p.Related[:len(p.Related)-1]
			p.OmittedRelated++
		default:
			p.MainResults = p.MainResults[:len(p.MainResults)-1]
			p.OmittedRows++
		}
	}
}

// shrinkFirstRow clips strings and lists of the only remaining row with
// halving limits until the payload fits or the smallest limit is reached.
func (s *Synthesizer) shrinkFirstRow(p *synthesisPayload, count func(string) int) ([]byte, error) {
	row := p.MainResults[0]
	var b []byte
	for limit := 512; limit >= minShrinkLimit; limit /= 2 {
		shrunk, _ := shrinkValue(map[string]any(row), limit).(map[string]any)
		p.MainResults = []common.Row{shrunk}
		var err error
		if b, err = json.Marshal(p); err != nil {
			return nil, err
		}
		if count(string(b)) <= s.maxContextTokens {
			break
		}
	}
	return b, nil
}

const minShrinkLimit = 16

// shrinkValue returns a copy of v with strings cut to limit runes and lists
// cut to limit/16 elements, at least one. The input is not modified.
func shrinkValue(v any, limit int) any {
	switch x := v.(type) {
	case string:
		return util.ClipText(x, limit)
	case []any:
		n := min(len(x), max(1, limit/16))
		out := make([]any, 0, n+1)
		for _, e := range x[:n] {
			out = append(out, shrinkValue(e, limit))
		}
		if n < len(x) {
			out = append(out, fmt.Sprintf("... %d more", len(x)-n))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = shrinkValue(e, limit)
		}
		return out
	case common.Row:
		return shrinkValue(map[string]any(x), limit)
	case common.Node:
		props, _ := shrinkValue(x.Properties, limit).(map[string]any)
		return common.Node{ElementID: x.ElementID, Labels: x.Labels, Properties: props}
	case common.Path:
		out := common.Path{Nodes: make([]common.Node, len(x.Nodes)), Edges: x.Edges}
		for i, n := range x.Nodes {
			out.Nodes[i] = shrinkValue(n, limit).(common.Node)
		}
		return out
	default:
		return v
	}
}

func (s *Synthesizer) counter() func(string) int {
	s.once.Do(func() {
		if s.count != nil {
			return
		}
		enc, err := tiktoken.GetEncoding(s.encoder)
		if err != nil {
			logger.Warn("[Query] token encoder unavailable, estimating", "encoder", s.encoder, "err", err)
			s.count = estimateTokens
			return
		}
		s.count = func(text string) int {
			return len(enc.Encode(text, nil, nil))
		}
	})
	return s.count
}

func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
