package query

import (
	"context"
	"errors"
	"time"

	"github.com/thirai-kg/backend/pkg/ai"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/schema"
	"github.com/thirai-kg/backend/pkg/store"
)

// QueryClient answers natural-language questions from the knowledge graph.
//
// A QueryClient should be created using NewQueryClient.
type QueryClient struct {
	translator  *Translator
	retriever   *Retriever
	synthesizer *Synthesizer
	expansion   bool
}

// NewQueryClientParams defines the configuration parameters for creating a
// new QueryClient. AnswerModel defaults to QueryModel.
type NewQueryClientParams struct {
	AIClient    ai.GraphAIClient
	Reader      store.Reader
	Registry    *schema.Registry
	QueryModel  string
	AnswerModel string

	MaxRows          int
	Expansion        bool
	ExpansionDegree  int
	MaxExpandNodes   int
	MaxContextTokens int
	TokenEncoder     string
	MaxRetries       int
}

// NewQueryClient creates a QueryClient.
//
// Example:
//
//	client := query.NewQueryClient(query.NewQueryClientParams{
//		AIClient:  aiClient,
//		Reader:    graphStore,
//		Expansion: true,
//	})
//	answer, err := client.Answer(ctx, "Who directed Jailer?")
func NewQueryClient(params NewQueryClientParams) *QueryClient {
	answerModel := params.AnswerModel
	if answerModel == "" {
		answerModel = params.QueryModel
	}
	translator := NewTranslator(NewTranslatorParams{
		Client:     params.AIClient,
		Registry:   params.Registry,
		Engine:     params.Reader,
		Model:      params.QueryModel,
		MaxRows:    params.MaxRows,
		MaxRetries: params.MaxRetries,
	})
	return &QueryClient{
		translator: translator,
		retriever: NewRetriever(NewRetrieverParams{
			Translator:      translator,
			Reader:          params.Reader,
			ExpansionDegree: params.ExpansionDegree,
			MaxExpandNodes:  params.MaxExpandNodes,
		}),
		synthesizer: NewSynthesizer(NewSynthesizerParams{
			Client:           params.AIClient,
			Model:            answerModel,
			MaxContextTokens: params.MaxContextTokens,
			TokenEncoder:     params.TokenEncoder,
			MaxRetries:       params.MaxRetries,
		}),
		expansion: params.Expansion,
	}
}

type answerOptions struct {
	tracer    Tracer
	expansion *bool
}

type AnswerOption func(*answerOptions)

// WithTracer records the generated queries and touched nodes of one run.
func WithTracer(t Tracer) AnswerOption {
	return func(o *answerOptions) {
		o.tracer = t
	}
}

// WithExpansion overrides the client's expansion setting for one run.
func WithExpansion(enabled bool) AnswerOption {
	return func(o *answerOptions) {
		o.expansion = &enabled
	}
}

func (c *QueryClient) Translator() *Translator {
	return c.translator
}

func (c *QueryClient) Retriever() *Retriever {
	return c.retriever
}

// Answer retrieves context for question and synthesizes an answer.
//
// When only synthesis fails, the returned Answer still carries the query and
// context, marked Partial, together with the synthesis error.
func (c *QueryClient) Answer(ctx context.Context, question string, opts ...AnswerOption) (*common.Answer, error) {
	o := answerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	expand := c.expansion
	if o.expansion != nil {
		expand = *o.expansion
	}

	start := time.Now()
	qctx, err := c.retriever.retrieve(ctx, question, expand, o.tracer)
	if err != nil {
		logger.Warn("[Query] retrieval failed", "question", question, "kind", common.Describe(err), "err", err)
		return nil, err
	}

	answer := &common.Answer{
		Question: question,
		Query:    qctx.Query,
		Context:  qctx,
	}
	text, err := c.synthesizer.Synthesize(ctx, question, qctx)
	answer.Notes = qctx.Notes
	if err != nil {
		if !errors.Is(err, common.ErrSynthesis) {
			return nil, err
		}
		logger.Warn("[Query] synthesis failed, returning context only", "question", question, "err", err)
		answer.Partial = true
		answer.Notes = append(answer.Notes, "answer could not be generated; the retrieved context is included")
		return answer, err
	}
	answer.Answer = text

	logger.Info("[Query] answered question", "rows", len(qctx.MainResults), "related", len(qctx.Related), "duration", time.Since(start))
	return answer, nil
}
