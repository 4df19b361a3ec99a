package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thirai-kg/backend/internal/util"
	"github.com/thirai-kg/backend/pkg/ai"
	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/cypher"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/schema"
	"github.com/thirai-kg/backend/pkg/store"
)

const translateOp = "translate question"

type explainer interface {
	Explain(ctx context.Context, query string) error
}

type translateResponse struct {
	Query     string `json:"query"`
	Reasoning string `json:"reasoning"`
}

// Translator turns a question into a validated read-only Cypher query.
// Nothing it returns has been executed.
type Translator struct {
	client   ai.GraphAIClient
	registry *schema.Registry
	engine   explainer
	model    string
	maxRows  int
	backoff  util.Backoff
}

type NewTranslatorParams struct {
	Client   ai.GraphAIClient
	Registry *schema.Registry
	// Engine plans validated queries as a second check. Optional.
	Engine     explainer
	Model      string
	MaxRows    int
	MaxRetries int
}

func NewTranslator(params NewTranslatorParams) *Translator {
	t := &Translator{
		client:   params.Client,
		registry: params.Registry,
		engine:   params.Engine,
		model:    params.Model,
		maxRows:  params.MaxRows,
		backoff:  util.Backoff{MaxTries: params.MaxRetries, Delay: 500 * time.Millisecond, MaxDelay: 4 * time.Second},
	}
	if t.registry == nil {
		t.registry = schema.Default()
	}
	if t.maxRows <= 0 {
		t.maxRows = 50
	}
	if t.backoff.MaxTries <= 0 {
		t.backoff.MaxTries = 3
	}
	return t
}

// Translate generates and validates a query for question.
func (t *Translator) Translate(ctx context.Context, question string) (*common.StructuredQuery, error) {
	return t.translate(ctx, question, nil)
}

func (t *Translator) translate(ctx context.Context, question string, tracer Tracer) (*common.StructuredQuery, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, common.Errorf(common.KindValidation, translateOp, "question is empty")
	}

	prompt := fmt.Sprintf(ai.TranslateQueryPrompt, t.registry.Describe(), t.maxRows, question)
	start := time.Now()
	raw, err := util.RetryWithBackoff(ctx, t.backoff, common.IsTransient, func(ctx context.Context) (string, error) {
		return t.client.GenerateCompletion(ctx, prompt, ai.WithModel(t.model), ai.WithTemperature(0))
	})
	if err != nil {
		return nil, err
	}

	resp, err := parseTranslation(raw)
	if err != nil {
		RecordRejectedQuery(tracer, raw, err)
		return nil, err
	}
	RecordGeneratedQuery(tracer, resp.Query, time.Since(start).Milliseconds())

	res, err := cypher.Validate(resp.Query, t.registry, t.maxRows)
	if err != nil {
		RecordRejectedQuery(tracer, resp.Query, err)
		logger.Warn("[Query] generated query rejected", "query", resp.Query, "err", err)
		if cypher.IsParseError(err) {
			return nil, common.Wrap(common.KindQueryGeneration, translateOp, err)
		}
		return nil, err
	}

	if err := t.explain(ctx, res.Query); err != nil {
		RecordRejectedQuery(tracer, res.Query, err)
		logger.Warn("[Query] engine rejected query", "query", res.Query, "err", err)
		return nil, err
	}

	logger.Debug("[Query] translated question", "question", question, "query", res.Query)
	return &common.StructuredQuery{Text: res.Query, Reasoning: resp.Reasoning, Warnings: res.Warnings}, nil
}

func (t *Translator) explain(ctx context.Context, query string) error {
	if t.engine == nil {
		return nil
	}
	err := t.engine.Explain(ctx, query)
	if store.IsTransient(err) && ctx.Err() == nil {
		err = t.engine.Explain(ctx, query)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrSyntax):
		return common.Wrap(common.KindQueryGeneration, translateOp, common.Wrap(common.KindQueryParse, "explain", err))
	case errors.Is(err, store.ErrNotReadOnly):
		return common.Wrap(common.KindQueryGeneration, translateOp, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return common.Wrap(common.KindQueryExecution, "explain", err)
	}
}

// parseTranslation accepts the JSON envelope, or a bare (optionally fenced)
// Cypher statement.
func parseTranslation(raw string) (translateResponse, error) {
	body := ai.StripCodeFence(raw)
	if body == "" {
		return translateResponse{}, common.Errorf(common.KindQueryGeneration, translateOp, "model returned no query")
	}

	var resp translateResponse
	if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "\"") {
		if err := ai.UnmarshalFlexible(body, &resp); err != nil {
			return translateResponse{}, common.Wrap(common.KindQueryGeneration, translateOp, fmt.Errorf("%w: %w", ai.ErrMalformedResponse, err))
		}
		resp.Query = ai.StripCodeFence(resp.Query)
	} else {
		resp.Query = body
	}

	if strings.TrimSpace(resp.Query) == "" {
		return translateResponse{}, common.Errorf(common.KindQueryGeneration, translateOp, "no read-only query answers this question")
	}
	return resp, nil
}
