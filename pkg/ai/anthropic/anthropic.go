package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/thirai-kg/backend/pkg/ai"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 2048

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("API key required")

// GraphAnthropicClient implements ai.GraphAIClient on the Anthropic Messages API.
// Structured output is requested by embedding the JSON schema in the prompt.
type GraphAnthropicClient struct {
	ai.MetricsRecorder

	extractionModel string
	answerModel     string

	client anthropic.Client
}

// NewGraphAnthropicClientParams configure a GraphAnthropicClient.
type NewGraphAnthropicClientParams struct {
	ExtractionModel string
	AnswerModel     string

	BaseURL string
	ApiKey  string
}

// NewGraphAnthropicClient creates a client. The SDK's own retries are
// disabled; retries are the caller's decision.
func NewGraphAnthropicClient(params NewGraphAnthropicClientParams) (*GraphAnthropicClient, error) {
	if params.ApiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	opts := []option.RequestOption{
		option.WithAPIKey(params.ApiKey),
		option.WithMaxRetries(0),
	}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}

	answerModel := params.AnswerModel
	if answerModel == "" {
		answerModel = params.ExtractionModel
	}

	return &GraphAnthropicClient{
		extractionModel: params.ExtractionModel,
		answerModel:     answerModel,
		client:          anthropic.NewClient(opts...),
	}, nil
}

// GenerateCompletion sends a single-turn prompt and returns the text reply.
func (c *GraphAnthropicClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.answerModel,
		Temperature: 0.2,
	}, opts...)
	return c.message(ctx, options, prompt)
}

// GenerateCompletionWithFormat appends the JSON schema of out to the prompt
// and decodes the reply into out.
func (c *GraphAnthropicClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.extractionModel,
		Temperature: 0.1,
	}, opts...)

	schema, err := json.Marshal(ai.GenerateSchema(out))
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(prompt)
	fmt.Fprintf(&b, "\n\nRespond with a single JSON object named %q", name)
	if description != "" {
		fmt.Fprintf(&b, " (%s)", description)
	}
	fmt.Fprintf(&b, " that validates against this JSON schema and nothing else:\n%s\n", schema)

	text, err := c.message(ctx, options, b.String())
	if err != nil {
		return err
	}
	return ai.DecodeResponse(text, out)
}

func (c *GraphAnthropicClient) message(ctx context.Context, options ai.GenerateOptions, prompt string) (string, error) {
	maxTokens := int64(options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(options.Temperature),
	}
	for _, sp := range options.SystemPrompts {
		params.System = append(params.System, anthropic.TextBlockParam{Text: sp})
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	in, out := int(message.Usage.InputTokens), int(message.Usage.OutputTokens)
	c.Record(ai.ModelMetrics{
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		DurationMs:   time.Since(start).Milliseconds(),
	})

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: no text blocks in response", ai.ErrMalformedResponse)
	}
	return text.String(), nil
}

// IsTransient reports rate limits, overload and server errors, and network
// timeouts.
func (c *GraphAnthropicClient) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
