package bootstrap

import (
	"context"
	"fmt"

	"github.com/thirai-kg/backend/pkg/ai"
	anthropicai "github.com/thirai-kg/backend/pkg/ai/anthropic"
	ollamaai "github.com/thirai-kg/backend/pkg/ai/ollama"
	openaiai "github.com/thirai-kg/backend/pkg/ai/openai"
	"github.com/thirai-kg/backend/pkg/graph"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/normalize"
	"github.com/thirai-kg/backend/pkg/query"
	"github.com/thirai-kg/backend/pkg/schema"
	"github.com/thirai-kg/backend/pkg/store"
	"github.com/thirai-kg/backend/pkg/store/neo4j"
)

// Pipeline bundles the clients built from one Config.
type Pipeline struct {
	AI       ai.GraphAIClient
	Store    store.GraphStorage
	Registry *schema.Registry

	Graph    *graph.GraphClient
	Query    *query.QueryClient
	Explorer *graph.Explorer
}

// NewAIClient creates the provider client selected by cfg.Adapter and wraps
// it in a GuardedClient.
func NewAIClient(cfg AIConfig) (ai.GraphAIClient, error) {
	var inner ai.GraphAIClient
	switch cfg.Adapter {
	case "ollama":
		c, err := ollamaai.NewGraphOllamaClient(ollamaai.NewGraphOllamaClientParams{
			ExtractionModel:       cfg.ExtractModel,
			AnswerModel:           cfg.DescribeModel,
			BaseURL:               cfg.ChatURL,
			ApiKey:                cfg.ChatKey,
			MaxConcurrentRequests: int64(cfg.ParallelReq),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		inner = c
	case "anthropic":
		c, err := anthropicai.NewGraphAnthropicClient(anthropicai.NewGraphAnthropicClientParams{
			ExtractionModel: cfg.ExtractModel,
			AnswerModel:     cfg.DescribeModel,
			BaseURL:         cfg.ChatURL,
			ApiKey:          cfg.ChatKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}
		inner = c
	case "openai", "":
		inner = openaiai.NewGraphOpenAIClient(openaiai.NewGraphOpenAIClientParams{
			ExtractionModel: cfg.ExtractModel,
			AnswerModel:     cfg.DescribeModel,
			ChatURL:         cfg.ChatURL,
			ChatKey:         cfg.ChatKey,
		})
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", cfg.Adapter)
	}

	return ai.NewGuardedClient(inner, ai.GuardParams{
		Timeout:        cfg.RequestTimeout,
		RequestsPerSec: cfg.RateLimitRPS,
		Burst:          cfg.RateLimitBurst,
		MaxConcurrent:  int64(cfg.ParallelReq),
	}), nil
}

// NewGraphStorage connects to Neo4j.
func NewGraphStorage(ctx context.Context, cfg StoreConfig, maxRows int) (*neo4j.GraphDBStorage, error) {
	opts := []neo4j.GraphDBStorageOption{
		neo4j.WithQueryTimeout(cfg.QueryTimeout),
		neo4j.WithMaxRows(maxRows),
	}
	if cfg.Database != "" {
		opts = append(opts, neo4j.WithDatabase(cfg.Database))
	}
	return neo4j.NewGraphDBStorage(ctx, neo4j.NewGraphDBStorageParams{
		URI:      cfg.URI,
		Username: cfg.User,
		Password: cfg.Password,
	}, opts...)
}

// NewPipelineWith builds the clients on existing collaborators.
func NewPipelineWith(cfg Config, aiClient ai.GraphAIClient, graphStore store.GraphStorage) *Pipeline {
	registry := schema.Default()
	normalizer := normalize.New(normalize.Params{Honorifics: cfg.Honorifics})

	return &Pipeline{
		AI:       aiClient,
		Store:    graphStore,
		Registry: registry,
		Graph: graph.NewGraphClient(graph.NewGraphClientParams{
			AIClient:           aiClient,
			Writer:             graphStore,
			Registry:           registry,
			Normalizer:         normalizer,
			ExtractionModel:    cfg.AI.ExtractModel,
			TokenEncoder:       cfg.AI.TokenEncoder,
			MaxUnitTokens:      cfg.AI.MaxUnitTokens,
			ParallelTexts:      cfg.AI.ParallelTexts,
			ParallelAiRequests: cfg.AI.ParallelReq,
			MaxRetries:         cfg.AI.MaxRetries,
		}),
		Query: query.NewQueryClient(query.NewQueryClientParams{
			AIClient:         aiClient,
			Reader:           graphStore,
			Registry:         registry,
			QueryModel:       cfg.AI.QueryModel,
			AnswerModel:      cfg.AI.DescribeModel,
			MaxRows:          cfg.Retrieval.MaxRows,
			Expansion:        cfg.Retrieval.Expansion,
			ExpansionDegree:  cfg.Retrieval.ExpansionDegree,
			MaxExpandNodes:   cfg.Retrieval.MaxExpandNodes,
			MaxContextTokens: cfg.AI.MaxContextToken,
			TokenEncoder:     cfg.AI.TokenEncoder,
			MaxRetries:       cfg.AI.MaxRetries,
		}),
		Explorer: graph.NewExplorer(graph.NewExplorerParams{
			Store:       graphStore,
			Registry:    registry,
			Normalizer:  normalizer,
			Degree:      cfg.Retrieval.ExpansionDegree,
			MaxPathHops: cfg.Retrieval.MaxPathHops,
		}),
	}
}

// NewPipeline connects to the AI provider and Neo4j and makes sure the
// identity constraints exist.
func NewPipeline(ctx context.Context, cfg Config) (*Pipeline, error) {
	aiClient, err := NewAIClient(cfg.AI)
	if err != nil {
		return nil, err
	}
	graphStore, err := NewGraphStorage(ctx, cfg.Store, cfg.Retrieval.MaxRows)
	if err != nil {
		return nil, err
	}

	p := NewPipelineWith(cfg, aiClient, graphStore)
	if err := p.Graph.Upserter().EnsureSchema(ctx); err != nil {
		_ = graphStore.Close(ctx)
		return nil, fmt.Errorf("failed to ensure graph schema: %w", err)
	}
	logger.Info("[Bootstrap] pipeline ready", "adapter", cfg.AI.Adapter, "expansion", cfg.Retrieval.Expansion)
	return p, nil
}

func (p *Pipeline) Close(ctx context.Context) error {
	return p.Store.Close(ctx)
}
