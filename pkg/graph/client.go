package graph

import (
	"github.com/thirai-kg/backend/pkg/ai"
	"github.com/thirai-kg/backend/pkg/normalize"
	"github.com/thirai-kg/backend/pkg/schema"
	"github.com/thirai-kg/backend/pkg/store"
)

// GraphClient builds the knowledge graph from text. It splits long texts
// into units, extracts entities and relations per unit, and hands the merged
// result to the Upserter.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	extractor          *Extractor
	upserter           *Upserter
	tokenEncoder       string
	maxUnitTokens      int
	parallelTexts      int
	parallelAiRequests int
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// TokenEncoder and MaxUnitTokens control how long texts are cut into units.
// ParallelTexts bounds how many texts of a batch are ingested at once and
// ParallelAiRequests how many units of one text are extracted at once.
type NewGraphClientParams struct {
	AIClient        ai.GraphAIClient
	Writer          store.Writer
	Registry        *schema.Registry
	Normalizer      *normalize.Normalizer
	ExtractionModel string

	TokenEncoder       string
	MaxUnitTokens      int
	ParallelTexts      int
	ParallelAiRequests int
	MaxRetries         int
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client := graph.NewGraphClient(graph.NewGraphClientParams{
//		AIClient:      aiClient,
//		Writer:        graphStore,
//		ParallelTexts: 4,
//	})
//	report, err := client.Ingest(ctx, "Rajinikanth starred in Jailer directed by Nelson in 2023")
func NewGraphClient(params NewGraphClientParams) *GraphClient {
	reg := params.Registry
	if reg == nil {
		reg = schema.Default()
	}
	encoder := params.TokenEncoder
	if encoder == "" {
		encoder = "o200k_base"
	}
	// negative disables splitting
	unitTokens := params.MaxUnitTokens
	if unitTokens == 0 {
		unitTokens = 2000
	}
	parallelTexts := params.ParallelTexts
	if parallelTexts <= 0 {
		parallelTexts = 4
	}
	parallelAi := params.ParallelAiRequests
	if parallelAi <= 0 {
		parallelAi = 4
	}

	return &GraphClient{
		extractor: NewExtractor(NewExtractorParams{
			Client:     params.AIClient,
			Registry:   reg,
			Model:      params.ExtractionModel,
			MaxRetries: params.MaxRetries,
		}),
		upserter:           NewUpserter(params.Writer, reg, params.Normalizer),
		tokenEncoder:       encoder,
		maxUnitTokens:      unitTokens,
		parallelTexts:      parallelTexts,
		parallelAiRequests: parallelAi,
	}
}

// Upserter exposes the write path, for example to call EnsureSchema at
// startup.
func (g *GraphClient) Upserter() *Upserter {
	return g.upserter
}
