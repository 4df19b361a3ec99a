// Package bootstrap wires the graph pipeline from environment settings. It
// is shared by the API server and the worker.
package bootstrap

import (
	"time"

	"github.com/thirai-kg/backend/internal/util"
)

type AIConfig struct {
	Adapter         string
	ChatURL         string
	ChatKey         string
	ExtractModel    string
	DescribeModel   string
	QueryModel      string
	ParallelReq     int
	RequestTimeout  time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxRetries      int
	ParallelTexts   int
	TokenEncoder    string
	MaxUnitTokens   int
	MaxContextToken int
}

type StoreConfig struct {
	URI          string
	User         string
	Password     string
	Database     string
	QueryTimeout time.Duration
}

type RetrievalConfig struct {
	Expansion       bool
	ExpansionDegree int
	MaxExpandNodes  int
	MaxRows         int
	MaxPathHops     int
}

// Config holds every setting of the pipeline.
type Config struct {
	AI         AIConfig
	Store      StoreConfig
	Retrieval  RetrievalConfig
	Honorifics []string
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() Config {
	return Config{
		AI: AIConfig{
			Adapter:         util.GetEnvString("AI_ADAPTER", "openai"),
			ChatURL:         util.GetEnv("AI_CHAT_URL"),
			ChatKey:         util.GetEnv("AI_CHAT_KEY"),
			ExtractModel:    util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			DescribeModel:   util.GetEnv("AI_CHAT_DESCRIBE_MODEL"),
			QueryModel:      util.GetEnv("AI_CHAT_QUERY_MODEL"),
			ParallelReq:     util.GetEnvInt("AI_PARALLEL_REQ", 8),
			RequestTimeout:  util.GetEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),
			RateLimitRPS:    util.GetEnvNumeric("AI_RATE_LIMIT_RPS", 0),
			RateLimitBurst:  util.GetEnvInt("AI_RATE_LIMIT_BURST", 1),
			MaxRetries:      util.GetEnvInt("EXTRACTION_MAX_RETRIES", 3),
			ParallelTexts:   util.GetEnvInt("INGEST_PARALLEL_TEXTS", 4),
			TokenEncoder:    util.GetEnvString("AI_TOKEN_ENCODER", "o200k_base"),
			MaxUnitTokens:   util.GetEnvInt("INGEST_MAX_UNIT_TOKENS", 2000),
			MaxContextToken: util.GetEnvInt("SYNTHESIS_MAX_CONTEXT_TOKENS", 6000),
		},
		Store: StoreConfig{
			URI:          util.GetEnvString("NEO4J_URI", "neo4j://localhost:7687"),
			User:         util.GetEnvString("NEO4J_USER", "neo4j"),
			Password:     util.GetEnv("NEO4J_PASSWORD"),
			Database:     util.GetEnv("NEO4J_DATABASE"),
			QueryTimeout: util.GetEnvDuration("STORE_QUERY_TIMEOUT", 15*time.Second),
		},
		Retrieval: RetrievalConfig{
			Expansion:       util.GetEnvBool("RETRIEVAL_EXPANSION", true),
			ExpansionDegree: util.GetEnvInt("RETRIEVAL_EXPANSION_DEGREE", 15),
			MaxExpandNodes:  util.GetEnvInt("RETRIEVAL_MAX_EXPAND_NODES", 10),
			MaxRows:         util.GetEnvInt("RETRIEVAL_MAX_ROWS", 50),
			MaxPathHops:     util.GetEnvInt("EXPLORE_MAX_PATH_HOPS", 6),
		},
		Honorifics: util.GetEnvList("NORMALIZER_HONORIFICS"),
	}
}
