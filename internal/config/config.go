package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int               `json:"port"`
	DBPath      string            `json:"db_path"`
	LogConfig   logger.LogConfig  `json:"log_config"`
	AI          AIConfig          `json:"ai"`
	VectorIndex VectorIndexConfig `json:"vector_index"`
	Chunker     ChunkerConfig     `json:"chunker"`
	Retrieval   RetrievalConfig   `json:"retrieval"`
	Generation  GenerationConfig  `json:"generation"`
	Enhancer    EnhancerConfig    `json:"enhancer"`
	EmbedCache  EmbedCacheConfig  `json:"embed_cache"`
	Corpus      CorpusConfig      `json:"corpus"`
	Jobs        JobsConfig        `json:"jobs"`
	// CORSAllowlist restricts browser origins; empty means allow all.
	CORSAllowlist []string `json:"cors_allowlist"`
}

// AIModelConfig names one provider/model pair. Data carries provider-specific
// arguments and is decoded by the provider factory.
type AIModelConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Chat        []AIModelConfig `json:"chat"`
	Embed       []AIModelConfig `json:"embed"`
	TimeoutSecs int             `json:"timeout_secs"`
}

type VectorIndexConfig struct {
	Type       string      `json:"type"`
	Collection string      `json:"collection"`
	Dimension  int         `json:"dimension"`
	Distance   string      `json:"distance"`
	Data       interface{} `json:"data"`
}

type ChunkerConfig struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

type RetrievalConfig struct {
	DefaultTopK         int     `json:"default_top_k"`
	ContextTopK         int     `json:"context_top_k"`
	SimilarityThreshold float32 `json:"similarity_threshold"`
}

type GenerationConfig struct {
	Temperature  float32 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	SystemPrompt string  `json:"system_prompt"`
}

type EnhancerConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	// Rerank reorders source attribution by enhancer relevance scores.
	Rerank bool `json:"rerank"`
}

type EmbedCacheConfig struct {
	LRUSize    int    `json:"lru_size"`
	TTLMinutes int    `json:"ttl_minutes"`
	DBDSN      string `json:"db_dsn"`
	MaxAgeDays int    `json:"max_age_days"`
}

// CorpusConfig points ingestion at a document source. Store is a filestore
// config (local or s3); an empty type disables corpus sync.
type CorpusConfig struct {
	Store      StoreConfig       `json:"store"`
	Extensions []string          `json:"extensions"`
	Metadata   map[string]string `json:"metadata"`
}

type StoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JobsConfig struct {
	CorpusSyncSpec   string `json:"corpus_sync_spec"`
	CacheCleanupSpec string `json:"cache_cleanup_spec"`
}

const defaultSystemPrompt = "You are an AI assistant for a technical textbook. " +
	"Use the provided context to answer questions accurately. " +
	"If the context doesn't contain enough information, say so. " +
	"Always be helpful and educational."

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if len(cfg.AI.Chat) == 0 {
		return nil, fmt.Errorf("ai.chat requires at least one provider")
	}
	if len(cfg.AI.Embed) == 0 {
		return nil, fmt.Errorf("ai.embed requires at least one provider")
	}
	for i, item := range cfg.AI.Chat {
		if item.Provider == "" || item.Model == "" {
			return nil, fmt.Errorf("ai.chat[%d] provider/model are required", i)
		}
	}
	for i, item := range cfg.AI.Embed {
		if item.Provider == "" || item.Model == "" {
			return nil, fmt.Errorf("ai.embed[%d] provider/model are required", i)
		}
	}
	if cfg.AI.TimeoutSecs == 0 {
		cfg.AI.TimeoutSecs = 60
	}
	if cfg.VectorIndex.Type == "" {
		return nil, fmt.Errorf("vector_index.type is required")
	}
	if cfg.VectorIndex.Collection == "" {
		cfg.VectorIndex.Collection = "textbook_content"
	}
	if cfg.VectorIndex.Dimension == 0 {
		cfg.VectorIndex.Dimension = 1536
	}
	if cfg.VectorIndex.Distance == "" {
		cfg.VectorIndex.Distance = "cosine"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkSize < 0 {
		return nil, fmt.Errorf("chunker.chunk_size must be positive")
	}
	if cfg.Chunker.ChunkOverlap < 0 {
		return nil, fmt.Errorf("chunker.chunk_overlap must not be negative")
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 5
	}
	if cfg.Retrieval.ContextTopK == 0 {
		cfg.Retrieval.ContextTopK = 3
	}
	if cfg.Retrieval.SimilarityThreshold == 0 {
		cfg.Retrieval.SimilarityThreshold = 0.3
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.7
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 1000
	}
	if cfg.Generation.SystemPrompt == "" {
		cfg.Generation.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Enhancer.Type == "" {
		cfg.Enhancer.Type = "none"
	}
	if cfg.EmbedCache.LRUSize == 0 {
		cfg.EmbedCache.LRUSize = 10000
	}
	if cfg.EmbedCache.TTLMinutes == 0 {
		cfg.EmbedCache.TTLMinutes = 120
	}
	if cfg.EmbedCache.MaxAgeDays == 0 {
		cfg.EmbedCache.MaxAgeDays = 30
	}
	if len(cfg.Corpus.Extensions) == 0 {
		cfg.Corpus.Extensions = []string{".md", ".mdx", ".txt"}
	}
	if cfg.Jobs.CacheCleanupSpec == "" {
		cfg.Jobs.CacheCleanupSpec = "0 4 * * *"
	}
	return &cfg, nil
}
