package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbeddingConfig selects the embedder and sets the chunking window.
type EmbeddingConfig struct {
	Type         string                `yaml:"type"`
	ChunkSize    int                   `yaml:"chunk_size"`
	ChunkOverlap int                   `yaml:"chunk_overlap"`
	OpenAI       *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// RAGConfig holds the retrieval and history parameters.
type RAGConfig struct {
	TopK               int     `yaml:"top_k"`
	MinSimilarity      float64 `yaml:"min_similarity"`
	MaxHistoryMessages int     `yaml:"max_history_messages"`
	MaxTokenBudget     int     `yaml:"max_token_budget"`
}

// LLMConfig holds the chat-completion provider settings. The API key
// itself comes from the environment, never the file.
type LLMConfig struct {
	APIURL      string `yaml:"api_url"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxTokens   int    `yaml:"max_tokens"`
}

// PathsConfig locates the persona profile, knowledge corpus, and stores.
type PathsConfig struct {
	Profile      string `yaml:"profile"`
	KnowledgeDir string `yaml:"knowledge_dir"`
	SessionsDir  string `yaml:"sessions_dir"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	RAG       RAGConfig       `yaml:"rag"`
	LLM       LLMConfig       `yaml:"llm"`
	Paths     PathsConfig     `yaml:"paths"`
}

// Load reads a config from the specified path. If the file does not
// exist, returns validated defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, validate(cfg)
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Embedding.Type == "" {
		cfg.Embedding.Type = "local"
	}
	if cfg.Embedding.ChunkSize == 0 {
		cfg.Embedding.ChunkSize = 500
	}
	if cfg.Embedding.ChunkOverlap == 0 {
		cfg.Embedding.ChunkOverlap = 50
	}
	if cfg.Embedding.Type == "openai" && cfg.Embedding.OpenAI != nil {
		if cfg.Embedding.OpenAI.BaseURL == "" {
			cfg.Embedding.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedding.OpenAI.APIKeyEnv == "" {
			cfg.Embedding.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedding.OpenAI.Model == "" {
			cfg.Embedding.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedding.OpenAI.TimeoutSecs == 0 {
			cfg.Embedding.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "bolt"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "index.db"
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.RAG.MinSimilarity == 0 {
		cfg.RAG.MinSimilarity = 0.6
	}
	if cfg.RAG.MaxHistoryMessages == 0 {
		cfg.RAG.MaxHistoryMessages = 20
	}
	if cfg.RAG.MaxTokenBudget == 0 {
		cfg.RAG.MaxTokenBudget = 8000
	}
	if cfg.LLM.APIURL == "" {
		cfg.LLM.APIURL = "https://api.anthropic.com"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-3-haiku-20240307"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "LLM_API_KEY"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.Paths.Profile == "" {
		cfg.Paths.Profile = "profile.txt"
	}
	if cfg.Paths.KnowledgeDir == "" {
		cfg.Paths.KnowledgeDir = "."
	}
	if cfg.Paths.SessionsDir == "" {
		cfg.Paths.SessionsDir = "sessions"
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Embedding.ChunkSize <= 0 {
		return fmt.Errorf("config: embedding.chunk_size must be positive, got %d", cfg.Embedding.ChunkSize)
	}
	if cfg.Embedding.ChunkOverlap < 0 {
		return fmt.Errorf("config: embedding.chunk_overlap must not be negative, got %d", cfg.Embedding.ChunkOverlap)
	}
	if cfg.Embedding.ChunkOverlap >= cfg.Embedding.ChunkSize {
		return fmt.Errorf("config: embedding.chunk_overlap (%d) must be smaller than embedding.chunk_size (%d)",
			cfg.Embedding.ChunkOverlap, cfg.Embedding.ChunkSize)
	}
	if cfg.RAG.TopK <= 0 {
		return fmt.Errorf("config: rag.top_k must be positive, got %d", cfg.RAG.TopK)
	}
	if cfg.RAG.MinSimilarity < -1 || cfg.RAG.MinSimilarity > 1 {
		return fmt.Errorf("config: rag.min_similarity must be within [-1, 1], got %v", cfg.RAG.MinSimilarity)
	}
	if cfg.RAG.MaxTokenBudget <= 0 {
		return fmt.Errorf("config: rag.max_token_budget must be positive, got %d", cfg.RAG.MaxTokenBudget)
	}
	switch cfg.Embedding.Type {
	case "local":
	case "openai":
		if cfg.Embedding.OpenAI == nil {
			return errors.New("config: embedding.openai section required for the openai embedder")
		}
	default:
		return fmt.Errorf("config: unknown embedding.type %q", cfg.Embedding.Type)
	}
	switch cfg.Index.Type {
	case "memory", "bolt":
	default:
		return fmt.Errorf("config: unknown index.type %q", cfg.Index.Type)
	}
	return nil
}
