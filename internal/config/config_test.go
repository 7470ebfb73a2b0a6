package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Embedding.ChunkSize)
	assert.Equal(t, 50, cfg.Embedding.ChunkOverlap)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, 0.6, cfg.RAG.MinSimilarity)
	assert.Equal(t, 20, cfg.RAG.MaxHistoryMessages)
	assert.Equal(t, 8000, cfg.RAG.MaxTokenBudget)
	assert.Equal(t, "bolt", cfg.Index.Type)
	assert.Equal(t, "profile.txt", cfg.Paths.Profile)
	assert.Equal(t, "LLM_API_KEY", cfg.LLM.APIKeyEnv)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := writeConfig(t, `
rag:
  top_k: 5
embedding:
  chunk_size: 200
  chunk_overlap: 20
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 200, cfg.Embedding.ChunkSize)
	assert.Equal(t, 20, cfg.Embedding.ChunkOverlap)
	// untouched sections keep defaults
	assert.Equal(t, 8000, cfg.RAG.MaxTokenBudget)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadRejectsOverlapNotSmallerThanSize(t *testing.T) {
	path := writeConfig(t, `
embedding:
  chunk_size: 100
  chunk_overlap: 100
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")

	path = writeConfig(t, `
embedding:
  chunk_size: 100
  chunk_overlap: 150
`)
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownTypes(t *testing.T) {
	_, err := Load(writeConfig(t, "embedding:\n  type: quantum\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "index:\n  type: cloud\n"))
	assert.Error(t, err)
}

func TestLoadOpenAIRequiresSection(t *testing.T) {
	_, err := Load(writeConfig(t, "embedding:\n  type: openai\n"))
	assert.Error(t, err)

	cfg, err := Load(writeConfig(t, `
embedding:
  type: openai
  openai:
    model: text-embedding-3-large
`))
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.OpenAI.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedding.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedding.OpenAI.APIKeyEnv)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not: a: mapping"))
	assert.Error(t, err)
}
