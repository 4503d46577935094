package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvOllamaBaseURL, "")
	t.Setenv(EnvDocumentPath, "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultOllamaBaseURL, cfg.Ollama.BaseURL)
	assert.Equal(t, DefaultDocumentPath, cfg.Document.Path)
	assert.Equal(t, 1200, cfg.RAG.ChunkSize)
	assert.Equal(t, 300, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 3, cfg.RAG.NumQueries)
	assert.Equal(t, 4, cfg.RAG.TopK)
	assert.Equal(t, DefaultOllamaBaseURL, cfg.EmbedLLM.BaseURL)
	assert.Equal(t, DefaultOllamaBaseURL, cfg.ChatLLM.BaseURL)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv(EnvOllamaBaseURL, "")
	t.Setenv(EnvDocumentPath, "")

	path := writeConfig(t, `
ollama:
  base_url: http://ollama:11434/
rag:
  chunk_size: 500
  chunk_overlap: 50
  top_k: 2
chat_llm:
  timeout: 30s
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://ollama:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 2, cfg.RAG.TopK)
	assert.Equal(t, ChunkerWindow, cfg.RAG.Chunker, "unset keys keep their defaults")
	assert.Equal(t, 30*time.Second, cfg.ChatLLM.Timeout)
	assert.Equal(t, "http://ollama:11434", cfg.ChatLLM.BaseURL)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv(EnvOllamaBaseURL, "http://gpu-box:11434")
	t.Setenv(EnvDocumentPath, "/srv/kb.pdf")

	path := writeConfig(t, "ollama:\n  base_url: http://ignored:1\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "http://gpu-box:11434", cfg.EmbedLLM.BaseURL)
	assert.Equal(t, "/srv/kb.pdf", cfg.Document.Path)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "rag: [not, a, map")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"overlap equals size", func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize }, "chunk_overlap"},
		{"negative overlap", func(c *Config) { c.RAG.ChunkOverlap = -1 }, "chunk_overlap"},
		{"zero size", func(c *Config) { c.RAG.ChunkSize = 0 }, "chunk_size"},
		{"zero top_k", func(c *Config) { c.RAG.TopK = 0 }, "top_k"},
		{"unknown chunker", func(c *Config) { c.RAG.Chunker = "semantic" }, "rag.chunker"},
		{"unknown provider", func(c *Config) { c.ChatLLM.Provider = "bedrock" }, "chat_llm.provider"},
		{"pgvector without dsn", func(c *Config) { c.Index.Backend = BackendPGVector }, "database.dsn"},
		{"unknown backend", func(c *Config) { c.Index.Backend = "qdrant" }, "index.backend"},
		{"negative search workers", func(c *Config) { c.RAG.SearchWorkers = -1 }, "search_workers"},
		{"sequential search", func(c *Config) { c.RAG.SearchWorkers = 0 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
