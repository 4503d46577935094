package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devops-rag/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSetupLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	require.NoError(t, setupLogger(config.LogConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	require.NoError(t, setupLogger(config.LogConfig{Level: "warn", Format: "console"}))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	assert.Error(t, setupLogger(config.LogConfig{Level: "loud"}))
	assert.Error(t, setupLogger(config.LogConfig{Level: "info", Format: "xml"}))
}

func TestModelsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "llama3:latest"}, {"name": "mistral:7b"}},
		})
	}))
	defer srv.Close()
	t.Setenv(config.EnvOllamaBaseURL, srv.URL)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"models", "--config", writeConfig(t, "log:\n  level: error\n")})
	require.NoError(t, root.Execute())
	assert.Equal(t, "llama3:latest\nmistral:7b\n", out.String())
}

func TestModelsCommandBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	t.Setenv(config.EnvOllamaBaseURL, url)

	root := newRootCmd()
	root.SetArgs([]string{"models", "--config", writeConfig(t, "log:\n  level: error\n")})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Ollama at "+url)
}

func TestAskRequiresModel(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"ask", "--config", writeConfig(t, "log:\n  level: error\n"), "What is DevOps?"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chat model")
}

func TestRootRejectsBadConfig(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"models", "--config", writeConfig(t, "rag:\n  chunk_size: 10\n  chunk_overlap: 20\n")})
	assert.Error(t, root.Execute())
}
