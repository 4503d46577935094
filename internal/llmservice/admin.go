package llmservice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"devops-rag/internal/models"
)

// OllamaAdmin talks to the Ollama management API.
type OllamaAdmin struct {
	baseURL string
	client  *api.Client
}

// NewOllamaAdmin creates a client for baseURL. A zero timeout leaves requests
// bounded only by their context.
func NewOllamaAdmin(baseURL string, timeout time.Duration) (*OllamaAdmin, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama url %q", baseURL)
	}
	return &OllamaAdmin{
		baseURL: baseURL,
		client:  api.NewClient(u, &http.Client{Timeout: timeout}),
	}, nil
}

func (a *OllamaAdmin) BaseURL() string { return a.baseURL }

// ListModels returns the names of the locally available models.
func (a *OllamaAdmin) ListModels(ctx context.Context) ([]string, error) {
	resp, err := a.client.List(ctx)
	if err != nil {
		return nil, models.NewError(models.KindBackendUnreachable, "list models", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ping checks that the server answers.
func (a *OllamaAdmin) Ping(ctx context.Context) error {
	if err := a.client.Heartbeat(ctx); err != nil {
		return models.NewError(models.KindBackendUnreachable, "ping", err)
	}
	return nil
}
