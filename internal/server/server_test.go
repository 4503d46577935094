package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devops-rag/internal/chromemdb"
	"devops-rag/internal/chunker"
	"devops-rag/internal/config"
	"devops-rag/internal/index"
	"devops-rag/internal/llmservice"
	"devops-rag/internal/models"
	"devops-rag/internal/rag"
	"devops-rag/internal/ragtest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	answer   string
	err      error
	names    []string
	listErr  error
	ready    bool
	panicMsg string

	gotModel, gotQuestion string
	gotDeadline           bool
}

func (f *fakeService) Ask(ctx context.Context, model, question string) (string, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.gotModel, f.gotQuestion = model, question
	_, f.gotDeadline = ctx.Deadline()
	return f.answer, f.err
}

func (f *fakeService) ListModels(context.Context) ([]string, error) { return f.names, f.listErr }
func (f *fakeService) BackendURL() string                            { return "http://localhost:11434" }
func (f *fakeService) Ready() bool                                   { return f.ready }

func serve(t *testing.T, svc Service, target string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := NewRouter(svc, config.ServerConfig{RequestTimeout: time.Minute})
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestHealth(t *testing.T) {
	w, body := serve(t, &fakeService{ready: true}, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{
		"message":     "Server is running!",
		"ollama_url":  "http://localhost:11434",
		"index_ready": true,
	}, body)
}

func TestModels(t *testing.T) {
	w, _ := serve(t, &fakeService{names: []string{"llama3:latest", "nomic-embed-text:latest"}}, "/models", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["llama3:latest","nomic-embed-text:latest"]`, w.Body.String())

	w, _ = serve(t, &fakeService{}, "/models", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestModelsBackendDown(t *testing.T) {
	svc := &fakeService{listErr: models.NewError(models.KindBackendUnreachable, "list models", ragtest.ErrUnreachable)}
	w, body := serve(t, svc, "/models", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t,
		"Failed to connect to Ollama at http://localhost:11434: "+ragtest.ErrUnreachable.Error(),
		body["error"])
}

func TestModelResponse(t *testing.T) {
	svc := &fakeService{answer: "DevOps joins development and operations."}
	w, body := serve(t, svc, "/model_response?model_name=llama3&question=What+is+DevOps%3F", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"answer": "DevOps joins development and operations."}, body)
	assert.Equal(t, "llama3", svc.gotModel)
	assert.Equal(t, "What is DevOps?", svc.gotQuestion)
	assert.True(t, svc.gotDeadline)
}

func TestModelResponseErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"embedding unreachable", models.NewError(models.KindEmbeddingService, "embed chunks", ragtest.ErrUnreachable), http.StatusBadGateway},
		{"generation", models.NewError(models.KindGeneration, "generate answer", ragtest.ErrUnreachable), http.StatusBadGateway},
		{"missing document", models.Errorf(models.KindNotFound, "load", "no such file"), http.StatusInternalServerError},
		{"parse", models.Errorf(models.KindParse, "load", "corrupt pdf"), http.StatusInternalServerError},
		{"retrieval", models.Errorf(models.KindRetrieval, "search", "bad k"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(t, &fakeService{err: tt.err}, "/model_response?model_name=llama3&question=q", nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "Failed to process request: "+tt.err.Error(), body["error"])
			assert.Equal(t, string(models.KindOf(tt.err)), body["kind"])
			assert.NotContains(t, body, "answer")
		})
	}
}

func TestModelResponseMissingParams(t *testing.T) {
	for _, target := range []string{
		"/model_response",
		"/model_response?model_name=llama3",
		"/model_response?question=q",
	} {
		svc := &fakeService{answer: "unused"}
		w, body := serve(t, svc, target, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, body["error"], "Failed to process request: missing query parameter")
		assert.Empty(t, svc.gotModel)
	}
}

func TestRequestID(t *testing.T) {
	w, _ := serve(t, &fakeService{}, "/", http.Header{"X-Request-Id": {"abc-123"}})
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))

	w, _ = serve(t, &fakeService{}, "/", nil)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)
}

func TestRecovery(t *testing.T) {
	w, body := serve(t, &fakeService{panicMsg: "nil map"}, "/model_response?model_name=m&question=q", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to process request: internal error", body["error"])
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, &fakeService{}, config.ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

type staticLister struct{}

func (staticLister) BaseURL() string                              { return "http://localhost:11434" }
func (staticLister) ListModels(context.Context) ([]string, error) { return []string{"llama3"}, nil }
func (staticLister) Ping(context.Context) error                   { return nil }

func TestModelResponseEndToEnd(t *testing.T) {
	split, err := chunker.NewWindowChunker(1200, 300)
	require.NoError(t, err)
	embedder := ragtest.NewHashEmbedder(32)
	pipeline := &rag.Pipeline{
		DocumentPath: "./data/DevOpsknowledgebase.pdf",
		Loader:       &ragtest.Loader{Pages: ragtest.Pages("DevOps is culture and automation.")},
		Chunker:      split,
		Indexer:      index.NewEmbeddingIndexer(embedder, chromemdb.NewStore("devops-rag")),
		Embedder:     embedder,
		NumQueries:   3,
		TopK:         4,
	}
	factory := func(string) (llmservice.Generator, error) {
		return &ragtest.Generator{Respond: ragtest.RewriteThenAnswer("What does DevOps mean?", "Culture and automation.")}, nil
	}
	svc := rag.NewService(pipeline, factory, staticLister{}, false)

	embedder.Err = ragtest.ErrUnreachable
	w, body := serve(t, svc, "/model_response?model_name=llama3&question=What+is+DevOps%3F", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, body["error"], "Failed to process request: ")
	assert.Contains(t, body["error"], "connection refused")
	assert.Equal(t, string(models.KindEmbeddingService), body["kind"])
	assert.NotContains(t, body, "answer")

	embedder.Err = nil
	w, body = serve(t, svc, "/model_response?model_name=llama3&question=What+is+DevOps%3F", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"answer": "Culture and automation."}, body)

	_, body = serve(t, svc, "/", nil)
	assert.Equal(t, true, body["index_ready"])
}
