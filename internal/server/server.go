package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"devops-rag/internal/config"
	"devops-rag/internal/models"
)

// Service is what the HTTP handlers need from the question-answering service.
type Service interface {
	Ask(ctx context.Context, model, question string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
	BackendURL() string
	Ready() bool
}

type handler struct {
	svc            Service
	requestTimeout time.Duration
}

// NewRouter registers the routes on a new gin engine.
func NewRouter(svc Service, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(requestID(), requestLogger(), recovery())

	h := &handler{svc: svc, requestTimeout: cfg.RequestTimeout}
	r.GET("/", h.health)
	r.GET("/models", h.listModels)
	r.GET("/model_response", h.modelResponse)
	return r
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Server is running!",
		"ollama_url":  h.svc.BackendURL(),
		"index_ready": h.svc.Ready(),
	})
}

func (h *handler) listModels(c *gin.Context) {
	names, err := h.svc.ListModels(c.Request.Context())
	if err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("Failed to list models")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": fmt.Sprintf("Failed to connect to Ollama at %s: %v", h.svc.BackendURL(), cause(err)),
		})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, names)
}

func (h *handler) modelResponse(c *gin.Context) {
	model := c.Query("model_name")
	question := c.Query("question")
	for _, p := range [][2]string{{"model_name", model}, {"question", question}} {
		if name, v := p[0], p[1]; v == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Failed to process request: missing query parameter %s", name),
			})
			return
		}
	}

	ctx := c.Request.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	answer, err := h.svc.Ask(ctx, model, question)
	if err != nil {
		kind := models.KindOf(err)
		c.JSON(statusFor(kind), gin.H{
			"error": "Failed to process request: " + err.Error(),
			"kind":  kind,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// cause strips the operation prefix from a classified error.
func cause(err error) error {
	var e *models.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err
	}
	return err
}

// statusFor maps backend failures to 502 and everything else to 500.
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindEmbeddingService, models.KindGeneration, models.KindBackendUnreachable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, svc Service, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: NewRouter(svc, cfg),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}
