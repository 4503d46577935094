package rag

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"devops-rag/internal/index"
	"devops-rag/internal/llmservice"
	"devops-rag/internal/models"
)

// ModelLister lists the models offered by the backend.
type ModelLister interface {
	BaseURL() string
	ListModels(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Service answers questions against an index built once and shared by all
// requests. With RebuildPerRequest every question gets a fresh index.
type Service struct {
	pipeline          *Pipeline
	newGenerator      llmservice.GeneratorFactory
	models            ModelLister
	rebuildPerRequest bool

	mu  sync.RWMutex
	idx index.Index
}

func NewService(p *Pipeline, newGenerator llmservice.GeneratorFactory, lister ModelLister, rebuildPerRequest bool) *Service {
	return &Service{
		pipeline:          p,
		newGenerator:      newGenerator,
		models:            lister,
		rebuildPerRequest: rebuildPerRequest,
	}
}

// Init builds the shared index. It is a no-op once an index exists or when
// the service rebuilds per request.
func (s *Service) Init(ctx context.Context) error {
	if s.rebuildPerRequest {
		return nil
	}
	_, err := s.sharedIndex(ctx, NewTrace())
	return err
}

// Ready reports whether questions can be answered without building the
// index first.
func (s *Service) Ready() bool {
	if s.rebuildPerRequest {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx != nil
}

// sharedIndex returns the shared index, building it on first use. A failed
// build leaves no index behind, so the next call tries again.
func (s *Service) sharedIndex(ctx context.Context, tr *Trace) (index.Index, error) {
	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx != nil {
		return s.idx, nil
	}
	idx, err := s.pipeline.BuildIndex(ctx, tr)
	if err != nil {
		return nil, err
	}
	s.idx = idx
	return idx, nil
}

// Ask answers question with the chat model named model.
func (s *Service) Ask(ctx context.Context, model, question string) (string, error) {
	start := time.Now()
	logger := log.Ctx(ctx).With().Str("model", model).Logger()
	ctx = logger.WithContext(ctx)

	tr := NewTrace()
	g, err := s.newGenerator(model)
	if err != nil {
		return "", tr.Fail(ctx, models.NewError(models.KindGeneration, "create generator", err))
	}

	var idx index.Index
	if s.rebuildPerRequest {
		idx, err = s.pipeline.BuildIndex(ctx, tr)
	} else {
		idx, err = s.sharedIndex(ctx, tr)
	}
	if err != nil {
		return "", err
	}

	answer, err := s.pipeline.Answer(ctx, tr, idx, g, question)
	if err != nil {
		return "", err
	}
	logger.Info().
		Stringer("state", tr.Current()).
		Dur("took", time.Since(start)).
		Msg("Question answered")
	return answer, nil
}

func (s *Service) BackendURL() string {
	return s.models.BaseURL()
}

func (s *Service) ListModels(ctx context.Context) ([]string, error) {
	return s.models.ListModels(ctx)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.models.Ping(ctx)
}
