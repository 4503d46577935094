package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"devops-rag/internal/models"
)

// State is a pipeline stage.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateChunking
	StateIndexing
	StateRetrieving
	StateGenerating
	StateDone
	StateFailed
)

var stateNames = [...]string{"Idle", "Loading", "Chunking", "Indexing", "Retrieving", "Generating", "Done", "Failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) terminal() bool { return s == StateDone || s == StateFailed }

// defaultKind is the error kind reported when a stage fails with an
// unclassified error.
func (s State) defaultKind() models.ErrorKind {
	switch s {
	case StateLoading, StateChunking:
		return models.KindParse
	case StateIndexing:
		return models.KindEmbeddingService
	case StateRetrieving:
		return models.KindRetrieval
	case StateGenerating:
		return models.KindGeneration
	}
	return models.KindUnknown
}

// Trace records the states one run passes through. States only move
// forward and end in Done or Failed.
type Trace struct {
	mu     sync.Mutex
	states []State
	err    error
}

func NewTrace() *Trace {
	return &Trace{states: []State{StateIdle}}
}

func (t *Trace) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[len(t.states)-1]
}

func (t *Trace) States() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]State(nil), t.states...)
}

// Err is the error the run failed with, if any.
func (t *Trace) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Advance moves to next, which must come after the current state.
func (t *Trace) Advance(ctx context.Context, next State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.states[len(t.states)-1]
	if cur.terminal() || next <= cur || next == StateFailed {
		return fmt.Errorf("invalid transition %s -> %s", cur, next)
	}
	t.states = append(t.states, next)
	log.Ctx(ctx).Debug().Stringer("from", cur).Stringer("to", next).Msg("Pipeline state")
	return nil
}

// Fail moves to Failed and returns err tagged with the kind of the stage
// that failed, unless err already carries one.
func (t *Trace) Fail(ctx context.Context, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.states[len(t.states)-1]
	err = models.Classify(err, cur.defaultKind(), strings.ToLower(cur.String()))
	if cur.terminal() {
		return err
	}
	t.states = append(t.states, StateFailed)
	t.err = err
	log.Ctx(ctx).Error().Err(err).
		Stringer("state", cur).
		Str("kind", string(models.KindOf(err))).
		Msg("Pipeline failed")
	return err
}
