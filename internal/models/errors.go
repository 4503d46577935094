package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NotFoundError"
	KindParse              ErrorKind = "ParseError"
	KindEmbeddingService   ErrorKind = "EmbeddingServiceError"
	KindRetrieval          ErrorKind = "RetrievalError"
	KindGeneration         ErrorKind = "GenerationError"
	KindBackendUnreachable ErrorKind = "BackendUnreachableError"
	KindUnknown            ErrorKind = "UnknownError"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return e.Op
	case e.Op == "":
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with kind. It returns nil for a nil err.
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Classify keeps the kind already carried by err and otherwise tags it with
// fallback.
func Classify(err error, fallback ErrorKind, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: fallback, Op: op, Err: err}
}
