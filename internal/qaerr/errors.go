// Package qaerr defines the error taxonomy shared by the question-answering pipeline.
//
// Every failure that crosses a component boundary is reported as an *Error carrying
// a Kind. Callers test for a kind with errors.Is against the package sentinels:
//
//	if errors.Is(err, qaerr.ErrGeneration) { ... }
//
// The underlying cause stays reachable through errors.Is/errors.As as well, so a
// cancelled generation matches both ErrGeneration and context.Canceled.
package qaerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindConfig           Kind = "config"
	KindIngestion        Kind = "ingestion"
	KindEmbeddingService Kind = "embedding_service"
	KindRetrieval        Kind = "retrieval"
	KindPromptAssembly   Kind = "prompt_assembly"
	KindGeneration       Kind = "generation"
)

// Sentinels matched by errors.Is for each Kind.
var (
	ErrConfig           = errors.New("invalid configuration")
	ErrIngestion        = errors.New("document ingestion failed")
	ErrEmbeddingService = errors.New("embedding service failed")
	ErrRetrieval        = errors.New("retrieval failed")
	ErrPromptAssembly   = errors.New("prompt assembly failed")
	ErrGeneration       = errors.New("generation failed")
)

var sentinels = map[Kind]error{
	KindConfig:           ErrConfig,
	KindIngestion:        ErrIngestion,
	KindEmbeddingService: ErrEmbeddingService,
	KindRetrieval:        ErrRetrieval,
	KindPromptAssembly:   ErrPromptAssembly,
	KindGeneration:       ErrGeneration,
}

// Error is a classified pipeline failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "chunker.split".
	Op  string
	Err error
}

// New returns an *Error of the given kind wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	sentinel := sentinels[e.Kind]
	msg := string(e.Kind)
	if sentinel != nil {
		msg = sentinel.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Config returns a configuration error.
func Config(op string, format string, args ...any) *Error {
	return New(KindConfig, op, fmt.Errorf(format, args...))
}

// Ingestion wraps err as an ingestion error.
func Ingestion(op string, err error) *Error { return New(KindIngestion, op, err) }

// EmbeddingService wraps err as an embedding service error.
func EmbeddingService(op string, err error) *Error { return New(KindEmbeddingService, op, err) }

// Retrieval wraps err as a retrieval error.
func Retrieval(op string, err error) *Error { return New(KindRetrieval, op, err) }

// PromptAssembly wraps err as a prompt assembly error.
func PromptAssembly(op string, err error) *Error { return New(KindPromptAssembly, op, err) }

// Generation wraps err as a generation error.
func Generation(op string, err error) *Error { return New(KindGeneration, op, err) }
