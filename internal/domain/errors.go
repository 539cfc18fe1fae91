package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every component. Callers match with errors.Is.
var (
	// ErrIO indicates a filesystem failure. Usually worth retrying.
	ErrIO = errors.New("io error")

	// ErrCorruptState indicates a persisted file exists but cannot be decoded.
	// Callers decide whether to rebuild or fail.
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrNotFound indicates there is no persisted state or file.
	ErrNotFound = errors.New("not found")

	// ErrIndexNotReady indicates a query or add before training completed.
	ErrIndexNotReady = errors.New("index not ready")

	// ErrTrainingInProgress indicates another training run holds the directory.
	ErrTrainingInProgress = errors.New("training in progress")

	// ErrModelUnavailable indicates the embedding or classification model is missing.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrLogUnavailable indicates the recommender access log is missing or unreadable.
	ErrLogUnavailable = errors.New("access log unavailable")

	// ErrInvalidRequest indicates a missing or wrongly typed call argument.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDimensionMismatch indicates a vector of the wrong dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Backend names used in PartialIndexError.
const (
	BackendLexical  = "lexical"
	BackendSemantic = "semantic"
)

// PartialIndexError reports that one backend failed to apply an update
// while the other one committed it.
type PartialIndexError struct {
	Backend string
	Err     error
}

func (e *PartialIndexError) Error() string {
	return fmt.Sprintf("partial index update: %s backend failed: %v", e.Backend, e.Err)
}

func (e *PartialIndexError) Unwrap() error {
	return e.Err
}

// Retryable reports whether err is transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCorruptState) || errors.Is(err, ErrModelUnavailable) {
		return false
	}
	return errors.Is(err, ErrIO) || errors.Is(err, ErrTrainingInProgress)
}
