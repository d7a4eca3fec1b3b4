package types

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited marks an oracle failure caused by provider rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoCaptions is returned by transcript sources that found neither
	// captions nor a description.
	ErrNoCaptions = errors.New("no captions available")
)

// MalformedInputError is a transcript or oracle payload that failed structural parsing.
type MalformedInputError struct {
	Source string
	Err    error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s: %v", e.Source, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// ExternalServiceError is a failed call to the oracle, render engine or
// media resolver, with enough context to retry or report.
type ExternalServiceError struct {
	Service string
	Stage   string
	Hook    string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Hook != "" {
		return fmt.Sprintf("%s %s (hook %s): %v", e.Service, e.Stage, e.Hook, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Stage, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ResourceError is fatal for one clip only: the stream could not be resolved
// or no output was produced.
type ResourceError struct {
	ClipID string
	Err    error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("clip %s: %v", e.ClipID, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
