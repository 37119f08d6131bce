package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrServiceNotConfigured = errors.New("service not configured")
	ErrTenancyViolation     = errors.New("path outside owner prefix")
	ErrInvalidKey           = errors.New("invalid storage key")
)

// ValidationError reports a rejected request field. It maps to a 4xx and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// GenerationReason classifies pipeline-level generation failures.
type GenerationReason string

const (
	ReasonCreateRejected GenerationReason = "create_rejected"
	ReasonTimeout        GenerationReason = "timeout"
	ReasonProviderError  GenerationReason = "provider_error"
)

// GenerationFailedError is returned when a prediction cannot be created or
// does not reach a usable terminal state. Message is safe to show to callers;
// Err keeps the provider detail for logs.
type GenerationFailedError struct {
	Reason  GenerationReason
	Message string
	Err     error
}

func (e *GenerationFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("generation failed (%s)", e.Reason)
}

func (e *GenerationFailedError) Unwrap() error { return e.Err }

// UserMessage returns the caller-facing description of the failure.
func (e *GenerationFailedError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Reason {
	case ReasonTimeout:
		return "generation timed out, please try again"
	case ReasonCreateRejected:
		return "the generation request was rejected"
	default:
		return "image generation failed"
	}
}

// IsGenerationReason reports whether err is a GenerationFailedError with the given reason.
func IsGenerationReason(err error, reason GenerationReason) bool {
	var gf *GenerationFailedError
	return errors.As(err, &gf) && gf.Reason == reason
}

// FetchFailedError is a per-artifact download failure.
type FetchFailedError struct {
	URL    string
	Status int
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

// StoreFailedError is a per-artifact object store failure.
type StoreFailedError struct {
	Path string
	Err  error
}

func (e *StoreFailedError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Path, e.Err)
}

func (e *StoreFailedError) Unwrap() error { return e.Err }
