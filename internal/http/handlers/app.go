package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"aipixels/internal/domain"
	"aipixels/internal/generate"
	"aipixels/internal/infra"
	"aipixels/internal/providers/replicate"
)

// Generator is the orchestrated generation pipeline.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (*generate.Result, error)
}

// Predictions exposes direct status and cancel access to provider jobs.
type Predictions interface {
	Configured() bool
	Poll(ctx context.Context, id string) (*domain.Prediction, error)
	Cancel(ctx context.Context, id string) (replicate.CancelResult, error)
}

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend names a configured backing service for health reporting.
type Backend struct {
	Name   string
	Pinger Pinger
}

type App struct {
	Generator   Generator
	Predictions Predictions
	Storage     Backend
	Metadata    Backend
	Logger      *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": message, "code": errCode})
}

// log returns the request scoped logger installed by middleware.Logger, or
// the app logger.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return infra.OrDiscard(a.Logger)
}

// domainError maps pipeline errors onto the stable error codes.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	var gerr *domain.GenerationFailedError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	case errors.As(err, &verr):
		a.error(w, http.StatusBadRequest, "INVALID_INPUT", verr.Error())
	case errors.Is(err, domain.ErrServiceNotConfigured):
		a.error(w, http.StatusInternalServerError, "SERVICE_NOT_CONFIGURED", "image generation service is not configured")
	case errors.As(err, &gerr):
		a.log(r).Warn().Err(err).Str("reason", string(gerr.Reason)).Msg("generation failed")
		if gerr.Reason == domain.ReasonTimeout {
			a.error(w, http.StatusRequestTimeout, "GENERATION_TIMEOUT", gerr.UserMessage())
			return
		}
		a.error(w, http.StatusInternalServerError, "GENERATION_FAILED", gerr.UserMessage())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "NOT_FOUND", "prediction not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.log(r).Warn().Err(err).Msg("request aborted")
		a.error(w, http.StatusRequestTimeout, "GENERATION_TIMEOUT", "the request was cancelled or timed out")
	default:
		a.log(r).Error().Err(err).Msg("unhandled error")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "a temporary error occurred, please try again later")
	}
}
