package replicate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aipixels/internal/domain"
	"aipixels/internal/infra"
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxAttempts = 60
)

// predictionAPI is the subset of Client used by Generator.
type predictionAPI interface {
	CreatePrediction(ctx context.Context, input map[string]any) (*domain.Prediction, error)
	GetPrediction(ctx context.Context, id string) (*domain.Prediction, error)
	CancelPrediction(ctx context.Context, id string) (*domain.Prediction, error)
	HasCredentials() bool
	Model() string
}

// PollPolicy bounds AwaitCompletion. MaxAttempts always applies; Backoff and
// Deadline tighten it further when set.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	Backoff     bool
	MaxInterval time.Duration
	Deadline    time.Duration
}

// DefaultPollPolicy polls every 2s up to 60 times.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: DefaultPollInterval, MaxAttempts: DefaultPollMaxAttempts}
}

func (p PollPolicy) normalized() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPollMaxAttempts
	}
	return p
}

// delay returns the wait after the given 1-based attempt.
func (p PollPolicy) delay(attempt int) time.Duration {
	if !p.Backoff {
		return p.Interval
	}
	d := p.Interval
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxInterval > 0 && d >= p.MaxInterval {
			return p.MaxInterval
		}
	}
	return d
}

// CancelResult reports the outcome of a best-effort cancellation.
type CancelResult string

const (
	CancelAccepted        CancelResult = "accepted"
	CancelAlreadyTerminal CancelResult = "already_terminal"
)

// Result is a prediction that reached succeeded, with its normalized output.
type Result struct {
	Prediction *domain.Prediction
	Output     Output
	Sources    []domain.ArtifactSource
	Attempts   int
}

// Generator drives prediction creation and completion for the orchestrator.
type Generator struct {
	api    predictionAPI
	logger *infra.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// NewGenerator wires a predictions client.
func NewGenerator(api predictionAPI, logger *infra.Logger) *Generator {
	return &Generator{
		api:    api,
		logger: infra.OrDiscard(logger),
		sleep:  sleepContext,
		now:    time.Now,
	}
}

// Configured reports whether provider credentials are present.
func (g *Generator) Configured() bool {
	return g != nil && g.api != nil && g.api.HasCredentials()
}

// Create starts a prediction. The style suffix is appended to prompt and
// aspectOverride wins over the profile aspect ratio. Only a payload rejection
// (4xx other than 401, 403 and 404) is retried, exactly once, with the prompt
// alone; any other failure is a provider error.
func (g *Generator) Create(ctx context.Context, prompt string, profile domain.StyleProfile, aspectOverride string) (*domain.Prediction, error) {
	if !g.Configured() {
		return nil, domain.ErrServiceNotConfigured
	}
	full := buildInput(prompt, profile, aspectOverride)
	pred, err := g.api.CreatePrediction(ctx, full)
	if err == nil {
		return pred, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !isPayloadRejection(err) {
		msg := ""
		if isAuthFailure(err) {
			msg = "the generation service rejected its credentials"
		}
		return nil, &domain.GenerationFailedError{Reason: domain.ReasonProviderError, Message: msg, Err: err}
	}
	g.logger.Warn().Err(err).Str("model", g.api.Model()).Msg("replicate: full payload rejected, retrying with minimal payload")

	minimal := map[string]any{"prompt": full["prompt"]}
	pred, retryErr := g.api.CreatePrediction(ctx, minimal)
	if retryErr != nil {
		return nil, &domain.GenerationFailedError{
			Reason: domain.ReasonCreateRejected,
			Err:    fmt.Errorf("full payload: %v; minimal payload: %w", err, retryErr),
		}
	}
	return pred, nil
}

// Poll performs a single status fetch.
func (g *Generator) Poll(ctx context.Context, id string) (*domain.Prediction, error) {
	if !g.Configured() {
		return nil, domain.ErrServiceNotConfigured
	}
	pred, err := g.api.GetPrediction(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("prediction %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return pred, nil
}

// AwaitCompletion polls until the prediction is terminal or the policy is
// exhausted. Only a succeeded prediction yields a Result.
func (g *Generator) AwaitCompletion(ctx context.Context, id string, policy PollPolicy) (*Result, error) {
	policy = policy.normalized()
	var deadline time.Time
	if policy.Deadline > 0 {
		deadline = g.now().Add(policy.Deadline)
	}
	var last domain.JobStatus
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		pred, err := g.Poll(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &domain.GenerationFailedError{Reason: domain.ReasonProviderError, Err: err}
		}
		if last != "" && !domain.CanTransition(last, pred.Status) {
			g.logger.Warn().
				Str("prediction_id", id).
				Str("from", string(last)).
				Str("to", string(pred.Status)).
				Msg("replicate: unexpected status transition")
		}
		last = pred.Status

		if pred.Status.Terminal() {
			return g.finish(pred, attempt)
		}
		if attempt == policy.MaxAttempts {
			break
		}
		wait := policy.delay(attempt)
		if !deadline.IsZero() && g.now().Add(wait).After(deadline) {
			break
		}
		if err := g.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, &domain.GenerationFailedError{
		Reason: domain.ReasonTimeout,
		Err:    fmt.Errorf("prediction %s still %s after polling", id, last),
	}
}

func (g *Generator) finish(pred *domain.Prediction, attempts int) (*Result, error) {
	switch pred.Status {
	case domain.JobStatusSucceeded:
		out := ParseOutput(pred.Output)
		if out.Kind == OutputUnrecognized {
			g.logger.Error().
				Str("prediction_id", pred.ID).
				RawJSON("output", safeRaw(out.Raw)).
				Msg("replicate: unrecognized output shape")
		}
		return &Result{Prediction: pred, Output: out, Sources: out.Sources(), Attempts: attempts}, nil
	case domain.JobStatusCanceled:
		return nil, &domain.GenerationFailedError{
			Reason:  domain.ReasonProviderError,
			Message: "the generation was canceled",
			Err:     fmt.Errorf("prediction %s canceled", pred.ID),
		}
	default:
		detail := strings.TrimSpace(pred.Error)
		if detail == "" {
			detail = "no error detail"
		}
		return nil, &domain.GenerationFailedError{
			Reason: domain.ReasonProviderError,
			Err:    fmt.Errorf("prediction %s failed: %s", pred.ID, detail),
		}
	}
}

// Cancel stops a running prediction. A prediction that is already terminal
// reports CancelAlreadyTerminal rather than an error.
func (g *Generator) Cancel(ctx context.Context, id string) (CancelResult, error) {
	pred, err := g.Poll(ctx, id)
	if err != nil {
		return "", err
	}
	if pred.Status.Terminal() {
		return CancelAlreadyTerminal, nil
	}
	canceled, err := g.api.CancelPrediction(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return "", fmt.Errorf("prediction %s: %w", id, domain.ErrNotFound)
		}
		return "", err
	}
	if canceled.Status.Terminal() && canceled.Status != domain.JobStatusCanceled {
		return CancelAlreadyTerminal, nil
	}
	return CancelAccepted, nil
}

func buildInput(prompt string, profile domain.StyleProfile, aspectOverride string) map[string]any {
	enhanced := strings.TrimSpace(prompt)
	if suffix := strings.TrimSpace(profile.PromptSuffix); suffix != "" {
		enhanced = enhanced + ", " + suffix
	}
	aspect := strings.TrimSpace(aspectOverride)
	if aspect == "" {
		aspect = profile.AspectRatio
	}
	return map[string]any{
		"prompt":                 enhanced,
		"aspect_ratio":           aspect,
		"num_outputs":            1,
		"output_format":          "png",
		"output_quality":         profile.Quality,
		"num_inference_steps":    profile.StepCount,
		"disable_safety_checker": false,
		"go_fast":                true,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func safeRaw(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

var errNoSources = errors.New("replicate: succeeded prediction returned no images")

// RequireSources converts an empty output into a provider error.
func RequireSources(res *Result) error {
	if res == nil || len(res.Sources) == 0 {
		return &domain.GenerationFailedError{
			Reason:  domain.ReasonProviderError,
			Message: "the generation service returned no images",
			Err:     errNoSources,
		}
	}
	return nil
}
