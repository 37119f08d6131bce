package generate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"aipixels/internal/domain"
	"aipixels/internal/infra"
	"aipixels/internal/persist"
	"aipixels/internal/providers/replicate"
	"aipixels/internal/providers/translate"
)

// DefaultPromptMaxLength is the maximum prompt length in characters.
const DefaultPromptMaxLength = 500

var blockedTerms = []string{"nude", "naked", "explicit", "adult", "nsfw"}

// Generator creates predictions and waits for them.
type Generator interface {
	Configured() bool
	Create(ctx context.Context, prompt string, profile domain.StyleProfile, aspectOverride string) (*domain.Prediction, error)
	AwaitCompletion(ctx context.Context, id string, policy replicate.PollPolicy) (*replicate.Result, error)
}

// Persister stores the artifacts of a finished prediction.
type Persister interface {
	Run(ctx context.Context, job persist.Job) (*persist.Result, error)
}

// Translator optionally rewrites the prompt before generation.
type Translator interface {
	Translate(ctx context.Context, req translate.Request) (translate.Result, error)
}

// Options wires an Orchestrator. Translator may be nil.
type Options struct {
	Generator        Generator
	Persister        Persister
	Translator       Translator
	PollPolicy       replicate.PollPolicy
	PromptMaxLength  int
	RemainingCredits int
	Logger           *infra.Logger
}

// Request is one generation call on behalf of OwnerID.
type Request struct {
	OwnerID        string
	Prompt         string
	StyleID        string
	AspectRatio    string
	ImageSizeRatio string
	Locale         string
}

// Image is one generated artifact as returned to the caller.
type Image struct {
	ID               string    `json:"id"`
	URL              string    `json:"url"`
	ThumbnailURL     string    `json:"thumbnailUrl"`
	Prompt           string    `json:"prompt"`
	TranslatedPrompt string    `json:"translatedPrompt,omitempty"`
	StyleID          string    `json:"styleId"`
	CreatedAt        time.Time `json:"createdAt"`
	PredictionID     string    `json:"predictionId"`
	OwnerID          string    `json:"ownerId"`
	Persisted        bool      `json:"persisted"`
}

// Result is the successful outcome of Generate.
type Result struct {
	Success          bool    `json:"success"`
	Images           []Image `json:"images"`
	GenerationTime   float64 `json:"generationTime"`
	RemainingCredits int     `json:"remainingCredits"`
	SavedCount       int     `json:"savedCount"`
	TotalCount       int     `json:"totalCount"`
	StorageEnabled   bool    `json:"storageEnabled"`
	PredictionID     string  `json:"predictionId"`
}

// Orchestrator runs validate, translate, create, await and persist for one request.
type Orchestrator struct {
	generator  Generator
	persister  Persister
	translator Translator
	policy     replicate.PollPolicy
	maxLength  int
	credits    int
	logger     *infra.Logger
	now        func() time.Time
}

// New builds an Orchestrator.
func New(opts Options) *Orchestrator {
	maxLength := opts.PromptMaxLength
	if maxLength <= 0 {
		maxLength = DefaultPromptMaxLength
	}
	return &Orchestrator{
		generator:  opts.Generator,
		persister:  opts.Persister,
		translator: opts.Translator,
		policy:     opts.PollPolicy,
		maxLength:  maxLength,
		credits:    opts.RemainingCredits,
		logger:     infra.OrDiscard(opts.Logger),
		now:        time.Now,
	}
}

// Generate validates req and runs the full pipeline. Errors are
// domain.ErrUnauthorized, *domain.ValidationError,
// domain.ErrServiceNotConfigured or *domain.GenerationFailedError; storage
// problems never fail the call.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, domain.ErrUnauthorized
	}
	prompt, aspect, err := o.validate(req)
	if err != nil {
		return nil, err
	}
	if o.generator == nil || !o.generator.Configured() {
		return nil, domain.ErrServiceNotConfigured
	}

	started := o.now()
	styleID := strings.TrimSpace(req.StyleID)
	profile := domain.ResolveStyle(styleID)
	translated := o.translate(ctx, prompt, req.Locale)

	providerPrompt := prompt
	if translated != "" {
		providerPrompt = translated
	}
	pred, err := o.generator.Create(ctx, providerPrompt, profile, aspect)
	if err != nil {
		return nil, err
	}
	log := o.logger.With().Str("prediction_id", pred.ID).Str("owner_id", req.OwnerID).Logger()
	log.Info().Str("style_id", styleID).Msg("prediction created")

	res, err := o.generator.AwaitCompletion(ctx, pred.ID, o.policy)
	if err != nil {
		log.Warn().Err(err).Msg("prediction did not complete")
		return nil, err
	}
	if err := replicate.RequireSources(res); err != nil {
		log.Warn().Err(err).Msg("prediction returned no artifacts")
		return nil, err
	}

	records, saved, storageEnabled := o.persist(ctx, req.OwnerID, prompt, translated, styleID, pred.ID, res.Sources, &log)

	images := make([]Image, len(records))
	for i, rec := range records {
		images[i] = imageFromRecord(rec)
	}
	out := &Result{
		Success:          true,
		Images:           images,
		GenerationTime:   o.now().Sub(started).Seconds(),
		RemainingCredits: o.credits,
		SavedCount:       saved,
		TotalCount:       len(records),
		StorageEnabled:   storageEnabled,
		PredictionID:     pred.ID,
	}
	log.Info().Int("saved", saved).Int("total", len(records)).Bool("storage", storageEnabled).Msg("generation complete")
	return out, nil
}

func (o *Orchestrator) validate(req Request) (string, string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", "", &domain.ValidationError{Field: "prompt", Message: "prompt is required"}
	}
	if utf8.RuneCountInString(prompt) > o.maxLength {
		return "", "", &domain.ValidationError{Field: "prompt", Message: fmt.Sprintf("prompt must be at most %d characters", o.maxLength)}
	}
	if strings.TrimSpace(req.StyleID) == "" {
		return "", "", &domain.ValidationError{Field: "styleId", Message: "styleId is required"}
	}
	lower := strings.ToLower(prompt)
	for _, term := range blockedTerms {
		if strings.Contains(lower, term) {
			return "", "", &domain.ValidationError{Field: "prompt", Message: "prompt contains inappropriate content, please rephrase"}
		}
	}
	aspect := strings.TrimSpace(req.AspectRatio)
	if aspect == "" {
		aspect = strings.TrimSpace(req.ImageSizeRatio)
	}
	if aspect != "" && !domain.SupportedAspectRatio(aspect) {
		return "", "", &domain.ValidationError{Field: "aspectRatio", Message: "unsupported aspect ratio " + strconv.Quote(aspect)}
	}
	return prompt, aspect, nil
}

// translate returns the translated prompt, or "" when nothing changed.
func (o *Orchestrator) translate(ctx context.Context, prompt, locale string) string {
	if o.translator == nil {
		return ""
	}
	res, err := o.translator.Translate(ctx, translate.Request{Text: prompt, Source: locale, Target: "en"})
	if err != nil {
		o.logger.Warn().Err(err).Msg("prompt translation failed, using original prompt")
		return ""
	}
	if !res.Translated || res.Text == "" || res.Text == prompt {
		return ""
	}
	return res.Text
}

func (o *Orchestrator) persist(ctx context.Context, ownerID, prompt, translated, styleID, jobID string, sources []domain.ArtifactSource, log *infra.Logger) ([]domain.ArtifactRecord, int, bool) {
	job := persist.Job{
		OwnerID:          ownerID,
		Sources:          sources,
		Prompt:           prompt,
		TranslatedPrompt: translated,
		StyleID:          styleID,
		JobID:            jobID,
	}
	if o.persister != nil {
		res, err := o.persister.Run(ctx, job)
		if err == nil && len(res.Records) == len(sources) {
			return res.Records, res.Saved, res.StorageEnabled
		}
		if err == nil {
			err = errors.New("record count mismatch")
		}
		log.Error().Err(err).Msg("persistence failed, returning provider urls")
	}
	created := o.now().UTC()
	records := make([]domain.ArtifactRecord, len(sources))
	for i, src := range sources {
		records[i] = domain.ArtifactRecord{
			OwnerID:          ownerID,
			GeneratedID:      uuid.NewString(),
			SourceURL:        src.SourceURL,
			PublicURL:        src.SourceURL,
			Prompt:           prompt,
			TranslatedPrompt: translated,
			StyleID:          styleID,
			Style:            domain.StyleEnum(styleID),
			JobID:            jobID,
			Visibility:       domain.VisibilityPrivate,
			CreatedAt:        created,
		}
	}
	return records, 0, false
}

func imageFromRecord(rec domain.ArtifactRecord) Image {
	id := rec.GeneratedID
	if rec.Persisted && rec.ID != 0 {
		id = strconv.FormatInt(rec.ID, 10)
	}
	return Image{
		ID:               id,
		URL:              rec.PublicURL,
		ThumbnailURL:     rec.PublicURL,
		Prompt:           rec.Prompt,
		TranslatedPrompt: rec.TranslatedPrompt,
		StyleID:          rec.StyleID,
		CreatedAt:        rec.CreatedAt,
		PredictionID:     rec.JobID,
		OwnerID:          rec.OwnerID,
		Persisted:        rec.Persisted,
	}
}
