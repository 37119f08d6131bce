package persist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"aipixels/internal/domain"
	"aipixels/internal/infra"
)

// Fetcher downloads artifact bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Options wires the coordinator. A nil Store disables durable storage and a
// nil Repository disables metadata persistence; neither is an error.
type Options struct {
	Fetcher    Fetcher
	Store      domain.ObjectStore
	Repository domain.ArtifactRepository
	Logger     *infra.Logger
}

// Job is the input of one persistence run.
type Job struct {
	OwnerID          string
	Sources          []domain.ArtifactSource
	Prompt           string
	TranslatedPrompt string
	StyleID          string
	JobID            string
}

// Result aggregates the outcome. Records map 1:1, in order, to Job.Sources.
type Result struct {
	Records        []domain.ArtifactRecord
	Saved          int
	Total          int
	StorageEnabled bool
}

// Coordinator persists generated artifacts with provider-URL fallback.
type Coordinator struct {
	fetcher Fetcher
	store   domain.ObjectStore
	repo    domain.ArtifactRepository
	logger  *infra.Logger
	newID   func() string
	now     func() time.Time
}

// NewCoordinator builds a Coordinator from opts.
func NewCoordinator(opts Options) *Coordinator {
	return &Coordinator{
		fetcher: opts.Fetcher,
		store:   opts.Store,
		repo:    opts.Repository,
		logger:  infra.OrDiscard(opts.Logger),
		newID:   func() string { return uuid.NewString() },
		now:     time.Now,
	}
}

// StorageConfigured reports whether an object store is wired.
func (c *Coordinator) StorageConfigured() bool { return c.store != nil && c.fetcher != nil }

type uploadOutcome struct {
	path      string
	publicURL string
	err       error
}

// Run persists every source of job. Per-artifact failures are logged and
// absorbed; Run itself only fails on invalid input.
func (c *Coordinator) Run(ctx context.Context, job Job) (*Result, error) {
	if strings.TrimSpace(job.OwnerID) == "" {
		return nil, errors.New("persist: owner id is required")
	}
	total := len(job.Sources)
	records := make([]domain.ArtifactRecord, total)
	created := c.now().UTC()
	for i, src := range job.Sources {
		records[i] = domain.ArtifactRecord{
			OwnerID:          job.OwnerID,
			GeneratedID:      c.newID(),
			SourceURL:        src.SourceURL,
			PublicURL:        src.SourceURL,
			Prompt:           job.Prompt,
			TranslatedPrompt: job.TranslatedPrompt,
			StyleID:          job.StyleID,
			Style:            domain.StyleEnum(job.StyleID),
			JobID:            job.JobID,
			Visibility:       domain.VisibilityPrivate,
			CreatedAt:        created,
		}
	}

	var fallback []int
	stored := 0
	if c.StorageConfigured() && total > 0 {
		outcomes := c.upload(ctx, job.OwnerID, job.Sources)

		var succeeded []int
		for i, o := range outcomes {
			if o.err != nil {
				c.logger.Warn().Err(o.err).Str("job_id", job.JobID).Int("index", i).Msg("artifact upload failed, using provider url")
				fallback = append(fallback, i)
				continue
			}
			records[i].StoredPath = o.path
			records[i].PublicURL = o.publicURL
			succeeded = append(succeeded, i)
		}

		if len(succeeded) > 0 {
			if err := c.insert(ctx, records, succeeded); err != nil {
				c.logger.Error().Err(err).Str("job_id", job.JobID).Int("count", len(succeeded)).Msg("metadata insert failed for stored artifacts, compensating")
				c.compensate(ctx, job.JobID, records, succeeded)
				fallback = append(fallback, succeeded...)
			} else {
				stored = len(succeeded)
			}
		}
	} else {
		fallback = make([]int, total)
		for i := range fallback {
			fallback[i] = i
		}
	}

	if len(fallback) > 0 {
		if err := c.insert(ctx, records, fallback); err != nil {
			c.logger.Error().Err(err).Str("job_id", job.JobID).Int("count", len(fallback)).Msg("metadata insert failed for provider urls")
		}
	}

	saved := 0
	for _, rec := range records {
		if rec.Persisted {
			saved++
		}
	}
	if saved == 0 && total > 0 {
		c.logger.Warn().Str("job_id", job.JobID).Int("total", total).Msg("no artifact persisted, returning in-memory entries")
	}
	return &Result{
		Records:        records,
		Saved:          saved,
		Total:          total,
		StorageEnabled: c.StorageConfigured() && stored > 0,
	}, nil
}

// upload fetches and stores every source concurrently. Each goroutine writes
// only its own slot; one failure never cancels another.
func (c *Coordinator) upload(ctx context.Context, ownerID string, sources []domain.ArtifactSource) []uploadOutcome {
	outcomes := make([]uploadOutcome, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = c.uploadOne(ctx, ownerID, src.SourceURL)
		}()
	}
	wg.Wait()
	return outcomes
}

func (c *Coordinator) uploadOne(ctx context.Context, ownerID, sourceURL string) uploadOutcome {
	data, _, err := c.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return uploadOutcome{err: err}
	}
	ext := Extension(sourceURL)
	key := ownerID + "/" + c.newID() + "." + ext
	publicURL, err := c.store.Put(ctx, ownerID, key, data, ContentType(ext))
	if err != nil {
		return uploadOutcome{err: &domain.StoreFailedError{Path: key, Err: err}}
	}
	return uploadOutcome{path: key, publicURL: publicURL}
}

// insert writes records[idx...] as one batch and copies the persisted rows
// back into place. On failure records are left untouched.
func (c *Coordinator) insert(ctx context.Context, records []domain.ArtifactRecord, idx []int) error {
	if c.repo == nil {
		return nil
	}
	batch := make([]domain.ArtifactRecord, len(idx))
	for j, i := range idx {
		batch[j] = records[i]
	}
	saved, err := c.repo.InsertMany(ctx, batch)
	if err != nil {
		return err
	}
	if len(saved) != len(batch) {
		return fmt.Errorf("persist: repository returned %d records for %d inserts", len(saved), len(batch))
	}
	for j, i := range idx {
		rec := saved[j]
		rec.Persisted = true
		records[i] = rec
	}
	return nil
}

// compensate deletes exactly the objects uploaded in this wave and resets the
// affected records to their provider URL.
func (c *Coordinator) compensate(ctx context.Context, jobID string, records []domain.ArtifactRecord, idx []int) {
	ctx = context.WithoutCancel(ctx)
	for _, i := range idx {
		uploaded := records[i].StoredPath
		if err := c.store.Delete(ctx, uploaded); err != nil {
			c.logger.Error().Err(err).Str("job_id", jobID).Str("path", uploaded).Msg("compensating delete failed")
		}
		records[i].StoredPath = ""
		records[i].PublicURL = records[i].SourceURL
	}
}

var allowedExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true}

// Extension derives the stored file extension from an artifact URL.
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if allowedExtensions[ext] {
		return ext
	}
	return "png"
}

// ContentType maps a stored extension to its MIME type.
func ContentType(ext string) string {
	if ext == "jpg" {
		return "image/jpeg"
	}
	return "image/" + ext
}
