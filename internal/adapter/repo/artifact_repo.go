package repo

import (
	"context"
	"fmt"

	"aipixels/internal/domain"
	"aipixels/internal/infra"
	"aipixels/internal/sqlinline"
)

// ArtifactRepositoryPG implements domain.ArtifactRepository using PostgreSQL.
type ArtifactRepositoryPG struct {
	sql *infra.SQLRunner
}

// NewArtifactRepository constructs a new artifact repository instance.
func NewArtifactRepository(runner *infra.SQLRunner) *ArtifactRepositoryPG {
	return &ArtifactRepositoryPG{sql: runner}
}

// EnsureSchema creates the images table when it does not exist yet.
func (r *ArtifactRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QEnsureImagesTable); err != nil {
		return fmt.Errorf("repo: ensure images table: %w", err)
	}
	return nil
}

// InsertMany writes all records in one transaction. On any failure nothing is
// committed and the returned slice is nil.
func (r *ArtifactRepositoryPG) InsertMany(ctx context.Context, records []domain.ArtifactRecord) ([]domain.ArtifactRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]domain.ArtifactRecord, len(records))
	err := r.sql.InTx(ctx, func(tx *infra.SQLRunner) error {
		for i, rec := range records {
			row := tx.QueryRow(ctx, sqlinline.QInsertImage, insertArgs(rec)...)
			if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
				return fmt.Errorf("repo: insert image %d: %w", i, err)
			}
			rec.Persisted = true
			out[i] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks database connectivity.
func (r *ArtifactRepositoryPG) Ping(ctx context.Context) error {
	var one int
	return r.sql.QueryRow(ctx, sqlinline.QPing).Scan(&one)
}

func insertArgs(rec domain.ArtifactRecord) []any {
	visibility := rec.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPrivate
	}
	return []any{
		rec.OwnerID,
		rec.GeneratedID,
		rec.DurableReference(),
		rec.PublicURL,
		rec.SourceURL,
		rec.Prompt,
		rec.TranslatedPrompt,
		rec.StyleID,
		rec.Style,
		rec.JobID,
		string(visibility),
	}
}
