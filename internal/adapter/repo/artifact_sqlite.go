package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"aipixels/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database at the given path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS images (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	clerk_user_id     TEXT NOT NULL,
	generated_id      TEXT NOT NULL,
	file_path         TEXT NOT NULL,
	thumbnail_url     TEXT,
	source_url        TEXT NOT NULL,
	prompt            TEXT NOT NULL,
	translated_prompt TEXT,
	style_id          TEXT NOT NULL,
	style             TEXT,
	replicate_id      TEXT,
	visibility        TEXT NOT NULL DEFAULT 'private',
	created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_images_owner ON images(clerk_user_id, created_at);
`

// ArtifactRepositorySQLite implements domain.ArtifactRepository on SQLite.
type ArtifactRepositorySQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewArtifactRepositorySQLite creates the schema and returns the repository.
func NewArtifactRepositorySQLite(db *sql.DB) (*ArtifactRepositorySQLite, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("repo: create sqlite schema: %w", err)
	}
	return &ArtifactRepositorySQLite{db: db, now: time.Now}, nil
}

// InsertMany writes all records in one transaction.
func (r *ArtifactRepositorySQLite) InsertMany(ctx context.Context, records []domain.ArtifactRecord) ([]domain.ArtifactRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("repo: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO images (clerk_user_id, generated_id, file_path, thumbnail_url, source_url, prompt,
	translated_prompt, style_id, style, replicate_id, visibility, created_at)
VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, NULLIF(?, ''), ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("repo: prepare insert: %w", err)
	}
	defer stmt.Close()

	out := make([]domain.ArtifactRecord, len(records))
	for i, rec := range records {
		created := r.now().UTC()
		args := append(insertArgs(rec), created.Format(time.RFC3339Nano))
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, fmt.Errorf("repo: insert image %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("repo: insert id %d: %w", i, err)
		}
		rec.ID = id
		rec.CreatedAt = created
		rec.Persisted = true
		out[i] = rec
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("repo: commit: %w", err)
	}
	return out, nil
}

// Ping checks database connectivity.
func (r *ArtifactRepositorySQLite) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
