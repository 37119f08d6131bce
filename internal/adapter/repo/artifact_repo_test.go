package repo

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"aipixels/internal/domain"
	"aipixels/internal/infra"
)

func countImages(ctx context.Context, r *ArtifactRepositorySQLite, ownerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE clerk_user_id = ?`, ownerID).Scan(&n)
	return n, err
}

func newTestSQLite(t *testing.T) *ArtifactRepositorySQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo, err := NewArtifactRepositorySQLite(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func makeRecord(owner, prompt string) domain.ArtifactRecord {
	return domain.ArtifactRecord{
		OwnerID:     owner,
		GeneratedID: "5b0f3f7e-9f6e-4c1a-8f3e-0d1c2b3a4f5e",
		SourceURL:   "https://replicate.delivery/a.png",
		StoredPath:  owner + "/a.png",
		PublicURL:   "https://cdn/" + owner + "/a.png",
		Prompt:      prompt,
		StyleID:     "1",
		Style:       "realistic",
		JobID:       "pred-1",
		Visibility:  domain.VisibilityPrivate,
	}
}

func TestSQLiteInsertManyAssignsIDs(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()

	out, err := repo.InsertMany(ctx, []domain.ArtifactRecord{makeRecord("u1", "fox"), makeRecord("u1", "cat")})
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	if len(out) != 2 || out[0].ID == 0 || out[1].ID <= out[0].ID {
		t.Fatalf("records = %#v", out)
	}
	for _, rec := range out {
		if !rec.Persisted || rec.CreatedAt.IsZero() {
			t.Fatalf("record not marked persisted: %#v", rec)
		}
	}
	if out[1].Prompt != "cat" {
		t.Fatalf("order not kept: %#v", out)
	}
	n, err := countImages(ctx, repo, "u1")
	if err != nil || n != 2 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestSQLiteInsertManyIsAllOrNothing(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()
	if _, err := repo.db.Exec(`CREATE TRIGGER reject_boom BEFORE INSERT ON images WHEN NEW.prompt = 'boom'
BEGIN SELECT RAISE(ABORT, 'boom'); END;`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	out, err := repo.InsertMany(ctx, []domain.ArtifactRecord{makeRecord("u1", "fox"), makeRecord("u1", "boom")})
	if err == nil {
		t.Fatalf("expected insert failure")
	}
	if out != nil {
		t.Fatalf("failed batch returned records: %#v", out)
	}
	if n, _ := countImages(ctx, repo, "u1"); n != 0 {
		t.Fatalf("count after failed batch = %d, want 0", n)
	}
}

func TestSQLiteStoresProviderURLWithoutStoredPath(t *testing.T) {
	repo := newTestSQLite(t)
	rec := makeRecord("u1", "fox")
	rec.StoredPath = ""
	if _, err := repo.InsertMany(context.Background(), []domain.ArtifactRecord{rec}); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	var path string
	if err := repo.db.QueryRow(`SELECT file_path FROM images`).Scan(&path); err != nil {
		t.Fatalf("select: %v", err)
	}
	if path != rec.SourceURL {
		t.Fatalf("file_path = %q, want provider url", path)
	}
}

type pgStubRow struct {
	id  int64
	err error
}

func (r pgStubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.id
	*dest[1].(*time.Time) = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return nil
}

type pgStubTx struct {
	pgx.Tx
	db *pgStubDB
}

func (tx *pgStubTx) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	tx.db.inserts = append(tx.db.inserts, args)
	if tx.db.failOn > 0 && len(tx.db.inserts) == tx.db.failOn {
		return pgStubRow{err: errors.New("unique violation")}
	}
	return pgStubRow{id: int64(len(tx.db.inserts))}
}

func (tx *pgStubTx) Commit(ctx context.Context) error   { tx.db.committed = true; return nil }
func (tx *pgStubTx) Rollback(ctx context.Context) error { tx.db.rolledBack = true; return nil }

type pgStubDB struct {
	inserts    [][]any
	failOn     int
	committed  bool
	rolledBack bool
}

func (d *pgStubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d *pgStubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return pgStubRow{}
}

func (d *pgStubDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (d *pgStubDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &pgStubTx{db: d}, nil
}

func TestPGInsertManyCommits(t *testing.T) {
	db := &pgStubDB{}
	repo := NewArtifactRepository(infra.NewSQLRunner(db, zerolog.Nop()))
	rec := makeRecord("u1", "fox")
	rec.StoredPath = ""
	rec.Visibility = ""

	out, err := repo.InsertMany(context.Background(), []domain.ArtifactRecord{makeRecord("u1", "a"), rec})
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	if !db.committed || db.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", db.committed, db.rolledBack)
	}
	if len(out) != 2 || out[0].ID != 1 || out[1].ID != 2 || !out[1].Persisted {
		t.Fatalf("records = %#v", out)
	}
	args := db.inserts[1]
	if args[2] != rec.SourceURL {
		t.Fatalf("file_path arg = %v, want provider url", args[2])
	}
	if args[10] != "private" {
		t.Fatalf("visibility arg = %v", args[10])
	}
}

func TestPGInsertManyRollsBack(t *testing.T) {
	db := &pgStubDB{failOn: 2}
	repo := NewArtifactRepository(infra.NewSQLRunner(db, zerolog.Nop()))

	out, err := repo.InsertMany(context.Background(), []domain.ArtifactRecord{makeRecord("u1", "a"), makeRecord("u1", "b")})
	if err == nil || !strings.Contains(err.Error(), "insert image 1") {
		t.Fatalf("error = %v", err)
	}
	if out != nil || db.committed || !db.rolledBack {
		t.Fatalf("out=%v committed=%v rolledBack=%v", out, db.committed, db.rolledBack)
	}
}
