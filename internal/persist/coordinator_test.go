package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"aipixels/internal/domain"
)

type stubFetcher struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[url] {
		return nil, "", &domain.FetchFailedError{URL: url, Status: 404}
	}
	return []byte("bytes:" + url), "image/png", nil
}

type stubStore struct {
	mu      sync.Mutex
	failOn  map[string]bool
	puts    []string
	deletes []string
}

func (s *stubStore) Put(ctx context.Context, ownerID, path string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !strings.HasPrefix(path, ownerID+"/") {
		return "", domain.ErrTenancyViolation
	}
	if s.failOn[strings.TrimPrefix(string(data), "bytes:")] {
		return "", errors.New("bucket unavailable")
	}
	s.puts = append(s.puts, path)
	return "https://store.example/" + path, nil
}

func (s *stubStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, path)
	return nil
}

type stubRepo struct {
	failCall map[int]bool
	calls    [][]domain.ArtifactRecord
}

func (r *stubRepo) InsertMany(ctx context.Context, records []domain.ArtifactRecord) ([]domain.ArtifactRecord, error) {
	r.calls = append(r.calls, records)
	if r.failCall[len(r.calls)] {
		return nil, errors.New("db down")
	}
	out := make([]domain.ArtifactRecord, len(records))
	for i, rec := range records {
		rec.ID = int64(100*len(r.calls) + i)
		rec.Persisted = true
		out[i] = rec
	}
	return out, nil
}

func sources(n int) []domain.ArtifactSource {
	out := make([]domain.ArtifactSource, n)
	for i := range out {
		out[i] = domain.ArtifactSource{SourceURL: fmt.Sprintf("https://replicate.delivery/out-%d.webp", i)}
	}
	return out
}

func newJob(n int) Job {
	return Job{OwnerID: "user_1", Sources: sources(n), Prompt: "a red fox", StyleID: "1", JobID: "pred-1"}
}

func TestRunPartialUploadPersistsEverything(t *testing.T) {
	srcs := sources(4)
	store := &stubStore{failOn: map[string]bool{srcs[1].SourceURL: true, srcs[3].SourceURL: true}}
	repo := &stubRepo{}
	c := NewCoordinator(Options{Fetcher: &stubFetcher{}, Store: store, Repository: repo})

	res, err := c.Run(context.Background(), newJob(4))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Saved != 4 || res.Total != 4 || !res.StorageEnabled {
		t.Fatalf("result = saved %d total %d storage %v", res.Saved, res.Total, res.StorageEnabled)
	}
	if len(repo.calls) != 2 || len(repo.calls[0]) != 2 || len(repo.calls[1]) != 2 {
		t.Fatalf("insert batches = %d", len(repo.calls))
	}
	for i, rec := range res.Records {
		if rec.SourceURL != srcs[i].SourceURL {
			t.Fatalf("record %d out of order: %s", i, rec.SourceURL)
		}
		stored := i%2 == 0
		if stored && (rec.StoredPath == "" || !strings.HasPrefix(rec.PublicURL, "https://store.example/user_1/")) {
			t.Fatalf("record %d should be stored: %#v", i, rec)
		}
		if !stored && (rec.StoredPath != "" || rec.PublicURL != rec.SourceURL) {
			t.Fatalf("record %d should fall back to provider url: %#v", i, rec)
		}
		if !rec.Persisted || rec.Visibility != domain.VisibilityPrivate || rec.Style != "realistic" {
			t.Fatalf("record %d = %#v", i, rec)
		}
	}
}

func TestRunCompensatesFailedBatch(t *testing.T) {
	store := &stubStore{}
	repo := &stubRepo{failCall: map[int]bool{1: true}}
	c := NewCoordinator(Options{Fetcher: &stubFetcher{}, Store: store, Repository: repo})

	res, err := c.Run(context.Background(), newJob(3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.deletes) != 3 {
		t.Fatalf("deletes = %d, want 3", len(store.deletes))
	}
	uploaded := map[string]bool{}
	for _, p := range store.puts {
		uploaded[p] = true
	}
	for _, p := range store.deletes {
		if !uploaded[p] {
			t.Fatalf("deleted %q which was never uploaded", p)
		}
	}
	if res.StorageEnabled {
		t.Fatalf("storage should not be reported after compensation")
	}
	if res.Saved != 3 {
		t.Fatalf("saved = %d, want 3 via provider-url fallback", res.Saved)
	}
	for _, rec := range res.Records {
		if rec.StoredPath != "" || rec.PublicURL != rec.SourceURL {
			t.Fatalf("compensated record still points at store: %#v", rec)
		}
	}
}

func TestRunWithoutStorageMakesNoStoreCalls(t *testing.T) {
	fetcher := &stubFetcher{}
	repo := &stubRepo{}
	c := NewCoordinator(Options{Fetcher: fetcher, Repository: repo})

	res, err := c.Run(context.Background(), newJob(2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetch calls = %d, want 0", fetcher.calls)
	}
	if res.StorageEnabled || res.Saved != 2 || len(repo.calls) != 1 {
		t.Fatalf("result = %#v, inserts = %d", res, len(repo.calls))
	}
	if res.Records[0].PublicURL != res.Records[0].SourceURL {
		t.Fatalf("public url = %q", res.Records[0].PublicURL)
	}
}

func TestRunBothDownstreamsFailing(t *testing.T) {
	srcs := sources(2)
	fetcher := &stubFetcher{fail: map[string]bool{srcs[0].SourceURL: true, srcs[1].SourceURL: true}}
	repo := &stubRepo{failCall: map[int]bool{1: true}}
	c := NewCoordinator(Options{Fetcher: fetcher, Store: &stubStore{}, Repository: repo})

	res, err := c.Run(context.Background(), newJob(2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Saved != 0 || res.Total != 2 || len(res.Records) != 2 {
		t.Fatalf("result = %#v", res)
	}
	for i, rec := range res.Records {
		if rec.Persisted || rec.PublicURL != srcs[i].SourceURL {
			t.Fatalf("record %d = %#v", i, rec)
		}
	}
}

func TestRunWithoutMetadataStore(t *testing.T) {
	store := &stubStore{}
	c := NewCoordinator(Options{Fetcher: &stubFetcher{}, Store: store})

	res, err := c.Run(context.Background(), newJob(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Saved != 0 || !res.StorageEnabled || res.Records[0].Persisted {
		t.Fatalf("result = %#v", res)
	}
	if !strings.HasPrefix(res.Records[0].PublicURL, "https://store.example/") {
		t.Fatalf("public url = %q", res.Records[0].PublicURL)
	}
}

func TestEquivalentArtifactsGetDistinctPaths(t *testing.T) {
	store := &stubStore{}
	c := NewCoordinator(Options{Fetcher: &stubFetcher{}, Store: store, Repository: &stubRepo{}})
	job := newJob(1)
	job.Sources = append(job.Sources, job.Sources[0])

	if _, err := c.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.puts) != 2 || store.puts[0] == store.puts[1] {
		t.Fatalf("paths = %v", store.puts)
	}
	for _, p := range store.puts {
		if !strings.HasPrefix(p, "user_1/") || !strings.HasSuffix(p, ".webp") {
			t.Fatalf("path = %q", p)
		}
	}
}

func TestRunRequiresOwner(t *testing.T) {
	if _, err := NewCoordinator(Options{}).Run(context.Background(), Job{}); err == nil {
		t.Fatalf("expected error for missing owner")
	}
}

func TestExtensionAndContentType(t *testing.T) {
	tests := map[string]string{
		"https://x/a.JPG?sig=1": "jpg",
		"https://x/a.webp":      "webp",
		"https://x/a.tiff":      "png",
		"https://x/noext":       "png",
	}
	for raw, want := range tests {
		if got := Extension(raw); got != want {
			t.Fatalf("Extension(%q) = %q, want %q", raw, got, want)
		}
	}
	if ContentType("jpg") != "image/jpeg" || ContentType("webp") != "image/webp" {
		t.Fatalf("content types wrong")
	}
}
