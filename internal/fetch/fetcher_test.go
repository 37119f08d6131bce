package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aipixels/internal/domain"
)

func TestFetchReturnsBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	data, contentType, err := New(Options{}).Fetch(context.Background(), srv.URL+"/out.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(data) != 4 || contentType != "image/png" {
		t.Fatalf("data = %v, content type = %q", data, contentType)
	}
}

func TestFetchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = io.WriteString(w, "expired")
	}))
	defer srv.Close()

	_, _, err := New(Options{}).Fetch(context.Background(), srv.URL+"/out.png")
	var fetchErr *domain.FetchFailedError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want FetchFailedError", err)
	}
	if fetchErr.Status != http.StatusGone {
		t.Fatalf("status = %d, want 410", fetchErr.Status)
	}
}

func TestFetchAllowlist(t *testing.T) {
	f := New(Options{HostAllowlist: []string{"replicate.delivery"}})
	if !f.hostAllowed("pbxt.replicate.delivery") {
		t.Fatalf("subdomain of allowed host should pass")
	}
	if f.hostAllowed("evil-replicate.delivery.example.com") {
		t.Fatalf("unrelated host should be rejected")
	}
	_, _, err := f.Fetch(context.Background(), "https://example.com/x.png")
	if !errors.Is(err, ErrHostNotAllowed) {
		t.Fatalf("error = %v, want ErrHostNotAllowed", err)
	}
}

func TestFetchRejectsInvalidURLAndOversize(t *testing.T) {
	if _, _, err := New(Options{}).Fetch(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatalf("expected error for non-http url")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 64))
	}))
	defer srv.Close()
	if _, _, err := New(Options{MaxBytes: 16}).Fetch(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error for oversized artifact")
	}
}
