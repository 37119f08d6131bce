package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aipixels/internal/domain"
)

// DefaultMaxBytes caps a single artifact download.
const DefaultMaxBytes int64 = 32 << 20

// ErrHostNotAllowed is returned for artifact URLs outside the allowlist.
var ErrHostNotAllowed = errors.New("fetch: host not allowed")

// Options configures the artifact fetcher.
type Options struct {
	HTTPClient    *http.Client
	Timeout       time.Duration
	HostAllowlist []string
	MaxBytes      int64
}

// Fetcher downloads generated artifacts from provider URLs.
type Fetcher struct {
	httpClient *http.Client
	allow      map[string]struct{}
	maxBytes   int64
}

// New builds a Fetcher. An empty allowlist permits every http(s) host.
func New(opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	var allow map[string]struct{}
	if len(opts.HostAllowlist) > 0 {
		allow = make(map[string]struct{}, len(opts.HostAllowlist))
		for _, h := range opts.HostAllowlist {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				allow[h] = struct{}{}
			}
		}
	}
	return &Fetcher{httpClient: client, allow: allow, maxBytes: maxBytes}
}

// Fetch returns the artifact bytes and the reported content type. Non-2xx
// responses fail with *domain.FetchFailedError; callers decide whether that
// is fatal for the artifact.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, "", fmt.Errorf("fetch: invalid artifact url %q", rawURL)
	}
	if !f.hostAllowed(parsed.Hostname()) {
		return nil, "", fmt.Errorf("%w: %s", ErrHostNotAllowed, parsed.Hostname())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: build request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: download artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", &domain.FetchFailedError{URL: parsed.String(), Status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("fetch: read artifact: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("fetch: artifact exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", errors.New("fetch: empty artifact")
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) hostAllowed(host string) bool {
	if len(f.allow) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for {
		if _, ok := f.allow[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}
