package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aipixels/internal/infra"
)

// SupabaseOptions configures a SupabaseStore.
type SupabaseOptions struct {
	BaseURL    string
	ServiceKey string
	Bucket     string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// SupabaseStore talks to the Supabase Storage REST API with a service role key.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewSupabaseStore validates options and builds the store.
func NewSupabaseStore(opts SupabaseOptions) (*SupabaseStore, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	key := strings.TrimSpace(opts.ServiceKey)
	if base == "" || key == "" {
		return nil, errors.New("storage: supabase url and service key are required")
	}
	bucket := strings.Trim(strings.TrimSpace(opts.Bucket), "/")
	if bucket == "" {
		bucket = "images"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &SupabaseStore{
		baseURL:    base,
		serviceKey: key,
		bucket:     bucket,
		httpClient: client,
		logger:     infra.OrDiscard(opts.Logger),
	}, nil
}

// Put uploads data under key and returns its public URL.
func (s *SupabaseStore) Put(ctx context.Context, ownerID, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := ownedKey(ownerID, key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, escapeKey(cleanKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")
	req.Header.Set("cache-control", "3600")
	if err := s.do(req); err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", cleanKey, err)
	}
	s.logger.Debug().Str("path", cleanKey).Int("bytes", len(data)).Msg("object uploaded")
	return s.PublicURL(cleanKey), nil
}

// Delete removes key from the bucket.
func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string][]string{"prefixes": {cleanKey}})
	if err != nil {
		return fmt.Errorf("storage: encode delete: %w", err)
	}
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s", s.baseURL, s.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("storage: build delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.do(req); err != nil {
		return fmt.Errorf("storage: delete %s: %w", cleanKey, err)
	}
	return nil
}

// PublicURL returns the public object URL for key.
func (s *SupabaseStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, escapeKey(key))
}

// Ping checks that the bucket is reachable with the configured key.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/storage/v1/bucket/%s", s.baseURL, s.bucket), nil)
	if err != nil {
		return err
	}
	return s.do(req)
}

func (s *SupabaseStore) do(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			msg = payload.Message
		} else if payload.Error != "" {
			msg = payload.Error
		}
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
}
