package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aipixels/internal/domain"
	"aipixels/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("replicate: api token is required")

// APIError is a non-2xx response from the predictions API.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("replicate: status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("replicate: status %d", e.Status)
}

// Options configures the Replicate predictions client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type createRequest struct {
	Input map[string]any `json:"input"`
}

type predictionResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
	Error     json.RawMessage `json:"error"`
	Logs      string          `json:"logs"`
	Metrics   *struct {
		PredictTime *float64 `json:"predict_time"`
	} `json:"metrics"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "google/nano-banana"
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     infra.OrDiscard(opts.Logger),
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreatePrediction starts a prediction for the configured model.
func (c *Client) CreatePrediction(ctx context.Context, input map[string]any) (*domain.Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	body, err := json.Marshal(createRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}
	endpoint := c.baseURL + "/models/" + c.model + "/predictions"
	pred, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("prediction_id", pred.ID).
		Str("status", string(pred.Status)).
		Msg("replicate: prediction created")
	return pred, nil
}

// GetPrediction fetches the current state of a prediction.
func (c *Client) GetPrediction(ctx context.Context, id string) (*domain.Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	return c.do(ctx, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(id), nil)
}

// CancelPrediction asks the provider to stop a prediction.
func (c *Client) CancelPrediction(ctx context.Context, id string) (*domain.Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/predictions/"+url.PathEscape(id)+"/cancel", nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*domain.Prediction, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil {
			apiErr.Detail = strings.TrimSpace(detail.Detail)
			if apiErr.Detail == "" {
				apiErr.Detail = strings.TrimSpace(detail.Title)
			}
		} else {
			apiErr.Detail = strings.TrimSpace(string(raw))
		}
		return nil, apiErr
	}

	var decoded predictionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("replicate: decode response: %w", err)
	}
	if decoded.ID == "" {
		return nil, errors.New("replicate: response missing prediction id")
	}
	return decoded.toDomain(), nil
}

func (p predictionResponse) toDomain() *domain.Prediction {
	pred := &domain.Prediction{
		ID:     p.ID,
		Status: domain.JobStatus(strings.ToLower(strings.TrimSpace(p.Status))),
		Input:  p.Input,
		Output: p.Output,
		Error:  errorText(p.Error),
		Logs:   p.Logs,
	}
	if ts, err := time.Parse(time.RFC3339Nano, p.CreatedAt); err == nil {
		pred.CreatedAt = ts
	}
	if p.Metrics != nil {
		pred.Metrics = &domain.PredictionMetrics{PredictTime: p.Metrics.PredictTime}
	}
	return pred
}

// errorText flattens the provider's error field, which may be null, a string or an object.
func errorText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// isPayloadRejection reports whether the provider refused the request body
// itself: any 4xx except auth failures and an unknown model.
func isPayloadRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status < 400 || apiErr.Status >= 500 {
		return false
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	}
	return true
}

// isAuthFailure reports whether the provider refused the credential.
func isAuthFailure(err error) bool {
	if errors.Is(err, ErrMissingAPIKey) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}
