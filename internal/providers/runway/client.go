// Package runway talks to Runway's asynchronous generation API: one call to
// submit a task, one call per status poll, and one streaming artifact download.
// The client never retries or sleeps; the poll loop lives in lifecycle.
package runway

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

	"videogen/internal/domain"
	"videogen/internal/infra"
)

const (
	DefaultBaseURL         = "https://api.dev.runwayml.com"
	DefaultAPIVersion      = "2024-11-06"
	DefaultRequestTimeout  = 60 * time.Second
	DefaultDownloadTimeout = 120 * time.Second
)

// Options configures the Runway client.
type Options struct {
	APIKey          string
	BaseURL         string
	APIVersion      string
	HTTPClient      *http.Client
	DownloadClient  *http.Client
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	Logger          *infra.Logger
	Now             func() time.Time
}

// Client performs HTTP calls to the Runway task API.
type Client struct {
	apiKey          string
	baseURL         string
	apiVersion      string
	httpClient      *http.Client
	downloadClient  *http.Client
	requestTimeout  time.Duration
	downloadTimeout time.Duration
	logger          *infra.Logger
	now             func() time.Time
}

type submitRequest struct {
	Model       string              `json:"model"`
	PromptText  string              `json:"promptText,omitempty"`
	Ratio       string              `json:"ratio"`
	Duration    int                 `json:"duration"`
	Seed        *uint32             `json:"seed,omitempty"`
	PromptImage domain.PromptImages `json:"promptImage,omitempty"`
}

type submitResponse struct {
	ID   string `json:"id"`
	Task struct {
		ID string `json:"id"`
	} `json:"task"`
}

type statusResponse struct {
	Status   string          `json:"status"`
	State    string          `json:"state"`
	Output   json.RawMessage `json:"output"`
	Result   json.RawMessage `json:"result"`
	Progress *float64        `json:"progress"`
}

// NewClient constructs a client with defaults. A missing API key is a
// configuration error.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, &domain.ConfigError{Key: "RUNWAY_API_KEY"}
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	downloadTimeout := opts.DownloadTimeout
	if downloadTimeout <= 0 {
		downloadTimeout = DefaultDownloadTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	downloadClient := opts.DownloadClient
	if downloadClient == nil {
		if opts.HTTPClient != nil {
			downloadClient = opts.HTTPClient
		} else {
			downloadClient = &http.Client{Timeout: downloadTimeout}
		}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		apiKey:          apiKey,
		baseURL:         baseURL,
		apiVersion:      apiVersion,
		httpClient:      httpClient,
		downloadClient:  downloadClient,
		requestTimeout:  requestTimeout,
		downloadTimeout: downloadTimeout,
		logger:          logger,
		now:             now,
	}, nil
}

// Submit creates a remote task. It is never retried: a non-2xx answer is
// returned as *domain.SubmitError with the body verbatim.
func (c *Client) Submit(ctx context.Context, req domain.JobRequest) (domain.TaskHandle, error) {
	endpoint := c.baseURL + "/v1/" + string(req.Mode)
	if req.Mode != domain.ModeImageToVideo && req.Mode != domain.ModeTextToVideo {
		return domain.TaskHandle{}, fmt.Errorf("runway: unknown mode %q", req.Mode)
	}
	payload := submitRequest{
		Model:       req.Model,
		PromptText:  req.PromptText,
		Ratio:       req.Ratio.String(),
		Duration:    req.Duration,
		Seed:        req.Seed,
		PromptImage: req.Images,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.TaskHandle{}, fmt.Errorf("runway: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.TaskHandle{}, fmt.Errorf("runway: build request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.TaskHandle{}, &domain.SubmitError{Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TaskHandle{}, &domain.SubmitError{StatusCode: resp.StatusCode, Body: "read response: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(raw)
		return domain.TaskHandle{}, &domain.SubmitError{
			StatusCode: resp.StatusCode,
			Body:       text,
			Hint:       domain.HintFor(resp.StatusCode, text),
		}
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.TaskHandle{}, &domain.SubmitError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	id := strings.TrimSpace(decoded.ID)
	if id == "" {
		id = strings.TrimSpace(decoded.Task.ID)
	}
	if id == "" {
		return domain.TaskHandle{}, &domain.SubmitError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	c.logger.Info().
		Str("task_id", id).
		Str("model", req.Model).
		Str("mode", string(req.Mode)).
		Int("images", len(req.Images)).
		Msg("runway: task submitted")
	return domain.TaskHandle{ID: id, Mode: req.Mode, SubmittedAt: c.now()}, nil
}

// FetchStatus performs exactly one status request and classifies the answer.
// Transport failures, non-2xx answers and undecodable bodies are *domain.FetchError;
// its Retryable method separates outages from 4xx answers such as 401 or 404.
func (c *Client) FetchStatus(ctx context.Context, handle domain.TaskHandle) (domain.TaskStatus, error) {
	const op = "runway: fetch status"
	endpoint := c.baseURL + "/v1/tasks/" + url.PathEscape(handle.ID)

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.TaskStatus{}, &domain.FetchError{Op: op, Err: err}
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.TaskStatus{}, &domain.FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TaskStatus{}, &domain.FetchError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.TaskStatus{}, &domain.FetchError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(strings.TrimSpace(string(raw)), 300)),
		}
	}

	status, err := ParseStatus(raw)
	if err != nil {
		return domain.TaskStatus{}, &domain.FetchError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	c.logger.Debug().
		Str("task_id", handle.ID).
		Str("status", status.Raw).
		Float64("progress", status.Progress).
		Msg("runway: task status")
	return status, nil
}

// Download streams the artifact at artifactURL into w and returns the byte count.
func (c *Client) Download(ctx context.Context, artifactURL string, w io.Writer) (int64, error) {
	const op = "runway: download"
	parsed, err := url.Parse(strings.TrimSpace(artifactURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return 0, &domain.FetchError{Op: op, Permanent: true, Err: fmt.Errorf("invalid artifact url %q", artifactURL)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return 0, &domain.FetchError{Op: op, Err: err}
	}
	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return 0, &domain.FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &domain.FetchError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &domain.FetchError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	c.logger.Debug().Int64("bytes", n).Msg("runway: artifact downloaded")
	return n, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Runway-Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
}

// ParseStatus classifies a status body. Unknown tokens stay pending so a new
// intermediate state never ends a job early.
func ParseStatus(raw []byte) (domain.TaskStatus, error) {
	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.TaskStatus{}, fmt.Errorf("decode status: %w", err)
	}
	token := strings.TrimSpace(decoded.Status)
	if token == "" {
		token = strings.TrimSpace(decoded.State)
	}
	status := domain.TaskStatus{
		Class:   classify(token),
		Raw:     token,
		Payload: append([]byte(nil), raw...),
	}
	if decoded.Progress != nil {
		status.Progress = *decoded.Progress
	}
	status.Outputs = parseOutputs(decoded.Output)
	if len(status.Outputs) == 0 && len(decoded.Result) > 0 {
		var result struct {
			Output json.RawMessage `json:"output"`
		}
		if err := json.Unmarshal(decoded.Result, &result); err == nil {
			status.Outputs = parseOutputs(result.Output)
		}
	}
	return status, nil
}

func classify(token string) domain.TaskClass {
	switch strings.ToLower(token) {
	case "succeeded", "completed", "success":
		return domain.TaskSucceeded
	case "failed", "error", "cancelled", "canceled":
		return domain.TaskFailed
	default:
		return domain.TaskPending
	}
}

// parseOutputs accepts a single URL string or a list of strings or {url} objects.
func parseOutputs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			return []string{single}
		}
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	var out []string
	for _, item := range list {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && strings.TrimSpace(obj.URL) != "" {
			out = append(out, strings.TrimSpace(obj.URL))
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
