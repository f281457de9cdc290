package runway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"videogen/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(t *testing.T, fn roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "key_test",
		BaseURL:    "https://runway.test/",
		HTTPClient: &http.Client{Transport: fn},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func seed(v uint32) *uint32 { return &v }

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Options{APIKey: "  "})
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("NewClient error = %v, want ErrConfig", err)
	}
}

func TestSubmitImageToVideo(t *testing.T) {
	var captured *http.Request
	var body []byte
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = req
		body, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusOK, `{"id":"task-123"}`), nil
	})

	req := domain.NewJobRequest(
		domain.JobSpec{Model: "gen4_turbo", Prompt: "pan across", Ratio: domain.Ratio{Width: 1280, Height: 720}, Duration: 10, Seed: seed(42)},
		domain.PromptImages{{URI: "data:image/png;base64,AAAA", Position: domain.PositionFirst}},
	)
	handle, err := client.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if handle.ID != "task-123" || handle.Mode != domain.ModeImageToVideo {
		t.Fatalf("handle = %+v", handle)
	}
	if captured.URL.String() != "https://runway.test/v1/image_to_video" {
		t.Fatalf("url = %s", captured.URL)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer key_test" {
		t.Fatalf("Authorization = %q", got)
	}
	if got := captured.Header.Get("X-Runway-Version"); got != DefaultAPIVersion {
		t.Fatalf("X-Runway-Version = %q", got)
	}
	if got := captured.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["model"] != "gen4_turbo" || payload["ratio"] != "1280:720" || payload["promptText"] != "pan across" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["duration"] != float64(10) || payload["seed"] != float64(42) {
		t.Fatalf("duration/seed = %v/%v", payload["duration"], payload["seed"])
	}
	if payload["promptImage"] != "data:image/png;base64,AAAA" {
		t.Fatalf("promptImage = %v, want bare data uri", payload["promptImage"])
	}
}

func TestSubmitTextToVideoOmitsImageAndSeed(t *testing.T) {
	var body []byte
	var path string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		path = req.URL.Path
		body, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusOK, `{"task":{"id":"nested-1"}}`), nil
	})

	req := domain.NewJobRequest(domain.JobSpec{Model: "veo3", Prompt: "rain", Ratio: domain.Ratio{Width: 720, Height: 1280}, Duration: 8}, nil)
	handle, err := client.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if handle.ID != "nested-1" {
		t.Fatalf("ID = %q, want nested-1", handle.ID)
	}
	if path != "/v1/text_to_video" {
		t.Fatalf("path = %q", path)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if _, ok := payload["promptImage"]; ok {
		t.Fatal("promptImage should be omitted for text-only requests")
	}
	if _, ok := payload["seed"]; ok {
		t.Fatal("seed should be omitted when unset")
	}
}

func TestSubmitMultipleImagesAsList(t *testing.T) {
	var body []byte
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		body, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusOK, `{"id":"t"}`), nil
	})
	req := domain.NewJobRequest(domain.JobSpec{Model: "veo3", Prompt: "x", Ratio: domain.Ratio{Width: 960, Height: 960}, Duration: 4}, domain.PromptImages{
		{URI: "data:a", Position: domain.PositionFirst},
		{URI: "data:b", Position: domain.PositionLast},
	})
	if _, err := client.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	var payload struct {
		PromptImage []domain.PromptImage `json:"promptImage"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.PromptImage) != 2 || payload.PromptImage[1].Position != domain.PositionLast {
		t.Fatalf("promptImage = %+v", payload.PromptImage)
	}
}

func TestSubmitRejectedWithHint(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusBadRequest, `{"error":"Not enough credits to run this task"}`), nil
	})
	req := domain.NewJobRequest(domain.JobSpec{Model: "veo3", Prompt: "x", Ratio: domain.Ratio{Width: 960, Height: 960}, Duration: 4}, nil)
	_, err := client.Submit(context.Background(), req)

	var serr *domain.SubmitError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want SubmitError", err)
	}
	if serr.StatusCode != http.StatusBadRequest || serr.Hint != domain.HintQuota {
		t.Fatalf("SubmitError = %+v", serr)
	}
	if !strings.Contains(serr.Body, "Not enough credits") {
		t.Fatalf("Body = %q, want verbatim response", serr.Body)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, submissions must not be retried", calls)
	}
}

func TestSubmitMissingTaskID(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"ok":true}`), nil
	})
	req := domain.NewJobRequest(domain.JobSpec{Model: "veo3", Prompt: "x", Ratio: domain.Ratio{Width: 960, Height: 960}, Duration: 4}, nil)
	if _, err := client.Submit(context.Background(), req); !errors.Is(err, domain.ErrSubmit) {
		t.Fatalf("error = %v, want ErrSubmit", err)
	}
}

func TestFetchStatusClassification(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantClass   domain.TaskClass
		wantOutputs []string
	}{
		{name: "pending", body: `{"status":"PENDING"}`, wantClass: domain.TaskPending},
		{name: "running with progress", body: `{"status":"RUNNING","progress":0.4}`, wantClass: domain.TaskPending},
		{name: "throttled unknown token", body: `{"status":"THROTTLED"}`, wantClass: domain.TaskPending},
		{name: "succeeded list", body: `{"status":"SUCCEEDED","output":["https://cdn.test/a.mp4"]}`, wantClass: domain.TaskSucceeded, wantOutputs: []string{"https://cdn.test/a.mp4"}},
		{name: "completed lowercase string", body: `{"status":"completed","output":"https://cdn.test/b.mp4"}`, wantClass: domain.TaskSucceeded, wantOutputs: []string{"https://cdn.test/b.mp4"}},
		{name: "result output fallback", body: `{"state":"succeeded","result":{"output":["https://cdn.test/c.mp4"]}}`, wantClass: domain.TaskSucceeded, wantOutputs: []string{"https://cdn.test/c.mp4"}},
		{name: "output objects", body: `{"status":"SUCCEEDED","output":[{"url":"https://cdn.test/d.mp4"}]}`, wantClass: domain.TaskSucceeded, wantOutputs: []string{"https://cdn.test/d.mp4"}},
		{name: "failed", body: `{"status":"FAILED","failure":"moderation","failureCode":"SAFETY"}`, wantClass: domain.TaskFailed},
		{name: "error", body: `{"status":"ERROR"}`, wantClass: domain.TaskFailed},
		{name: "cancelled", body: `{"status":"Cancelled"}`, wantClass: domain.TaskFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
				if req.Method != http.MethodGet || req.URL.Path != "/v1/tasks/task-1" {
					t.Fatalf("unexpected request %s %s", req.Method, req.URL)
				}
				return jsonResponse(http.StatusOK, tc.body), nil
			})
			status, err := client.FetchStatus(context.Background(), domain.TaskHandle{ID: "task-1"})
			if err != nil {
				t.Fatalf("FetchStatus returned error: %v", err)
			}
			if status.Class != tc.wantClass {
				t.Fatalf("Class = %q, want %q", status.Class, tc.wantClass)
			}
			if len(status.Outputs) != len(tc.wantOutputs) {
				t.Fatalf("Outputs = %v, want %v", status.Outputs, tc.wantOutputs)
			}
			for i := range tc.wantOutputs {
				if status.Outputs[i] != tc.wantOutputs[i] {
					t.Fatalf("Outputs[%d] = %q, want %q", i, status.Outputs[i], tc.wantOutputs[i])
				}
			}
			if string(status.Payload) != tc.body {
				t.Fatalf("Payload = %s, want verbatim body", status.Payload)
			}
		})
	}
}

func TestFetchStatusProgress(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status":"RUNNING","progress":0.25}`), nil
	})
	status, err := client.FetchStatus(context.Background(), domain.TaskHandle{ID: "t"})
	if err != nil {
		t.Fatalf("FetchStatus returned error: %v", err)
	}
	if status.Progress != 0.25 || status.Raw != "RUNNING" {
		t.Fatalf("status = %+v", status)
	}
}

func TestFetchStatusErrors(t *testing.T) {
	tests := []struct {
		name          string
		fn            roundTripFunc
		wantStatus    int
		wantPermanent bool
	}{
		{
			name: "transport",
			fn: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection reset")
			},
		},
		{
			name: "server error",
			fn: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusBadGateway, `upstream`), nil
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "unknown task",
			fn: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusNotFound, `{"error":"Task not found"}`), nil
			},
			wantStatus:    http.StatusNotFound,
			wantPermanent: true,
		},
		{
			name: "revoked key",
			fn: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusUnauthorized, `{"error":"Unauthorized"}`), nil
			},
			wantStatus:    http.StatusUnauthorized,
			wantPermanent: true,
		},
		{
			name: "throttled",
			fn: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusTooManyRequests, `{"error":"slow down"}`), nil
			},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "undecodable",
			fn: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `<html>`), nil
			},
			wantStatus: http.StatusOK,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.fn)
			_, err := client.FetchStatus(context.Background(), domain.TaskHandle{ID: "t"})
			var ferr *domain.FetchError
			if !errors.As(err, &ferr) {
				t.Fatalf("error = %v, want FetchError", err)
			}
			if !errors.Is(err, domain.ErrFetch) {
				t.Fatalf("error %v does not match ErrFetch", err)
			}
			if ferr.StatusCode != tc.wantStatus {
				t.Fatalf("StatusCode = %d, want %d", ferr.StatusCode, tc.wantStatus)
			}
			if ferr.Retryable() == tc.wantPermanent {
				t.Fatalf("Retryable() = %v, want %v", ferr.Retryable(), !tc.wantPermanent)
			}
		})
	}
}

func TestDownloadStreamsArtifact(t *testing.T) {
	video := bytes.Repeat([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}, 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp4" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("artifact request must not carry the api key")
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(video)
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "key_test", DownloadClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), srv.URL+"/out.mp4", &buf)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if n != int64(len(video)) || !bytes.Equal(buf.Bytes(), video) {
		t.Fatalf("downloaded %d bytes, want %d", n, len(video))
	}

	_, err = client.Download(context.Background(), srv.URL+"/missing.mp4", io.Discard)
	var ferr *domain.FetchError
	if !errors.As(err, &ferr) || ferr.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %v, want 404 FetchError", err)
	}

	_, err = client.Download(context.Background(), "ftp://nope", io.Discard)
	if !errors.Is(err, domain.ErrFetch) || domain.IsRetryableFetch(err) {
		t.Fatalf("error = %v, want permanent ErrFetch for bad scheme", err)
	}
}
