package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func TestLoggerRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(RequestID, Logger(zerolog.New(&buf).Level(zerolog.DebugLevel)))
	r.Get("/v1/videos/{job_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})
	r.Get("/v1/healthz", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/videos/job-42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["route"] != "/v1/videos/{job_id}" || entry["job_id"] != "job-42" || entry["level"] != "warn" {
		t.Fatalf("entry = %#v", entry)
	}
	if entry["status"] != float64(http.StatusNotFound) || entry["bytes"] != float64(len("missing")) {
		t.Fatalf("entry = %#v", entry)
	}
	if entry["request_id"] == "" {
		t.Fatal("request id missing")
	}
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["level"] != "debug" {
		t.Fatalf("health probe level = %v, want debug", entry["level"])
	}
}
