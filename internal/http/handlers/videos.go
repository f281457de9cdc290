package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"videogen/internal/domain"
	"videogen/internal/domain/jsoncfg"
	"videogen/internal/imageprep"
	"videogen/internal/middleware"
	"videogen/pkg/zip"
)

const (
	maxUploadBytes = 32 << 20
	maxImageBytes  = 10 << 20
)

type videoJobResponse struct {
	JobID            string `json:"job_id"`
	Status           string `json:"status"`
	Model            string `json:"model"`
	Ratio            string `json:"ratio"`
	Duration         int    `json:"duration"`
	EstimatedCredits int    `json:"estimated_credits"`
}

type videoStatusResponse struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Model       string     `json:"model"`
	AspectRatio string     `json:"aspect_ratio"`
	TaskID      string     `json:"task_id,omitempty"`
	Progress    float64    `json:"progress"`
	Outputs     []string   `json:"outputs"`
	Bytes       int64      `json:"bytes,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	Error       *errorBody `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type upload struct {
	key      string
	mime     string
	filename string
	data     []byte
}

// VideosGenerate validates a multipart generation request, stores its
// reference images and queues the job for the worker.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", domain.HintPayloadSize)
			return
		}
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid multipart payload", domain.HintNone)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	spec, err := specFromForm(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	spec.Normalize(middleware.LocaleFromContext(r.Context()), a.Catalog)

	jobID := a.NewID()
	uploads, err := readUploads(r.MultipartForm.File["images"], jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	for _, u := range uploads {
		spec.Images = append(spec.Images, jsoncfg.ImageRef{StorageKey: u.key, MIME: u.mime, Filename: u.filename})
	}
	model, err := spec.Validate(a.Catalog)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	ctx := r.Context()
	written := make([]string, 0, len(uploads))
	cleanup := func() {
		for _, key := range written {
			_ = a.Store.Delete(ctx, key)
		}
	}
	for _, u := range uploads {
		key, err := a.Store.Write(ctx, u.key, u.data)
		if err != nil {
			cleanup()
			a.fail(w, r, err)
			return
		}
		written = append(written, key)
	}

	job := &domain.Job{
		ID:          jobID,
		Status:      domain.JobStatusQueued,
		Model:       spec.Model,
		AspectRatio: spec.Ratio,
		SpecJSON:    jsoncfg.MustMarshal(spec),
	}
	if err := a.Jobs.Create(ctx, job); err != nil {
		cleanup()
		a.fail(w, r, err)
		return
	}
	a.Logger.Info().
		Str("job_id", jobID).
		Str("model", spec.Model).
		Str("ratio", spec.Ratio).
		Int("images", len(uploads)).
		Msg("http: video job queued")

	a.json(w, http.StatusAccepted, videoJobResponse{
		JobID:            jobID,
		Status:           string(job.Status),
		Model:            spec.Model,
		Ratio:            spec.Ratio,
		Duration:         spec.Duration,
		EstimatedCredits: model.EstimatedCredits(spec.Duration),
	})
}

func specFromForm(r *http.Request) (jsoncfg.VideoSpecJSON, error) {
	spec := jsoncfg.VideoSpecJSON{
		Model:  r.FormValue("model"),
		Prompt: r.FormValue("prompt"),
		Ratio:  r.FormValue("ratio"),
		Locale: strings.TrimSpace(r.FormValue("locale")),
	}
	if v := strings.TrimSpace(r.FormValue("duration")); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return spec, &domain.ValidationError{Field: "duration", Reason: fmt.Sprintf("%q is not a whole number of seconds", v)}
		}
		spec.Duration = d
	}
	if v := strings.TrimSpace(r.FormValue("seed")); v != "" {
		seed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return spec, &domain.ValidationError{Field: "seed", Reason: fmt.Sprintf("%q is not an unsigned 32-bit integer", v)}
		}
		s := uint32(seed)
		spec.Seed = &s
	}
	if v := strings.TrimSpace(r.FormValue("pad_color")); v != "" {
		if _, err := imageprep.ParseHexColor(v); err != nil {
			return spec, &domain.ValidationError{Field: "pad_color", Reason: err.Error()}
		}
		spec.Policy.PadColor = v
	}
	if v := strings.TrimSpace(r.FormValue("format")); v != "" {
		if _, err := imageprep.ParseFormat(v); err != nil {
			return spec, &domain.ValidationError{Field: "format", Reason: err.Error()}
		}
		spec.Policy.Format = v
	}
	return spec, nil
}

// readUploads decodes every reference file so malformed images are rejected
// before anything is stored.
func readUploads(files []*multipart.FileHeader, jobID string) ([]upload, error) {
	if len(files) > domain.MaxReferenceImages {
		return nil, &domain.ValidationError{Field: "images", Reason: fmt.Sprintf("at most %d reference images are supported", domain.MaxReferenceImages)}
	}
	out := make([]upload, 0, len(files))
	for i, fh := range files {
		if fh.Size > maxImageBytes {
			return nil, &domain.ValidationError{Field: "images", Reason: fmt.Sprintf("image %d exceeds %d bytes", i+1, maxImageBytes)}
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %d: %w", i+1, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload %d: %w", i+1, err)
		}
		if _, err := imageprep.DecodeBytes(data); err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		mt := mimetype.Detect(data)
		out = append(out, upload{
			key:      fmt.Sprintf("uploads/%s/%d%s", jobID, i, mt.Extension()),
			mime:     mt.String(),
			filename: fh.Filename,
			data:     data,
		})
	}
	return out, nil
}

func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.GetByID(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.statusResponse(r, job))
}

// VideosList returns recent jobs, newest first.
func (a *App) VideosList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := a.Jobs.List(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]videoStatusResponse, 0, len(jobs))
	for i := range jobs {
		items = append(items, a.statusResponse(r, &jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) statusResponse(r *http.Request, job *domain.Job) videoStatusResponse {
	resp := videoStatusResponse{
		ID:          job.ID,
		Status:      string(job.Status),
		Model:       job.Model,
		AspectRatio: job.AspectRatio,
		TaskID:      job.TaskID,
		Progress:    job.Progress,
		Outputs:     job.Outputs,
		Bytes:       job.Bytes,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	if resp.Outputs == nil {
		resp.Outputs = []string{}
	}
	if job.Status == domain.JobStatusSucceeded && job.StorageKey != "" {
		resp.DownloadURL = "/v1/videos/" + job.ID + "/download"
	}
	if job.Status == domain.JobStatusFailed {
		body := &errorBody{Code: string(job.ErrorKind), Message: job.ErrorMessage}
		if job.ErrorKind == domain.ErrorKindSubmit {
			if hint := domain.HintFor(0, job.ErrorMessage); hint != domain.HintNone {
				body.Hint = hint.Message(middleware.LocaleFromContext(r.Context()))
			}
		}
		resp.Error = body
	}
	return resp
}

// VideoDownload streams the stored MP4 with range support.
func (a *App) VideoDownload(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.GetByID(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if job.Status != domain.JobStatusSucceeded || job.StorageKey == "" {
		a.error(w, r, http.StatusConflict, "not_ready", fmt.Sprintf("job is %s", strings.ToLower(string(job.Status))), domain.HintNone)
		return
	}
	f, err := a.Store.Open(r.Context(), job.StorageKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			a.error(w, r, http.StatusNotFound, "not_found", "artifact missing from storage", domain.HintNone)
			return
		}
		a.fail(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	name := artifactName(job)
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// VideoArchive bundles the job record, its spec, the reference images and
// the video when present into one zip.
func (a *App) VideoArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	job, err := a.Jobs.GetByID(ctx, chi.URLParam(r, "job_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	record, err := json.MarshalIndent(a.statusResponse(r, job), "", "  ")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	entries := []zip.Entry{
		{Filename: "job.json", Data: record, Modified: job.UpdatedAt},
		{Filename: "spec.json", Data: job.SpecJSON, Modified: job.CreatedAt},
	}

	var opened []*os.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	var spec jsoncfg.VideoSpecJSON
	if err := json.Unmarshal(job.SpecJSON, &spec); err == nil {
		for i, ref := range spec.Images {
			f, err := a.Store.Open(ctx, ref.StorageKey)
			if err != nil {
				a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("http: reference image missing from archive")
				continue
			}
			opened = append(opened, f)
			name := fmt.Sprintf("references/%d%s", i+1, extension(ref.StorageKey))
			entries = append(entries, zip.Entry{Filename: name, Body: f, Modified: job.CreatedAt})
		}
	}
	if job.Status == domain.JobStatusSucceeded && job.StorageKey != "" {
		if f, err := a.Store.Open(ctx, job.StorageKey); err == nil {
			opened = append(opened, f)
			entries = append(entries, zip.Entry{Filename: artifactName(job), Body: f, Modified: job.UpdatedAt})
		}
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", job.ID))
	w.WriteHeader(http.StatusOK)
	if err := zip.WriteArchive(w, entries); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("http: write archive")
	}
}

func artifactName(job *domain.Job) string {
	var spec jsoncfg.VideoSpecJSON
	if err := json.Unmarshal(job.SpecJSON, &spec); err == nil {
		if ratio, err := domain.ParseRatio(job.AspectRatio); err == nil && spec.Duration > 0 {
			return domain.ArtifactFileName(job.Model, ratio, spec.Duration)
		}
	}
	return job.ID + ".mp4"
}

func extension(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 && !strings.Contains(key[i:], "/") {
		return key[i:]
	}
	return ""
}
