package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"videogen/internal/domain"
	"videogen/internal/infra"
	"videogen/internal/middleware"
	"videogen/internal/storage"
)

// App carries the dependencies shared by the job API handlers.
type App struct {
	Config  *infra.Config
	Logger  *infra.Logger
	Jobs    domain.JobRepository
	Store   *storage.FileStore
	Catalog *domain.Catalog
	// Ping reports database health; nil skips the check.
	Ping  func(ctx context.Context) error
	NewID func() string
}

func NewApp(cfg *infra.Config, logger *infra.Logger, jobs domain.JobRepository, store *storage.FileStore) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{
		Config:  cfg,
		Logger:  logger,
		Jobs:    jobs,
		Store:   store,
		Catalog: domain.DefaultCatalog(),
		NewID:   uuid.NewString,
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, code int, errCode, message string, hint domain.HintCode) {
	body := errorBody{Code: errCode, Message: message}
	if hint != domain.HintNone {
		body.Hint = hint.Message(middleware.LocaleFromContext(r.Context()))
	}
	a.json(w, code, map[string]errorBody{"error": body})
}

// fail maps an error class onto a status code and error body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, r, http.StatusNotFound, "not_found", "job not found", domain.HintNone)
	case errors.As(err, &verr):
		a.error(w, r, http.StatusBadRequest, "validation_error", verr.Error(), validationHint(verr.Field))
	case errors.Is(err, domain.ErrValidation):
		a.error(w, r, http.StatusBadRequest, "validation_error", err.Error(), domain.HintNone)
	case errors.Is(err, domain.ErrInvalidImage):
		a.error(w, r, http.StatusBadRequest, "invalid_image", err.Error(), domain.HintNone)
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("http: request failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "internal server error", domain.HintNone)
	}
}

func validationHint(field string) domain.HintCode {
	switch field {
	case "ratio":
		return domain.HintRatio
	case "duration":
		return domain.HintDuration
	default:
		return domain.HintNone
	}
}
