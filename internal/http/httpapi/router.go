package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"videogen/internal/http/handlers"
	"videogen/internal/middleware"
)

// NewRouter wires the job API. lookup may be nil when no GeoIP database is configured.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	rateLimit := 0
	var origins []string
	if app.Config != nil {
		rateLimit = app.Config.RateLimitPerMin
		origins = app.Config.CORSAllowedOrigins
	}

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*app.Logger),
		middleware.CORS(origins),
		middleware.I18N("en", lookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/v1/catalog", app.ModelsCatalog)

	r.Route("/v1/videos", func(r chi.Router) {
		r.Use(middleware.RateLimit(rateLimit, time.Minute, http.MethodPost))
		r.Get("/", app.VideosList)
		r.Post("/", app.VideosGenerate)
		r.Get("/{job_id}", app.VideoStatus)
		r.Get("/{job_id}/download", app.VideoDownload)
		r.Get("/{job_id}/archive", app.VideoArchive)
	})

	return r
}
