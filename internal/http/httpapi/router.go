package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"plantshot/internal/http/handlers"
	"plantshot/internal/infra"
	"plantshot/internal/middleware"
)

// Options tunes router-level middleware.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	// StaticDir, when set, is served under /static for locally stored images.
	StaticDir string
	Logger    infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/organizations/{org_id}", func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute, middleware.ByURLParam("org_id")))
		r.Post("/products/{product_id}/generate", app.Generate)
		r.Post("/products/{product_id}/regenerate", app.Regenerate)
		r.Get("/jobs/{job_id}", app.JobStatus)
	})

	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}

	return r
}
