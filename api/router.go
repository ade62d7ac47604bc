package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/stylemesh/logging"
	"github.com/hupe1980/stylemesh/metrics"
	"github.com/hupe1980/stylemesh/store"
)

// Deps are the services behind the router.
type Deps struct {
	Stylist Stylist
	// Visualizer may be nil when visualization is disabled.
	Visualizer    Visualizer
	Workflow      Workflow
	Repo          store.Repository
	Images        ImageStore
	Metrics       *metrics.PrometheusRecorder
	Logger        logging.Logger
	MaxPhotoBytes int64
	CORSOrigins   []string
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logging.NoOpLogger{}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	if len(d.CORSOrigins) > 0 {
		r.Use(CORS(d.CORSOrigins))
	}
	r.Use(Identity)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "stylemesh"})
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	NewAgentHandler(d.Stylist, d.Visualizer, d.Logger).RegisterRoutes(r)
	NewFashionHandler(d.Workflow, d.Repo, d.Images, d.MaxPhotoBytes, d.Logger).RegisterRoutes(r)

	return r
}
