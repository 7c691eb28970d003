// Package web exposes sessions, one-shot matching and the citizen registry
// as a JSON API.
package web

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/registry"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/session"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

// DefaultMaxUpload caps multipart uploads.
const DefaultMaxUpload = 20 << 20

// Sessions controls the capture session.
type Sessions interface {
	Start(ctx context.Context) (session.Info, error)
	Stop() error
	Status() session.Info
	LatestFrame() ([]byte, bool)
	// WhileIdle runs fn while no session can start.
	WhileIdle(fn func() error) error
}

// Registry manages citizens and sightings.
type Registry interface {
	Register(ctx context.Context, reg registry.Registration, picture io.Reader) (*storage.Identity, error)
	SetWanted(ctx context.Context, id string) (*storage.Identity, error)
	SetFree(ctx context.Context, id string) (*storage.Identity, error)
	MarkFound(ctx context.Context, sightingID string) (*storage.Identity, error)
	ListIdentities(ctx context.Context, kind storage.Kind) ([]storage.Identity, error)
	Stats(ctx context.Context) (registry.Stats, error)
	ListCurrentWanted(ctx context.Context) ([]storage.Sighting, error)
	ClearAll(ctx context.Context) (registry.ClearReport, error)
}

// OneShotRunner matches one uploaded picture.
type OneShotRunner interface {
	Run(ctx context.Context, name string, data []byte) (*session.OneShotResult, error)
}

// Server holds the handlers' dependencies. Realtime and Metrics are
// optional.
type Server struct {
	Sessions   Sessions
	Registry   Registry
	NewOneShot func() OneShotRunner
	Realtime   http.HandlerFunc
	Metrics    http.Handler
	ResultsDir string

	AllowedOrigins []string
	MaxUpload      int64
	RequestTimeout time.Duration
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	if s.MaxUpload <= 0 {
		s.MaxUpload = DefaultMaxUpload
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, "ok", nil)
	})
	if s.Realtime != nil {
		r.Get("/ws", s.Realtime)
	}
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.RequestTimeout))

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.sessionStatus)
			r.Post("/start", s.startSession)
			r.Post("/stop", s.stopSession)
			r.Get("/frame", s.latestFrame)
		})

		r.Post("/match", s.matchPicture)
		r.Get("/results/{name}", s.serveResult)

		r.Route("/sightings", func(r chi.Router) {
			r.Get("/", s.listSightings)
			r.Post("/{id}/found", s.markFound)
		})

		r.Route("/citizens", func(r chi.Router) {
			r.Get("/", s.listCitizens)
			r.Post("/", s.registerCitizen)
			r.Post("/{id}/wanted", s.setWanted)
			r.Post("/{id}/free", s.setFree)
		})

		r.Get("/stats", s.stats)
		r.Post("/admin/clear", s.clearAll)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Component("http").WithFields(logging.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
			"request":  middleware.GetReqID(r.Context()),
		}).Debug("Request handled")
	})
}
