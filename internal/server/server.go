// Package server exposes WaySave over a JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/httprate"
	"github.com/waysave/waysave/internal/auth"
	"github.com/waysave/waysave/internal/finder"
	"github.com/waysave/waysave/internal/metrics"
	"github.com/waysave/waysave/internal/prefs"
	"github.com/waysave/waysave/internal/station"
	"github.com/waysave/waysave/internal/updates"
	"github.com/waysave/waysave/internal/waysave"
)

const defaultRateLimit = 120

// Store is the persistence the API reads and writes directly.
type Store interface {
	prefs.Store
	Ping(ctx context.Context) error
	ListStationUpdates(ctx context.Context, userID int64, limit int) ([]updates.Submission, error)
	GetLastUpdateDate(ctx context.Context) (*time.Time, error)
	GetLocationLogs(ctx context.Context, limit int) ([]waysave.LocationLog, error)
}

// StationFinder returns the unranked stations of the active tab around a point.
type StationFinder interface {
	Nearby(ctx context.Context, origin station.Location, p prefs.Preferences) ([]station.Station, error)
}

// Geocoder resolves free-text locations.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (finder.Place, error)
}

// UpdateSubmitter stores station updates.
type UpdateSubmitter interface {
	Submit(ctx context.Context, s updates.Submission) (updates.Submission, error)
}

// Options wire a Server. Geocoder may be nil, which disables the q parameter of
// /stations.
type Options struct {
	Store    Store
	Auth     *auth.Service
	Finder   StationFinder
	Geocoder Geocoder
	Updates  UpdateSubmitter
	Origin   station.Location

	// RateLimit is the number of requests per minute allowed for one client IP.
	RateLimit int

	// BypassAuth serves the authenticated routes to anonymous clients.
	BypassAuth bool
}

type Server struct {
	opts Options
	log  *httplog.Logger
}

func New(opts Options, logger *httplog.Logger) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	return &Server{opts: opts, log: logger}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(s.log, []string{"/healthz", "/metrics"}))
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.signup)
		r.Post("/login", s.login)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/stations", s.stations)
		r.Get("/prefs", s.getPrefs)
		r.Put("/prefs", s.putPrefs)
		r.Get("/updates", s.listUpdates)
		r.Post("/updates", s.submitUpdate)
		r.Get("/locations/popular", s.popularLocations)
	})
	return r
}

// instrument records request counts and latencies by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Store.Ping(r.Context()); err != nil {
		s.log.Error("Health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	resp := map[string]string{"status": "ok"}
	last, err := s.opts.Store.GetLastUpdateDate(r.Context())
	if err != nil {
		s.log.Warn("Could not read the last price update", "error", err)
	}
	if last != nil {
		resp["lastPriceUpdate"] = last.Format(time.DateOnly)
	}
	writeJSON(w, http.StatusOK, resp)
}
