// Package api serves the song library, chord transposition and pitch
// helpers over HTTP for the browser front end.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/0xlemi/chordpad/internal/observe"
	"github.com/0xlemi/chordpad/internal/pitch"
	"github.com/0xlemi/chordpad/internal/song"
)

// maxDetectSamples bounds the frame size accepted by POST /api/detect. The
// direct YIN difference is quadratic in the frame length; 4096 samples is
// two capture frames and stays in the low milliseconds.
const maxDetectSamples = 4096

// Options configures a Server
type Options struct {
	// CORSOrigins lists allowed browser origins; empty allows all.
	CORSOrigins []string

	// ExposeMetrics serves GET /metrics from the default Prometheus registry.
	ExposeMetrics bool

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Server holds the API dependencies
type Server struct {
	songs    song.Store
	detector *pitch.YINDetector
	opts     Options
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// New creates a server. A nil detector uses the voice-range defaults.
func New(songs song.Store, detector *pitch.YINDetector, opts Options) *Server {
	if detector == nil {
		detector = pitch.NewYINDetector()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	return &Server{
		songs:    songs,
		detector: detector,
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Router returns the bare route table
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(s.instrument)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/songs", s.handleListSongs).Methods(http.MethodGet)
	api.HandleFunc("/songs/{id}", s.handleGetSong).Methods(http.MethodGet)
	api.HandleFunc("/setlists", s.handleListSetlists).Methods(http.MethodGet)
	api.HandleFunc("/setlists/{id}", s.handleGetSetlist).Methods(http.MethodGet)
	api.HandleFunc("/transpose", s.handleTranspose).Methods(http.MethodGet)
	api.HandleFunc("/note", s.handleNote).Methods(http.MethodGet)
	api.HandleFunc("/frequency", s.handleFrequency).Methods(http.MethodGet)
	api.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)

	if s.opts.ExposeMetrics {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	return router
}

// Handler returns the router wrapped with CORS
func (s *Server) Handler() http.Handler {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.Router())
}

// NewHTTPServer wraps the handler in an http.Server with sane timeouts
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per route template and status
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.HTTPRequests.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("route", route),
			attribute.Int("status", rec.status),
		))
		s.logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
