// Package server exposes the generation endpoint and the saved-essay API over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"essay_reader/auth"
	"essay_reader/essay"
	"essay_reader/generator"
	"essay_reader/metrics"
	"essay_reader/persistence"
)

const defaultGenerateTimeout = 60 * time.Second

type Server struct {
	writer   *generator.Writer
	store    persistence.Gateway
	verifier *auth.Verifier
	catalog  essay.Catalog
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	timeout  time.Duration
}

// Option customizes the server.
type Option func(*Server)

// WithStore enables the saved-essay API. It also needs WithVerifier.
func WithStore(store persistence.Gateway) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithVerifier sets the bearer-token verifier for the saved-essay API.
func WithVerifier(v *auth.Verifier) Option {
	return func(s *Server) {
		s.verifier = v
	}
}

// WithCatalog restricts generation to the listed subjects and levels.
func WithCatalog(c essay.Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithMetrics sets the collectors; New creates private ones otherwise.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGenerateTimeout bounds each generation request.
func WithGenerateTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(writer *generator.Writer, opts ...Option) (*Server, error) {
	if writer == nil {
		return nil, errors.New("essay writer required")
	}
	s := &Server{
		writer:  writer,
		logger:  zerolog.Nop(),
		timeout: defaultGenerateTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s, nil
}

// SavedEssaysEnabled reports whether the saved-essay API is mounted.
func (s *Server) SavedEssaysEnabled() bool {
	return s.store != nil && s.verifier != nil
}

func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/generate-essay", s.handleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/catalog", s.handleCatalog).Methods(http.MethodGet)

	if s.SavedEssaysEnabled() {
		saved := api.PathPrefix("/essays").Subrouter()
		saved.Use(s.verifier.Middleware)
		saved.HandleFunc("", s.handleListSaved).Methods(http.MethodGet)
		saved.HandleFunc("", s.handleSave).Methods(http.MethodPost)
		saved.HandleFunc("/match", s.handleMatch).Methods(http.MethodPost)
		saved.HandleFunc("/{id}", s.handleRemove).Methods(http.MethodDelete)
		saved.HandleFunc("/{id}/html", s.handleRenderSaved).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found", "")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	return s.logMiddleware(router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"saved_essays": s.SavedEssaysEnabled(),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog)
}

// --- Helpers ---

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, errorBody{Error: message, Code: code})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
