// Package server exposes the HTTP API: paginated classification results,
// the choropleth map document, and measurement intake.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/banjirlab/floodmap/internal/classify"
	"github.com/banjirlab/floodmap/internal/report"
	"github.com/banjirlab/floodmap/internal/shape"
	"github.com/banjirlab/floodmap/internal/store"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	store      store.Store
	report     *report.Service
	dispatcher *classify.Dispatcher
	features   []shape.Feature
}

// Option configures a Server.
type Option func(*Server)

// WithDispatcher enables the POST /api/classify endpoint.
func WithDispatcher(d *classify.Dispatcher) Option {
	return func(s *Server) {
		s.dispatcher = d
	}
}

// WithFeatures supplies the district boundary features joined by the map
// endpoints.
func WithFeatures(features []shape.Feature) Option {
	return func(s *Server) {
		s.features = features
	}
}

// New creates a Server.
func New(st store.Store, rep *report.Service, opts ...Option) *Server {
	s := &Server{store: st, report: rep}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/years", s.handleYears)
		r.Get("/results", s.handleResults)
		r.Get("/measurements", s.handleMeasurements)
		r.Post("/measurements", s.handleCreateMeasurement)
		r.Post("/classify", s.handleClassify)
		r.Get("/map", s.handleMap)
		r.Get("/map/features", s.handleMapFeatures)
		r.Get("/regions", s.handleRegions)
		r.Get("/stations", s.handleStations)
		r.Post("/stations", s.handleUpsertStation)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP statuses. Internal details stay
// in the log, not the response body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *report.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case store.IsConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already exists"})
	case store.IsUnavailable(err):
		zap.L().Warn("server: dependency unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service unavailable"})
	default:
		zap.L().Error("server: request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
