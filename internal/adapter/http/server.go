package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/trip-link-parser/internal/domain"
	"github.com/couchcryptid/trip-link-parser/internal/service"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 64 << 10
)

// LinkService is the part of service.LinkService the API serves.
type LinkService interface {
	Parse(ctx context.Context, kind domain.LinkKind, rawURL string) (domain.SegmentSuggestion, error)
	SearchPlaces(ctx context.Context, q domain.GeocodeQuery) ([]domain.ResolvedLocation, error)
}

// Server exposes the parse and geocode API plus health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	links      LinkService
	logger     *slog.Logger
}

type parseRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, links LinkService, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		links:  links,
		logger: logger,
	}

	mux.HandleFunc("POST /api/segments/parse/booking", s.handleParse(domain.LinkKindBooking))
	mux.HandleFunc("POST /api/segments/parse/flights", s.handleParse(domain.LinkKindGoogleFlights))
	mux.HandleFunc("GET /api/geocode/search", s.handleGeocodeSearch)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer.Handler = s.withRequestID(mux)
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleParse(kind domain.LinkKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req parseRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "request body must be JSON with a url field")
			return
		}

		suggestion, err := s.links.Parse(r.Context(), kind, req.URL)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, suggestion)
		case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnrecognizedLink):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("parse link failed",
				"kind", kind,
				"error", err,
				"request_id", w.Header().Get(requestIDHeader),
			)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func (s *Server) handleGeocodeSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	// An unparseable limit is treated like a missing one.
	limit, _ := strconv.Atoi(params.Get("limit"))

	locations, err := s.links.SearchPlaces(r.Context(), domain.GeocodeQuery{
		Text:         params.Get("q"),
		Limit:        limit,
		CountryCodes: params.Get("countrycodes"),
		Language:     params.Get("lang"),
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, locations)
	case errors.Is(err, service.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "Missing query parameter ?q=")
	case errors.Is(err, service.ErrGeocodingDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Warn("geocode search failed",
			"error", err,
			"request_id", w.Header().Get(requestIDHeader),
		)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// withRequestID echoes the caller's X-Request-ID or assigns a new one.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
