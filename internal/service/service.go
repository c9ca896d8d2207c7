// Package service fronts the link parsers for the transports: it picks the
// parser for a link kind, records metrics, hands suggestions to the outbox and
// exposes place search for the location picker.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/trip-link-parser/internal/domain"
	"github.com/couchcryptid/trip-link-parser/internal/observability"
)

const (
	DefaultSearchLimit = 8
	MaxSearchLimit     = 50
)

var (
	// ErrUnknownKind is returned for a link kind with no registered parser.
	ErrUnknownKind = errors.New("unknown link kind")
	// ErrGeocodingDisabled is returned by SearchPlaces when no geocoder is configured.
	ErrGeocodingDisabled = errors.New("geocoding is not configured")
	// ErrEmptyQuery is returned by SearchPlaces for blank query text.
	ErrEmptyQuery = errors.New("missing search query")
)

// Parser turns a link into a suggestion. domain.BookingParser and
// domain.FlightsParser implement it.
type Parser interface {
	Parse(ctx context.Context, rawURL string) (domain.SegmentSuggestion, error)
}

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

type namedCheck struct {
	name    string
	checker ReadinessChecker
}

// LinkService dispatches links to parsers and exposes place search.
type LinkService struct {
	parsers  map[domain.LinkKind]Parser
	geocoder domain.Geocoder
	outbox   *Outbox
	checks   []namedCheck
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Option configures optional LinkService collaborators.
type Option func(*LinkService)

// WithOutbox publishes every successful suggestion through o.
func WithOutbox(o *Outbox) Option {
	return func(s *LinkService) { s.outbox = o }
}

// WithReadinessCheck adds a named dependency to CheckReadiness. Checks run in
// registration order.
func WithReadinessCheck(name string, c ReadinessChecker) Option {
	return func(s *LinkService) { s.checks = append(s.checks, namedCheck{name: name, checker: c}) }
}

// New creates a LinkService. geocoder may be nil, which disables SearchPlaces.
func New(booking, flights Parser, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *LinkService {
	s := &LinkService{
		parsers: map[domain.LinkKind]Parser{
			domain.LinkKindBooking:       booking,
			domain.LinkKindGoogleFlights: flights,
		},
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Parse runs the parser registered for kind.
func (s *LinkService) Parse(ctx context.Context, kind domain.LinkKind, rawURL string) (domain.SegmentSuggestion, error) {
	parser, ok := s.parsers[kind]
	if !ok || parser == nil {
		return domain.SegmentSuggestion{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	start := time.Now()
	suggestion, err := parser.Parse(ctx, rawURL)
	s.metrics.ParseDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	s.metrics.LinksParsed.WithLabelValues(string(kind), outcome(err)).Inc()
	if err != nil {
		s.logger.Info("link rejected", "kind", kind, "error", err)
		return domain.SegmentSuggestion{}, err
	}

	s.logger.Debug("link parsed",
		"kind", kind,
		"segment_type", suggestion.SegmentTypeID.String(),
		"located", suggestion.Location != nil,
	)
	if s.outbox != nil {
		s.outbox.Enqueue(kind, suggestion)
	}
	return suggestion, nil
}

// SearchPlaces forward-geocodes free text for the location picker. A limit
// outside 1..MaxSearchLimit falls back to DefaultSearchLimit.
func (s *LinkService) SearchPlaces(ctx context.Context, q domain.GeocodeQuery) ([]domain.ResolvedLocation, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}
	if s.geocoder == nil {
		return nil, ErrGeocodingDisabled
	}
	if q.Limit <= 0 || q.Limit > MaxSearchLimit {
		q.Limit = DefaultSearchLimit
	}

	candidates, err := s.geocoder.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}

	locations := make([]domain.ResolvedLocation, 0, len(candidates))
	for _, c := range candidates {
		loc, _ := domain.NormalizeCandidate(c)
		locations = append(locations, loc)
	}
	return locations, nil
}

// CheckReadiness returns the first failing dependency check, in registration order.
func (s *LinkService) CheckReadiness(ctx context.Context) error {
	for _, c := range s.checks {
		if err := c.checker.CheckReadiness(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", c.name, err)
		}
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrUnrecognizedLink):
		return "unrecognized"
	default:
		return "invalid"
	}
}
