package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/trip-link-parser/internal/domain"
	"github.com/couchcryptid/trip-link-parser/internal/observability"
	"github.com/couchcryptid/trip-link-parser/internal/service"
)

// --- mocks ---

type stubParser struct {
	suggestion domain.SegmentSuggestion
	err        error
	calls      []string
}

func (p *stubParser) Parse(_ context.Context, rawURL string) (domain.SegmentSuggestion, error) {
	p.calls = append(p.calls, rawURL)
	if p.err != nil {
		return domain.SegmentSuggestion{}, p.err
	}
	s := p.suggestion
	s.SourceURL = rawURL
	return s, nil
}

type stubGeocoder struct {
	results []domain.GeocodeCandidate
	err     error
	queries []domain.GeocodeQuery
}

func (g *stubGeocoder) Search(_ context.Context, q domain.GeocodeQuery) ([]domain.GeocodeCandidate, error) {
	g.queries = append(g.queries, q)
	return g.results, g.err
}

type recordingPublisher struct {
	published chan domain.SegmentSuggestion
}

func (p *recordingPublisher) Publish(_ context.Context, _ domain.LinkKind, s domain.SegmentSuggestion) error {
	p.published <- s
	return nil
}

type stubCheck struct{ err error }

func (c stubCheck) CheckReadiness(context.Context) error { return c.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const hotelURL = "https://www.booking.com/hotel/hu/the-rose-garden.html"

// --- tests ---

func TestLinkService_Parse_DispatchesByKind(t *testing.T) {
	booking := &stubParser{suggestion: domain.SegmentSuggestion{SegmentTypeID: domain.SegmentTypeHotel, Name: "The Rose Garden"}}
	flights := &stubParser{suggestion: domain.SegmentSuggestion{SegmentTypeID: domain.SegmentTypePlane}}
	metrics := observability.NewMetricsForTesting()
	svc := service.New(booking, flights, nil, discardLogger(), metrics)

	got, err := svc.Parse(context.Background(), domain.LinkKindBooking, hotelURL)
	require.NoError(t, err)
	assert.Equal(t, "The Rose Garden", got.Name)
	assert.Equal(t, []string{hotelURL}, booking.calls)
	assert.Empty(t, flights.calls)

	_, err = svc.Parse(context.Background(), domain.LinkKindGoogleFlights, "https://www.google.com/travel/flights?tfs=x")
	require.NoError(t, err)
	assert.Len(t, flights.calls, 1)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LinksParsed.WithLabelValues("booking", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LinksParsed.WithLabelValues("google_flights", "success")), 0)
}

func TestLinkService_Parse_UnknownKind(t *testing.T) {
	svc := service.New(&stubParser{}, &stubParser{}, nil, discardLogger(), observability.NewMetricsForTesting())

	_, err := svc.Parse(context.Background(), domain.LinkKind("airbnb"), hotelURL)
	require.ErrorIs(t, err, service.ErrUnknownKind)
}

func TestLinkService_Parse_ErrorOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"invalid input", domain.ErrInvalidInput, "invalid"},
		{"unrecognized link", fmt.Errorf("%w: no payload", domain.ErrUnrecognizedLink), "unrecognized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetricsForTesting()
			flights := &stubParser{err: tt.err}
			svc := service.New(&stubParser{}, flights, nil, discardLogger(), metrics)

			_, err := svc.Parse(context.Background(), domain.LinkKindGoogleFlights, "not a url")
			require.ErrorIs(t, err, tt.err)
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.LinksParsed.WithLabelValues("google_flights", tt.outcome)), 0)
		})
	}
}

func TestLinkService_Parse_EnqueuesToOutbox(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	pub := &recordingPublisher{published: make(chan domain.SegmentSuggestion, 1)}
	outbox := service.NewOutbox(pub, 4, discardLogger(), metrics)
	booking := &stubParser{suggestion: domain.SegmentSuggestion{SegmentTypeID: domain.SegmentTypeHotel}}
	svc := service.New(booking, &stubParser{}, nil, discardLogger(), metrics, service.WithOutbox(outbox))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- outbox.Run(ctx) }()

	_, err := svc.Parse(ctx, domain.LinkKindBooking, hotelURL)
	require.NoError(t, err)

	select {
	case s := <-pub.published:
		assert.Equal(t, hotelURL, s.SourceURL)
	case <-time.After(2 * time.Second):
		t.Fatal("suggestion was not published")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestLinkService_Parse_FailureIsNotEnqueued(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	pub := &recordingPublisher{published: make(chan domain.SegmentSuggestion, 1)}
	outbox := service.NewOutbox(pub, 1, discardLogger(), metrics)
	booking := &stubParser{err: domain.ErrInvalidInput}
	svc := service.New(booking, &stubParser{}, nil, discardLogger(), metrics, service.WithOutbox(outbox))

	_, err := svc.Parse(context.Background(), domain.LinkKindBooking, "relative/path")
	require.Error(t, err)

	// A free slot proves nothing was queued.
	assert.True(t, outbox.Enqueue(domain.LinkKindBooking, domain.SegmentSuggestion{}))
}

func TestLinkService_SearchPlaces(t *testing.T) {
	oslo := domain.GeocodeCandidate{
		PlaceID:     "240109189",
		DisplayName: "Oslo, Norway",
		Lat:         "59.9133",
		Lon:         "10.7389",
		Address:     domain.GeocodeAddress{City: "Oslo", Country: "Norway", CountryCode: "no"},
	}
	geo := &stubGeocoder{results: []domain.GeocodeCandidate{oslo}}
	svc := service.New(&stubParser{}, &stubParser{}, geo, discardLogger(), observability.NewMetricsForTesting())

	got, err := svc.SearchPlaces(context.Background(), domain.GeocodeQuery{Text: "  Oslo  ", Limit: 3})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Oslo", got[0].Name)
	assert.Equal(t, "240109189", got[0].ProviderPlaceID)
	assert.InDelta(t, 59.9133, got[0].Latitude, 1e-9)

	require.Len(t, geo.queries, 1)
	assert.Equal(t, "Oslo", geo.queries[0].Text)
	assert.Equal(t, 3, geo.queries[0].Limit)
}

func TestLinkService_SearchPlaces_LimitFallback(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, service.DefaultSearchLimit},
		{-4, service.DefaultSearchLimit},
		{51, service.DefaultSearchLimit},
		{1, 1},
		{50, 50},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.limit), func(t *testing.T) {
			geo := &stubGeocoder{}
			svc := service.New(&stubParser{}, &stubParser{}, geo, discardLogger(), observability.NewMetricsForTesting())

			got, err := svc.SearchPlaces(context.Background(), domain.GeocodeQuery{Text: "Prague", Limit: tt.limit})
			require.NoError(t, err)
			assert.Empty(t, got)
			require.Len(t, geo.queries, 1)
			assert.Equal(t, tt.want, geo.queries[0].Limit)
		})
	}
}

func TestLinkService_SearchPlaces_Errors(t *testing.T) {
	t.Run("blank query", func(t *testing.T) {
		geo := &stubGeocoder{}
		svc := service.New(&stubParser{}, &stubParser{}, geo, discardLogger(), observability.NewMetricsForTesting())
		_, err := svc.SearchPlaces(context.Background(), domain.GeocodeQuery{Text: "   "})
		require.ErrorIs(t, err, service.ErrEmptyQuery)
		assert.Empty(t, geo.queries)
	})

	t.Run("no geocoder", func(t *testing.T) {
		svc := service.New(&stubParser{}, &stubParser{}, nil, discardLogger(), observability.NewMetricsForTesting())
		_, err := svc.SearchPlaces(context.Background(), domain.GeocodeQuery{Text: "Oslo"})
		require.ErrorIs(t, err, service.ErrGeocodingDisabled)
	})

	t.Run("provider failure", func(t *testing.T) {
		providerErr := errors.New("locationiq API error: status 500")
		geo := &stubGeocoder{err: providerErr}
		svc := service.New(&stubParser{}, &stubParser{}, geo, discardLogger(), observability.NewMetricsForTesting())
		_, err := svc.SearchPlaces(context.Background(), domain.GeocodeQuery{Text: "Oslo"})
		require.ErrorIs(t, err, providerErr)
	})
}

func TestLinkService_CheckReadiness(t *testing.T) {
	metrics := observability.NewMetricsForTesting()

	healthy := service.New(&stubParser{}, &stubParser{}, nil, discardLogger(), metrics,
		service.WithReadinessCheck("redis", stubCheck{}),
	)
	require.NoError(t, healthy.CheckReadiness(context.Background()))

	down := errors.New("connection refused")
	unhealthy := service.New(&stubParser{}, &stubParser{}, nil, discardLogger(), metrics,
		service.WithReadinessCheck("redis", stubCheck{}),
		service.WithReadinessCheck("kafka", stubCheck{err: down}),
	)
	err := unhealthy.CheckReadiness(context.Background())
	require.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "kafka not ready")
}

func TestLinkService_CheckReadiness_ReportsInRegistrationOrder(t *testing.T) {
	redisDown := errors.New("redis: connection refused")
	kafkaDown := errors.New("kafka: connection refused")
	svc := service.New(&stubParser{}, &stubParser{}, nil, discardLogger(), observability.NewMetricsForTesting(),
		service.WithReadinessCheck("redis", stubCheck{err: redisDown}),
		service.WithReadinessCheck("kafka", stubCheck{err: kafkaDown}),
	)

	for range 20 {
		err := svc.CheckReadiness(context.Background())
		require.ErrorIs(t, err, redisDown)
		assert.Contains(t, err.Error(), "redis not ready")
	}
}
