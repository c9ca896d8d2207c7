// Command parselink parses a single Booking.com or Google Flights link and
// prints the resulting segment suggestion as JSON. Geocoding is used when
// LOCATIONIQ_TOKEN is set (a .env file in the working directory is honored).
//
// Usage:
//
//	go run ./cmd/parselink -kind booking \
//	  -url 'https://www.booking.com/hotel/hu/the-rose-garden.html?checkin=2026-05-01&checkout=2026-05-04'
//
//	go run ./cmd/parselink -kind flights -url 'https://www.google.com/travel/flights?tfs=...'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/trip-link-parser/internal/adapter/locationiq"
	"github.com/couchcryptid/trip-link-parser/internal/config"
	"github.com/couchcryptid/trip-link-parser/internal/domain"
	"github.com/couchcryptid/trip-link-parser/internal/observability"
	"github.com/couchcryptid/trip-link-parser/internal/service"
)

var kinds = map[string]domain.LinkKind{
	"booking": domain.LinkKindBooking,
	"flights": domain.LinkKindGoogleFlights,
}

func main() {
	kind := flag.String("kind", "", "link kind: booking or flights")
	rawURL := flag.String("url", "", "link to parse")
	verbose := flag.Bool("v", false, "log geocoding activity to stderr")
	flag.Parse()

	linkKind, ok := kinds[*kind]
	if !ok || *rawURL == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, linkKind, *rawURL, *verbose, os.Stdout))
}

func run(ctx context.Context, kind domain.LinkKind, rawURL string, verbose bool, out io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		return 1
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	// Nothing scrapes a one-shot command, so keep metrics off the default registry.
	metrics := observability.NewMetricsForTesting()

	var geocoder domain.Geocoder
	if cfg.LocationIQEnabled {
		client := locationiq.NewClient(locationiq.Options{
			Token:             cfg.LocationIQToken,
			BaseURL:           cfg.LocationIQBaseURL,
			Timeout:           cfg.LocationIQTimeout,
			RequestsPerSecond: cfg.LocationIQRateLimit,
			Burst:             cfg.LocationIQBurst,
		}, metrics, logger)
		geocoder = locationiq.NewCachedGeocoder(client, cfg.GeocodeCacheSize, cfg.GeocodeCacheTTL, clockwork.NewRealClock(), metrics)
	}

	svc := service.New(
		domain.NewBookingParser(geocoder, logger),
		domain.NewFlightsParser(geocoder, logger),
		geocoder,
		logger,
		metrics,
	)

	suggestion, err := svc.Parse(ctx, kind, rawURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse %s link: %v\n", kind, err)
		return 1
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(suggestion); err != nil {
		fmt.Fprintf(os.Stderr, "encode suggestion: %v\n", err)
		return 1
	}
	return 0
}
