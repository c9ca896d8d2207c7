package domain

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// ProviderLocationIQ tags locations produced by the LocationIQ geocoder.
const ProviderLocationIQ = "locationiq"

// NormalizeCandidate converts a provider candidate to a ResolvedLocation.
// Coordinates that fail to parse default to 0; coordsOK reports whether both parsed.
func NormalizeCandidate(c GeocodeCandidate) (loc ResolvedLocation, coordsOK bool) {
	name := firstNonEmpty(
		c.Address.City,
		c.Address.Town,
		c.Address.Village,
		c.Address.Municipality,
		c.Address.Hamlet,
		c.DisplayName,
	)

	lat, latErr := strconv.ParseFloat(strings.TrimSpace(c.Lat), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(c.Lon), 64)
	if latErr != nil {
		lat = 0
	}
	if lonErr != nil {
		lon = 0
	}

	placeID := c.PlaceID
	if placeID == "" {
		placeID = c.Lat + "," + c.Lon
	}

	return ResolvedLocation{
		Provider:        ProviderLocationIQ,
		ProviderPlaceID: placeID,
		Name:            name,
		Country:         c.Address.Country,
		CountryCode:     c.Address.CountryCode,
		Latitude:        lat,
		Longitude:       lon,
		Formatted:       firstNonEmpty(c.DisplayName, name),
	}, latErr == nil && lonErr == nil
}

// lookupFirst geocodes text and normalizes the best match. Any failure is
// logged at warn level and reported as a nil location (graceful degradation).
func lookupFirst(ctx context.Context, geocoder Geocoder, text string, logger *slog.Logger) *ResolvedLocation {
	if geocoder == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	results, err := geocoder.Search(ctx, GeocodeQuery{Text: text, Limit: 1})
	if err != nil {
		logger.Warn("geocoding failed", "query", text, "error", err)
		return nil
	}
	if len(results) == 0 {
		logger.Debug("geocoding returned no results", "query", text)
		return nil
	}

	loc, coordsOK := NormalizeCandidate(results[0])
	if !coordsOK {
		logger.Warn("geocoding result has unparseable coordinates",
			"query", text,
			"lat", results[0].Lat,
			"lon", results[0].Lon,
		)
	}
	return &loc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
