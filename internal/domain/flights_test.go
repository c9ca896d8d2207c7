package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// Captured from a shared Google Flights booking page (OSL to PRG, DY2 tail).
	flightsBookingURL = "https://www.google.com/travel/flights/booking?tfs=CBwQAhpMEgoyMDI2LTAxLTE1IiAKA09TTBIKMjAyNi0wMS0xNRoDUFJHKgJEWTIEMTUwMigAagwIAhIIL20vMDVsNjRyDAgDEggvbS8wNXl3Z0ABSAFwAYIBCwj___________8BmAEC" +
		"&tfu=CmxDalJJTkV3MmRrZ3hURkJHWlVGQlFsUnJZa0ZDUnkwdExTMHRMUzB0TFd4dGNXb3hNRUZCUVVGQlIydHRRWGMwVHpCb1kyTkJFZ1pFV1RFMU1ESWFDZ2pGQlJBQUdnTk9UMHM0SEhDWE5nPT0SAggAIgA"

	// tfs = " 2026-03-10 OSL PRG 08:15 10:25 SK1234 2026-03-11 CMUFEAEYAg "
	// where CMUFEAEYAg encodes varints {709, 1, 2}.
	flightsFareURL = "https://www.google.com/travel/flights?tfs=IDIwMjYtMDMtMTAgT1NMIFBSRyAwODoxNSAxMDoyNSBTSzEyMzQgMjAyNi0wMy0xMSBDTVVGRUFFWUFnIA"

	// As above plus COIJEAEYAg, a second fare of 1250.
	flightsTwoFaresURL = "https://www.google.com/travel/flights?tfs=IDIwMjYtMDMtMTAgT1NMIFBSRyAwODoxNSAxMDoyNSBTSzEyMzQgMjAyNi0wMy0xMSBDTVVGRUFFWUFnIENPSUpFQUVZQWcg"

	// tfs = " 2026-05-02 LHR "
	flightsOneAirportURL = "https://www.google.com/travel/flights?tfs=IDIwMjYtMDUtMDIgTEhSIA"
)

func TestFlightsParser_Parse(t *testing.T) {
	parser := NewFlightsParser(nil, discardLogger())

	t.Run("booking link without times uses defaults", func(t *testing.T) {
		s, err := parser.Parse(context.Background(), flightsBookingURL)
		require.NoError(t, err)

		assert.Equal(t, SegmentTypePlane, s.SegmentTypeID)
		assert.Equal(t, "DY2", s.Name)
		assert.Equal(t, "OSL", s.LocationName)
		assert.Equal(t, "OSL", s.StartLocationName)
		assert.Equal(t, "PRG", s.EndLocationName)
		assert.Equal(t, "2026-01-15T09:00", s.StartDateLocal)
		assert.Equal(t, "2026-01-15T11:50", s.EndDateLocal)
		assert.Nil(t, s.Cost)
	})

	t.Run("times and single fare", func(t *testing.T) {
		s, err := parser.Parse(context.Background(), flightsFareURL)
		require.NoError(t, err)

		assert.Equal(t, "SK1234", s.Name)
		assert.Equal(t, "2026-03-10T08:15", s.StartDateLocal)
		assert.Equal(t, "2026-03-11T10:25", s.EndDateLocal)
		require.NotNil(t, s.Cost)
		assert.Equal(t, "709", s.Cost.String())
	})

	t.Run("two fares are ambiguous", func(t *testing.T) {
		s, err := parser.Parse(context.Background(), flightsTwoFaresURL)
		require.NoError(t, err)

		assert.Nil(t, s.Cost)
		assert.Equal(t, "2026-03-10T08:15", s.StartDateLocal)
	})

	t.Run("single airport fills start side only", func(t *testing.T) {
		s, err := parser.Parse(context.Background(), flightsOneAirportURL)
		require.NoError(t, err)

		assert.Empty(t, s.Name)
		assert.Equal(t, "LHR", s.LocationName)
		assert.Equal(t, "LHR", s.StartLocationName)
		assert.Empty(t, s.EndLocationName)
		assert.Equal(t, "2026-05-02T09:00", s.StartDateLocal)
		assert.Equal(t, "2026-05-02T11:50", s.EndDateLocal)
	})

	t.Run("time tokens colliding with the date are ignored", func(t *testing.T) {
		// tfs = " 2026-03-15 OSL PRG 1503 0315 ": 1503 is ddMM and 0315 is MMdd of the date.
		s, err := parser.Parse(context.Background(),
			"https://www.google.com/travel/flights?tfs=IDIwMjYtMDMtMTUgT1NMIFBSRyAxNTAzIDAzMTUg")
		require.NoError(t, err)

		assert.Equal(t, "2026-03-15T09:00", s.StartDateLocal)
		assert.Equal(t, "2026-03-15T11:50", s.EndDateLocal)
	})

	t.Run("payload without dates leaves dates unset", func(t *testing.T) {
		// tfs = "OSL PRG"
		s, err := parser.Parse(context.Background(), "https://www.google.com/travel/flights?tfs=T1NMIFBSRw")
		require.NoError(t, err)

		assert.Empty(t, s.Name)
		assert.Equal(t, "OSL", s.StartLocationName)
		assert.Empty(t, s.StartDateLocal)
		assert.Empty(t, s.EndDateLocal)
	})
}

func TestFlightsParser_Parse_Errors(t *testing.T) {
	parser := NewFlightsParser(nil, discardLogger())

	tests := []struct {
		name string
		url  string
		want error
	}{
		{"relative url", "/travel/flights?tfs=T1NMIFBSRw", ErrInvalidInput},
		{"blank", "", ErrInvalidInput},
		{"no query string", "https://www.google.com/travel/flights", ErrUnrecognizedLink},
		{"undecodable payloads", "https://www.google.com/travel/flights?tfs=%25%25%25&tfu=*", ErrUnrecognizedLink},
		{"empty payloads", "https://www.google.com/travel/flights?tfs=&tfu=", ErrUnrecognizedLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(context.Background(), tt.url)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFlightsParser_Enrichment(t *testing.T) {
	prague := GeocodeCandidate{
		PlaceID:     "98114",
		DisplayName: "Václav Havel Airport Prague, Prague, Czechia",
		Lat:         "50.1008",
		Lon:         "14.2600",
		Address:     GeocodeAddress{City: "Prague", Country: "Czechia", CountryCode: "cz"},
	}

	t.Run("start then end airport", func(t *testing.T) {
		geo := &fakeGeocoder{results: map[string][]GeocodeCandidate{
			"OSL airport": {osloCandidate},
			"PRG airport": {prague},
		}}

		s, err := NewFlightsParser(geo, discardLogger()).Parse(context.Background(), flightsBookingURL)
		require.NoError(t, err)

		assert.Equal(t, []string{"OSL airport", "PRG airport"}, geo.queryTexts())
		for _, q := range geo.queries {
			assert.Equal(t, 1, q.Limit)
		}
		require.NotNil(t, s.StartLocation)
		require.NotNil(t, s.EndLocation)
		assert.Equal(t, "Ullensaker", s.StartLocation.Name)
		assert.Equal(t, "Prague", s.EndLocation.Name)
		assert.Equal(t, s.StartLocation, s.Location)
		assert.Equal(t, "OSL", s.LocationName)
		assert.Equal(t, "PRG", s.EndLocationName)
	})

	t.Run("failed start lookup does not skip the end", func(t *testing.T) {
		geo := &fakeGeocoder{
			results: map[string][]GeocodeCandidate{"PRG airport": {prague}},
			errs:    map[string]error{"OSL airport": errors.New("LocationIQ upstream 503")},
		}

		s, err := NewFlightsParser(geo, discardLogger()).Parse(context.Background(), flightsBookingURL)
		require.NoError(t, err)

		assert.Nil(t, s.StartLocation)
		require.NotNil(t, s.EndLocation)
		assert.Equal(t, s.EndLocation, s.Location)
		assert.Equal(t, "2026-01-15T09:00", s.StartDateLocal)
	})

	t.Run("no airports means no lookups", func(t *testing.T) {
		geo := &fakeGeocoder{}
		// tfs = "2026-05-02"
		_, err := NewFlightsParser(geo, discardLogger()).Parse(context.Background(),
			"https://www.google.com/travel/flights?tfs=MjAyNi0wNS0wMg")
		require.NoError(t, err)

		assert.Empty(t, geo.queries)
	})

	t.Run("cancellation keeps derived fields", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		geo := &fakeGeocoder{results: map[string][]GeocodeCandidate{"OSL airport": {osloCandidate}}}

		s, err := NewFlightsParser(geo, discardLogger()).Parse(ctx, flightsFareURL)
		require.NoError(t, err)

		assert.Nil(t, s.StartLocation)
		assert.Equal(t, "SK1234", s.Name)
		require.NotNil(t, s.Cost)
	})

	t.Run("idempotent", func(t *testing.T) {
		geo := &fakeGeocoder{results: map[string][]GeocodeCandidate{
			"OSL airport": {osloCandidate},
			"PRG airport": {prague},
		}}
		parser := NewFlightsParser(geo, discardLogger())

		first, err := parser.Parse(context.Background(), flightsFareURL)
		require.NoError(t, err)
		second, err := parser.Parse(context.Background(), flightsFareURL)
		require.NoError(t, err)

		assert.Empty(t, cmp.Diff(first, second))
	})
}

func TestFlightNumberDigits(t *testing.T) {
	tests := []struct {
		blob     string
		expected string
	}{
		{" SK 1234 ", "1234"},
		{" LX318 ", "318"},
		{" DY2 1502 ", "1502"},
		{" flight 0815 ", "0815"},
		{" no digits here ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.blob, func(t *testing.T) {
			assert.Equal(t, tt.expected, flightNumberDigits(tt.blob))
		})
	}
}

func TestFlightCode(t *testing.T) {
	tests := []struct {
		blob     string
		expected string
	}{
		{" xx SK1234 ", "SK1234"},
		{" AB x 1502 ", "AB 1502"},
		{" AB only ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.blob, func(t *testing.T) {
			assert.Equal(t, tt.expected, flightCode(tt.blob))
		})
	}
}

func TestParseCompactTime(t *testing.T) {
	h, m, ok := parseCompactTime("08:15")
	assert.True(t, ok)
	assert.Equal(t, 8, h)
	assert.Equal(t, 15, m)

	h, m, ok = parseCompactTime("2359")
	assert.True(t, ok)
	assert.Equal(t, 23, h)
	assert.Equal(t, 59, m)

	for _, bad := range []string{"2400", "1260", "815", "12:3a"} {
		_, _, ok := parseCompactTime(bad)
		assert.False(t, ok, bad)
	}
}
