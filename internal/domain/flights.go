package domain

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	departureHour, departureMinute = 9, 0
	arrivalHour, arrivalMinute     = 11, 50

	minFare = 30
	maxFare = 20000
)

var (
	airportRe      = regexp.MustCompile(`\b[A-Z]{3}\b`)
	isoDateRe      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	bareNumberRe   = regexp.MustCompile(`\b\d{2,6}\b`)
	flightCodeRe   = regexp.MustCompile(`\b[A-Z]{2}\d{1,4}\b`)
	airlineCodeRe  = regexp.MustCompile(`\b[A-Z]{2}\b`)
	flightNumberRe = regexp.MustCompile(`\b\d{3,4}\b`)

	// flightDigitPatterns are tried in order; the first capture group wins.
	flightDigitPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[A-Z]{2}\d?\s*(\d{3,4})\b`),
		regexp.MustCompile(`\b[A-Z]{2}(\d{2,4})\b`),
		regexp.MustCompile(`\b(\d{3,4})\b`),
	}
)

// FlightsParser extracts segment suggestions from Google Flights deep links,
// whose search parameters are carried in the base64url tfs and tfu query values.
// It is safe for concurrent use.
type FlightsParser struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewFlightsParser creates a FlightsParser. A nil geocoder disables airport enrichment.
func NewFlightsParser(geocoder Geocoder, logger *slog.Logger) *FlightsParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlightsParser{geocoder: geocoder, logger: logger}
}

// flightPayload is the raw signal recovered from the decoded blobs.
type flightPayload struct {
	blobs        []string
	airports     []string
	dates        []string
	flightDigits string
	dateTokens   map[string]bool // years, ddMM and MMdd of every date
}

// Parse builds a plane suggestion from a Google Flights URL.
func (p *FlightsParser) Parse(ctx context.Context, rawURL string) (SegmentSuggestion, error) {
	u, err := parseAbsoluteURL(rawURL)
	if err != nil {
		return SegmentSuggestion{}, err
	}

	query := u.Query()
	var blobs []string
	for _, param := range []string{"tfs", "tfu"} {
		if decoded, ok := decodeBase64URL(query.Get(param)); ok {
			blobs = append(blobs, expandBlobs(decoded)...)
		}
	}
	if len(blobs) == 0 {
		return SegmentSuggestion{}, fmt.Errorf("%w: no decodable tfs or tfu payload", ErrUnrecognizedLink)
	}

	payload := newFlightPayload(blobs)

	suggestion := SegmentSuggestion{
		SourceURL:     rawURL,
		SegmentTypeID: SegmentTypePlane,
		Name:          flightCode(blobs[0]),
		Cost:          payload.price(),
	}

	switch len(payload.airports) {
	case 2:
		suggestion.EndLocationName = payload.airports[1]
		fallthrough
	case 1:
		suggestion.LocationName = payload.airports[0]
		suggestion.StartLocationName = payload.airports[0]
	}

	if len(payload.dates) > 0 {
		times := payload.times()
		depH, depM := departureHour, departureMinute
		arrH, arrM := arrivalHour, arrivalMinute
		if len(times) > 0 {
			if h, m, ok := parseCompactTime(times[0]); ok {
				depH, depM = h, m
			}
			arrival := times[0]
			if len(times) > 1 {
				arrival = times[1]
			}
			if h, m, ok := parseCompactTime(arrival); ok {
				arrH, arrM = h, m
			}
		}

		endDate := payload.dates[0]
		if len(payload.dates) > 1 {
			endDate = payload.dates[1]
		}
		suggestion.StartDateLocal = buildLocalDate(payload.dates[0], depH, depM)
		suggestion.EndDateLocal = buildLocalDate(endDate, arrH, arrM)
	}

	p.enrichAirports(ctx, &suggestion, payload.airports)

	return suggestion, nil
}

// enrichAirports resolves the start airport, then the end airport. Each lookup
// is independent; a failed start lookup does not skip the end lookup.
func (p *FlightsParser) enrichAirports(ctx context.Context, s *SegmentSuggestion, airports []string) {
	if len(airports) == 0 {
		return
	}
	logger := p.logger.With("link", string(LinkKindGoogleFlights))

	if start := lookupFirst(ctx, p.geocoder, airports[0]+" airport", logger); start != nil {
		s.StartLocation = start
		if s.Location == nil {
			s.Location = start
		}
		if s.LocationName == "" {
			s.LocationName = start.Name
		}
		if s.StartLocationName == "" {
			s.StartLocationName = start.Name
		}
	}

	if len(airports) < 2 {
		return
	}
	if end := lookupFirst(ctx, p.geocoder, airports[1]+" airport", logger); end != nil {
		s.EndLocation = end
		if s.Location == nil {
			s.Location = end
		}
		if s.EndLocationName == "" {
			s.EndLocationName = end.Name
		}
	}
}

func newFlightPayload(blobs []string) flightPayload {
	var airports, dates []string
	for _, blob := range blobs {
		airports = appendDistinct(airports, airportRe.FindAllString(blob, -1)...)
		dates = appendDistinct(dates, isoDateRe.FindAllString(blob, -1)...)
	}
	if len(airports) > 2 {
		airports = airports[:2]
	}

	tokens := make(map[string]bool, len(dates)*3)
	for _, d := range dates {
		year, month, day := d[:4], d[5:7], d[8:10]
		tokens[year] = true
		tokens[day+month] = true
		tokens[month+day] = true
	}

	return flightPayload{
		blobs:        blobs,
		airports:     airports,
		dates:        dates,
		flightDigits: flightNumberDigits(blobs[0]),
		dateTokens:   tokens,
	}
}

// excluded reports whether a numeric token collides with a date part or the
// flight number.
func (fp flightPayload) excluded(token string) bool {
	return fp.dateTokens[token] || (fp.flightDigits != "" && token == fp.flightDigits)
}

// times returns the time candidates of every blob, colon tokens ahead of
// compact ones within a blob, minus date and flight-number collisions.
func (fp flightPayload) times() []string {
	var kept []string
	for _, blob := range fp.blobs {
		for _, t := range scanTimes(blob) {
			if !fp.excluded(strings.ReplaceAll(t, ":", "")) {
				kept = append(kept, t)
			}
		}
	}
	return kept
}

// price returns the fare when exactly one plausible candidate survives.
func (fp flightPayload) price() *decimal.Decimal {
	var candidates []uint64
	for _, blob := range fp.blobs {
		for _, m := range bareNumberRe.FindAllString(blob, -1) {
			if v, err := strconv.ParseUint(m, 10, 64); err == nil {
				candidates = append(candidates, v)
			}
		}
		for _, token := range embeddedTokenRe.FindAllString(blob, -1) {
			if decoded, ok := decodeBase64URL(token); ok {
				candidates = append(candidates, scanVarints(decoded)...)
			}
		}
	}

	var survivors []uint64
	for _, v := range candidates {
		if v < minFare || v > maxFare || fp.excluded(strconv.FormatUint(v, 10)) {
			continue
		}
		survivors = append(survivors, v)
	}
	if len(survivors) != 1 {
		return nil
	}
	cost := decimal.NewFromInt(int64(survivors[0])).Round(2)
	return &cost
}

// flightNumberDigits extracts the numeric part of a flight number, used to
// discard time and price candidates that are really the flight number.
func flightNumberDigits(blob string) string {
	for _, re := range flightDigitPatterns {
		if m := re.FindStringSubmatch(blob); m != nil {
			return m[1]
		}
	}
	return ""
}

// flightCode returns a display code such as "SK1234", or "SK 1234" when the
// airline and number appear apart.
func flightCode(blob string) string {
	if code := flightCodeRe.FindString(blob); code != "" {
		return code
	}
	airline := airlineCodeRe.FindString(blob)
	number := flightNumberRe.FindString(blob)
	if airline == "" || number == "" {
		return ""
	}
	return airline + " " + number
}

// parseCompactTime parses "HH:MM" or "HHMM".
func parseCompactTime(token string) (hour, minute int, ok bool) {
	raw := strings.ReplaceAll(token, ":", "")
	if len(raw) != 4 || !isHourMinute(raw[:2], raw[2:]) {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(raw[:2])
	minute, _ = strconv.Atoi(raw[2:])
	return hour, minute, true
}

func appendDistinct(list []string, values ...string) []string {
	for _, v := range values {
		seen := false
		for _, existing := range list {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			list = append(list, v)
		}
	}
	return list
}
