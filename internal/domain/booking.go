package domain

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	checkInHour   = 15
	checkOutHour  = 11
	blockMinorMin = 1000 // sr_pri_blocks values at or above this are in minor units
)

var (
	// localeSuffixRe matches a trailing locale such as ".en-gb" left after ".html" is cut.
	localeSuffixRe = regexp.MustCompile(`(?i)\.[a-z]{2}-[a-z]{2}$`)

	currencyParams = []string{"selected_currency", "currency", "src_currency"}
)

// BookingParser extracts segment suggestions from Booking.com property links.
// It is safe for concurrent use.
type BookingParser struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewBookingParser creates a BookingParser. A nil geocoder disables location enrichment.
func NewBookingParser(geocoder Geocoder, logger *slog.Logger) *BookingParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingParser{geocoder: geocoder, logger: logger}
}

// Parse builds a suggestion from a Booking.com URL such as
// https://www.booking.com/hotel/hu/the-rose-garden-apartments.en-gb.html?checkin=2026-01-15&checkout=2026-01-18.
// Only a non-absolute URL is an error; every other miss leaves its field unset.
func (p *BookingParser) Parse(ctx context.Context, rawURL string) (SegmentSuggestion, error) {
	u, err := parseAbsoluteURL(rawURL)
	if err != nil {
		return SegmentSuggestion{}, err
	}

	segments := pathSegments(u)
	query := u.Query()

	suggestion := SegmentSuggestion{
		SourceURL:      rawURL,
		Name:           propertyName(segments),
		LocationName:   locationSlug(segments),
		StartDateLocal: buildLocalDate(query.Get("checkin"), checkInHour, 0),
		EndDateLocal:   buildLocalDate(query.Get("checkout"), checkOutHour, 0),
		Cost:           bookingPrice(query),
		CurrencyCode:   firstQueryValue(query, currencyParams...),
	}
	suggestion.SegmentTypeID = ClassifyAccommodation(suggestion.Name)

	p.enrichLocation(ctx, &suggestion, query, pathCountryName(segments))

	return suggestion, nil
}

func (p *BookingParser) enrichLocation(ctx context.Context, s *SegmentSuggestion, query url.Values, country string) {
	search := joinDistinctFold(s.Name, firstQueryValue(query, "ss", "city"), country)
	if search == "" {
		return
	}

	loc := lookupFirst(ctx, p.geocoder, search, p.logger.With("link", string(LinkKindBooking)))
	if loc == nil {
		return
	}
	s.Location = loc
	if s.LocationName == "" {
		s.LocationName = loc.Formatted
	}
}

// propertyName derives the display name from the last path segment.
func propertyName(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	slug := segments[len(segments)-1]
	if i := strings.Index(strings.ToLower(slug), ".html"); i >= 0 {
		slug = slug[:i]
	}
	slug = localeSuffixRe.ReplaceAllString(slug, "")
	return slugToTitle(slug)
}

// locationSlug derives a place label from the second-to-last path segment.
func locationSlug(segments []string) string {
	if len(segments) < 2 {
		return ""
	}
	return slugToTitle(segments[len(segments)-2])
}

// pathCountryName resolves the two-letter country segment of /hotel/<cc>/... paths.
func pathCountryName(segments []string) string {
	if len(segments) < 2 {
		return ""
	}
	return countryName(strings.TrimSpace(segments[1]))
}

// bookingPrice prefers an explicit price parameter, then the first parseable
// tail of the sr_pri_blocks list.
func bookingPrice(query url.Values) *decimal.Decimal {
	if price, ok := parseDecimal(query.Get("price")); ok {
		return &price
	}

	for _, block := range splitNonEmpty(query.Get("sr_pri_blocks"), ",") {
		parts := splitNonEmpty(block, "_")
		if len(parts) == 0 {
			continue
		}
		raw, ok := parseDecimal(parts[len(parts)-1])
		if !ok {
			continue
		}
		if raw.GreaterThanOrEqual(decimal.NewFromInt(blockMinorMin)) {
			raw = raw.Div(decimal.NewFromInt(100))
		}
		return &raw
	}
	return nil
}

// parseAbsoluteURL rejects anything that is not an absolute URL.
func parseAbsoluteURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidInput)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidInput, trimmed)
	}
	return u, nil
}

func pathSegments(u *url.URL) []string {
	return splitNonEmpty(u.Path, "/")
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// firstQueryValue returns the first non-blank value among keys, in order.
func firstQueryValue(query url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(query.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// joinDistinctFold joins non-blank parts with spaces, dropping
// case-insensitive duplicates while keeping the first spelling.
func joinDistinctFold(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dup := false
		for _, k := range kept {
			if strings.EqualFold(k, part) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}
