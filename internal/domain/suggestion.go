package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// LinkKind names the link format a suggestion was parsed from.
type LinkKind string

const (
	LinkKindBooking       LinkKind = "booking"
	LinkKindGoogleFlights LinkKind = "google_flights"
)

// SegmentType is the seeded segment type id a suggestion is classified as.
type SegmentType int

const (
	SegmentTypePlane         SegmentType = 1
	SegmentTypeHotel         SegmentType = 6
	SegmentTypeHostel        SegmentType = 7
	SegmentTypeAccommodation SegmentType = 9 // other accommodation
)

// accommodationKeywords is checked in order; the first keyword found in the
// lowercased name wins.
var accommodationKeywords = []struct {
	keyword string
	kind    SegmentType
}{
	{"hostel", SegmentTypeHostel},
	{"hotel", SegmentTypeHotel},
}

// ClassifyAccommodation maps a property name to its segment type.
func ClassifyAccommodation(name string) SegmentType {
	normalized := strings.ToLower(name)
	for _, k := range accommodationKeywords {
		if strings.Contains(normalized, k.keyword) {
			return k.kind
		}
	}
	return SegmentTypeAccommodation
}

// String returns a lowercase label, used in metrics and message headers.
func (t SegmentType) String() string {
	switch t {
	case SegmentTypePlane:
		return "plane"
	case SegmentTypeHotel:
		return "hotel"
	case SegmentTypeHostel:
		return "hostel"
	case SegmentTypeAccommodation:
		return "accommodation"
	default:
		return "unknown"
	}
}

// ResolvedLocation is a normalized geocoding result.
type ResolvedLocation struct {
	Provider        string  `json:"provider"`
	ProviderPlaceID string  `json:"providerPlaceId"`
	Name            string  `json:"name"`
	Country         string  `json:"country"`
	CountryCode     string  `json:"countryCode"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`

	// Formatted is the provider's full display string, used to backfill labels.
	Formatted string `json:"-"`
}

// SegmentSuggestion holds candidate segment fields recovered from a link, for
// a user to review before saving. Every field except SourceURL and
// SegmentTypeID is optional and omitted when it could not be derived.
type SegmentSuggestion struct {
	SourceURL     string      `json:"sourceUrl"`
	Name          string      `json:"name,omitempty"`
	SegmentTypeID SegmentType `json:"segmentTypeId"`

	StartDateLocal string `json:"startDateLocal,omitempty"` // YYYY-MM-DDTHH:mm, no zone
	EndDateLocal   string `json:"endDateLocal,omitempty"`

	LocationName      string `json:"locationName,omitempty"`
	StartLocationName string `json:"startLocationName,omitempty"`
	EndLocationName   string `json:"endLocationName,omitempty"`

	Location      *ResolvedLocation `json:"location,omitempty"`
	StartLocation *ResolvedLocation `json:"startLocation,omitempty"`
	EndLocation   *ResolvedLocation `json:"endLocation,omitempty"`

	Cost         *decimal.Decimal `json:"cost,omitempty"`
	CurrencyCode string           `json:"currencyCode,omitempty"`
}

// SuggestionID is a deterministic id derived from the segment type and source
// URL, so re-parsing the same link yields the same message key downstream.
func SuggestionID(s SegmentSuggestion) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(s.SourceURL)))
	return s.SegmentTypeID.String() + "-" + hex.EncodeToString(hash[:8])
}
