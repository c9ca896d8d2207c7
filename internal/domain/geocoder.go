package domain

import "context"

// GeocodeQuery is a forward-geocoding request.
type GeocodeQuery struct {
	Text         string
	Limit        int
	CountryCodes string // comma-separated ISO 3166-1 alpha-2 filter, optional
	Language     string // accept-language hint, optional
}

// GeocodeAddress is the address breakdown of a candidate. Any field may be empty.
type GeocodeAddress struct {
	City         string `json:"city,omitempty"`
	Town         string `json:"town,omitempty"`
	Village      string `json:"village,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	Hamlet       string `json:"hamlet,omitempty"`
	State        string `json:"state,omitempty"`
	Country      string `json:"country,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
}

// GeocodeCandidate is one provider result. Coordinates stay as the provider's
// strings until normalized.
type GeocodeCandidate struct {
	PlaceID     string         `json:"place_id"`
	DisplayName string         `json:"display_name"`
	Lat         string         `json:"lat"`
	Lon         string         `json:"lon"`
	Address     GeocodeAddress `json:"address"`
}

// Geocoder resolves free text to candidate places, best match first.
type Geocoder interface {
	Search(ctx context.Context, q GeocodeQuery) ([]GeocodeCandidate, error)
}
