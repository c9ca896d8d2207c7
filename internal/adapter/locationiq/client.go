package locationiq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/trip-link-parser/internal/domain"
	"github.com/couchcryptid/trip-link-parser/internal/observability"
)

const (
	// DefaultBaseURL is the LocationIQ forward geocoding endpoint.
	DefaultBaseURL = "https://us1.locationiq.com/v1/search"

	placeTags = "place:country,place:city,place:town,place:village"
)

// ErrNotConfigured is returned when a search is attempted without an API token.
var ErrNotConfigured = errors.New("locationiq token is not configured")

// Options configures a Client.
type Options struct {
	Token             string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
}

// Client implements domain.Geocoder using the LocationIQ search API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a LocationIQ geocoding client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		token: opts.Token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL: baseURL,
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

// Search forward-geocodes free text, returning candidates best match first.
// LocationIQ answers "no match" with 404, which is reported as an empty result.
func (c *Client) Search(ctx context.Context, q domain.GeocodeQuery) ([]domain.GeocodeCandidate, error) {
	if c.token == "" {
		return nil, ErrNotConfigured
	}

	if err := c.wait(ctx); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("forward geocode rate limit: %w", err)
	}

	limit := q.Limit
	if limit < 1 {
		limit = 1
	}
	params := url.Values{
		"key":            {c.token},
		"format":         {"json"},
		"q":              {q.Text},
		"limit":          {strconv.Itoa(limit)},
		"addressdetails": {"1"},
		"normalizecity":  {"1"},
		"tag":            {placeTags},
	}
	if cc := strings.TrimSpace(q.CountryCodes); cc != "" {
		params.Set("countrycodes", cc)
	}
	if lang := strings.TrimSpace(q.Language); lang != "" {
		params.Set("accept-language", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("forward geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("locationiq API error: status %d: %s", resp.StatusCode, body)
	}

	var items []item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(items) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return nil, nil
	}
	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()

	candidates := make([]domain.GeocodeCandidate, 0, len(items))
	for _, it := range items {
		candidates = append(candidates, it.toCandidate())
	}
	c.logger.Debug("locationiq search", "query", q.Text, "results", len(candidates))
	return candidates, nil
}

// wait blocks until the limiter admits one request or ctx ends.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if !c.limiter.Allow() {
		c.metrics.GeocodeThrottled.Inc()
		return c.limiter.Wait(ctx)
	}
	return nil
}

// LocationIQ API response types.

type item struct {
	PlaceID     flexString `json:"place_id"`
	DisplayName string     `json:"display_name"`
	Lat         flexString `json:"lat"`
	Lon         flexString `json:"lon"`
	Address     *address   `json:"address"`
}

type address struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	Hamlet       string `json:"hamlet"`
	State        string `json:"state"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
}

func (it item) toCandidate() domain.GeocodeCandidate {
	c := domain.GeocodeCandidate{
		PlaceID:     string(it.PlaceID),
		DisplayName: it.DisplayName,
		Lat:         string(it.Lat),
		Lon:         string(it.Lon),
	}
	if a := it.Address; a != nil {
		c.Address = domain.GeocodeAddress{
			City:         a.City,
			Town:         a.Town,
			Village:      a.Village,
			Municipality: a.Municipality,
			Hamlet:       a.Hamlet,
			State:        a.State,
			Country:      a.Country,
			CountryCode:  a.CountryCode,
		}
	}
	return c
}

// flexString accepts a JSON string or number; LocationIQ returns ids and
// coordinates as strings but some regions emit bare numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
