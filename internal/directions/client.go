// Package directions talks to an OSRM-compatible routing service to resolve
// a route between a donor and a blood request.
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"bloodhero/internal/domain"
)

// ErrMissingBaseURL indicates that the client was configured without a
// routing endpoint.
var ErrMissingBaseURL = errors.New("directions: base url is required")

// ErrNoRoute indicates the routing service found no path between the points.
var ErrNoRoute = errors.New("directions: no route found")

// Options configures the routing client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to an OSRM route endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	timeout    time.Duration
}

// Route is the normalized result of a directions lookup.
type Route struct {
	DistanceKm float64 `json:"distance_km"`
	DurationS  float64 `json:"duration_seconds"`
	Geometry   string  `json:"geometry,omitempty"`
}

// NewClient creates a routing client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: httpClient,
		logger:     opts.Logger,
		timeout:    timeout,
	}, nil
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

// Route resolves a driving route from the donor's location to the request's
// coordinates.
func (c *Client) Route(ctx context.Context, from, to domain.Point) (*Route, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// OSRM takes lon,lat pairs.
	endpoint := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f",
		c.baseURL, from.Lng, from.Lat, to.Lng, to.Lat)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("directions: build url: %w", err)
	}
	q := u.Query()
	q.Set("overview", "simplified")
	q.Set("geometries", "polyline")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("directions: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directions: call routing service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("directions: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("routing service returned non-200")
		return nil, fmt.Errorf("directions: routing service status %d", resp.StatusCode)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("directions: decode response: %w", err)
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return nil, ErrNoRoute
	}

	best := parsed.Routes[0]
	return &Route{
		DistanceKm: best.Distance / 1000,
		DurationS:  best.Duration,
		Geometry:   best.Geometry,
	}, nil
}
