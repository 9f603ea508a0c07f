// Package geo resolves coordinates to a country.
package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ashureev/companion/internal/agent"
)

// DefaultURL is the public Nominatim reverse geocoding endpoint.
const DefaultURL = "https://nominatim.openstreetmap.org/reverse"

// DefaultUserAgent identifies the bot to Nominatim, which requires one.
const DefaultUserAgent = "companion-bot/1.0"

const collaborator = "geocode"

// ErrInvalidCoordinates is returned for latitude or longitude outside the globe.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Place is the country a coordinate falls in.
type Place struct {
	CountryCode string
	Country     string
}

// Geocoder maps a coordinate to a Place.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
}

// Nominatim queries an OpenStreetMap Nominatim server.
type Nominatim struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

// NewNominatim creates a geocoder. Empty arguments take the package defaults.
func NewNominatim(endpoint, userAgent string, timeout time.Duration) *Nominatim {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Nominatim{
		endpoint:  endpoint,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// Reverse implements Geocoder.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Place{}, agent.Wrap(collaborator, "reverse", fmt.Errorf("%w: %f,%f", ErrInvalidCoordinates, lat, lon))
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("format", "json")
	q.Set("zoom", "3")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Place{}, agent.Wrap(collaborator, "build request", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return Place{}, agent.Wrap(collaborator, "get", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Place{}, agent.Wrap(collaborator, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Place{}, agent.Wrap(collaborator, "get", fmt.Errorf("status %d", resp.StatusCode))
	}
	if msg := gjson.GetBytes(body, "error").String(); msg != "" {
		return Place{}, agent.Wrap(collaborator, "get", errors.New(msg))
	}

	addr := gjson.GetBytes(body, "address")
	return Place{
		CountryCode: addr.Get("country_code").String(),
		Country:     addr.Get("country").String(),
	}, nil
}

var _ Geocoder = (*Nominatim)(nil)
