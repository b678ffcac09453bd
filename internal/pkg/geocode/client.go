// Package geocode wraps a Nominatim-style reverse geocoding API. All
// outbound calls go through an injected throttle to respect the
// provider's one-request-per-second policy; results are cached in
// Redis since coordinates rarely change meaning.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/resumehub/resumehub-api/internal/pkg/throttle"
)

const defaultTimeout = 10 * time.Second

// ErrLookupFailed is returned when the provider rejects or fails a lookup.
var ErrLookupFailed = errors.New("reverse geocode lookup failed")

// Location is a reverse-geocoded place
type Location struct {
	DisplayName string `json:"display_name"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// Client performs throttled, cached reverse geocoding
type Client struct {
	baseURL  string
	http     *http.Client
	throttle *throttle.Throttle
	cache    *redis.Client // nil disables caching
	cacheTTL time.Duration
}

// NewClient creates a geocode client. cache may be nil.
func NewClient(baseURL string, th *throttle.Throttle, cache *redis.Client, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		throttle: th,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Reverse resolves coordinates to a location, serving from cache when possible
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Location, error) {
	key := fmt.Sprintf("geo:rev:%.4f,%.4f", lat, lon)

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
			var loc Location
			if json.Unmarshal([]byte(cached), &loc) == nil {
				return &loc, nil
			}
		}
	}

	var loc *Location
	err := c.throttle.Do(ctx, func(ctx context.Context) error {
		var callErr error
		loc, callErr = c.fetch(ctx, lat, lon)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if payload, err := json.Marshal(loc); err == nil {
			if err := c.cache.Set(ctx, key, payload, c.cacheTTL).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to cache geocode result")
			}
		}
	}

	return loc, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (*Location, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("format", "jsonv2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "resumehub-api/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrLookupFailed, err)
	}

	var nr nominatimResponse
	if err := json.Unmarshal(raw, &nr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrLookupFailed, err)
	}

	city := nr.Address.City
	if city == "" {
		city = nr.Address.Town
	}
	if city == "" {
		city = nr.Address.Village
	}

	return &Location{
		DisplayName: nr.DisplayName,
		City:        city,
		State:       nr.Address.State,
		Country:     nr.Address.Country,
		CountryCode: nr.Address.CountryCode,
	}, nil
}
