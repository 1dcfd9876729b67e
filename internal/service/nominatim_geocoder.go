package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/smartcity/fleet-tracker/internal/domain"
)

const (
	// DefaultNominatimURL is the public reverse geocoding endpoint
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/reverse"
	defaultUserAgent    = "FleetTrackingApp/1.0"
)

// NominatimGeocoder resolves labels through OpenStreetMap Nominatim.
// Calls are spaced at least one second apart per the public usage policy.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewNominatimGeocoder creates a new Nominatim geocoder; an empty baseURL uses the public instance
func NewNominatimGeocoder(baseURL, userAgent string, timeout time.Duration) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &NominatimGeocoder{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// NominatimResponse represents the reverse endpoint response
type NominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Name implements LabelStrategy
func (n *NominatimGeocoder) Name() string { return "nominatim" }

// Resolve implements LabelStrategy
func (n *NominatimGeocoder) Resolve(ctx context.Context, lat, lng float64) (string, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("nominatim geocoder: rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("zoom", "18")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("nominatim geocoder: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("nominatim geocoder: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim geocoder: unexpected status %d", resp.StatusCode)
	}

	var nr NominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return "", fmt.Errorf("nominatim geocoder: failed to decode response: %w", err)
	}
	if nr.DisplayName == "" {
		return "", domain.ErrNoResult
	}
	return nr.DisplayName, nil
}
