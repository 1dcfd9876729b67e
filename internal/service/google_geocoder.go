package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/smartcity/fleet-tracker/internal/domain"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleGeocoder resolves labels through the Google Geocoding API
type GoogleGeocoder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGoogleGeocoder creates a new Google geocoder
func NewGoogleGeocoder(apiKey string, timeout time.Duration) *GoogleGeocoder {
	return &GoogleGeocoder{
		apiKey:  apiKey,
		baseURL: googleGeocodeURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GoogleGeocodeResponse represents the Geocoding API response
type GoogleGeocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}

var errGoogleNotConfigured = errors.New("google geocoder: api key not configured")

// Name implements LabelStrategy
func (g *GoogleGeocoder) Name() string { return "google" }

// Resolve implements LabelStrategy
func (g *GoogleGeocoder) Resolve(ctx context.Context, lat, lng float64) (string, error) {
	if g.apiKey == "" {
		return "", errGoogleNotConfigured
	}

	params := url.Values{}
	params.Set("latlng", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("google geocoder: failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("google geocoder: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google geocoder: unexpected status %d", resp.StatusCode)
	}

	var gr GoogleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("google geocoder: failed to decode response: %w", err)
	}

	switch {
	case gr.Status == "OK" && len(gr.Results) > 0 && gr.Results[0].FormattedAddress != "":
		return gr.Results[0].FormattedAddress, nil
	case gr.Status == "OK" || gr.Status == "ZERO_RESULTS":
		return "", domain.ErrNoResult
	default:
		return "", fmt.Errorf("google geocoder: api returned status %s: %s", gr.Status, gr.ErrorMessage)
	}
}
