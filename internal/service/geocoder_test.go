package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/smartcity/fleet-tracker/internal/domain"
)

func TestGoogleGeocoderOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "14.6,121", r.URL.Query().Get("latlng"))
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Quezon Ave, Quezon City"}]}`))
	}))
	defer srv.Close()

	g := NewGoogleGeocoder("key-1", time.Second)
	g.baseURL = srv.URL

	label, err := g.Resolve(context.Background(), 14.6, 121.0)
	require.NoError(t, err)
	assert.Equal(t, "Quezon Ave, Quezon City", label)
}

func TestGoogleGeocoderZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	g := NewGoogleGeocoder("key-1", time.Second)
	g.baseURL = srv.URL

	_, err := g.Resolve(context.Background(), 14.6, 121.0)
	assert.True(t, errors.Is(err, domain.ErrNoResult))
}

func TestGoogleGeocoderFailures(t *testing.T) {
	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	}))
	defer denied.Close()

	g := NewGoogleGeocoder("key-1", time.Second)
	g.baseURL = denied.URL
	_, err := g.Resolve(context.Background(), 14.6, 121.0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNoResult))
	assert.Contains(t, err.Error(), "REQUEST_DENIED")

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	g.baseURL = broken.URL
	_, err = g.Resolve(context.Background(), 14.6, 121.0)
	assert.Error(t, err)

	_, err = NewGoogleGeocoder("", time.Second).Resolve(context.Background(), 14.6, 121.0)
	assert.ErrorIs(t, err, errGoogleNotConfigured)
}

func TestNominatimGeocoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "14.6", q.Get("lat"))
		assert.Equal(t, "121", q.Get("lon"))
		assert.Equal(t, "18", q.Get("zoom"))
		assert.Equal(t, "1", q.Get("addressdetails"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"display_name":"Diliman, Quezon City, Metro Manila"}`))
	}))
	defer srv.Close()

	n := NewNominatimGeocoder(srv.URL, "test-agent", time.Second)
	label, err := n.Resolve(context.Background(), 14.6, 121.0)
	require.NoError(t, err)
	assert.Equal(t, "Diliman, Quezon City, Metro Manila", label)
}

func TestNominatimGeocoderNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	n := NewNominatimGeocoder(srv.URL, "", time.Second)
	_, err := n.Resolve(context.Background(), 0, 0)
	assert.ErrorIs(t, err, domain.ErrNoResult)
}

func TestNominatimGeocoderSpacesCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"display_name":"somewhere"}`))
	}))
	defer srv.Close()

	n := NewNominatimGeocoder(srv.URL, "", time.Second)
	n.limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := n.Resolve(context.Background(), 1, 1)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
}

func TestNominatimGeocoderContextCancelled(t *testing.T) {
	n := NewNominatimGeocoder("http://127.0.0.1:1", "", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Resolve(ctx, 1, 1)
	assert.Error(t, err)
}

func TestAreaApproximator(t *testing.T) {
	a := NewAreaApproximator("Metro Manila", MetroManilaAreas, 0)

	label, err := a.Resolve(context.Background(), 14.60, 121.00)
	require.NoError(t, err)
	assert.Equal(t, "Near Quezon City, Metro Manila", label)

	label, _ = a.Resolve(context.Background(), 14.551, 121.021)
	assert.Equal(t, "Near Makati, Metro Manila", label)

	label, _ = a.Resolve(context.Background(), 10.3157, 123.8854)
	assert.Equal(t, "Location at 10.3157°N, 123.8854°E", label)
}

func TestCoordinateLabelHemispheres(t *testing.T) {
	assert.Equal(t, "Location at 33.8688°S, 151.2093°E", CoordinateLabel(-33.8688, 151.2093))
	assert.Equal(t, "Location at 40.7128°N, 74.0060°W", CoordinateLabel(40.7128, -74.006))
}
