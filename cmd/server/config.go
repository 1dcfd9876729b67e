package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/smartcity/fleet-tracker/internal/service"
	"github.com/smartcity/fleet-tracker/internal/source"
)

// Config holds the environment settings of the server
type Config struct {
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	GoogleMapsAPIKey   string
	NominatimURL       string
	NominatimUserAgent string
	LabelCacheSize     int
	LabelCacheTTL      time.Duration
	LabelCoalesce      bool
	LocationChannel    string
	GeocodeTimeout     time.Duration
	Port               string
	Env                string
}

func loadConfig() *Config {
	return &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		GoogleMapsAPIKey:   getEnv("GOOGLE_MAPS_API_KEY", ""),
		NominatimURL:       getEnv("NOMINATIM_URL", service.DefaultNominatimURL),
		NominatimUserAgent: getEnv("NOMINATIM_USER_AGENT", "FleetTrackingApp/1.0"),
		LabelCacheSize:     getEnvInt("LABEL_CACHE_SIZE", service.DefaultLabelCacheSize),
		LabelCacheTTL:      getEnvDuration("LABEL_CACHE_TTL", time.Hour),
		LabelCoalesce:      getEnvBool("LABEL_COALESCE", true),
		LocationChannel:    getEnv("LOCATION_CHANNEL", source.DefaultChannel),
		GeocodeTimeout:     getEnvDuration("GEOCODE_TIMEOUT", 10*time.Second),
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("GO_ENV", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
