package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/weather-recorder/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	AppEnv   string `validate:"oneof=dev prod"`
	LogLevel slog.Level

	// Storage.
	StoreDriver  string `validate:"oneof=sqlite memory"`
	DatabasePath string `validate:"required_if=StoreDriver sqlite"`

	// Collector.
	Location      weather.Coordinates
	FetchInterval time.Duration
	HTTPTimeout   time.Duration
	CacheTTL      time.Duration // 0 disables the response cache

	// Exporter.
	ExportEnabled  bool
	ExportPath     string `validate:"required"`
	ExportLimit    int    `validate:"gte=1,lte=1000"`
	ExportInterval time.Duration

	// Status API.
	HTTPEnabled bool
	Port        string `validate:"numeric"`

	// Reading feed; disabled when MQTTBroker is empty.
	MQTTBroker   string
	MQTTPort     int    `validate:"gte=1,lte=65535"`
	MQTTClientID string `validate:"required_with=MQTTBroker"`
	MQTTTopic    string `validate:"required_with=MQTTBroker"`
}

type locationRules struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
	Timezone  string  `validate:"required"`
}

// Load reads configuration from environment with the recorder's defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	if cfg.LogLevel, err = parseLogLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	cfg.StoreDriver = strings.ToLower(getenvDefault("STORE_DRIVER", "sqlite"))
	cfg.DatabasePath = getenvDefault("DB_PATH", "weather.db")

	if cfg.Location, err = loadLocation(); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "5s"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "1h"); err != nil {
		return nil, err
	}

	if cfg.ExportEnabled, err = getenvBool("EXPORT_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.ExportPath = getenvDefault("EXPORT_PATH", "weather_data.xlsx")
	if cfg.ExportLimit, err = getenvInt("EXPORT_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.ExportInterval, err = getenvDuration("EXPORT_INTERVAL", "60s"); err != nil {
		return nil, err
	}

	if cfg.HTTPEnabled, err = getenvBool("HTTP_ENABLED", true); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	cfg.MQTTBroker = strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if cfg.MQTTPort, err = getenvInt("MQTT_PORT", 1883); err != nil {
		return nil, err
	}
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "weather-recorder")
	cfg.MQTTTopic = getenvDefault("MQTT_TOPIC", "weather/readings")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges; Load calls it, callers building an AppConfig
// by hand should too.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc := locationRules{
		Latitude:  c.Location.Latitude,
		Longitude: c.Location.Longitude,
		Timezone:  c.Location.Timezone,
	}
	if err := validate.Struct(loc); err != nil {
		return fmt.Errorf("invalid location: %w", err)
	}
	if _, err := time.LoadLocation(c.Location.Timezone); err != nil {
		return fmt.Errorf("invalid WEATHER_TIMEZONE %q: %w", c.Location.Timezone, err)
	}
	if c.FetchInterval <= 0 {
		return fmt.Errorf("FETCH_INTERVAL must be positive, got %s", c.FetchInterval)
	}
	if c.ExportInterval <= 0 {
		return fmt.Errorf("EXPORT_INTERVAL must be positive, got %s", c.ExportInterval)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	return nil
}

func loadLocation() (weather.Coordinates, error) {
	lat, err := getenvFloat("WEATHER_LATITUDE", 55.7007)
	if err != nil {
		return weather.Coordinates{}, err
	}
	lon, err := getenvFloat("WEATHER_LONGITUDE", 37.36185)
	if err != nil {
		return weather.Coordinates{}, err
	}
	return weather.Coordinates{
		Latitude:  lat,
		Longitude: lon,
		Timezone:  getenvDefault("WEATHER_TIMEZONE", "Europe/Moscow"),
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
