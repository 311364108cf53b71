package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/ingest"
)

const (
	defaultPort            = 3000
	defaultIngestTimeout   = 30 * time.Second
	defaultProviderTimeout = 15 * time.Second
)

// placeholders are template values shipped in example .env files; a store
// configured with one of them is treated as unconfigured.
var placeholders = map[string]struct{}{
	"請填寫您的_project_url":       {},
	"請填寫您的_service_role_key": {},
	"your_database_url":        {},
	"your_service_key":         {},
	"your-project-url":         {},
	"your-service-role-key":    {},
	"changeme":                 {},
}

// Config holds environment-driven settings for the weather relay.
type Config struct {
	Port               int
	WeatherAPIURL      string
	DatabaseURL        string
	DatabaseServiceKey string
	Mode               ingest.Mode
	IngestTimeout      time.Duration
	ProviderTimeout    time.Duration
	RetentionMaxAge    time.Duration
	StaticDir          string
}

// Load reads configuration from environment variables (optionally .env).
// Missing store settings are not an error here; see IngestionEnabled.
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:            defaultPort,
		IngestTimeout:   defaultIngestTimeout,
		ProviderTimeout: defaultProviderTimeout,
	}

	cfg.WeatherAPIURL = strings.TrimSpace(os.Getenv("WEATHER_API_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.DatabaseServiceKey = strings.TrimSpace(os.Getenv("DATABASE_SERVICE_KEY"))
	cfg.StaticDir = strings.TrimSpace(os.Getenv("STATIC_DIR"))

	if portStr := strings.TrimSpace(os.Getenv("PORT")); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	}

	mode, err := ingest.ParseMode(os.Getenv("INGEST_MODE"))
	if err != nil {
		return cfg, fmt.Errorf("invalid INGEST_MODE: %w", err)
	}
	cfg.Mode = mode

	if cfg.IngestTimeout, err = durationEnv("INGEST_TIMEOUT", cfg.IngestTimeout); err != nil {
		return cfg, err
	}
	if cfg.ProviderTimeout, err = durationEnv("PROVIDER_TIMEOUT", cfg.ProviderTimeout); err != nil {
		return cfg, err
	}
	if cfg.RetentionMaxAge, err = durationEnv("RETENTION_MAX_AGE", 0); err != nil {
		return cfg, err
	}
	if cfg.RetentionMaxAge < 0 {
		return cfg, fmt.Errorf("invalid RETENTION_MAX_AGE: must not be negative")
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// StoreConfigured reports whether the store URL and credential are present
// and are not template placeholders.
func (c Config) StoreConfigured() bool {
	return isSet(c.DatabaseURL) && isSet(c.DatabaseServiceKey)
}

// IngestionEnabled is the startup gate: it reports whether the periodic task
// may run and, when it may not, why.
func (c Config) IngestionEnabled() (bool, string) {
	if !c.StoreConfigured() {
		return false, "DATABASE_URL or DATABASE_SERVICE_KEY is missing or still a placeholder"
	}
	if c.Mode == ingest.ModeFetch && c.WeatherAPIURL == "" {
		return false, "WEATHER_API_URL is required in fetch mode"
	}
	return true, ""
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func isSet(v string) bool {
	if v == "" {
		return false
	}
	_, placeholder := placeholders[strings.ToLower(v)]
	return !placeholder
}
