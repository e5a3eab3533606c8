package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the shareme server.
type Config struct {
	DBPath        string
	ServerPort    int
	LogLevel      string
	SentryDSN     string
	Environment   string
	BaseURL       string
	ShutdownGrace time.Duration

	SessionSecret string
	SessionTTL    time.Duration
	BotSecret     string
	LoginTokenTTL time.Duration

	StoreTimeout  time.Duration
	SlugStrategy  string
	ReservedSlugs []string

	RateLimit RateLimitConfig
}

// RateLimitConfig configures the per-client token bucket in front of the HTTP surface.
type RateLimitConfig struct {
	Burst             int
	RequestsPerSecond float64
	ClientTTL         time.Duration
}

// Slug strategies accepted by SLUG_STRATEGY.
const (
	SlugStrategyRandom = "random"
	SlugStrategyTitle  = "title"
)

const (
	defaultDBPath        = "./data/shareme.db"
	defaultServerPort    = 8080
	defaultLogLevel      = "info"
	defaultEnvironment   = "development"
	defaultBaseURL       = "http://localhost:8080"
	defaultShutdownGrace = 10 * time.Second
	defaultSessionTTL    = 7 * 24 * time.Hour
	defaultLoginTokenTTL = 24 * time.Hour
	defaultStoreTimeout  = 3 * time.Second
	defaultRateBurst     = 30
	defaultRateRPS       = 5
	defaultRateTTL       = 10 * time.Minute
	developmentSecret    = "shareme-development-session-secret"
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnv("ENV", defaultEnvironment),
		BaseURL:       strings.TrimRight(getEnv("BASE_URL", defaultBaseURL), "/"),
		ShutdownGrace: defaultShutdownGrace,
		SessionSecret: os.Getenv("SESSION_SECRET"),
		BotSecret:     os.Getenv("BOT_SECRET"),
		SlugStrategy:  strings.ToLower(getEnv("SLUG_STRATEGY", SlugStrategyRandom)),
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	durations := []struct {
		key      string
		fallback time.Duration
		target   *time.Duration
	}{
		{"SESSION_TTL", defaultSessionTTL, &cfg.SessionTTL},
		{"LOGIN_TOKEN_TTL", defaultLoginTokenTTL, &cfg.LoginTokenTTL},
		{"STORE_TIMEOUT", defaultStoreTimeout, &cfg.StoreTimeout},
		{"RATE_LIMIT_TTL", defaultRateTTL, &cfg.RateLimit.ClientTTL},
	}
	for _, item := range durations {
		value, err := getDuration(item.key, item.fallback)
		if err != nil {
			return nil, err
		}
		*item.target = value
	}

	burstValue := getEnv("RATE_LIMIT_BURST", strconv.Itoa(defaultRateBurst))
	burst, err := strconv.Atoi(burstValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid RATE_LIMIT_BURST value: %s", burstValue)
	}
	cfg.RateLimit.Burst = burst

	rpsValue := getEnv("RATE_LIMIT_RPS", strconv.Itoa(defaultRateRPS))
	rps, err := strconv.ParseFloat(rpsValue, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid RATE_LIMIT_RPS value: %s", rpsValue)
	}
	cfg.RateLimit.RequestsPerSecond = rps

	if raw := os.Getenv("RESERVED_SLUGS"); raw != "" {
		slugs, err := parseSlugList(raw)
		if err != nil {
			return nil, eris.Wrap(err, "parsing RESERVED_SLUGS")
		}
		cfg.ReservedSlugs = slugs
	}

	switch cfg.SlugStrategy {
	case SlugStrategyRandom, SlugStrategyTitle:
	default:
		return nil, eris.Errorf("invalid SLUG_STRATEGY value: %s", cfg.SlugStrategy)
	}

	if cfg.SessionSecret == "" {
		if cfg.Environment == "production" {
			return nil, eris.New("SESSION_SECRET is required in production")
		}
		cfg.SessionSecret = developmentSecret
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	if value <= 0 {
		return 0, eris.Errorf("%s must be positive, got %s", key, raw)
	}
	return value, nil
}

func parseSlugList(raw string) ([]string, error) {
	// Accept either a JSON array of strings or an object with a `slugs` field.
	var arrayInput []string
	if err := json.Unmarshal([]byte(raw), &arrayInput); err == nil {
		return arrayInput, nil
	}

	var objectInput struct {
		Slugs []string `json:"slugs"`
	}
	if err := json.Unmarshal([]byte(raw), &objectInput); err != nil {
		return nil, eris.Wrap(err, "decoding JSON")
	}

	if len(objectInput.Slugs) == 0 {
		return nil, eris.New("slugs list is empty")
	}

	return objectInput.Slugs, nil
}
