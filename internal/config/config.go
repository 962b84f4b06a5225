package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/openweathermap-agent/internal/weather"
)

type AppConfig struct {
	Port string

	// AgentID is the id events and logs of the agent are recorded under.
	AgentID string

	// HTTPTimeout bounds every outbound OpenWeatherMap call.
	HTTPTimeout time.Duration

	// CheckInterval controls how often the agent is checked. Zero means the
	// agent is never scheduled and only runs on demand or on receive.
	CheckInterval time.Duration
	CheckTimeout  time.Duration

	// DBPath selects the SQLite store; empty keeps everything in memory.
	DBPath string

	// In-memory store retention.
	StoreMaxHistory int           // max number of events and of logs (0 = unlimited)
	StoreMaxAge     time.Duration // max age of events and logs (0 = unlimited)

	LogLevel string

	// AgentOptions are used when no options have been persisted yet.
	AgentOptions weather.Options
}

// optionEnv maps agent option keys to the environment variables seeding them.
var optionEnv = map[string]string{
	weather.OptionType:                        "OWM_TYPE",
	weather.OptionToken:                       "OWM_TOKEN",
	weather.OptionLimit:                       "OWM_LIMIT",
	weather.OptionLat:                         "OWM_LAT",
	weather.OptionLon:                         "OWM_LON",
	weather.OptionDebug:                       "OWM_DEBUG",
	weather.OptionEmitEvents:                  "OWM_EMIT_EVENTS",
	weather.OptionExpectedReceivePeriodInDays: "OWM_EXPECTED_RECEIVE_PERIOD_IN_DAYS",
}

// Load reads configuration from environment with sensible defaults. A .env
// file in the working directory is loaded first when present.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		Port:     getenvDefault("PORT", "8080"),
		AgentID:  getenvDefault("AGENT_ID", "openweathermap"),
		DBPath:   os.Getenv("DB_PATH"),
		LogLevel: getenvDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.CheckInterval, err = getenvDuration("CHECK_INTERVAL", "0"); err != nil {
		return nil, err
	}
	if cfg.CheckTimeout, err = getenvDuration("CHECK_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "0"); err != nil {
		return nil, err
	}
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 500); err != nil {
		return nil, err
	}

	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: must be positive")
	}
	if cfg.CheckInterval < 0 {
		return nil, fmt.Errorf("invalid CHECK_INTERVAL: must not be negative")
	}

	cfg.AgentOptions = loadAgentOptions()
	return cfg, nil
}

// loadAgentOptions starts from the agent defaults and overrides every option
// whose variable is set.
func loadAgentOptions() weather.Options {
	opts := weather.DefaultOptions()
	for key, env := range optionEnv {
		if v, ok := os.LookupEnv(env); ok {
			opts[key] = v
		}
	}
	return opts
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
