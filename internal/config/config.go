package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the EduClass service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	JWTSecret         string
	TokenTTL          time.Duration
	AuthLatency       time.Duration
	BatchLatency      time.Duration
	DashboardCacheTTL time.Duration
	StorageNamespace  string
	PersistKey        string
	EventsSubject     string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EDUCLASS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "EduClass API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("auth.latency", "1s")
	v.SetDefault("batch.latency", "1s")
	v.SetDefault("dashboard.cache_ttl", "1m")
	v.SetDefault("storage.namespace", "educlass")
	v.SetDefault("storage.persist_key", "root")
	v.SetDefault("events.subject", "educlass.navigation")

	durations := map[string]*time.Duration{}
	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		StorageNamespace: v.GetString("storage.namespace"),
		PersistKey:       v.GetString("storage.persist_key"),
		EventsSubject:    v.GetString("events.subject"),
	}
	durations["jwt.ttl"] = &cfg.TokenTTL
	durations["auth.latency"] = &cfg.AuthLatency
	durations["batch.latency"] = &cfg.BatchLatency
	durations["dashboard.cache_ttl"] = &cfg.DashboardCacheTTL

	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		*target = parsed
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if strings.TrimSpace(cfg.PersistKey) == "" {
		cfg.PersistKey = "root"
	}

	return cfg, nil
}
