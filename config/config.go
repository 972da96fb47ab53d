// Package config loads service configuration from the environment. The app
// is configured purely by env vars (plus an optional .env file loaded by the
// entrypoint).
package config

import (
	"errors"
	"os"
)

// Config holds everything the server needs to start.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string
	// PostgresDSN is the connection string for the message database.
	PostgresDSN string
	// RedisAddr is the address of the message cache.
	RedisAddr string
	// DefaultPasscode seeds the stored passcode on first read. Optional;
	// without it an unset passcode surfaces as a configuration error.
	DefaultPasscode string
	// VAPID key pair and contact for Web Push. Optional; without them
	// push delivery is disabled.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDContact    string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		Addr:            getenv("ADDR", ":8080"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		DefaultPasscode: os.Getenv("CHAT_PASSCODE"),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDContact:    os.Getenv("VAPID_CONTACT"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.PostgresDSN == "" {
		return errors.New("config: POSTGRES_DSN is required")
	}
	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		return errors.New("config: VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
