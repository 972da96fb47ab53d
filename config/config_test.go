package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ADDR", "POSTGRES_DSN", "REDIS_ADDR", "CHAT_PASSCODE",
		"VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "VAPID_CONTACT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/chat")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Got Addr %q, want :8080", cfg.Addr)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("Got RedisAddr %q, want localhost:6379", cfg.RedisAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Got LogLevel %q, want info", cfg.LogLevel)
	}
}

func TestLoad_missingDSN(t *testing.T) {
	clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("Load() without POSTGRES_DSN returned no error")
	}
}

func TestLoad_vapidKeysSetTogether(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/chat")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with a lone VAPID public key returned no error")
	}

	t.Setenv("VAPID_PRIVATE_KEY", "priv")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.VAPIDPublicKey != "pub" || cfg.VAPIDPrivateKey != "priv" {
		t.Errorf("Got VAPID keys %q/%q", cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	}
}

func TestLoad_overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://db:5432/chat")
	t.Setenv("ADDR", ":9000")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("CHAT_PASSCODE", "1234")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("Got Addr %q, want :9000", cfg.Addr)
	}
	if cfg.RedisAddr != "cache:6379" {
		t.Errorf("Got RedisAddr %q, want cache:6379", cfg.RedisAddr)
	}
	if cfg.DefaultPasscode != "1234" {
		t.Errorf("Got DefaultPasscode %q, want 1234", cfg.DefaultPasscode)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Got LogLevel %q, want debug", cfg.LogLevel)
	}
}
