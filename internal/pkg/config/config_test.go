package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient(context.Background(), envconfig.MapLookuper(map[string]string{
		"SESSION_SECRET": "s3cret",
		"SESSION_PATH":   "/tmp/tlobni/session",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.API.URL != "http://localhost:8080/api" {
		t.Errorf("API_URL default = %q", cfg.API.URL)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Errorf("API_TIMEOUT default = %v", cfg.API.Timeout)
	}
	if cfg.API.SessionCookie != "connect.sid" {
		t.Errorf("API_SESSION_COOKIE default = %q", cfg.API.SessionCookie)
	}
	if cfg.Session.Backend != BackendFile || cfg.Session.DeviceID != "default" {
		t.Errorf("unexpected session defaults %+v", cfg.Session)
	}
	if cfg.CacheStaleAfter != 5*time.Minute {
		t.Errorf("CACHE_STALE_AFTER default = %v", cfg.CacheStaleAfter)
	}
}

func TestLoadClient_Overrides(t *testing.T) {
	cfg, err := LoadClient(context.Background(), envconfig.MapLookuper(map[string]string{
		"API_URL":         "https://api.tlobni.com/api",
		"API_TIMEOUT":     "3s",
		"SESSION_BACKEND": "redis",
		"REDIS_ADDR":      "redis:6379",
		"REDIS_DB":        "2",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.URL != "https://api.tlobni.com/api" || cfg.API.Timeout != 3*time.Second {
		t.Errorf("unexpected api config %+v", cfg.API)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
}

func TestLoadClient_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"file backend without secret", map[string]string{"SESSION_PATH": "/tmp/x"}},
		{"unknown backend", map[string]string{"SESSION_BACKEND": "keychain"}},
		{"bad duration", map[string]string{"SESSION_BACKEND": "memory", "API_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadClient(context.Background(), envconfig.MapLookuper(tt.env)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadServer(t *testing.T) {
	if _, err := LoadServer(context.Background(), envconfig.MapLookuper(nil)); err == nil {
		t.Fatalf("expected missing SESSION_SECRET to fail")
	}

	cfg, err := LoadServer(context.Background(), envconfig.MapLookuper(map[string]string{
		"SESSION_SECRET": "s3cret",
		"STORAGE":        "mongo",
		"SESSIONS":       "redis",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.SessionCookie != "connect.sid" || cfg.SessionTTL != 24*time.Hour {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Mongo.Database != "tlobni" || cfg.NotifyWorkers != 4 {
		t.Errorf("unexpected defaults %+v", cfg)
	}

	if _, err := LoadServer(context.Background(), envconfig.MapLookuper(map[string]string{
		"SESSION_SECRET": "s3cret",
		"STORAGE":        "postgres",
	})); err == nil {
		t.Fatalf("expected unknown storage to fail")
	}
}
