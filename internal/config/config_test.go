// v0
// internal/config/config_test.go
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeProps(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "powerinsight.properties")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutPropertiesFile(t *testing.T) {
	t.Setenv("POWERINSIGHT_PROPERTIES_PATH", filepath.Join(t.TempDir(), "missing.properties"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddress != defaultListenAddress || cfg.BackendAttempts != defaultBackendAttempts {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.FeedEnabled || cfg.MQTTBroker != "" || cfg.RedisAddr != "" {
		t.Fatalf("optional integrations must be off by default")
	}
}

func TestEnvOverridesProperties(t *testing.T) {
	path := writeProps(t, "# comment\n"+
		"listen_address=:9000\n"+
		"backend_url=http://data:8000\n"+
		"cache_ttl_ms=1500\n"+
		"log_level=debug\n"+
		"cors_origins=http://a, http://b\n"+
		"unknown_key=ignored\n")
	t.Setenv("POWERINSIGHT_PROPERTIES_PATH", path)
	t.Setenv("POWERINSIGHT_LISTEN_ADDRESS", ":9100")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddress != ":9100" {
		t.Fatalf("env must win, got %q", cfg.ListenAddress)
	}
	if cfg.BackendURL != "http://data:8000" || cfg.CacheTTL != 1500*time.Millisecond {
		t.Fatalf("properties not applied: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected log level %v", cfg.LogLevel)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("expected shared KAFKA_BROKERS fallback, got %v", cfg.KafkaBrokers)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"malformed line":  "listen_address\n",
		"negative millis": "backend_timeout_ms=-5\n",
		"zero attempts":   "backend_attempts=0\n",
		"bad acks":        "feed_acks=3\n",
		"bad partitioner": "feed_partitioner=sticky\n",
		"bad bool":        "feed_enabled=maybe\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("POWERINSIGHT_PROPERTIES_PATH", writeProps(t, body))
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}
}

func TestEnvErrorNamesVariable(t *testing.T) {
	t.Setenv("POWERINSIGHT_PROPERTIES_PATH", filepath.Join(t.TempDir(), "none"))
	t.Setenv("POWERINSIGHT_RUN_HISTORY", "lots")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.HasPrefix(got, "POWERINSIGHT_RUN_HISTORY") {
		t.Fatalf("error should name the variable, got %q", got)
	}
}
