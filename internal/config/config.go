// v1
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures the runtime settings of the powerinsight service. Values
// come from defaults, an optional properties file and finally environment
// variables named POWERINSIGHT_<PROPERTY_KEY>.
type Config struct {
	ListenAddress    string
	LogFilePath      string
	LogLevel         slog.Level
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration
	PropertiesPath   string
	CORSOrigins      []string

	// BackendURL is the base URL of the data API.
	BackendURL      string
	Username        string
	BackendTimeout  time.Duration
	BackendAttempts int
	BackendBackoff  time.Duration
	BreakerFailures int
	BreakerReset    time.Duration

	CacheTTL  time.Duration
	RedisAddr string

	FeedEnabled     bool
	KafkaBrokers    []string
	FeedTopic       string
	FeedAcks        int
	FeedPartitioner string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	CatalogPath string
	// RunHistory bounds the orchestration runs kept for GET /runs.
	RunHistory int
	// AnalysisConcurrency caps parallel analysis requests per run; 0 means
	// unbounded.
	AnalysisConcurrency int
	NotificationBuffer  int
}

const (
	envPrefix = "POWERINSIGHT_"

	defaultListenAddress   = ":8090"
	defaultLogFile         = "logs/powerinsight.log"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdown        = 10 * time.Second
	defaultPropsPath       = "powerinsight.properties"
	defaultBackendURL      = "http://localhost:8000"
	defaultUsername        = "default"
	defaultBackendTimeout  = 15 * time.Second
	defaultBackendAttempts = 3
	defaultBackendBackoff  = 200 * time.Millisecond
	defaultBreakerFailures = 5
	defaultBreakerReset    = 30 * time.Second
	defaultCacheTTL        = 5 * time.Minute
	defaultKafkaBrokers    = "kafka:9092"
	defaultFeedTopic       = "powerinsight.events"
	defaultFeedAcks        = -1
	defaultMQTTTopic       = "powerinsight/notifications"
	defaultMQTTClientID    = "powerinsight"
	defaultRunHistory      = 256
	defaultNotifications   = 200
)

// propertyKeys lists every recognised key. Each is also read from the
// environment as POWERINSIGHT_<KEY>.
var propertyKeys = []string{
	"listen_address", "log_path", "log_level",
	"http_read_timeout_ms", "http_write_timeout_ms", "shutdown_timeout_ms",
	"cors_origins",
	"backend_url", "username", "backend_timeout_ms", "backend_attempts", "backend_backoff_ms",
	"breaker_failures", "breaker_reset_ms",
	"cache_ttl_ms", "redis_addr",
	"feed_enabled", "kafka_brokers", "feed_topic", "feed_acks", "feed_partitioner",
	"mqtt_broker", "mqtt_topic", "mqtt_client_id",
	"catalog_path", "run_history", "analysis_concurrency", "notification_buffer",
}

// Load resolves configuration by layering defaults, an optional properties
// file and environment variables. The properties file location can be
// overridden with POWERINSIGHT_PROPERTIES_PATH.
func Load() (Config, error) {
	cfg := Defaults()

	propsPath := strings.TrimSpace(os.Getenv(envPrefix + "PROPERTIES_PATH"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	if err := applyProperties(&cfg, propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ListenAddress:      defaultListenAddress,
		LogFilePath:        filepath.Clean(defaultLogFile),
		LogLevel:           slog.LevelInfo,
		HTTPReadTimeout:    defaultReadTimeout,
		HTTPWriteTimeout:   defaultWriteTimeout,
		ShutdownTimeout:    defaultShutdown,
		BackendURL:         defaultBackendURL,
		Username:           defaultUsername,
		BackendTimeout:     defaultBackendTimeout,
		BackendAttempts:    defaultBackendAttempts,
		BackendBackoff:     defaultBackendBackoff,
		BreakerFailures:    defaultBreakerFailures,
		BreakerReset:       defaultBreakerReset,
		CacheTTL:           defaultCacheTTL,
		KafkaBrokers:       splitAndTrim(defaultKafkaBrokers),
		FeedTopic:          defaultFeedTopic,
		FeedAcks:           defaultFeedAcks,
		FeedPartitioner:    "hash",
		MQTTTopic:          defaultMQTTTopic,
		MQTTClientID:       defaultMQTTClientID,
		RunHistory:         defaultRunHistory,
		NotificationBuffer: defaultNotifications,
	}
}

// Validate checks cross-field constraints once every layer is applied.
func (c Config) Validate() error {
	if c.FeedEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("feed_enabled requires kafka_brokers")
	}
	if c.MQTTBroker != "" && c.MQTTTopic == "" {
		return errors.New("mqtt_broker requires mqtt_topic")
	}
	switch c.FeedPartitioner {
	case "hash", "roundrobin":
	default:
		return fmt.Errorf("unknown feed_partitioner %q", c.FeedPartitioner)
	}
	return nil
}

func applyProperties(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid properties entry on line %d", line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := setProperty(cfg, key, value); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read properties: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	for _, key := range propertyKeys {
		name := envPrefix + strings.ToUpper(key)
		v, ok := lookupEnvTrimmed(name)
		if !ok {
			continue
		}
		if err := setProperty(cfg, key, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, ok := os.LookupEnv(envPrefix + "KAFKA_BROKERS"); !ok {
		if v, ok := lookupEnvTrimmed("KAFKA_BROKERS"); ok {
			if err := setProperty(cfg, "kafka_brokers", v); err != nil {
				return fmt.Errorf("KAFKA_BROKERS: %w", err)
			}
		}
	}
	return nil
}

func setProperty(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "listen_address":
		cfg.ListenAddress, err = nonEmpty(value)
	case "log_path":
		var p string
		if p, err = nonEmpty(value); err == nil {
			cfg.LogFilePath = filepath.Clean(p)
		}
	case "log_level":
		err = cfg.LogLevel.UnmarshalText([]byte(value))
	case "http_read_timeout_ms":
		cfg.HTTPReadTimeout, err = parsePositiveMillis(value)
	case "http_write_timeout_ms":
		cfg.HTTPWriteTimeout, err = parsePositiveMillis(value)
	case "shutdown_timeout_ms":
		cfg.ShutdownTimeout, err = parsePositiveMillis(value)
	case "cors_origins":
		cfg.CORSOrigins = splitAndTrim(value)
	case "backend_url":
		cfg.BackendURL, err = nonEmpty(value)
	case "username":
		cfg.Username, err = nonEmpty(value)
	case "backend_timeout_ms":
		cfg.BackendTimeout, err = parsePositiveMillis(value)
	case "backend_attempts":
		cfg.BackendAttempts, err = parsePositiveInt(value)
	case "backend_backoff_ms":
		cfg.BackendBackoff, err = parsePositiveMillis(value)
	case "breaker_failures":
		cfg.BreakerFailures, err = parsePositiveInt(value)
	case "breaker_reset_ms":
		cfg.BreakerReset, err = parsePositiveMillis(value)
	case "cache_ttl_ms":
		cfg.CacheTTL, err = parsePositiveMillis(value)
	case "redis_addr":
		cfg.RedisAddr = value
	case "feed_enabled":
		cfg.FeedEnabled, err = strconv.ParseBool(value)
	case "kafka_brokers":
		brokers := splitAndTrim(value)
		if len(brokers) == 0 {
			return errors.New("kafka_brokers cannot be empty")
		}
		cfg.KafkaBrokers = brokers
	case "feed_topic":
		cfg.FeedTopic, err = nonEmpty(value)
	case "feed_acks":
		var n int
		if n, err = strconv.Atoi(value); err == nil {
			if n < -1 || n > 1 {
				return errors.New("feed_acks must be -1, 0 or 1")
			}
			cfg.FeedAcks = n
		}
	case "feed_partitioner":
		cfg.FeedPartitioner = strings.ToLower(value)
	case "mqtt_broker":
		cfg.MQTTBroker = value
	case "mqtt_topic":
		cfg.MQTTTopic, err = nonEmpty(value)
	case "mqtt_client_id":
		cfg.MQTTClientID, err = nonEmpty(value)
	case "catalog_path":
		cfg.CatalogPath = value
	case "run_history":
		cfg.RunHistory, err = parsePositiveInt(value)
	case "analysis_concurrency":
		var n int
		if n, err = strconv.Atoi(value); err == nil {
			if n < 0 {
				return errors.New("analysis_concurrency cannot be negative")
			}
			cfg.AnalysisConcurrency = n
		}
	case "notification_buffer":
		cfg.NotificationBuffer, err = parsePositiveInt(value)
	default:
		// Unknown keys are ignored to keep the loader forward-compatible.
	}
	return err
}

func nonEmpty(v string) (string, error) {
	if v == "" {
		return "", errors.New("value cannot be empty")
	}
	return v, nil
}

func lookupEnvTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitAndTrim(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return n, nil
}

func parsePositiveMillis(v string) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return 0, errors.New("value cannot be empty")
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if ms <= 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return time.Duration(ms) * time.Millisecond, nil
}
