// v1
// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"nrgchamp/powerinsight/internal/backend"
	"nrgchamp/powerinsight/internal/breaker"
	"nrgchamp/powerinsight/internal/cache"
	"nrgchamp/powerinsight/internal/catalog"
	"nrgchamp/powerinsight/internal/config"
	"nrgchamp/powerinsight/internal/dashboard"
	"nrgchamp/powerinsight/internal/feed"
	"nrgchamp/powerinsight/internal/httpapi"
	"nrgchamp/powerinsight/internal/metrics"
	"nrgchamp/powerinsight/internal/model"
	"nrgchamp/powerinsight/internal/notify"
	"nrgchamp/powerinsight/internal/orchestrator"
	"nrgchamp/powerinsight/internal/state"
)

const (
	hydrateRetryEvery = 5 * time.Second
	breakerPollEvery  = 5 * time.Second
	redisDialTimeout  = 5 * time.Second
)

// Application wires configuration, logging, the data API client, caches,
// the orchestrator and the HTTP surface, and owns graceful shutdown.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	logFile *os.File
	server  *http.Server
	health  *httpapi.HealthState
	metrics *metrics.Metrics

	store       *state.Store
	orch        *orchestrator.Orchestrator
	feed        *feed.Publisher
	mqtt        *notify.MQTT
	redis       *redis.Client
	breakers    []*breaker.Breaker
	unsubscribe func()
}

// New builds a fully wired instance. Optional integrations (Redis, Kafka
// feed, MQTT notifications) are only dialled when configured.
func New(cfg config.Config) (*Application, error) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return nil, errors.New("listen address cannot be empty")
	}
	logPath := filepath.Clean(cfg.LogFilePath)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	lf, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	a := &Application{
		cfg:     cfg,
		logger:  newLogger(lf, cfg.LogLevel),
		logFile: lf,
		health:  httpapi.NewHealthState(),
		metrics: metrics.New(),
		store:   state.New(),
	}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) wire() error {
	cfg, logger, m := a.cfg, a.logger, a.metrics

	backendBrk, err := breaker.New("backend", breaker.Config{
		MaxFailures:      cfg.BreakerFailures,
		ResetTimeout:     cfg.BreakerReset,
		SuccessesToClose: 1,
	}, logger.With(slog.String("component", "backend_breaker")))
	if err != nil {
		return fmt.Errorf("backend breaker: %w", err)
	}
	a.breakers = append(a.breakers, backendBrk)

	client, err := backend.New(backend.Options{
		BaseURL:  cfg.BackendURL,
		Username: cfg.Username,
		HTTP:     breaker.NewHTTPClient(backendBrk, &http.Client{Timeout: cfg.BackendTimeout}),
		Write:    &http.Client{Timeout: cfg.BackendTimeout},
		Retry:    breaker.Retry{Attempts: cfg.BackendAttempts, Backoff: cfg.BackendBackoff, Timeout: cfg.BackendTimeout},
		Logger:   logger.With(slog.String("component", "backend_client")),
		Observer: m,
	})
	if err != nil {
		return fmt.Errorf("backend client init: %w", err)
	}
	logger.Info("backend_client_config",
		slog.String("base_url", cfg.BackendURL),
		slog.String("username", cfg.Username),
		slog.Duration("timeout", cfg.BackendTimeout),
		slog.Int("attempts", cfg.BackendAttempts),
	)

	readings, totals, err := a.caches()
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("catalog init: %w", err)
	}

	dash, err := dashboard.New(dashboard.Options{
		Source:   client,
		Store:    a.store,
		Catalog:  cat,
		Readings: readings,
		Totals:   totals,
		Username: cfg.Username,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("dashboard init: %w", err)
	}

	recorder := notify.NewRecorder(cfg.NotificationBuffer)
	notifiers := notify.Multi{notify.Log{Logger: logger}, recorder}
	if cfg.MQTTBroker != "" {
		mq, err := notify.DialMQTT(notify.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, logger.With(slog.String("component", "mqtt_notifier")))
		if err != nil {
			logger.Warn("mqtt_notifier_unavailable", slog.String("broker", cfg.MQTTBroker), slog.Any("err", err))
		} else {
			a.mqtt = mq
			notifiers = append(notifiers, mq)
		}
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Backend:       client,
		Store:         a.store,
		Series:        dash,
		Notifier:      notifiers,
		Recorder:      m,
		Logger:        logger,
		History:       cfg.RunHistory,
		AnalysisLimit: cfg.AnalysisConcurrency,
	})
	if err != nil {
		return fmt.Errorf("orchestrator init: %w", err)
	}
	a.orch = orch

	var feedBrk *breaker.Breaker
	if cfg.FeedEnabled {
		feedBrk, err = breaker.New("feed", breaker.Config{
			MaxFailures:      cfg.BreakerFailures,
			ResetTimeout:     cfg.BreakerReset,
			SuccessesToClose: 1,
		}, logger.With(slog.String("component", "feed_breaker")))
		if err != nil {
			return fmt.Errorf("feed breaker: %w", err)
		}
		a.breakers = append(a.breakers, feedBrk)
	}
	pub, err := feed.NewPublisher(feed.Config{
		Enabled:     cfg.FeedEnabled,
		Topic:       cfg.FeedTopic,
		Brokers:     cfg.KafkaBrokers,
		Acks:        cfg.FeedAcks,
		Partitioner: feed.Partitioner(cfg.FeedPartitioner),
	}, feedBrk, m, logger.With(slog.String("component", "feed_publisher")))
	if err != nil {
		return fmt.Errorf("feed publisher init: %w", err)
	}
	a.feed = pub

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:        logger,
		Health:        a.health,
		Orchestrator:  orch,
		Dashboard:     dash,
		Store:         a.store,
		Catalog:       cat,
		Notifications: recorder,
		Metrics:       m,
		CORSOrigins:   cfg.CORSOrigins,
	})
	a.server = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPWriteTimeout,
	}
	return nil
}

// caches builds the reading and totals stores: process-local, layered over
// Redis when an address is configured.
func (a *Application) caches() (cache.Store[[]model.PowerReading], cache.Store[[]model.DeviceAggregate], error) {
	ttl := a.cfg.CacheTTL
	if a.cfg.RedisAddr == "" {
		return cache.New[[]model.PowerReading](ttl, a.metrics), cache.New[[]model.DeviceAggregate](ttl, a.metrics), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	rc, err := cache.NewRedisClient(ctx, a.cfg.RedisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("redis init: %w", err)
	}
	a.redis = rc
	a.logger.Info("redis_cache_enabled", slog.String("addr", a.cfg.RedisAddr), slog.Duration("ttl", ttl))
	return cache.Layered[[]model.PowerReading]{
			Local:  cache.New[[]model.PowerReading](ttl, nil),
			Shared: cache.NewRedis[[]model.PowerReading](rc, "powerinsight:readings", ttl, nil),
			Obs:    a.metrics,
		}, cache.Layered[[]model.DeviceAggregate]{
			Local:  cache.New[[]model.DeviceAggregate](ttl, nil),
			Shared: cache.NewRedis[[]model.DeviceAggregate](rc, "powerinsight:totals", ttl, nil),
			Obs:    a.metrics,
		}, nil
}

func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP until ctx is cancelled or the server fails. Readiness is
// raised once the store has been hydrated from the data API.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.feed.Start(ctx); err != nil {
		return fmt.Errorf("start feed publisher: %w", err)
	}
	a.unsubscribe = a.feed.Attach(a.store)

	go a.hydrate(ctx)
	go a.watchBreakers(ctx)

	httpCh := make(chan error, 1)
	go func() {
		a.logger.Info("http_server_listen", slog.String("address", a.cfg.ListenAddress))
		httpCh <- a.server.ListenAndServe()
	}()

	var httpErr error
	select {
	case err := <-httpCh:
		httpCh = nil
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http_server_error", slog.Any("err", err))
			httpErr = err
		}
	case <-ctx.Done():
		a.logger.Info("shutdown_signal")
	}
	cancel()
	return errors.Join(httpErr, a.shutdown(httpCh))
}

func (a *Application) shutdown(httpCh <-chan error) error {
	a.health.SetReady(false)
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("server_shutdown_failed", slog.Any("err", err))
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	if httpCh != nil {
		if err := <-httpCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if err := a.orch.Drain(ctx); err != nil {
		a.logger.Warn("orchestrations_abandoned", slog.Int("running", countRunning(a.orch.Runs())), slog.Any("err", err))
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if err := a.feed.Stop(ctx); err != nil {
		a.logger.Error("feed_stop_failed", slog.Any("err", err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		a.logger.Info("shutdown_complete")
	}
	return errors.Join(errs...)
}

func countRunning(runs []orchestrator.Run) int {
	n := 0
	for _, r := range runs {
		if !r.Phase.Terminal() {
			n++
		}
	}
	return n
}

// hydrate loads the store, retrying until it succeeds or ctx ends.
func (a *Application) hydrate(ctx context.Context) {
	ticker := time.NewTicker(hydrateRetryEvery)
	defer ticker.Stop()
	for {
		err := a.orch.Hydrate(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			a.health.SetReady(true)
			return
		}
		a.logger.Warn("hydrate_failed", slog.Any("err", err))
		if len(a.store.Devices()) > 0 {
			// Devices are known; per-device gaps are filled by later refreshes.
			a.health.SetReady(true)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Application) watchBreakers(ctx context.Context) {
	ticker := time.NewTicker(breakerPollEvery)
	defer ticker.Stop()
	for {
		for _, b := range a.breakers {
			a.metrics.SetCircuitBreakerState(b.Name(), float64(b.State()))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases the resources owned by the application.
func (a *Application) Close() error {
	var errs []error
	if a.mqtt != nil {
		a.mqtt.Close()
		a.mqtt = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
		a.logFile = nil
	}
	return errors.Join(errs...)
}
