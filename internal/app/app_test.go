// v0
// internal/app/app_test.go
package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"nrgchamp/powerinsight/internal/config"
	"nrgchamp/powerinsight/internal/dashboard"
)

func fakeDataAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/data/getDevices":
			_, _ = w.Write([]byte(`[{"id":1,"device_name":"Living room TV","device_type":"Television","device_category":"Multimedia"}]`))
		case "/data/getAlerts", "/data/getDeviceAlerts", "/data/getDeviceConsumption":
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, backendURL string) config.Config {
	cfg := config.Defaults()
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.LogFilePath = filepath.Join(t.TempDir(), "logs", "powerinsight.log")
	cfg.BackendURL = backendURL
	cfg.BackendAttempts = 1
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestApplicationServesHydratedDevices(t *testing.T) {
	srv := fakeDataAPI(t)
	a, err := New(testConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	ready := httptest.NewRecorder()
	a.Handler().ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if ready.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready before hydration, got %d", ready.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	a.hydrate(ctx)
	if !a.health.Ready() {
		t.Fatalf("expected ready after hydration")
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices?q=tv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var devices []dashboard.DeviceView
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "Living room TV" {
		t.Fatalf("unexpected devices %+v", devices)
	}
	if devices[0].CustomPowerMax == 0 {
		t.Fatalf("expected catalog defaults applied, got %+v", devices[0].Device)
	}
}

func TestApplicationRunStopsOnCancel(t *testing.T) {
	srv := fakeDataAPI(t)
	a, err := New(testConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if a.health.Ready() {
		t.Fatalf("readiness must drop on shutdown")
	}
}

func TestNewRejectsEmptyListenAddress(t *testing.T) {
	cfg := testConfig(t, "http://localhost:1")
	cfg.ListenAddress = " "
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error")
	}
}
