// v0
// internal/backend/client_test.go
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"nrgchamp/powerinsight/internal/breaker"
	"nrgchamp/powerinsight/internal/model"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:  srv.URL + "/",
		Username: "maria",
		HTTP:     srv.Client(),
		Write:    srv.Client(),
		Retry:    breaker.Retry{Attempts: 3, Backoff: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestIngestConsumptionSendsPayload(t *testing.T) {
	var got ingestRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/data/addConsumptionPowerReadings" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"consumption_ids":[11,12,13],"message":"Consumption data imported!"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	res, err := client.IngestConsumption(context.Background(), 7, start, end, 0)
	if err != nil {
		t.Fatalf("IngestConsumption returned error: %v", err)
	}
	if len(res.ConsumptionIDs) != 3 || res.ConsumptionIDs[2] != 13 {
		t.Fatalf("unexpected ids %v", res.ConsumptionIDs)
	}
	if res.Message != "Consumption data imported!" {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if got.DeviceID != 7 || got.Username != "maria" || got.StartDate != "2024-01-01" || got.EndDate != "2024-01-03" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.DurationDays != 4 {
		t.Fatalf("expected derived duration 4, got %d", got.DurationDays)
	}
}

func TestAPIErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"No data files found for the given dates"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.IngestConsumption(context.Background(), 1, time.Now(), time.Now(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", apiErr.Status)
	}
	if got := MessageOf(err, "An error occurred!"); got != "No data files found for the given dates" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := MessageOf(errors.New("dial tcp: refused"), "An error occurred!"); got != "An error occurred!" {
		t.Fatalf("expected fallback message, got %q", got)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"consumption_id":3,"reading_timestamp":"2024-01-01T05:00:00","power":120.5,"start_date":"2024-01-01","end_date":"2024-01-02"}]`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	readings, err := client.FetchDeviceReadings(context.Background(), 2)
	if err != nil {
		t.Fatalf("FetchDeviceReadings returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(readings))
	}
	r := readings[0]
	if r.ConsumptionID != 3 || r.PowerWatts != 120.5 || r.Timestamp.Hour() != 5 || r.PeriodEnd.Day() != 2 {
		t.Fatalf("unexpected reading %+v", r)
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Device not found"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	if _, err := client.FetchDevice(context.Background(), 99); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestAnalyzeIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("consumption_id") != "5" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	if _, err := client.AnalyzeConsumption(context.Background(), 5); err == nil {
		t.Fatalf("expected analysis error")
	}
	if calls != 1 {
		t.Fatalf("analysis must not be retried, got %d calls", calls)
	}
}

func TestWritesBypassReadBreaker(t *testing.T) {
	var analyses int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/getPeakPowerAnalysis":
			if atomic.AddInt32(&analyses, 1) <= 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	brk, err := breaker.New("backend", breaker.Config{MaxFailures: 2, ResetTimeout: time.Hour}, nil)
	if err != nil {
		t.Fatalf("new breaker: %v", err)
	}
	client, err := New(Options{
		BaseURL: srv.URL,
		HTTP:    breaker.NewHTTPClient(brk, srv.Client()),
		Write:   srv.Client(),
		Retry:   breaker.Retry{Attempts: 1},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, _ = client.FetchDevices(context.Background())
	}
	if brk.State() != breaker.Open {
		t.Fatalf("expected read breaker open, got %s", brk.State())
	}
	if _, err := client.FetchDevices(context.Background()); !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("reads must fail fast while open, got %v", err)
	}

	failed := 0
	for id := int64(1); id <= 6; id++ {
		if _, err := client.AnalyzeConsumption(context.Background(), id); err != nil {
			if errors.Is(err, breaker.ErrOpen) {
				t.Fatalf("analysis %d rejected by breaker", id)
			}
			failed++
		}
	}
	if got := atomic.LoadInt32(&analyses); got != 6 {
		t.Fatalf("expected every analysis to reach the backend, got %d of 6", got)
	}
	if failed != 2 {
		t.Fatalf("expected 2 failed analyses, got %d", failed)
	}
}

func TestFetchConsumptionsAndAlerts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/getDeviceConsumption", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"consumption_id":4,"start_date":"2024-02-01","end_date":"2024-02-03","duration_days":3,"files_names":"a.csv, b.csv","peak_power":900}]`))
	})
	mux.HandleFunc("/data/getAlerts", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") != "maria" || r.URL.Query().Get("unreadAlertsOnly") != "true" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"id":1,"device_id":4,"title":"High draw","type":"C","read_status":"N","date":"2024-02-02 10:00:00"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv)
	periods, err := client.FetchConsumptions(context.Background(), 4)
	if err != nil {
		t.Fatalf("FetchConsumptions: %v", err)
	}
	if len(periods) != 1 || periods[0].DeviceID != 4 || len(periods[0].SourceFileNames) != 2 || periods[0].SourceFileNames[1] != "b.csv" {
		t.Fatalf("unexpected periods %+v", periods)
	}
	alerts, err := client.FetchAlerts(context.Background(), true)
	if err != nil {
		t.Fatalf("FetchAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Type != model.AlertCritical || alerts[0].Timestamp.Hour() != 10 {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
}

func TestDurationDays(t *testing.T) {
	day := 24 * time.Hour
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		end  time.Time
		want int
	}{
		{end: start, want: 1},
		{end: start.Add(day), want: 2},
		{end: start.Add(day + time.Hour), want: 3},
		{end: start.Add(-day), want: 0},
	}
	for _, tc := range cases {
		if got := DurationDays(start, tc.end); got != tc.want {
			t.Fatalf("DurationDays(%s) = %d, want %d", tc.end, got, tc.want)
		}
	}
}
