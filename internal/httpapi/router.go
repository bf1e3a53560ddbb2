// v1
// internal/httpapi/router.go
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"nrgchamp/powerinsight/internal/bucket"
	"nrgchamp/powerinsight/internal/catalog"
	"nrgchamp/powerinsight/internal/dashboard"
	"nrgchamp/powerinsight/internal/metrics"
	"nrgchamp/powerinsight/internal/model"
	"nrgchamp/powerinsight/internal/notify"
	"nrgchamp/powerinsight/internal/orchestrator"
	"nrgchamp/powerinsight/internal/state"
)

// Orchestrations is the subset of *orchestrator.Orchestrator served over HTTP.
type Orchestrations interface {
	StartSubmit(ctx context.Context, sub orchestrator.Submission) (orchestrator.Run, error)
	StartBulk(ctx context.Context, start, end time.Time, durationDays int) (orchestrator.Run, error)
	StartEdit(ctx context.Context, deviceID int64, settings model.DeviceSettings) (orchestrator.Run, error)
	Run(id string) (orchestrator.Run, error)
	Runs() []orchestrator.Run
	SetAlertStatus(ctx context.Context, alertID int64, status model.ReadStatus) (string, error)
}

// Dashboard is the subset of *dashboard.Service served over HTTP.
type Dashboard interface {
	Series(ctx context.Context, deviceID int64, mode bucket.Mode) (dashboard.SeriesView, error)
	Energy(ctx context.Context, deviceID int64) (dashboard.EnergyView, error)
	Classify(deviceID int64, power, energyKWh float64) (dashboard.Classification, error)
	Devices(query string) []dashboard.DeviceView
	Statistics(ctx context.Context) (dashboard.Statistics, error)
}

// Deps carries everything the router needs. Metrics, Notifications and
// Catalog may be nil.
type Deps struct {
	Logger        *slog.Logger
	Health        *HealthState
	Orchestrator  Orchestrations
	Dashboard     Dashboard
	Store         *state.Store
	Catalog       *catalog.Catalog
	Notifications *notify.Recorder
	Metrics       *metrics.Metrics
	CORSOrigins   []string
}

// NewRouter wires every route and returns the handler to serve, already
// wrapped with recovery, CORS and access logging.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Health == nil {
		d.Health = NewHealthState()
	}
	h := &api{
		log:     logger.With(slog.String("component", "http")),
		orch:    d.Orchestrator,
		dash:    d.Dashboard,
		store:   d.Store,
		catalog: d.Catalog,
		notes:   d.Notifications,
	}

	r := mux.NewRouter()
	route := func(path, method string, fn http.HandlerFunc) {
		r.Handle(path, d.Metrics.WrapHandler(path, fn)).Methods(method)
	}

	route("/health", http.MethodGet, healthLive)
	route("/health/live", http.MethodGet, healthLive)
	route("/health/ready", http.MethodGet, healthReady(d.Health))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	}

	route("/devices", http.MethodGet, h.listDevices)
	route("/devices/{id:[0-9]+}/consumptions", http.MethodPost, h.submitConsumption)
	route("/devices/{id:[0-9]+}/settings", http.MethodPut, h.editDevice)
	route("/devices/{id:[0-9]+}/series", http.MethodGet, h.series)
	route("/devices/{id:[0-9]+}/energy", http.MethodGet, h.energy)
	route("/devices/{id:[0-9]+}/classify", http.MethodGet, h.classify)
	route("/consumptions/bulk", http.MethodPost, h.submitBulk)

	route("/runs", http.MethodGet, h.listRuns)
	route("/runs/{id}", http.MethodGet, h.getRun)

	route("/alerts", http.MethodGet, h.listAlerts)
	route("/alerts/{id:[0-9]+}/read", http.MethodPut, h.markAlert)

	route("/statistics", http.MethodGet, h.statistics)
	route("/catalog", http.MethodGet, h.listCatalog)
	route("/notifications", http.MethodGet, h.listNotifications)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.Use(withLogging(logger))

	return wrap(r, logger, d.CORSOrigins)
}

func healthLive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func healthReady(health *HealthState) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !health.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
