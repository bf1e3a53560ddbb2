// v0
// internal/httpapi/handlers.go
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"nrgchamp/powerinsight/internal/backend"
	"nrgchamp/powerinsight/internal/breaker"
	"nrgchamp/powerinsight/internal/bucket"
	"nrgchamp/powerinsight/internal/catalog"
	"nrgchamp/powerinsight/internal/classify"
	"nrgchamp/powerinsight/internal/dashboard"
	"nrgchamp/powerinsight/internal/model"
	"nrgchamp/powerinsight/internal/notify"
	"nrgchamp/powerinsight/internal/orchestrator"
	"nrgchamp/powerinsight/internal/state"
)

const maxBodyBytes = 1 << 20

var dateLayouts = []string{"2006-01-02", time.RFC3339}

type api struct {
	log     *slog.Logger
	orch    Orchestrations
	dash    Dashboard
	store   *state.Store
	catalog *catalog.Catalog
	notes   *notify.Recorder
}

type errorBody struct {
	Error string `json:"error"`
}

// submissionRequest is the body of both consumption endpoints. Dates accept
// either a plain day or RFC 3339.
type submissionRequest struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DurationDays int    `json:"duration_days"`
}

func (s submissionRequest) dates() (time.Time, time.Time, error) {
	start, err := parseDate(s.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := parseDate(s.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
	}
	return start, end, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("value is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func (h *api) submitConsumption(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req submissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, end, err := req.dates()
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	run, err := h.orch.StartSubmit(r.Context(), orchestrator.Submission{
		DeviceID:     deviceID,
		StartDate:    start,
		EndDate:      end,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (h *api) submitBulk(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, end, err := req.dates()
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	run, err := h.orch.StartBulk(r.Context(), start, end, req.DurationDays)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (h *api) editDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	// Omitted fields keep the stored values so a partial body does not zero them.
	var settings model.DeviceSettings
	if h.store != nil {
		if d, ok := h.store.Device(deviceID); ok {
			settings = model.SettingsOf(d)
		}
	}
	if !h.decode(w, r, &settings) {
		return
	}
	run, err := h.orch.StartEdit(r.Context(), deviceID, settings)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (h *api) listRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Runs())
}

func (h *api) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.orch.Run(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *api) series(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	mode, err := bucket.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	view, err := h.dash.Series(r.Context(), deviceID, mode)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *api) energy(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	view, err := h.dash.Energy(r.Context(), deviceID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *api) classify(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	power, err := parseFloatParam(q.Get("power"))
	if err != nil {
		h.badRequest(w, "power: "+err.Error())
		return
	}
	energyKWh, err := parseFloatParam(q.Get("energy"))
	if err != nil {
		h.badRequest(w, "energy: "+err.Error())
		return
	}
	out, err := h.dash.Classify(deviceID, power, energyKWh)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func parseFloatParam(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return v, nil
}

func (h *api) listDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	devices := h.dash.Devices(q.Get("q"))
	if strings.EqualFold(q.Get("group"), "category") {
		writeJSON(w, http.StatusOK, dashboard.GroupByCategory(devices))
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

type alertView struct {
	model.Alert
	TypeDisplay   classify.Display `json:"type_display"`
	StatusDisplay classify.Display `json:"status_display"`
}

// listAlerts serves the account alerts, or one device's alerts when the
// device query parameter is set. unread=true keeps unread alerts only.
func (h *api) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var alerts []model.Alert
	if raw := q.Get("device"); raw != "" {
		deviceID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.badRequest(w, "invalid device id")
			return
		}
		alerts = h.store.DeviceAlerts(deviceID)
	} else {
		alerts = h.store.Alerts()
	}
	unreadOnly, _ := strconv.ParseBool(q.Get("unread"))
	out := make([]alertView, 0, len(alerts))
	for _, a := range alerts {
		if unreadOnly && a.ReadStatus != model.Unread {
			continue
		}
		out = append(out, alertView{
			Alert:         a,
			TypeDisplay:   classify.AlertTypeDisplay(a.Type),
			StatusDisplay: classify.ReadStatusDisplay(a.ReadStatus),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type alertStatusRequest struct {
	Status model.ReadStatus `json:"status"`
}

func (h *api) markAlert(w http.ResponseWriter, r *http.Request) {
	alertID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req := alertStatusRequest{Status: model.Read}
	if !h.decodeOptional(w, r, &req) {
		return
	}
	msg, err := h.orch.SetAlertStatus(r.Context(), alertID, req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *api) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dash.Statistics(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *api) listCatalog(w http.ResponseWriter, _ *http.Request) {
	if h.catalog == nil {
		writeJSON(w, http.StatusOK, []catalog.Entry{})
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Entries())
}

// listNotifications serves the recent notifications, optionally only those
// of one run.
func (h *api) listNotifications(w http.ResponseWriter, r *http.Request) {
	if h.notes == nil {
		writeJSON(w, http.StatusOK, []notify.Notification{})
		return
	}
	if runID := r.URL.Query().Get("run"); runID != "" {
		writeJSON(w, http.StatusOK, h.notes.ForRun(runID))
		return
	}
	writeJSON(w, http.StatusOK, h.notes.All())
}

func (h *api) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(w, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *api) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		h.log.Warn("request_decode_failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		h.badRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// decodeOptional accepts an empty body and leaves out untouched. Unknown
// fields are rejected.
func (h *api) decodeOptional(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		h.log.Warn("request_decode_failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		h.badRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// fail maps domain and upstream errors onto status codes.
func (h *api) fail(w http.ResponseWriter, err error) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, dashboard.ErrUnknownDevice), errors.Is(err, orchestrator.ErrUnknownRun):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, breaker.ErrOpen):
		h.log.Warn("upstream_unavailable", slog.Any("err", err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "data service unavailable"})
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		writeJSON(w, http.StatusNotFound, errorBody{Error: backend.MessageOf(err, "not found")})
	default:
		h.log.Error("upstream_error", slog.Any("err", err))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: backend.MessageOf(err, "upstream data service error")})
	}
}

func (h *api) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
