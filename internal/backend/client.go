// v0
// internal/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nrgchamp/powerinsight/internal/breaker"
	"nrgchamp/powerinsight/internal/model"
)

// Doer is the subset of http.Client used by the client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer is told about every request attempt.
type Observer interface {
	BackendRequest(operation string, duration time.Duration, err error)
}

// Options tunes a Client.
type Options struct {
	BaseURL  string
	Username string
	HTTP     Doer
	// Write sends ingestion, analysis and update requests. It defaults to a
	// plain http.Client so writes never pass through a read breaker.
	Write Doer
	// Retry applies to idempotent reads only.
	Retry    breaker.Retry
	Logger   *slog.Logger
	Observer Observer
}

// Client talks to the energy data API.
type Client struct {
	base     string
	username string
	h        Doer
	w        Doer
	retry    breaker.Retry
	logger   *slog.Logger
	obs      Observer
}

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// New validates the options and builds a client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend base url cannot be empty")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	h := opts.HTTP
	if h == nil {
		h = &http.Client{Timeout: 10 * time.Second}
	}
	w := opts.Write
	if w == nil {
		w = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{base: base, username: opts.Username, h: h, w: w, retry: opts.Retry, logger: logger, obs: opts.Observer}, nil
}

// IngestConsumption imports the readings of [start, end] for a device and
// returns the ids of the consumption records created by the backend. A zero
// durationDays is derived from the dates.
func (c *Client) IngestConsumption(ctx context.Context, deviceID int64, start, end time.Time, durationDays int) (Ingestion, error) {
	if durationDays <= 0 {
		durationDays = DurationDays(start, end)
	}
	body := ingestRequest{
		Username:     c.username,
		DeviceID:     deviceID,
		StartDate:    start.Format("2006-01-02"),
		EndDate:      end.Format("2006-01-02"),
		DurationDays: durationDays,
	}
	var out Ingestion
	if err := c.send(ctx, c.w, http.MethodPost, "/data/addConsumptionPowerReadings", nil, body, &out); err != nil {
		return Ingestion{}, fmt.Errorf("ingest consumption for device %d: %w", deviceID, err)
	}
	return out, nil
}

// AnalyzeConsumption triggers the peak analysis of one consumption record.
func (c *Client) AnalyzeConsumption(ctx context.Context, consumptionID int64) (Analysis, error) {
	q := url.Values{}
	q.Set("consumption_id", strconv.FormatInt(consumptionID, 10))
	var out Analysis
	// Analysis writes alerts server side, so it is never retried.
	if err := c.send(ctx, c.w, http.MethodGet, "/data/getPeakPowerAnalysis", q, nil, &out); err != nil {
		return Analysis{}, fmt.Errorf("analyze consumption %d: %w", consumptionID, err)
	}
	if out.ConsumptionID == 0 {
		out.ConsumptionID = consumptionID
	}
	return out, nil
}

// UpdateDevice stores new settings for a device.
func (c *Client) UpdateDevice(ctx context.Context, deviceID int64, settings model.DeviceSettings) (Ack, error) {
	var out Ack
	body := updateDeviceRequest{DeviceID: deviceID, DeviceSettings: settings}
	if err := c.send(ctx, c.w, http.MethodPost, "/data/updateDevice", nil, body, &out); err != nil {
		return Ack{}, fmt.Errorf("update device %d: %w", deviceID, err)
	}
	return out, nil
}

// UpdateAlertStatus marks an alert read or unread.
func (c *Client) UpdateAlertStatus(ctx context.Context, alertID int64, status model.ReadStatus) (Ack, error) {
	var out Ack
	body := updateAlertRequest{AlertID: alertID, ReadStatus: status}
	if err := c.send(ctx, c.w, http.MethodPost, "/data/updateAlert", nil, body, &out); err != nil {
		return Ack{}, fmt.Errorf("update alert %d: %w", alertID, err)
	}
	return out, nil
}

// FetchDeviceReadings returns every reading of a device across its periods.
func (c *Client) FetchDeviceReadings(ctx context.Context, deviceID int64) ([]model.PowerReading, error) {
	var rows []readingRow
	if err := c.get(ctx, "/data/getDevicePowerReadings", idQuery("device_id", deviceID), &rows); err != nil {
		return nil, fmt.Errorf("fetch readings of device %d: %w", deviceID, err)
	}
	return readingsFromRows(rows), nil
}

// FetchConsumptionReadings returns the readings of one consumption period.
func (c *Client) FetchConsumptionReadings(ctx context.Context, consumptionID int64) ([]model.PowerReading, error) {
	var rows []readingRow
	if err := c.get(ctx, "/data/getConsumptionPowerReadings", idQuery("consumption_id", consumptionID), &rows); err != nil {
		return nil, fmt.Errorf("fetch readings of consumption %d: %w", consumptionID, err)
	}
	return readingsFromRows(rows), nil
}

// FetchAlerts returns the alerts of the configured user.
func (c *Client) FetchAlerts(ctx context.Context, unreadOnly bool) ([]model.Alert, error) {
	q := url.Values{}
	q.Set("username", c.username)
	q.Set("unreadAlertsOnly", strconv.FormatBool(unreadOnly))
	var rows []alertRow
	if err := c.get(ctx, "/data/getAlerts", q, &rows); err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}
	return alertsFromRows(rows), nil
}

// FetchDeviceAlerts returns the alerts attached to one device.
func (c *Client) FetchDeviceAlerts(ctx context.Context, deviceID int64) ([]model.Alert, error) {
	var rows []alertRow
	if err := c.get(ctx, "/data/getDeviceAlerts", idQuery("device_id", deviceID), &rows); err != nil {
		return nil, fmt.Errorf("fetch alerts of device %d: %w", deviceID, err)
	}
	return alertsFromRows(rows), nil
}

// FetchDevices returns the devices owned by the configured user.
func (c *Client) FetchDevices(ctx context.Context) ([]model.Device, error) {
	q := url.Values{}
	q.Set("username", c.username)
	var out []model.Device
	if err := c.get(ctx, "/data/getDevices", q, &out); err != nil {
		return nil, fmt.Errorf("fetch devices: %w", err)
	}
	if out == nil {
		out = []model.Device{}
	}
	return out, nil
}

// FetchDevice returns a single device.
func (c *Client) FetchDevice(ctx context.Context, deviceID int64) (model.Device, error) {
	var out model.Device
	if err := c.get(ctx, "/data/getDevice", idQuery("device_id", deviceID), &out); err != nil {
		return model.Device{}, fmt.Errorf("fetch device %d: %w", deviceID, err)
	}
	if out.ID == 0 {
		out.ID = deviceID
	}
	return out, nil
}

// FetchConsumptions returns the consumption periods of a device.
func (c *Client) FetchConsumptions(ctx context.Context, deviceID int64) ([]model.ConsumptionPeriod, error) {
	var rows []consumptionRow
	if err := c.get(ctx, "/data/getDeviceConsumption", idQuery("device_id", deviceID), &rows); err != nil {
		return nil, fmt.Errorf("fetch consumptions of device %d: %w", deviceID, err)
	}
	out := make([]model.ConsumptionPeriod, 0, len(rows))
	for _, row := range rows {
		period := row.toModel()
		if period.DeviceID == 0 {
			period.DeviceID = deviceID
		}
		out = append(out, period)
	}
	return out, nil
}

// FetchDeviceTotals returns the total and average power of every device.
func (c *Client) FetchDeviceTotals(ctx context.Context) ([]model.DeviceAggregate, error) {
	q := url.Values{}
	q.Set("username", c.username)
	var out []model.DeviceAggregate
	if err := c.get(ctx, "/data/getTotalPowerPerDevice", q, &out); err != nil {
		return nil, fmt.Errorf("fetch device totals: %w", err)
	}
	if out == nil {
		out = []model.DeviceAggregate{}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.retry.Do(ctx, nil, retryable, func(ctx context.Context) error {
		return c.send(ctx, c.h, http.MethodGet, path, q, nil, out)
	})
}

func (c *Client) send(ctx context.Context, h Doer, method, path string, q url.Values, body, out any) error {
	started := time.Now()
	err := c.roundTrip(ctx, h, method, path, q, body, out)
	if c.obs != nil {
		c.obs.BackendRequest(strings.TrimPrefix(path, "/data/"), time.Since(started), err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, h Doer, method, path string, q url.Values, body, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := h.Do(req)
	if err != nil {
		c.logger.Warn("backend_request_failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Any("err", err),
		)
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("backend_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode}
		var parsed errorBody
		if err := json.Unmarshal(raw, &parsed); err == nil {
			apiErr.Message = parsed.text()
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func idQuery(key string, id int64) url.Values {
	q := url.Values{}
	q.Set(key, strconv.FormatInt(id, 10))
	return q
}

func readingsFromRows(rows []readingRow) []model.PowerReading {
	out := make([]model.PowerReading, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}

func alertsFromRows(rows []alertRow) []model.Alert {
	out := make([]model.Alert, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}
