// v0
// internal/backend/types.go
package backend

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"nrgchamp/powerinsight/internal/model"
)

// Ingestion is the response of the consumption import endpoint.
type Ingestion struct {
	ConsumptionIDs []int64 `json:"consumption_ids"`
	Message        string  `json:"message"`
}

// Analysis is the peak analysis result of one consumption. Its content is
// opaque to the orchestration beyond success or failure.
type Analysis struct {
	ConsumptionID int64   `json:"consumption_id"`
	PeakPower     float64 `json:"peak_power"`
	PeakEnergy    float64 `json:"peak_energy"`
	Message       string  `json:"message"`
}

// Ack is the generic acknowledgement returned by write endpoints.
type Ack struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

// APIError is returned for any non-2xx response. Message carries the
// upstream detail text when the body provided one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying the call may succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == 429
}

// MessageOf returns the upstream message carried by err, or fallback when
// err holds none.
func MessageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

type errorBody struct {
	Detail  any    `json:"detail"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	switch d := b.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	default:
		return fmt.Sprint(d)
	}
}

// timestampLayouts lists the formats the backend emits for dates and
// timestamps, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// flexTime decodes any of the backend timestamp formats.
type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		f.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			f.Time = ts
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp %q", raw)
}

type readingRow struct {
	ConsumptionID int64    `json:"consumption_id"`
	Timestamp     flexTime `json:"reading_timestamp"`
	Power         float64  `json:"power"`
	StartDate     flexTime `json:"start_date"`
	EndDate       flexTime `json:"end_date"`
}

func (r readingRow) toModel() model.PowerReading {
	return model.PowerReading{
		ConsumptionID: r.ConsumptionID,
		Timestamp:     r.Timestamp.Time,
		PowerWatts:    r.Power,
		PeriodStart:   r.StartDate.Time,
		PeriodEnd:     r.EndDate.Time,
	}
}

type consumptionRow struct {
	ID           int64    `json:"consumption_id"`
	DeviceID     int64    `json:"device_id"`
	StartDate    flexTime `json:"start_date"`
	EndDate      flexTime `json:"end_date"`
	DurationDays int      `json:"duration_days"`
	PeakPower    float64  `json:"peak_power"`
	PeakEnergy   float64  `json:"peak_energy"`
	FilesNames   string   `json:"files_names"`
}

func (r consumptionRow) toModel() model.ConsumptionPeriod {
	var files []string
	for _, name := range strings.Split(r.FilesNames, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			files = append(files, trimmed)
		}
	}
	return model.ConsumptionPeriod{
		ID:              r.ID,
		DeviceID:        r.DeviceID,
		StartDate:       r.StartDate.Time,
		EndDate:         r.EndDate.Time,
		DurationDays:    r.DurationDays,
		PeakPowerWatts:  r.PeakPower,
		PeakEnergyWh:    r.PeakEnergy,
		SourceFileNames: files,
	}
}

type alertRow struct {
	ID            int64            `json:"id"`
	DeviceID      int64            `json:"device_id"`
	ConsumptionID *int64           `json:"consumption_id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Suggestion    string           `json:"suggestion"`
	Type          model.AlertType  `json:"type"`
	ReadStatus    model.ReadStatus `json:"read_status"`
	Date          flexTime         `json:"date"`
}

func (r alertRow) toModel() model.Alert {
	return model.Alert{
		ID:            r.ID,
		DeviceID:      r.DeviceID,
		ConsumptionID: r.ConsumptionID,
		Title:         r.Title,
		Description:   r.Description,
		Suggestion:    r.Suggestion,
		Type:          r.Type,
		ReadStatus:    r.ReadStatus,
		Timestamp:     r.Date.Time,
	}
}

type ingestRequest struct {
	Username     string `json:"username"`
	DeviceID     int64  `json:"device_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DurationDays int    `json:"duration_days"`
}

type updateDeviceRequest struct {
	DeviceID int64 `json:"device_id"`
	model.DeviceSettings
}

type updateAlertRequest struct {
	AlertID    int64            `json:"alert_id"`
	ReadStatus model.ReadStatus `json:"read_status"`
}

// DurationDays returns the inclusive number of calendar days spanned by
// [start, end]: ceil((end − start) / 24h) + 1.
func DurationDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	span := end.Sub(start)
	days := int(span / (24 * time.Hour))
	if span%(24*time.Hour) != 0 {
		days++
	}
	return days + 1
}
