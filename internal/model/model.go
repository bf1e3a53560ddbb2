// v0
// internal/model/model.go
package model

import "time"

// PowerReading is one hourly power sample reported for a device. The owning
// consumption period bounds travel with the reading so series can be
// partitioned without a second lookup.
type PowerReading struct {
	ConsumptionID int64     `json:"consumption_id"`
	Timestamp     time.Time `json:"timestamp"`
	PowerWatts    float64   `json:"power"`
	PeriodStart   time.Time `json:"start_date"`
	PeriodEnd     time.Time `json:"end_date"`
}

// ConsumptionPeriod represents one imported batch of readings. Peak fields
// are zero until the backend analysis for the period has completed.
type ConsumptionPeriod struct {
	ID              int64     `json:"id"`
	DeviceID        int64     `json:"device_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	DurationDays    int       `json:"duration_days"`
	PeakPowerWatts  float64   `json:"peak_power"`
	PeakEnergyWh    float64   `json:"peak_energy"`
	SourceFileNames []string  `json:"files_names"`
}

// Device carries the operating envelope and the optional user overrides used
// by the classifier. A zero alert threshold means no explicit threshold.
type Device struct {
	ID                   int64    `json:"id"`
	Category             Category `json:"device_category"`
	Type                 string   `json:"device_type"`
	Name                 string   `json:"device_name"`
	CustomPowerMin       float64  `json:"custom_power_min"`
	CustomPowerMax       float64  `json:"custom_power_max"`
	PowerAlertThreshold  float64  `json:"power_alert_threshold"`
	EnergyAlertThreshold float64  `json:"energy_alert_threshold"`
	UsageFrequency       string   `json:"usage_frequency"`
}

// Thresholds returns the subset of device settings whose change invalidates
// previously computed analysis results.
func (d Device) Thresholds() Thresholds {
	return Thresholds{
		PowerAlert:  d.PowerAlertThreshold,
		EnergyAlert: d.EnergyAlertThreshold,
		PowerMin:    d.CustomPowerMin,
		PowerMax:    d.CustomPowerMax,
	}
}

// Alert is a backend generated notice attached to a device or the account.
type Alert struct {
	ID            int64      `json:"id"`
	DeviceID      int64      `json:"device_id"`
	ConsumptionID *int64     `json:"consumption_id,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Suggestion    string     `json:"suggestion"`
	Type          AlertType  `json:"type"`
	ReadStatus    ReadStatus `json:"read_status"`
	Timestamp     time.Time  `json:"date"`
}

// Point is one labelled value of a chart series.
type Point struct {
	Label string  `json:"name"`
	Value float64 `json:"value"`
}

// AggregatedSeries is the chart-ready output of the bucketing functions.
type AggregatedSeries struct {
	Label  string  `json:"name"`
	Points []Point `json:"series"`
}

// DeviceAggregate summarises the readings of one device as reported by the
// backend totals endpoint.
type DeviceAggregate struct {
	DeviceID     int64    `json:"device_id"`
	Name         string   `json:"device_name"`
	Category     Category `json:"device_category"`
	Type         string   `json:"device_type"`
	TotalPower   float64  `json:"total_power"`
	AveragePower float64  `json:"average_power"`
}
