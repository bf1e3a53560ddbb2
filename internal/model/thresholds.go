// v0
// internal/model/thresholds.go
package model

// Thresholds groups the device settings that drive classification.
type Thresholds struct {
	PowerAlert  float64 `json:"power_alert_threshold"`
	EnergyAlert float64 `json:"energy_alert_threshold"`
	PowerMin    float64 `json:"custom_power_min"`
	PowerMax    float64 `json:"custom_power_max"`
}

// Equal compares the two threshold sets field by field.
func (t Thresholds) Equal(other Thresholds) bool {
	return t.PowerAlert == other.PowerAlert &&
		t.EnergyAlert == other.EnergyAlert &&
		t.PowerMin == other.PowerMin &&
		t.PowerMax == other.PowerMax
}

// ThresholdEdit describes a requested change of a device's thresholds.
type ThresholdEdit struct {
	DeviceID int64
	Previous Thresholds
	Proposed Thresholds
}

// Changed reports whether the edit alters any threshold.
func (e ThresholdEdit) Changed() bool {
	return !e.Previous.Equal(e.Proposed)
}

// DeviceSettings is the full payload accepted by the device update endpoint.
type DeviceSettings struct {
	Category       Category   `json:"device_category"`
	Type           string     `json:"device_type"`
	Name           string     `json:"device_name"`
	UsageFrequency string     `json:"usage_frequency"`
	Thresholds
}

// SettingsOf returns the current settings of a device.
func SettingsOf(d Device) DeviceSettings {
	return DeviceSettings{
		Category:       d.Category,
		Type:           d.Type,
		Name:           d.Name,
		UsageFrequency: d.UsageFrequency,
		Thresholds:     d.Thresholds(),
	}
}

// Apply returns a copy of the device with the settings applied.
func (s DeviceSettings) Apply(d Device) Device {
	d.Category = s.Category
	d.Type = s.Type
	d.Name = s.Name
	d.UsageFrequency = s.UsageFrequency
	d.PowerAlertThreshold = s.Thresholds.PowerAlert
	d.EnergyAlertThreshold = s.Thresholds.EnergyAlert
	d.CustomPowerMin = s.Thresholds.PowerMin
	d.CustomPowerMax = s.Thresholds.PowerMax
	return d
}
