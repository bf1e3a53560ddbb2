// v0
// internal/model/model_test.go
package model

import (
	"encoding/json"
	"testing"
)

func TestThresholdEditChanged(t *testing.T) {
	base := Thresholds{PowerAlert: 0, EnergyAlert: 5, PowerMin: 10, PowerMax: 2000}
	cases := []struct {
		name     string
		proposed Thresholds
		want     bool
	}{
		{name: "identical", proposed: base, want: false},
		{name: "power alert", proposed: Thresholds{PowerAlert: 1, EnergyAlert: 5, PowerMin: 10, PowerMax: 2000}, want: true},
		{name: "energy alert", proposed: Thresholds{EnergyAlert: 6, PowerMin: 10, PowerMax: 2000}, want: true},
		{name: "power min", proposed: Thresholds{EnergyAlert: 5, PowerMin: 11, PowerMax: 2000}, want: true},
		{name: "power max", proposed: Thresholds{EnergyAlert: 5, PowerMin: 10, PowerMax: 1999}, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			edit := ThresholdEdit{DeviceID: 1, Previous: base, Proposed: tc.proposed}
			if got := edit.Changed(); got != tc.want {
				t.Fatalf("Changed() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAlertDecodesWireCodes(t *testing.T) {
	payload := []byte(`{"id":7,"device_id":3,"title":"Peak","type":"W","read_status":"N","date":"2024-01-02T10:00:00Z"}`)
	var alert Alert
	if err := json.Unmarshal(payload, &alert); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if alert.Type != AlertWarning {
		t.Fatalf("expected warning type, got %v", alert.Type)
	}
	if alert.ReadStatus != Unread {
		t.Fatalf("expected unread, got %v", alert.ReadStatus)
	}
	if alert.ConsumptionID != nil {
		t.Fatalf("expected nil consumption id, got %v", *alert.ConsumptionID)
	}
}

func TestParseCategoryFallsBackToOther(t *testing.T) {
	if got := ParseCategory("cooling"); got != CategoryCooling {
		t.Fatalf("expected cooling, got %v", got)
	}
	if got := ParseCategory("Garden"); got != CategoryOther {
		t.Fatalf("expected other for unknown category, got %v", got)
	}
	if len(Categories()) != int(categoryCount) {
		t.Fatalf("unexpected category list %v", Categories())
	}
}

func TestDeviceSettingsApply(t *testing.T) {
	dev := Device{ID: 4, Name: "Fridge", CustomPowerMax: 200}
	settings := DeviceSettings{
		Category:   CategoryKitchen,
		Type:       "Fridge",
		Name:       "Kitchen fridge",
		Thresholds: Thresholds{PowerMin: 50, PowerMax: 250, EnergyAlert: 3},
	}
	updated := settings.Apply(dev)
	if updated.ID != 4 || updated.Name != "Kitchen fridge" || updated.CustomPowerMax != 250 {
		t.Fatalf("unexpected device after apply: %+v", updated)
	}
	if dev.CustomPowerMax != 200 {
		t.Fatalf("apply mutated the original device")
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["custom_power_max"] != float64(250) || decoded["device_category"] != "Kitchen" {
		t.Fatalf("unexpected settings payload: %s", raw)
	}
}
