// v0
// internal/dashboard/devices.go
package dashboard

import (
	"strings"

	"nrgchamp/powerinsight/internal/classify"
	"nrgchamp/powerinsight/internal/model"
)

// DeviceView is a device with its alert rollup and category icon.
type DeviceView struct {
	model.Device
	Status        classify.Severity `json:"status"`
	StatusDisplay classify.Display  `json:"status_display"`
	Icon          string            `json:"icon"`
}

// CategoryGroup holds the devices of one category.
type CategoryGroup struct {
	Category model.Category `json:"category"`
	Icon     string         `json:"icon"`
	Devices  []DeviceView   `json:"devices"`
}

// Devices lists the stored devices whose name or type contains query,
// ignoring case. An empty query matches every device.
func (s *Service) Devices(query string) []DeviceView {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]DeviceView, 0)
	for _, d := range s.store.Devices() {
		if q != "" && !strings.Contains(strings.ToLower(d.Name), q) && !strings.Contains(strings.ToLower(d.Type), q) {
			continue
		}
		if s.catalog != nil {
			d = s.catalog.ApplyDefaults(d)
		}
		status := classify.DeviceStatus(s.store.DeviceAlerts(d.ID))
		out = append(out, DeviceView{
			Device:        d,
			Status:        status,
			StatusDisplay: status.Display(),
			Icon:          classify.CategoryIcon(d.Category),
		})
	}
	return out
}

// GroupByCategory buckets devices by category in category order. Empty
// categories are left out.
func GroupByCategory(devices []DeviceView) []CategoryGroup {
	byCat := make(map[model.Category][]DeviceView)
	for _, d := range devices {
		byCat[d.Category] = append(byCat[d.Category], d)
	}
	out := make([]CategoryGroup, 0, len(byCat))
	for _, c := range model.Categories() {
		if members, ok := byCat[c]; ok {
			out = append(out, CategoryGroup{Category: c, Icon: classify.CategoryIcon(c), Devices: members})
		}
	}
	return out
}
