// v0
// internal/classify/severity.go
package classify

import (
	"fmt"
	"strings"

	"nrgchamp/powerinsight/internal/model"
)

// Severity orders classification outcomes from least to most alarming.
type Severity uint8

const (
	Info Severity = iota
	Normal
	Warning
	Critical
	severityCount
)

// Display bundles the presentation attributes of a classification outcome.
type Display struct {
	Label    string `json:"label"`
	Icon     string `json:"icon"`
	CSSClass string `json:"css_class"`
	Tooltip  string `json:"tooltip"`
}

var severityDisplay = [...]Display{
	Info:     {Label: "info", Icon: "info", CSSClass: "informational-type", Tooltip: "Your device has informational alerts !"},
	Normal:   {Label: "normal", Icon: "check_circle", CSSClass: "good-type", Tooltip: "Your device looks good !"},
	Warning:  {Label: "warning", Icon: "error", CSSClass: "warning-type", Tooltip: "Your device has warning alerts !"},
	Critical: {Label: "critical", Icon: "cancel", CSSClass: "critical-type", Tooltip: "Your device has critical alerts !"},
}

var (
	_ [len(severityDisplay) - int(severityCount)]struct{}
	_ [int(severityCount) - len(severityDisplay)]struct{}
)

func (s Severity) String() string {
	if s >= severityCount {
		return fmt.Sprintf("Severity(%d)", uint8(s))
	}
	return severityDisplay[s].Label
}

// Display returns the presentation attributes of the severity. Values outside
// the enum fall back to the normal styling.
func (s Severity) Display() Display {
	if s >= severityCount {
		return severityDisplay[Normal]
	}
	return severityDisplay[s]
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSeverity resolves a severity label.
func ParseSeverity(raw string) (Severity, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for i, d := range severityDisplay {
		if d.Label == raw {
			return Severity(i), nil
		}
	}
	return Normal, fmt.Errorf("unknown severity %q", raw)
}

func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

var categoryIcons = [...]string{
	model.CategoryOther:      "device_unknown",
	model.CategoryMultimedia: "devices_other",
	model.CategoryCooling:    "ac_unit",
	model.CategoryWashing:    "local_laundry_service",
	model.CategoryKitchen:    "kitchen",
}

var (
	_ [len(categoryIcons) - model.CategoryCount]struct{}
	_ [model.CategoryCount - len(categoryIcons)]struct{}
)

// CategoryIcon returns the icon shown next to a device category.
func CategoryIcon(c model.Category) string {
	if int(c) >= len(categoryIcons) {
		return categoryIcons[model.CategoryOther]
	}
	return categoryIcons[c]
}

var alertTypeDisplay = [...]Display{
	model.AlertInformation: {Label: "Information", Icon: "info", CSSClass: "informational-type"},
	model.AlertWarning:     {Label: "Warning", Icon: "error", CSSClass: "warning-type"},
	model.AlertCritical:    {Label: "Critical", Icon: "cancel", CSSClass: "critical-type"},
	model.AlertSystem:      {Label: "System", Icon: "settings", CSSClass: "system-type"},
}

var (
	_ [len(alertTypeDisplay) - model.AlertTypeCount]struct{}
	_ [model.AlertTypeCount - len(alertTypeDisplay)]struct{}
)

// AlertTypeDisplay returns the presentation attributes of an alert type.
func AlertTypeDisplay(t model.AlertType) Display {
	if int(t) >= len(alertTypeDisplay) {
		return alertTypeDisplay[model.AlertInformation]
	}
	return alertTypeDisplay[t]
}

var readStatusDisplay = [...]Display{
	model.Unread: {Label: "Unread", Icon: "mark_email_unread", CSSClass: "unread-type"},
	model.Read:   {Label: "Read", Icon: "drafts", CSSClass: "read-type"},
}

var (
	_ [len(readStatusDisplay) - model.ReadStatusCount]struct{}
	_ [model.ReadStatusCount - len(readStatusDisplay)]struct{}
)

// ReadStatusDisplay returns the presentation attributes of a read status.
func ReadStatusDisplay(s model.ReadStatus) Display {
	if int(s) >= len(readStatusDisplay) {
		return readStatusDisplay[model.Unread]
	}
	return readStatusDisplay[s]
}

// alertSeverity maps alert types onto the device status scale. System alerts
// concern the account and never affect a device's status.
var alertSeverity = [...]struct {
	severity Severity
	counts   bool
}{
	model.AlertInformation: {severity: Info, counts: true},
	model.AlertWarning:     {severity: Warning, counts: true},
	model.AlertCritical:    {severity: Critical, counts: true},
	model.AlertSystem:      {severity: Normal, counts: false},
}

var (
	_ [len(alertSeverity) - model.AlertTypeCount]struct{}
	_ [model.AlertTypeCount - len(alertSeverity)]struct{}
)

// DeviceStatus rolls a device's alerts up into the most severe level. A
// device with no counted alerts is normal.
func DeviceStatus(alerts []model.Alert) Severity {
	status := Normal
	seen := false
	for _, a := range alerts {
		if int(a.Type) >= len(alertSeverity) || !alertSeverity[a.Type].counts {
			continue
		}
		s := alertSeverity[a.Type].severity
		if !seen || rank(s) > rank(status) {
			status = s
			seen = true
		}
	}
	return status
}

// rank orders severities for roll-ups; an informational alert outranks the
// absence of alerts but not a warning.
func rank(s Severity) int {
	switch s {
	case Normal:
		return 0
	case Info:
		return 1
	case Warning:
		return 2
	case Critical:
		return 3
	}
	return 0
}
