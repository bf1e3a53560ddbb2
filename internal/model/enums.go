// v0
// internal/model/enums.go
package model

import (
	"fmt"
	"strings"
)

// Category is the closed set of device categories known to the backend.
type Category uint8

const (
	CategoryOther Category = iota
	CategoryMultimedia
	CategoryCooling
	CategoryWashing
	CategoryKitchen
	categoryCount
)

var categoryNames = [...]string{
	CategoryOther:      "Other",
	CategoryMultimedia: "Multimedia",
	CategoryCooling:    "Cooling",
	CategoryWashing:    "Washing",
	CategoryKitchen:    "Kitchen",
}

// Both declarations fail to compile when the table and the enum drift apart.
var (
	_ [len(categoryNames) - int(categoryCount)]struct{}
	_ [int(categoryCount) - len(categoryNames)]struct{}
)

// CategoryCount is the number of categories.
const CategoryCount = int(categoryCount)

// Categories lists every category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := Category(0); c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

func (c Category) String() string {
	if c >= categoryCount {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// ParseCategory resolves a category name case-insensitively. Unknown names
// map to CategoryOther, mirroring how the backend files unrecognised devices.
func ParseCategory(raw string) Category {
	raw = strings.TrimSpace(raw)
	for i, name := range categoryNames {
		if strings.EqualFold(name, raw) {
			return Category(i)
		}
	}
	return CategoryOther
}

func (c Category) MarshalText() ([]byte, error) {
	if c >= categoryCount {
		return nil, fmt.Errorf("unknown category %d", uint8(c))
	}
	return []byte(categoryNames[c]), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	*c = ParseCategory(string(b))
	return nil
}

// AlertType is the severity family of an alert.
type AlertType uint8

const (
	AlertInformation AlertType = iota
	AlertWarning
	AlertCritical
	AlertSystem
	alertTypeCount
)

// alertTypeCodes holds the single-letter wire codes used by the backend.
var alertTypeCodes = [...]string{
	AlertInformation: "I",
	AlertWarning:     "W",
	AlertCritical:    "C",
	AlertSystem:      "S",
}

var alertTypeNames = [...]string{
	AlertInformation: "Information",
	AlertWarning:     "Warning",
	AlertCritical:    "Critical",
	AlertSystem:      "System",
}

var (
	_ [len(alertTypeCodes) - int(alertTypeCount)]struct{}
	_ [int(alertTypeCount) - len(alertTypeCodes)]struct{}
	_ [len(alertTypeNames) - int(alertTypeCount)]struct{}
	_ [int(alertTypeCount) - len(alertTypeNames)]struct{}
)

// AlertTypeCount is the number of alert types.
const AlertTypeCount = int(alertTypeCount)

func (t AlertType) String() string {
	if t >= alertTypeCount {
		return fmt.Sprintf("AlertType(%d)", uint8(t))
	}
	return alertTypeNames[t]
}

// Code returns the backend wire code of the alert type.
func (t AlertType) Code() string {
	if t >= alertTypeCount {
		return ""
	}
	return alertTypeCodes[t]
}

// ParseAlertType accepts either the wire code or the full name.
func ParseAlertType(raw string) (AlertType, error) {
	raw = strings.TrimSpace(raw)
	for i := range alertTypeCodes {
		if strings.EqualFold(alertTypeCodes[i], raw) || strings.EqualFold(alertTypeNames[i], raw) {
			return AlertType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown alert type %q", raw)
}

func (t AlertType) MarshalText() ([]byte, error) {
	if t >= alertTypeCount {
		return nil, fmt.Errorf("unknown alert type %d", uint8(t))
	}
	return []byte(alertTypeCodes[t]), nil
}

func (t *AlertType) UnmarshalText(b []byte) error {
	parsed, err := ParseAlertType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ReadStatus tracks whether the user has acknowledged an alert.
type ReadStatus uint8

const (
	Unread ReadStatus = iota
	Read
	readStatusCount
)

var readStatusCodes = [...]string{
	Unread: "N",
	Read:   "Y",
}

var (
	_ [len(readStatusCodes) - int(readStatusCount)]struct{}
	_ [int(readStatusCount) - len(readStatusCodes)]struct{}
)

// ReadStatusCount is the number of read states.
const ReadStatusCount = int(readStatusCount)

func (s ReadStatus) String() string {
	switch s {
	case Read:
		return "Read"
	case Unread:
		return "Unread"
	}
	return fmt.Sprintf("ReadStatus(%d)", uint8(s))
}

func (s ReadStatus) MarshalText() ([]byte, error) {
	if s >= readStatusCount {
		return nil, fmt.Errorf("unknown read status %d", uint8(s))
	}
	return []byte(readStatusCodes[s]), nil
}

func (s *ReadStatus) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "Y", "READ":
		*s = Read
	case "N", "UNREAD", "":
		*s = Unread
	default:
		return fmt.Errorf("unknown read status %q", string(b))
	}
	return nil
}
