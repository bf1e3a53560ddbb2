// v1
// internal/cache/keys.go
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

// DeviceReadingsKey identifies the cached readings of a device.
func DeviceReadingsKey(deviceID int64) string {
	return makeKey("readings", "device", strconv.FormatInt(deviceID, 10))
}

// ConsumptionReadingsKey identifies the cached readings of one consumption.
func ConsumptionReadingsKey(consumptionID int64) string {
	return makeKey("readings", "consumption", strconv.FormatInt(consumptionID, 10))
}

// DeviceTotalsKey identifies the cached per-device totals of a user.
func DeviceTotalsKey(username string) string {
	return makeKey("totals", canonicalUser(username))
}

func canonicalUser(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func makeKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	h := sha1.Sum([]byte(joined))
	return hex.EncodeToString(h[:])
}
