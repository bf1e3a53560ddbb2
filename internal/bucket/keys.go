// v0
// internal/bucket/keys.go
package bucket

import (
	"fmt"
	"time"

	"nrgchamp/powerinsight/internal/model"
)

const dateLayout = "2006-01-02"

// PeriodKey names the consumption period a reading belongs to. Both bounds
// are reduced to their calendar date so readings sharing a period always
// collapse onto the same key regardless of the time-of-day carried by the
// bounds. Readings without period bounds are keyed by consumption id.
func PeriodKey(r model.PowerReading) string {
	if r.PeriodStart.IsZero() && r.PeriodEnd.IsZero() {
		return fmt.Sprintf("Consumption %d", r.ConsumptionID)
	}
	return r.PeriodStart.Format(dateLayout) + " - " + r.PeriodEnd.Format(dateLayout)
}

// DayKey identifies the calendar day of a timestamp. Labels only carry the
// day of month, so the key keeps the full date to keep month boundaries apart.
func DayKey(ts time.Time) string {
	return ts.Format(dateLayout)
}

// DayLabel is the chart label of a day bucket.
func DayLabel(ts time.Time) string {
	return fmt.Sprintf("Day %d", ts.Day())
}

// HourLabel is the chart label of a single reading.
func HourLabel(ts time.Time) string {
	return fmt.Sprintf("Day %d, %d:00", ts.Day(), ts.Hour())
}

// Partition splits readings by period, preserving first-seen period order and
// arrival order inside each period. The input slice is not modified.
func Partition(readings []model.PowerReading) []Period {
	index := make(map[string]int)
	periods := make([]Period, 0)
	for _, r := range readings {
		key := PeriodKey(r)
		i, ok := index[key]
		if !ok {
			i = len(periods)
			index[key] = i
			periods = append(periods, Period{Key: key})
		}
		periods[i].Readings = append(periods[i].Readings, r)
	}
	return periods
}

// Period is one partition produced by Partition.
type Period struct {
	Key      string
	Readings []model.PowerReading
}
