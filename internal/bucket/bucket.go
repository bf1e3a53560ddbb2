// v0
// internal/bucket/bucket.go
package bucket

import (
	"fmt"
	"strings"

	"nrgchamp/powerinsight/internal/model"
)

// Mode selects how readings inside a period are folded into points.
type Mode uint8

const (
	// None emits one point per reading, labelled by day and hour.
	None Mode = iota
	// Average emits one point per calendar day holding the mean of the
	// non-zero readings of that day.
	Average
	// Sum emits one point per calendar day holding the total of the day.
	Sum
)

func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case Average:
		return "average"
	case Sum:
		return "sum"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode resolves a mode name. The empty string selects None.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return None, nil
	case "average", "avg":
		return Average, nil
	case "sum":
		return Sum, nil
	}
	return None, fmt.Errorf("unknown aggregation mode %q", raw)
}

// Bucket turns a flat list of readings into one series per consumption
// period.
//
// Periods appear in the order their first reading was seen. Inside a period:
//   - None: every reading becomes a point labelled "Day <d>, <h>:00"; readings
//     sharing an hour are not collapsed.
//   - Average/Sum: readings are folded per calendar day into a total and a
//     count, labelled "Day <d>". Under Average a reading of exactly 0 W is
//     excluded from both, and the total is divided by the count once all
//     readings are folded. A day without any counted reading reports 0.
//
// Points keep bucket creation order; they are never sorted by label. Empty
// input yields an empty, non-nil slice.
func Bucket(readings []model.PowerReading, mode Mode) []model.AggregatedSeries {
	periods := Partition(readings)
	out := make([]model.AggregatedSeries, 0, len(periods))
	for _, p := range periods {
		series := model.AggregatedSeries{Label: p.Key}
		if mode == None {
			series.Points = hourly(p.Readings)
		} else {
			series.Points = daily(p.Readings, mode)
		}
		out = append(out, series)
	}
	return out
}

func hourly(readings []model.PowerReading) []model.Point {
	points := make([]model.Point, 0, len(readings))
	for _, r := range readings {
		points = append(points, model.Point{Label: HourLabel(r.Timestamp), Value: r.PowerWatts})
	}
	return points
}

type dayBucket struct {
	label string
	total float64
	count int
}

func daily(readings []model.PowerReading, mode Mode) []model.Point {
	index := make(map[string]int)
	buckets := make([]dayBucket, 0)
	for _, r := range readings {
		key := DayKey(r.Timestamp)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, dayBucket{label: DayLabel(r.Timestamp)})
		}
		if mode == Average && r.PowerWatts == 0 {
			continue
		}
		buckets[i].total += r.PowerWatts
		buckets[i].count++
	}

	points := make([]model.Point, 0, len(buckets))
	for _, b := range buckets {
		value := b.total
		if mode == Average {
			value = 0
			if b.count > 0 {
				value = b.total / float64(b.count)
			}
		}
		points = append(points, model.Point{Label: b.label, Value: value})
	}
	return points
}
