// v0
// internal/energy/energy.go
package energy

import (
	"github.com/shopspring/decimal"

	"nrgchamp/powerinsight/internal/bucket"
	"nrgchamp/powerinsight/internal/model"
)

var thousand = decimal.NewFromInt(1000)

// PeriodTotal is the energy drawn during one consumption period.
type PeriodTotal struct {
	PeriodLabel string  `json:"period"`
	KWh         float64 `json:"kwh_total"`
}

// DayPoint is the cumulative energy of a period as of the end of a day.
type DayPoint struct {
	DayLabel      string  `json:"day"`
	CumulativeKWh float64 `json:"cumulative_kwh"`
}

// PeriodCumulative is the cumulative energy series of one period.
type PeriodCumulative struct {
	PeriodLabel string     `json:"period"`
	Points      []DayPoint `json:"series"`
}

// Totals sums the energy of every period in kWh, rounded to two decimals.
//
// Each reading stands for one hour of draw, so W/1000 is the kWh it
// contributes; sample spacing is not validated. Sums are carried in decimal
// arithmetic so the rounded result does not depend on reading order.
func Totals(readings []model.PowerReading) []PeriodTotal {
	periods := bucket.Partition(readings)
	out := make([]PeriodTotal, 0, len(periods))
	for _, p := range periods {
		sum := decimal.Zero
		for _, r := range p.Readings {
			sum = sum.Add(kwh(r))
		}
		out = append(out, PeriodTotal{PeriodLabel: p.Key, KWh: sum.Round(2).InexactFloat64()})
	}
	return out
}

// Cumulative keeps a running kWh total per period across its calendar days.
// Readings are first folded into per-day totals with days in first-seen
// order; each point is the prefix sum up to and including its day, so a
// period's series never decreases for non-negative inputs even when readings
// revisit an earlier day.
func Cumulative(readings []model.PowerReading) []PeriodCumulative {
	periods := bucket.Partition(readings)
	out := make([]PeriodCumulative, 0, len(periods))
	for _, p := range periods {
		index := make(map[string]int)
		labels := make([]string, 0)
		days := make([]decimal.Decimal, 0)
		for _, r := range p.Readings {
			key := bucket.DayKey(r.Timestamp)
			i, ok := index[key]
			if !ok {
				i = len(days)
				index[key] = i
				labels = append(labels, bucket.DayLabel(r.Timestamp))
				days = append(days, decimal.Zero)
			}
			days[i] = days[i].Add(kwh(r))
		}
		running := decimal.Zero
		points := make([]DayPoint, 0, len(days))
		for i, day := range days {
			running = running.Add(day)
			points = append(points, DayPoint{DayLabel: labels[i], CumulativeKWh: running.Round(2).InexactFloat64()})
		}
		out = append(out, PeriodCumulative{PeriodLabel: p.Key, Points: points})
	}
	return out
}

func kwh(r model.PowerReading) decimal.Decimal {
	return decimal.NewFromFloat(r.PowerWatts).Div(thousand)
}
