// v0
// internal/energy/energy_test.go
package energy

import (
	"math/rand"
	"testing"
	"time"

	"nrgchamp/powerinsight/internal/model"
)

func sample(day, hour int, watts float64) model.PowerReading {
	return model.PowerReading{
		ConsumptionID: 1,
		Timestamp:     time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC),
		PowerWatts:    watts,
		PeriodStart:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:     time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestTotalsRoundsToTwoDecimals(t *testing.T) {
	readings := []model.PowerReading{sample(1, 0, 1234), sample(1, 1, 1), sample(2, 0, 5)}
	totals := Totals(readings)
	if len(totals) != 1 {
		t.Fatalf("expected one period, got %d", len(totals))
	}
	if totals[0].KWh != 1.24 {
		t.Fatalf("expected 1.24 kWh, got %v", totals[0].KWh)
	}
}

func TestTotalsIndependentOfOrder(t *testing.T) {
	readings := make([]model.PowerReading, 0, 96)
	for i := 0; i < 96; i++ {
		readings = append(readings, sample(1+i/24, i%24, float64(i)*13.37+0.1))
	}
	want := Totals(readings)[0].KWh

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		shuffled := append([]model.PowerReading(nil), readings...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		if got := Totals(shuffled)[0].KWh; got != want {
			t.Fatalf("round %d: total changed after shuffle: %v != %v", round, got, want)
		}
	}
}

func TestCumulativeIsNonDecreasing(t *testing.T) {
	readings := []model.PowerReading{
		sample(1, 0, 500), sample(1, 1, 0), sample(1, 2, 700),
		sample(2, 0, 0), sample(2, 1, 0),
		sample(3, 0, 2500),
	}
	series := Cumulative(readings)
	if len(series) != 1 {
		t.Fatalf("expected one period, got %d", len(series))
	}
	points := series[0].Points
	if len(points) != 3 {
		t.Fatalf("expected 3 day points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].CumulativeKWh < points[i-1].CumulativeKWh {
			t.Fatalf("series decreased at %d: %+v", i, points)
		}
	}
	if points[0].DayLabel != "Day 1" || points[0].CumulativeKWh != 1.2 {
		t.Fatalf("unexpected first point %+v", points[0])
	}
	if points[1].CumulativeKWh != 1.2 {
		t.Fatalf("idle day should carry the running total, got %+v", points[1])
	}
	if points[2].CumulativeKWh != 3.7 {
		t.Fatalf("unexpected last point %+v", points[2])
	}
}

func TestCumulativeRevisitedDayStaysNonDecreasing(t *testing.T) {
	readings := []model.PowerReading{sample(1, 0, 1000), sample(2, 0, 1000), sample(1, 5, 1000)}
	points := Cumulative(readings)[0].Points
	if len(points) != 2 {
		t.Fatalf("expected 2 day points, got %+v", points)
	}
	if points[0].DayLabel != "Day 1" || points[0].CumulativeKWh != 2 {
		t.Fatalf("expected Day 1 to fold both of its readings, got %+v", points[0])
	}
	if points[1].DayLabel != "Day 2" || points[1].CumulativeKWh != 3 {
		t.Fatalf("expected Day 2 to carry the full total, got %+v", points[1])
	}
}

func TestEmptyInputs(t *testing.T) {
	if got := Totals(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty totals, got %#v", got)
	}
	if got := Cumulative(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty cumulative series, got %#v", got)
	}
}
