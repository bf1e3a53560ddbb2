// v0
// internal/dashboard/statistics.go
package dashboard

import (
	"context"
	"fmt"

	"nrgchamp/powerinsight/internal/bucket"
	"nrgchamp/powerinsight/internal/extremum"
	"nrgchamp/powerinsight/internal/model"
)

// Extreme is the highest or lowest consuming device with its readings.
type Extreme struct {
	Device model.DeviceAggregate     `json:"device"`
	Series []model.AggregatedSeries `json:"series"`
}

// Statistics is the account-wide comparison of devices.
type Statistics struct {
	Devices         []model.DeviceAggregate `json:"devices"`
	TotalByCategory []extremum.Group        `json:"total_by_category"`
	TotalByType     []extremum.Group        `json:"total_by_type"`
	AverageByCat    []extremum.Group        `json:"average_by_category"`
	AverageByType   []extremum.Group        `json:"average_by_type"`
	Highest         *Extreme                `json:"highest,omitempty"`
	Lowest          *Extreme                `json:"lowest,omitempty"`
}

// Statistics groups the per-device totals and loads the readings of the
// highest and lowest consuming devices. Ties go to the first device listed.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	aggs, err := s.deviceTotals(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("device totals: %w", err)
	}
	st := Statistics{
		Devices:         aggs,
		TotalByCategory: extremum.GroupBy(aggs, extremum.ByCategory, extremum.TotalPower),
		TotalByType:     extremum.GroupBy(aggs, extremum.ByType, extremum.TotalPower),
		AverageByCat:    extremum.GroupBy(aggs, extremum.ByCategory, extremum.AveragePower),
		AverageByType:   extremum.GroupBy(aggs, extremum.ByType, extremum.AveragePower),
	}
	total := extremum.TotalPower.Value
	if hi, ok := extremum.ArgMax(aggs, total); ok {
		ext, err := s.extreme(ctx, hi)
		if err != nil {
			return Statistics{}, err
		}
		st.Highest = &ext
	}
	if lo, ok := extremum.ArgMin(aggs, total); ok {
		ext, err := s.extreme(ctx, lo)
		if err != nil {
			return Statistics{}, err
		}
		st.Lowest = &ext
	}
	return st, nil
}

func (s *Service) extreme(ctx context.Context, a model.DeviceAggregate) (Extreme, error) {
	readings, err := s.Readings(ctx, a.DeviceID)
	if err != nil {
		return Extreme{}, fmt.Errorf("readings of device %d: %w", a.DeviceID, err)
	}
	return Extreme{Device: a, Series: bucket.Bucket(readings, bucket.None)}, nil
}
