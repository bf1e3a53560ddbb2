// v0
// internal/extremum/extremum.go
package extremum

import (
	"fmt"
	"sort"
	"strings"

	"nrgchamp/powerinsight/internal/model"
)

// ArgMax returns the element with the largest key. Ties keep the element seen
// first. The boolean is false for empty input.
func ArgMax[T any](items []T, key func(T) float64) (T, bool) {
	return pick(items, key, func(candidate, best float64) bool { return candidate > best })
}

// ArgMin returns the element with the smallest key. Ties keep the element
// seen first. The boolean is false for empty input.
func ArgMin[T any](items []T, key func(T) float64) (T, bool) {
	return pick(items, key, func(candidate, best float64) bool { return candidate < best })
}

func pick[T any](items []T, key func(T) float64, better func(candidate, best float64) bool) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	best := items[0]
	bestKey := key(best)
	for _, item := range items[1:] {
		if k := key(item); better(k, bestKey) {
			best, bestKey = item, k
		}
	}
	return best, true
}

// Metric selects which aggregate of a device is compared.
type Metric uint8

const (
	TotalPower Metric = iota
	AveragePower
)

// Value extracts the metric from an aggregate.
func (m Metric) Value(a model.DeviceAggregate) float64 {
	if m == AveragePower {
		return a.AveragePower
	}
	return a.TotalPower
}

func (m Metric) String() string {
	if m == AveragePower {
		return "average"
	}
	return "total"
}

// Dimension selects the attribute devices are grouped by.
type Dimension uint8

const (
	ByCategory Dimension = iota
	ByType
)

func (d Dimension) key(a model.DeviceAggregate) string {
	if d == ByType {
		return a.Type
	}
	return a.Category.String()
}

func (d Dimension) String() string {
	if d == ByType {
		return "type"
	}
	return "category"
}

// ParseDimension resolves "category" or "type".
func ParseDimension(raw string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "category":
		return ByCategory, nil
	case "type":
		return ByType, nil
	}
	return ByCategory, fmt.Errorf("unknown grouping %q", raw)
}

// Group is one chart-ready bucket of device aggregates.
type Group struct {
	Name   string        `json:"name"`
	Total  float64       `json:"total"`
	Series []model.Point `json:"series"`
	// DeviceIDs lines up with Series.
	DeviceIDs []int64 `json:"device_ids"`
}

// GroupBy partitions aggregates by the dimension and orders the groups by the
// sum of their members' metric, largest first. Groups with equal sums keep
// the order in which their first member was seen. Members keep input order.
func GroupBy(aggs []model.DeviceAggregate, dim Dimension, metric Metric) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, a := range aggs {
		name := dim.key(a)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		v := metric.Value(a)
		groups[i].Total += v
		groups[i].Series = append(groups[i].Series, model.Point{Label: a.Name, Value: v})
		groups[i].DeviceIDs = append(groups[i].DeviceIDs, a.DeviceID)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Total > groups[j].Total
	})
	return groups
}
