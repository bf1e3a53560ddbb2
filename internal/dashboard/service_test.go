// v0
// internal/dashboard/service_test.go
package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"nrgchamp/powerinsight/internal/bucket"
	"nrgchamp/powerinsight/internal/cache"
	"nrgchamp/powerinsight/internal/catalog"
	"nrgchamp/powerinsight/internal/classify"
	"nrgchamp/powerinsight/internal/model"
	"nrgchamp/powerinsight/internal/state"
)

type fakeSource struct {
	readings    map[int64][]model.PowerReading
	totals      []model.DeviceAggregate
	deviceCalls int
	totalsCalls int
	err         error
}

func (f *fakeSource) FetchDeviceReadings(_ context.Context, id int64) ([]model.PowerReading, error) {
	f.deviceCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.readings[id], nil
}

func (f *fakeSource) FetchConsumptionReadings(_ context.Context, id int64) ([]model.PowerReading, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.PowerReading
	for _, rs := range f.readings {
		for _, r := range rs {
			if r.ConsumptionID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeSource) FetchDeviceTotals(context.Context) ([]model.DeviceAggregate, error) {
	f.totalsCalls++
	return f.totals, f.err
}

func day(d, h int) time.Time {
	return time.Date(2024, 3, d, h, 0, 0, 0, time.UTC)
}

func reading(id int64, ts time.Time, w float64) model.PowerReading {
	return model.PowerReading{ConsumptionID: id, Timestamp: ts, PowerWatts: w, PeriodStart: day(1, 0), PeriodEnd: day(2, 0)}
}

func newTestService(t *testing.T, src *fakeSource) (*Service, *state.Store) {
	t.Helper()
	store := state.New()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	svc, err := New(Options{
		Source:   src,
		Store:    store,
		Catalog:  cat,
		Readings: cache.New[[]model.PowerReading](time.Minute, nil),
		Totals:   cache.New[[]model.DeviceAggregate](time.Minute, nil),
		Username: "alice",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc, store
}

func TestSeriesUsesCacheAndClassifiesPeak(t *testing.T) {
	src := &fakeSource{readings: map[int64][]model.PowerReading{
		1: {reading(10, day(1, 0), 100), reading(10, day(1, 1), 2100), reading(10, day(2, 0), 50)},
	}}
	svc, store := newTestService(t, src)
	store.SetDevices([]model.Device{{ID: 1, Name: "AC", Type: "Air Conditioner", Category: model.CategoryCooling}})

	view, err := svc.Series(context.Background(), 1, bucket.Sum)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if view.Peak != 2100 || view.Status.Severity != classify.Critical {
		t.Fatalf("expected critical peak from catalog envelope, got %+v", view)
	}
	if view.AxisMax != 2100*1.1 {
		t.Fatalf("unexpected axis max %v", view.AxisMax)
	}
	if len(view.Series) != 1 || len(view.Series[0].Points) != 2 {
		t.Fatalf("expected one period with two days, got %+v", view.Series)
	}
	if _, err := svc.Series(context.Background(), 1, bucket.None); err != nil {
		t.Fatalf("Series: %v", err)
	}
	if src.deviceCalls != 1 {
		t.Fatalf("expected cached readings, backend called %d times", src.deviceCalls)
	}

	if err := svc.Invalidate(context.Background(), 1); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := svc.Warm(context.Background(), 1); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if src.deviceCalls != 2 {
		t.Fatalf("expected refetch after invalidation, got %d calls", src.deviceCalls)
	}
}

func TestUnknownDevice(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{})
	if _, err := svc.Series(context.Background(), 9, bucket.None); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
	if _, err := svc.Classify(9, 1, 1); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestEnergyClassifiesTotals(t *testing.T) {
	src := &fakeSource{readings: map[int64][]model.PowerReading{
		2: {reading(20, day(1, 0), 1000), reading(20, day(1, 1), 1500)},
	}}
	svc, store := newTestService(t, src)
	store.SetDevices([]model.Device{{ID: 2, Name: "Oven", Type: "Oven", EnergyAlertThreshold: 2}})

	view, err := svc.Energy(context.Background(), 2)
	if err != nil {
		t.Fatalf("Energy: %v", err)
	}
	if len(view.Totals) != 1 || view.Totals[0].KWh != 2.5 {
		t.Fatalf("unexpected totals %+v", view.Totals)
	}
	if view.Totals[0].Class.Severity != classify.Warning {
		t.Fatalf("expected warning for 2.5 kWh against 2 kWh, got %v", view.Totals[0].Class.Severity)
	}
	if len(view.Cumulative) != 1 {
		t.Fatalf("unexpected cumulative %+v", view.Cumulative)
	}
}

func TestClassify(t *testing.T) {
	svc, store := newTestService(t, &fakeSource{})
	store.SetDevices([]model.Device{{ID: 3, CustomPowerMin: 0, CustomPowerMax: 2000}})
	got, err := svc.Classify(3, 1999, 0)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Power.Severity != classify.Warning || got.Energy.Severity != classify.Info {
		t.Fatalf("unexpected classification %+v", got)
	}
}

func TestDevicesFilterAndGroup(t *testing.T) {
	svc, store := newTestService(t, &fakeSource{})
	store.SetDevices([]model.Device{
		{ID: 1, Name: "Living room TV", Type: "Television", Category: model.CategoryMultimedia},
		{ID: 2, Name: "Fridge", Type: "Refrigerator", Category: model.CategoryCooling},
		{ID: 3, Name: "Bedroom AC", Type: "Air Conditioner", Category: model.CategoryCooling},
	})
	store.SetDeviceAlerts(2, []model.Alert{{ID: 1, DeviceID: 2, Type: model.AlertCritical}})

	if got := svc.Devices("ROOM"); len(got) != 2 {
		t.Fatalf("expected two name matches, got %d", len(got))
	}
	if got := svc.Devices("refrig"); len(got) != 1 || got[0].Status != classify.Critical {
		t.Fatalf("expected critical fridge by type match, got %+v", got)
	}
	groups := GroupByCategory(svc.Devices(""))
	if len(groups) != 2 || groups[0].Category != model.CategoryMultimedia || len(groups[1].Devices) != 2 {
		t.Fatalf("unexpected groups %+v", groups)
	}
}

func TestStatisticsPicksExtremes(t *testing.T) {
	src := &fakeSource{
		readings: map[int64][]model.PowerReading{
			1: {reading(1, day(1, 0), 10)},
			2: {reading(2, day(1, 0), 20)},
		},
		totals: []model.DeviceAggregate{
			{DeviceID: 1, Name: "A", Category: model.CategoryKitchen, Type: "Oven", TotalPower: 5},
			{DeviceID: 2, Name: "B", Category: model.CategoryKitchen, Type: "Kettle", TotalPower: 9},
			{DeviceID: 3, Name: "C", Category: model.CategoryCooling, Type: "Fan", TotalPower: 9},
		},
	}
	svc, _ := newTestService(t, src)
	st, err := svc.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st.Highest == nil || st.Highest.Device.DeviceID != 2 {
		t.Fatalf("expected first of tied maxima, got %+v", st.Highest)
	}
	if st.Lowest == nil || st.Lowest.Device.DeviceID != 1 || len(st.Lowest.Series) != 1 {
		t.Fatalf("unexpected lowest %+v", st.Lowest)
	}
	if len(st.TotalByCategory) != 2 || st.TotalByCategory[0].Name != "Kitchen" {
		t.Fatalf("unexpected category groups %+v", st.TotalByCategory)
	}
	if _, err := svc.Statistics(context.Background()); err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if src.totalsCalls != 1 {
		t.Fatalf("expected cached totals, got %d calls", src.totalsCalls)
	}
}
