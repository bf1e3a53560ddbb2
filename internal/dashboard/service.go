// v0
// internal/dashboard/service.go
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"nrgchamp/powerinsight/internal/bucket"
	"nrgchamp/powerinsight/internal/cache"
	"nrgchamp/powerinsight/internal/catalog"
	"nrgchamp/powerinsight/internal/classify"
	"nrgchamp/powerinsight/internal/energy"
	"nrgchamp/powerinsight/internal/model"
	"nrgchamp/powerinsight/internal/state"
)

// Source is the read side of the data backend.
type Source interface {
	FetchDeviceReadings(ctx context.Context, deviceID int64) ([]model.PowerReading, error)
	FetchConsumptionReadings(ctx context.Context, consumptionID int64) ([]model.PowerReading, error)
	FetchDeviceTotals(ctx context.Context) ([]model.DeviceAggregate, error)
}

// ErrUnknownDevice is returned when a device is not in the store.
var ErrUnknownDevice = errors.New("unknown device")

// Options wires a Service.
type Options struct {
	Source   Source
	Store    *state.Store
	Catalog  *catalog.Catalog
	Readings cache.Store[[]model.PowerReading]
	Totals   cache.Store[[]model.DeviceAggregate]
	Username string
	Logger   *slog.Logger
}

// Service derives chart series, energy figures and severities from backend
// readings and the shared store.
type Service struct {
	src      Source
	store    *state.Store
	catalog  *catalog.Catalog
	readings cache.Store[[]model.PowerReading]
	totals   cache.Store[[]model.DeviceAggregate]
	username string
	log      *slog.Logger
}

func New(opts Options) (*Service, error) {
	if opts.Source == nil {
		return nil, errors.New("dashboard requires a source")
	}
	if opts.Store == nil {
		return nil, errors.New("dashboard requires a store")
	}
	if opts.Readings == nil || opts.Totals == nil {
		return nil, errors.New("dashboard requires reading and totals caches")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		src:      opts.Source,
		store:    opts.Store,
		catalog:  opts.Catalog,
		readings: opts.Readings,
		totals:   opts.Totals,
		username: opts.Username,
		log:      logger.With(slog.String("component", "dashboard")),
	}, nil
}

// SeriesView is a bucketed reading chart for one device.
type SeriesView struct {
	DeviceID int64                    `json:"device_id"`
	Mode     string                   `json:"mode"`
	Series   []model.AggregatedSeries `json:"series"`
	Peak     float64                  `json:"peak_power"`
	AxisMax  float64                  `json:"axis_max"`
	Status   classify.Result          `json:"peak_class"`
}

// EnergyView is the energy chart for one device.
type EnergyView struct {
	DeviceID   int64                     `json:"device_id"`
	Totals     []PeriodEnergy            `json:"totals"`
	Cumulative []energy.PeriodCumulative `json:"cumulative"`
	AxisMax    float64                   `json:"axis_max"`
}

// PeriodEnergy is a period total with its energy severity.
type PeriodEnergy struct {
	energy.PeriodTotal
	Class classify.Result `json:"class"`
}

// Classification is the severity of a power and an energy value.
type Classification struct {
	DeviceID   int64           `json:"device_id"`
	PowerFloor float64         `json:"power_floor"`
	Power      classify.Result `json:"power"`
	Energy     classify.Result `json:"energy"`
}

// Readings returns the readings of a device, filling the cache on a miss.
// Cache failures fall through to the backend.
func (s *Service) Readings(ctx context.Context, deviceID int64) ([]model.PowerReading, error) {
	key := cache.DeviceReadingsKey(deviceID)
	return cached(ctx, s, s.readings, key, func(ctx context.Context) ([]model.PowerReading, error) {
		return s.src.FetchDeviceReadings(ctx, deviceID)
	})
}

// ConsumptionReadings returns the readings of one consumption record.
func (s *Service) ConsumptionReadings(ctx context.Context, consumptionID int64) ([]model.PowerReading, error) {
	key := cache.ConsumptionReadingsKey(consumptionID)
	return cached(ctx, s, s.readings, key, func(ctx context.Context) ([]model.PowerReading, error) {
		return s.src.FetchConsumptionReadings(ctx, consumptionID)
	})
}

func (s *Service) deviceTotals(ctx context.Context) ([]model.DeviceAggregate, error) {
	return cached(ctx, s, s.totals, cache.DeviceTotalsKey(s.username), s.src.FetchDeviceTotals)
}

func cached[T any](ctx context.Context, s *Service, store cache.Store[T], key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok, err := store.Get(ctx, key); err != nil {
		s.log.Warn("cache_get_err", slog.Any("err", err))
	} else if ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := store.Set(ctx, key, v); err != nil {
		s.log.Warn("cache_set_err", slog.Any("err", err))
	}
	return v, nil
}

// Device returns a stored device with catalog defaults applied to an unset
// operating envelope.
func (s *Service) Device(deviceID int64) (model.Device, error) {
	d, ok := s.store.Device(deviceID)
	if !ok {
		return model.Device{}, fmt.Errorf("device %d: %w", deviceID, ErrUnknownDevice)
	}
	if s.catalog != nil {
		d = s.catalog.ApplyDefaults(d)
	}
	return d, nil
}

// Series buckets the readings of a device.
func (s *Service) Series(ctx context.Context, deviceID int64, mode bucket.Mode) (SeriesView, error) {
	d, err := s.Device(deviceID)
	if err != nil {
		return SeriesView{}, err
	}
	readings, err := s.Readings(ctx, deviceID)
	if err != nil {
		return SeriesView{}, fmt.Errorf("readings of device %d: %w", deviceID, err)
	}
	series := bucket.Bucket(readings, mode)
	peak := 0.0
	for _, r := range readings {
		if r.PowerWatts > peak {
			peak = r.PowerWatts
		}
	}
	return SeriesView{
		DeviceID: deviceID,
		Mode:     mode.String(),
		Series:   series,
		Peak:     peak,
		AxisMax:  classify.PowerAxisMax(peak, d),
		Status:   classify.Power(peak, d),
	}, nil
}

// Energy integrates the readings of a device into kWh per period.
func (s *Service) Energy(ctx context.Context, deviceID int64) (EnergyView, error) {
	d, err := s.Device(deviceID)
	if err != nil {
		return EnergyView{}, err
	}
	readings, err := s.Readings(ctx, deviceID)
	if err != nil {
		return EnergyView{}, fmt.Errorf("readings of device %d: %w", deviceID, err)
	}
	totals := energy.Totals(readings)
	view := EnergyView{
		DeviceID:   deviceID,
		Totals:     make([]PeriodEnergy, 0, len(totals)),
		Cumulative: energy.Cumulative(readings),
	}
	peak := 0.0
	for _, t := range totals {
		view.Totals = append(view.Totals, PeriodEnergy{PeriodTotal: t, Class: classify.Energy(t.KWh, d)})
		if t.KWh > peak {
			peak = t.KWh
		}
	}
	view.AxisMax = classify.EnergyAxisMax(peak, d)
	return view, nil
}

// Classify grades a power and an energy value for a device.
func (s *Service) Classify(deviceID int64, power, energyKWh float64) (Classification, error) {
	d, err := s.Device(deviceID)
	if err != nil {
		return Classification{}, err
	}
	return Classification{
		DeviceID:   deviceID,
		PowerFloor: classify.PowerFloor(d),
		Power:      classify.Power(power, d),
		Energy:     classify.Energy(energyKWh, d),
	}, nil
}

// Invalidate drops every cached series input of a device, including the
// readings of its known consumption records and the account totals.
func (s *Service) Invalidate(ctx context.Context, deviceID int64) error {
	keys := []string{cache.DeviceReadingsKey(deviceID), cache.DeviceTotalsKey(s.username)}
	periods, _ := s.store.Consumptions(deviceID)
	for _, p := range periods {
		keys = append(keys, cache.ConsumptionReadingsKey(p.ID))
	}
	var errs []error
	if err := s.readings.Delete(ctx, keys...); err != nil {
		errs = append(errs, err)
	}
	if err := s.totals.Delete(ctx, cache.DeviceTotalsKey(s.username)); err != nil {
		errs = append(errs, err)
	}
	s.store.InvalidateSeries(deviceID)
	return errors.Join(errs...)
}

// Warm reloads the readings of a device into the cache.
func (s *Service) Warm(ctx context.Context, deviceID int64) error {
	_, err := s.Readings(ctx, deviceID)
	return err
}
