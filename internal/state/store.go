// v0
// internal/state/store.go
package state

import (
	"slices"
	"sync"
	"time"

	"nrgchamp/powerinsight/internal/model"
)

// Kind identifies what an Event reports.
type Kind string

const (
	DevicesUpdated      Kind = "devices_updated"
	DeviceUpdated       Kind = "device_updated"
	AlertsUpdated       Kind = "alerts_updated"
	DeviceAlertsUpdated Kind = "device_alerts_updated"
	DeviceAlertsCleared Kind = "device_alerts_cleared"
	ConsumptionsUpdated Kind = "consumptions_updated"
	SeriesInvalidated   Kind = "series_invalidated"
	RunFinished         Kind = "run_finished"
)

// Event is delivered to subscribers after the store changed or an
// orchestration finished.
type Event struct {
	Kind     Kind      `json:"kind"`
	Version  uint64    `json:"version"`
	DeviceID int64     `json:"device_id,omitempty"`
	RunID    string    `json:"run_id,omitempty"`
	Outcome  string    `json:"outcome,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Snapshot is a point-in-time copy of the store. Callers own the returned
// slices and maps.
type Snapshot struct {
	Version      uint64
	Devices      []model.Device
	Alerts       []model.Alert
	DeviceAlerts map[int64][]model.Alert
	Consumptions map[int64][]model.ConsumptionPeriod
}

// Store holds the device, alert and consumption lists shared by the HTTP
// surface and the orchestrator. The orchestrator is its only writer; readers
// always receive copies.
type Store struct {
	mu           sync.RWMutex
	version      uint64
	devices      []model.Device
	alerts       []model.Alert
	deviceAlerts map[int64][]model.Alert
	consumptions map[int64][]model.ConsumptionPeriod

	subMu  sync.Mutex
	nextID uint64
	subs   map[uint64]func(Event)

	now func() time.Time
}

func New() *Store {
	return &Store{
		deviceAlerts: make(map[int64][]model.Alert),
		consumptions: make(map[int64][]model.ConsumptionPeriod),
		subs:         make(map[uint64]func(Event)),
		now:          time.Now,
	}
}

// Subscribe registers fn for every future event and returns the function
// that removes it. Calling the returned function more than once is a no-op.
// fn runs on the publisher's goroutine and must not block.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Subscribers reports how many subscriptions are active.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

// Publish stamps ev with the current version and time and delivers it to
// every subscriber.
func (s *Store) Publish(ev Event) {
	s.mu.RLock()
	ev.Version = s.version
	s.mu.RUnlock()
	if ev.At.IsZero() {
		ev.At = s.now()
	}

	s.subMu.Lock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Store) mutate(kind Kind, deviceID int64, apply func()) {
	s.mu.Lock()
	apply()
	s.version++
	s.mu.Unlock()
	s.Publish(Event{Kind: kind, DeviceID: deviceID})
}

// SetDevices replaces the device list.
func (s *Store) SetDevices(devices []model.Device) {
	cp := slices.Clone(devices)
	s.mutate(DevicesUpdated, 0, func() { s.devices = cp })
}

// SetDevice inserts or replaces one device, keeping list order.
func (s *Store) SetDevice(d model.Device) {
	s.mutate(DeviceUpdated, d.ID, func() {
		for i := range s.devices {
			if s.devices[i].ID == d.ID {
				s.devices[i] = d
				return
			}
		}
		s.devices = append(s.devices, d)
	})
}

// SetAlerts replaces the account-wide alert list.
func (s *Store) SetAlerts(alerts []model.Alert) {
	cp := slices.Clone(alerts)
	s.mutate(AlertsUpdated, 0, func() { s.alerts = cp })
}

// SetDeviceAlerts replaces the alert list of one device.
func (s *Store) SetDeviceAlerts(deviceID int64, alerts []model.Alert) {
	cp := slices.Clone(alerts)
	s.mutate(DeviceAlertsUpdated, deviceID, func() { s.deviceAlerts[deviceID] = cp })
}

// ClearDeviceAlerts drops the alerts of a device from both the device list
// and the account-wide list ahead of a re-analysis.
func (s *Store) ClearDeviceAlerts(deviceID int64) {
	s.mutate(DeviceAlertsCleared, deviceID, func() {
		delete(s.deviceAlerts, deviceID)
		kept := s.alerts[:0:0]
		for _, a := range s.alerts {
			if a.DeviceID != deviceID {
				kept = append(kept, a)
			}
		}
		s.alerts = kept
	})
}

// SetConsumptions replaces the consumption list of one device.
func (s *Store) SetConsumptions(deviceID int64, periods []model.ConsumptionPeriod) {
	cp := slices.Clone(periods)
	s.mutate(ConsumptionsUpdated, deviceID, func() { s.consumptions[deviceID] = cp })
}

// InvalidateSeries announces that reading-derived series of a device must be
// recomputed.
func (s *Store) InvalidateSeries(deviceID int64) {
	s.mutate(SeriesInvalidated, deviceID, func() {})
}

// Devices returns a copy of the device list.
func (s *Store) Devices() []model.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOrEmpty(s.devices)
}

// Device returns one device by id.
func (s *Store) Device(id int64) (model.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.ID == id {
			return d, true
		}
	}
	return model.Device{}, false
}

// Alerts returns a copy of the account-wide alert list.
func (s *Store) Alerts() []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOrEmpty(s.alerts)
}

// DeviceAlerts returns a copy of a device's alerts.
func (s *Store) DeviceAlerts(deviceID int64) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOrEmpty(s.deviceAlerts[deviceID])
}

// Consumptions returns a copy of a device's consumption periods and whether
// the list has been loaded at all.
func (s *Store) Consumptions(deviceID int64) ([]model.ConsumptionPeriod, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	periods, ok := s.consumptions[deviceID]
	return cloneOrEmpty(periods), ok
}

// Version returns the number of mutations applied so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot copies the whole store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Version:      s.version,
		Devices:      cloneOrEmpty(s.devices),
		Alerts:       cloneOrEmpty(s.alerts),
		DeviceAlerts: make(map[int64][]model.Alert, len(s.deviceAlerts)),
		Consumptions: make(map[int64][]model.ConsumptionPeriod, len(s.consumptions)),
	}
	for id, alerts := range s.deviceAlerts {
		snap.DeviceAlerts[id] = cloneOrEmpty(alerts)
	}
	for id, periods := range s.consumptions {
		snap.Consumptions[id] = cloneOrEmpty(periods)
	}
	return snap
}

func cloneOrEmpty[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
