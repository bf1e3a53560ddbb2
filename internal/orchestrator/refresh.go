// v0
// internal/orchestrator/refresh.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"nrgchamp/powerinsight/internal/model"
)

// refresh reads back the state touched by a run: the account alerts, the
// device alerts, the device itself, its consumption list and its series.
// Failures are logged and never change the run outcome.
func (o *Orchestrator) refresh(ctx context.Context, deviceID int64) {
	if err := o.Refresh(ctx, deviceID); err != nil {
		o.log.Warn("refresh_failed", slog.Int64("device_id", deviceID), slog.Any("err", err))
	}
}

// Refresh reloads the stored state of one device. Every step is attempted
// even when an earlier one failed.
func (o *Orchestrator) Refresh(ctx context.Context, deviceID int64) error {
	var errs []error
	if alerts, err := o.be.FetchAlerts(ctx, false); err != nil {
		errs = append(errs, fmt.Errorf("alerts: %w", err))
	} else {
		o.store.SetAlerts(alerts)
	}
	if alerts, err := o.be.FetchDeviceAlerts(ctx, deviceID); err != nil {
		errs = append(errs, fmt.Errorf("device alerts: %w", err))
	} else {
		o.store.SetDeviceAlerts(deviceID, alerts)
	}
	if d, err := o.be.FetchDevice(ctx, deviceID); err != nil {
		errs = append(errs, fmt.Errorf("device: %w", err))
	} else {
		o.store.SetDevice(d)
	}
	if periods, err := o.be.FetchConsumptions(ctx, deviceID); err != nil {
		errs = append(errs, fmt.Errorf("consumptions: %w", err))
	} else {
		o.store.SetConsumptions(deviceID, periods)
	}
	if o.series != nil {
		if err := o.series.Invalidate(ctx, deviceID); err != nil {
			errs = append(errs, fmt.Errorf("invalidate series: %w", err))
		}
		if err := o.series.Warm(ctx, deviceID); err != nil {
			errs = append(errs, fmt.Errorf("warm series: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Hydrate loads the device list, the account alerts and the per-device
// alerts and consumption lists into the store at startup.
func (o *Orchestrator) Hydrate(ctx context.Context) error {
	devices, err := o.be.FetchDevices(ctx)
	if err != nil {
		return fmt.Errorf("hydrate devices: %w", err)
	}
	o.store.SetDevices(devices)

	var errs []error
	if alerts, err := o.be.FetchAlerts(ctx, false); err != nil {
		errs = append(errs, fmt.Errorf("hydrate alerts: %w", err))
	} else {
		o.store.SetAlerts(alerts)
	}
	for _, d := range devices {
		errs = append(errs, o.hydrateDevice(ctx, d))
	}
	err = errors.Join(errs...)
	o.log.Info("store_hydrated", slog.Int("devices", len(devices)), slog.Bool("complete", err == nil))
	return err
}

func (o *Orchestrator) hydrateDevice(ctx context.Context, d model.Device) error {
	var errs []error
	if alerts, err := o.be.FetchDeviceAlerts(ctx, d.ID); err != nil {
		errs = append(errs, fmt.Errorf("hydrate alerts of device %d: %w", d.ID, err))
	} else {
		o.store.SetDeviceAlerts(d.ID, alerts)
	}
	if periods, err := o.be.FetchConsumptions(ctx, d.ID); err != nil {
		errs = append(errs, fmt.Errorf("hydrate consumptions of device %d: %w", d.ID, err))
	} else {
		o.store.SetConsumptions(d.ID, periods)
	}
	return errors.Join(errs...)
}

// SetAlertStatus marks an alert read or unread and reloads the alert lists
// that hold it.
func (o *Orchestrator) SetAlertStatus(ctx context.Context, alertID int64, status model.ReadStatus) (string, error) {
	ctx = context.WithoutCancel(ctx)
	ack, err := o.be.UpdateAlertStatus(ctx, alertID, status)
	if err != nil {
		return "", fmt.Errorf("update alert %d: %w", alertID, err)
	}
	alerts, err := o.be.FetchAlerts(ctx, false)
	if err != nil {
		o.log.Warn("refresh_failed", slog.Int64("alert_id", alertID), slog.Any("err", err))
		return ack.Message, nil
	}
	o.store.SetAlerts(alerts)
	for _, a := range alerts {
		if a.ID != alertID {
			continue
		}
		if deviceAlerts, err := o.be.FetchDeviceAlerts(ctx, a.DeviceID); err == nil {
			o.store.SetDeviceAlerts(a.DeviceID, deviceAlerts)
		} else {
			o.log.Warn("refresh_failed", slog.Int64("device_id", a.DeviceID), slog.Any("err", err))
		}
		break
	}
	return ack.Message, nil
}
