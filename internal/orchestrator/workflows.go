// v0
// internal/orchestrator/workflows.go
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"nrgchamp/powerinsight/internal/backend"
	"nrgchamp/powerinsight/internal/model"
)

// submit runs one Submitting → Ingested → Analyzing → terminal cycle. label
// prefixes progress texts during bulk runs.
func (o *Orchestrator) submit(ctx context.Context, runID string, sub Submission, label string) Run {
	r, _ := o.runs.get(runID)
	o.progress(r, label+msgImporting)

	ing, err := o.be.IngestConsumption(ctx, sub.DeviceID, sub.StartDate, sub.EndDate, sub.DurationDays)
	if err != nil {
		o.log.Error("ingestion_failed", slog.String("run_id", runID), slog.Int64("device_id", sub.DeviceID), slog.Any("err", err))
		return o.finish(runID, Failed, backend.MessageOf(err, msgGenericError))
	}
	r = o.runs.update(runID, func(r *Run) {
		r.Phase = Ingested
		r.ConsumptionIDs = append([]int64(nil), ing.ConsumptionIDs...)
	})
	o.log.Info("consumption_ingested", slog.String("run_id", runID), slog.Int("records", len(ing.ConsumptionIDs)))

	o.progress(r, label+msgAnalyzing)
	failed, firstErr := o.analyzeAll(ctx, runID, ing.ConsumptionIDs)
	o.refresh(ctx, sub.DeviceID)
	if failed > 0 {
		return o.finish(runID, PartiallyFailed, backend.MessageOf(firstErr, msgAnalysisError))
	}
	return o.finish(runID, Completed, orDefault(ing.Message, msgImportComplete))
}

// analyzeAll issues one analysis per id, in id order, and returns only after
// every request has settled. A failure does not cancel its siblings.
func (o *Orchestrator) analyzeAll(ctx context.Context, runID string, ids []int64) (failed int, firstErr error) {
	o.runs.update(runID, func(r *Run) {
		r.Phase = Analyzing
		r.Pending = len(ids)
	})
	if len(ids) == 0 {
		return 0, nil
	}
	errs := make([]error, len(ids))
	var g errgroup.Group
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			_, err := o.be.AnalyzeConsumption(ctx, id)
			errs[i] = err
			o.rec.AnalysisSettled(err == nil)
			o.runs.update(runID, func(r *Run) {
				r.Pending--
				if err != nil {
					r.FailedCount++
				} else {
					r.Succeeded++
				}
			})
			if err != nil {
				o.log.Warn("analysis_failed", slog.String("run_id", runID), slog.Int64("consumption_id", id), slog.Any("err", err))
			}
			return err
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return failed, firstErr
}

// bulk applies one date range to every stored device. Devices are handled
// one after another and a failed device never stops the loop.
func (o *Orchestrator) bulk(ctx context.Context, runID string, start, end time.Time, durationDays int) Run {
	devices := o.store.Devices()
	failures := 0
	for _, d := range devices {
		child := o.begin(KindSubmit, d.ID, runID)
		label := fmt.Sprintf(bulkDevicePrefix, d.ID)
		res := o.submit(ctx, child.ID, Submission{DeviceID: d.ID, StartDate: start, EndDate: end, DurationDays: durationDays}, label)
		if res.Phase != Completed {
			failures++
		}
		o.runs.update(runID, func(r *Run) {
			r.Devices = append(r.Devices, DeviceResult{DeviceID: d.ID, RunID: res.ID, Phase: res.Phase, Message: res.Message})
			r.Succeeded = len(r.Devices) - failures
			r.FailedCount = failures
		})
	}
	phase := Completed
	if failures > 0 {
		phase = PartiallyFailed
	}
	return o.finish(runID, phase, msgBulkComplete)
}

// edit updates device settings. A change to any threshold on a device with
// consumption history triggers re-analysis of every record.
func (o *Orchestrator) edit(ctx context.Context, runID string, deviceID int64, settings model.DeviceSettings) Run {
	previous, ok := o.store.Device(deviceID)
	if !ok {
		d, err := o.be.FetchDevice(ctx, deviceID)
		if err != nil {
			o.log.Error("device_lookup_failed", slog.String("run_id", runID), slog.Int64("device_id", deviceID), slog.Any("err", err))
			return o.finish(runID, Failed, backend.MessageOf(err, msgGenericError))
		}
		previous = d
	}
	change := model.ThresholdEdit{DeviceID: deviceID, Previous: previous.Thresholds(), Proposed: settings.Thresholds}
	consumptions := o.consumptionsOf(ctx, deviceID)

	ack, err := o.be.UpdateDevice(ctx, deviceID, settings)
	if err != nil {
		o.log.Error("device_update_failed", slog.String("run_id", runID), slog.Int64("device_id", deviceID), slog.Any("err", err))
		return o.finish(runID, Failed, backend.MessageOf(err, msgGenericError))
	}
	o.store.SetDevice(settings.Apply(previous))

	if !change.Changed() || len(consumptions) == 0 {
		o.runs.update(runID, func(r *Run) { r.Phase = Ingested })
		o.refresh(ctx, deviceID)
		return o.finish(runID, Completed, orDefault(ack.Message, msgDeviceUpdated))
	}

	ids := make([]int64, 0, len(consumptions))
	for _, c := range consumptions {
		ids = append(ids, c.ID)
	}
	r := o.runs.update(runID, func(r *Run) {
		r.Phase = Ingested
		r.Cascade = true
		r.ConsumptionIDs = ids
	})
	o.store.ClearDeviceAlerts(deviceID)
	o.progress(r, msgReanalyzing)
	o.log.Info("reanalysis_started", slog.String("run_id", runID), slog.Int64("device_id", deviceID), slog.Int("records", len(ids)))

	failed, firstErr := o.analyzeAll(ctx, runID, ids)
	o.refresh(ctx, deviceID)
	if failed > 0 {
		return o.finish(runID, PartiallyFailed, backend.MessageOf(firstErr, msgAnalysisError))
	}
	return o.finish(runID, Completed, orDefault(ack.Message, msgReanalysisDone))
}

// consumptionsOf prefers the stored list and falls back to the backend. A
// failed lookup counts as no history.
func (o *Orchestrator) consumptionsOf(ctx context.Context, deviceID int64) []model.ConsumptionPeriod {
	if periods, ok := o.store.Consumptions(deviceID); ok {
		return periods
	}
	periods, err := o.be.FetchConsumptions(ctx, deviceID)
	if err != nil {
		o.log.Warn("consumptions_lookup_failed", slog.Int64("device_id", deviceID), slog.Any("err", err))
		return nil
	}
	o.store.SetConsumptions(deviceID, periods)
	return periods
}
