// v0
// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nrgchamp/powerinsight/internal/backend"
	"nrgchamp/powerinsight/internal/model"
	"nrgchamp/powerinsight/internal/notify"
	"nrgchamp/powerinsight/internal/state"
)

const (
	msgImporting      = "Batch importing data from files..."
	msgAnalyzing      = "Analyzing imported data..."
	msgImportComplete = "Data import and analysis complete!"
	msgBulkComplete   = "Data import and analysis complete for all devices!"
	msgReanalyzing    = "Re-analyzing consumption data..."
	msgReanalysisDone = "Data re-analysis complete!"
	msgDeviceUpdated  = "Device updated successfully!"
	msgGenericError   = "An error occurred!"
	msgAnalysisError  = "An error occurred in analysis!"
	bulkDevicePrefix  = "Device %d - "
)

// ErrUnknownRun is returned for run ids the registry does not hold.
var ErrUnknownRun = errors.New("unknown run")

// Backend is the subset of the data API used by orchestrations.
type Backend interface {
	IngestConsumption(ctx context.Context, deviceID int64, start, end time.Time, durationDays int) (backend.Ingestion, error)
	AnalyzeConsumption(ctx context.Context, consumptionID int64) (backend.Analysis, error)
	UpdateDevice(ctx context.Context, deviceID int64, settings model.DeviceSettings) (backend.Ack, error)
	UpdateAlertStatus(ctx context.Context, alertID int64, status model.ReadStatus) (backend.Ack, error)
	FetchAlerts(ctx context.Context, unreadOnly bool) ([]model.Alert, error)
	FetchDeviceAlerts(ctx context.Context, deviceID int64) ([]model.Alert, error)
	FetchDevices(ctx context.Context) ([]model.Device, error)
	FetchDevice(ctx context.Context, deviceID int64) (model.Device, error)
	FetchConsumptions(ctx context.Context, deviceID int64) ([]model.ConsumptionPeriod, error)
}

// Series recomputes reading-derived data after a run.
type Series interface {
	Invalidate(ctx context.Context, deviceID int64) error
	Warm(ctx context.Context, deviceID int64) error
}

// Recorder receives run outcomes; *metrics.Metrics satisfies it.
type Recorder interface {
	RunFinished(kind, outcome string)
	AnalysisSettled(ok bool)
	Notification(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RunFinished(string, string) {}
func (nopRecorder) AnalysisSettled(bool)       {}
func (nopRecorder) Notification(string)        {}

// Options wires an Orchestrator.
type Options struct {
	Backend  Backend
	Store    *state.Store
	Series   Series
	Notifier notify.Notifier
	Recorder Recorder
	Logger   *slog.Logger
	// History bounds the number of runs kept for inspection.
	History int
	// AnalysisLimit caps concurrent analysis requests of one join; 0 issues
	// them all at once.
	AnalysisLimit int
}

// Orchestrator drives ingestion, analysis and threshold-edit workflows and
// is the only writer of the application-state store after startup.
type Orchestrator struct {
	be       Backend
	store    *state.Store
	series   Series
	notifier notify.Notifier
	rec      Recorder
	log      *slog.Logger
	runs     *registry
	limit    int
	now      func() time.Time
	newID    func() string

	wg sync.WaitGroup
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Backend == nil {
		return nil, errors.New("orchestrator requires a backend")
	}
	if opts.Store == nil {
		return nil, errors.New("orchestrator requires a store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	n := opts.Notifier
	if n == nil {
		n = notify.Log{Logger: logger}
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Orchestrator{
		be:       opts.Backend,
		store:    opts.Store,
		series:   opts.Series,
		notifier: n,
		rec:      rec,
		log:      logger.With(slog.String("component", "orchestrator")),
		runs:     newRegistry(opts.History),
		limit:    opts.AnalysisLimit,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Submission is one consumption batch to import for a device.
type Submission struct {
	DeviceID     int64     `json:"device_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	DurationDays int       `json:"duration_days"`
}

// Validate rejects batches whose range is inverted or unset.
func (s Submission) Validate() error {
	if s.StartDate.IsZero() || s.EndDate.IsZero() {
		return errors.New("start and end dates are required")
	}
	if s.EndDate.Before(s.StartDate) {
		return errors.New("end date precedes start date")
	}
	if s.DurationDays < 0 {
		return errors.New("duration days cannot be negative")
	}
	return nil
}

// Run returns a copy of a tracked run.
func (o *Orchestrator) Run(id string) (Run, error) {
	r, ok := o.runs.get(id)
	if !ok {
		return Run{}, fmt.Errorf("run %q: %w", id, ErrUnknownRun)
	}
	return r, nil
}

// Runs lists tracked runs, newest first.
func (o *Orchestrator) Runs() []Run {
	return o.runs.list()
}

// Wait blocks until the run is terminal or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context, id string) (Run, error) {
	ch, ok := o.runs.doneCh(id)
	if !ok {
		return Run{}, fmt.Errorf("run %q: %w", id, ErrUnknownRun)
	}
	select {
	case <-ch:
		return o.Run(id)
	case <-ctx.Done():
		return Run{}, ctx.Err()
	}
}

// Drain waits for every background run to finish or ctx to end.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartSubmit registers a submission run and executes it in the background.
// The run outlives ctx cancellation.
func (o *Orchestrator) StartSubmit(ctx context.Context, sub Submission) (Run, error) {
	if err := sub.Validate(); err != nil {
		return Run{}, err
	}
	r := o.begin(KindSubmit, sub.DeviceID, "")
	o.background(ctx, func(ctx context.Context) { o.submit(ctx, r.ID, sub, "") })
	return r, nil
}

// StartBulk registers a bulk run over every stored device.
func (o *Orchestrator) StartBulk(ctx context.Context, start, end time.Time, durationDays int) (Run, error) {
	if err := (Submission{StartDate: start, EndDate: end, DurationDays: durationDays}).Validate(); err != nil {
		return Run{}, err
	}
	r := o.begin(KindBulk, 0, "")
	o.background(ctx, func(ctx context.Context) { o.bulk(ctx, r.ID, start, end, durationDays) })
	return r, nil
}

// StartEdit registers a device settings edit.
func (o *Orchestrator) StartEdit(ctx context.Context, deviceID int64, settings model.DeviceSettings) (Run, error) {
	if err := validateSettings(settings); err != nil {
		return Run{}, err
	}
	r := o.begin(KindEdit, deviceID, "")
	o.background(ctx, func(ctx context.Context) { o.edit(ctx, r.ID, deviceID, settings) })
	return r, nil
}

// Submit imports and analyzes one batch and returns the terminal run.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (Run, error) {
	if err := sub.Validate(); err != nil {
		return Run{}, err
	}
	r := o.begin(KindSubmit, sub.DeviceID, "")
	return o.submit(context.WithoutCancel(ctx), r.ID, sub, ""), nil
}

// ApplyToAllDevices runs one submission cycle per stored device, in order.
func (o *Orchestrator) ApplyToAllDevices(ctx context.Context, start, end time.Time, durationDays int) (Run, error) {
	if err := (Submission{StartDate: start, EndDate: end, DurationDays: durationDays}).Validate(); err != nil {
		return Run{}, err
	}
	r := o.begin(KindBulk, 0, "")
	return o.bulk(context.WithoutCancel(ctx), r.ID, start, end, durationDays), nil
}

// EditDevice updates device settings and, when thresholds changed on a
// device with history, re-analyzes every consumption record.
func (o *Orchestrator) EditDevice(ctx context.Context, deviceID int64, settings model.DeviceSettings) (Run, error) {
	if err := validateSettings(settings); err != nil {
		return Run{}, err
	}
	r := o.begin(KindEdit, deviceID, "")
	return o.edit(context.WithoutCancel(ctx), r.ID, deviceID, settings), nil
}

func validateSettings(s model.DeviceSettings) error {
	if s.PowerMin > s.PowerMax {
		return fmt.Errorf("custom power min %g exceeds max %g", s.PowerMin, s.PowerMax)
	}
	if s.PowerMin < 0 || s.PowerAlert < 0 || s.EnergyAlert < 0 {
		return errors.New("thresholds cannot be negative")
	}
	return nil
}

func (o *Orchestrator) background(ctx context.Context, fn func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn(detached)
	}()
}

func (o *Orchestrator) begin(kind Kind, deviceID int64, parent string) Run {
	r := Run{
		ID:        o.newID(),
		Kind:      kind,
		ParentID:  parent,
		DeviceID:  deviceID,
		Phase:     Submitting,
		StartedAt: o.now(),
	}
	o.runs.add(r)
	o.log.Info("orchestration_started",
		slog.String("run_id", r.ID),
		slog.String("kind", string(kind)),
		slog.Int64("device_id", deviceID),
	)
	return r
}

func (o *Orchestrator) progress(r Run, text string) {
	o.emit(notify.Progress, r, text)
}

func (o *Orchestrator) emit(kind notify.Kind, r Run, text string) {
	o.rec.Notification(string(kind))
	o.notifier.Notify(notify.Notification{
		Kind:     kind,
		Text:     text,
		RunID:    r.ID,
		DeviceID: r.DeviceID,
		At:       o.now(),
	})
}

// finish moves a run to its terminal phase, emits its single terminal
// notification and announces the outcome on the store.
func (o *Orchestrator) finish(id string, phase Phase, text string) Run {
	r := o.runs.update(id, func(r *Run) {
		r.Phase = phase
		r.Pending = 0
		r.Message = text
		r.FinishedAt = o.now()
	})
	kind := notify.Success
	if phase != Completed {
		kind = notify.Error
	}
	o.emit(kind, r, text)
	o.rec.RunFinished(string(r.Kind), phase.String())
	o.store.Publish(state.Event{
		Kind:     state.RunFinished,
		DeviceID: r.DeviceID,
		RunID:    r.ID,
		Outcome:  phase.String(),
		Message:  text,
	})
	o.log.Info("orchestration_finished",
		slog.String("run_id", r.ID),
		slog.String("kind", string(r.Kind)),
		slog.String("phase", phase.String()),
		slog.Int("succeeded", r.Succeeded),
		slog.Int("failed", r.FailedCount),
		slog.Duration("elapsed", r.FinishedAt.Sub(r.StartedAt)),
	)
	return r
}

func orDefault(text, fallback string) string {
	if text == "" {
		return fallback
	}
	return text
}
