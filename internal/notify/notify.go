// v0
// internal/notify/notify.go
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Kind styles a notification.
type Kind string

const (
	Progress Kind = "progress"
	Success  Kind = "success"
	Error    Kind = "error"
)

// Notification is a transient user-facing message.
type Notification struct {
	Kind     Kind      `json:"kind"`
	Text     string    `json:"text"`
	RunID    string    `json:"run_id,omitempty"`
	DeviceID int64     `json:"device_id,omitempty"`
	At       time.Time `json:"at"`
}

// Terminal reports whether the notification closes an orchestration.
func (n Notification) Terminal() bool {
	return n.Kind == Success || n.Kind == Error
}

// Notifier delivers notifications. Notify must not block on the transport
// and has no result.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(n Notification) {
	if l.Logger == nil {
		return
	}
	attrs := []any{
		slog.String("kind", string(n.Kind)),
		slog.String("text", n.Text),
	}
	if n.RunID != "" {
		attrs = append(attrs, slog.String("run_id", n.RunID))
	}
	if n.DeviceID != 0 {
		attrs = append(attrs, slog.Int64("device_id", n.DeviceID))
	}
	if n.Kind == Error {
		l.Logger.Warn("user_notification", attrs...)
		return
	}
	l.Logger.Info("user_notification", attrs...)
}

// Recorder keeps the most recent notifications in memory, oldest first.
type Recorder struct {
	mu    sync.Mutex
	max   int
	items []Notification
}

// NewRecorder keeps up to max notifications; max <= 0 keeps 200.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = 200
	}
	return &Recorder{max: max}
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) >= r.max {
		r.items = append(r.items[:0], r.items[1:]...)
	}
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// ForRun returns the notifications of one run.
func (r *Recorder) ForRun(runID string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, 0)
	for _, n := range r.items {
		if n.RunID == runID {
			out = append(out, n)
		}
	}
	return out
}
