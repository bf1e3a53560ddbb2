// v1
// internal/breaker/breaker.go
package breaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// State is the position of a breaker in its Closed → Open → HalfOpen cycle.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// Config holds the breaker tunables.
type Config struct {
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // time spent open before a probe is allowed
	SuccessesToClose int           // successes required in HalfOpen before closing
}

// Validate checks the tunables and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.MaxFailures == 0 {
		c.MaxFailures = 5
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.SuccessesToClose == 0 {
		c.SuccessesToClose = 1
	}
	if c.MaxFailures < 1 {
		return errors.New("MaxFailures must be >= 1")
	}
	if c.ResetTimeout < 0 {
		return errors.New("ResetTimeout must be > 0")
	}
	if c.SuccessesToClose < 1 {
		return errors.New("SuccessesToClose must be >= 1")
	}
	return nil
}

// Breaker guards calls to a remote dependency.
type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       State
	recentFails int
	halfOpenOK  int
	openedAt    time.Time
	probing     bool
}

// New builds a breaker. A nil logger discards breaker logs.
func New(name string, cfg Config, logger *slog.Logger) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With(slog.String("breaker", name)),
		now:    time.Now,
		state:  Closed,
	}
	b.logger.Info("breaker_created",
		slog.Int("max_failures", cfg.MaxFailures),
		slog.Duration("reset_timeout", cfg.ResetTimeout),
		slog.Int("successes_to_close", cfg.SuccessesToClose),
	)
	return b, nil
}

// Name returns the identifier used in logs and metrics.
func (b *Breaker) Name() string { return b.name }

// Execute runs op unless the breaker is open. Once the reset timeout has
// elapsed a single caller is let through as the half-open probe; concurrent
// callers keep failing fast until the probe settles.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op(ctx)
	if err == nil {
		b.onSuccess()
		return nil
	}
	if b.onFailure(err) {
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		since := b.now().Sub(b.openedAt)
		if since < b.cfg.ResetTimeout {
			b.logger.Warn("breaker_fast_fail", slog.Duration("since_open", since))
			return ErrOpen
		}
		b.state = HalfOpen
		b.halfOpenOK = 0
		b.probing = true
		b.logger.Info("breaker_probe_start", slog.Int("previous_failures", b.recentFails))
	case HalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if b.state == HalfOpen {
		b.halfOpenOK++
		if b.halfOpenOK < b.cfg.SuccessesToClose {
			return
		}
		b.logger.Info("breaker_closed_after_probe", slog.Int("successes", b.halfOpenOK))
	}
	b.state = Closed
	b.recentFails = 0
	b.halfOpenOK = 0
}

// onFailure records a failed call and reports whether it opened the breaker.
func (b *Breaker) onFailure(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	b.recentFails++
	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = b.now()
		b.logger.Warn("breaker_halfopen_op_failed", slog.Any("err", err))
		return true
	}
	b.logger.Warn("operation_failure", slog.Int("failures", b.recentFails), slog.Any("err", err))
	if b.recentFails >= b.cfg.MaxFailures {
		b.state = Open
		b.openedAt = b.now()
		b.logger.Error("breaker_opened", slog.Int("max_failures", b.cfg.MaxFailures))
		return true
	}
	return false
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
