// v0
// internal/httpapi/health.go
package httpapi

import "sync/atomic"

// HealthState tracks readiness. Liveness holds while the process runs;
// readiness is raised once the store is hydrated and lowered on shutdown.
type HealthState struct {
	ready atomic.Bool
}

func NewHealthState() *HealthState {
	return &HealthState{}
}

func (h *HealthState) SetReady(value bool) {
	h.ready.Store(value)
}

func (h *HealthState) Ready() bool {
	return h.ready.Load()
}
