// v0
// internal/orchestrator/run.go
package orchestrator

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Phase is the position of a run in its state machine.
type Phase uint8

const (
	Submitting Phase = iota
	Ingested
	Analyzing
	Completed
	PartiallyFailed
	Failed
	phaseCount
)

var phaseNames = [...]string{
	Submitting:      "submitting",
	Ingested:        "ingested",
	Analyzing:       "analyzing",
	Completed:       "completed",
	PartiallyFailed: "partially_failed",
	Failed:          "failed",
}

var (
	_ [len(phaseNames) - int(phaseCount)]struct{}
	_ [int(phaseCount) - len(phaseNames)]struct{}
)

func (p Phase) String() string {
	if p >= phaseCount {
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(b))
}

// Terminal reports whether no further transition can happen.
func (p Phase) Terminal() bool {
	return p == Completed || p == PartiallyFailed || p == Failed
}

// Kind names the workflow a run executes.
type Kind string

const (
	KindSubmit Kind = "submit"
	KindBulk   Kind = "bulk"
	KindEdit   Kind = "edit"
)

// DeviceResult is the outcome of one device cycle of a bulk run.
type DeviceResult struct {
	DeviceID int64  `json:"device_id"`
	RunID    string `json:"run_id"`
	Phase    Phase  `json:"phase"`
	Message  string `json:"message,omitempty"`
}

// Run is the observable progress of one orchestration.
type Run struct {
	ID             string         `json:"id"`
	Kind           Kind           `json:"kind"`
	ParentID       string         `json:"parent_id,omitempty"`
	DeviceID       int64          `json:"device_id,omitempty"`
	Phase          Phase          `json:"phase"`
	ConsumptionIDs []int64        `json:"consumption_ids,omitempty"`
	Pending        int            `json:"pending"`
	Succeeded      int            `json:"succeeded"`
	FailedCount    int            `json:"failed"`
	Cascade        bool           `json:"cascade,omitempty"`
	Devices        []DeviceResult `json:"devices,omitempty"`
	Message        string         `json:"message,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

func (r Run) clone() Run {
	r.ConsumptionIDs = slices.Clone(r.ConsumptionIDs)
	r.Devices = slices.Clone(r.Devices)
	return r
}

// registry keeps the most recent runs. Once full, the oldest finished run is
// evicted first; running runs are never evicted.
type registry struct {
	mu    sync.RWMutex
	max   int
	order []string
	runs  map[string]*Run
	done  map[string]chan struct{}
}

func newRegistry(max int) *registry {
	if max <= 0 {
		max = 256
	}
	return &registry{max: max, runs: make(map[string]*Run), done: make(map[string]chan struct{})}
}

func (g *registry) add(r Run) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictLocked()
	cp := r.clone()
	g.runs[r.ID] = &cp
	g.done[r.ID] = make(chan struct{})
	g.order = append(g.order, r.ID)
}

func (g *registry) evictLocked() {
	for len(g.order) >= g.max {
		idx := slices.IndexFunc(g.order, func(id string) bool { return g.runs[id].Phase.Terminal() })
		if idx < 0 {
			return
		}
		id := g.order[idx]
		g.order = slices.Delete(g.order, idx, idx+1)
		delete(g.runs, id)
		delete(g.done, id)
	}
}

// update applies fn to a run and closes its done channel once the run has
// reached a terminal phase.
func (g *registry) update(id string, fn func(*Run)) Run {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.runs[id]
	if !ok {
		return Run{}
	}
	wasTerminal := r.Phase.Terminal()
	fn(r)
	if !wasTerminal && r.Phase.Terminal() {
		close(g.done[id])
	}
	return r.clone()
}

func (g *registry) get(id string) (Run, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.runs[id]
	if !ok {
		return Run{}, false
	}
	return r.clone(), true
}

func (g *registry) doneCh(id string) (<-chan struct{}, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ch, ok := g.done[id]
	return ch, ok
}

// list returns runs newest first.
func (g *registry) list() []Run {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Run, 0, len(g.order))
	for i := len(g.order) - 1; i >= 0; i-- {
		out = append(out, g.runs[g.order[i]].clone())
	}
	return out
}
