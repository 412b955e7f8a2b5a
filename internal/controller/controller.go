// Package controller gates, debounces and sequences ROI recomputation. It is
// the only component that triggers a full engine run.
package controller

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hyperengineering/autoroi/internal/engine"
	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/types"
)

// Phase is the controller's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseComputing
)

// String returns the phase name used in logs and metrics.
func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseComputing:
		return "computing"
	default:
		return "idle"
	}
}

// State is the caller-owned gate and context snapshot passed with every
// trigger.
type State struct {
	DataReadyForROI          bool
	CostClassificationLoaded bool
	Classification           *types.CostClassification
	Defaults                 types.GlobalDefaults
}

// IsROIReady reports whether both readiness gates hold.
func IsROIReady(s State) bool {
	return s.DataReadyForROI && s.CostClassificationLoaded
}

// Update is delivered to subscribers after each accepted computation.
type Update struct {
	Reason string
	Output *engine.Output
}

// Stats are cumulative controller counters.
type Stats struct {
	Computes     uint64
	GateSkips    uint64
	Deduplicated uint64
	StaleDropped uint64
	Resets       uint64
	LastDuration time.Duration
	Phase        Phase
}

// Options configures a Controller.
type Options struct {
	// Debounce is the delay before a deferred trigger fires. Zero means the
	// next scheduler tick.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Controller owns the recompute state for one tenant context.
type Controller struct {
	debounce time.Duration
	logger   *slog.Logger
	compute  func(engine.Input) engine.Output

	mu           sync.Mutex
	phase        Phase
	generation   uint64
	pending      *time.Timer
	lastSnapshot string
	last         *engine.Output
	stats        Stats
	subs         map[int]func(Update)
	nextSub      int
}

// New creates a controller.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		debounce: opts.Debounce,
		logger:   logger.With("component", "controller"),
		compute:  engine.Compute,
		subs:     make(map[int]func(Update)),
	}
}

// ScheduleROI runs a recompute for the given snapshot and returns its
// results, or nil when a gate is closed or the result was superseded while
// computing. reason is for diagnostics only.
func (c *Controller) ScheduleROI(reason string, s State, data types.Dataset, horizonMonths int) *types.ROIResults {
	out := c.Run(reason, s, data, horizonMonths)
	if out == nil {
		return nil
	}
	return out.Results
}

// Run is ScheduleROI returning the full engine output.
func (c *Controller) Run(reason string, s State, data types.Dataset, horizonMonths int) *engine.Output {
	c.mu.Lock()
	c.stopPendingLocked()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	return c.execute(gen, reason, s, data, horizonMonths)
}

// Defer schedules a debounced trigger. Any trigger still waiting is cancelled
// and replaced; a task whose generation is stale when it fires is dropped.
func (c *Controller) Defer(reason string, s State, data types.Dataset, horizonMonths int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPendingLocked()
	c.generation++
	gen := c.generation
	if c.phase == PhaseIdle {
		c.phase = PhasePending
	}
	c.pending = time.AfterFunc(c.debounce, func() {
		c.fire(gen, reason, s, data, horizonMonths)
	})
}

// Reset clears pending work and forgets the last snapshot so the next
// trigger recomputes unconditionally. In-flight results become stale.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPendingLocked()
	c.generation++
	c.lastSnapshot = ""
	c.last = nil
	c.phase = PhaseIdle
	c.stats.Resets++
	c.logger.Debug("controller reset", "action", "reset", "generation", c.generation)
}

// Latest returns the most recent accepted output, or nil.
func (c *Controller) Latest() *engine.Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Phase returns the current lifecycle state.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Stats returns a copy of the controller counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Phase = c.phase
	return s
}

// Subscribe registers fn for every accepted result. The returned function
// removes the subscription.
func (c *Controller) Subscribe(fn func(Update)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) fire(gen uint64, reason string, s State, data types.Dataset, horizonMonths int) {
	c.mu.Lock()
	if gen != c.generation {
		c.stats.StaleDropped++
		c.mu.Unlock()
		c.logger.Debug("deferred trigger superseded", "action", "drop", "reason", reason)
		return
	}
	c.pending = nil
	c.mu.Unlock()

	c.execute(gen, reason, s, data, horizonMonths)
}

func (c *Controller) execute(gen uint64, reason string, s State, data types.Dataset, horizonMonths int) *engine.Output {
	if !IsROIReady(s) {
		c.mu.Lock()
		c.stats.GateSkips++
		c.settleLocked()
		c.mu.Unlock()
		c.logger.Debug("recompute gated",
			"action", "skip",
			"reason", reason,
			"data_ready", s.DataReadyForROI,
			"classification_loaded", s.CostClassificationLoaded,
		)
		return nil
	}

	// Normalization is idempotent, so already-normalized input is unchanged.
	norm := normalize.Apply(data, s.Defaults)
	in := engine.Input{
		Dataset:        norm.Dataset,
		Defaults:       norm.Defaults,
		Classification: s.Classification,
		HorizonMonths:  horizonMonths,
	}
	snapshot := engine.Fingerprint(in)

	c.mu.Lock()
	if snapshot == c.lastSnapshot && c.last != nil {
		c.stats.Deduplicated++
		last := c.last
		c.settleLocked()
		c.mu.Unlock()
		c.logger.Debug("snapshot unchanged", "action", "dedup", "reason", reason, "snapshot_id", snapshot)
		return last
	}
	c.phase = PhaseComputing
	c.mu.Unlock()

	start := time.Now()
	out := c.compute(in)
	elapsed := time.Since(start)

	c.mu.Lock()
	if gen != c.generation {
		c.stats.StaleDropped++
		c.settleLocked()
		c.mu.Unlock()
		c.logger.Debug("result superseded", "action", "drop", "reason", reason, "snapshot_id", snapshot)
		return nil
	}
	c.last = &out
	c.lastSnapshot = snapshot
	c.stats.Computes++
	c.stats.LastDuration = elapsed
	c.settleLocked()
	subs := make([]func(Update), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	c.logger.Info("roi computed",
		"action", "compute",
		"reason", reason,
		"snapshot_id", snapshot,
		"processes", len(in.Dataset.Processes),
		"horizon_months", horizonMonths,
		"duration_ms", elapsed.Milliseconds(),
	)

	for _, fn := range subs {
		fn(Update{Reason: reason, Output: &out})
	}
	return &out
}

// settleLocked returns to Idle, or Pending when a deferred trigger waits.
func (c *Controller) settleLocked() {
	if c.pending != nil {
		c.phase = PhasePending
		return
	}
	c.phase = PhaseIdle
}

func (c *Controller) stopPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}
