// Package compose orchestrates the layout lifecycle: when buckets are
// rebuilt, when the pagination engine runs, and how its result becomes
// visible.
//
// A Session is the unit of orchestration. It owns the measurement
// store, the coalescing dispatcher, the current buckets, and the
// two-phase pending/committed plan pair. External signals (component
// set, template, geometry, measurement updates) drive a small
// explicit phase machine (see Phase): structural changes rebuild
// buckets immediately (cheap) and mark the session dirty; the expensive
// pagination step runs only when Recalculate is called; Commit promotes
// the pending plan wholesale, so consumers always read a consistent
// snapshot.
//
// # Measurement-First Gate
//
// Until every tracked instance has reported at least a block-level
// measurement, recomputation is suppressed and ProxyEntries exposes the
// minimal set of entries a renderer must mount to obtain those first
// measurements. This keeps pagination from running against guessed
// heights before any real data exists.
package compose

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pagefold/pagefold/pkg/bucket"
	"github.com/pagefold/pagefold/pkg/entry"
	"github.com/pagefold/pagefold/pkg/measure"
	"github.com/pagefold/pagefold/pkg/paginate"
	"github.com/pagefold/pagefold/pkg/plan"
	"github.com/pagefold/pagefold/pkg/region"
	"github.com/pagefold/pagefold/pkg/store"
)

// Config configures a layout session.
type Config struct {
	// DocumentID identifies the document across runs. Generated when
	// empty.
	DocumentID string

	Geometry           region.Geometry
	RequestedPageCount int

	// Resolver resolves list data references. Nil uses the direct map
	// resolver.
	Resolver bucket.Resolver

	// FlushInterval is the dispatcher's coalescing window. Zero uses
	// the default.
	FlushInterval time.Duration

	// Logger receives orchestration events. Nil logs nothing.
	Logger *log.Logger

	// Hooks receives measurement events. Nil discards them.
	Hooks measure.Hooks

	// Persistence, when set, archives committed plans and measurement
	// snapshots.
	Persistence store.Store
}

// Session orchestrates bucket building, pagination, and plan
// commitment for one document. Safe for concurrent use; callers see a
// single logical thread of control, the lock just shields it from the
// dispatcher's timer goroutine.
type Session struct {
	mu sync.Mutex

	id  string
	cfg Config
	geo region.Geometry
	log *log.Logger
	ctx *Context

	measurements *measure.Store
	dispatcher   *measure.Dispatcher

	instances []bucket.Instance
	template  bucket.Template
	sources   bucket.DataSources
	buckets   bucket.Buckets

	// measured tracks which instances have received at least one
	// block-level measurement.
	measured map[string]bool

	phase       Phase
	pending     *plan.Plan
	committed   *plan.Plan
	assignments map[string]plan.SlotAssignment
}

// NewSession creates a session for one document.
func NewSession(cfg Config) *Session {
	if cfg.DocumentID == "" {
		cfg.DocumentID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Session{
		id:           cfg.DocumentID,
		cfg:          cfg,
		geo:          cfg.Geometry.WithDefaults(),
		log:          logger,
		ctx:          NewContext(),
		measurements: measure.NewStore(cfg.Hooks),
		measured:     make(map[string]bool),
		buckets:      bucket.Buckets{},
		assignments:  make(map[string]plan.SlotAssignment),
	}
	s.dispatcher = measure.NewDispatcher(cfg.FlushInterval, s.applyBatch, cfg.Hooks)
	return s
}

// ID returns the session's document id.
func (s *Session) ID() string { return s.id }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Context returns the session's layout context (identity cache, debug
// counters).
func (s *Session) Context() *Context { return s.ctx }

// Close stops the dispatcher. Buffered, unflushed measurements are
// dropped.
func (s *Session) Close() {
	s.dispatcher.Close()
}

// =============================================================================
// Structural Signals
// =============================================================================

// SetComponents replaces the tracked instance set. Instances without an
// id are assigned one. Buckets rebuild immediately; pagination is
// deferred.
func (s *Session) SetComponents(instances []bucket.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range instances {
		if instances[i].ID == "" {
			instances[i].ID = uuid.NewString()
		}
	}
	s.instances = instances
	s.rebuildLocked("components")
}

// SetTemplate replaces the slot template.
func (s *Session) SetTemplate(t bucket.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.template = t
	s.rebuildLocked("template")
}

// SetDataSources replaces the domain data backing list instances.
func (s *Session) SetDataSources(src bucket.DataSources) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources = src
	s.rebuildLocked("data")
}

// SetGeometry replaces the page geometry.
func (s *Session) SetGeometry(geo region.Geometry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.geo = geo.WithDefaults()
	s.rebuildLocked("geometry")
}

// rebuildLocked rebuilds buckets from current inputs and marks the
// session dirty. Caller holds s.mu.
func (s *Session) rebuildLocked(cause string) {
	s.buckets = bucket.Build(bucket.Input{
		Instances:    s.instances,
		Template:     s.template,
		Geometry:     s.geo,
		Sources:      s.sources,
		Resolver:     s.cfg.Resolver,
		Measurements: s.measurements.Snapshot(),
		Prior:        s.assignments,
	})
	s.phase, _ = Transition(s.phase, EventInputChanged)
	s.pending = nil

	s.log.Debug("rebuilt buckets",
		"cause", cause,
		"regions", len(s.buckets),
		"entries", s.buckets.EntryCount())
}

// =============================================================================
// Measurement Signals
// =============================================================================

// RecordMeasurement buffers a measurement report. A height <= 0 queues
// a deletion. Reports coalesce in the dispatcher and reach the store as
// one batch.
func (s *Session) RecordMeasurement(key string, height float64, measuredAt time.Time) {
	s.dispatcher.Record(key, height, measuredAt)
}

// DetachMeasurement queues a deletion for a key whose content unmounted
// before its buffered update flushed.
func (s *Session) DetachMeasurement(key string) {
	s.dispatcher.Detach(key)
}

// FlushMeasurements forces the dispatcher to deliver its buffer now
// instead of waiting out the coalescing window.
func (s *Session) FlushMeasurements() {
	s.dispatcher.Flush()
}

// applyBatch is the dispatcher sink: apply the whole batch to the
// store, update the measured-instance set, and mark dirty only when a
// height materially changed.
func (s *Session) applyBatch(batch []measure.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx.Flushes++
	for _, rec := range batch {
		if rec.IsDeletion() {
			continue
		}
		if id := s.ctx.InstanceOf(rec.Key); id != "" {
			s.measured[id] = true
		}
	}

	if !s.measurements.Apply(batch) {
		return
	}
	s.phase, _ = Transition(s.phase, EventInputChanged)
	s.pending = nil

	s.log.Debug("applied measurement batch", "records", len(batch), "phase", s.phase)
}

// =============================================================================
// Measurement-First Gate
// =============================================================================

// MeasurementComplete reports whether every tracked instance has
// received at least a block-level measurement.
func (s *Session) MeasurementComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measurementCompleteLocked()
}

func (s *Session) measurementCompleteLocked() bool {
	for _, inst := range s.instances {
		if !s.measured[inst.ID] {
			return false
		}
	}
	return true
}

// ProxyEntries returns the minimal entries a renderer must mount to
// obtain first measurements for the still-unmeasured instances. Empty
// once the gate is open.
func (s *Session) ProxyEntries() []*entry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var proxies []*entry.Entry
	for _, inst := range s.instances {
		if s.measured[inst.ID] {
			continue
		}
		e := &entry.Entry{
			InstanceID:       inst.ID,
			Kind:             entry.KindBlock,
			NeedsMeasurement: true,
		}
		e.ComputeMeasurementKey()
		e.EstimatedHeight = e.HeuristicHeight()
		proxies = append(proxies, e)
	}
	return proxies
}

// =============================================================================
// Recompute and Commit
// =============================================================================

// Recalculate runs the pagination engine against the current buckets
// and measurement snapshot. The result becomes the pending plan; the
// dirty flag clears in the same step so one input cycle triggers at
// most one recompute. Returns false when the session is not dirty or
// the measurement-first gate is closed.
func (s *Session) Recalculate() (*plan.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseDirty {
		return nil, false
	}
	if !s.measurementCompleteLocked() {
		s.ctx.Suppressed++
		s.log.Debug("recompute suppressed: unmeasured instances remain")
		return nil, false
	}

	snap := s.measurements.Snapshot()
	p := paginate.Paginate(s.buckets, s.geo, s.cfg.RequestedPageCount, snap)

	s.pending = p
	s.phase, _ = Transition(s.phase, EventRecomputed)
	s.ctx.Recomputes++

	s.log.Info("recomputed layout",
		"pages", p.PageCount(),
		"entries", p.EntryCount(),
		"overflow", len(p.OverflowWarnings))
	return p, true
}

// Commit promotes the pending plan to committed, derives fresh slot
// assignments for the next bucket build, and archives the result when
// persistence is configured. Returns nil when nothing is pending.
func (s *Session) Commit(ctx context.Context) (*plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseRecomputed || s.pending == nil {
		return nil, nil
	}

	s.committed = s.pending
	s.pending = nil
	s.assignments = s.committed.Assignments()
	s.phase, _ = Transition(s.phase, EventCommitted)
	s.ctx.Commits++

	if s.cfg.Persistence != nil {
		if err := store.SavePlan(ctx, s.cfg.Persistence, s.id, s.committed, 0); err != nil {
			return s.committed, err
		}
		if err := store.SaveMeasurements(ctx, s.cfg.Persistence, s.id, s.measurements.Snapshot()); err != nil {
			return s.committed, err
		}
	}

	s.log.Info("committed layout", "pages", s.committed.PageCount())
	return s.committed, nil
}

// Committed returns the last committed plan, or nil.
func (s *Session) Committed() *plan.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Assignments returns the per-instance slot assignments of the last
// committed plan.
func (s *Session) Assignments() map[string]plan.SlotAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]plan.SlotAssignment, len(s.assignments))
	for k, v := range s.assignments {
		out[k] = v
	}
	return out
}

// Snapshot returns the current measurement snapshot.
func (s *Session) Snapshot() measure.Snapshot {
	return s.measurements.Snapshot()
}

// LoadPersisted restores the document's measurement snapshot from the
// configured persistence store. Instances covered by restored keys
// count as measured for the gate. No-op without persistence.
func (s *Session) LoadPersisted(ctx context.Context) error {
	if s.cfg.Persistence == nil {
		return nil
	}
	snap, err := store.LoadMeasurements(ctx, s.cfg.Persistence, s.id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.measurements.Restore(snap)
	for key := range snap {
		if id := s.ctx.InstanceOf(key); id != "" {
			s.measured[id] = true
		}
	}
	if len(snap) > 0 {
		s.phase, _ = Transition(s.phase, EventInputChanged)
	}
	return nil
}
