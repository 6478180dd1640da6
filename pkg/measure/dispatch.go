package measure

import (
	"sort"
	"sync"
	"time"
)

// DefaultFlushInterval is the idle window the dispatcher waits after the
// first buffered record before flushing a batch. Long enough to absorb a
// burst of settle/resize reports, short enough that a recompute follows
// promptly.
const DefaultFlushInterval = 150 * time.Millisecond

// Dispatcher coalesces raw measurement reports into batches.
//
// Records buffer in a pending map keyed by measurement key; within one
// buffering window the last write per key wins. When the window elapses
// the whole batch is handed to the sink in one call, so downstream never
// observes a torn batch. Detach queues a deletion record for a key, so
// an entry that unmounts between report and flush never leaves a stale
// height behind.
//
// Safe for concurrent use by many measurement sources.
type Dispatcher struct {
	mu       sync.Mutex
	pending  map[string]Record
	interval time.Duration
	timer    *time.Timer
	sink     func([]Record)
	hooks    Hooks
	closed   bool
}

// NewDispatcher creates a dispatcher that delivers batches to sink after
// interval of buffering. A zero interval uses DefaultFlushInterval. A
// nil sink disables automatic delivery; callers then drain with Flush.
func NewDispatcher(interval time.Duration, sink func([]Record), hooks Hooks) *Dispatcher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Dispatcher{
		pending:  make(map[string]Record),
		interval: interval,
		sink:     sink,
		hooks:    hooks,
	}
}

// Record buffers a measurement for key. A nil-equivalent height (<= 0)
// buffers a deletion instead. The first record after an empty buffer
// arms the flush timer.
func (d *Dispatcher) Record(key string, height float64, measuredAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	wasEmpty := len(d.pending) == 0
	d.pending[key] = Record{Key: key, Height: height, MeasuredAt: measuredAt}

	if wasEmpty && d.sink != nil {
		d.armLocked()
	}
}

// Detach queues a deletion for key, overriding any buffered update. Call
// when the measured content unmounts before the buffer flushes.
func (d *Dispatcher) Detach(key string) {
	d.Record(key, 0, time.Now())
}

// Flush drains the buffer and returns the batch, sorted by key for
// deterministic downstream application. If a sink is configured it
// receives the same batch before Flush returns. An empty buffer returns
// nil and delivers nothing.
func (d *Dispatcher) Flush() []Record {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return nil
	}

	batch := make([]Record, 0, len(d.pending))
	for _, r := range d.pending {
		batch = append(batch, r)
	}
	d.pending = make(map[string]Record)
	sink := d.sink
	d.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Key < batch[j].Key })

	d.hooks.OnFlush(len(batch))
	if sink != nil {
		sink(batch)
	}
	return batch
}

// Pending returns the number of buffered records.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close stops the flush timer and drops any buffered records. Further
// Record calls are ignored.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = make(map[string]Record)
}

// armLocked schedules an automatic flush. Caller holds d.mu.
func (d *Dispatcher) armLocked() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() { d.Flush() })
}
