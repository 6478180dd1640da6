// Package measure holds the trusted pixel heights reported by the
// rendering collaborator.
//
// The Store maps measurement keys to heights. It is the only shared
// mutable state between measurement arrival and pagination, and it is
// only ever replaced wholesale: readers take a Snapshot and the
// pagination engine computes against that snapshot, so a recompute never
// observes a half-applied batch.
//
// The Dispatcher coalesces the high-frequency raw measurement signal
// (one source per rendered entry, firing on layout settling, image
// loads, resizes) into batches. Within a buffering window the last
// write per key wins; a flush hands over the whole batch or nothing.
package measure

import (
	"sync"
	"time"
)

// Epsilon is the height delta below which a re-reported measurement is
// considered noise and ignored. Sub-pixel rounding jitters re-reports by
// fractions of a pixel without the content actually changing.
const Epsilon = 0.5

// Record is one measurement: a key, its trusted pixel height, and when
// it was taken. A Height <= 0 is a deletion marker: the content behind
// the key is no longer mounted and its height must be forgotten.
type Record struct {
	Key        string    `json:"key" bson:"key"`
	Height     float64   `json:"height" bson:"height"`
	MeasuredAt time.Time `json:"measured_at" bson:"measured_at"`
}

// IsDeletion reports whether the record removes its key rather than
// updating it.
func (r Record) IsDeletion() bool { return r.Height <= 0 }

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is an immutable view of the store at one point in time.
// Pagination and bucket building read from a snapshot, never from the
// live store, so one recompute cycle sees one consistent set of heights.
type Snapshot map[string]Record

// Height returns the measured height for key, if one exists.
func (s Snapshot) Height(key string) (float64, bool) {
	r, ok := s[key]
	if !ok {
		return 0, false
	}
	return r.Height, true
}

// Len returns the number of measured keys in the snapshot.
func (s Snapshot) Len() int { return len(s) }

// =============================================================================
// Store
// =============================================================================

// Store is the mutable measurement map. All mutation goes through Apply;
// reads go through Snapshot. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	hooks   Hooks
}

// NewStore creates an empty measurement store. If hooks is nil, events
// are discarded.
func NewStore(hooks Hooks) *Store {
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Store{
		records: make(map[string]Record),
		hooks:   hooks,
	}
}

// Snapshot returns an immutable copy of the current measurements.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(s.records))
	for k, r := range s.records {
		snap[k] = r
	}
	return snap
}

// Len returns the number of measured keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Apply merges a flushed batch into the store and reports whether any
// height materially changed. Deletion records remove their key; updates
// within Epsilon of the stored height are ignored. The internal map is
// rebuilt, not edited, so snapshots taken before Apply stay intact.
func (s *Store) Apply(batch []Record) bool {
	if len(batch) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	next := make(map[string]Record, len(s.records))
	for k, r := range s.records {
		next[k] = r
	}

	for _, rec := range batch {
		prev, exists := next[rec.Key]

		if rec.IsDeletion() {
			if exists {
				delete(next, rec.Key)
				s.hooks.OnDelete(rec.Key)
				changed = true
			}
			continue
		}

		if exists && !materialChange(prev.Height, rec.Height) {
			continue
		}
		next[rec.Key] = rec
		s.hooks.OnRecord(rec.Key, rec.Height)
		changed = true
	}

	if changed {
		s.records = next
	}
	return changed
}

// Restore replaces the store's contents with a previously saved
// snapshot. Used when loading persisted measurements at startup.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]Record, len(snap))
	for k, r := range snap {
		if r.IsDeletion() {
			continue
		}
		next[k] = r
	}
	s.records = next
}

// materialChange reports whether a height moved beyond Epsilon.
func materialChange(old, new float64) bool {
	d := new - old
	if d < 0 {
		d = -d
	}
	return d >= Epsilon
}
