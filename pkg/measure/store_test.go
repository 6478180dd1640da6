package measure

import (
	"testing"
	"time"
)

func rec(key string, h float64) Record {
	return Record{Key: key, Height: h, MeasuredAt: time.Now()}
}

func TestStoreApply(t *testing.T) {
	s := NewStore(nil)

	changed := s.Apply([]Record{rec("blk:a", 120), rec("blk:b", 300)})
	if !changed {
		t.Fatal("first batch should report change")
	}

	snap := s.Snapshot()
	if h, ok := snap.Height("blk:a"); !ok || h != 120 {
		t.Errorf("blk:a = %g/%v, want 120", h, ok)
	}
	if snap.Len() != 2 {
		t.Errorf("snapshot has %d keys, want 2", snap.Len())
	}
}

func TestStoreApplyEpsilonFilter(t *testing.T) {
	s := NewStore(nil)
	s.Apply([]Record{rec("blk:a", 120)})

	// Sub-epsilon jitter is noise, not a change.
	if s.Apply([]Record{rec("blk:a", 120.3)}) {
		t.Error("re-report within epsilon should not count as a change")
	}
	if h, _ := s.Snapshot().Height("blk:a"); h != 120 {
		t.Errorf("height drifted to %g under sub-epsilon update", h)
	}

	// A material delta replaces the stored height.
	if !s.Apply([]Record{rec("blk:a", 121)}) {
		t.Error("delta beyond epsilon should count as a change")
	}
	if h, _ := s.Snapshot().Height("blk:a"); h != 121 {
		t.Errorf("height = %g, want 121", h)
	}
}

func TestStoreApplyDeletion(t *testing.T) {
	s := NewStore(nil)
	s.Apply([]Record{rec("blk:a", 120), rec("blk:b", 80)})

	if !s.Apply([]Record{rec("blk:a", 0)}) {
		t.Error("deleting an existing key should count as a change")
	}
	if _, ok := s.Snapshot().Height("blk:a"); ok {
		t.Error("deleted key still present")
	}
	if s.Len() != 1 {
		t.Errorf("store has %d keys, want 1", s.Len())
	}

	// Deleting an absent key is a no-op.
	if s.Apply([]Record{rec("blk:ghost", -1)}) {
		t.Error("deleting an absent key should not count as a change")
	}
}

func TestStoreApplyEmptyBatch(t *testing.T) {
	s := NewStore(nil)
	if s.Apply(nil) {
		t.Error("empty batch should not count as a change")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewStore(nil)
	s.Apply([]Record{rec("blk:a", 120)})

	before := s.Snapshot()
	s.Apply([]Record{rec("blk:a", 500), rec("blk:b", 40)})

	// The snapshot taken before Apply still shows the old world.
	if h, _ := before.Height("blk:a"); h != 120 {
		t.Errorf("earlier snapshot mutated: blk:a = %g", h)
	}
	if _, ok := before.Height("blk:b"); ok {
		t.Error("earlier snapshot grew a key added later")
	}
}

func TestStoreRestore(t *testing.T) {
	s := NewStore(nil)
	s.Apply([]Record{rec("blk:old", 99)})

	s.Restore(Snapshot{
		"blk:a":    rec("blk:a", 120),
		"blk:dead": rec("blk:dead", 0), // deletion markers are dropped
	})

	snap := s.Snapshot()
	if _, ok := snap.Height("blk:old"); ok {
		t.Error("Restore should replace, not merge")
	}
	if _, ok := snap.Height("blk:dead"); ok {
		t.Error("Restore should skip deletion markers")
	}
	if h, ok := snap.Height("blk:a"); !ok || h != 120 {
		t.Errorf("blk:a = %g/%v after restore", h, ok)
	}
}

func TestRecordIsDeletion(t *testing.T) {
	if !rec("k", 0).IsDeletion() || !rec("k", -3).IsDeletion() {
		t.Error("non-positive heights are deletions")
	}
	if rec("k", 0.1).IsDeletion() {
		t.Error("positive heights are not deletions")
	}
}

// countingHooks records store events for assertions.
type countingHooks struct {
	records int
	deletes int
	flushes int
}

func (h *countingHooks) OnRecord(string, float64) { h.records++ }
func (h *countingHooks) OnDelete(string)          { h.deletes++ }
func (h *countingHooks) OnFlush(int)              { h.flushes++ }

func TestStoreHooks(t *testing.T) {
	hooks := &countingHooks{}
	s := NewStore(hooks)

	s.Apply([]Record{rec("blk:a", 120), rec("blk:b", 80)})
	s.Apply([]Record{rec("blk:a", 0)})

	if hooks.records != 2 {
		t.Errorf("OnRecord fired %d times, want 2", hooks.records)
	}
	if hooks.deletes != 1 {
		t.Errorf("OnDelete fired %d times, want 1", hooks.deletes)
	}
}
