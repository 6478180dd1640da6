package measure

import (
	"sync"
	"testing"
	"time"
)

func TestDispatcherCoalesces(t *testing.T) {
	d := NewDispatcher(time.Hour, nil, nil) // manual flush only

	now := time.Now()
	d.Record("blk:a", 100, now)
	d.Record("blk:b", 200, now)
	d.Record("blk:a", 150, now) // last write per key wins

	if d.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", d.Pending())
	}

	batch := d.Flush()
	if len(batch) != 2 {
		t.Fatalf("batch has %d records, want 2", len(batch))
	}

	// Batches come out sorted by key.
	if batch[0].Key != "blk:a" || batch[1].Key != "blk:b" {
		t.Errorf("batch order = %s, %s", batch[0].Key, batch[1].Key)
	}
	if batch[0].Height != 150 {
		t.Errorf("blk:a = %g, want the later write 150", batch[0].Height)
	}

	if d.Pending() != 0 {
		t.Error("flush should drain the buffer")
	}
	if d.Flush() != nil {
		t.Error("flushing an empty buffer should return nil")
	}
}

func TestDispatcherDetach(t *testing.T) {
	d := NewDispatcher(time.Hour, nil, nil)

	d.Record("blk:a", 100, time.Now())
	d.Detach("blk:a")

	batch := d.Flush()
	if len(batch) != 1 {
		t.Fatalf("batch has %d records, want 1", len(batch))
	}
	if !batch[0].IsDeletion() {
		t.Error("detach should override the buffered update with a deletion")
	}
}

func TestDispatcherSink(t *testing.T) {
	var mu sync.Mutex
	var got [][]Record
	sink := func(b []Record) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, b)
	}

	d := NewDispatcher(10*time.Millisecond, sink, nil)
	defer d.Close()

	d.Record("blk:a", 100, time.Now())
	d.Record("blk:b", 200, time.Now())

	// The timer armed by the first record delivers both as one batch.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for automatic flush")
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("sink received %d batches, first of size %d; want one batch of 2", len(got), len(got[0]))
	}
}

func TestDispatcherClose(t *testing.T) {
	d := NewDispatcher(time.Hour, nil, nil)
	d.Record("blk:a", 100, time.Now())
	d.Close()

	if d.Pending() != 0 {
		t.Error("close should drop buffered records")
	}

	d.Record("blk:b", 200, time.Now())
	if d.Pending() != 0 {
		t.Error("records after close should be ignored")
	}
}

func TestDispatcherFlushHook(t *testing.T) {
	hooks := &countingHooks{}
	d := NewDispatcher(time.Hour, nil, hooks)

	d.Record("blk:a", 100, time.Now())
	d.Flush()

	if hooks.flushes != 1 {
		t.Errorf("OnFlush fired %d times, want 1", hooks.flushes)
	}
}
