package measure

// Hooks receives measurement lifecycle events. Implementations must be
// cheap and non-blocking; they run under the store's lock.
//
// The zero-dependency hook pattern keeps the measurement path free of
// observability framework imports: the binary that cares about metrics
// registers an implementation, everything else gets NopHooks.
type Hooks interface {
	// OnRecord fires when a key's height is inserted or materially
	// updated.
	OnRecord(key string, height float64)

	// OnDelete fires when a key is removed from the store.
	OnDelete(key string)

	// OnFlush fires when the dispatcher hands a batch downstream.
	OnFlush(batchSize int)
}

// NopHooks discards all events.
type NopHooks struct{}

func (NopHooks) OnRecord(string, float64) {}
func (NopHooks) OnDelete(string)          {}
func (NopHooks) OnFlush(int)              {}

// Ensure NopHooks implements Hooks.
var _ Hooks = NopHooks{}
