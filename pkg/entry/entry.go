// Package entry defines the placeable content unit of the pagination
// engine.
//
// An Entry is either an opaque block or a list-shaped run of items. The
// engine never inspects payloads; it works from pixel heights, ordering
// keys, and, for lists, the item boundaries it may split on.
//
// # Content Kinds
//
// Kind is a closed set. Every switch over it handles all members, so
// adding a new list-shaped content type is a compile-visible exercise
// rather than a stringly-typed convention.
//
// # Measurement Keys
//
// Each entry derives a deterministic measurement key from its identity
// and content shape. The key is what the measurement store and the
// rendering collaborator agree on: the collaborator reports pixel
// heights under the key, the engine looks estimates up under the same
// key. List fragments encode their item window in the key, so a
// continuation and its source never share a measurement.
package entry

import (
	"fmt"

	"github.com/pagefold/pagefold/pkg/region"
)

// =============================================================================
// Kind - Closed Content Taxonomy
// =============================================================================

// Kind classifies an entry's content shape.
type Kind string

// The closed set of content kinds.
const (
	// KindBlock is an opaque rectangle. It is placed or rerouted whole.
	KindBlock Kind = "block"

	// KindItemList is an ordered run of items that may be split at item
	// boundaries.
	KindItemList Kind = "item-list"

	// KindIndexList is a generated index (table of contents style). It
	// splits like an item list but its items are derived, not authored.
	KindIndexList Kind = "index-list"
)

// IsList reports whether the kind is list-shaped, i.e. splittable at
// item boundaries.
func (k Kind) IsList() bool {
	switch k {
	case KindItemList, KindIndexList:
		return true
	case KindBlock:
		return false
	}
	return false
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindBlock, KindItemList, KindIndexList:
		return true
	}
	return false
}

// =============================================================================
// Items
// =============================================================================

// Item is one element of a list-shaped entry. The payload is opaque to
// the engine; only identity, an optional pinned region, and an optional
// height hint matter here.
type Item struct {
	ID         string         `json:"id" bson:"id"`
	Label      string         `json:"label,omitempty" bson:"label,omitempty"`
	Pin        *region.Region `json:"pin,omitempty" bson:"pin,omitempty"`
	HeightHint float64        `json:"height_hint,omitempty" bson:"height_hint,omitempty"`
}

// ListContent is the splittable portion of a list-shaped entry.
//
// Invariant: across all fragments split from one source entry, the
// StartIndex values are contiguous, windows do not overlap, and the item
// counts sum to TotalCount.
type ListContent struct {
	Items []Item `json:"items" bson:"items"`

	// StartIndex is the absolute index of Items[0] within the item run
	// of the source entry this fragment descends from.
	StartIndex int `json:"start_index" bson:"start_index"`

	// TotalCount is the item count of the source entry.
	TotalCount int `json:"total_count" bson:"total_count"`

	// IsContinuation is false only on the first fragment of a source
	// entry.
	IsContinuation bool `json:"is_continuation,omitempty" bson:"is_continuation,omitempty"`
}

// =============================================================================
// Entry
// =============================================================================

// Height heuristics used when no measurement exists for a key.
const (
	DefaultBlockEstimatePx = 120.0
	DefaultItemEstimatePx  = 48.0
)

// Entry is a placeable unit of content.
type Entry struct {
	// InstanceID is the stable identity of the underlying content.
	InstanceID string `json:"instance_id" bson:"instance_id"`

	Kind Kind `json:"kind" bson:"kind"`

	// SlotIndex and OrderIndex are the ascending tie-break ordering keys
	// within a region's work queue.
	SlotIndex  int `json:"slot_index" bson:"slot_index"`
	OrderIndex int `json:"order_index" bson:"order_index"`

	// HomeRegion is the entry's canonical region, derived once from the
	// template or an explicit placement. Pagination never mutates it.
	HomeRegion region.Region `json:"home_region" bson:"home_region"`

	// SourceRegion is the region the entry is currently queued against.
	// Rerouting mutates it.
	SourceRegion region.Region `json:"source_region" bson:"source_region"`

	// List is set iff Kind.IsList().
	List *ListContent `json:"list,omitempty" bson:"list,omitempty"`

	// MeasurementKey addresses this entry's height in the measurement
	// store. Derive with ComputeMeasurementKey; recompute after any
	// change to the content window.
	MeasurementKey string `json:"measurement_key" bson:"measurement_key"`

	// EstimatedHeight is the height used for placement: a trusted
	// measurement when one exists, a heuristic otherwise.
	EstimatedHeight float64 `json:"estimated_height" bson:"estimated_height"`

	// NeedsMeasurement is set when EstimatedHeight is a heuristic.
	NeedsMeasurement bool `json:"needs_measurement,omitempty" bson:"needs_measurement,omitempty"`
}

// ItemCount returns the number of items carried by a list entry, or 0
// for blocks.
func (e *Entry) ItemCount() int {
	if e.List == nil {
		return 0
	}
	return len(e.List.Items)
}

// IsSplittable reports whether the entry can be divided at an item
// boundary. Single-item lists place like blocks.
func (e *Entry) IsSplittable() bool {
	return e.Kind.IsList() && e.ItemCount() > 1
}

// ComputeMeasurementKey derives the entry's measurement key from its
// identity and content shape and stores it on the entry.
func (e *Entry) ComputeMeasurementKey() {
	if e.List != nil {
		e.MeasurementKey = ListMeasurementKey(e.InstanceID, e.Kind, e.List.StartIndex, len(e.List.Items), e.List.TotalCount)
		return
	}
	e.MeasurementKey = BlockMeasurementKey(e.InstanceID)
}

// HeuristicHeight returns the fallback estimate for the entry: the sum
// of per-item hints for lists, a fixed default for blocks.
func (e *Entry) HeuristicHeight() float64 {
	if e.List == nil {
		return DefaultBlockEstimatePx
	}
	var sum float64
	for _, it := range e.List.Items {
		if it.HeightHint > 0 {
			sum += it.HeightHint
		} else {
			sum += DefaultItemEstimatePx
		}
	}
	return sum
}

// Clone returns a deep copy of the entry. The engine clones before
// mutating SourceRegion or the item window so bucket inputs stay
// untouched.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.List != nil {
		l := *e.List
		l.Items = make([]Item, len(e.List.Items))
		copy(l.Items, e.List.Items)
		c.List = &l
	}
	return &c
}

// SplitPrefix divides a list entry after n items, returning the placed
// head and the continuation tail. The head keeps the entry's indices;
// the tail advances StartIndex, marks itself a continuation, and
// recomputes its measurement key. SplitPrefix panics if the entry is
// not splittable at n.
func (e *Entry) SplitPrefix(n int) (head, tail *Entry) {
	if e.List == nil || n <= 0 || n >= len(e.List.Items) {
		panic(fmt.Sprintf("entry: invalid split of %q at %d", e.InstanceID, n))
	}

	head = e.Clone()
	head.List.Items = head.List.Items[:n]
	head.ComputeMeasurementKey()

	tail = e.Clone()
	tail.List.Items = tail.List.Items[n:]
	tail.List.StartIndex = e.List.StartIndex + n
	tail.List.IsContinuation = true
	tail.ComputeMeasurementKey()
	return head, tail
}

// =============================================================================
// Measurement Keys
// =============================================================================

// BlockMeasurementKey returns the measurement key of an opaque block.
func BlockMeasurementKey(instanceID string) string {
	return fmt.Sprintf("blk:%s", instanceID)
}

// ListMeasurementKey returns the measurement key of a list fragment.
// The item window is part of the key so fragments of the same instance
// never collide.
func ListMeasurementKey(instanceID string, kind Kind, startIndex, itemCount, totalCount int) string {
	return fmt.Sprintf("lst:%s:%s:%d:%d:%d", instanceID, kind, startIndex, itemCount, totalCount)
}

// ByQueueOrder orders entries by their (SlotIndex, OrderIndex) tie-break
// keys, instance id as the final tie-break for determinism.
func ByQueueOrder(a, b *Entry) int {
	if a.SlotIndex != b.SlotIndex {
		return a.SlotIndex - b.SlotIndex
	}
	if a.OrderIndex != b.OrderIndex {
		return a.OrderIndex - b.OrderIndex
	}
	switch {
	case a.InstanceID < b.InstanceID:
		return -1
	case a.InstanceID > b.InstanceID:
		return 1
	}
	return 0
}
