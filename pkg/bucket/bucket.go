// Package bucket groups a document's content into per-region work
// queues for the pagination engine.
//
// Building buckets is cheap and pure: a function of the instances, the
// template, the geometry, the domain data, and a measurement snapshot.
// The orchestration layer rebuilds buckets eagerly on every structural
// change and leaves the expensive pagination step for later.
//
// # Home Regions
//
// Every instance resolves a home region once per build: an explicit
// placement wins, otherwise the template slot's horizontal midpoint
// picks the column (and the slot the page), otherwise the last
// committed assignment is consulted, otherwise the first region. The
// entry's source region (where it is queued) always starts at home,
// so content that previously overflowed drifts back toward its home
// region when it shrinks instead of sticking in the overflow region.
//
// # List Partitioning
//
// List-shaped instances resolve their items from the domain data and
// partition them by each item's pin (default: the instance's home).
// Each partition becomes one list entry whose measurement key encodes
// its item window.
package bucket

import (
	"slices"

	"github.com/pagefold/pagefold/pkg/entry"
	"github.com/pagefold/pagefold/pkg/measure"
	"github.com/pagefold/pagefold/pkg/plan"
	"github.com/pagefold/pagefold/pkg/region"
)

// =============================================================================
// Inputs
// =============================================================================

// Instance is one component instance on the document.
type Instance struct {
	ID   string     `json:"id" bson:"id"`
	Kind entry.Kind `json:"kind" bson:"kind"`

	SlotIndex  int `json:"slot_index" bson:"slot_index"`
	OrderIndex int `json:"order_index" bson:"order_index"`

	// Placement pins the instance to an explicit home region,
	// overriding template inference.
	Placement *region.Region `json:"placement,omitempty" bson:"placement,omitempty"`

	// DataRef names the item list backing a list-shaped instance.
	// Ignored for blocks.
	DataRef string `json:"data_ref,omitempty" bson:"data_ref,omitempty"`
}

// Slot is a template slot: a rectangle on a page that anchors an
// instance. Only the horizontal midpoint and the page matter for home
// region inference.
type Slot struct {
	Index      int     `json:"index" bson:"index"`
	InstanceID string  `json:"instance_id" bson:"instance_id"`
	Page       int     `json:"page,omitempty" bson:"page,omitempty"`
	X          float64 `json:"x" bson:"x"`
	Y          float64 `json:"y" bson:"y"`
	Width      float64 `json:"width" bson:"width"`
	Height     float64 `json:"height" bson:"height"`
}

// Template is the slot layout the document was authored against.
type Template struct {
	Slots []Slot `json:"slots" bson:"slots"`
}

// slotFor returns the slot anchoring the given instance, if any.
func (t Template) slotFor(instanceID string) (Slot, bool) {
	for _, s := range t.Slots {
		if s.InstanceID == instanceID {
			return s, true
		}
	}
	return Slot{}, false
}

// DataSources maps data reference names to ordered item lists.
type DataSources map[string][]entry.Item

// Resolver resolves an instance's data reference into its ordered item
// list. Implementations must treat unresolvable references as empty
// lists, not errors; a broken reference degrades that one instance, not
// the whole build.
type Resolver interface {
	ResolveItems(kind entry.Kind, dataRef string, sources DataSources) []entry.Item
}

// MapResolver resolves references by direct lookup in the data sources.
type MapResolver struct{}

// ResolveItems returns the named list, or nil when the reference does
// not resolve.
func (MapResolver) ResolveItems(_ entry.Kind, dataRef string, sources DataSources) []entry.Item {
	if dataRef == "" || sources == nil {
		return nil
	}
	return sources[dataRef]
}

// Input bundles everything Build consumes.
type Input struct {
	Instances    []Instance
	Template     Template
	Geometry     region.Geometry
	Sources      DataSources
	Resolver     Resolver // nil uses MapResolver
	Measurements measure.Snapshot

	// Prior carries the slot assignments of the last committed plan,
	// keyed by instance id. Optional.
	Prior map[string]plan.SlotAssignment
}

// =============================================================================
// Buckets
// =============================================================================

// Buckets maps each region to the ordered entries currently queued
// against it.
type Buckets map[region.Region][]*entry.Entry

// Regions returns the bucketed regions in reading order.
func (b Buckets) Regions() []region.Region {
	out := make([]region.Region, 0, len(b))
	for r := range b {
		out = append(out, r)
	}
	slices.SortFunc(out, region.Compare)
	return out
}

// EntryCount returns the total number of bucketed entries.
func (b Buckets) EntryCount() int {
	n := 0
	for _, es := range b {
		n += len(es)
	}
	return n
}

// =============================================================================
// Build
// =============================================================================

// Build produces region buckets for the given document state. Build is
// a pure function of its input: it mutates nothing and returns a fresh
// structure on every call.
func Build(in Input) Buckets {
	geo := in.Geometry.WithDefaults()
	resolver := in.Resolver
	if resolver == nil {
		resolver = MapResolver{}
	}

	buckets := make(Buckets)
	add := func(e *entry.Entry) {
		e.ComputeMeasurementKey()
		if h, ok := in.Measurements.Height(e.MeasurementKey); ok {
			e.EstimatedHeight = h
		} else {
			e.EstimatedHeight = e.HeuristicHeight()
			e.NeedsMeasurement = true
		}
		buckets[e.SourceRegion] = append(buckets[e.SourceRegion], e)
	}

	for _, inst := range in.Instances {
		home, slotIdx, orderIdx := resolvePlacement(inst, in.Template, geo, in.Prior)

		if !inst.Kind.IsList() {
			add(&entry.Entry{
				InstanceID:   inst.ID,
				Kind:         entry.KindBlock,
				SlotIndex:    slotIdx,
				OrderIndex:   orderIdx,
				HomeRegion:   home,
				SourceRegion: home,
			})
			continue
		}

		items := resolver.ResolveItems(inst.Kind, inst.DataRef, in.Sources)
		for ord, part := range partitionByPin(items, home) {
			add(&entry.Entry{
				InstanceID:   inst.ID,
				Kind:         inst.Kind,
				SlotIndex:    slotIdx,
				OrderIndex:   orderIdx + ord,
				HomeRegion:   home,
				SourceRegion: part.region,
				List: &entry.ListContent{
					Items:      part.items,
					StartIndex: part.start,
					TotalCount: len(part.items),
				},
			})
		}
	}

	for r := range buckets {
		slices.SortStableFunc(buckets[r], entry.ByQueueOrder)
	}
	return buckets
}

// resolvePlacement derives the home region and ordering keys for an
// instance: explicit placement, then template slot, then the prior
// committed assignment, then the first region.
func resolvePlacement(inst Instance, tmpl Template, geo region.Geometry, prior map[string]plan.SlotAssignment) (region.Region, int, int) {
	slotIdx, orderIdx := inst.SlotIndex, inst.OrderIndex

	if slot, ok := tmpl.slotFor(inst.ID); ok {
		if inst.SlotIndex == 0 {
			slotIdx = slot.Index
		}
		if inst.Placement != nil {
			return *inst.Placement, slotIdx, orderIdx
		}
		page := slot.Page
		if page < 1 {
			page = 1
		}
		col := geo.ColumnForX(slot.X + slot.Width/2)
		return region.Region{Page: page, Column: col}, slotIdx, orderIdx
	}

	if inst.Placement != nil {
		return *inst.Placement, slotIdx, orderIdx
	}

	if pa, ok := prior[inst.ID]; ok {
		if inst.SlotIndex == 0 {
			slotIdx = pa.SlotIndex
		}
		if inst.OrderIndex == 0 {
			orderIdx = pa.OrderIndex
		}
		return pa.HomeRegion, slotIdx, orderIdx
	}

	return region.Region{Page: 1, Column: 1}, slotIdx, orderIdx
}

// partition is one pin group of a list instance's items.
type partition struct {
	region region.Region
	items  []entry.Item
	start  int
}

// partitionByPin groups items by their pinned region, defaulting to the
// instance's home. Group order is: home first, then pinned groups in
// reading order. Within a group, items keep their source order; the
// group's start index is the position of its first item in the full
// run.
func partitionByPin(items []entry.Item, home region.Region) []partition {
	if len(items) == 0 {
		return nil
	}

	groups := make(map[region.Region]*partition)
	order := []region.Region{}
	for i, it := range items {
		r := home
		if it.Pin != nil {
			r = *it.Pin
		}
		g, ok := groups[r]
		if !ok {
			g = &partition{region: r, start: i}
			groups[r] = g
			order = append(order, r)
		}
		g.items = append(g.items, it)
	}

	slices.SortFunc(order, func(a, b region.Region) int {
		if a == home && b != home {
			return -1
		}
		if b == home && a != home {
			return 1
		}
		return region.Compare(a, b)
	})

	out := make([]partition, 0, len(order))
	for _, r := range order {
		out = append(out, *groups[r])
	}
	return out
}
