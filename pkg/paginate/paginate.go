// Package paginate implements the placement engine: the algorithm that
// turns region buckets and a measurement snapshot into a concrete
// page/column/position assignment for every entry.
//
// Paginate is deterministic and referentially transparent: identical
// buckets, geometry, and measurement snapshot produce bit-identical
// plans. The engine performs no I/O and never blocks.
//
// # Algorithm
//
// Regions are processed in ascending reading order over a growing list
// of pages. Each region's work queue is the set of entries rerouted
// here from earlier regions plus the entries bucketed here, stable-
// sorted by (SlotIndex, OrderIndex). A cursor walks down the column;
// entries that fit are committed with their span, entries that do not
// fit are rerouted, split, or placed as flagged overflow.
//
// # Termination
//
// Three structural properties bound the computation on adversarial
// input:
//
//   - A visited set of (entry, destination region) pairs forbids
//     routing the same entry to the same destination twice.
//   - An entry that has been rerouted from a placement step once is
//     never rerouted from a placement step again.
//   - Page creation stops at Geometry.MaxPages, and each region's
//     placement loop stops at Geometry.MaxRegionIterations.
//
// When a bound trips, the engine degrades: entries are placed with
// overflow flags or left out of the plan and surfaced as warnings. The
// engine always prefers a degraded-but-terminating plan over failing to
// produce one.
package paginate

import (
	"slices"

	"github.com/pagefold/pagefold/pkg/bucket"
	"github.com/pagefold/pagefold/pkg/entry"
	"github.com/pagefold/pagefold/pkg/measure"
	"github.com/pagefold/pagefold/pkg/plan"
	"github.com/pagefold/pagefold/pkg/region"
)

// Paginate places every bucketed entry onto the canvas.
//
// requestedPageCount is a floor on the size of the returned plan: the
// plan has at least that many pages even when content fits in fewer. It
// never reduces the number of pages content actually requires.
func Paginate(buckets bucket.Buckets, geo region.Geometry, requestedPageCount int, snap measure.Snapshot) *plan.Plan {
	geo = geo.WithDefaults()

	st := &state{
		geo:        geo,
		snap:       snap,
		buckets:    buckets,
		pending:    make(map[region.Region][]*entry.Entry),
		placements: make(map[region.Region][]plan.Placed),
		visited:    make(map[string]map[region.Region]bool),
		pageCount:  initialPageCount(buckets, geo, requestedPageCount),
	}

	for ord := 0; ; ord++ {
		page := ord/geo.ColumnCount + 1
		if page > st.pageCount {
			break
		}
		st.placeRegion(region.Region{Page: page, Column: ord%geo.ColumnCount + 1})
	}

	return st.assemble()
}

// initialPageCount seeds the page list: the requested floor, extended to
// cover the furthest page any bucket is keyed to, capped at MaxPages.
func initialPageCount(buckets bucket.Buckets, geo region.Geometry, requested int) int {
	n := requested
	if n < 1 {
		n = 1
	}
	for r := range buckets {
		if r.Page > n {
			n = r.Page
		}
	}
	if n > geo.MaxPages {
		n = geo.MaxPages
	}
	return n
}

// state carries the engine's working data through one Paginate call.
type state struct {
	geo  region.Geometry
	snap measure.Snapshot

	buckets    bucket.Buckets
	pending    map[region.Region][]*entry.Entry
	placements map[region.Region][]plan.Placed
	warnings   []plan.OverflowWarning

	// visited maps entry identity (measurement key) to the set of
	// regions the entry has been routed to. Routing the same entry to
	// the same destination twice is structurally impossible.
	visited map[string]map[region.Region]bool

	pageCount int
}

// column tracks the placement cursor of the region being processed.
type column struct {
	region region.Region
	offset float64

	// full is set when the column absorbed an overflowing placeholder
	// or an unfittable single-item fragment. A full column accepts no
	// further entries; the cursor sits at the region bottom and
	// remaining queue entries are pushed onward.
	full bool
}

// placeRegion drains one region's work queue.
func (s *state) placeRegion(r region.Region) {
	queue := s.buildQueue(r)
	col := &column{region: r}

	for i, e := range queue {
		if i >= s.geo.MaxRegionIterations {
			// Iteration breaker: abandon the rest of the queue rather
			// than risk a self-feeding loop. The entries stay out of
			// the plan but are surfaced as warnings.
			for _, rest := range queue[i:] {
				s.warn(rest, r)
			}
			return
		}
		s.placeOne(col, e)
	}
}

// buildQueue assembles a region's work queue: carry-overs routed here
// first, then the bucket's own entries, deduplicated by measurement key,
// stable-sorted by the queue ordering keys.
func (s *state) buildQueue(r region.Region) []*entry.Entry {
	carried := s.pending[r]
	delete(s.pending, r)

	seen := make(map[string]bool, len(carried))
	queue := make([]*entry.Entry, 0, len(carried)+len(s.buckets[r]))
	for _, e := range carried {
		if seen[e.MeasurementKey] {
			continue
		}
		seen[e.MeasurementKey] = true
		queue = append(queue, e)
	}
	for _, e := range s.buckets[r] {
		if seen[e.MeasurementKey] {
			continue
		}
		seen[e.MeasurementKey] = true
		queue = append(queue, e.Clone())
	}

	slices.SortStableFunc(queue, entry.ByQueueOrder)
	return queue
}

// placeOne commits, splits, or reroutes a single queued entry.
func (s *state) placeOne(col *column, e *entry.Entry) {
	if col.full {
		// The column absorbed an overflow; nothing else competes for
		// its phantom space. Push the entry onward whole.
		s.forceRoute(col, e)
		return
	}

	h := s.estimate(e)
	span := region.Span{Top: col.offset, Bottom: col.offset + h}

	if span.Bottom+s.geo.VerticalSpacingPx <= s.geo.RegionHeightPx {
		s.commit(col, e, span, false, false)
		return
	}

	if e.IsSplittable() {
		s.splitAndPlace(col, e)
		return
	}

	// Block, or a single-item list: moves whole or not at all.
	if h > s.geo.RegionHeightPx {
		s.placeOversized(col, e, span)
		return
	}

	// Fittable in principle, just not in this region's remaining space.
	// One reroute per placement step; a refused route degrades to a
	// flagged overflow placement.
	if !s.routedOnce(e) && s.route(e, col.region) {
		return
	}
	s.commit(col, e, span, true, false)
	s.warn(e, col.region)
}

// placeOversized handles an entry taller than any region. It is placed
// here as an overflowing placeholder, the column is closed, and once
// per entry a copy is routed onward so the next region also shows the
// content rather than silently dropping it.
func (s *state) placeOversized(col *column, e *entry.Entry, span region.Span) {
	routed := false
	if !s.routedOnce(e) {
		routed = s.route(e.Clone(), col.region)
	}
	s.commit(col, e, span, true, routed)
	s.warn(e, col.region)
	col.full = true
	col.offset = s.geo.RegionHeightPx
}

// forceRoute pushes an entry out of a full column. Only the visited set
// and the page cap guard this path; if both refuse, the entry is placed
// in the full column as flagged overflow rather than dropped.
func (s *state) forceRoute(col *column, e *entry.Entry) {
	if s.route(e, col.region) {
		return
	}
	span := region.Span{Top: col.offset, Bottom: col.offset + s.estimate(e)}
	s.commit(col, e, span, true, false)
	s.warn(e, col.region)
}

// commit appends a placed entry to its column and advances the cursor.
func (s *state) commit(col *column, e *entry.Entry, span region.Span, overflow, overflowRouted bool) {
	e.SourceRegion = col.region
	s.placements[col.region] = append(s.placements[col.region], plan.Placed{
		Entry:          *e,
		Region:         col.region,
		Span:           span,
		Overflow:       overflow,
		OverflowRouted: overflowRouted,
	})
	if span.Bottom+s.geo.VerticalSpacingPx > col.offset {
		col.offset = span.Bottom + s.geo.VerticalSpacingPx
	}
}

// route queues an entry on the next region in reading order, creating a
// page when routing walks off the end. Returns false when the visited
// set already holds (entry, destination) or the page cap refuses a new
// page.
func (s *state) route(e *entry.Entry, from region.Region) bool {
	next := from.Next(s.geo.ColumnCount)
	if next.Page > s.pageCount {
		if s.pageCount >= s.geo.MaxPages {
			return false
		}
		s.pageCount++
	}

	dests := s.visited[e.MeasurementKey]
	if dests[next] {
		return false
	}
	if dests == nil {
		dests = make(map[region.Region]bool)
		s.visited[e.MeasurementKey] = dests
	}
	dests[next] = true

	e.SourceRegion = next
	s.pending[next] = append(s.pending[next], e)
	return true
}

// routedOnce reports whether the entry has already been rerouted to any
// destination.
func (s *state) routedOnce(e *entry.Entry) bool {
	return len(s.visited[e.MeasurementKey]) > 0
}

// estimate returns the entry's placement height: a trusted measurement
// when the snapshot has one, the entry's estimate otherwise.
func (s *state) estimate(e *entry.Entry) float64 {
	if h, ok := s.snap.Height(e.MeasurementKey); ok {
		return h
	}
	if e.EstimatedHeight > 0 {
		return e.EstimatedHeight
	}
	return e.HeuristicHeight()
}

// warn records an overflow warning for the entry at the given region.
func (s *state) warn(e *entry.Entry, r region.Region) {
	s.warnings = append(s.warnings, plan.OverflowWarning{
		InstanceID: e.InstanceID,
		Page:       r.Page,
		Column:     r.Column,
	})
}

// assemble builds the final plan: every page up to the (floor-respecting)
// page count, every column present even when empty.
func (s *state) assemble() *plan.Plan {
	p := &plan.Plan{
		Pages:            make([]plan.Page, 0, s.pageCount),
		OverflowWarnings: s.warnings,
	}
	for pageNo := 1; pageNo <= s.pageCount; pageNo++ {
		page := plan.Page{PageNumber: pageNo, Columns: make([]plan.Column, 0, s.geo.ColumnCount)}
		for colNo := 1; colNo <= s.geo.ColumnCount; colNo++ {
			r := region.Region{Page: pageNo, Column: colNo}
			page.Columns = append(page.Columns, plan.Column{
				ColumnNumber: colNo,
				Entries:      s.placements[r],
			})
		}
		p.Pages = append(p.Pages, page)
	}
	return p
}
