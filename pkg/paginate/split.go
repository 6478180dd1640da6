package paginate

import (
	"github.com/pagefold/pagefold/pkg/entry"
	"github.com/pagefold/pagefold/pkg/region"
)

// splitAndPlace runs the split search for a multi-item list that does
// not fit whole: find the largest item prefix whose height fits the
// remaining space, commit it here, and push the rest to the next region
// as a continuation fragment.
//
// Candidates are tried largest first. Candidates other than the single
// item are rejected outright when the cursor already sits in the
// region's dead zone: a list should not start in the bottom strip of a
// column. The single-item candidate is exempt so the search always
// makes forward progress.
func (s *state) splitAndPlace(col *column, e *entry.Entry) {
	count := e.ItemCount()
	top := col.offset
	inDeadZone := top > s.geo.DeadZoneTop()

	for n := count; n >= 1; n-- {
		if n > 1 && inDeadZone {
			continue
		}
		h := s.prefixHeight(e, n)
		if top+h+s.geo.VerticalSpacingPx <= s.geo.RegionHeightPx {
			s.acceptPrefix(col, e, n, h)
			return
		}
	}

	// Not even one item fits. Place the single item anyway, flagged,
	// and close the column; the remainder continues on the next region.
	h := s.prefixHeight(e, 1)
	head, tail := e.SplitPrefix(1)
	s.refreshEstimate(head)
	s.refreshEstimate(tail)

	s.commit(col, head, region.Span{Top: top, Bottom: top + h}, true, false)
	s.warn(head, col.region)
	col.full = true
	col.offset = s.geo.RegionHeightPx

	if !s.route(tail, col.region) {
		s.commit(col, tail, region.Span{Top: col.offset, Bottom: col.offset + s.estimate(tail)}, true, false)
		s.warn(tail, col.region)
	}
}

// acceptPrefix commits the accepted n-item prefix and routes the
// remainder, if any.
func (s *state) acceptPrefix(col *column, e *entry.Entry, n int, h float64) {
	span := region.Span{Top: col.offset, Bottom: col.offset + h}

	if n >= e.ItemCount() {
		// The full list fit after all: an exact fragment measurement
		// can come in under the whole-list estimate the fit check used.
		s.commit(col, e, span, false, false)
		return
	}

	head, tail := e.SplitPrefix(n)
	head.EstimatedHeight = h
	s.refreshEstimate(tail)

	s.commit(col, head, span, false, false)

	if !s.route(tail, col.region) {
		// Routing refused (page cap). Keep the continuation visible as
		// flagged overflow instead of dropping items.
		s.commit(col, tail, region.Span{Top: col.offset, Bottom: col.offset + s.estimate(tail)}, true, false)
		s.warn(tail, col.region)
	}
}

// prefixHeight computes the height of the first n items of a list
// entry, preferring real data over guesses:
//
//  1. an exact measurement keyed to that exact prefix window
//  2. the full list's measured height scaled by item-count ratio
//  3. the per-item heuristic sum
func (s *state) prefixHeight(e *entry.Entry, n int) float64 {
	count := e.ItemCount()
	if n >= count {
		return s.estimate(e)
	}

	key := entry.ListMeasurementKey(e.InstanceID, e.Kind, e.List.StartIndex, n, e.List.TotalCount)
	if h, ok := s.snap.Height(key); ok {
		return h
	}

	if full, ok := s.snap.Height(e.MeasurementKey); ok {
		return full * float64(n) / float64(count)
	}

	var sum float64
	for _, it := range e.List.Items[:n] {
		if it.HeightHint > 0 {
			sum += it.HeightHint
		} else {
			sum += entry.DefaultItemEstimatePx
		}
	}
	return sum
}

// refreshEstimate re-resolves an entry's estimated height after its
// measurement key changed, e.g. after a split.
func (s *state) refreshEstimate(e *entry.Entry) {
	if h, ok := s.snap.Height(e.MeasurementKey); ok {
		e.EstimatedHeight = h
		e.NeedsMeasurement = false
		return
	}
	e.EstimatedHeight = e.HeuristicHeight()
	e.NeedsMeasurement = true
}
