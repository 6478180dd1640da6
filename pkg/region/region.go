// Package region defines the addressing scheme of the paginated canvas.
//
// A Region is a (page, column) pair. Regions are computed keys, not
// persisted objects: any piece of code that needs "the third column on
// page two" constructs the value directly. Regions carry a total linear
// reading order (page-major, column-minor) which the pagination engine
// walks when routing content forward.
//
// Geometry bundles the fixed measurements of the canvas: column count,
// pixel dimensions, inter-entry spacing, and the bounds that keep
// pagination finite on pathological input.
package region

import "fmt"

// =============================================================================
// Region - (Page, Column) Address
// =============================================================================

// Region identifies one column on one page.
// Page is 1-based; Column is 1..ColumnCount.
type Region struct {
	Page   int `json:"page" bson:"page"`
	Column int `json:"column" bson:"column"`
}

// Key returns a stable string form of the region, e.g. "p2c1".
// Used as a map key for buckets and visited sets.
func (r Region) Key() string {
	return fmt.Sprintf("p%dc%d", r.Page, r.Column)
}

// Order returns the region's position in reading order, counting from 0.
// Reading order is page-major, column-minor: p1c1, p1c2, ..., p2c1, ...
func (r Region) Order(columnCount int) int {
	return (r.Page-1)*columnCount + (r.Column - 1)
}

// Next returns the region that follows r in reading order.
// The last column of a page is followed by the first column of the next
// page; callers decide whether that page may actually be created.
func (r Region) Next(columnCount int) Region {
	if r.Column < columnCount {
		return Region{Page: r.Page, Column: r.Column + 1}
	}
	return Region{Page: r.Page + 1, Column: 1}
}

// Compare orders two regions by reading order. The result is negative,
// zero, or positive following the cmp convention, so it can be passed to
// slices.SortFunc.
func Compare(a, b Region) int {
	if a.Page != b.Page {
		return a.Page - b.Page
	}
	return a.Column - b.Column
}

// =============================================================================
// Span - Vertical Extent of a Placed Entry
// =============================================================================

// Span is the vertical extent an entry occupies within its column.
// All coordinates are in pixels, measured from the top of the region.
type Span struct {
	Top    float64 `json:"top" bson:"top"`
	Bottom float64 `json:"bottom" bson:"bottom"`
}

// Height returns the vertical size of the span.
func (s Span) Height() float64 { return s.Bottom - s.Top }

// =============================================================================
// Geometry - Canvas Measurements and Safety Bounds
// =============================================================================

// Defaults for Geometry. Letter-size canvas at 96 dpi with two columns.
const (
	DefaultColumnCount       = 2
	DefaultPageWidthPx       = 816.0
	DefaultRegionHeightPx    = 1056.0
	DefaultVerticalSpacingPx = 8.0

	// DefaultDeadZoneFraction is the fraction of the region height below
	// which a split fragment may still begin. Fragments whose top offset
	// falls past this boundary are pushed to the next region instead of
	// starting in the narrow strip at the bottom of a column. The
	// single-item fragment is exempt to guarantee forward progress.
	DefaultDeadZoneFraction = 0.8

	// DefaultMaxPages caps lazy page creation. Content that still does
	// not fit by this point is overflow-flagged rather than given more
	// room.
	DefaultMaxPages = 50

	// DefaultMaxRegionIterations caps the placement loop of a single
	// region. The queue of a healthy region shrinks on every step; the
	// cap only matters if a routing bug feeds a region its own output.
	DefaultMaxRegionIterations = 500
)

// Geometry describes the fixed shape of the canvas and the safety bounds
// of the pagination engine. The zero value is not usable; construct via
// WithDefaults or fill every field.
type Geometry struct {
	ColumnCount       int     `json:"column_count" bson:"column_count"`
	PageWidthPx       float64 `json:"page_width_px" bson:"page_width_px"`
	RegionHeightPx    float64 `json:"region_height_px" bson:"region_height_px"`
	VerticalSpacingPx float64 `json:"vertical_spacing_px" bson:"vertical_spacing_px"`

	// DeadZoneFraction configures the split-search dead zone.
	// See DefaultDeadZoneFraction. A value of 1 disables the check in
	// all but the degenerate case of a fragment starting below the
	// region's bottom edge.
	DeadZoneFraction float64 `json:"dead_zone_fraction,omitempty" bson:"dead_zone_fraction,omitempty"`

	MaxPages            int `json:"max_pages,omitempty" bson:"max_pages,omitempty"`
	MaxRegionIterations int `json:"max_region_iterations,omitempty" bson:"max_region_iterations,omitempty"`
}

// WithDefaults returns a copy of g with every unset field replaced by
// its default value.
func (g Geometry) WithDefaults() Geometry {
	if g.ColumnCount <= 0 {
		g.ColumnCount = DefaultColumnCount
	}
	if g.PageWidthPx <= 0 {
		g.PageWidthPx = DefaultPageWidthPx
	}
	if g.RegionHeightPx <= 0 {
		g.RegionHeightPx = DefaultRegionHeightPx
	}
	if g.VerticalSpacingPx < 0 {
		g.VerticalSpacingPx = DefaultVerticalSpacingPx
	}
	if g.DeadZoneFraction <= 0 || g.DeadZoneFraction > 1 {
		g.DeadZoneFraction = DefaultDeadZoneFraction
	}
	if g.MaxPages <= 0 {
		g.MaxPages = DefaultMaxPages
	}
	if g.MaxRegionIterations <= 0 {
		g.MaxRegionIterations = DefaultMaxRegionIterations
	}
	return g
}

// Validate reports whether the geometry describes a usable canvas.
func (g Geometry) Validate() error {
	if g.ColumnCount <= 0 {
		return fmt.Errorf("column count must be positive, got %d", g.ColumnCount)
	}
	if g.PageWidthPx <= 0 {
		return fmt.Errorf("page width must be positive, got %g", g.PageWidthPx)
	}
	if g.RegionHeightPx <= 0 {
		return fmt.Errorf("region height must be positive, got %g", g.RegionHeightPx)
	}
	return nil
}

// DeadZoneTop returns the pixel offset past which a split fragment may
// not begin.
func (g Geometry) DeadZoneTop() float64 {
	return g.RegionHeightPx * g.DeadZoneFraction
}

// ColumnForX maps a horizontal pixel coordinate to a column number.
// Used to infer a slot's home column from its midpoint. Coordinates
// outside the page clamp to the first or last column.
func (g Geometry) ColumnForX(x float64) int {
	colWidth := g.PageWidthPx / float64(g.ColumnCount)
	col := int(x/colWidth) + 1
	if col < 1 {
		return 1
	}
	if col > g.ColumnCount {
		return g.ColumnCount
	}
	return col
}
