package region

import "testing"

func TestRegionKey(t *testing.T) {
	tests := []struct {
		r    Region
		want string
	}{
		{Region{Page: 1, Column: 1}, "p1c1"},
		{Region{Page: 2, Column: 1}, "p2c1"},
		{Region{Page: 10, Column: 3}, "p10c3"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.r.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegionOrder(t *testing.T) {
	tests := []struct {
		r    Region
		cols int
		want int
	}{
		{Region{Page: 1, Column: 1}, 2, 0},
		{Region{Page: 1, Column: 2}, 2, 1},
		{Region{Page: 2, Column: 1}, 2, 2},
		{Region{Page: 3, Column: 3}, 3, 8},
	}

	for _, tt := range tests {
		if got := tt.r.Order(tt.cols); got != tt.want {
			t.Errorf("%s.Order(%d) = %d, want %d", tt.r.Key(), tt.cols, got, tt.want)
		}
	}
}

func TestRegionNext(t *testing.T) {
	tests := []struct {
		r    Region
		cols int
		want Region
	}{
		{Region{Page: 1, Column: 1}, 2, Region{Page: 1, Column: 2}},
		{Region{Page: 1, Column: 2}, 2, Region{Page: 2, Column: 1}},
		{Region{Page: 1, Column: 1}, 1, Region{Page: 2, Column: 1}},
		{Region{Page: 5, Column: 3}, 3, Region{Page: 6, Column: 1}},
	}

	for _, tt := range tests {
		if got := tt.r.Next(tt.cols); got != tt.want {
			t.Errorf("%s.Next(%d) = %s, want %s", tt.r.Key(), tt.cols, got.Key(), tt.want.Key())
		}
	}
}

func TestCompare(t *testing.T) {
	a := Region{Page: 1, Column: 2}
	b := Region{Page: 2, Column: 1}

	if Compare(a, b) >= 0 {
		t.Error("p1c2 should order before p2c1")
	}
	if Compare(b, a) <= 0 {
		t.Error("p2c1 should order after p1c2")
	}
	if Compare(a, a) != 0 {
		t.Error("a region should compare equal to itself")
	}
}

func TestSpanHeight(t *testing.T) {
	s := Span{Top: 100, Bottom: 340}
	if got := s.Height(); got != 240 {
		t.Errorf("Height() = %g, want 240", got)
	}
}

func TestGeometryWithDefaults(t *testing.T) {
	g := Geometry{}.WithDefaults()

	if g.ColumnCount != DefaultColumnCount {
		t.Errorf("ColumnCount = %d, want %d", g.ColumnCount, DefaultColumnCount)
	}
	if g.RegionHeightPx != DefaultRegionHeightPx {
		t.Errorf("RegionHeightPx = %g, want %g", g.RegionHeightPx, DefaultRegionHeightPx)
	}
	if g.DeadZoneFraction != DefaultDeadZoneFraction {
		t.Errorf("DeadZoneFraction = %g, want %g", g.DeadZoneFraction, DefaultDeadZoneFraction)
	}
	if g.MaxPages != DefaultMaxPages {
		t.Errorf("MaxPages = %d, want %d", g.MaxPages, DefaultMaxPages)
	}

	// Set fields survive.
	g = Geometry{ColumnCount: 3, RegionHeightPx: 500, DeadZoneFraction: 0.9}.WithDefaults()
	if g.ColumnCount != 3 || g.RegionHeightPx != 500 || g.DeadZoneFraction != 0.9 {
		t.Errorf("WithDefaults overwrote set fields: %+v", g)
	}
}

func TestGeometryWithDefaultsRejectsOutOfRangeDeadZone(t *testing.T) {
	// A dead-zone fraction outside (0, 1] is a misconfiguration and
	// falls back to the default.
	for _, f := range []float64{-0.5, 0, 1.5} {
		g := Geometry{DeadZoneFraction: f}.WithDefaults()
		if g.DeadZoneFraction != DefaultDeadZoneFraction {
			t.Errorf("DeadZoneFraction %g should reset to default, got %g", f, g.DeadZoneFraction)
		}
	}
}

func TestGeometryValidate(t *testing.T) {
	if err := (Geometry{}.WithDefaults()).Validate(); err != nil {
		t.Errorf("default geometry should validate: %v", err)
	}
	if err := (Geometry{ColumnCount: 0, PageWidthPx: 816, RegionHeightPx: 1056}).Validate(); err == nil {
		t.Error("zero column count should not validate")
	}
	if err := (Geometry{ColumnCount: 2, PageWidthPx: 816, RegionHeightPx: -1}).Validate(); err == nil {
		t.Error("negative region height should not validate")
	}
}

func TestGeometryDeadZoneTop(t *testing.T) {
	g := Geometry{RegionHeightPx: 1000, DeadZoneFraction: 0.8}
	if got := g.DeadZoneTop(); got != 800 {
		t.Errorf("DeadZoneTop() = %g, want 800", got)
	}
}

func TestGeometryColumnForX(t *testing.T) {
	g := Geometry{ColumnCount: 2, PageWidthPx: 800}

	tests := []struct {
		x    float64
		want int
	}{
		{0, 1},
		{399, 1},
		{400, 2},
		{799, 2},
		{-50, 1},   // clamps left
		{5000, 2},  // clamps right
	}

	for _, tt := range tests {
		if got := g.ColumnForX(tt.x); got != tt.want {
			t.Errorf("ColumnForX(%g) = %d, want %d", tt.x, got, tt.want)
		}
	}
}
