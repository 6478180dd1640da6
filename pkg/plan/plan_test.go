package plan

import (
	"path/filepath"
	"testing"

	"github.com/pagefold/pagefold/pkg/entry"
	"github.com/pagefold/pagefold/pkg/region"
)

func samplePlan() *Plan {
	return &Plan{
		Pages: []Page{
			{
				PageNumber: 1,
				Columns: []Column{
					{ColumnNumber: 1, Entries: []Placed{
						{
							Entry:  entry.Entry{InstanceID: "hero", Kind: entry.KindBlock, HomeRegion: region.Region{Page: 1, Column: 1}},
							Region: region.Region{Page: 1, Column: 1},
							Span:   region.Span{Top: 0, Bottom: 300},
						},
						{
							Entry: entry.Entry{
								InstanceID: "news",
								Kind:       entry.KindItemList,
								OrderIndex: 1,
								HomeRegion: region.Region{Page: 1, Column: 1},
								List:       &entry.ListContent{Items: []entry.Item{{ID: "a"}}, TotalCount: 2},
							},
							Region: region.Region{Page: 1, Column: 1},
							Span:   region.Span{Top: 310, Bottom: 500},
						},
					}},
					{ColumnNumber: 2},
				},
			},
			{
				PageNumber: 2,
				Columns: []Column{
					{ColumnNumber: 1, Entries: []Placed{
						{
							Entry: entry.Entry{
								InstanceID: "news",
								Kind:       entry.KindItemList,
								OrderIndex: 1,
								HomeRegion: region.Region{Page: 1, Column: 1},
								List:       &entry.ListContent{Items: []entry.Item{{ID: "b"}}, StartIndex: 1, TotalCount: 2, IsContinuation: true},
							},
							Region: region.Region{Page: 2, Column: 1},
							Span:   region.Span{Top: 0, Bottom: 150},
						},
					}},
					{ColumnNumber: 2},
				},
			},
		},
		OverflowWarnings: []OverflowWarning{{InstanceID: "news", Page: 2, Column: 1}},
	}
}

func TestPlanCounts(t *testing.T) {
	p := samplePlan()

	if p.PageCount() != 2 {
		t.Errorf("PageCount = %d, want 2", p.PageCount())
	}
	if p.EntryCount() != 3 {
		t.Errorf("EntryCount = %d, want 3", p.EntryCount())
	}
	if got := len(p.Entries()); got != 3 {
		t.Errorf("Entries returned %d, want 3", got)
	}
}

func TestPlanRegion(t *testing.T) {
	p := samplePlan()

	col, ok := p.Region(region.Region{Page: 1, Column: 1})
	if !ok || len(col.Entries) != 2 {
		t.Errorf("Region(p1c1) = %d entries/%v, want 2/true", len(col.Entries), ok)
	}

	if _, ok := p.Region(region.Region{Page: 9, Column: 1}); ok {
		t.Error("Region should miss for absent pages")
	}
}

func TestPlanEqual(t *testing.T) {
	a, b := samplePlan(), samplePlan()
	if !Equal(a, b) {
		t.Error("identical plans should compare equal")
	}

	b.Pages[0].Columns[0].Entries[0].Span.Bottom = 999
	if Equal(a, b) {
		t.Error("differing spans should compare unequal")
	}

	if Equal(a, nil) {
		t.Error("a plan never equals nil")
	}
	if !Equal(nil, nil) {
		t.Error("nil equals nil")
	}
}

func TestAssignmentsFirstFragmentWins(t *testing.T) {
	p := samplePlan()

	as := p.Assignments()
	if len(as) != 2 {
		t.Fatalf("got %d assignments, want 2", len(as))
	}

	// The news list is split over two pages; the instance is assigned
	// where its content begins.
	news := as["news"]
	if news.Region != (region.Region{Page: 1, Column: 1}) {
		t.Errorf("news assigned to %s, want p1c1", news.Region.Key())
	}
	if news.HomeRegion != (region.Region{Page: 1, Column: 1}) {
		t.Errorf("news home = %s", news.HomeRegion.Key())
	}
	if news.OrderIndex != 1 {
		t.Errorf("news order index = %d, want 1", news.OrderIndex)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	p := samplePlan()

	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !Equal(p, got) {
		t.Error("round trip changed the plan")
	}
}

func TestUnmarshalValidates(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"bad page numbering", `{"pages":[{"page_number":2,"columns":[]}]}`},
		{"bad column number", `{"pages":[{"page_number":1,"columns":[{"column_number":0,"entries":[]}]}]}`},
		{"not json", `{pages}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tt.json)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.plan.json")
	p := samplePlan()

	if err := WriteFile(p, path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !Equal(p, got) {
		t.Error("file round trip changed the plan")
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("reading a missing file should error")
	}
}
