// Package plan defines the output of the pagination engine: a concrete
// page/column/position assignment for every placed entry.
//
// A Plan is immutable once produced. The composition layer keeps two
// live copies during orchestration, pending (just computed, not yet
// visible) and committed (what consumers observe), and only ever swaps
// whole Plan values, so readers always see a consistent snapshot.
//
// Plans serialize to JSON for files and HTTP responses and carry bson
// tags for the mongo archive backend.
package plan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pagefold/pagefold/pkg/entry"
	"github.com/pagefold/pagefold/pkg/region"
)

// =============================================================================
// Placed Entries
// =============================================================================

// Placed is an entry with its final region and vertical span.
type Placed struct {
	Entry  entry.Entry   `json:"entry" bson:"entry"`
	Region region.Region `json:"region" bson:"region"`
	Span   region.Span   `json:"span" bson:"span"`

	// Overflow marks an entry placed despite exceeding its region's
	// available space. Overflowing entries are flagged and surfaced,
	// never dropped.
	Overflow bool `json:"overflow,omitempty" bson:"overflow,omitempty"`

	// OverflowRouted marks an entry that was also force-routed onward
	// because it can never fit a region as-is.
	OverflowRouted bool `json:"overflow_routed,omitempty" bson:"overflow_routed,omitempty"`
}

// =============================================================================
// Plan Structure
// =============================================================================

// Column is one column of placed entries, in top-to-bottom order.
type Column struct {
	ColumnNumber int      `json:"column_number" bson:"column_number"`
	Entries      []Placed `json:"entries" bson:"entries"`
}

// Page is one page of columns, in left-to-right order.
type Page struct {
	PageNumber int      `json:"page_number" bson:"page_number"`
	Columns    []Column `json:"columns" bson:"columns"`
}

// OverflowWarning records an entry that could not be placed without
// exceeding its region.
type OverflowWarning struct {
	InstanceID string `json:"instance_id" bson:"instance_id"`
	Page       int    `json:"page" bson:"page"`
	Column     int    `json:"column" bson:"column"`
}

// Plan is the complete placement of a document onto the canvas.
type Plan struct {
	Pages            []Page            `json:"pages" bson:"pages"`
	OverflowWarnings []OverflowWarning `json:"overflow_warnings,omitempty" bson:"overflow_warnings,omitempty"`
}

// PageCount returns the number of pages in the plan.
func (p *Plan) PageCount() int { return len(p.Pages) }

// EntryCount returns the total number of placed entries.
func (p *Plan) EntryCount() int {
	n := 0
	for _, pg := range p.Pages {
		for _, col := range pg.Columns {
			n += len(col.Entries)
		}
	}
	return n
}

// Entries returns all placed entries in reading order.
func (p *Plan) Entries() []Placed {
	out := make([]Placed, 0, p.EntryCount())
	for _, pg := range p.Pages {
		for _, col := range pg.Columns {
			out = append(out, col.Entries...)
		}
	}
	return out
}

// Region returns the column holding (page, column), if present.
func (p *Plan) Region(r region.Region) (Column, bool) {
	for _, pg := range p.Pages {
		if pg.PageNumber != r.Page {
			continue
		}
		for _, col := range pg.Columns {
			if col.ColumnNumber == r.Column {
				return col, true
			}
		}
	}
	return Column{}, false
}

// Equal reports whether two plans describe identical placements.
// Serialization equality is placement equality: plans are plain data.
func Equal(a, b *Plan) bool {
	if a == nil || b == nil {
		return a == b
	}
	da, err := json.Marshal(a)
	if err != nil {
		return false
	}
	db, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(da) == string(db)
}

// =============================================================================
// Slot Assignments
// =============================================================================

// SlotAssignment records where a placed instance landed in the last
// committed plan, alongside its immutable home region. The bucket
// builder reseeds from these on the next cycle so content that shrinks
// back below region capacity drifts toward its home region instead of
// staying stuck in an overflow region.
type SlotAssignment struct {
	InstanceID string        `json:"instance_id" bson:"instance_id"`
	Region     region.Region `json:"region" bson:"region"`
	HomeRegion region.Region `json:"home_region" bson:"home_region"`
	SlotIndex  int           `json:"slot_index" bson:"slot_index"`
	OrderIndex int           `json:"order_index" bson:"order_index"`
}

// Assignments derives one SlotAssignment per placed instance. For split
// lists the first fragment wins: the instance is considered assigned to
// the region where its content begins.
func (p *Plan) Assignments() map[string]SlotAssignment {
	out := make(map[string]SlotAssignment)
	for _, pl := range p.Entries() {
		if _, seen := out[pl.Entry.InstanceID]; seen {
			continue
		}
		out[pl.Entry.InstanceID] = SlotAssignment{
			InstanceID: pl.Entry.InstanceID,
			Region:     pl.Region,
			HomeRegion: pl.Entry.HomeRegion,
			SlotIndex:  pl.Entry.SlotIndex,
			OrderIndex: pl.Entry.OrderIndex,
		}
	}
	return out
}

// =============================================================================
// Serialization API
// =============================================================================

// Marshal serializes a Plan to pretty-printed JSON bytes.
func Marshal(p *Plan) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Unmarshal deserializes JSON bytes into a Plan.
// Validates structural invariants: ascending page numbers and in-range
// column numbers.
func Unmarshal(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}

	for i, pg := range p.Pages {
		if pg.PageNumber != i+1 {
			return nil, fmt.Errorf("plan page %d numbered %d", i+1, pg.PageNumber)
		}
		for _, col := range pg.Columns {
			if col.ColumnNumber < 1 {
				return nil, fmt.Errorf("plan page %d has column numbered %d", pg.PageNumber, col.ColumnNumber)
			}
		}
	}
	return &p, nil
}

// WriteFile writes a Plan to a JSON file.
func WriteFile(p *Plan, path string) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile reads a Plan from a JSON file.
func ReadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Unmarshal(data)
}
