package cli

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pagefold/pagefold/pkg/bucket"
	"github.com/pagefold/pagefold/pkg/entry"
	"github.com/pagefold/pagefold/pkg/errors"
	"github.com/pagefold/pagefold/pkg/measure"
	"github.com/pagefold/pagefold/pkg/region"
)

// Document is a fully parsed document file: the instance set, the
// template, the geometry, the domain data, and an optional seed of
// measured heights.
type Document struct {
	ID             string
	RequestedPages int
	Geometry       region.Geometry
	Instances      []bucket.Instance
	Template       bucket.Template
	Sources        bucket.DataSources
	Seed           measure.Snapshot
}

// =============================================================================
// TOML Schema
// =============================================================================

// documentFile mirrors the on-disk TOML document format.
//
// Example:
//
//	id = "newsletter-2026-08"
//	requested_pages = 2
//
//	[geometry]
//	column_count = 2
//	page_width_px = 816.0
//	region_height_px = 1056.0
//
//	[[instance]]
//	id = "intro"
//	kind = "block"
//	slot_index = 1
//
//	[[instance]]
//	id = "stories"
//	kind = "item-list"
//	slot_index = 2
//	data_ref = "stories"
//
//	[[slot]]
//	index = 1
//	instance_id = "intro"
//	page = 1
//	x = 0.0
//	width = 408.0
//
//	[[source]]
//	name = "stories"
//	  [[source.item]]
//	  id = "s1"
//	  label = "First story"
//	  height_hint = 96.0
//
//	[measurements]
//	"blk:intro" = 240.0
type documentFile struct {
	ID             string             `toml:"id"`
	RequestedPages int                `toml:"requested_pages"`
	Geometry       geometryFile       `toml:"geometry"`
	Instances      []instanceFile     `toml:"instance"`
	Slots          []slotFile         `toml:"slot"`
	Sources        []sourceFile       `toml:"source"`
	Measurements   map[string]float64 `toml:"measurements"`
}

type geometryFile struct {
	ColumnCount         int     `toml:"column_count"`
	PageWidthPx         float64 `toml:"page_width_px"`
	RegionHeightPx      float64 `toml:"region_height_px"`
	VerticalSpacingPx   float64 `toml:"vertical_spacing_px"`
	DeadZoneFraction    float64 `toml:"dead_zone_fraction"`
	MaxPages            int     `toml:"max_pages"`
	MaxRegionIterations int     `toml:"max_region_iterations"`
}

type regionFile struct {
	Page   int `toml:"page"`
	Column int `toml:"column"`
}

type instanceFile struct {
	ID         string      `toml:"id"`
	Kind       string      `toml:"kind"`
	SlotIndex  int         `toml:"slot_index"`
	OrderIndex int         `toml:"order_index"`
	DataRef    string      `toml:"data_ref"`
	Placement  *regionFile `toml:"placement"`
}

type slotFile struct {
	Index      int     `toml:"index"`
	InstanceID string  `toml:"instance_id"`
	Page       int     `toml:"page"`
	X          float64 `toml:"x"`
	Y          float64 `toml:"y"`
	Width      float64 `toml:"width"`
	Height     float64 `toml:"height"`
}

type sourceFile struct {
	Name  string     `toml:"name"`
	Items []itemFile `toml:"item"`
}

type itemFile struct {
	ID         string      `toml:"id"`
	Label      string      `toml:"label"`
	HeightHint float64     `toml:"height_hint"`
	Pin        *regionFile `toml:"pin"`
}

// =============================================================================
// Loading
// =============================================================================

// loadDocument parses and validates a TOML document file.
func loadDocument(path string) (*Document, error) {
	var file documentFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "parsing %s", path)
	}
	return file.toDocument()
}

func (f *documentFile) toDocument() (*Document, error) {
	doc := &Document{
		ID:             f.ID,
		RequestedPages: f.RequestedPages,
		Geometry: region.Geometry{
			ColumnCount:         f.Geometry.ColumnCount,
			PageWidthPx:         f.Geometry.PageWidthPx,
			RegionHeightPx:      f.Geometry.RegionHeightPx,
			VerticalSpacingPx:   f.Geometry.VerticalSpacingPx,
			DeadZoneFraction:    f.Geometry.DeadZoneFraction,
			MaxPages:            f.Geometry.MaxPages,
			MaxRegionIterations: f.Geometry.MaxRegionIterations,
		}.WithDefaults(),
		Sources: bucket.DataSources{},
		Seed:    measure.Snapshot{},
	}
	if err := doc.Geometry.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGeometry, err, "document %s", f.ID)
	}

	for _, inst := range f.Instances {
		kind := entry.Kind(inst.Kind)
		if inst.Kind == "" {
			kind = entry.KindBlock
		}
		if !kind.Valid() {
			return nil, errors.New(errors.ErrCodeInvalidKind, "instance %q has unknown kind %q", inst.ID, inst.Kind)
		}
		doc.Instances = append(doc.Instances, bucket.Instance{
			ID:         inst.ID,
			Kind:       kind,
			SlotIndex:  inst.SlotIndex,
			OrderIndex: inst.OrderIndex,
			DataRef:    inst.DataRef,
			Placement:  inst.Placement.toRegion(),
		})
	}

	for _, slot := range f.Slots {
		doc.Template.Slots = append(doc.Template.Slots, bucket.Slot{
			Index:      slot.Index,
			InstanceID: slot.InstanceID,
			Page:       slot.Page,
			X:          slot.X,
			Y:          slot.Y,
			Width:      slot.Width,
			Height:     slot.Height,
		})
	}

	for _, src := range f.Sources {
		items := make([]entry.Item, 0, len(src.Items))
		for _, it := range src.Items {
			items = append(items, entry.Item{
				ID:         it.ID,
				Label:      it.Label,
				HeightHint: it.HeightHint,
				Pin:        it.Pin.toRegion(),
			})
		}
		doc.Sources[src.Name] = items
	}

	now := time.Now()
	for key, height := range f.Measurements {
		if height <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidHeight, "seed measurement %q has non-positive height %g", key, height)
		}
		doc.Seed[key] = measure.Record{Key: key, Height: height, MeasuredAt: now}
	}

	return doc, nil
}

func (r *regionFile) toRegion() *region.Region {
	if r == nil {
		return nil
	}
	return &region.Region{Page: r.Page, Column: r.Column}
}
