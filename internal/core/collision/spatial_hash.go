// Package collision is the broad-phase: a uniform spatial hash plus the system
// that turns overlapping, layer-compatible colliders into contacts.
package collision

import (
	"fmt"
	"math"
	"slices"

	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

// maxCellsPerEntity bounds how many cells a single entry may occupy. Larger
// entries (arena walls, floors) live in a separate list scanned by every query.
const maxCellsPerEntity = 512

// AABB is an axis aligned box.
type AABB struct {
	Min, Max physics.Vec3
}

// BoundsAround returns the box enclosing a sphere.
func BoundsAround(center physics.Vec3, radius float64) AABB {
	r := physics.V3(radius, radius, radius)
	return AABB{Min: center.Sub(r), Max: center.Add(r)}
}

func (b AABB) Overlaps(o AABB) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

type cellKey struct{ X, Y, Z int32 }

type cellRange struct{ min, max cellKey }

func (r cellRange) count() int {
	return int(r.max.X-r.min.X+1) * int(r.max.Y-r.min.Y+1) * int(r.max.Z-r.min.Z+1)
}

type entry struct {
	bounds AABB
	cells  cellRange
	large  bool
}

// SpatialHash buckets entities into cubic cells of a fixed size. An entity is
// present in every cell its box overlaps.
type SpatialHash struct {
	cellSize float64
	inv      float64
	cells    map[cellKey][]ecs.EntityID
	entries  map[ecs.EntityID]entry
	large    []ecs.EntityID
	seen     map[ecs.EntityID]struct{}
}

// Stats is a snapshot of hash occupancy.
type Stats struct {
	Entities   int
	Cells      int
	Large      int
	MaxPerCell int
}

func NewSpatialHash(cellSize float64) (*SpatialHash, error) {
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("cell size %v: %w", cellSize, ErrInvalidCellSize)
	}
	return &SpatialHash{
		cellSize: cellSize,
		inv:      1 / cellSize,
		cells:    make(map[cellKey][]ecs.EntityID),
		entries:  make(map[ecs.EntityID]entry),
		seen:     make(map[ecs.EntityID]struct{}),
	}, nil
}

func (h *SpatialHash) CellSize() float64 { return h.cellSize }

func (h *SpatialHash) Len() int { return len(h.entries) }

func (h *SpatialHash) cellOf(x, y, z float64) cellKey {
	return cellKey{
		X: int32(math.Floor(x * h.inv)),
		Y: int32(math.Floor(y * h.inv)),
		Z: int32(math.Floor(z * h.inv)),
	}
}

func (h *SpatialHash) rangeOf(b AABB) cellRange {
	return cellRange{
		min: h.cellOf(b.Min.X, b.Min.Y, b.Min.Z),
		max: h.cellOf(b.Max.X, b.Max.Y, b.Max.Z),
	}
}

// Insert adds id covering b. Inserting an id that is already present moves it.
func (h *SpatialHash) Insert(id ecs.EntityID, b AABB) {
	if _, ok := h.entries[id]; ok {
		h.Remove(id)
	}
	e := entry{bounds: b, cells: h.rangeOf(b)}
	if e.cells.count() > maxCellsPerEntity {
		e.large = true
		h.large = append(h.large, id)
	} else {
		h.eachCell(e.cells, func(k cellKey) {
			h.cells[k] = append(h.cells[k], id)
		})
	}
	h.entries[id] = e
}

// Remove drops id from every cell it occupies.
func (h *SpatialHash) Remove(id ecs.EntityID) bool {
	e, ok := h.entries[id]
	if !ok {
		return false
	}
	delete(h.entries, id)
	if e.large {
		h.large = slices.DeleteFunc(h.large, func(other ecs.EntityID) bool { return other == id })
		return true
	}
	h.eachCell(e.cells, func(k cellKey) {
		bucket := h.cells[k]
		for i, other := range bucket {
			if other == id {
				bucket[i] = bucket[len(bucket)-1]
				bucket = bucket[:len(bucket)-1]
				break
			}
		}
		if len(bucket) == 0 {
			delete(h.cells, k)
		} else {
			h.cells[k] = bucket
		}
	})
	return true
}

// Update moves id to b, touching the cell buckets only when the covered
// range changed.
func (h *SpatialHash) Update(id ecs.EntityID, b AABB) {
	e, ok := h.entries[id]
	if ok && !e.large && e.cells == h.rangeOf(b) {
		e.bounds = b
		h.entries[id] = e
		return
	}
	h.Insert(id, b)
}

// Bounds returns the box id was inserted with.
func (h *SpatialHash) Bounds(id ecs.EntityID) (AABB, bool) {
	e, ok := h.entries[id]
	return e.bounds, ok
}

// QueryBounds appends to out every entity whose box overlaps b, without
// duplicates and ordered by id.
func (h *SpatialHash) QueryBounds(b AABB, out []ecs.EntityID) []ecs.EntityID {
	clear(h.seen)
	start := len(out)
	h.eachCell(h.rangeOf(b), func(k cellKey) {
		for _, id := range h.cells[k] {
			if _, dup := h.seen[id]; dup {
				continue
			}
			h.seen[id] = struct{}{}
			if h.entries[id].bounds.Overlaps(b) {
				out = append(out, id)
			}
		}
	})
	for _, id := range h.large {
		if h.entries[id].bounds.Overlaps(b) {
			out = append(out, id)
		}
	}
	slices.Sort(out[start:])
	return out
}

// QueryRadius is QueryBounds over the box enclosing the sphere.
func (h *SpatialHash) QueryRadius(center physics.Vec3, radius float64, out []ecs.EntityID) []ecs.EntityID {
	return h.QueryBounds(BoundsAround(center, radius), out)
}

func (h *SpatialHash) Clear() {
	clear(h.cells)
	clear(h.entries)
	h.large = h.large[:0]
}

func (h *SpatialHash) Stats() Stats {
	s := Stats{Entities: len(h.entries), Cells: len(h.cells), Large: len(h.large)}
	for _, bucket := range h.cells {
		s.MaxPerCell = max(s.MaxPerCell, len(bucket))
	}
	return s
}

func (h *SpatialHash) eachCell(r cellRange, fn func(cellKey)) {
	for x := r.min.X; x <= r.max.X; x++ {
		for y := r.min.Y; y <= r.max.Y; y++ {
			for z := r.min.Z; z <= r.max.Z; z++ {
				fn(cellKey{X: x, Y: y, Z: z})
			}
		}
	}
}
