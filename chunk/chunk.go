// Package chunk implements the per-chunk move classifier: a
// fixed-size array of cells that analyzes, for each dirty occupied cell,
// whether it can move one lattice unit this sub-step.
package chunk

import (
	"fmt"

	"github.com/pthm-cable/tilesim/cell"
)

// Pos identifies a chunk by its lattice coordinate.
type Pos struct {
	X, Y int32
}

// Ref addresses a single cell: the chunk that owns it and its flat index
// within that chunk.
type Ref struct {
	Chunk Pos
	Index int
}

type cantMove struct {
	set bool
	dir cell.IVec2
}

// Chunk owns four parallel CHUNK_W*CHUNK_H arrays.
type Chunk struct {
	pos    Pos
	width  int
	height int

	occupied   []bool
	info       []*cell.Info
	needUpdate []bool
	cantMove   []cantMove
}

// New creates an empty chunk at the given chunk-lattice position.
func New(pos Pos, width, height int) *Chunk {
	area := width * height
	return &Chunk{
		pos:        pos,
		width:      width,
		height:     height,
		occupied:   make([]bool, area),
		info:       make([]*cell.Info, area),
		needUpdate: make([]bool, area),
		cantMove:   make([]cantMove, area),
	}
}

func (c *Chunk) Pos() Pos     { return c.pos }
func (c *Chunk) Width() int   { return c.width }
func (c *Chunk) Height() int  { return c.height }
func (c *Chunk) Area() int    { return c.width * c.height }

// Index converts in-chunk coordinates to a flat array index.
func (c *Chunk) Index(x, y int) int { return x + y*c.width }

// Coords converts a flat index back to in-chunk coordinates.
func (c *Chunk) Coords(index int) (x, y int) {
	return index % c.width, index / c.width
}

func (c *Chunk) inBounds(x, y int) bool {
	return x >= 0 && x < c.width && y >= 0 && y < c.height
}

// Occupied reports whether a local cell holds a tile.
func (c *Chunk) Occupied(index int) bool { return c.occupied[index] }

// Cell returns a read-only view of a local cell, or nil if empty.
func (c *Chunk) Cell(index int) *cell.Info { return c.info[index] }

// NeedUpdate reports whether a local cell is flagged dirty.
func (c *Chunk) NeedUpdate(index int) bool { return c.needUpdate[index] }

// CantMove reports the locked direction of a stuck cell, if any.
func (c *Chunk) CantMove(index int) (cell.IVec2, bool) {
	cm := c.cantMove[index]
	return cm.dir, cm.set
}

// GlobalPos converts a local index to a global lattice position:
// global = chunk_pos * (W,H) + (x,y).
func (c *Chunk) GlobalPos(index int) (int64, int64) {
	x, y := c.Coords(index)
	return int64(c.pos.X)*int64(c.width) + int64(x), int64(c.pos.Y)*int64(c.height) + int64(y)
}

// neighborOffsets is the 3x3 neighborhood minus self, in a fixed order so
// dirtying is deterministic.
var neighborOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// neighborRefs returns the 8 neighbor refs of local index, resolving
// chunk-crossing neighbors against this chunk's dimensions.
func (c *Chunk) neighborRefs(index int) []Ref {
	x, y := c.Coords(index)
	refs := make([]Ref, 0, 8)
	for _, off := range neighborOffsets {
		nx, ny := x+off[0], y+off[1]
		cp := c.pos
		switch {
		case nx < 0:
			nx += c.width
			cp.X--
		case nx >= c.width:
			nx -= c.width
			cp.X++
		}
		switch {
		case ny < 0:
			ny += c.height
			cp.Y--
		case ny >= c.height:
			ny -= c.height
			cp.Y++
		}
		refs = append(refs, Ref{Chunk: cp, Index: ny*c.width + nx})
	}
	return refs
}

// RefForExport exposes refFor for the Calculator, which needs to resolve
// a winning cross-chunk reservation's destination after the fact.
func (c *Chunk) RefForExport(index int, d cell.IVec2) Ref {
	return c.refFor(index, d)
}

// refFor resolves the neighbor of local index one step in direction d,
// which may lie inside this chunk or in an adjacent one.
func (c *Chunk) refFor(index int, d cell.IVec2) Ref {
	x, y := c.Coords(index)
	nx, ny := x+int(d.X), y+int(d.Y)
	cp := c.pos
	switch {
	case nx < 0:
		nx += c.width
		cp.X--
	case nx >= c.width:
		nx -= c.width
		cp.X++
	}
	switch {
	case ny < 0:
		ny += c.height
		cp.Y--
	case ny >= c.height:
		ny -= c.height
		cp.Y++
	}
	return Ref{Chunk: cp, Index: ny*c.width + nx}
}

// SetTile replaces the occupancy of a local cell. It
// marks the 3x3 neighborhood dirty, clearing any stale lock, and returns the
// neighbor refs that lie outside this chunk so the caller can dirty them in
// their owning chunks.
func (c *Chunk) SetTile(index int, info *cell.Info) []Ref {
	if index < 0 || index >= c.Area() {
		panic(fmt.Sprintf("chunk: SetTile index %d out of range for chunk %v", index, c.pos))
	}
	c.info[index] = info
	c.occupied[index] = info != nil
	c.needUpdate[index] = true
	c.cantMove[index] = cantMove{}

	var outside []Ref
	for _, ref := range c.neighborRefs(index) {
		if ref.Chunk == c.pos {
			c.needUpdate[ref.Index] = true
		} else {
			outside = append(outside, ref)
		}
	}
	return outside
}

// MarkExternalDirty flags a local index dirty because of an event owned by
// another chunk (a neighboring SetTile, or a resolved cross-chunk
// dependency).
func (c *Chunk) MarkExternalDirty(index int) {
	c.needUpdate[index] = true
}

// materialFriction returns the friction coefficient of the material
// occupying a local index, used to annotate Collision classifications.
func (c *Chunk) materialFriction(index int) float32 {
	info := c.info[index]
	if info == nil {
		return 0
	}
	return info.Physics.FrictionCoef
}

// PrepareTick applies gravity and drag to every occupied cell, producing
// this tick's integer tick_velocity. Called once
// per tick, before any sub-steps.
func (c *Chunk) PrepareTick(gravity cell.Vec2, drag float32) {
	for i := 0; i < c.Area(); i++ {
		info := c.info[i]
		if info == nil {
			continue
		}
		if info.Physics.IsStatic {
			info.Velocity = cell.Vec2{}
			info.ProcessVelocity = cell.Vec2{}
			info.TickVelocity = cell.IVec2{}
			continue
		}
		if !c.needUpdate[i] {
			// Lazy cell: at rest, not queued for classification this
			// sub-step. Clamp velocity to pure gravity (not accumulated)
			// so a removed support restarts it cleanly, but leave
			// tick_velocity at zero: nothing will consume a nonzero value
			// here since the cell isn't dirty, and a stale nonzero value
			// would keep Settled() from ever reporting true.
			info.Velocity = gravity.Scale(info.GravityScale)
			info.ProcessVelocity = cell.Vec2{}
			info.TickVelocity = cell.IVec2{}
			continue
		}
		info.Velocity = info.Velocity.Add(gravity.Scale(info.GravityScale))
		info.Velocity = info.Velocity.Scale(1 - drag)
		info.ProcessVelocity = info.ProcessVelocity.Add(info.Velocity)
		info.TickVelocity = floorSigned(info.ProcessVelocity)
		info.ProcessVelocity.X -= float32(info.TickVelocity.X)
		info.ProcessVelocity.Y -= float32(info.TickVelocity.Y)
	}
}
