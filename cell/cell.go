// Package cell defines the data model for a single lattice site: its
// material, physics constants, and the velocity state the resolver
// integrates each tick.
package cell

import "math"

// TileType identifies a cell's material. The zero value, Empty, is never
// stored as a present *Info — an empty cell is represented by a nil
// pointer in the chunk's info array.
type TileType uint8

const (
	Empty TileType = iota
	Barrier
	Sand
	Water
)

// Name returns the lowercase material name used as the config/materials key.
func (t TileType) Name() string {
	switch t {
	case Barrier:
		return "barrier"
	case Sand:
		return "sand"
	case Water:
		return "water"
	default:
		return "empty"
	}
}

func (t TileType) String() string { return t.Name() }

// Vec2 is a continuous 2D vector (world-space velocity, positions).
type Vec2 struct {
	X, Y float32
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float32) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Dot(o Vec2) float32   { return v.X*o.X + v.Y*o.Y }
func (v Vec2) LengthSq() float32    { return v.Dot(v) }

func (v Vec2) Length() float32 {
	return float32(math.Sqrt(float64(v.LengthSq())))
}

// Normalized returns v scaled to unit length, or the zero vector if v is
// itself zero.
func (v Vec2) Normalized() Vec2 {
	l := v.Length()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Project returns the component of v along the (assumed unit) normal.
func (v Vec2) Project(normal Vec2) Vec2 {
	return normal.Scale(v.Dot(normal))
}

// IVec2 is a lattice-unit vector: a move direction or a tick_velocity.
type IVec2 struct {
	X, Y int32
}

func (v IVec2) Add(o IVec2) IVec2 { return IVec2{v.X + o.X, v.Y + o.Y} }
func (v IVec2) Sub(o IVec2) IVec2 { return IVec2{v.X - o.X, v.Y - o.Y} }
func (v IVec2) IsZero() bool      { return v.X == 0 && v.Y == 0 }

func signI(v int32) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func absI(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// PrimaryAxis returns the single move direction a cell is allowed per
// sub-step: the axis with the larger magnitude, vertical wins ties.
func PrimaryAxis(v IVec2) IVec2 {
	if v.IsZero() {
		return IVec2{}
	}
	if absI(v.X) > absI(v.Y) {
		return IVec2{X: signI(v.X)}
	}
	return IVec2{Y: signI(v.Y)}
}

// MoveOrder returns the ordered direction candidates the classifier consults
// for a cell of material t with the given tick_velocity, stopping at the
// first Possible. The primary axis
// direction is always tried first; materials may append diagonal or lateral
// fallbacks for when it is blocked.
func MoveOrder(t TileType, tv IVec2) []IVec2 {
	primary := PrimaryAxis(tv)
	if primary.IsZero() {
		return nil
	}
	switch t {
	case Sand:
		if primary.Y != 0 {
			return []IVec2{primary, {X: -1, Y: primary.Y}, {X: 1, Y: primary.Y}}
		}
		return []IVec2{primary}
	case Water:
		if primary.Y != 0 {
			return []IVec2{primary, {X: -1, Y: primary.Y}, {X: 1, Y: primary.Y}, {X: -1}, {X: 1}}
		}
		return []IVec2{primary, {X: signI(primary.X)}}
	default:
		return []IVec2{primary}
	}
}

// Physics holds a cell's collision constants.
type Physics struct {
	IsStatic     bool
	Bounciness   float32
	ImpulseSplit float32
	FrictionCoef float32
}

// Info is the full state of one occupied cell.
type Info struct {
	Tile    TileType
	Physics Physics

	Mass         float32
	GravityScale float32

	Velocity        Vec2
	ProcessVelocity Vec2
	TickVelocity    IVec2
}

// Clone returns a value copy, so a moved cell's source and destination slots
// never alias the same *Info.
func (c *Info) Clone() *Info {
	cp := *c
	return &cp
}
