// Package collision computes momentum exchange between two cells that
// failed to move past each other this sub-step.
package collision

import (
	"math"

	"github.com/pthm-cable/tilesim/cell"
)

// Normal returns the unit direction from a to b, given their lattice
// offset, rotated by a small deterministic jitter so that perfectly
// symmetric stalemates (two identical cells pushing head-on) don't lock
// forever.
func Normal(offset cell.IVec2, seed int, eps float32) cell.Vec2 {
	n := cell.Vec2{X: float32(offset.X), Y: float32(offset.Y)}.Normalized()
	theta := float64(EdgeRotation(seed, eps))
	s, cTheta := math.Sin(theta), math.Cos(theta)
	return cell.Vec2{
		X: n.X*float32(cTheta) - n.Y*float32(s),
		Y: n.X*float32(s) + n.Y*float32(cTheta),
	}
}

// EdgeRotation returns a small alternating rotation (in radians) derived
// from a deterministic seed (typically a cell's flat index), breaking
// symmetric collision stalemates the same way every run.
func EdgeRotation(seed int, eps float32) float32 {
	mult := float32((seed%2)*2 - 1)
	return mult * eps
}

// solveImpulse is solve_tile_impulses: the velocity deltas to add to a and
// b respectively, given the static/dynamic combination of both sides.
func solveImpulse(va cell.Vec2, ma float32, pa cell.Physics, vb cell.Vec2, mb float32, pb cell.Physics, normal cell.Vec2) (cell.Vec2, cell.Vec2) {
	if pa.IsStatic && pb.IsStatic {
		return cell.Vec2{}, cell.Vec2{}
	}
	if pb.IsStatic {
		bounciness := 1 + pa.Bounciness
		proj := va.Project(normal)
		return proj.Scale(-bounciness), cell.Vec2{}
	}
	if pa.IsStatic {
		bounciness := 1 + pb.Bounciness
		proj := vb.Project(normal)
		return cell.Vec2{}, proj.Scale(bounciness)
	}
	return collideImpulses(va, ma, vb, mb, normal)
}

// collideImpulses is the dynamic/dynamic case: an inelastic exchange along
// the collision normal, split by mass (coef_a = m_a/(m_a+m_b),
// coef_b = m_b/(m_a+m_b); v_a' = v_a - coef_b*rel, v_b' = v_b + coef_a*rel,
// rel = v_a - v_b projected onto the normal), so a heavier cell yields less
// of the exchange than a lighter one.
func collideImpulses(va cell.Vec2, ma float32, vb cell.Vec2, mb float32, normal cell.Vec2) (cell.Vec2, cell.Vec2) {
	n := normal.Normalized()
	relative := va.Sub(vb)
	dot := relative.Dot(n)
	if dot < 0 {
		dot = 0 // impulses already point apart: no collision
	}
	total := ma + mb
	if total <= 0 {
		return cell.Vec2{}, cell.Vec2{}
	}
	rel := n.Scale(dot)
	coefA := ma / total
	coefB := mb / total
	return rel.Scale(-coefB), rel.Scale(coefA)
}

// Resolve applies a two-body collision between a and b in place, updating
// both cells' Velocity and TickVelocity. offset is the
// lattice direction from a to b; seed deterministically varies the
// collision normal to break symmetric stalemates.
func Resolve(a, b *cell.Info, offset cell.IVec2, seed int, eps float32) {
	normal := Normal(offset, seed, eps)

	dvA, dvB := solveImpulse(a.Velocity, a.Mass, a.Physics, b.Velocity, b.Mass, b.Physics, normal)
	a.Velocity = a.Velocity.Add(dvA)
	b.Velocity = b.Velocity.Add(dvB)

	dtvA, dtvB := solveImpulse(asFloat(a.TickVelocity), a.Mass, a.Physics, asFloat(b.TickVelocity), b.Mass, b.Physics, normal)
	a.TickVelocity = a.TickVelocity.Add(asInt(dtvA))
	b.TickVelocity = b.TickVelocity.Add(asInt(dtvB))
}

// ResolveLocalOnly applies the same exchange as Resolve but only writes
// back into a, treating b as a read-only snapshot owned by another chunk.
func ResolveLocalOnly(a, b *cell.Info, offset cell.IVec2, seed int, eps float32) {
	normal := Normal(offset, seed, eps)

	dvA, _ := solveImpulse(a.Velocity, a.Mass, a.Physics, b.Velocity, b.Mass, b.Physics, normal)
	a.Velocity = a.Velocity.Add(dvA)

	dtvA, _ := solveImpulse(asFloat(a.TickVelocity), a.Mass, a.Physics, asFloat(b.TickVelocity), b.Mass, b.Physics, normal)
	a.TickVelocity = a.TickVelocity.Add(asInt(dtvA))
}

func asFloat(v cell.IVec2) cell.Vec2 { return cell.Vec2{X: float32(v.X), Y: float32(v.Y)} }

func asInt(v cell.Vec2) cell.IVec2 {
	return cell.IVec2{X: int32(math.Round(float64(v.X))), Y: int32(math.Round(float64(v.Y)))}
}
