package collision

import (
	"testing"

	"github.com/pthm-cable/tilesim/cell"
)

func TestEdgeRotationAlternatesSign(t *testing.T) {
	cases := []struct {
		seed int
		want float32
	}{
		{0, -0.05},
		{1, 0.05},
		{2, -0.05},
		{3, 0.05},
	}
	for _, c := range cases {
		if got := EdgeRotation(c.seed, 0.05); got != c.want {
			t.Fatalf("EdgeRotation(%d, 0.05) = %v, want %v", c.seed, got, c.want)
		}
	}
}

func TestSolveImpulseStaticStaticIsZero(t *testing.T) {
	pa := cell.Physics{IsStatic: true}
	pb := cell.Physics{IsStatic: true}
	dvA, dvB := solveImpulse(cell.Vec2{X: 1}, 1, pa, cell.Vec2{X: -1}, 1, pb, cell.Vec2{X: 1})
	if dvA != (cell.Vec2{}) || dvB != (cell.Vec2{}) {
		t.Fatalf("solveImpulse(static, static) = (%v, %v), want zero", dvA, dvB)
	}
}

func TestSolveImpulseStaticDynamicReflects(t *testing.T) {
	pa := cell.Physics{Bounciness: 0.5}
	pb := cell.Physics{IsStatic: true}
	va := cell.Vec2{X: 0, Y: -2}
	normal := cell.Vec2{X: 0, Y: 1}
	dvA, dvB := solveImpulse(va, 1, pa, cell.Vec2{}, 1, pb, normal)
	result := va.Add(dvA)
	if result.Y <= 0 {
		t.Fatalf("expected velocity to reverse toward positive Y after reflecting off static b, got %v", result)
	}
	if dvB != (cell.Vec2{}) {
		t.Fatalf("expected zero delta for the static side, got %v", dvB)
	}
}

func TestCollideImpulsesOnlyActsWhenApproaching(t *testing.T) {
	// Bodies already separating along the normal: no impulse.
	dvA, dvB := collideImpulses(cell.Vec2{X: 0, Y: 1}, 1, cell.Vec2{X: 0, Y: 2}, 1, cell.Vec2{X: 0, Y: 1})
	if dvA != (cell.Vec2{}) || dvB != (cell.Vec2{}) {
		t.Fatalf("collideImpulses(separating) = (%v, %v), want zero", dvA, dvB)
	}

	// Bodies approaching head-on, equal mass: an equal and opposite
	// corrective impulse along the normal.
	dvA, dvB = collideImpulses(cell.Vec2{X: 0, Y: 1}, 1, cell.Vec2{X: 0, Y: -1}, 1, cell.Vec2{X: 0, Y: 1})
	if dvA.Y >= 0 {
		t.Fatalf("collideImpulses(approaching).a = %v, want negative Y component", dvA)
	}
	if dvB.Y <= 0 {
		t.Fatalf("collideImpulses(approaching).b = %v, want positive Y component", dvB)
	}
	if dvA.Y != -dvB.Y {
		t.Fatalf("expected equal-mass exchange to be symmetric, got a=%v b=%v", dvA, dvB)
	}
}

func TestCollideImpulsesWeightsByMass(t *testing.T) {
	// a is twice as massive as b: b should absorb twice the velocity
	// change that a does.
	dvA, dvB := collideImpulses(cell.Vec2{X: 0, Y: 1}, 2, cell.Vec2{X: 0, Y: -1}, 1, cell.Vec2{X: 0, Y: 1})
	if dvA.Y >= 0 || dvB.Y <= 0 {
		t.Fatalf("expected opposing nonzero deltas, got a=%v b=%v", dvA, dvB)
	}
	ratio := -dvB.Y / dvA.Y
	if ratio < 1.9 || ratio > 2.1 {
		t.Fatalf("expected the lighter body's delta to be ~2x the heavier one's, got ratio %v (a=%v b=%v)", ratio, dvA, dvB)
	}
}

func TestResolveUpdatesBothSidesSymmetrically(t *testing.T) {
	a := &cell.Info{Mass: 1, Velocity: cell.Vec2{X: 0, Y: 1}, TickVelocity: cell.IVec2{Y: 1}}
	b := &cell.Info{Mass: 1, Velocity: cell.Vec2{X: 0, Y: -1}, TickVelocity: cell.IVec2{Y: -1}}

	Resolve(a, b, cell.IVec2{Y: 1}, 0, 0.05)

	if a.Velocity == (cell.Vec2{X: 0, Y: 1}) && b.Velocity == (cell.Vec2{X: 0, Y: -1}) {
		t.Fatalf("Resolve left both velocities unchanged for an approaching dynamic/dynamic pair")
	}
}

func TestResolveWeightsByMass(t *testing.T) {
	heavy := &cell.Info{Mass: 2, Velocity: cell.Vec2{X: 0, Y: 1}, TickVelocity: cell.IVec2{Y: 1}}
	light := &cell.Info{Mass: 1, Velocity: cell.Vec2{X: 0, Y: -1}, TickVelocity: cell.IVec2{Y: -1}}

	Resolve(heavy, light, cell.IVec2{Y: 1}, 0, 0.05)

	heavyDelta := heavy.Velocity.Y - 1
	lightDelta := light.Velocity.Y - (-1)
	if heavyDelta == 0 || lightDelta == 0 {
		t.Fatalf("expected both velocities to change, got heavy=%v light=%v", heavy.Velocity, light.Velocity)
	}
	// The lighter cell should absorb more of the velocity change.
	if abs32(lightDelta) <= abs32(heavyDelta) {
		t.Fatalf("expected the lighter cell's delta (%v) to exceed the heavier cell's (%v)", lightDelta, heavyDelta)
	}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func TestResolveLocalOnlyLeavesForeignUntouched(t *testing.T) {
	a := &cell.Info{Mass: 1, Velocity: cell.Vec2{X: 0, Y: 1}, TickVelocity: cell.IVec2{Y: 1}}
	b := &cell.Info{Mass: 1, Velocity: cell.Vec2{X: 0, Y: -1}, TickVelocity: cell.IVec2{Y: -1}}
	bBefore := *b

	ResolveLocalOnly(a, b, cell.IVec2{Y: 1}, 0, 0.05)

	if *b != bBefore {
		t.Fatalf("ResolveLocalOnly mutated the foreign cell: got %v, want unchanged %v", *b, bBefore)
	}
}
