package chunk

import "github.com/pthm-cable/tilesim/cell"

// MoveInfo classifies a cell's availability to a prospective mover.
type MoveInfo uint8

const (
	Unknown MoveInfo = iota
	Impossible
	Recursive
	Possible
	Collision
)

func (m MoveInfo) String() string {
	switch m {
	case Impossible:
		return "impossible"
	case Recursive:
		return "recursive"
	case Possible:
		return "possible"
	case Collision:
		return "collision"
	default:
		return "unknown"
	}
}

// result is the outcome of classifying one cell.
type result struct {
	kind     MoveInfo
	dir      cell.IVec2
	hasDir   bool
	friction float32
}

// Dependency is a pending (or resolved) cross-chunk classification query a
// local cell is waiting on.
type Dependency struct {
	Target Ref
	Value  MoveInfo
}

// Dependencies maps a local index to the single cross-chunk dependency it is
// currently waiting on.
type Dependencies map[int]*Dependency

// newDep records a dependency this chunk created during the current cycle,
// so the Calculator can dirty and enqueue the foreign chunk.
type newDep struct {
	Local   int
	Foreign Ref
}

// CollisionPair is a two-body collision entirely within this chunk.
type CollisionPair struct {
	A, B int
}

// CrossCollisionPair is a collision between a local cell and a cell owned by
// another chunk. Cells are never shared by pointer across chunks, so the
// foreign side is treated as a read-only snapshot: only the local cell's
// velocity is updated by the solver (see DESIGN.md).
type CrossCollisionPair struct {
	Local   int
	Foreign Ref
}

// crossReservation is an optimistic claim on a foreign target cell, made
// during classification and arbitrated by the Calculator after the cycle.
type crossReservation struct {
	local  int
	target Ref
	dir    cell.IVec2
}

// Calculation is the per-sub-step scratch state for one chunk.
type Calculation struct {
	queue  []int
	queued []bool

	checkedGen []int32
	curGen     int32

	movesFrom []bool
	movesTo   []int32 // local target index -> source local index, or -1

	unknown []bool
	lazy    []bool

	blocked map[int][]cell.IVec2 // candidate directions already rejected this sub-step

	crossMoves []crossReservation

	collisionPairs      []CollisionPair
	crossCollisionPairs []CrossCollisionPair

	published map[int]MoveInfo
	newDeps   []newDep
}

func fill32(n int, v int32) []int32 {
	s := make([]int32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// PrepareCalculation builds fresh scratch arrays and seeds the work queue
// with every cell that is both dirty and occupied. Cells
// flagged dirty while empty are silently cleared.
func (c *Chunk) PrepareCalculation() (*Calculation, Dependencies) {
	area := c.Area()
	calc := &Calculation{
		queued:     make([]bool, area),
		checkedGen: make([]int32, area),
		movesFrom:  make([]bool, area),
		movesTo:    fill32(area, -1),
		unknown:    make([]bool, area),
		lazy:       make([]bool, area),
		blocked:    make(map[int][]cell.IVec2),
		published:  make(map[int]MoveInfo),
	}
	for i := 0; i < area; i++ {
		if !c.occupied[i] {
			c.needUpdate[i] = false
			continue
		}
		if c.needUpdate[i] {
			calc.enqueue(i)
		}
	}
	return calc, make(Dependencies)
}

func (calc *Calculation) enqueue(i int) {
	if calc.queued[i] {
		return
	}
	calc.queued[i] = true
	calc.queue = append(calc.queue, i)
}

func (calc *Calculation) isBlocked(i int, d cell.IVec2) bool {
	for _, b := range calc.blocked[i] {
		if b == d {
			return true
		}
	}
	return false
}

func (calc *Calculation) block(i int, d cell.IVec2) {
	calc.blocked[i] = append(calc.blocked[i], d)
}

// CycleResult reports what a CalculationCycle call discovered so the
// Calculator can propagate it to other chunks.
type CycleResult struct {
	// Published holds the finalized classification of every cell processed
	// this cycle, keyed by local index. Other chunks consult this (via the
	// Calculator's aggregate) to resolve their own dependencies on us.
	Published map[int]MoveInfo

	// NewDependencies lists cross-chunk cells this chunk started depending
	// on this cycle; the Calculator must mark them dirty and enqueue their
	// owning chunk.
	NewDependencies []Ref

	// newDepsLocal keeps the local index alongside each new dependency,
	// for the Calculator's internal bookkeeping.
	newDepsLocal map[Ref]int

	// CrossReservations lists optimistic claims on foreign target cells
	// made this cycle, for arbitration.
	CrossReservations []crossReservationExport

	// QueueEmpty reports whether the work queue drained. The cycle always
	// drains its queue, so this is true on return; cells parked as Unknown
	// are not reflected here (they show up in Published).
	QueueEmpty bool
}

type crossReservationExport struct {
	Local  int
	Target Ref
	Dir    cell.IVec2
}

// ExportedCrossMoves exposes this sub-step's optimistic cross-chunk move
// reservations, so the Calculator can arbitrate and later commit them.
func (calc *Calculation) ExportedCrossMoves() []crossReservationExport {
	out := make([]crossReservationExport, 0, len(calc.crossMoves))
	for _, cr := range calc.crossMoves {
		out = append(out, crossReservationExport{Local: cr.local, Target: cr.target, Dir: cr.dir})
	}
	return out
}

// ExportedCollisionPairs exposes this sub-step's local collision pairs.
func (calc *Calculation) ExportedCollisionPairs() []CollisionPair {
	return calc.collisionPairs
}

// ExportedCrossCollisionPairs exposes this sub-step's cross-chunk
// collision pairs.
func (calc *Calculation) ExportedCrossCollisionPairs() []CrossCollisionPair {
	return calc.crossCollisionPairs
}

// CalculationCycle drains the work queue, classifying each cell.
// incomingDirty re-enqueues local indices whose
// dependency the Calculator has just resolved; incomingCrossMoves absorbs
// cells that finished arriving from another chunk this sub-step.
func (c *Chunk) CalculationCycle(calc *Calculation, deps Dependencies, incomingDirty []int, incomingCrossMoves map[int]*cell.Info) CycleResult {
	calc.published = make(map[int]MoveInfo)
	calc.newDeps = nil

	for idx, info := range incomingCrossMoves {
		c.info[idx] = info
		c.occupied[idx] = true
		c.needUpdate[idx] = true
		calc.unknown[idx] = false
		calc.enqueue(idx)
	}
	for _, idx := range incomingDirty {
		calc.unknown[idx] = false
		calc.enqueue(idx)
	}

	for len(calc.queue) > 0 {
		i := calc.queue[0]
		calc.queue = calc.queue[1:]
		calc.queued[i] = false

		calc.curGen++
		res := c.classify(calc, deps, i)
		calc.published[i] = res.kind
	}

	newDeps := make([]Ref, 0, len(calc.newDeps))
	newDepsLocal := make(map[Ref]int, len(calc.newDeps))
	for _, nd := range calc.newDeps {
		newDeps = append(newDeps, nd.Foreign)
		newDepsLocal[nd.Foreign] = nd.Local
	}

	crossRes := make([]crossReservationExport, 0, len(calc.crossMoves))
	for _, cr := range calc.crossMoves {
		crossRes = append(crossRes, crossReservationExport{Local: cr.local, Target: cr.target})
	}

	return CycleResult{
		Published:          calc.published,
		NewDependencies:    newDeps,
		newDepsLocal:       newDepsLocal,
		CrossReservations:  crossRes,
		QueueEmpty:         len(calc.queue) == 0,
	}
}

// classify recursively answers two questions with the same function:
// "is a move into local index i possible" when called on behalf of a
// neighbor, and, if i itself is free to act, "try to initiate i's own
// move" when called as the entry point for i.
func (c *Chunk) classify(calc *Calculation, deps Dependencies, i int) result {
	if cm := c.cantMove[i]; cm.set {
		return result{kind: Collision, dir: cm.dir, hasDir: true, friction: c.materialFriction(i)}
	}
	if calc.movesTo[i] != -1 {
		return result{kind: Collision, friction: c.materialFriction(i)}
	}
	if !c.occupied[i] {
		return result{kind: Possible}
	}
	if calc.movesFrom[i] {
		return result{kind: Possible}
	}
	if calc.unknown[i] {
		return result{kind: Unknown}
	}
	if calc.checkedGen[i] == calc.curGen {
		return result{kind: Collision, friction: c.materialFriction(i)}
	}
	calc.checkedGen[i] = calc.curGen

	info := c.info[i]
	if info.TickVelocity.IsZero() {
		calc.lazy[i] = true
		c.needUpdate[i] = false
		return result{kind: Collision, friction: c.materialFriction(i)}
	}

	for _, d := range cell.MoveOrder(info.Tile, info.TickVelocity) {
		if calc.isBlocked(i, d) {
			continue
		}
		x, y := c.Coords(i)
		lx, ly := x+int(d.X), y+int(d.Y)

		if c.inBounds(lx, ly) {
			t := c.Index(lx, ly)
			sub := c.classify(calc, deps, t)
			switch sub.kind {
			case Possible:
				c.reserveLocalMove(calc, i, t, d)
				return result{kind: Possible}
			case Unknown:
				// t is itself parked awaiting a cross-chunk dependency; i's
				// fate rides on it, so park too rather than conclude a
				// premature collision. t's eventual resolution re-dirties
				// i via dirtyNeighbors.
				calc.unknown[i] = true
				return result{kind: Unknown}
			default:
				continue
			}
		}

		ref := c.refFor(i, d)
		dep, ok := deps[i]
		if !ok || dep.Target != ref {
			dep = &Dependency{Target: ref, Value: Unknown}
			deps[i] = dep
			calc.newDeps = append(calc.newDeps, newDep{Local: i, Foreign: ref})
		}

		switch dep.Value {
		case Unknown:
			calc.unknown[i] = true
			return result{kind: Unknown}
		case Possible:
			calc.crossMoves = append(calc.crossMoves, crossReservation{local: i, target: ref, dir: d})
			calc.movesFrom[i] = true
			c.applyMove(i, d)
			c.dirtyNeighbors(calc, i)
			return result{kind: Possible}
		default: // Impossible, Collision, Recursive
			calc.block(i, d)
			continue
		}
	}

	primary := cell.PrimaryAxis(info.TickVelocity)
	c.zeroVelocityAlong(i, primary)
	c.cantMove[i] = cantMove{set: true, dir: primary}
	c.needUpdate[i] = false
	calc.collisionPairs, calc.crossCollisionPairs = c.recordWallCollision(calc, i, primary)
	return result{kind: Collision, dir: primary, hasDir: true, friction: c.materialFriction(i)}
}

// reserveLocalMove commits a successful in-chunk move.
func (c *Chunk) reserveLocalMove(calc *Calculation, i, t int, d cell.IVec2) {
	calc.movesFrom[i] = true
	calc.movesTo[t] = int32(i)
	c.applyMove(i, d)
	c.cantMove[i] = cantMove{}
	c.dirtyNeighbors(calc, i)
	c.needUpdate[t] = true
}

// applyMove decrements tick_velocity by the chosen direction.
func (c *Chunk) applyMove(i int, d cell.IVec2) {
	info := c.info[i]
	info.TickVelocity = info.TickVelocity.Sub(d)
}

// dirtyNeighbors marks i's neighbors dirty after i moves away, local ones
// directly and foreign ones via the cycle result.
func (c *Chunk) dirtyNeighbors(calc *Calculation, i int) {
	for _, ref := range c.neighborRefs(i) {
		if ref.Chunk == c.pos {
			c.needUpdate[ref.Index] = true
			calc.enqueue(ref.Index)
		} else {
			calc.newDeps = append(calc.newDeps, newDep{Local: i, Foreign: ref})
		}
	}
}

// zeroVelocityAlong zeros the projection of a cell's velocity onto axis,
// so a blocked cell stops accumulating motion in a direction it can't take.
func (c *Chunk) zeroVelocityAlong(i int, axis cell.IVec2) {
	info := c.info[i]
	if axis.X != 0 {
		info.Velocity.X = 0
		info.ProcessVelocity.X = 0
		info.TickVelocity.X = 0
	}
	if axis.Y != 0 {
		info.Velocity.Y = 0
		info.ProcessVelocity.Y = 0
		info.TickVelocity.Y = 0
	}
}

// recordWallCollision records the pending collision pair produced by a
// failed move, local or cross-chunk.
func (c *Chunk) recordWallCollision(calc *Calculation, i int, d cell.IVec2) ([]CollisionPair, []CrossCollisionPair) {
	x, y := c.Coords(i)
	lx, ly := x+int(d.X), y+int(d.Y)
	if c.inBounds(lx, ly) {
		t := c.Index(lx, ly)
		if c.occupied[t] {
			calc.collisionPairs = append(calc.collisionPairs, CollisionPair{A: i, B: t})
		}
	} else {
		ref := c.refFor(i, d)
		calc.crossCollisionPairs = append(calc.crossCollisionPairs, CrossCollisionPair{Local: i, Foreign: ref})
	}
	return calc.collisionPairs, calc.crossCollisionPairs
}

// RevertCrossReservation undoes an optimistic cross-chunk reservation that
// lost the Calculator's arbitration. It restores the cell's tick_velocity, blocks the
// losing direction so the next cycle tries a different candidate (or a
// wall), and clears the dependency so it is re-evaluated fresh.
func (c *Chunk) RevertCrossReservation(calc *Calculation, deps Dependencies, local int, dir cell.IVec2) {
	calc.movesFrom[local] = false
	kept := calc.crossMoves[:0]
	for _, cr := range calc.crossMoves {
		if cr.local != local || cr.dir != dir {
			kept = append(kept, cr)
		}
	}
	calc.crossMoves = kept
	c.applyMove(local, cell.IVec2{X: -dir.X, Y: -dir.Y})
	calc.block(local, dir)
	delete(deps, local)
	calc.enqueue(local)
}
