// Package calculator drives the cross-chunk fixed-point resolution that
// turns a batch of independently-classified chunks into one consistent
// sub-step. It owns nothing about cell physics
// itself; it only arbitrates the dependencies and cross-chunk reservations
// the chunk package's classifier reports.
package calculator

import (
	"runtime"
	"sort"
	"sync"

	"github.com/pthm-cable/tilesim/cell"
	"github.com/pthm-cable/tilesim/chunk"
	"github.com/pthm-cable/tilesim/collision"
	"github.com/pthm-cable/tilesim/config"
	"github.com/pthm-cable/tilesim/view"
)

// Grid is the set of chunks a Calculator coordinates, addressable by
// lattice position.
type Grid map[chunk.Pos]*chunk.Chunk

// live holds one chunk's in-progress classification state across cycles.
type live struct {
	ch    *chunk.Chunk
	calc  *chunk.Calculation
	deps  chunk.Dependencies
	dirty []int
}

// Calculator coordinates one tick's worth of sub-steps over a Grid.
type Calculator struct {
	workers   int
	published map[chunk.Ref]chunk.MoveInfo

	lastSubSteps   int
	lastMoved      int
	lastCollisions int
}

// New creates a Calculator sized to the host's available parallelism.
func New() *Calculator {
	return &Calculator{workers: runtime.GOMAXPROCS(0)}
}

// LastTickStats reports the sub-step count, the number of distinct
// positions whose occupant changed (a vacated source and its filled target
// each count), and the collision-pair count observed during the most
// recent Tick call, for the telemetry package's WindowStats.
func (calc *Calculator) LastTickStats() (subSteps, moved, collisions int) {
	return calc.lastSubSteps, calc.lastMoved, calc.lastCollisions
}

// Tick runs prepare_tick once, then repeatedly sub-steps the whole grid
// until every chunk has settled or cfg.Physics.MaxUpdatesPerFrame
// sub-steps have run, emitting one view.Update.
func (calc *Calculator) Tick(grid Grid, cfg *config.Config) *view.Update {
	gravity := cell.Vec2{X: float32(cfg.Derived.Gravity32[0]), Y: float32(cfg.Derived.Gravity32[1])}
	drag := float32(cfg.Physics.Drag)

	for _, c := range grid {
		c.PrepareTick(gravity, drag)
	}

	calc.lastSubSteps, calc.lastMoved, calc.lastCollisions = 0, 0, 0

	update := view.NewUpdate()
	for step := 0; step < cfg.Physics.MaxUpdatesPerFrame; step++ {
		calc.lastSubSteps++
		calc.subStep(grid, cfg, update)
		if allSettled(grid) {
			break
		}
	}
	calc.lastMoved = update.Len()
	return update
}

func allSettled(grid Grid) bool {
	for _, c := range grid {
		if !c.Settled() {
			return false
		}
	}
	return true
}

// subStep resolves exactly one lattice-unit of movement across the whole
// grid: classify to a cross-chunk fixed point,
// resolve collisions, then commit.
func (calc *Calculator) subStep(grid Grid, cfg *config.Config, update *view.Update) {
	lives := make(map[chunk.Pos]*live, len(grid))
	order := make([]chunk.Pos, 0, len(grid))
	for pos, c := range grid {
		calcState, deps := c.PrepareCalculation()
		lives[pos] = &live{ch: c, calc: calcState, deps: deps}
		order = append(order, pos)
	}
	sort.Slice(order, func(i, j int) bool { return posLess(order[i], order[j]) })

	calc.published = make(map[chunk.Ref]chunk.MoveInfo)

	for {
		changed := calc.classifyPass(grid, lives, order)
		if !changed {
			break
		}
	}

	calc.runCollisions(grid, lives, order, cfg)
	calc.commit(grid, lives, order, update)
}

// classifyPass runs one CalculationCycle per chunk (in parallel, via a
// bounded worker pool), then single-threadedly resolves newly-created
// dependencies and arbitrates cross-chunk move races. Returns whether
// anything changed, so the caller can iterate to a fixed point.
func (calc *Calculator) classifyPass(grid Grid, lives map[chunk.Pos]*live, order []chunk.Pos) bool {
	type cycleOut struct {
		pos    chunk.Pos
		result chunk.CycleResult
	}
	results := make([]cycleOut, len(order))

	var wg sync.WaitGroup
	sem := make(chan struct{}, calc.workers)
	for i, pos := range order {
		l := lives[pos]
		incoming := l.dirty
		l.dirty = nil
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, pos chunk.Pos, l *live, incoming []int) {
			defer wg.Done()
			defer func() { <-sem }()
			res := l.ch.CalculationCycle(l.calc, l.deps, incoming, nil)
			results[i] = cycleOut{pos: pos, result: res}
		}(i, pos, l, incoming)
	}
	wg.Wait()

	changed := false

	// Merge published classifications into the global table first, so
	// dependency resolution below sees this cycle's results. MoveInfo's
	// zero value is Unknown, so a plain != comparison against a missing
	// key can never tell "never published" from "published as Unknown" -
	// use the comma-ok form instead.
	for i, pos := range order {
		for idx, kind := range results[i].result.Published {
			ref := chunk.Ref{Chunk: pos, Index: idx}
			if existing, ok := calc.published[ref]; !ok || existing != kind {
				calc.published[ref] = kind
				changed = true
			}
		}
	}

	// Register new dependencies: the depending chunk's local index is
	// added as extra dirty work for the chunk owning the target, so it
	// gets classified next pass even if it wasn't otherwise dirty.
	for i, pos := range order {
		for _, ref := range results[i].result.NewDependencies {
			if dst, ok := lives[ref.Chunk]; ok {
				dst.ch.MarkExternalDirty(ref.Index)
				dst.dirty = append(dst.dirty, ref.Index)
				changed = true
			}
		}
		_ = pos
	}

	// Resolve any dependency now answerable from the global published
	// table, re-enqueueing the waiting local cell. A published value of
	// Unknown means the foreign cell is itself still parked - that isn't
	// a resolution, so leave the dependency as-is rather than spinning
	// the waiting cell through another no-op cycle. A target in a chunk
	// outside the active set is Impossible: the move is blocked.
	for _, pos := range order {
		l := lives[pos]
		for local, dep := range l.deps {
			if dep.Value != chunk.Unknown {
				continue
			}
			if _, active := lives[dep.Target.Chunk]; !active {
				dep.Value = chunk.Impossible
				l.dirty = append(l.dirty, local)
				changed = true
				continue
			}
			if kind, ok := calc.published[dep.Target]; ok && kind != chunk.Unknown {
				dep.Value = kind
				l.dirty = append(l.dirty, local)
				changed = true
			}
		}
	}

	// Detect mutual cross-chunk dependency cycles: if our outstanding
	// dependency's target chunk is itself waiting on a cell we own, no
	// amount of waiting resolves either side - this is the cross-chunk
	// analogue of the same-chunk cycle guard in classify's checkedGen
	// check. Break it by classifying both ends Recursive, which classify
	// treats as a wall.
	for _, pos := range order {
		l := lives[pos]
		for local, dep := range l.deps {
			if dep.Value != chunk.Unknown {
				continue
			}
			foreign, ok := lives[dep.Target.Chunk]
			if !ok {
				continue
			}
			back, ok := foreign.deps[dep.Target.Index]
			if !ok || back.Value != chunk.Unknown {
				continue
			}
			if back.Target != (chunk.Ref{Chunk: pos, Index: local}) {
				continue
			}
			dep.Value = chunk.Recursive
			back.Value = chunk.Recursive
			l.dirty = append(l.dirty, local)
			foreign.dirty = append(foreign.dirty, dep.Target.Index)
			changed = true
		}
	}

	// Arbitrate cross-chunk reservations: group every proposal this pass
	// by the foreign target it claims, fixed deterministic order decides
	// the winner.
	type claim struct {
		pos   chunk.Pos
		local int
	}
	byTarget := make(map[chunk.Ref][]claim)
	for i, pos := range order {
		for _, cr := range results[i].result.CrossReservations {
			byTarget[cr.Target] = append(byTarget[cr.Target], claim{pos: pos, local: cr.Local})
		}
	}
	for target, claims := range byTarget {
		sort.Slice(claims, func(i, j int) bool {
			if claims[i].pos != claims[j].pos {
				return posLess(claims[i].pos, claims[j].pos)
			}
			return claims[i].local < claims[j].local
		})
		for n, cl := range claims {
			if n == 0 {
				continue // winner keeps its optimistic reservation
			}
			l := lives[cl.pos]
			dir := crossDirFor(l.calc, cl.local, target)
			l.ch.RevertCrossReservation(l.calc, l.deps, cl.local, dir)
			changed = true
		}
	}

	for _, l := range lives {
		if len(l.dirty) > 0 {
			changed = true
		}
	}

	return changed
}

func crossDirFor(calcState *chunk.Calculation, local int, target chunk.Ref) cell.IVec2 {
	for _, cr := range calcState.ExportedCrossMoves() {
		if cr.Local == local && cr.Target == target {
			return cr.Dir
		}
	}
	return cell.IVec2{}
}

// runCollisions resolves every pending collision pair reported this
// sub-step. Cross-chunk pairs only update the local side's
// velocity, treating the foreign cell as a read-only snapshot
// (see DESIGN.md).
func (calc *Calculator) runCollisions(grid Grid, lives map[chunk.Pos]*live, order []chunk.Pos, cfg *config.Config) {
	eps := float32(cfg.Collision.EdgeRotationEpsilon)
	for _, pos := range order {
		l := lives[pos]
		for _, pair := range l.calc.ExportedCollisionPairs() {
			a := l.ch.Cell(pair.A)
			b := l.ch.Cell(pair.B)
			if a == nil || b == nil {
				continue
			}
			offset := localOffset(l.ch, pair.A, pair.B)
			collision.Resolve(a, b, offset, pair.A, eps)
			calc.lastCollisions++
		}
		for _, pair := range l.calc.ExportedCrossCollisionPairs() {
			a := l.ch.Cell(pair.Local)
			foreign, ok := grid[pair.Foreign.Chunk]
			if !ok {
				continue
			}
			b := foreign.Cell(pair.Foreign.Index)
			if a == nil || b == nil {
				continue
			}
			offset := crossOffset(l.ch, pair.Local, foreign, pair.Foreign.Index)
			collision.ResolveLocalOnly(a, b, offset, pair.Local, eps)
			calc.lastCollisions++
		}
	}
}

func localOffset(c *chunk.Chunk, a, b int) cell.IVec2 {
	ax, ay := c.Coords(a)
	bx, by := c.Coords(b)
	return cell.IVec2{X: int32(bx - ax), Y: int32(by - ay)}
}

// crossOffset approximates the direction from a local cell to a foreign
// one using their global lattice positions, since their chunks may use
// different local coordinate frames.
func crossOffset(local *chunk.Chunk, a int, foreign *chunk.Chunk, b int) cell.IVec2 {
	ax, ay := local.GlobalPos(a)
	bx, by := foreign.GlobalPos(b)
	return cell.IVec2{X: int32(bx - ax), Y: int32(by - ay)}
}

// commit applies every chunk's converged moves, including cross-chunk
// handoffs, and records the resulting occupancy deltas into update
//.
func (calc *Calculator) commit(grid Grid, lives map[chunk.Pos]*live, order []chunk.Pos, update *view.Update) {
	winningByChunk := make(map[chunk.Pos]map[int]cell.IVec2, len(order))
	for _, pos := range order {
		winningByChunk[pos] = make(map[int]cell.IVec2)
	}
	for _, pos := range order {
		l := lives[pos]
		for _, cr := range l.calc.ExportedCrossMoves() {
			winningByChunk[pos][cr.Local] = cr.Dir
		}
	}

	for _, pos := range order {
		l := lives[pos]
		extracted := winningByChunk[pos]
		for local, dir := range extracted {
			target := l.ch.RefForExport(local, dir)
			dst, ok := grid[target.Chunk]
			if !ok {
				continue
			}
			gxSrc, gySrc := l.ch.GlobalPos(local)
			info := l.ch.ExtractCell(local)
			dst.ReceiveCell(target.Index, info)
			update.Set(gxSrc, gySrc, nil)
			gx, gy := dst.GlobalPos(target.Index)
			update.Set(gx, gy, info)
		}
	}

	for _, pos := range order {
		l := lives[pos]
		mv := l.ch.CollectMovement(l.calc, nil)
		deltas := l.ch.Commit(mv)
		for _, d := range deltas {
			update.Set(d.X, d.Y, d.Info)
		}
	}
}

func posLess(a, b chunk.Pos) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
