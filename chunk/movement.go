package chunk

import "github.com/pthm-cable/tilesim/cell"

// CellDelta is one entry of a sub-step's view update: a global position
// whose occupant changed. Info is nil when the cell was vacated.
type CellDelta struct {
	X, Y int64
	Info *cell.Info
}

// Movement is the set of moves a chunk is ready to apply this sub-step,
// gathered from a converged Calculation.
type Movement struct {
	// local holds confirmed in-chunk moves, target index -> source index.
	local map[int]int
	// extract holds local indices whose cell is departing to another chunk,
	// already arbitrated as the winning reservation.
	extract map[int]cell.IVec2
}

// CollectMovement reads a converged Calculation and decides what actually
// moves this sub-step. winningCrossMoves is the subset of calc's proposed
// cross-chunk reservations the Calculator confirmed (ties resolved).
func (c *Chunk) CollectMovement(calc *Calculation, winningCrossMoves map[int]cell.IVec2) *Movement {
	mv := &Movement{
		local:   make(map[int]int),
		extract: make(map[int]cell.IVec2),
	}
	for t := 0; t < c.Area(); t++ {
		if src := calc.movesTo[t]; src != -1 {
			mv.local[t] = int(src)
		}
	}
	for local, dir := range winningCrossMoves {
		mv.extract[local] = dir
	}
	return mv
}

// Commit applies a Movement, producing the view deltas for this sub-step.
// Local moves are applied from a snapshot of the pre-move info so that
// chains (A->B->C in one sub-step) read old values throughout, never a
// value another move already overwrote.
func (c *Chunk) Commit(mv *Movement) []CellDelta {
	if len(mv.local) == 0 && len(mv.extract) == 0 {
		return nil
	}

	snapshot := make(map[int]*cell.Info, len(mv.local))
	for t, s := range mv.local {
		snapshot[t] = c.info[s]
	}

	var deltas []CellDelta

	for t, info := range snapshot {
		c.info[t] = info
		c.occupied[t] = true
		c.needUpdate[t] = true
		c.cantMove[t] = cantMove{}
		gx, gy := c.GlobalPos(t)
		deltas = append(deltas, CellDelta{X: gx, Y: gy, Info: info})
	}
	for _, s := range mv.local {
		if _, stillTarget := mv.local[s]; stillTarget {
			// s is itself the target of another move in this same batch;
			// it was already overwritten above, not vacated.
			continue
		}
		c.info[s] = nil
		c.occupied[s] = false
		c.needUpdate[s] = false
		gx, gy := c.GlobalPos(s)
		deltas = append(deltas, CellDelta{X: gx, Y: gy, Info: nil})
	}

	for local := range mv.extract {
		c.info[local] = nil
		c.occupied[local] = false
		c.needUpdate[local] = false
		gx, gy := c.GlobalPos(local)
		deltas = append(deltas, CellDelta{X: gx, Y: gy, Info: nil})
	}

	return deltas
}

// ExtractCell clones and removes the cell at local for handoff to the
// chunk that won the cross-chunk reservation targeting it.
func (c *Chunk) ExtractCell(local int) *cell.Info {
	info := c.info[local].Clone()
	c.info[local] = nil
	c.occupied[local] = false
	c.needUpdate[local] = false
	c.cantMove[local] = cantMove{}
	return info
}

// ReceiveCell places an arriving cell at local, dirtying it for the next
// sub-step cycle.
func (c *Chunk) ReceiveCell(local int, info *cell.Info) {
	c.info[local] = info
	c.occupied[local] = true
	c.needUpdate[local] = true
	c.cantMove[local] = cantMove{}
}

// Settled reports whether every occupied cell's tick_velocity has reached
// zero, the sub-step loop's termination condition.
func (c *Chunk) Settled() bool {
	for i := 0; i < c.Area(); i++ {
		if c.occupied[i] && !c.info[i].TickVelocity.IsZero() {
			return false
		}
	}
	return true
}
