// Package sim assembles the chunk grid, the calculator, and the live
// config into the single entry point a driver (renderer, headless runner,
// test) ticks forward.
package sim

import (
	"github.com/pthm-cable/tilesim/calculator"
	"github.com/pthm-cable/tilesim/cell"
	"github.com/pthm-cable/tilesim/chunk"
	"github.com/pthm-cable/tilesim/config"
	"github.com/pthm-cable/tilesim/view"
)

// Simulation owns the active chunk set and drives ticks over it.
type Simulation struct {
	cfg   *config.Config
	grid  calculator.Grid
	calc  *calculator.Calculator
	snap  *view.Snapshot
	ticks int64
}

// New creates a Simulation over the given chunk-lattice positions, each
// initialized empty at the configured chunk size.
func New(cfg *config.Config, positions []chunk.Pos) *Simulation {
	grid := make(calculator.Grid, len(positions))
	for _, p := range positions {
		grid[p] = chunk.New(p, cfg.Chunk.Width, cfg.Chunk.Height)
	}
	return &Simulation{
		cfg:  cfg,
		grid: grid,
		calc: calculator.New(),
		snap: view.NewSnapshot(),
	}
}

// chunkAndLocal resolves a global lattice position to its owning chunk and
// local index, or ok=false if no chunk is active there.
func (s *Simulation) chunkAndLocal(x, y int64) (*chunk.Chunk, int, bool) {
	w, h := int64(s.cfg.Chunk.Width), int64(s.cfg.Chunk.Height)
	cx := floorDiv(x, w)
	cy := floorDiv(y, h)
	c, ok := s.grid[chunk.Pos{X: int32(cx), Y: int32(cy)}]
	if !ok {
		return nil, 0, false
	}
	lx := x - cx*w
	ly := y - cy*h
	return c, c.Index(int(lx), int(ly)), true
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// SetCell places a cell at a global lattice position, clearing it if info
// is nil. It is a no-op outside the active chunk set.
func (s *Simulation) SetCell(x, y int64, info *cell.Info) {
	c, idx, ok := s.chunkAndLocal(x, y)
	if !ok {
		return
	}
	outside := c.SetTile(idx, info)
	for _, ref := range outside {
		if nb, ok := s.grid[ref.Chunk]; ok {
			nb.MarkExternalDirty(ref.Index)
		}
	}
	if info != nil {
		s.snap.Apply(singleUpdate(x, y, info))
	} else {
		s.snap.Apply(singleUpdate(x, y, nil))
	}
}

func singleUpdate(x, y int64, info *cell.Info) *view.Update {
	u := view.NewUpdate()
	u.Set(x, y, info)
	return u
}

// NewCell builds a cell.Info for a material from the loaded config, ready
// to be passed to SetCell.
func (s *Simulation) NewCell(tile cell.TileType) *cell.Info {
	mat := s.cfg.Material(tile.Name())
	return &cell.Info{
		Tile: tile,
		Physics: cell.Physics{
			IsStatic:     mat.IsStatic,
			Bounciness:   float32(mat.Bounciness),
			ImpulseSplit: float32(mat.ImpulseSplit),
			FrictionCoef: float32(mat.FrictionCoef),
		},
		Mass:         float32(mat.Mass),
		GravityScale: float32(mat.GravityScale),
	}
}

// At returns the cell at a global position, or nil if empty or outside
// the active chunk set.
func (s *Simulation) At(x, y int64) *cell.Info {
	return s.snap.At(x, y)
}

// Clear empties every active chunk, for an authoring tool's "reset" action.
func (s *Simulation) Clear() {
	for _, c := range s.grid {
		for i := 0; i < c.Area(); i++ {
			if !c.Occupied(i) {
				continue
			}
			c.SetTile(i, nil)
			gx, gy := c.GlobalPos(i)
			s.snap.Apply(singleUpdate(gx, gy, nil))
		}
	}
}

// Tick advances the simulation by exactly one tick, returning the
// resulting ViewUpdate.
func (s *Simulation) Tick() *view.Update {
	update := s.calc.Tick(s.grid, s.cfg)
	s.snap.Apply(update)
	s.ticks++
	return update
}

// Ticks reports how many ticks have elapsed.
func (s *Simulation) Ticks() int64 { return s.ticks }

// TickCounters reports this tick's movement/collision counters and a
// sample of occupied-cell velocity magnitudes, for telemetry.WindowStats.
func (s *Simulation) TickCounters() (occupied int, velocityMag []float64, subSteps, moved, collisions int) {
	for _, c := range s.grid {
		for i := 0; i < c.Area(); i++ {
			info := c.Cell(i)
			if info == nil {
				continue
			}
			occupied++
			velocityMag = append(velocityMag, float64(info.Velocity.Length()))
		}
	}
	subSteps, moved, collisions = s.calc.LastTickStats()
	return
}

// Snapshot exposes the read-model for renderers.
func (s *Simulation) Snapshot() *view.Snapshot { return s.snap }

// ChunkPositions returns the active chunk lattice positions.
func (s *Simulation) ChunkPositions() []chunk.Pos {
	out := make([]chunk.Pos, 0, len(s.grid))
	for p := range s.grid {
		out = append(out, p)
	}
	return out
}
