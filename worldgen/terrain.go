// Package worldgen seeds a simulation with an initial terrain layout from
// 2D OpenSimplex noise.
package worldgen

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/tilesim/cell"
	"github.com/pthm-cable/tilesim/chunk"
	"github.com/pthm-cable/tilesim/sim"
)

// Params controls terrain generation.
type Params struct {
	Seed          int64
	Scale         float64 // noise coordinate scale; smaller values = larger features
	BarrierCutoff float64 // noise values below this become barrier
	SandCutoff    float64 // noise values below this (and above BarrierCutoff) become sand
}

// DefaultParams returns reasonable generation defaults.
func DefaultParams(seed int64) Params {
	return Params{
		Seed:          seed,
		Scale:         0.05,
		BarrierCutoff: -0.6,
		SandCutoff:    -0.1,
	}
}

// Generate fills every active chunk of s with barrier/sand/empty cells
// from 2D OpenSimplex noise, and returns a water layer rectangle left
// empty for the caller to flood separately if desired.
func Generate(s *sim.Simulation, positions []chunk.Pos, width, height int, p Params) {
	noise := opensimplex.New(p.Seed)
	for _, pos := range positions {
		for ly := 0; ly < height; ly++ {
			for lx := 0; lx < width; lx++ {
				gx := int64(pos.X)*int64(width) + int64(lx)
				gy := int64(pos.Y)*int64(height) + int64(ly)
				n := noise.Eval2(float64(gx)*p.Scale, float64(gy)*p.Scale)
				switch {
				case n < p.BarrierCutoff:
					s.SetCell(gx, gy, s.NewCell(cell.Barrier))
				case n < p.SandCutoff:
					s.SetCell(gx, gy, s.NewCell(cell.Sand))
				}
			}
		}
	}
}

// FillWater floods a rectangular region (in global lattice coordinates)
// with water, skipping any cell already occupied by terrain.
func FillWater(s *sim.Simulation, x0, y0, x1, y1 int64) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if s.At(x, y) != nil {
				continue
			}
			s.SetCell(x, y, s.NewCell(cell.Water))
		}
	}
}
