package sim

import (
	"testing"

	"github.com/pthm-cable/tilesim/cell"
	"github.com/pthm-cable/tilesim/chunk"
	"github.com/pthm-cable/tilesim/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func singleChunkSim(t *testing.T) *Simulation {
	t.Helper()
	cfg := testConfig(t)
	return New(cfg, []chunk.Pos{{X: 0, Y: 0}})
}

func settle(s *Simulation, maxTicks int) {
	for i := 0; i < maxTicks; i++ {
		s.Tick()
	}
}

func TestSandFallsAndRestsOnBarrier(t *testing.T) {
	s := singleChunkSim(t)

	// The floor spans x=4..6 so the sand cannot roll off diagonally.
	s.SetCell(4, 0, s.NewCell(cell.Barrier))
	s.SetCell(5, 0, s.NewCell(cell.Barrier))
	s.SetCell(6, 0, s.NewCell(cell.Barrier))
	s.SetCell(5, 10, s.NewCell(cell.Sand))

	settle(s, 200)

	if info := s.At(5, 1); info == nil || info.Tile != cell.Sand {
		t.Fatalf("expected sand resting at (5,1), got %v", info)
	}
	if info := s.At(5, 10); info != nil {
		t.Fatalf("expected origin cell vacated, got %v", info)
	}
}

func TestSandStacksOnSand(t *testing.T) {
	s := singleChunkSim(t)

	// Barriers at x=4 and x=6 on rows 0 and 1 block both diagonal
	// roll-off candidates, so the upper sand has to stack on the lower.
	for y := int64(0); y <= 1; y++ {
		s.SetCell(4, y, s.NewCell(cell.Barrier))
		s.SetCell(6, y, s.NewCell(cell.Barrier))
	}
	s.SetCell(5, 0, s.NewCell(cell.Barrier))
	s.SetCell(5, 20, s.NewCell(cell.Sand))
	s.SetCell(5, 10, s.NewCell(cell.Sand))

	settle(s, 300)

	bottom := s.At(5, 1)
	top := s.At(5, 2)
	if bottom == nil || bottom.Tile != cell.Sand {
		t.Fatalf("expected sand at (5,1), got %v", bottom)
	}
	if top == nil || top.Tile != cell.Sand {
		t.Fatalf("expected sand stacked at (5,2), got %v", top)
	}
}

func TestSingleSandSurvivesOnFlatFloor(t *testing.T) {
	s := singleChunkSim(t)

	for x := int64(0); x < 10; x++ {
		s.SetCell(x, 0, s.NewCell(cell.Barrier))
	}
	s.SetCell(5, 15, s.NewCell(cell.Sand))

	settle(s, 400)

	occupied := 0
	for x := int64(0); x < 10; x++ {
		for y := int64(1); y < 16; y++ {
			if info := s.At(x, y); info != nil && info.Tile == cell.Sand {
				occupied++
			}
		}
	}
	if occupied != 1 {
		t.Fatalf("expected exactly 1 sand cell to survive on a flat floor, found %d", occupied)
	}
}

func TestBarrierNeverMoves(t *testing.T) {
	s := singleChunkSim(t)
	s.SetCell(5, 5, s.NewCell(cell.Barrier))

	settle(s, 50)

	if info := s.At(5, 5); info == nil || info.Tile != cell.Barrier {
		t.Fatalf("barrier moved or vanished: %v", info)
	}
}

func TestDenseColumnSettlesWithoutLoss(t *testing.T) {
	s := singleChunkSim(t)

	for x := int64(0); x < 20; x++ {
		s.SetCell(x, 0, s.NewCell(cell.Barrier))
	}
	count := 0
	for y := int64(1); y <= 10; y++ {
		s.SetCell(10, y, s.NewCell(cell.Sand))
		count++
	}

	settle(s, 500)

	found := 0
	for x := int64(0); x < 20; x++ {
		for y := int64(1); y < 15; y++ {
			if info := s.At(x, y); info != nil && info.Tile == cell.Sand {
				found++
			}
		}
	}
	if found != count {
		t.Fatalf("sand count changed after settling: got %d, want %d", found, count)
	}
}

func TestClearEmptiesGrid(t *testing.T) {
	s := singleChunkSim(t)
	s.SetCell(1, 1, s.NewCell(cell.Sand))
	s.SetCell(2, 2, s.NewCell(cell.Barrier))

	s.Clear()

	if s.At(1, 1) != nil || s.At(2, 2) != nil {
		t.Fatalf("expected grid empty after Clear")
	}
}
