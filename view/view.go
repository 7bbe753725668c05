// Package view implements the per-tick ViewUpdate the renderer consumes:
// an additive, last-write-wins diff from global lattice position to the
// cell now occupying it.
package view

import (
	"sync"

	"github.com/pthm-cable/tilesim/cell"
)

// Pos is a global lattice coordinate, independent of chunk boundaries.
type Pos struct {
	X, Y int64
}

// Update accumulates position->occupant changes across a tick's sub-steps.
// A nil *cell.Info means the position was vacated. Later writes to the
// same position overwrite earlier ones within the same Update: last
// write wins.
type Update struct {
	mu      sync.Mutex
	changes map[Pos]*cell.Info
}

// NewUpdate returns an empty Update ready for concurrent writers.
func NewUpdate() *Update {
	return &Update{changes: make(map[Pos]*cell.Info)}
}

// Set records that the cell at (x, y) now holds info (nil for vacated).
func (u *Update) Set(x, y int64, info *cell.Info) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.changes[Pos{X: x, Y: y}] = info
}

// Len reports how many distinct positions changed this tick.
func (u *Update) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.changes)
}

// Range calls fn once per changed position, in no particular order. fn
// must not call back into u.
func (u *Update) Range(fn func(pos Pos, info *cell.Info)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for pos, info := range u.changes {
		fn(pos, info)
	}
}

// Snapshot is a full-grid read model a renderer can query by position,
// kept current by repeatedly applying Updates.
type Snapshot struct {
	mu    sync.RWMutex
	cells map[Pos]*cell.Info
}

// NewSnapshot returns an empty Snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{cells: make(map[Pos]*cell.Info)}
}

// Apply merges an Update into the snapshot: nil entries delete, non-nil
// entries overwrite.
func (s *Snapshot) Apply(u *Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Range(func(pos Pos, info *cell.Info) {
		if info == nil {
			delete(s.cells, pos)
		} else {
			s.cells[pos] = info
		}
	})
}

// At returns the cell occupying a global position, or nil if empty.
func (s *Snapshot) At(x, y int64) *cell.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cells[Pos{X: x, Y: y}]
}

// Len reports the number of occupied cells tracked by the snapshot.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}
