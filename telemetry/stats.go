package telemetry

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TickCounters holds the raw per-tick counts a simulation reports to
// telemetry: how much the grid moved and how it collided.
type TickCounters struct {
	Tick            int64
	OccupiedCells   int
	MovedCells      int
	CollisionPairs  int
	SubSteps        int
	VelocityMagSamp []float64 // |velocity| of every occupied cell, sampled once per tick
}

// WindowStats aggregates TickCounters over a rolling window using
// gonum/stat, the way a dashboard would summarize recent activity.
type WindowStats struct {
	windowSize int
	counters   []TickCounters
	writeIndex int
	count      int
}

// NewWindowStats creates a window of the given tick size.
func NewWindowStats(windowSize int) *WindowStats {
	if windowSize < 1 {
		windowSize = 60
	}
	return &WindowStats{
		windowSize: windowSize,
		counters:   make([]TickCounters, windowSize),
	}
}

// Record appends one tick's counters to the window.
func (w *WindowStats) Record(c TickCounters) {
	w.counters[w.writeIndex] = c
	w.writeIndex = (w.writeIndex + 1) % w.windowSize
	if w.count < w.windowSize {
		w.count++
	}
}

// WindowSummary holds the aggregated stats over a WindowStats window.
type WindowSummary struct {
	Ticks               int
	AvgOccupied         float64
	AvgMovedCells       float64
	AvgCollisionPairs   float64
	AvgSubSteps         float64
	VelocityMean        float64
	VelocityStdDev      float64
	VelocityP90         float64
}

// Summary computes a WindowSummary using gonum/stat's streaming-safe
// helpers (Mean, StdDev, Quantile over a sorted copy).
func (w *WindowStats) Summary() WindowSummary {
	if w.count == 0 {
		return WindowSummary{}
	}

	occupied := make([]float64, 0, w.count)
	moved := make([]float64, 0, w.count)
	pairs := make([]float64, 0, w.count)
	subSteps := make([]float64, 0, w.count)
	var velocities []float64

	for i := 0; i < w.count; i++ {
		c := w.counters[i]
		occupied = append(occupied, float64(c.OccupiedCells))
		moved = append(moved, float64(c.MovedCells))
		pairs = append(pairs, float64(c.CollisionPairs))
		subSteps = append(subSteps, float64(c.SubSteps))
		velocities = append(velocities, c.VelocityMagSamp...)
	}

	summary := WindowSummary{
		Ticks:             w.count,
		AvgOccupied:       stat.Mean(occupied, nil),
		AvgMovedCells:     stat.Mean(moved, nil),
		AvgCollisionPairs: stat.Mean(pairs, nil),
		AvgSubSteps:       stat.Mean(subSteps, nil),
	}

	if len(velocities) > 0 {
		sorted := append([]float64(nil), velocities...)
		sort.Float64s(sorted)
		summary.VelocityMean = stat.Mean(velocities, nil)
		summary.VelocityStdDev = stat.StdDev(velocities, nil)
		summary.VelocityP90 = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	}

	return summary
}

// WindowSummaryCSV is a flat struct for CSV export of a window summary.
type WindowSummaryCSV struct {
	WindowEnd         int32   `csv:"window_end"`
	Ticks             int     `csv:"ticks"`
	AvgOccupied       float64 `csv:"avg_occupied"`
	AvgMovedCells     float64 `csv:"avg_moved_cells"`
	AvgCollisionPairs float64 `csv:"avg_collision_pairs"`
	AvgSubSteps       float64 `csv:"avg_sub_steps"`
	VelocityMean      float64 `csv:"velocity_mean"`
	VelocityStdDev    float64 `csv:"velocity_stddev"`
	VelocityP90       float64 `csv:"velocity_p90"`
}

// ToCSV converts a WindowSummary to a flat CSV-friendly struct.
func (s WindowSummary) ToCSV(windowEnd int32) WindowSummaryCSV {
	return WindowSummaryCSV{
		WindowEnd:         windowEnd,
		Ticks:             s.Ticks,
		AvgOccupied:       s.AvgOccupied,
		AvgMovedCells:     s.AvgMovedCells,
		AvgCollisionPairs: s.AvgCollisionPairs,
		AvgSubSteps:       s.AvgSubSteps,
		VelocityMean:      s.VelocityMean,
		VelocityStdDev:    s.VelocityStdDev,
		VelocityP90:       s.VelocityP90,
	}
}
