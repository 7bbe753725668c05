package telemetry

import (
	"math"
	"testing"
)

func TestWindowStatsSummaryAverages(t *testing.T) {
	w := NewWindowStats(10)

	for i := 0; i < 5; i++ {
		w.Record(TickCounters{
			Tick:           int64(i),
			OccupiedCells:  100 + i,
			MovedCells:     10,
			CollisionPairs: 2,
			SubSteps:       3,
		})
	}

	summary := w.Summary()

	if summary.Ticks != 5 {
		t.Errorf("Ticks = %d, want 5", summary.Ticks)
	}
	if math.Abs(summary.AvgMovedCells-10) > 0.001 {
		t.Errorf("AvgMovedCells = %v, want 10", summary.AvgMovedCells)
	}
	if math.Abs(summary.AvgCollisionPairs-2) > 0.001 {
		t.Errorf("AvgCollisionPairs = %v, want 2", summary.AvgCollisionPairs)
	}
}

func TestWindowStatsRollsOverOldSamples(t *testing.T) {
	w := NewWindowStats(3)

	for i := 0; i < 6; i++ {
		w.Record(TickCounters{MovedCells: i})
	}

	summary := w.Summary()
	if summary.Ticks != 3 {
		t.Errorf("Ticks = %d, want 3 after rollover", summary.Ticks)
	}
	// Only the last 3 records (3, 4, 5) should remain, averaging to 4.
	if math.Abs(summary.AvgMovedCells-4) > 0.001 {
		t.Errorf("AvgMovedCells = %v, want 4 after rollover", summary.AvgMovedCells)
	}
}

func TestWindowStatsVelocityPercentile(t *testing.T) {
	w := NewWindowStats(10)
	w.Record(TickCounters{VelocityMagSamp: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}})

	summary := w.Summary()

	if math.Abs(summary.VelocityMean-5.5) > 0.001 {
		t.Errorf("VelocityMean = %v, want 5.5", summary.VelocityMean)
	}
	if summary.VelocityP90 <= summary.VelocityMean {
		t.Errorf("VelocityP90 (%v) should exceed VelocityMean (%v)", summary.VelocityP90, summary.VelocityMean)
	}
}

func TestWindowStatsSummaryEmpty(t *testing.T) {
	w := NewWindowStats(10)
	summary := w.Summary()

	if summary != (WindowSummary{}) {
		t.Errorf("expected zero-value summary for empty window, got %+v", summary)
	}
}

func TestWindowSummaryToCSV(t *testing.T) {
	w := NewWindowStats(10)
	w.Record(TickCounters{OccupiedCells: 50, MovedCells: 5, CollisionPairs: 1, SubSteps: 2})

	csv := w.Summary().ToCSV(7)

	if csv.WindowEnd != 7 {
		t.Errorf("WindowEnd = %d, want 7", csv.WindowEnd)
	}
	if csv.Ticks != 1 {
		t.Errorf("Ticks = %d, want 1", csv.Ticks)
	}
}
