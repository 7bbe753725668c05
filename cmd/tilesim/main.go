// Command tilesim runs the chunked tile simulator with a raylib window, a
// fixed-timestep driver, and an interactive material-paint tool.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tilesim/cell"
	"github.com/pthm-cable/tilesim/chunk"
	"github.com/pthm-cable/tilesim/config"
	"github.com/pthm-cable/tilesim/sim"
	"github.com/pthm-cable/tilesim/telemetry"
	"github.com/pthm-cable/tilesim/worldgen"
)

var (
	configPath  = flag.String("config", "", "Path to a YAML config file overriding the embedded defaults")
	gridW       = flag.Int("grid-w", 6, "Number of chunks across")
	gridH       = flag.Int("grid-h", 4, "Number of chunks tall")
	seed        = flag.Int64("seed", 1, "Terrain generation seed")
	headless    = flag.Bool("headless", false, "Run without a window, for benchmarking")
	maxTicks    = flag.Int("max-ticks", 0, "Stop after N ticks (0 = run forever; only meaningful with -headless)")
	perfLog     = flag.Bool("perf", false, "Log performance stats every telemetry window")
	outputDir   = flag.String("output", "", "Directory for telemetry/perf CSV output (empty disables)")
)

const (
	cellPixels = 6
)

func main() {
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *headless {
		runHeadless(cfg)
		return
	}
	runWindowed(cfg)
}

func newWorld(cfg *config.Config) *sim.Simulation {
	positions := make([]chunk.Pos, 0, *gridW**gridH)
	for y := 0; y < *gridH; y++ {
		for x := 0; x < *gridW; x++ {
			positions = append(positions, chunk.Pos{X: int32(x), Y: int32(y)})
		}
	}
	s := sim.New(cfg, positions)
	worldgen.Generate(s, positions, cfg.Chunk.Width, cfg.Chunk.Height, worldgen.DefaultParams(*seed))
	return s
}

func runHeadless(cfg *config.Config) {
	s := newWorld(cfg)
	perf := telemetry.NewPerfCollector(int(cfg.Telemetry.WindowTicks))
	window := telemetry.NewWindowStats(int(cfg.Telemetry.WindowTicks))
	dir := cfg.Telemetry.OutputDir
	if *outputDir != "" {
		dir = *outputDir
	}
	out, err := telemetry.NewOutputManager(dir)
	if err != nil {
		slog.Error("telemetry output", "err", err)
		os.Exit(1)
	}
	defer out.Close()
	if out != nil {
		if err := out.WriteConfig(cfg); err != nil {
			slog.Error("write config", "err", err)
		}
	}

	for tick := 0; *maxTicks == 0 || tick < *maxTicks; tick++ {
		perf.StartTick()
		s.Tick()
		perf.EndTick()

		occupied, velMag, subSteps, moved, collisions := s.TickCounters()
		window.Record(telemetry.TickCounters{
			Tick:            s.Ticks(),
			OccupiedCells:   occupied,
			MovedCells:      moved,
			CollisionPairs:  collisions,
			SubSteps:        subSteps,
			VelocityMagSamp: velMag,
		})

		if int(cfg.Telemetry.WindowTicks) > 0 && tick%int(cfg.Telemetry.WindowTicks) == int(cfg.Telemetry.WindowTicks)-1 {
			stats := perf.Stats()
			if *perfLog {
				stats.LogStats()
			}
			if out != nil {
				out.WritePerf(stats, int32(tick))
				out.WriteTelemetry(window.Summary().ToCSV(int32(tick)))
			}
		}
	}
}

func runWindowed(cfg *config.Config) {
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "tilesim")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	s := newWorld(cfg)
	perf := telemetry.NewPerfCollector(int(cfg.Telemetry.WindowTicks))

	rng := rand.New(rand.NewSource(*seed))
	paused := false
	showVelocity := false
	brush := cell.Sand
	accumulator := float32(0)
	lastMouse := rl.Vector2{}

	for !rl.WindowShouldClose() {
		dt := rl.GetFrameTime()
		step := false
		handleInput(&paused, &showVelocity, &brush, &step)
		handlePaint(s, brush, rng, &lastMouse)

		if !paused {
			accumulator += dt
		}
		if step {
			perf.StartTick()
			s.Tick()
			perf.EndTick()
		} else {
			updates := 0
			for accumulator >= cfg.Derived.FixedDeltaTime32 && updates < cfg.Physics.MaxUpdatesPerFrame {
				perf.StartTick()
				s.Tick()
				perf.EndTick()
				accumulator -= cfg.Derived.FixedDeltaTime32
				updates++
			}
		}
		perf.RecordFrame()

		draw(s, cfg, showVelocity, brush, perf)
	}
}

// handleInput applies this frame's key presses. Space single-steps the
// simulation by exactly one tick while paused; it has no effect while
// running since the accumulator already drives ticks every frame.
func handleInput(paused, showVelocity *bool, brush *cell.TileType, step *bool) {
	if rl.IsKeyPressed(rl.KeyP) {
		*paused = !*paused
	}
	if rl.IsKeyPressed(rl.KeySpace) && *paused {
		*step = true
	}
	if rl.IsKeyPressed(rl.KeyF1) {
		*showVelocity = !*showVelocity
	}
	if rl.IsKeyPressed(rl.KeyOne) {
		*brush = cell.Barrier
	}
	if rl.IsKeyPressed(rl.KeyTwo) {
		*brush = cell.Sand
	}
	if rl.IsKeyPressed(rl.KeyThree) {
		*brush = cell.Water
	}
}

func handlePaint(s *sim.Simulation, brush cell.TileType, rng *rand.Rand, lastMouse *rl.Vector2) {
	mouse := rl.GetMousePosition()
	defer func() { *lastMouse = mouse }()

	switch {
	case rl.IsMouseButtonDown(rl.MouseLeftButton):
		paintAt(s, brush, mouse, rng)
	case rl.IsMouseButtonDown(rl.MouseRightButton):
		gx, gy := screenToLattice(mouse)
		s.SetCell(gx, gy, nil)
	}
}

func screenToLattice(p rl.Vector2) (int64, int64) {
	return int64(p.X) / cellPixels, int64(p.Y) / cellPixels
}

// paintAt drops a cell at the cursor with a downward velocity bias and a
// small jitter, so painted sand/water doesn't fall in a perfectly
// synchronized column.
func paintAt(s *sim.Simulation, brush cell.TileType, mouse rl.Vector2, rng *rand.Rand) {
	gx, gy := screenToLattice(mouse)
	if s.At(gx, gy) != nil {
		return
	}
	info := s.NewCell(brush)
	info.Velocity = cell.Vec2{
		X: (rng.Float32() - 0.5) * 0.5,
		Y: -rng.Float32()*0.5 - 0.5,
	}
	s.SetCell(gx, gy, info)
}

func draw(s *sim.Simulation, cfg *config.Config, showVelocity bool, brush cell.TileType, perf *telemetry.PerfCollector) {
	rl.BeginDrawing()
	rl.ClearBackground(rl.RayWhite)

	snap := s.Snapshot()
	for _, pos := range s.ChunkPositions() {
		x0 := int64(pos.X) * int64(cfg.Chunk.Width)
		y0 := int64(pos.Y) * int64(cfg.Chunk.Height)
		for ly := 0; ly < cfg.Chunk.Height; ly++ {
			for lx := 0; lx < cfg.Chunk.Width; lx++ {
				gx, gy := x0+int64(lx), y0+int64(ly)
				info := snap.At(gx, gy)
				if info == nil {
					continue
				}
				drawCell(gx, gy, info, showVelocity)
			}
		}
	}

	stats := perf.Stats()
	rl.DrawText(fmt.Sprintf("tick %d  fps %.0f  brush %s", s.Ticks(), stats.FPS, brush), 10, 10, 16, rl.DarkGray)
	if gui.Button(rl.Rectangle{X: 10, Y: 30, Width: 90, Height: 24}, "Clear All") {
		s.Clear()
	}
	rl.EndDrawing()
}

func drawCell(gx, gy int64, info *cell.Info, showVelocity bool) {
	color := materialColor(info.Tile)
	x := int32(gx * cellPixels)
	y := int32(gy * cellPixels)
	rl.DrawRectangle(x, y, cellPixels, cellPixels, color)
	if showVelocity && !info.Physics.IsStatic {
		end := rl.Vector2{
			X: float32(x) + cellPixels/2 + info.Velocity.X*4,
			Y: float32(y) + cellPixels/2 + info.Velocity.Y*4,
		}
		rl.DrawLineV(rl.Vector2{X: float32(x) + cellPixels/2, Y: float32(y) + cellPixels/2}, end, rl.Red)
	}
}

func materialColor(t cell.TileType) rl.Color {
	switch t {
	case cell.Barrier:
		return rl.Gray
	case cell.Sand:
		return rl.Color{R: 0xC2, G: 0xA3, B: 0x3E, A: 0xFF}
	case cell.Water:
		return rl.Color{R: 0x3E, G: 0x78, B: 0xC2, A: 0xB0}
	default:
		return rl.Blank
	}
}
