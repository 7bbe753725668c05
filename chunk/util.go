package chunk

import (
	"math"

	"github.com/pthm-cable/tilesim/cell"
)

// floorSigned floors the absolute value of each component while preserving
// sign, so a negative process_velocity accumulates an integer tick_velocity
// symmetrically with a positive one.
func floorSigned(v cell.Vec2) cell.IVec2 {
	return cell.IVec2{X: floorAbsSigned(v.X), Y: floorAbsSigned(v.Y)}
}

func floorAbsSigned(f float32) int32 {
	if f < 0 {
		return -int32(math.Floor(float64(-f)))
	}
	return int32(math.Floor(float64(f)))
}
