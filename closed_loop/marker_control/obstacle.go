package control

import "math"

// rangeFloor bounds the weight of a return at (near) zero range.
const rangeFloor = 0.05

// ObstacleField is the potential-field summary of one scan.
type ObstacleField struct {
	Repulsion float64 // normalized steering away from returns, in [-1, 1]
	Pressure  float64 // sum of 1/r weights, 0 when nothing is close
}

// SenseObstacles reduces scan to a single repulsion term.
//
// Only returns closer than avoidThresh whose bearing lies within
// [-window, +window] count; window <= 0 counts the whole sweep. A nil or
// empty scan yields a zero field.
func SenseObstacles(scan *RangeScan, avoidThresh, window float64) ObstacleField {
	if scan == nil || len(scan.Ranges) == 0 {
		return ObstacleField{}
	}

	var sum, pressure float64
	for i, r := range scan.Ranges {
		if !(r > 0) || math.IsInf(r, 0) || r >= avoidThresh {
			continue
		}
		bearing := WrapAngle(scan.Bearing(i))
		if window > 0 && math.Abs(bearing) > window {
			continue
		}
		w := 1.0 / math.Max(r, rangeFloor)
		sum -= math.Sin(bearing) * w
		pressure += w
	}

	if pressure == 0 {
		return ObstacleField{}
	}
	return ObstacleField{Repulsion: sum / pressure, Pressure: pressure}
}
