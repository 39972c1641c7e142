package control

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// SelectNearest starts tracking the detection nearest to the robot.
//
// Each detection is projected into the odometry frame before measuring; ties
// keep the earliest detection.
func SelectNearest(dets []MarkerDetection, pose Pose2D) (*TrackedTarget, bool) {
	i, ok := nearestIndex(dets, pose)
	if !ok {
		return nil, false
	}
	d := dets[i]
	return &TrackedTarget{ID: d.ID, X: d.X, Y: d.Y, Yaw: d.Yaw, HasYaw: d.HasYaw, Found: true}, true
}

// Reacquire looks for the tracked identity among dets and returns the
// refreshed target. When it is missing the returned target keeps its last
// known position with Found cleared.
func Reacquire(target TrackedTarget, dets []MarkerDetection) (TrackedTarget, bool) {
	i, ok := ByID(target.ID)(dets)
	if !ok {
		target.Found = false
		return target, false
	}
	d := dets[i]
	target.X, target.Y = d.X, d.Y
	target.Yaw, target.HasYaw = d.Yaw, d.HasYaw
	target.Found = true
	return target, true
}

func nearestIndex(dets []MarkerDetection, pose Pose2D) (int, bool) {
	origin := pose.Position()
	best := -1
	bestDist := math.Inf(1)
	for i, d := range dets {
		dist := r2.Norm(r2.Sub(BodyToWorld(pose, d.X, d.Y), origin))
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best, best >= 0
}
