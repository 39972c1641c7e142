package control

import "math"

// Goal is the bearing and distance to the selected marker.
//
// Bearings follow the x-forward, y-left convention: atan2(y, x).
type Goal struct {
	Bearing  float64
	Distance float64
	Visible  bool
}

// GoalAt returns the goal for a body-frame point.
func GoalAt(x, y float64) Goal {
	return Goal{Bearing: math.Atan2(y, x), Distance: math.Hypot(x, y), Visible: true}
}

// SelectionPolicy picks one detection index out of a tick's detections.
type SelectionPolicy func(dets []MarkerDetection) (int, bool)

// FirstDetection picks the first detection in arrival order.
func FirstDetection(dets []MarkerDetection) (int, bool) {
	return 0, len(dets) > 0
}

// ByID picks the first detection carrying id.
func ByID(id int) SelectionPolicy {
	return func(dets []MarkerDetection) (int, bool) {
		for i, d := range dets {
			if d.ID == id {
				return i, true
			}
		}
		return -1, false
	}
}

// Nearest picks the detection closest to the robot in the odometry frame.
func Nearest(pose Pose2D) SelectionPolicy {
	return func(dets []MarkerDetection) (int, bool) {
		return nearestIndex(dets, pose)
	}
}

// SenseGoal selects a detection with pick (FirstDetection when nil) and
// returns its goal. No detections, or no match, yields an invisible goal.
func SenseGoal(dets []MarkerDetection, pick SelectionPolicy) Goal {
	if len(dets) == 0 {
		return Goal{}
	}
	if pick == nil {
		pick = FirstDetection
	}
	i, ok := pick(dets)
	if !ok {
		return Goal{}
	}
	return GoalAt(dets[i].X, dets[i].Y)
}
