package control

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
)

// WrapAngle maps a into (-pi, pi].
func WrapAngle(a float64) float64 {
	r := math.Remainder(a, 2*math.Pi)
	if r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}

// BodyToWorld rotates a body-frame offset by the pose yaw and adds it to the
// pose position, giving the point in the odometry frame.
func BodyToWorld(pose Pose2D, x, y float64) r2.Vec {
	offset := r2.Rotate(r2.Vec{X: x, Y: y}, pose.Yaw, r2.Vec{})
	return r2.Add(pose.Position(), offset)
}

// saturate clamps both axes and replaces non-finite values with zero.
func saturate(cmd VelocityCommand, linMax, angMax float64) VelocityCommand {
	if math.IsNaN(cmd.Linear) || math.IsInf(cmd.Linear, 0) {
		cmd.Linear = 0
	}
	if math.IsNaN(cmd.Angular) || math.IsInf(cmd.Angular, 0) {
		cmd.Angular = 0
	}
	cmd.Linear = lo.Clamp(cmd.Linear, -linMax, linMax)
	cmd.Angular = lo.Clamp(cmd.Angular, -angMax, angMax)
	return cmd
}
