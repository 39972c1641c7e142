package control

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
)

// DockingController runs the precision phases: an in-place rotation that
// turns the robot's rear toward a fixed waypoint, then a backward creep with
// independent angular and linear regulators.
type DockingController struct {
	opts Options
	pid  PIDController
}

// NewDockingController builds the docking regulators from opts.
func NewDockingController(opts Options) DockingController {
	return DockingController{opts: opts, pid: NewPIDController(opts.PID, opts.AngularMax)}
}

// Waypoint projects the target's body-frame offset into the odometry frame
// and returns it with the heading that points the robot's rear at it.
func (dc DockingController) Waypoint(pose Pose2D, target TrackedTarget) (r2.Vec, float64) {
	wp := BodyToWorld(pose, target.X, target.Y)
	return wp, rearHeading(pose, wp, pose.Yaw)
}

// Rotate turns in place toward goalHeading. done is set once the heading
// error is inside the rotate tolerance.
func (dc DockingController) Rotate(pose Pose2D, goalHeading float64) (cmd VelocityCommand, headingErr float64, done bool) {
	headingErr = WrapAngle(goalHeading - pose.Yaw)
	if math.Abs(headingErr) < dc.opts.RotateTolerance {
		return VelocityCommand{}, headingErr, true
	}
	angular := lo.Clamp(dc.opts.RotateKp*headingErr, -dc.opts.AngularMax, dc.opts.AngularMax)
	return VelocityCommand{Angular: angular}, headingErr, false
}

// CreepResult is the outcome of one backward creep tick.
type CreepResult struct {
	Command      VelocityCommand
	PID          PIDState
	HeadingError float64
	LinearError  float64
	Done         bool
}

// Creep backs toward wp. While outside the linear tolerance the heading
// reference follows the line of sight so lateral drift is corrected; inside
// it the held goalHeading is used.
func (dc DockingController) Creep(pose Pose2D, wp r2.Vec, goalHeading float64, pid PIDState, dt float64) CreepResult {
	linErr := r2.Norm(r2.Sub(wp, pose.Position()))

	reference := goalHeading
	if linErr >= dc.opts.LinearTolerance {
		reference = rearHeading(pose, wp, goalHeading)
	}
	headingErr := WrapAngle(reference - pose.Yaw)

	angular, next := dc.pid.Update(pid, headingErr, dt)

	var linear float64
	if linErr >= dc.opts.LinearTolerance {
		linear = -math.Min(dc.opts.LinearGain*linErr, dc.opts.MaxLinVel)
	}

	res := CreepResult{
		Command:      VelocityCommand{Linear: linear, Angular: angular},
		PID:          next,
		HeadingError: headingErr,
		LinearError:  linErr,
	}
	if linErr < dc.opts.LinearTolerance && math.Abs(headingErr) < dc.opts.RotateTolerance {
		res.Command = VelocityCommand{}
		res.Done = true
	}
	return res
}

// rearHeading is the yaw that points the robot's rear at wp, or fallback
// when the robot already sits on it.
func rearHeading(pose Pose2D, wp r2.Vec, fallback float64) float64 {
	d := r2.Sub(wp, pose.Position())
	if d.X == 0 && d.Y == 0 {
		return WrapAngle(fallback)
	}
	return WrapAngle(math.Atan2(d.Y, d.X) + math.Pi)
}
