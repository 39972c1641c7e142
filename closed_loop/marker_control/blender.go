package control

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// steerScale scales both the goal and avoidance terms.
	steerScale = 0.3
	// pressureScale sets how strongly close returns slow the robot.
	pressureScale = 0.1
)

// ApproachInput is what a coarse approach law sees each tick.
type ApproachInput struct {
	Goal        Goal
	Obstacles   ObstacleField
	Pose        Pose2D
	Target      r2.Vec  // odometry-frame marker position
	GoalHeading float64 // desired final heading at the marker
}

// ApproachLaw turns the current approach geometry into a command.
//
// Implementations must be pure; the state machine may swap them at any tick.
type ApproachLaw interface {
	Approach(in ApproachInput) VelocityCommand
}

// ReactiveBlender is the "ant" law: steer toward the goal, away from close
// returns, and slow down near the goal or when confined.
type ReactiveBlender struct {
	opts Options
}

// NewReactiveBlender builds the law from opts.
func NewReactiveBlender(opts Options) ReactiveBlender {
	return ReactiveBlender{opts: opts}
}

// Approach implements ApproachLaw.
func (b ReactiveBlender) Approach(in ApproachInput) VelocityCommand {
	return b.Blend(in.Goal, in.Obstacles)
}

// Blend combines goal attraction and obstacle repulsion.
func (b ReactiveBlender) Blend(goal Goal, field ObstacleField) VelocityCommand {
	o := b.opts

	var angular float64
	if goal.Visible {
		angular += o.KGoal * goal.Bearing * steerScale
	}
	if field.Pressure > 0 {
		angular += o.KAvoid * field.Repulsion * steerScale
	}
	if !goal.Visible {
		angular *= o.NoGoalDamping
	}
	if math.Abs(angular) < o.Deadband {
		angular = 0
	}
	angular = lo.Clamp(angular, -o.AngularMax, o.AngularMax)

	slowdown := 1.0
	if goal.Visible {
		slowdown = math.Max(o.SlowdownFloor, 1-math.Exp(-o.DecayRate*goal.Distance))
	}
	linear := o.BaseSpeed * (1 / (1 + pressureScale*field.Pressure)) * slowdown

	// Stop on top of the goal, and line up before driving.
	if goal.Visible && (goal.Distance < o.ArrivalRadius || math.Abs(goal.Bearing) > o.AlignThreshold) {
		linear = 0
	}

	return saturate(VelocityCommand{Linear: lo.Clamp(linear, 0, o.MaxLinVel), Angular: angular}, o.MaxLinVel, o.AngularMax)
}
