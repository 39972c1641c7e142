package control

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
)

// PolarRegulator drives position and heading error to zero using the
// rho/alpha/beta parameterization. It ignores obstacles.
type PolarRegulator struct {
	KRho       float64
	KAlpha     float64
	KBeta      float64
	MaxLinVel  float64
	AngularMax float64
}

// NewPolarRegulator builds the law from opts.
func NewPolarRegulator(opts Options) PolarRegulator {
	return PolarRegulator{
		KRho:       opts.KRho,
		KAlpha:     opts.KAlpha,
		KBeta:      opts.KBeta,
		MaxLinVel:  opts.MaxLinVel,
		AngularMax: opts.AngularMax,
	}
}

// Approach implements ApproachLaw.
func (p PolarRegulator) Approach(in ApproachInput) VelocityCommand {
	rho, alpha, beta := PolarErrors(in.Pose, in.Target, in.GoalHeading)
	cmd := VelocityCommand{
		Linear:  lo.Clamp(p.KRho*rho, 0, p.MaxLinVel),
		Angular: p.KAlpha*alpha + p.KBeta*beta,
	}
	return saturate(cmd, p.MaxLinVel, p.AngularMax)
}

// PolarErrors returns the distance to target (rho), the bearing of target
// relative to the robot heading (alpha) and the remaining heading error once
// alpha is corrected (beta). Both angles are wrapped to (-pi, pi].
func PolarErrors(pose Pose2D, target r2.Vec, goalHeading float64) (rho, alpha, beta float64) {
	d := r2.Sub(target, pose.Position())
	rho = r2.Norm(d)
	alpha = WrapAngle(math.Atan2(d.Y, d.X) - pose.Yaw)
	beta = WrapAngle(goalHeading - pose.Yaw - alpha)
	return rho, alpha, beta
}
