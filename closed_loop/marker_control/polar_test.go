package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestPolarErrors(t *testing.T) {
	tests := []struct {
		name             string
		pose             Pose2D
		target           r2.Vec
		heading          float64
		rho, alpha, beta float64
	}{
		{"dead ahead", Pose2D{}, r2.Vec{X: 1}, 0, 1, 0, 0},
		{"to the left", Pose2D{}, r2.Vec{Y: 1}, 0, 1, math.Pi / 2, -math.Pi / 2},
		{"rotated robot", Pose2D{X: 1, Y: 1, Yaw: math.Pi / 2}, r2.Vec{X: 1, Y: 3}, math.Pi / 2, 2, 0, 0},
		{"behind wraps", Pose2D{Yaw: 3}, r2.Vec{X: 1}, 0, 1, WrapAngle(-3), WrapAngle(-3 - WrapAngle(-3))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rho, alpha, beta := PolarErrors(tt.pose, tt.target, tt.heading)
			assert.InDelta(t, tt.rho, rho, 1e-9)
			assert.InDelta(t, tt.alpha, alpha, 1e-9)
			assert.InDelta(t, tt.beta, beta, 1e-9)
		})
	}
}

func TestPolarRegulator_Approach(t *testing.T) {
	p := NewPolarRegulator(DefaultOptions())

	cmd := p.Approach(ApproachInput{Target: r2.Vec{X: 1}})
	assert.InDelta(t, 0.3, cmd.Linear, 1e-9)
	assert.InDelta(t, 0.0, cmd.Angular, 1e-9)

	cmd = p.Approach(ApproachInput{Target: r2.Vec{X: 0.1}})
	assert.InDelta(t, 0.1, cmd.Linear, 1e-9)

	cmd = p.Approach(ApproachInput{Target: r2.Vec{Y: 1}})
	assert.InDelta(t, 2.0, cmd.Angular, 1e-9, "must saturate at angular_max")
}
