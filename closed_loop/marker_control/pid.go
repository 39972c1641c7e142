package control

import "github.com/samber/lo"

// PIDState is the regulator memory carried between ticks in NavState.
type PIDState struct {
	Integral    float64
	PrevError   float64
	Initialized bool
}

// PIDController is a discrete PID with output saturation and integral
// anti-windup. It holds no state of its own.
type PIDController struct {
	gains PIDGains
	limit float64
}

// NewPIDController creates a regulator saturating at +/-limit.
func NewPIDController(gains PIDGains, limit float64) PIDController {
	return PIDController{gains: gains, limit: limit}
}

// Update computes the output for err and returns the next state.
//
// dt <= 0 skips the integral and derivative terms for this tick only and
// leaves the carried state untouched.
func (pid PIDController) Update(s PIDState, err, dt float64) (float64, PIDState) {
	p := pid.gains.P * err

	if dt <= 0 {
		return lo.Clamp(p, -pid.limit, pid.limit), s
	}

	integral := s.Integral + err*dt
	if lim := pid.gains.IntegralLimit; lim > 0 {
		integral = lo.Clamp(integral, -lim, lim)
	}

	var d float64
	if s.Initialized {
		d = pid.gains.D * (err - s.PrevError) / dt
	}

	out := p + pid.gains.I*integral + d
	saturated := out > pid.limit || out < -pid.limit
	out = lo.Clamp(out, -pid.limit, pid.limit)
	// Hold the integral while saturated in the direction of the error.
	if !saturated || err*out <= 0 {
		s.Integral = integral
	}

	s.PrevError = err
	s.Initialized = true
	return out, s
}
