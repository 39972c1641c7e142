package control

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Approach law names accepted by Options.ApproachLaw.
const (
	LawReactive = "reactive"
	LawPolar    = "polar"
)

// ErrInvalidOptions is returned when Options fail validation.
var ErrInvalidOptions = errors.New("invalid controller options")

// PIDGains holds the angular regulator parameters used while docking.
type PIDGains struct {
	P             float64 `yaml:"p"`
	I             float64 `yaml:"i"`
	D             float64 `yaml:"d"`
	IntegralLimit float64 `yaml:"integral_limit"` // 0 disables the clamp
}

// Options is the immutable tuning of a Controller.
type Options struct {
	// Reactive (ant) layer.
	KGoal          float64 `yaml:"k_goal"`
	KAvoid         float64 `yaml:"k_avoid"`
	BaseSpeed      float64 `yaml:"base_speed"`
	AvoidThresh    float64 `yaml:"avoid_thresh"`
	AvoidWindow    float64 `yaml:"avoid_window"` // half-width in radians, 0 uses the whole scan
	AngularMax     float64 `yaml:"angular_max"`
	MaxLinVel      float64 `yaml:"max_lin_vel"`
	ArrivalRadius  float64 `yaml:"arrival_radius"`
	AlignThreshold float64 `yaml:"align_threshold"`
	NoGoalDamping  float64 `yaml:"no_goal_damping"`
	Deadband       float64 `yaml:"deadband"`
	DecayRate      float64 `yaml:"decay_rate"`
	SlowdownFloor  float64 `yaml:"slowdown_floor"`

	// Exploration while searching.
	PExplore   float64 `yaml:"p_explore"`
	SearchKp   float64 `yaml:"search_kp"`
	TurnSpeed  float64 `yaml:"turn_speed"`
	SearchCone float64 `yaml:"search_cone"`

	// Precision docking.
	Docking         bool     `yaml:"docking"`
	RotateKp        float64  `yaml:"rotate_kp"`
	RotateTolerance float64  `yaml:"rotate_tolerance"`
	LinearTolerance float64  `yaml:"linear_tolerance"`
	LinearGain      float64  `yaml:"linear_gain"`
	PID             PIDGains `yaml:"pid"`
	DockLostTimeout float64  `yaml:"dock_lost_timeout"` // seconds the waypoint is held without a sighting

	// Coarse approach law and its polar gains.
	ApproachLaw string  `yaml:"approach_law"`
	KRho        float64 `yaml:"k_rho"`
	KAlpha      float64 `yaml:"k_alpha"`
	KBeta       float64 `yaml:"k_beta"`

	PlaceOnArrival bool `yaml:"place_on_arrival"`
}

// DefaultOptions returns the gains the robot was tuned with.
func DefaultOptions() Options {
	return Options{
		KGoal:          2.0,
		KAvoid:         5.5,
		BaseSpeed:      0.3,
		AvoidThresh:    0.5,
		AvoidWindow:    math.Pi / 3,
		AngularMax:     2.0,
		MaxLinVel:      0.3,
		ArrivalRadius:  0.25,
		AlignThreshold: 0.3,
		NoGoalDamping:  0.8,
		Deadband:       0.05,
		DecayRate:      2.0,
		SlowdownFloor:  0.05,

		PExplore:   0.05,
		SearchKp:   1.0,
		TurnSpeed:  2.0,
		SearchCone: 1.2,

		Docking:         false,
		RotateKp:        0.8,
		RotateTolerance: 0.05,
		LinearTolerance: 0.1,
		LinearGain:      1.0,
		PID:             PIDGains{P: 2.0, I: 0.1, D: 0.2, IntegralLimit: 1.0},
		DockLostTimeout: 1.0,

		ApproachLaw: LawReactive,
		KRho:        1.0,
		KAlpha:      8.0,
		KBeta:       -2.0,

		PlaceOnArrival: true,
	}
}

// Validate reports every field outside its sane range.
func (o Options) Validate() error {
	var errs []error

	finite := map[string]float64{
		"k_goal":  o.KGoal,
		"k_avoid": o.KAvoid,
		"k_rho":   o.KRho,
		"k_alpha": o.KAlpha,
		"k_beta":  o.KBeta,
		"pid.p":   o.PID.P,
		"pid.i":   o.PID.I,
		"pid.d":   o.PID.D,
	}
	for _, name := range sortedKeys(finite) {
		if v := finite[name]; math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be finite, got %v", name, v))
		}
	}

	nonNegative := map[string]float64{
		"base_speed":         o.BaseSpeed,
		"avoid_thresh":       o.AvoidThresh,
		"avoid_window":       o.AvoidWindow,
		"arrival_radius":     o.ArrivalRadius,
		"align_threshold":    o.AlignThreshold,
		"deadband":           o.Deadband,
		"decay_rate":         o.DecayRate,
		"search_kp":          o.SearchKp,
		"turn_speed":         o.TurnSpeed,
		"search_cone":        o.SearchCone,
		"rotate_kp":          o.RotateKp,
		"rotate_tolerance":   o.RotateTolerance,
		"linear_tolerance":   o.LinearTolerance,
		"linear_gain":        o.LinearGain,
		"pid.integral_limit": o.PID.IntegralLimit,
	}
	for _, name := range sortedKeys(nonNegative) {
		if v := nonNegative[name]; !(v >= 0) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %v", name, v))
		}
	}

	positive := map[string]float64{
		"angular_max":       o.AngularMax,
		"max_lin_vel":       o.MaxLinVel,
		"dock_lost_timeout": o.DockLostTimeout,
	}
	for _, name := range sortedKeys(positive) {
		if v := positive[name]; !(v > 0) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", name, v))
		}
	}

	unit := map[string]float64{
		"p_explore":      o.PExplore,
		"slowdown_floor": o.SlowdownFloor,
	}
	for _, name := range sortedKeys(unit) {
		if v := unit[name]; !(v >= 0 && v <= 1) {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1], got %v", name, v))
		}
	}
	if v := o.NoGoalDamping; !(v >= 0 && v < 1) {
		errs = append(errs, fmt.Errorf("no_goal_damping must be in [0, 1), got %v", v))
	}

	switch o.ApproachLaw {
	case LawReactive, LawPolar:
	default:
		errs = append(errs, fmt.Errorf("approach_law must be %q or %q, got %q", LawReactive, LawPolar, o.ApproachLaw))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
