package control

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tickDt = 0.02

func newTestController(t *testing.T, mutate func(*Options)) *Controller {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	c, err := NewController(opts, 7)
	require.NoError(t, err)
	return c
}

// step ticks c and checks the target/mode invariant on the result.
func step(t *testing.T, c *Controller, s NavState, in TickInput) (NavState, TickOutput) {
	t.Helper()
	if in.Dt == 0 {
		in.Dt = tickDt
	}
	next, out := c.Tick(s, in)
	assert.Equal(t, next.Mode == ModeSearching, next.Target == nil, "target must be nil iff searching (mode %v)", next.Mode)
	assert.Equal(t, next.Mode, out.Mode)
	assert.LessOrEqual(t, math.Abs(out.Command.Angular), c.Options().AngularMax)
	assert.LessOrEqual(t, math.Abs(out.Command.Linear), c.Options().MaxLinVel)
	return next, out
}

func TestNewController_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.AvoidThresh = -1
	opts.AngularMax = 0
	opts.PExplore = 1.5
	opts.ApproachLaw = "magnetic"
	opts.KGoal = math.NaN()

	c, err := NewController(opts, 1)
	assert.Nil(t, c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOptions))
	for _, field := range []string{"avoid_thresh", "angular_max", "p_explore", "approach_law", "k_goal"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestController_SearchingOpenSpace(t *testing.T) {
	c := newTestController(t, func(o *Options) { o.PExplore = 0 })
	in := TickInput{Scan: fullScan(360, 5.0)}

	var s NavState
	for i := 0; i < 10; i++ {
		var out TickOutput
		s, out = step(t, c, s, in)
		assert.Equal(t, ModeSearching, s.Mode)
		assert.Equal(t, c.Options().BaseSpeed, out.Command.Linear)
		assert.Equal(t, 0.0, out.Command.Angular)
	}
}

func TestController_SearchingExploresWithinBounds(t *testing.T) {
	c := newTestController(t, func(o *Options) { o.PExplore = 1 })
	var s NavState
	headings := map[float64]bool{}
	for i := 0; i < 50; i++ {
		var out TickOutput
		pose := Pose2D{Yaw: WrapAngle(float64(i) * 0.3)}
		s, out = step(t, c, s, TickInput{Pose: pose})
		assert.Equal(t, ModeSearching, s.Mode)
		assert.True(t, s.SearchHeading >= -math.Pi && s.SearchHeading < math.Pi)
		if math.Abs(out.HeadingError) > c.Options().SearchCone {
			assert.Equal(t, 0.0, out.Command.Linear, "outside the cone must rotate in place")
		}
		headings[s.SearchHeading] = true
	}
	assert.Greater(t, len(headings), 1)
}

func TestController_AcquireAndLose(t *testing.T) {
	c := newTestController(t, nil)
	det := []MarkerDetection{{ID: 4, X: 2, Y: 0.1}}

	s, out := step(t, c, NavState{}, TickInput{Detections: det})
	assert.Equal(t, ModeCoarseApproach, s.Mode)
	assert.Equal(t, EventAcquired, out.Event)
	require.NotNil(t, s.Target)
	assert.Equal(t, 4, s.Target.ID)

	s, out = step(t, c, s, TickInput{Detections: det})
	assert.Equal(t, ModeCoarseApproach, s.Mode)
	assert.Greater(t, out.Command.Linear, 0.0)
	assert.True(t, out.Goal.Visible)

	s, out = step(t, c, s, TickInput{})
	assert.Equal(t, ModeSearching, s.Mode)
	assert.Equal(t, EventLost, out.Event)
	assert.Equal(t, VelocityCommand{}, out.Command)
}

func TestController_LosesOnOtherIdentity(t *testing.T) {
	c := newTestController(t, nil)
	s, _ := step(t, c, NavState{}, TickInput{Detections: []MarkerDetection{{ID: 4, X: 2}}})
	s, out := step(t, c, s, TickInput{Detections: []MarkerDetection{{ID: 5, X: 1}}})
	assert.Equal(t, ModeSearching, s.Mode)
	assert.Equal(t, EventLost, out.Event)
}

func TestController_ArriveWithoutDocking(t *testing.T) {
	c := newTestController(t, nil)
	det := []MarkerDetection{{ID: 1, X: 0.2, Y: 0}}

	s, _ := step(t, c, NavState{}, TickInput{Detections: det})
	require.Equal(t, ModeCoarseApproach, s.Mode)

	s, out := step(t, c, s, TickInput{Detections: det})
	assert.Equal(t, ModeArrived, s.Mode)
	assert.Equal(t, EventArrived, out.Event)
	assert.Equal(t, SideEffectPlaceMarker, out.Effect)
	assert.Equal(t, 0.0, out.Command.Linear)

	s, out = step(t, c, s, TickInput{Detections: det})
	assert.Equal(t, ModeSearching, s.Mode)
	assert.Equal(t, EventReleased, out.Event)
	assert.Equal(t, SideEffectNone, out.Effect)
	assert.Equal(t, VelocityCommand{}, out.Command)
}

func TestController_ArriveWithoutPlacement(t *testing.T) {
	c := newTestController(t, func(o *Options) { o.PlaceOnArrival = false })
	det := []MarkerDetection{{ID: 1, X: 0.1}}
	s, _ := step(t, c, NavState{}, TickInput{Detections: det})
	_, out := step(t, c, s, TickInput{Detections: det})
	assert.Equal(t, EventArrived, out.Event)
	assert.Equal(t, SideEffectNone, out.Effect)
}

func TestController_DockingSequence(t *testing.T) {
	c := newTestController(t, func(o *Options) {
		o.Docking = true
		o.PID = PIDGains{P: 2}
	})
	det := []MarkerDetection{{ID: 9, X: 0.2, Y: 0}}

	s, _ := step(t, c, NavState{}, TickInput{Detections: det})
	s, out := step(t, c, s, TickInput{Detections: det})
	require.Equal(t, ModeRotateToHeading, s.Mode)
	assert.Equal(t, EventPhaseComplete, out.Event)
	assert.Equal(t, SideEffectNone, out.Effect)
	assert.InDelta(t, 0.2, s.Waypoint.X, 1e-9)
	assert.InDelta(t, 0.0, s.Waypoint.Y, 1e-9)
	assert.InDelta(t, math.Pi, s.GoalHeading, 1e-9)

	// Marker out of view while turning: waypoint is held.
	s, out = step(t, c, s, TickInput{})
	assert.Equal(t, ModeRotateToHeading, s.Mode)
	assert.Equal(t, 2.0, out.Command.Angular)
	assert.Equal(t, 0.0, out.Command.Linear)
	assert.False(t, s.Target.Found)

	s, out = step(t, c, s, TickInput{Pose: Pose2D{Yaw: math.Pi - 0.01}})
	require.Equal(t, ModePrecisionApproach, s.Mode)
	assert.Equal(t, EventPhaseComplete, out.Event)

	s, out = step(t, c, s, TickInput{Pose: Pose2D{Yaw: math.Pi}})
	assert.Equal(t, ModePrecisionApproach, s.Mode)
	assert.InDelta(t, -0.2, out.Command.Linear, 1e-9)
	assert.InDelta(t, 0.0, out.Command.Angular, 1e-9)
	assert.InDelta(t, 0.2, out.LinearError, 1e-9)

	s, out = step(t, c, s, TickInput{Pose: Pose2D{X: 0.15, Yaw: math.Pi}})
	assert.Equal(t, ModeArrived, s.Mode)
	assert.Equal(t, EventArrived, out.Event)
	assert.Equal(t, SideEffectPlaceMarker, out.Effect)
	assert.Equal(t, VelocityCommand{}, out.Command)

	s, out = step(t, c, s, TickInput{})
	assert.Equal(t, ModeSearching, s.Mode)
	assert.Equal(t, EventReleased, out.Event)
	assert.Equal(t, PIDState{}, s.Heading)
}

func TestController_DockingLostTimeout(t *testing.T) {
	c := newTestController(t, func(o *Options) {
		o.Docking = true
		o.DockLostTimeout = 0.1
	})
	det := []MarkerDetection{{ID: 9, X: 0.2}}
	s, _ := step(t, c, NavState{}, TickInput{Detections: det})
	s, _ = step(t, c, s, TickInput{Detections: det})
	require.Equal(t, ModeRotateToHeading, s.Mode)

	s, _ = step(t, c, s, TickInput{Dt: 0.05})
	s, _ = step(t, c, s, TickInput{Dt: 0.05})
	assert.Equal(t, ModeRotateToHeading, s.Mode)

	// Seeing it again resets the clock.
	s, _ = step(t, c, s, TickInput{Dt: 0.05, Detections: det})
	assert.Equal(t, 0.0, s.LostFor)
	s, _ = step(t, c, s, TickInput{Dt: 0.05})
	s, _ = step(t, c, s, TickInput{Dt: 0.05})
	assert.Equal(t, ModeRotateToHeading, s.Mode)

	s, out := step(t, c, s, TickInput{Dt: 0.05})
	assert.Equal(t, ModeSearching, s.Mode)
	assert.Equal(t, EventLost, out.Event)
}

func TestController_Deterministic(t *testing.T) {
	c := newTestController(t, func(o *Options) { o.PExplore = 0 })
	scan := fullScan(360, 5.0)
	scan.Ranges[200] = 0.3
	in := TickInput{
		Scan:       scan,
		Detections: []MarkerDetection{{ID: 2, X: 1.2, Y: 0.1}},
		Pose:       Pose2D{X: 0.4, Y: -0.2, Yaw: 0.3},
	}

	s, _ := step(t, c, NavState{}, in)
	require.Equal(t, ModeCoarseApproach, s.Mode)

	s1, out1 := step(t, c, s, in)
	s2, out2 := step(t, c, s, in)
	assert.Equal(t, out1, out2)
	assert.Equal(t, s1, s2)
}

func TestController_SwapApproachLaw(t *testing.T) {
	c := newTestController(t, nil)
	det := []MarkerDetection{{ID: 3, X: 1, Y: 0.5}}

	s, _ := step(t, c, NavState{}, TickInput{Detections: det})
	_, reactive := step(t, c, s, TickInput{Detections: det})
	assert.Equal(t, 0.0, reactive.Command.Linear, "reactive law aligns first")

	c.SetApproachLaw(NewPolarRegulator(c.Options()))
	next, polar := step(t, c, s, TickInput{Detections: det})
	assert.Equal(t, ModeCoarseApproach, next.Mode)
	assert.InDelta(t, 0.3, polar.Command.Linear, 1e-9)

	c.SetApproachLaw(nil)
	_, back := step(t, c, s, TickInput{Detections: det})
	assert.Equal(t, reactive.Command, back.Command)
}

func TestController_PolarFromOptions(t *testing.T) {
	c := newTestController(t, func(o *Options) { o.ApproachLaw = LawPolar })
	det := []MarkerDetection{{ID: 3, X: 1, Y: 0.5}}
	s, _ := step(t, c, NavState{}, TickInput{Detections: det})
	_, out := step(t, c, s, TickInput{Detections: det})
	assert.Greater(t, out.Command.Linear, 0.0)
}

func TestController_UnknownModeResets(t *testing.T) {
	c := newTestController(t, nil)
	s, out := c.Tick(NavState{Mode: Mode(99), Target: &TrackedTarget{ID: 1}}, TickInput{Dt: tickDt})
	assert.Equal(t, ModeSearching, s.Mode)
	assert.Nil(t, s.Target)
	assert.Equal(t, EventLost, out.Event)
}

func TestController_TimeAccumulates(t *testing.T) {
	c := newTestController(t, func(o *Options) { o.PExplore = 0 })
	s, _ := c.Tick(NavState{}, TickInput{Dt: 0.02})
	s, _ = c.Tick(s, TickInput{Dt: -1})
	s, _ = c.Tick(s, TickInput{Dt: 0.03})
	assert.InDelta(t, 0.05, s.Time, 1e-12)
}

func TestController_DefaultsGiveUpOnLostDockingTarget(t *testing.T) {
	c := newTestController(t, func(o *Options) { o.Docking = true })
	require.Equal(t, 1.0, c.Options().DockLostTimeout)

	det := []MarkerDetection{{ID: 9, X: 0.2}}
	s, _ := step(t, c, NavState{}, TickInput{Detections: det})
	s, _ = step(t, c, s, TickInput{Detections: det})
	require.Equal(t, ModeRotateToHeading, s.Mode)

	var out TickOutput
	ticks := 0
	for s.Mode != ModeSearching && ticks < 5000 {
		s, out = step(t, c, s, TickInput{})
		ticks++
	}
	assert.Equal(t, ModeSearching, s.Mode)
	assert.Equal(t, EventLost, out.Event)
	assert.InDelta(t, 50, ticks, 1, "held for about one second of 20 ms ticks")
}

func TestController_ModeWithoutTargetResets(t *testing.T) {
	c := newTestController(t, nil)
	for _, mode := range []Mode{ModeCoarseApproach, ModeRotateToHeading, ModePrecisionApproach, ModeArrived} {
		t.Run(mode.String(), func(t *testing.T) {
			s, out := c.Tick(NavState{Mode: mode, LostFor: 0.3}, TickInput{Dt: tickDt})
			assert.Equal(t, ModeSearching, s.Mode)
			assert.Nil(t, s.Target)
			assert.Zero(t, s.LostFor)
			assert.Equal(t, EventLost, out.Event)
			assert.Equal(t, ModeSearching, out.Mode)
			assert.Equal(t, VelocityCommand{}, out.Command)
		})
	}
}

func TestOptions_ValidateRanges(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())

	opts.NoGoalDamping = 1
	opts.DockLostTimeout = 0
	err := opts.Validate()
	require.ErrorIs(t, err, ErrInvalidOptions)
	assert.ErrorContains(t, err, "no_goal_damping must be in [0, 1)")
	assert.ErrorContains(t, err, "dock_lost_timeout must be > 0")

	opts = DefaultOptions()
	opts.NoGoalDamping = 0
	assert.NoError(t, opts.Validate())
}
