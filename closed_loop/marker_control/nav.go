package control

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r2"
)

// NavState is the mutable state of one robot's controller. The driver owns
// it and threads it through Tick; the zero value is a searching robot.
//
// Target is nil exactly when Mode is ModeSearching.
type NavState struct {
	Mode   Mode
	Target *TrackedTarget

	// SearchHeading is the random heading explored while searching.
	SearchHeading float64

	// Waypoint and GoalHeading are fixed when docking begins.
	Waypoint    r2.Vec
	GoalHeading float64

	Heading PIDState
	LostFor float64 // seconds the target has been unseen while docking
	Time    float64 // accumulated dt at the previous tick
}

// Controller sequences search, approach and docking. Its options are fixed
// at construction; only the approach law may be swapped afterwards.
//
// A Controller must not be ticked concurrently.
type Controller struct {
	opts Options
	law  ApproachLaw
	dock DockingController
	rng  *rand.Rand
}

// NewController validates opts and builds a controller. seed drives the
// exploration heading draws.
func NewController(opts Options, seed uint64) (*Controller, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var law ApproachLaw
	switch opts.ApproachLaw {
	case LawPolar:
		law = NewPolarRegulator(opts)
	default:
		law = NewReactiveBlender(opts)
	}

	return &Controller{
		opts: opts,
		law:  law,
		dock: NewDockingController(opts),
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Options returns the controller tuning.
func (c *Controller) Options() Options {
	return c.opts
}

// SetApproachLaw replaces the coarse approach law. A nil law restores the
// reactive blender.
func (c *Controller) SetApproachLaw(law ApproachLaw) {
	if law == nil {
		law = NewReactiveBlender(c.opts)
	}
	c.law = law
}

// Tick advances s by one control period and returns the next state with the
// command to send. At most one mode transition happens per tick.
func (c *Controller) Tick(s NavState, in TickInput) (NavState, TickOutput) {
	if in.Dt > 0 {
		s.Time += in.Dt
	}

	if s.Mode != ModeSearching && s.Target == nil {
		s = reset(s)
		return s, TickOutput{Event: EventLost, Mode: s.Mode}
	}

	var out TickOutput
	switch s.Mode {
	case ModeSearching:
		s, out = c.search(s, in)
	case ModeCoarseApproach:
		s, out = c.approach(s, in)
	case ModeRotateToHeading:
		s, out = c.rotate(s, in)
	case ModePrecisionApproach:
		s, out = c.creep(s, in)
	case ModeArrived:
		s = reset(s)
		out = TickOutput{Event: EventReleased}
	default:
		// Corrupt state: drop it rather than drive on it.
		s = reset(s)
		out = TickOutput{Event: EventLost}
	}

	out.Command = saturate(out.Command, c.opts.MaxLinVel, c.opts.AngularMax)
	out.Mode = s.Mode
	return s, out
}

// search wanders on a random heading until any marker shows up.
func (c *Controller) search(s NavState, in TickInput) (NavState, TickOutput) {
	if target, ok := SelectNearest(in.Detections, in.Pose); ok {
		s.Mode = ModeCoarseApproach
		s.Target = target
		return s, TickOutput{Event: EventAcquired}
	}

	if c.opts.PExplore > 0 && c.rng.Float64() < c.opts.PExplore {
		s.SearchHeading = (2*c.rng.Float64() - 1) * math.Pi
	}

	headingErr := WrapAngle(s.SearchHeading - in.Pose.Yaw)
	cmd := VelocityCommand{Angular: c.opts.SearchKp * c.opts.TurnSpeed * headingErr}
	if math.Abs(headingErr) <= c.opts.SearchCone {
		cmd.Linear = c.opts.BaseSpeed
	}
	return s, TickOutput{Command: cmd, HeadingError: headingErr}
}

// approach pursues the tracked marker with the active approach law.
func (c *Controller) approach(s NavState, in TickInput) (NavState, TickOutput) {
	target, found := Reacquire(*s.Target, in.Detections)
	if !found {
		return reset(s), TickOutput{Event: EventLost}
	}
	s.Target = &target

	goal := GoalAt(target.X, target.Y)
	if goal.Distance < c.opts.ArrivalRadius {
		if c.opts.Docking {
			s.Mode = ModeRotateToHeading
			s.Waypoint, s.GoalHeading = c.dock.Waypoint(in.Pose, target)
			s.LostFor = 0
			return s, TickOutput{Event: EventPhaseComplete, Goal: goal}
		}
		return c.arrive(s, goal)
	}

	field := SenseObstacles(in.Scan, c.opts.AvoidThresh, c.opts.AvoidWindow)
	world := BodyToWorld(in.Pose, target.X, target.Y)
	heading := math.Atan2(world.Y-in.Pose.Y, world.X-in.Pose.X)
	if target.HasYaw {
		heading = WrapAngle(in.Pose.Yaw + target.Yaw)
	}

	cmd := c.law.Approach(ApproachInput{
		Goal:        goal,
		Obstacles:   field,
		Pose:        in.Pose,
		Target:      world,
		GoalHeading: heading,
	})
	return s, TickOutput{Command: cmd, Goal: goal, Obstacles: field}
}

// rotate turns in place toward the docking heading.
func (c *Controller) rotate(s NavState, in TickInput) (NavState, TickOutput) {
	s, lost := c.track(s, in)
	if lost {
		return reset(s), TickOutput{Event: EventLost}
	}

	cmd, headingErr, done := c.dock.Rotate(in.Pose, s.GoalHeading)
	if done {
		s.Mode = ModePrecisionApproach
		s.Heading = PIDState{}
		return s, TickOutput{Event: EventPhaseComplete, HeadingError: headingErr}
	}
	return s, TickOutput{Command: cmd, HeadingError: headingErr}
}

// creep backs onto the waypoint under closed-loop control.
func (c *Controller) creep(s NavState, in TickInput) (NavState, TickOutput) {
	s, lost := c.track(s, in)
	if lost {
		return reset(s), TickOutput{Event: EventLost}
	}

	res := c.dock.Creep(in.Pose, s.Waypoint, s.GoalHeading, s.Heading, in.Dt)
	s.Heading = res.PID
	if res.Done {
		next, out := c.arrive(s, Goal{})
		out.HeadingError, out.LinearError = res.HeadingError, res.LinearError
		return next, out
	}
	return s, TickOutput{Command: res.Command, HeadingError: res.HeadingError, LinearError: res.LinearError}
}

// track refreshes the target while docking. The waypoint is held while the
// target is unseen for up to DockLostTimeout.
func (c *Controller) track(s NavState, in TickInput) (NavState, bool) {
	target, found := Reacquire(*s.Target, in.Detections)
	s.Target = &target
	if found {
		s.LostFor = 0
		return s, false
	}
	if in.Dt > 0 {
		s.LostFor += in.Dt
	}
	return s, s.LostFor > c.opts.DockLostTimeout
}

// arrive stops the robot and requests the configured release action.
func (c *Controller) arrive(s NavState, goal Goal) (NavState, TickOutput) {
	s.Mode = ModeArrived
	out := TickOutput{Event: EventArrived, Goal: goal}
	if c.opts.PlaceOnArrival {
		out.Effect = SideEffectPlaceMarker
	}
	return s, out
}

// reset drops the target and returns to searching.
func reset(s NavState) NavState {
	s.Mode = ModeSearching
	s.Target = nil
	s.Waypoint = r2.Vec{}
	s.GoalHeading = 0
	s.Heading = PIDState{}
	s.LostFor = 0
	return s
}
