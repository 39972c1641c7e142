package control

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// RangeScan is one planar range sweep.
//
// Sample i lies at bearing AngleMin + i*AngleIncrement in the body frame
// (x forward, y left). Zero, NaN and Inf samples mean "no return".
type RangeScan struct {
	Ranges         []float64
	AngleMin       float64
	AngleIncrement float64
}

// Bearing returns the body-frame bearing of sample i.
func (s *RangeScan) Bearing(i int) float64 {
	return s.AngleMin + float64(i)*s.AngleIncrement
}

// MarkerDetection is a marker pose relative to the robot body frame.
type MarkerDetection struct {
	ID     int
	X      float64 // meters, forward
	Y      float64 // meters, left
	Yaw    float64 // radians, valid only when HasYaw
	HasYaw bool
}

// Pose2D is the odometry-frame pose estimate.
type Pose2D struct {
	X   float64
	Y   float64
	Yaw float64
}

// Position returns the pose translation as a vector.
func (p Pose2D) Position() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// VelocityCommand is the controller output for one tick.
type VelocityCommand struct {
	Linear  float64 // m/s, negative drives backward
	Angular float64 // rad/s, positive turns left
}

// SideEffect is a request the driver executes through the actuator interface.
type SideEffect int

const (
	SideEffectNone SideEffect = iota
	SideEffectPlaceMarker
)

func (e SideEffect) String() string {
	switch e {
	case SideEffectNone:
		return "NONE"
	case SideEffectPlaceMarker:
		return "PLACE_MARKER"
	default:
		return fmt.Sprintf("SideEffect(%d)", int(e))
	}
}

// TrackedTarget is the marker currently being pursued.
//
// Values are treated as immutable; updates allocate a new target.
type TrackedTarget struct {
	ID     int
	X      float64 // last known body-frame position
	Y      float64
	Yaw    float64
	HasYaw bool
	Found  bool // matched against this tick's detections
}

// Event reports what happened to the state machine during a tick.
type Event int

const (
	EventNone Event = iota
	EventAcquired
	EventLost
	EventPhaseComplete
	EventArrived
	EventReleased
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "NONE"
	case EventAcquired:
		return "ACQUIRED"
	case EventLost:
		return "LOST"
	case EventPhaseComplete:
		return "PHASE_COMPLETE"
	case EventArrived:
		return "ARRIVED"
	case EventReleased:
		return "RELEASED"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// TickInput is the sensor snapshot consumed by one controller tick.
type TickInput struct {
	Scan       *RangeScan // nil disables the obstacle layer for this tick
	Detections []MarkerDetection
	Pose       Pose2D
	Dt         float64 // seconds since the previous tick
}

// TickOutput is everything one controller tick produces.
type TickOutput struct {
	Command VelocityCommand
	Effect  SideEffect
	Event   Event
	Mode    Mode // mode after the tick

	// Diagnostics for tracing; zero when the active mode does not compute them.
	Goal         Goal
	Obstacles    ObstacleField
	HeadingError float64
	LinearError  float64
}
