package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	control "marker-dock/closed_loop/marker_control"
	"marker-dock/utils"
)

// RunnerConfig holds command-line overrides of the scenario. Empty fields
// keep the scenario value.
type RunnerConfig struct {
	ScenarioPath string
	Interface    string
	MapPath      string
	TracePath    string
	Seed         uint64
}

// Runner closes the loop between the CAN bus and the marker controller.
type Runner struct {
	scen    Scenario
	log     *utils.Logger
	cmap    *utils.CANMap
	ctrl    *control.Controller
	state   control.NavState
	sensors *SensorStore
	writer  utils.CANWriter
	reader  utils.CANReader
	trace   *utils.TraceWriter

	last time.Time
	sent uint64

	// rxBackoff is the wait after the first failed read; it grows linearly
	// with consecutive failures up to rxBackoffMax.
	rxBackoff time.Duration
}

const (
	rxMaxErrors  = 20
	rxBackoffMax = 500 * time.Millisecond
)

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	scen, err := LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	if cfg.Interface != "" {
		scen.Transport.Interface = cfg.Interface
	}
	if cfg.MapPath != "" {
		scen.Transport.MapPath = cfg.MapPath
	}
	if cfg.TracePath != "" {
		scen.Trace.Path = cfg.TracePath
	}

	cmap, err := utils.LoadCANMap(scen.Transport.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}
	for _, name := range []string{
		scen.Transport.CommandFrame,
		scen.Transport.OdomFrame,
		scen.Transport.MarkerFrame,
		scen.Transport.ScanFrame,
	} {
		if _, err := cmap.FrameByName(name); err != nil {
			return nil, fmt.Errorf("frame: %w", err)
		}
	}

	ctrl, err := control.NewController(scen.Controller, cfg.Seed)
	if err != nil {
		return nil, err
	}

	writer, err := utils.NewSocketCANWriter(ctx, scen.Transport.Interface)
	if err != nil {
		return nil, err
	}
	reader, err := utils.NewSocketCANReader(ctx, scen.Transport.Interface)
	if err != nil {
		writer.Close()
		return nil, err
	}
	trace, err := utils.NewTraceWriter(scen.Trace.Path)
	if err != nil {
		writer.Close()
		reader.Close()
		return nil, err
	}

	return newRunner(scen, cmap, ctrl, reader, writer, trace, log), nil
}

func newRunner(scen Scenario, cmap *utils.CANMap, ctrl *control.Controller,
	reader utils.CANReader, writer utils.CANWriter, trace *utils.TraceWriter, log *utils.Logger) *Runner {
	t := scen.Transport
	return &Runner{
		scen: scen,
		log:  log,
		cmap: cmap,
		ctrl: ctrl,
		sensors: NewSensorStore(
			time.Duration(t.MarkerTTLMS)*time.Millisecond,
			time.Duration(t.ScanTTLMS)*time.Millisecond,
			t.ScanSamples,
		),
		writer:    writer,
		reader:    reader,
		trace:     trace,
		rxBackoff: 10 * time.Millisecond,
	}
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
	if err := r.trace.Close(); err != nil {
		r.log.Error("Closing trace: %v", err)
	}
}

// Run ticks the controller every cycle until ctx is cancelled or the
// scenario duration elapses. A zero drive command is sent on the way out.
func (r *Runner) Run(ctx context.Context) error {
	opts := r.ctrl.Options()
	r.log.Info("Starting: scenario=%s iface=%s cycle_ms=%d duration=%.2fs law=%s docking=%v",
		r.scen.Meta.Name, r.scen.Transport.Interface, r.scen.Timing.CycleMS,
		r.scen.Timing.DurationS, opts.ApproachLaw, opts.Docking)

	rxCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rxErr := make(chan error, 1)
	go func() { rxErr <- r.receiveLoop(rxCtx) }()

	period := time.Duration(r.scen.Timing.CycleMS) * time.Millisecond
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	start := time.Now()
	r.last = start
	endAfter := time.Duration(r.scen.Timing.DurationS * float64(time.Second))
	overrun := time.Duration(r.scen.Timing.OverrunWarnMS * float64(time.Millisecond))

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping")
			r.stop()
			return ctx.Err()

		case err := <-rxErr:
			if err != nil {
				r.log.Critical("Receive failed: %v", err)
				r.stop()
				return err
			}
			rxErr = nil

		case now := <-ticker.C:
			if endAfter > 0 && now.Sub(start) > endAfter {
				r.stop()
				return nil
			}

			began := time.Now()
			if err := r.step(now); err != nil {
				r.stop()
				return err
			}
			if took := time.Since(began); overrun > 0 && took > overrun && r.log.Every("overrun", time.Second) {
				r.log.Warn("Tick took %.2f ms (warn at %.2f ms, period %d ms)",
					float64(took)/float64(time.Millisecond), r.scen.Timing.OverrunWarnMS, r.scen.Timing.CycleMS)
			}
		}
	}
}

// step runs one controller tick on the sensor snapshot at now and transmits
// the command.
func (r *Runner) step(now time.Time) error {
	dt := now.Sub(r.last).Seconds()
	r.last = now

	snap := r.sensors.Snapshot(now)
	if !snap.PoseValid && r.log.Every("no-odom", 2*time.Second) {
		r.log.Warn("No odometry received yet; using the origin pose")
	}

	prev := r.state.Mode
	in := control.TickInput{
		Scan:       snap.Scan,
		Detections: snap.Detections,
		Pose:       snap.Pose,
		Dt:         dt,
	}
	var out control.TickOutput
	r.state, out = r.ctrl.Tick(r.state, in)
	r.logTick(prev, out)

	frame, err := r.commandFrame(out)
	if err != nil {
		return err
	}
	// The bus context is not the loop's; a cancelled run still finishes this write.
	wctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.scen.Timing.CycleMS)*time.Millisecond)
	defer cancel()
	if err := r.writer.WriteFrame(wctx, frame); err != nil {
		r.log.Critical("Transmit failed at t=%.3f: %v", r.state.Time, err)
		return err
	}
	r.sent++
	r.log.Trace("TX t=%.3f id=0x%X data=% X mode=%s v=%.3f w=%.3f",
		r.state.Time, frame.ID, frame.Data[:frame.Length], out.Mode, out.Command.Linear, out.Command.Angular)

	return r.trace.Write(r.traceRecord(dt, in, out))
}

func (r *Runner) logTick(prev control.Mode, out control.TickOutput) {
	log := r.log.With("nav")
	id := -1
	if r.state.Target != nil {
		id = r.state.Target.ID
	}

	switch out.Event {
	case control.EventNone:
	case control.EventLost:
		log.Warn("%s: %s -> %s", out.Event, prev, out.Mode)
	default:
		log.Info("%s: %s -> %s target=%d", out.Event, prev, out.Mode, id)
	}
	if out.Effect == control.SideEffectPlaceMarker {
		log.Info("Requesting marker placement at t=%.2f", r.state.Time)
	}
	if out.Mode == control.ModeSearching && log.Every("searching", 2*time.Second) {
		log.Debug("Searching: v=%.2f w=%.2f repulsion=%.2f", out.Command.Linear, out.Command.Angular, out.Obstacles.Repulsion)
	}
}

func (r *Runner) traceRecord(dt float64, in control.TickInput, out control.TickOutput) utils.TraceRecord {
	rec := utils.TraceRecord{
		T:            r.state.Time,
		Dt:           dt,
		Mode:         out.Mode.String(),
		Event:        out.Event.String(),
		Effect:       out.Effect.String(),
		OdomX:        in.Pose.X,
		OdomY:        in.Pose.Y,
		OdomYaw:      in.Pose.Yaw,
		Detections:   len(in.Detections),
		ScanValid:    in.Scan != nil,
		TargetID:     -1,
		GoalBearing:  out.Goal.Bearing,
		GoalDistance: out.Goal.Distance,
		Repulsion:    out.Obstacles.Repulsion,
		Pressure:     out.Obstacles.Pressure,
		HeadingError: out.HeadingError,
		LinearError:  out.LinearError,
		LinearVel:    out.Command.Linear,
		AngularVel:   out.Command.Angular,
	}
	if r.state.Target != nil {
		rec.TargetID = r.state.Target.ID
	}
	return rec
}

// stop sends the zero drive command.
func (r *Runner) stop() {
	frame, err := r.stopFrame(r.state.Mode)
	if err != nil {
		r.log.Error("Encoding stop command: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := r.writer.WriteFrame(ctx, frame); err != nil {
		r.log.Error("Sending stop command: %v", err)
		return
	}
	r.log.Info("Stopped. frames_sent=%d mode=%s", r.sent, r.state.Mode)
}

// receiveLoop feeds decoded sensor frames into the store until ctx ends or
// the reader is closed. It backs off on read errors and gives up after
// rxMaxErrors consecutive failures.
func (r *Runner) receiveLoop(ctx context.Context) error {
	log := r.log.With("rx")
	log.Debug("RX loop started")
	defer log.Debug("RX loop stopped")

	failures := 0
	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				log.Warn("Bus closed")
				return nil
			}
			failures++
			if failures >= rxMaxErrors {
				return fmt.Errorf("receive: %d consecutive errors: %w", failures, err)
			}
			if log.Every("read-error", time.Second) {
				log.Error("RX error (%d in a row): %v", failures, err)
			}
			wait := min(time.Duration(failures)*r.rxBackoff, rxBackoffMax)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		failures = 0

		if err := r.ingest(frame, time.Now()); err != nil {
			if log.Every(fmt.Sprintf("decode-%X", frame.ID), 5*time.Second) {
				log.Warn("Dropping frame id=0x%X: %v", frame.ID, err)
			}
			continue
		}
		log.Trace("RX id=0x%X len=%d data=% X", frame.ID, frame.Length, frame.Data[:frame.Length])
	}
}
