package main

import (
	"fmt"
	"time"

	"go.einride.tech/can"

	control "marker-dock/closed_loop/marker_control"
)

// ingest decodes one received frame into the sensor store. Frames outside
// the signal map or not consumed by the controller are ignored.
func (r *Runner) ingest(frame can.Frame, now time.Time) error {
	fd, values, err := r.cmap.DecodeFrame(frame)
	if err != nil {
		return err
	}

	t := r.scen.Transport
	switch fd.Name {
	case t.OdomFrame:
		r.sensors.UpdatePose(control.Pose2D{
			X:   values["x_m"],
			Y:   values["y_m"],
			Yaw: values["yaw_rad"],
		})
	case t.MarkerFrame:
		r.sensors.UpdateMarker(control.MarkerDetection{
			ID:     int(values["marker_id"]),
			X:      values["x_m"],
			Y:      values["y_m"],
			Yaw:    values["yaw_rad"],
			HasYaw: values["has_yaw"] != 0,
		}, now)
	case t.ScanFrame:
		r.sensors.UpdateScanSector(int(values["sector"]), [3]float64{
			values["range0_m"],
			values["range1_m"],
			values["range2_m"],
		}, now)
	}
	return nil
}

// commandFrame encodes a tick's output as the drive command.
func (r *Runner) commandFrame(out control.TickOutput) (can.Frame, error) {
	place := 0.0
	if out.Effect == control.SideEffectPlaceMarker {
		place = 1
	}
	frame, err := r.cmap.EncodeFrame(r.scen.Transport.CommandFrame, map[string]float64{
		"linear_vel_mps":  out.Command.Linear,
		"angular_vel_rps": out.Command.Angular,
		"mode":            float64(out.Mode),
		"place_marker":    place,
	})
	if err != nil {
		return can.Frame{}, fmt.Errorf("encode %s: %w", r.scen.Transport.CommandFrame, err)
	}
	return frame, nil
}

// stopFrame is the zero command sent on shutdown.
func (r *Runner) stopFrame(mode control.Mode) (can.Frame, error) {
	return r.commandFrame(control.TickOutput{Mode: mode})
}
