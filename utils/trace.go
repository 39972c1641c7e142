package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// TraceRecord is one controller tick as written to the trace CSV.
type TraceRecord struct {
	T            float64 `csv:"t"`
	Dt           float64 `csv:"dt"`
	Mode         string  `csv:"mode"`
	Event        string  `csv:"event"`
	Effect       string  `csv:"effect"`
	OdomX        float64 `csv:"odom_x"`
	OdomY        float64 `csv:"odom_y"`
	OdomYaw      float64 `csv:"odom_yaw"`
	Detections   int     `csv:"detections"`
	ScanValid    bool    `csv:"scan_valid"`
	TargetID     int     `csv:"target_id"` // -1 when nothing is tracked
	GoalBearing  float64 `csv:"goal_bearing"`
	GoalDistance float64 `csv:"goal_distance"`
	Repulsion    float64 `csv:"repulsion"`
	Pressure     float64 `csv:"pressure"`
	HeadingError float64 `csv:"heading_error"`
	LinearError  float64 `csv:"linear_error"`
	LinearVel    float64 `csv:"linear_vel"`
	AngularVel   float64 `csv:"angular_vel"`
}

// TraceWriter appends TraceRecords to a CSV file, writing the header once.
type TraceWriter struct {
	file          *os.File
	headerWritten bool
}

// NewTraceWriter creates the trace file. Returns nil if path is empty
// (tracing disabled); a nil writer accepts and drops records.
func NewTraceWriter(path string) (*TraceWriter, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating trace directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return &TraceWriter{file: f}, nil
}

// Write appends one record.
func (tw *TraceWriter) Write(rec TraceRecord) error {
	if tw == nil {
		return nil
	}
	if tw.file == nil {
		return os.ErrClosed
	}
	records := []TraceRecord{rec}
	if !tw.headerWritten {
		if err := gocsv.Marshal(records, tw.file); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
		tw.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, tw.file); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (tw *TraceWriter) Close() error {
	if tw == nil || tw.file == nil {
		return nil
	}
	f := tw.file
	tw.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadTrace loads a trace file back, mostly for tests and offline tools.
func ReadTrace(path string) ([]TraceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []TraceRecord
	if err := gocsv.UnmarshalFile(f, &out); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return out, nil
}
