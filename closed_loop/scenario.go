package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	control "marker-dock/closed_loop/marker_control"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Scenario is one run of the marker controller on the bus.
type Scenario struct {
	Meta       ScenarioMeta      `yaml:"meta"`
	Timing     ScenarioTiming    `yaml:"timing"`
	Controller control.Options   `yaml:"controller"`
	Transport  ScenarioTransport `yaml:"transport"`
	Trace      ScenarioTrace     `yaml:"trace"`
}

type ScenarioMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type ScenarioTiming struct {
	CycleMS       int     `yaml:"cycle_ms"`
	DurationS     float64 `yaml:"duration_s"` // 0 runs until cancelled
	OverrunWarnMS float64 `yaml:"overrun_warn_ms"`
}

// ScenarioTransport names the CAN interface and the frames of the signal map.
type ScenarioTransport struct {
	Interface    string `yaml:"iface"`
	MapPath      string `yaml:"map"`
	CommandFrame string `yaml:"command_frame"`
	OdomFrame    string `yaml:"odom_frame"`
	MarkerFrame  string `yaml:"marker_frame"`
	ScanFrame    string `yaml:"scan_frame"`
	MarkerTTLMS  int    `yaml:"marker_ttl_ms"`
	ScanTTLMS    int    `yaml:"scan_ttl_ms"`
	ScanSamples  int    `yaml:"scan_samples"`
}

type ScenarioTrace struct {
	Path string `yaml:"path"` // empty disables the trace
}

// DefaultScenario returns the embedded defaults with the controller's
// default tuning.
func DefaultScenario() (Scenario, error) {
	scen := Scenario{Controller: control.DefaultOptions()}
	if err := yaml.Unmarshal(defaultsYAML, &scen); err != nil {
		return Scenario{}, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return scen, nil
}

// LoadScenario reads a YAML scenario over the defaults. An empty path
// returns the defaults.
func LoadScenario(path string) (Scenario, error) {
	scen, err := DefaultScenario()
	if err != nil {
		return Scenario{}, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Scenario{}, fmt.Errorf("read file: %w", err)
		}
		if err := yaml.Unmarshal(data, &scen); err != nil {
			return Scenario{}, fmt.Errorf("unmarshal %s: %w", path, err)
		}
	}

	if err := scen.Validate(); err != nil {
		return Scenario{}, err
	}
	return scen, nil
}

// Validate checks the driver settings and the controller options.
func (s Scenario) Validate() error {
	var errs []error
	if s.Timing.CycleMS <= 0 {
		errs = append(errs, fmt.Errorf("invalid cycle_ms: %d", s.Timing.CycleMS))
	}
	if s.Timing.DurationS < 0 {
		errs = append(errs, fmt.Errorf("invalid duration_s: %f", s.Timing.DurationS))
	}
	if s.Timing.OverrunWarnMS < 0 {
		errs = append(errs, fmt.Errorf("invalid overrun_warn_ms: %f", s.Timing.OverrunWarnMS))
	}

	t := s.Transport
	if t.Interface == "" {
		errs = append(errs, errors.New("transport.iface is required"))
	}
	if t.MapPath == "" {
		errs = append(errs, errors.New("transport.map is required"))
	}
	if t.CommandFrame == "" || t.OdomFrame == "" || t.MarkerFrame == "" || t.ScanFrame == "" {
		errs = append(errs, errors.New("transport frame names are required"))
	}
	if t.MarkerTTLMS <= 0 {
		errs = append(errs, fmt.Errorf("invalid marker_ttl_ms: %d", t.MarkerTTLMS))
	}
	if t.ScanTTLMS <= 0 {
		errs = append(errs, fmt.Errorf("invalid scan_ttl_ms: %d", t.ScanTTLMS))
	}
	if t.ScanSamples <= 0 {
		errs = append(errs, fmt.Errorf("invalid scan_samples: %d", t.ScanSamples))
	}

	if err := s.Controller.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
