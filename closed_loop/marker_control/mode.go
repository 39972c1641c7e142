package control

import (
	"fmt"
	"strings"
)

// Mode selects which behavior produces the velocity command.
type Mode int

const (
	ModeSearching Mode = iota
	ModeCoarseApproach
	ModeRotateToHeading
	ModePrecisionApproach
	ModeArrived
)

func (m Mode) String() string {
	switch m {
	case ModeSearching:
		return "SEARCHING"
	case ModeCoarseApproach:
		return "COARSE_APPROACH"
	case ModeRotateToHeading:
		return "ROTATE_TO_HEADING"
	case ModePrecisionApproach:
		return "PRECISION_APPROACH"
	case ModeArrived:
		return "ARRIVED"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Docking reports whether m is one of the precision docking phases.
func (m Mode) Docking() bool {
	return m == ModeRotateToHeading || m == ModePrecisionApproach
}

// ParseMode converts a mode name into a Mode.
func ParseMode(value string) (Mode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	switch normalized {
	case "SEARCHING", "SEARCH":
		return ModeSearching, nil
	case "COARSE_APPROACH", "GOTO":
		return ModeCoarseApproach, nil
	case "ROTATE_TO_HEADING", "ROTATE":
		return ModeRotateToHeading, nil
	case "PRECISION_APPROACH", "DOCK":
		return ModePrecisionApproach, nil
	case "ARRIVED":
		return ModeArrived, nil
	default:
		return ModeSearching, fmt.Errorf("unknown mode %q", value)
	}
}
