package utils

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // only "little" supported
}

type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string
	CycleMS   int
	Signals   []SignalDef
}

// Signal returns the named signal definition.
func (fd *FrameDef) Signal(name string) (SignalDef, bool) {
	for _, s := range fd.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalDef{}, false
}

type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

// signalRow is one line of can_map.csv.
type signalRow struct {
	Direction  string  `csv:"direction"`
	FrameID    string  `csv:"frame_id"`
	FrameName  string  `csv:"frame_name"`
	CycleMS    int     `csv:"cycle_ms"`
	DLC        int     `csv:"dlc"`
	SignalName string  `csv:"signal_name"`
	StartBit   int     `csv:"start_bit"`
	BitLength  int     `csv:"bit_length"`
	Endianness string  `csv:"endianness"`
	Signed     bool    `csv:"signed"`
	Factor     float64 `csv:"factor"`
	Offset     float64 `csv:"offset"`
	Min        float64 `csv:"min"`
	Max        float64 `csv:"max"`
	Default    float64 `csv:"default"`
	Unit       string  `csv:"unit"`
	Comment    string  `csv:"comment"`
}

func LoadCANMap(csvPath string) (*CANMap, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCANMap(f)
}

// ParseCANMap reads a signal map in can_map.csv layout.
func ParseCANMap(r io.Reader) (*CANMap, error) {
	var rows []signalRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse can map: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("can map has no signals")
	}

	m := &CANMap{
		ByID:   map[uint32]*FrameDef{},
		ByName: map[string]*FrameDef{},
	}

	for i, row := range rows {
		line := i + 2 // header is line 1
		frameID, err := parseHexOrDecUint32(row.FrameID)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid frame_id %q: %w", line, row.FrameID, err)
		}
		frameName := strings.TrimSpace(row.FrameName)
		sig := SignalDef{
			Name:       strings.TrimSpace(row.SignalName),
			StartBit:   row.StartBit,
			BitLength:  row.BitLength,
			Endianness: strings.TrimSpace(row.Endianness),
			Signed:     row.Signed,
			Factor:     row.Factor,
			Offset:     row.Offset,
			Min:        row.Min,
			Max:        row.Max,
			Default:    row.Default,
			Unit:       strings.TrimSpace(row.Unit),
			Comment:    strings.TrimSpace(row.Comment),
		}

		switch {
		case frameName == "" || sig.Name == "":
			return nil, fmt.Errorf("line %d: frame_name and signal_name are required", line)
		case sig.Endianness != "" && sig.Endianness != "little":
			return nil, fmt.Errorf("frame %s signal %s: unsupported endianness %q (only little supported)",
				frameName, sig.Name, sig.Endianness)
		case sig.BitLength <= 0 || sig.BitLength > 64:
			return nil, fmt.Errorf("frame %s signal %s: invalid bit_length %d", frameName, sig.Name, sig.BitLength)
		case row.DLC <= 0 || row.DLC > 8:
			return nil, fmt.Errorf("frame %s (0x%X): invalid dlc %d", frameName, frameID, row.DLC)
		case sig.StartBit < 0 || sig.StartBit+sig.BitLength > 8*row.DLC:
			return nil, fmt.Errorf("frame %s signal %s: bits %d..%d exceed dlc %d",
				frameName, sig.Name, sig.StartBit, sig.StartBit+sig.BitLength-1, row.DLC)
		case sig.Factor == 0:
			return nil, fmt.Errorf("frame %s signal %s: factor must be non-zero", frameName, sig.Name)
		}

		fd, ok := m.ByID[frameID]
		if !ok {
			fd = &FrameDef{
				ID:        frameID,
				Name:      frameName,
				DLC:       row.DLC,
				Direction: strings.TrimSpace(row.Direction),
				CycleMS:   row.CycleMS,
			}
			m.ByID[frameID] = fd
			m.ByName[frameName] = fd
		}
		if fd.DLC != row.DLC {
			return nil, fmt.Errorf("frame %s (0x%X) has inconsistent DLC (%d vs %d)", frameName, frameID, fd.DLC, row.DLC)
		}
		fd.Signals = append(fd.Signals, sig)
	}

	for _, fd := range m.ByID {
		sort.Slice(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
	}
	return m, nil
}

func (m *CANMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown frame %q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

func (m *CANMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown frame id 0x%X", id)
	}
	return fd, nil
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func parseHexOrDecUint32(s string) (uint32, error) {
	ss := strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(ss, "0x") || strings.HasPrefix(ss, "0X") {
		base = 16
		ss = ss[2:]
	}
	u, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(u), nil
}
