package utils

import (
	"fmt"
	"math"

	"go.einride.tech/can"
)

// mask returns the low n bits set.
func mask(n int) uint64 {
	if n >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << n) - 1
}

// rawRange is the integer range a signal can carry.
func (s SignalDef) rawRange() (int64, int64) {
	if s.BitLength >= 64 {
		if s.Signed {
			return math.MinInt64, math.MaxInt64
		}
		return 0, math.MaxInt64
	}
	if !s.Signed {
		return 0, int64(mask(s.BitLength))
	}
	half := int64(1) << (s.BitLength - 1)
	return -half, half - 1
}

// encode converts a physical value to the signal's raw integer. The value is
// clamped to [Min, Max] when the map gives a range.
func (s SignalDef) encode(v float64) int64 {
	if math.IsNaN(v) {
		v = s.Default
	}
	if s.Max > s.Min {
		v = math.Max(s.Min, math.Min(s.Max, v))
	}
	lo, hi := s.rawRange()
	raw := math.Round((v - s.Offset) / s.Factor)
	return int64(math.Max(float64(lo), math.Min(float64(hi), raw)))
}

// put writes the raw value of v into data.
func (s SignalDef) put(data *can.Data, v float64) {
	raw := s.encode(v)
	start, length := uint8(s.StartBit), uint8(s.BitLength)
	if s.Signed {
		data.SetSignedBitsLittleEndian(start, length, raw)
		return
	}
	data.SetUnsignedBitsLittleEndian(start, length, uint64(raw))
}

// get reads the signal from data as a physical value.
func (s SignalDef) get(data *can.Data) float64 {
	start, length := uint8(s.StartBit), uint8(s.BitLength)
	var raw float64
	if s.Signed {
		raw = float64(data.SignedBitsLittleEndian(start, length))
	} else {
		raw = float64(data.UnsignedBitsLittleEndian(start, length))
	}
	return raw*s.Factor + s.Offset
}

// EncodeFrame packs values into the named frame. Signals missing from values
// take their default.
func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) (can.Frame, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return can.Frame{}, err
	}

	f := can.Frame{ID: fd.ID, Length: uint8(fd.DLC)}
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		s.put(&f.Data, v)
	}
	return f, nil
}

// DecodeFrame unpacks a received frame by its ID.
func (m *CANMap) DecodeFrame(frame can.Frame) (*FrameDef, map[string]float64, error) {
	fd, err := m.FrameByID(frame.ID)
	if err != nil {
		return nil, nil, err
	}
	if int(frame.Length) < fd.DLC {
		return nil, nil, fmt.Errorf("frame %s (0x%X) expects DLC %d, got %d", fd.Name, frame.ID, fd.DLC, frame.Length)
	}

	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		out[s.Name] = s.get(&frame.Data)
	}
	return fd, out, nil
}
