package main

import (
	"math"
	"slices"
	"sync"
	"time"

	control "marker-dock/closed_loop/marker_control"
)

type markerEntry struct {
	det  control.MarkerDetection
	seen time.Time
}

// SensorStore collects decoded sensor frames from the RX goroutine and hands
// the control loop a consistent snapshot each tick.
type SensorStore struct {
	mu sync.Mutex

	markerTTL time.Duration
	scanTTL   time.Duration

	pose     control.Pose2D
	poseSeen bool

	markers map[int]markerEntry
	order   []int // marker ids by first arrival

	ranges   []float64
	scanSeen time.Time
	scanAny  bool
}

// Snapshot is the sensor view for one controller tick.
type Snapshot struct {
	Pose       control.Pose2D
	PoseValid  bool
	Detections []control.MarkerDetection
	Scan       *control.RangeScan // nil when no fresh scan exists
}

func NewSensorStore(markerTTL, scanTTL time.Duration, scanSamples int) *SensorStore {
	return &SensorStore{
		markerTTL: markerTTL,
		scanTTL:   scanTTL,
		markers:   map[int]markerEntry{},
		ranges:    make([]float64, scanSamples),
	}
}

func (s *SensorStore) UpdatePose(p control.Pose2D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = p
	s.poseSeen = true
}

// UpdateMarker records the latest detection of det.ID. A marker that had
// expired counts as a new arrival.
func (s *SensorStore) UpdateMarker(det control.MarkerDetection, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.markers[det.ID]
	if !ok || now.Sub(prev.seen) > s.markerTTL {
		s.order = slices.DeleteFunc(s.order, func(id int) bool { return id == det.ID })
		s.order = append(s.order, det.ID)
	}
	s.markers[det.ID] = markerEntry{det: det, seen: now}
}

// UpdateScanSector writes three consecutive samples starting at 3*sector.
// Samples past the end of the scan are dropped.
func (s *SensorStore) UpdateScanSector(sector int, ranges [3]float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range ranges {
		i := 3*sector + k
		if i < 0 || i >= len(s.ranges) {
			continue
		}
		s.ranges[i] = r
	}
	s.scanSeen = now
	s.scanAny = true
}

// Snapshot returns the markers seen within the marker TTL in first-arrival
// order and the scan if a sector arrived within the scan TTL.
func (s *SensorStore) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Pose: s.pose, PoseValid: s.poseSeen}

	live := s.order[:0]
	for _, id := range s.order {
		e := s.markers[id]
		if now.Sub(e.seen) > s.markerTTL {
			delete(s.markers, id)
			continue
		}
		live = append(live, id)
		snap.Detections = append(snap.Detections, e.det)
	}
	s.order = live

	if s.scanAny && now.Sub(s.scanSeen) <= s.scanTTL && len(s.ranges) > 0 {
		snap.Scan = &control.RangeScan{
			Ranges:         slices.Clone(s.ranges),
			AngleMin:       -math.Pi,
			AngleIncrement: 2 * math.Pi / float64(len(s.ranges)),
		}
	}
	return snap
}
