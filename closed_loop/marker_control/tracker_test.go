package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectNearest(t *testing.T) {
	dets := []MarkerDetection{
		{ID: 4, X: 1.5, Y: 0.2},
		{ID: 8, X: 0.6, Y: -0.3, Yaw: 0.4, HasYaw: true},
		{ID: 2, X: 2.0, Y: 2.0},
	}
	target, ok := SelectNearest(dets, Pose2D{X: -4, Y: 1, Yaw: 2.5})
	require.True(t, ok)
	assert.Equal(t, TrackedTarget{ID: 8, X: 0.6, Y: -0.3, Yaw: 0.4, HasYaw: true, Found: true}, *target)
}

func TestSelectNearest_TieKeepsFirst(t *testing.T) {
	dets := []MarkerDetection{
		{ID: 3, X: 1, Y: 0},
		{ID: 5, X: 0, Y: 1},
		{ID: 6, X: -1, Y: 0},
	}
	target, ok := SelectNearest(dets, Pose2D{})
	require.True(t, ok)
	assert.Equal(t, 3, target.ID)
}

func TestSelectNearest_Empty(t *testing.T) {
	target, ok := SelectNearest(nil, Pose2D{})
	assert.False(t, ok)
	assert.Nil(t, target)
}

func TestReacquire(t *testing.T) {
	tracked := TrackedTarget{ID: 5, X: 1, Y: 1, Found: true}

	t.Run("found", func(t *testing.T) {
		dets := []MarkerDetection{{ID: 2, X: 9, Y: 9}, {ID: 5, X: 0.8, Y: 0.7}, {ID: 5, X: 3, Y: 3}}
		got, ok := Reacquire(tracked, dets)
		assert.True(t, ok)
		assert.Equal(t, TrackedTarget{ID: 5, X: 0.8, Y: 0.7, Found: true}, got)
	})

	t.Run("missing keeps last position", func(t *testing.T) {
		got, ok := Reacquire(tracked, []MarkerDetection{{ID: 2, X: 9, Y: 9}})
		assert.False(t, ok)
		assert.Equal(t, TrackedTarget{ID: 5, X: 1, Y: 1, Found: false}, got)
	})

	t.Run("no detections", func(t *testing.T) {
		_, ok := Reacquire(tracked, nil)
		assert.False(t, ok)
	})
}
