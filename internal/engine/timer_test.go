package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Two timers on the same interval with different phases must interleave
// exactly: interval 10 phase 0 fires at 10, 20; phase 2 fires at 2, 12, 22.
func TestWheelPhaseAlignment(t *testing.T) {
	w := NewWheel()

	var aFired, bFired []uint64
	w.AddTimer(10, func() { aFired = append(aFired, w.TotalSeconds()) }, 0)
	w.AddTimer(10, func() { bFired = append(bFired, w.TotalSeconds()) }, 2)

	for i := 0; i < 22; i++ {
		w.Tick()
	}

	require.Equal(t, []uint64{10, 20}, aFired)
	require.Equal(t, []uint64{2, 12, 22}, bFired)
}

func TestWheelIntervalOne(t *testing.T) {
	w := NewWheel()
	fired := 0
	w.AddTimer(1, func() { fired++ }, 0)
	for i := 0; i < 5; i++ {
		w.Tick()
	}
	require.Equal(t, 5, fired)
}

func TestWheelLateRegistrationAligns(t *testing.T) {
	w := NewWheel()
	for i := 0; i < 7; i++ {
		w.Tick()
	}

	var fired []uint64
	w.AddTimer(5, func() { fired = append(fired, w.TotalSeconds()) }, 0)
	for i := 0; i < 13; i++ {
		w.Tick()
	}
	require.Equal(t, []uint64{10, 15, 20}, fired, "first firing lands on the aligned boundary after registration")
}

func TestWheelNegativePhaseNormalized(t *testing.T) {
	w := NewWheel()
	var fired []uint64
	w.AddTimer(10, func() { fired = append(fired, w.TotalSeconds()) }, -8)
	for i := 0; i < 12; i++ {
		w.Tick()
	}
	require.Equal(t, []uint64{2, 12}, fired)
}

func TestWheelRejectsBadArgs(t *testing.T) {
	w := NewWheel()
	w.AddTimer(0, func() {}, 0)
	w.AddTimer(-3, func() {}, 0)
	w.AddTimer(5, nil, 0)
	w.Tick()
	require.Zero(t, len(w.tasks))
}
