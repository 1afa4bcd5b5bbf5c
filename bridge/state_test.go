package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActuatorSetPressReleaseInvariant(t *testing.T) {
	// P1: state == Pressed iff PressStartedMS != 0.
	s := newActuatorSet(1)
	require.True(t, s.pressEdge(0, 100))
	assert.Equal(t, Pressed, s.press[0].State)
	assert.NotZero(t, s.press[0].PressStartedMS)

	require.False(t, s.pressEdge(0, 150), "second press before release is not a new edge")

	require.True(t, s.releaseEdge(0))
	assert.Equal(t, Released, s.press[0].State)
	assert.Zero(t, s.press[0].PressStartedMS)

	require.False(t, s.releaseEdge(0), "releasing an already-released actuator is not a new edge")
}

func TestActuatorSetLongPressSweepOncePerPress(t *testing.T) {
	// P2: at most one LongPressed emitted between a Pressed edge and its
	// matching Released edge.
	s := newActuatorSet(1)
	s.pressEdge(0, 0)

	promotions := 0
	sweep := func(i int) { promotions++ }

	s.sweepLongPress(499, 500, sweep)
	assert.Equal(t, 0, promotions, "not yet past the threshold")
	assert.Equal(t, Pressed, s.press[0].State)

	s.sweepLongPress(500, 500, sweep)
	assert.Equal(t, 1, promotions)
	assert.Equal(t, LongPressed, s.press[0].State)
	assert.Zero(t, s.press[0].PressStartedMS, "promotion clears PressStartedMS")

	// Further sweeps must not re-promote.
	s.sweepLongPress(10000, 500, sweep)
	assert.Equal(t, 1, promotions)

	require.True(t, s.releaseEdge(0))
	assert.Equal(t, Released, s.press[0].State)
}

func TestActuatorSetClearSuppressesPendingLongPress(t *testing.T) {
	// P3/scenario 6: after clear(), no LongPressed is emitted until a new
	// Pressed edge is seen.
	s := newActuatorSet(1)
	s.pressEdge(0, 0)
	s.clear()

	promotions := 0
	s.sweepLongPress(10000, 500, func(i int) { promotions++ })
	assert.Equal(t, 0, promotions)
	assert.Equal(t, Released, s.press[0].State)
}

func TestTapTempoFirstTapStoresOnly(t *testing.T) {
	s := newActuatorSet(1)
	s.enableTap(0, true)

	updated := s.recordTap(0, 1000, 3000, 750, 50)
	assert.False(t, updated)
	assert.Equal(t, uint64(1000), s.tap[0].LastTap)
	assert.Zero(t, s.tap[0].Estimate)
}

func TestTapTempoSecondTapSetsEstimate(t *testing.T) {
	s := newActuatorSet(1)
	s.enableTap(0, true)
	s.recordTap(0, 1000, 3000, 750, 50)

	// delta=500 is within hysteresis of the zero starting estimate, so even
	// the first real delta goes through the smoothing branch: (2*0+500)/3.
	updated := s.recordTap(0, 1500, 3000, 750, 50)
	require.True(t, updated)
	assert.Equal(t, uint32((2*0+500)/3), s.tap[0].Estimate)
	assert.True(t, s.tap[0].Updated)
}

func TestTapTempoHysteresisSmooths(t *testing.T) {
	s := newActuatorSet(1)
	s.enableTap(0, true)
	s.tap[0].LastTap = 600
	s.tap[0].Estimate = 500

	// delta=520, within hysteresis of the running estimate -> smoothed,
	// not a hard reset.
	updated := s.recordTap(0, 1120, 3000, 750, 50)
	require.True(t, updated)
	assert.Equal(t, uint32((2*500+520)/3), s.tap[0].Estimate)
}

func TestTapTempoReenableStartsFreshSession(t *testing.T) {
	s := newActuatorSet(1)
	s.enableTap(0, true)
	s.recordTap(0, 1000, 3000, 750, 50)
	s.recordTap(0, 1500, 3000, 750, 50)

	// Re-enabling without an intervening disable discards the running
	// estimate and last-tap time, so the next tap is the first of a new
	// session and only stores its timestamp.
	s.enableTap(0, true)
	assert.Zero(t, s.tap[0].LastTap)
	assert.Zero(t, s.tap[0].Estimate)
	assert.False(t, s.tap[0].Updated)

	updated := s.recordTap(0, 60000, 3000, 750, 50)
	assert.False(t, updated, "first tap of the new session must not emit")
	assert.Equal(t, uint64(60000), s.tap[0].LastTap)
}

func TestTapTempoDivergentDeltaReplacesEstimate(t *testing.T) {
	s := newActuatorSet(1)
	s.enableTap(0, true)
	s.tap[0].LastTap = 1000
	s.tap[0].Estimate = 500

	// delta=1800, |500-1800| >= hysteresis(750) -> the estimate is replaced
	// outright, no smoothing against the stale value.
	updated := s.recordTap(0, 2800, 3000, 750, 50)
	require.True(t, updated)
	assert.Equal(t, uint32(1800), s.tap[0].Estimate)
}

func TestTapTempoOutlierBeyondOverflowRejected(t *testing.T) {
	s := newActuatorSet(1)
	s.enableTap(0, true)
	s.recordTap(0, 100, 3000, 750, 50)

	// delta = 4000 > timeout(3000)+overflow(50) -> rejected, no estimate.
	updated := s.recordTap(0, 4100, 3000, 750, 50)
	assert.False(t, updated)
	assert.Zero(t, s.tap[0].Estimate)
	// last_tap_time is still updated even on rejection.
	assert.Equal(t, uint64(4100), s.tap[0].LastTap)
}

func TestTapTempoOverTimeoutButWithinOverflowClamps(t *testing.T) {
	s := newActuatorSet(1)
	s.enableTap(0, true)
	s.recordTap(0, 100, 3000, 750, 50)

	// delta = 3040, over timeout(3000) but within overflow(50) -> clamped to 3000.
	updated := s.recordTap(0, 3140, 3000, 750, 50)
	require.True(t, updated)
	assert.Equal(t, uint32(3000), s.tap[0].Estimate)
}

func TestSnapshotAndClearTapPreservesIndex(t *testing.T) {
	s := newActuatorSet(3)
	s.enableTap(0, true)
	s.enableTap(2, true)
	s.recordTap(0, 100, 3000, 750, 50)
	s.recordTap(0, 600, 3000, 750, 50)
	s.recordTap(2, 100, 3000, 750, 50)
	s.recordTap(2, 800, 3000, 750, 50)

	snaps := s.snapshotAndClearTap()
	require.Len(t, snaps, 2)
	byIndex := map[int]uint32{}
	for _, sn := range snaps {
		byIndex[sn.Index] = sn.Estimate
	}
	// Both first real deltas smooth against a zero starting estimate.
	assert.Equal(t, uint32((2*0+500)/3), byIndex[0])
	assert.Equal(t, uint32((2*0+700)/3), byIndex[2])

	// Updated flags cleared after snapshot.
	assert.False(t, s.tap[0].Updated)
	assert.False(t, s.tap[2].Updated)
	assert.Empty(t, s.snapshotAndClearTap())
}
