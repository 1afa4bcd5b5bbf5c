package bridge

// ActuatorState is the per-actuator press-state record: current lifecycle
// phase plus the bookkeeping needed to derive long-press and rotation
// deltas. Changed/Value are only meaningful for backends that accumulate
// rotation deltas between polls (currently only SerialBackend).
type ActuatorState struct {
	PressStartedMS uint32
	State          EventState
	Changed        bool
	Value          int32
}

// TapTempoState is the per-actuator tap-tempo record. LastTap/Estimate are
// in the owning backend's native time unit (µs for libinput, ms for
// serial).
type TapTempoState struct {
	Enabled  bool
	LastTap  uint64
	Estimate uint32
	Updated  bool
}

// actuatorSet bundles the press-state and tap-tempo arrays for one actuator
// family (encoders, or footswitches) within a single backend. It holds no
// lock of its own: one mutex per backend covers both arrays plus the event
// queue, so the owning backend locks around every call into an
// actuatorSet.
type actuatorSet struct {
	press []ActuatorState
	tap   []TapTempoState
}

func newActuatorSet(n int) *actuatorSet {
	return &actuatorSet{
		press: make([]ActuatorState, n),
		tap:   make([]TapTempoState, n),
	}
}

func (s *actuatorSet) len() int { return len(s.press) }

// clear resets press state only; tap-tempo estimates survive a clear since
// they aren't press-state.
func (s *actuatorSet) clear() {
	for i := range s.press {
		s.press[i] = ActuatorState{}
	}
}

// pressEdge records a leading press edge (P1 invariant: state==Pressed iff
// PressStartedMS != 0). Returns false if the actuator was already down, in
// which case no new edge should be enqueued.
func (s *actuatorSet) pressEdge(i int, nowMS uint32) bool {
	a := &s.press[i]
	if a.State == Pressed || a.State == LongPressed {
		return false
	}
	a.State = Pressed
	a.PressStartedMS = nowMS
	return true
}

// releaseEdge records a release, returning to Released from either Pressed
// or LongPressed. Returns false if the actuator was already released.
func (s *actuatorSet) releaseEdge(i int) bool {
	a := &s.press[i]
	if a.State == Released {
		return false
	}
	a.State = Released
	a.PressStartedMS = 0
	return true
}

// sweepLongPress promotes every actuator that has been Pressed for at least
// thresholdMS, invoking emit(index) once per promotion, and clears
// PressStartedMS on promotion so it can't fire twice for the same press.
func (s *actuatorSet) sweepLongPress(nowMS, thresholdMS uint32, emit func(index int)) {
	for i := range s.press {
		a := &s.press[i]
		if a.State != Pressed {
			continue
		}
		if nowMS-a.PressStartedMS >= thresholdMS {
			a.State = LongPressed
			a.PressStartedMS = 0
			emit(i)
		}
	}
}

// enableTap toggles tap-tempo capture for one actuator. The running state
// is reset on every call, enabling included, so re-enabling an
// already-enabled actuator starts a fresh session rather than computing the
// next delta against stale history.
func (s *actuatorSet) enableTap(i int, enable bool) {
	t := &s.tap[i]
	t.LastTap = 0
	t.Estimate = 0
	t.Enabled = enable
	t.Updated = false
}

// recordTap runs the tap-tempo estimator for actuator i at time now
// (backend-native unit): the first tap only stores its timestamp, later
// taps compute a delta, reject it as an outlier beyond timeout+overflow,
// clamp a delta that overshoots timeout but stays within overflow, and
// otherwise smooth the new delta against the running estimate (or replace
// it outright once the two diverge by more than hysteresis).
// timeout/hysteresis/overflow are in that same unit. Returns false if the
// actuator isn't tap-tempo enabled or this tap did not produce a new
// estimate (first tap, or rejected outlier).
func (s *actuatorSet) recordTap(i int, now, timeout, hysteresis, overflow uint64) bool {
	t := &s.tap[i]
	if !t.Enabled {
		return false
	}

	last := t.LastTap
	if last == 0 || now <= last {
		t.LastTap = now
		return false
	}

	delta := now - last
	t.LastTap = now

	if delta > timeout+overflow {
		return false
	}
	if delta > timeout {
		delta = timeout
	}

	est := uint64(t.Estimate)
	diff := est - delta
	if est < delta {
		diff = delta - est
	}
	if diff < hysteresis {
		t.Estimate = uint32((2*est + delta) / 3)
	} else {
		t.Estimate = uint32(delta)
	}
	t.Updated = true
	return true
}

// tapSnapshot pairs an actuator index with its tap-tempo state at the moment
// it was swapped out.
type tapSnapshot struct {
	Index    int
	Estimate uint32
}

// snapshotAndClearTap copies out every actuator whose Updated flag was set,
// clearing it in the live array. Swapping the data out before the caller
// invokes any callback on it means the reader goroutine never blocks
// holding the lock while a consumer callback runs.
func (s *actuatorSet) snapshotAndClearTap() []tapSnapshot {
	var out []tapSnapshot
	for i := range s.tap {
		if s.tap[i].Updated {
			out = append(out, tapSnapshot{Index: i, Estimate: s.tap[i].Estimate})
			s.tap[i].Updated = false
		}
	}
	return out
}
