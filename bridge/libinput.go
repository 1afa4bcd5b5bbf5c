package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/Darkglass-Electronics/event-bridge/internal/evdev"
)

// LibinputBackend reads a single keyboard-style evdev device node
// (e.g. /dev/input/event2) and maps keycodes to encoder/footswitch events.
type LibinputBackend struct {
	cfg Config
	log *zap.SugaredLogger
	clk clock

	f  *os.File
	fd int

	mu       sync.Mutex
	queue    []Event
	encoders *actuatorSet
	foots    *actuatorSet

	rd reader
}

func newLibinputBackend(cfg Config, path string, log *zap.SugaredLogger) (*LibinputBackend, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fd := int(f.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		f.Close()
		return nil, fmt.Errorf("set nonblock %s: %w", path, err)
	}
	b := &LibinputBackend{
		cfg:      cfg,
		log:      orNop(log),
		clk:      newClock(),
		f:        f,
		fd:       fd,
		encoders: newActuatorSet(cfg.NumEncoders),
		foots:    newActuatorSet(cfg.NumFootswitches),
	}
	b.rd = startReader(b.readLoop)
	return b, nil
}

func (b *LibinputBackend) readLoop(ctx context.Context) error {
	parser := &evdev.Parser{}
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ready, err := evdev.PollReadable(b.fd, 100)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			b.log.Warnw("libinput poll error", "error", err)
			return err
		}

		if ready {
			b.drain(parser, buf)
		}

		b.mu.Lock()
		now := b.clk.nowMS()
		b.encoders.sweepLongPress(now, b.cfg.LongPressMS, func(i int) {
			b.queue = append(b.queue, Event{Type: Encoder, State: LongPressed, Index: uint8(i), Value: 0})
		})
		b.foots.sweepLongPress(now, b.cfg.LongPressMS, func(i int) {
			b.queue = append(b.queue, Event{Type: Footswitch, State: LongPressed, Index: uint8(i), Value: 0})
		})
		b.mu.Unlock()
	}
}

// drain reads and dispatches every pending event once the fd was reported
// readable, stopping at EAGAIN.
func (b *LibinputBackend) drain(parser *evdev.Parser, buf []byte) {
	for {
		n, err := unix.Read(b.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			b.log.Warnw("libinput read error", "error", err)
			return
		}
		if n <= 0 {
			return
		}
		parser.Feed(buf[:n], b.handleRaw)
	}
}

func (b *LibinputBackend) handleRaw(etype, code uint16, value int32, timestampUS uint64) {
	if etype != evdev.EV_KEY {
		return
	}
	// Only leading press (1) and release (0) carry gesture meaning; ignore
	// autorepeat (2).
	if value != 0 && value != 1 {
		return
	}

	cfg := b.cfg
	switch {
	case inRange(code, cfg.EncoderClickBase, cfg.NumEncoders):
		b.handleClick(Encoder, b.encoders, int(code-cfg.EncoderClickBase), value, timestampUS)
	case inRange(code, cfg.FootswitchClickBase, cfg.NumFootswitches):
		b.handleClick(Footswitch, b.foots, int(code-cfg.FootswitchClickBase), value, timestampUS)
	case inRange(code, cfg.EncoderLeftBase, cfg.NumEncoders):
		if value == 1 {
			b.enqueueRotation(int(code - cfg.EncoderLeftBase), -1)
		}
	case inRange(code, cfg.EncoderRightBase, cfg.NumEncoders):
		if value == 1 {
			b.enqueueRotation(int(code - cfg.EncoderRightBase), 1)
		}
	default:
		b.log.Debugw("libinput: unknown keycode", "code", code)
	}
}

// inRange implements the intended half-open [base, base+n) interval, fixing
// a keycode-range off-by-one that an inclusive range would introduce at
// base+n.
func inRange(code, base uint16, n int) bool {
	if n <= 0 || code < base {
		return false
	}
	return int(code-base) < n
}

// handleClick records a press/release edge and, for a press, the
// tap-tempo instant. timestampUS is the kernel's own per-event timestamp,
// not the time this function happens to run: several buffered key events
// can be dispatched from a single drain() pass, and only the kernel
// timestamp tells them apart accurately enough for tap-tempo deltas.
func (b *LibinputBackend) handleClick(t EventType, set *actuatorSet, index int, value int32, timestampUS uint64) {
	now := b.clk.nowMS()
	b.mu.Lock()
	defer b.mu.Unlock()

	if value == 1 {
		if !set.pressEdge(index, now) {
			return
		}
		b.queue = append(b.queue, Event{Type: t, State: Pressed, Index: uint8(index), Value: 0})
		set.recordTap(index, timestampUS,
			uint64(b.cfg.TapTimeoutMS)*1000,
			uint64(b.cfg.TapHysteresisMS)*1000,
			uint64(b.cfg.TapTimeoutOverflowMS)*1000)
	} else {
		if !set.releaseEdge(index) {
			return
		}
		b.queue = append(b.queue, Event{Type: t, State: Released, Index: uint8(index), Value: 0})
	}
}

func (b *LibinputBackend) enqueueRotation(index int, delta int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= b.encoders.len() {
		return
	}
	st := b.encoders.press[index].State
	b.queue = append(b.queue, Event{Type: Encoder, State: st, Index: uint8(index), Value: delta})
}

// Poll implements InputBackend. It swaps the queue and copies tap-tempo
// snapshots under the lock, then builds the returned slice outside the
// lock so the callback the facade later invokes on these events never runs
// while the lock is held.
func (b *LibinputBackend) Poll() []Event {
	b.mu.Lock()
	events := b.queue
	b.queue = nil
	encTaps := b.encoders.snapshotAndClearTap()
	footTaps := b.foots.snapshotAndClearTap()
	b.mu.Unlock()

	for _, t := range encTaps {
		events = append(events, Event{Type: Encoder, State: TapTempo, Index: uint8(t.Index), Value: int32(t.Estimate)})
	}
	for _, t := range footTaps {
		events = append(events, Event{Type: Footswitch, State: TapTempo, Index: uint8(t.Index), Value: int32(t.Estimate)})
	}
	return events
}

func (b *LibinputBackend) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.encoders.clear()
	b.foots.clear()
	b.queue = nil
}

func (b *LibinputBackend) EnableTapTempo(t EventType, index uint8, enable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch t {
	case Encoder:
		if int(index) < b.encoders.len() {
			b.encoders.enableTap(int(index), enable)
		}
	case Footswitch:
		if int(index) < b.foots.len() {
			b.foots.enableTap(int(index), enable)
		}
	}
}

// Grab requests exclusive access to the device via EVIOCGRAB. Optional:
// by default the device is shared with the rest of the input stack, and
// it's up to the caller to decide whether to grab it.
func (b *LibinputBackend) Grab() error {
	return evdev.Grab(b.fd)
}

func (b *LibinputBackend) Close() error {
	err := b.rd.stop()
	if cerr := b.f.Close(); err == nil {
		err = cerr
	}
	return err
}
