package bridge

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// EventBridge is the facade that owns zero or more input backends and a
// fingerprint-keyed table of output backends, routes SendEvent calls, and
// delivers received events to a user callback. It is not safe for
// concurrent use from multiple goroutines -- the facade is single-threaded
// from the caller's perspective; only backend reader goroutines run
// concurrently with it, and they never touch the facade directly.
type EventBridge struct {
	cfg Config
	log *zap.SugaredLogger

	mu      sync.Mutex // guards lastErr only; backend state has its own locks
	lastErr string

	inputs  []InputBackend
	outputs map[uint32]OutputBackend
}

// New constructs an EventBridge with the given configuration. A nil logger
// disables logging.
func New(cfg Config, log *zap.SugaredLogger) *EventBridge {
	return &EventBridge{
		cfg:     cfg,
		log:     orNop(log),
		outputs: make(map[uint32]OutputBackend),
	}
}

// LastError returns the diagnostic recorded by the most recent failed
// AddInput/AddOutput call or SendEvent whose output failed to emit, or ""
// if none.
func (b *EventBridge) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *EventBridge) setErr(err error) {
	b.mu.Lock()
	b.lastErr = err.Error()
	b.mu.Unlock()
	b.log.Warnw("backend error", "error", err)
}

// AddInput constructs and registers an input backend of the given kind.
// id is the backend-specific device identifier (a device path, serial
// port, or GPIO line number). index is used only by the GPIO input backend,
// as the footswitch index its events carry; the libinput and serial backends
// ignore it and report the actuator index decoded from the keycode or wire
// message, without adding any base offset.
func (b *EventBridge) AddInput(kind BackendKind, id string, index uint8) bool {
	var (
		in  InputBackend
		err error
	)
	switch kind {
	case KindLibinput:
		in, err = newLibinputBackend(b.cfg, id, b.log)
	case KindSerial:
		in, err = newSerialBackend(b.cfg, id, b.log)
	case KindGpioInput:
		in, err = newGpioInputBackend(id, index)
	default:
		err = fmt.Errorf("add_input: unsupported input backend kind %v", kind)
	}
	if err != nil {
		b.setErr(fmt.Errorf("add_input(%v, %q): %w", kind, id, err))
		return false
	}
	b.inputs = append(b.inputs, in)
	return true
}

// AddOutput constructs and registers an output backend at the fingerprint
// (event type derived from kind, index), overwriting any prior output
// there. Both output kinds drive LED actuators, so both register under
// Led.
func (b *EventBridge) AddOutput(kind BackendKind, id string, index uint8) bool {
	var (
		out OutputBackend
		t   EventType
		err error
	)
	switch kind {
	case KindGpioOutput:
		t = Led
		out, err = newGpioOutputBackend(id)
	case KindSysfsLed:
		t = Led
		out, err = newSysfsLedBackend(id)
	default:
		err = fmt.Errorf("add_output: unsupported output backend kind %v", kind)
	}
	if err != nil {
		b.setErr(fmt.Errorf("add_output(%v, %q): %w", kind, id, err))
		return false
	}
	b.outputs[Fingerprint(t, index)] = out
	return true
}

// Clear resets press state and queued events across every registered input
// backend, suppressing spurious long-press detection from buttons that were
// already held down before the caller started polling.
func (b *EventBridge) Clear() {
	for _, in := range b.inputs {
		in.Clear()
	}
}

// EnableTapTempo toggles tap-tempo capture for one actuator across every
// input backend that tracks it. Takes effect on the actuator's next press.
func (b *EventBridge) EnableTapTempo(t EventType, index uint8, enable bool) {
	for _, in := range b.inputs {
		in.EnableTapTempo(t, index, enable)
	}
}

// Poll drains every input backend's queued events, fully and in the order
// backends were added, and invokes cb once per event. Poll is the sole
// entry point that ever invokes cb; no backend reader goroutine calls it
// directly.
func (b *EventBridge) Poll(cb func(Event)) {
	for _, in := range b.inputs {
		for _, ev := range in.Poll() {
			cb(ev)
		}
	}
}

// SendEvent delivers value to the output backend registered at
// (t, index)'s fingerprint. Returns false if nothing is registered there;
// callers treat a missing output as non-fatal.
func (b *EventBridge) SendEvent(t EventType, index uint8, value int32) bool {
	out, ok := b.outputs[Fingerprint(t, index)]
	if !ok {
		return false
	}
	if err := out.Emit(value); err != nil {
		b.setErr(fmt.Errorf("send_event(%v, %d): %w", t, index, err))
		return false
	}
	return true
}

// Close shuts down every registered backend, joining reader goroutines.
func (b *EventBridge) Close() error {
	var firstErr error
	for _, in := range b.inputs {
		if err := in.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, out := range b.outputs {
		if err := out.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
