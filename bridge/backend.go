package bridge

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// InputBackend is the narrow capability set every input driver implements:
// poll, clear, and (where supported) tap-tempo enablement, in place of
// virtual dispatch across backend subclasses. The concrete backend set is
// closed -- LibinputBackend, SerialBackend, GpioInputBackend -- and dispatch
// from the facade is a plain interface call, not a tagged switch.
type InputBackend interface {
	// Poll drains any events queued since the last call and returns them in
	// arrival order. It never blocks beyond the backend's own timeout.
	Poll() []Event

	// Clear resets press state and any queued events.
	Clear()

	// EnableTapTempo toggles tap-tempo capture for one actuator. Backends
	// that can't produce tap-tempo events (GpioInputBackend) implement this
	// as a no-op.
	EnableTapTempo(t EventType, index uint8, enable bool)

	// Close releases the backend's OS handles and joins its reader.
	Close() error
}

// OutputBackend is the capability set for actuators the bridge drives.
type OutputBackend interface {
	Emit(value int32) error
	Close() error
}

// reader is a scoped reader task: a single cancellable goroutine per
// backend, where cancelling ctx is the `running = false` flag and eg.Wait
// is the join. Both LibinputBackend and SerialBackend embed one.
type reader struct {
	cancel context.CancelFunc
	eg     *errgroup.Group
}

// startReader launches fn as the backend's sole reader goroutine under a
// fresh cancellable context.
func startReader(fn func(ctx context.Context) error) reader {
	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return fn(ctx) })
	return reader{cancel: cancel, eg: eg}
}

// stop cancels the reader and joins it, returning its terminal error (nil on
// a clean shutdown).
func (r reader) stop() error {
	r.cancel()
	return r.eg.Wait()
}
