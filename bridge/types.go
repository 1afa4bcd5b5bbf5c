// Package bridge implements the event-bridge engine: a multi-backend input
// pipeline (libinput-style keyboard devices, sysfs GPIO, line-oriented
// serial) that derives press/release/long-press/tap-tempo gestures and fans
// outgoing (type, index, value) events out to LED/GPIO output backends.
package bridge

import "fmt"

// EventType is the tagged kind of an Event.
type EventType int

const (
	Null EventType = iota
	Encoder
	Footswitch
	Led
)

func (t EventType) String() string {
	switch t {
	case Encoder:
		return "encoder"
	case Footswitch:
		return "footswitch"
	case Led:
		return "led"
	default:
		return "null"
	}
}

// EventState is the lifecycle phase of a press-capable actuator.
type EventState int

const (
	Released EventState = iota
	Pressed
	LongPressed
	TapTempo
)

func (s EventState) String() string {
	switch s {
	case Pressed:
		return "pressed"
	case LongPressed:
		return "long_pressed"
	case TapTempo:
		return "tap_tempo"
	default:
		return "released"
	}
}

// Event is the quantum delivered to the user callback and produced by
// backends. Value's meaning depends on Type/State: rotation delta for an
// Encoder in Pressed/Released/LongPressed, tempo estimate in microseconds
// for TapTempo (Encoder or Footswitch), unused (0) for Footswitch press
// edges.
type Event struct {
	Type  EventType
	State EventState
	Index uint8
	Value int32
}

// Fingerprint is the routing key for output backends: (type * 256) + index.
func Fingerprint(t EventType, index uint8) uint32 {
	return uint32(t)*256 + uint32(index)
}

func (e Event) String() string {
	return fmt.Sprintf("%s/%s[%d]=%d", e.Type, e.State, e.Index, e.Value)
}

// BackendKind tags which concrete driver add_input/add_output should build.
type BackendKind int

const (
	KindLibinput BackendKind = iota
	KindSerial
	KindGpioInput
	KindGpioOutput
	KindSysfsLed
)
