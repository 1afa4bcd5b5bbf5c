package bridge

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// GpioInputBackend is a minimal file-per-attribute driver over
// /sys/class/gpio/gpio<id>/value. It has no reader goroutine: Poll itself
// rewinds and reads the value file synchronously, emitting a Footswitch
// edge event whenever the observed value differs from the last one seen.
// GPIO participates in neither long-press nor tap-tempo.
type GpioInputBackend struct {
	f     *os.File
	index uint8
	last  int // -1 until observed, so the first real reading always fires an edge
}

func newGpioInputBackend(id string, index uint8) (*GpioInputBackend, error) {
	path := fmt.Sprintf("/sys/class/gpio/gpio%s/value", id)
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &GpioInputBackend{f: f, index: index, last: -1}, nil
}

func (g *GpioInputBackend) readValue() (int, error) {
	if _, err := g.f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	buf := make([]byte, 8)
	n, err := g.f.Read(buf)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0, fmt.Errorf("parse gpio value: %w", err)
	}
	return v, nil
}

func (g *GpioInputBackend) Poll() []Event {
	v, err := g.readValue()
	if err != nil {
		return nil
	}
	if v == g.last {
		return nil
	}
	g.last = v

	state := Released
	if v != 0 {
		state = Pressed
	}
	return []Event{{Type: Footswitch, State: state, Index: g.index, Value: 0}}
}

// Clear resets the last-observed value, so the next Poll always reports an
// edge reflecting the switch's current state, the same way a fresh
// GpioInputBackend's first Poll does.
func (g *GpioInputBackend) Clear() {
	g.last = -1
}

func (g *GpioInputBackend) EnableTapTempo(EventType, uint8, bool) {}

func (g *GpioInputBackend) Close() error {
	return g.f.Close()
}

// GpioOutputBackend writes decimal values to /sys/class/gpio/gpio<id>/value.
type GpioOutputBackend struct {
	f *os.File
}

func newGpioOutputBackend(id string) (*GpioOutputBackend, error) {
	path := fmt.Sprintf("/sys/class/gpio/gpio%s/value", id)
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &GpioOutputBackend{f: f}, nil
}

func (g *GpioOutputBackend) Emit(value int32) error {
	if _, err := g.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := g.f.WriteString(strconv.Itoa(int(value))); err != nil {
		return err
	}
	return g.f.Sync()
}

func (g *GpioOutputBackend) Close() error {
	return g.f.Close()
}
