package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// SerialBackend speaks a line-oriented wire grammar over a 115200 8-N-1
// serial port with no software flow control, tracking cfg.NumEncoders
// actuators with a rotation accumulator.
type SerialBackend struct {
	cfg Config
	log *zap.SugaredLogger
	clk clock

	port serial.Port

	mu       sync.Mutex
	encoders *actuatorSet

	rd reader
}

func newSerialBackend(cfg Config, path string, log *zap.SugaredLogger) (*SerialBackend, error) {
	mode := &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// go.bug.st/serial never enables software (XON/XOFF) flow control; the
	// raw termios mode it configures is already what a clean byte-oriented
	// line protocol needs, so there is nothing further to disable here.
	_ = port.SetReadTimeout(100 * time.Millisecond)

	b := &SerialBackend{
		cfg:      cfg,
		log:      orNop(log),
		clk:      newClock(),
		port:     port,
		encoders: newActuatorSet(cfg.NumEncoders),
	}

	b.rd = startReader(b.readLoop)
	return b, nil
}

func (b *SerialBackend) readLoop(ctx context.Context) error {
	parser := &wireParser{}
	buf := make([]byte, 256)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// go.bug.st/serial returns (0, nil) on its configured read timeout
		// rather than an error. That 0-byte, no-error read is not a failure;
		// it's exactly what drives the long-press sweep below on an
		// otherwise quiet line.
		n, err := b.port.Read(buf)
		if err != nil {
			if err == io.EOF {
				return err
			}
			if pe, ok := err.(*serial.PortError); ok && pe.Code() == serial.PortClosed {
				return nil
			}
			b.log.Warnw("serial read error", "error", err)
			return err
		}
		if n > 0 {
			parser.feed(buf[:n], b.handleMessage)
		}

		b.mu.Lock()
		now := b.clk.nowMS()
		b.encoders.sweepLongPress(now, b.cfg.LongPressMS, func(i int) {
			b.encoders.press[i].Changed = true
		})
		b.mu.Unlock()
	}
}

// wireParser implements the byte-level grammar incrementally, so a message
// straddling two Read calls (e.g. split by the port's read timeout) is
// parsed correctly: a leading stray '\n' is resync noise and is dropped
// (two in a row is a pure flush artifact), a message is "<letter>
// payload\n", and anything that doesn't match is dropped with parsing
// resuming at the next newline.
type wireParser struct {
	pending []byte
}

func (p *wireParser) feed(chunk []byte, cb func(prefix byte, payload string)) {
	p.pending = append(p.pending, chunk...)
	for {
		for len(p.pending) > 0 && p.pending[0] == '\n' {
			p.pending = p.pending[1:]
		}
		if len(p.pending) < 2 {
			return
		}
		if p.pending[1] != ' ' {
			idx := bytes.IndexByte(p.pending, '\n')
			if idx == -1 {
				p.pending = nil
				return
			}
			p.pending = p.pending[idx+1:]
			continue
		}
		idx := bytes.IndexByte(p.pending[2:], '\n')
		if idx == -1 {
			return // incomplete line; wait for more data
		}
		prefix := p.pending[0]
		line := string(p.pending[2 : 2+idx])
		p.pending = p.pending[2+idx+1:]
		cb(prefix, line)
	}
}

func (b *SerialBackend) handleMessage(prefix byte, payload string) {
	switch {
	case prefix >= 'A' && prefix <= 'Z':
		b.handleRotation(int(prefix-'A'), payload)
	case prefix >= 'a' && prefix <= 'z':
		b.handleClick(int(prefix-'a'), payload)
	}
}

func (b *SerialBackend) handleRotation(index int, payload string) {
	if index < 0 || index >= b.cfg.NumEncoders {
		return
	}
	delta, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := &b.encoders.press[index]
	a.Value += int32(delta)
	a.Changed = true
}

func (b *SerialBackend) handleClick(index int, payload string) {
	if index < 0 || index >= b.cfg.NumEncoders {
		return
	}
	payload = strings.TrimSpace(payload)
	down := payload == "1"
	if !down && payload != "0" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clk.nowMS()
	if down {
		if b.encoders.pressEdge(index, now) {
			b.encoders.press[index].Changed = true
			b.encoders.recordTap(index, uint64(now),
				uint64(b.cfg.TapTimeoutMS),
				uint64(b.cfg.TapHysteresisMS),
				uint64(b.cfg.TapTimeoutOverflowMS))
		}
	} else {
		if b.encoders.releaseEdge(index) {
			b.encoders.press[index].Changed = true
		}
	}
}

// Poll implements InputBackend. The accumulator is snapshotted and cleared,
// one Event per changed actuator carrying its current state and
// accumulated rotation value; tap-tempo estimates (native unit ms) are
// promoted to microseconds so every TapTempo event across backends shares
// units.
func (b *SerialBackend) Poll() []Event {
	b.mu.Lock()
	var events []Event
	for i := range b.encoders.press {
		a := &b.encoders.press[i]
		if !a.Changed {
			continue
		}
		events = append(events, Event{Type: Encoder, State: a.State, Index: uint8(i), Value: a.Value})
		a.Value = 0
		a.Changed = false
	}
	taps := b.encoders.snapshotAndClearTap()
	b.mu.Unlock()

	for _, t := range taps {
		events = append(events, Event{Type: Encoder, State: TapTempo, Index: uint8(t.Index), Value: int32(t.Estimate) * 1000})
	}
	return events
}

func (b *SerialBackend) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.encoders.clear()
}

func (b *SerialBackend) EnableTapTempo(t EventType, index uint8, enable bool) {
	if t != Encoder {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(index) < b.encoders.len() {
		b.encoders.enableTap(int(index), enable)
	}
}

func (b *SerialBackend) Close() error {
	err := b.rd.stop()
	if cerr := b.port.Close(); err == nil {
		err = cerr
	}
	return err
}
