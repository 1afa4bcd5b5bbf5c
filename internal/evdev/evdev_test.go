package evdev

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawEvent struct {
	etype, code uint16
	value       int32
	timestampUS uint64
}

func collect(got *[]rawEvent) func(etype, code uint16, value int32, timestampUS uint64) {
	return func(etype, code uint16, value int32, timestampUS uint64) {
		*got = append(*got, rawEvent{etype, code, value, timestampUS})
	}
}

// event24 encodes one 64-bit-timeval input_event (24 bytes).
func event24(sec, usec uint64, etype, code uint16, value int32) []byte {
	b := make([]byte, 24)
	binary.LittleEndian.PutUint64(b[0:8], sec)
	binary.LittleEndian.PutUint64(b[8:16], usec)
	binary.LittleEndian.PutUint16(b[16:18], etype)
	binary.LittleEndian.PutUint16(b[18:20], code)
	binary.LittleEndian.PutUint32(b[20:24], uint32(value))
	return b
}

// event16 encodes one 32-bit-timeval input_event (16 bytes).
func event16(sec, usec uint32, etype, code uint16, value int32) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:4], sec)
	binary.LittleEndian.PutUint32(b[4:8], usec)
	binary.LittleEndian.PutUint16(b[8:10], etype)
	binary.LittleEndian.PutUint16(b[10:12], code)
	binary.LittleEndian.PutUint32(b[12:16], uint32(value))
	return b
}

func TestParser24ByteLayout(t *testing.T) {
	p := &Parser{}
	var got []rawEvent

	chunk := append(event24(3, 250_000, EV_KEY, 0x2c0, 1), event24(3, 500_000, EV_SYN, SYN_REPORT, 0)...)
	p.Feed(chunk, collect(&got))

	require.Len(t, got, 2)
	assert.Equal(t, uint16(EV_KEY), got[0].etype)
	assert.Equal(t, uint16(0x2c0), got[0].code)
	assert.Equal(t, int32(1), got[0].value)
	assert.Equal(t, uint64(3_250_000), got[0].timestampUS, "timestamp is tv_sec*1e6 + tv_usec")
	assert.Equal(t, uint16(EV_SYN), got[1].etype)
}

func TestParser16ByteLayout(t *testing.T) {
	p := &Parser{}
	var got []rawEvent

	chunk := append(event16(1, 100, EV_KEY, 0x2c1, 1), event16(1, 200, EV_KEY, 0x2c1, 0)...)
	p.Feed(chunk, collect(&got))

	require.Len(t, got, 2)
	assert.Equal(t, uint16(0x2c1), got[0].code)
	assert.Equal(t, int32(1), got[0].value)
	assert.Equal(t, uint64(1_000_100), got[0].timestampUS)
	assert.Equal(t, int32(0), got[1].value)
}

func TestParserRetainsPartialEventAcrossFeeds(t *testing.T) {
	p := &Parser{}
	var got []rawEvent

	ev := event24(7, 0, EV_KEY, 0x2c2, 1)
	p.Feed(ev[:10], collect(&got))
	assert.Empty(t, got, "a partial event must not be dispatched")

	p.Feed(ev[10:], collect(&got))
	require.Len(t, got, 1)
	assert.Equal(t, uint16(0x2c2), got[0].code)
	assert.Equal(t, uint64(7_000_000), got[0].timestampUS)
}

func TestParserStructSizeStickyOnceDetected(t *testing.T) {
	p := &Parser{}
	var got []rawEvent

	// Two 24-byte events in one chunk pin the parser to the 24-byte layout;
	// a later chunk of 48 bytes (which would also divide evenly by 16) must
	// still be read as two 24-byte events.
	p.Feed(append(event24(1, 0, EV_KEY, 0x2c0, 1), event24(1, 1, EV_KEY, 0x2c0, 0)...), collect(&got))
	p.Feed(append(event24(2, 0, EV_KEY, 0x2c3, 1), event24(2, 1, EV_KEY, 0x2c3, 0)...), collect(&got))

	require.Len(t, got, 4)
	assert.Equal(t, uint16(0x2c3), got[2].code)
	assert.Equal(t, uint16(0x2c3), got[3].code)
}
