// Package evdev provides the minimal Linux input_event plumbing the
// libinput-style backend needs: event codes, an EVIOCGRAB ioctl, and a
// streaming parser that tolerates both 16-byte and 24-byte input_event
// layouts (32-bit vs. 64-bit timeval).
package evdev

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Event kinds we care about; the rest of the evdev type space is irrelevant
// to a keycode-only footswitch/encoder bridge.
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
)

const SYN_REPORT = 0x00

// ioctl request encoding (Linux _IOC macro), used below to build EVIOCGRAB.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocDirBits  = 2

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

func evioCGrab() uintptr {
	// EVIOCGRAB = _IOW('E', 0x90, int)
	return ioc(iocWrite, uint32('E'), 0x90, uint32(unsafe.Sizeof(int32(0))))
}

// Grab requests exclusive access to the device via EVIOCGRAB. Errors are
// non-fatal to callers that don't require exclusivity.
func Grab(fd int) error {
	var one int32 = 1
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), evioCGrab(), uintptr(unsafe.Pointer(&one)))
	if errno != 0 {
		return errno
	}
	return nil
}

// Parser parses a Linux input_event byte stream incrementally. The struct
// size (16B or 24B) is detected from the device's behaviour on first use and
// held for the Parser's lifetime.
type Parser struct {
	buf []byte
	sz  int // 0 unknown, else 16 or 24
}

// Feed appends chunk to the internal buffer and invokes cb once per complete
// input_event found, passing along the kernel's own event timestamp
// (tv_sec*1e6 + tv_usec) as timestampUS rather than the time Feed happens to
// run. Partial trailing bytes are retained for the next Feed.
func (p *Parser) Feed(chunk []byte, cb func(etype, code uint16, value int32, timestampUS uint64)) {
	p.buf = append(p.buf, chunk...)
	if p.sz == 0 {
		if len(p.buf) >= 48 && len(p.buf)%24 == 0 {
			p.sz = 24
		} else if len(p.buf) >= 32 && len(p.buf)%16 == 0 {
			p.sz = 16
		} else if len(p.buf) >= 24 {
			p.sz = 24
		}
	}
	for p.sz != 0 && len(p.buf) >= p.sz {
		ev := p.buf[:p.sz]
		p.buf = p.buf[p.sz:]
		var etype, code uint16
		var value int32
		var sec, usec uint64
		if p.sz == 24 {
			sec = binary.LittleEndian.Uint64(ev[0:8])
			usec = binary.LittleEndian.Uint64(ev[8:16])
			etype = binary.LittleEndian.Uint16(ev[16:18])
			code = binary.LittleEndian.Uint16(ev[18:20])
			value = int32(binary.LittleEndian.Uint32(ev[20:24]))
		} else {
			sec = uint64(binary.LittleEndian.Uint32(ev[0:4]))
			usec = uint64(binary.LittleEndian.Uint32(ev[4:8]))
			etype = binary.LittleEndian.Uint16(ev[8:10])
			code = binary.LittleEndian.Uint16(ev[10:12])
			value = int32(binary.LittleEndian.Uint32(ev[12:16]))
		}
		cb(etype, code, value, sec*1_000_000+usec)
	}
}

// PollReadable blocks up to timeoutMs waiting for fd to become readable.
// Returns true if readable, false on timeout.
func PollReadable(fd int, timeoutMs int) (bool, error) {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, timeoutMs)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	return pfd[0].Revents&unix.POLLIN != 0, nil
}
