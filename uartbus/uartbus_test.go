package uartbus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// monitor is an in-memory stand-in for the debug-monitor firmware: it
// decodes request frames as they are written and queues the responses
// for reading, serving registers from a plain map.
type monitor struct {
	regs    map[uint32]uint32
	pending bytes.Buffer // bytes of the request being assembled
	out     bytes.Buffer // queued response bytes
	garble  bool         // corrupt the next response tag
}

func (m *monitor) Write(p []byte) (int, error) {
	m.pending.Write(p)
	for {
		b := m.pending.Bytes()
		if len(b) == 0 {
			return len(p), nil
		}
		switch b[0] {
		case cmdRead:
			if len(b) < 5 {
				return len(p), nil
			}
			addr := binary.BigEndian.Uint32(b[1:5])
			m.pending.Next(5)
			tag := byte(ackRead)
			if m.garble {
				tag = '?'
				m.garble = false
			}
			m.out.WriteByte(tag)
			var v [4]byte
			binary.BigEndian.PutUint32(v[:], m.regs[addr])
			m.out.Write(v[:])
		case cmdWrite:
			if len(b) < 9 {
				return len(p), nil
			}
			addr := binary.BigEndian.Uint32(b[1:5])
			m.regs[addr] = binary.BigEndian.Uint32(b[5:9])
			m.pending.Next(9)
			tag := byte(ackWrite)
			if m.garble {
				tag = '?'
				m.garble = false
			}
			m.out.WriteByte(tag)
		default:
			return len(p), errors.New("monitor: unknown command")
		}
	}
}

func (m *monitor) Read(p []byte) (int, error) {
	return m.out.Read(p)
}

func TestConnReadWrite(t *testing.T) {
	mon := &monitor{regs: map[uint32]uint32{0xFFFFFFE8: 1 << 21}}
	c := New(mon)

	v, err := c.Read32(0xFFFFFFE8)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if v != 1<<21 {
		t.Fatalf("Read32 = %#08x, want %#08x", v, uint32(1)<<21)
	}

	if err := c.Write32(0xFFFFFFB8, 1<<30); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	if got := mon.regs[0xFFFFFFB8]; got != 1<<30 {
		t.Fatalf("monitor register = %#08x, want %#08x", got, uint32(1)<<30)
	}

	v, err = c.Read32(0xFFFFFFB8)
	if err != nil {
		t.Fatalf("Read32 after write: %v", err)
	}
	if v != 1<<30 {
		t.Fatalf("Read32 = %#08x, want %#08x", v, uint32(1)<<30)
	}
}

func TestConnUnknownRegisterReadsZero(t *testing.T) {
	mon := &monitor{regs: map[uint32]uint32{}}
	c := New(mon)
	v, err := c.Read32(0x1234)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if v != 0 {
		t.Fatalf("unbacked register read %#08x, want 0", v)
	}
}

func TestConnBadFrame(t *testing.T) {
	mon := &monitor{regs: map[uint32]uint32{}, garble: true}
	c := New(mon)
	if _, err := c.Read32(0); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("Read32 = %v, want ErrBadFrame", err)
	}

	mon = &monitor{regs: map[uint32]uint32{}, garble: true}
	c = New(mon)
	if err := c.Write32(0, 1); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("Write32 = %v, want ErrBadFrame", err)
	}
}

func TestConnShortResponse(t *testing.T) {
	// A monitor that answers nothing at all surfaces as an I/O error,
	// not a hang (the real port enforces this with a read timeout).
	c := New(&bytes.Buffer{})
	if _, err := c.Read32(0); err == nil {
		t.Fatal("read with no response did not error")
	}
}
