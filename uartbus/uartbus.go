// Package uartbus carries mmio.Bus transactions over the SoC's serial
// debug monitor. Boards that don't expose their bus through a mappable
// window ship a small monitor firmware that answers fixed-size
// peek/poke frames on the primary UART; this package speaks that
// protocol from the host side.
//
// Framing, big-endian, one outstanding command at a time:
//
//	read:  'R' a3 a2 a1 a0            -> 'r' v3 v2 v1 v0
//	write: 'W' a3 a2 a1 a0 v3 v2 v1 v0 -> 'w'
//
// There is no escaping and no checksum; the link is assumed
// point-to-point and quiet. Any unexpected response byte poisons the
// stream and surfaces as ErrBadFrame.
package uartbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	cmdRead  = 'R'
	cmdWrite = 'W'
	ackRead  = 'r'
	ackWrite = 'w'
)

// DefaultBaudRate is the monitor firmware's fixed UART rate.
const DefaultBaudRate = 115200

// ErrBadFrame is returned when the monitor's response does not match
// the protocol. The link state is unknown afterwards; callers should
// close and reopen the port.
var ErrBadFrame = errors.New("uartbus: malformed response frame")

// Conn speaks the monitor protocol over any byte stream. It holds no
// buffering of its own; rw is expected to deliver bytes in order.
type Conn struct {
	rw io.ReadWriter
}

// New wraps an established byte stream. Most callers want Open, which
// also configures the serial port.
func New(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw}
}

// Read32 implements mmio.Bus over the link.
func (c *Conn) Read32(addr uint32) (uint32, error) {
	var req [5]byte
	req[0] = cmdRead
	binary.BigEndian.PutUint32(req[1:], addr)
	if _, err := c.rw.Write(req[:]); err != nil {
		return 0, fmt.Errorf("uartbus: read %#x: %w", addr, err)
	}
	var resp [5]byte
	if _, err := io.ReadFull(c.rw, resp[:]); err != nil {
		return 0, fmt.Errorf("uartbus: read %#x: %w", addr, err)
	}
	if resp[0] != ackRead {
		return 0, fmt.Errorf("%w: got %#02x, want %#02x", ErrBadFrame, resp[0], ackRead)
	}
	return binary.BigEndian.Uint32(resp[1:]), nil
}

// Write32 implements mmio.Bus over the link.
func (c *Conn) Write32(addr uint32, v uint32) error {
	var req [9]byte
	req[0] = cmdWrite
	binary.BigEndian.PutUint32(req[1:], addr)
	binary.BigEndian.PutUint32(req[5:], v)
	if _, err := c.rw.Write(req[:]); err != nil {
		return fmt.Errorf("uartbus: write %#x: %w", addr, err)
	}
	var resp [1]byte
	if _, err := io.ReadFull(c.rw, resp[:]); err != nil {
		return fmt.Errorf("uartbus: write %#x: %w", addr, err)
	}
	if resp[0] != ackWrite {
		return fmt.Errorf("%w: got %#02x, want %#02x", ErrBadFrame, resp[0], ackWrite)
	}
	return nil
}

// Port is a Conn bound to a serial port.
type Port struct {
	Conn
	port serial.Port
}

// Open opens name as the monitor link: 8N1 at DefaultBaudRate with a
// read timeout, so a wedged monitor fails a transaction instead of
// hanging the host forever.
func Open(name string) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("uartbus: open %s: %w", name, err)
	}
	_ = p.SetReadTimeout(2 * time.Second)
	// Drop anything the monitor printed before we attached, e.g. its
	// boot banner.
	if err := p.ResetInputBuffer(); err != nil {
		// not fatal, proceed
	}
	return &Port{Conn: Conn{rw: p}, port: p}, nil
}

// Close releases the serial port.
func (p *Port) Close() error {
	return p.port.Close()
}

// Find returns the first serial port whose USB product string or port
// name starts with prefix. Useful when the monitor's USB-UART bridge
// reports a recognizable product name.
func Find(prefix string) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("uartbus: enumerating ports: %w", err)
	}
	for _, p := range ports {
		if p == nil {
			continue
		}
		if p.IsUSB && hasPrefix(p.Product, prefix) {
			return p.Name, nil
		}
		if hasPrefix(p.Name, prefix) {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("uartbus: no port matching %q", prefix)
}

func hasPrefix(s, prefix string) bool {
	return prefix != "" && len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
