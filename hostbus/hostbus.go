// Package hostbus opens the register bus selected on a command line,
// so the cmd mains share one -bus flag convention instead of each
// reimplementing the mem/uart/sim plumbing.
package hostbus

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rvhal/trng_go/mmio"
	"github.com/rvhal/trng_go/simsoc"
	"github.com/rvhal/trng_go/uartbus"
)

// Default /dev/mem window covering the SoC's top-of-memory I/O region,
// which holds both the TRNG control register and the SYSINFO block.
const (
	DefaultWindowBase = 0xFFFFFF00
	DefaultWindowSize = 0x100
)

// Options selects and parameterizes a bus.
type Options struct {
	// Kind is one of "mem", "uart" or "sim".
	Kind string
	// MemPath is the backing file for Kind "mem"; empty means /dev/mem.
	MemPath string
	// Port is the serial port for Kind "uart".
	Port string
	// WindowBase and WindowSize bound the mapping for Kind "mem";
	// zero values select the default I/O window.
	WindowBase uint32
	WindowSize uint32
	// Sim configures the simulated SoC for Kind "sim".
	Sim simsoc.Config
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the selected bus and a closer releasing it.
func Open(o Options) (mmio.Bus, io.Closer, error) {
	switch o.Kind {
	case "mem":
		path := o.MemPath
		if path == "" {
			path = mmio.DevMem
		}
		base, size := o.WindowBase, o.WindowSize
		if base == 0 {
			base = DefaultWindowBase
		}
		if size == 0 {
			size = DefaultWindowSize
		}
		m, err := mmio.OpenMem(path, base, size)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case "uart":
		if o.Port == "" {
			return nil, nil, fmt.Errorf("hostbus: uart bus needs a port name")
		}
		p, err := uartbus.Open(o.Port)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case "sim":
		return simsoc.New(o.Sim), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("hostbus: unknown bus kind %q (allowed: mem, uart, sim)", o.Kind)
}

// ParseAddr parses a bus address in any base strconv accepts ("0x..."
// hex being the usual spelling).
func ParseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("hostbus: bad address %q: %w", s, err)
	}
	return uint32(v), nil
}
