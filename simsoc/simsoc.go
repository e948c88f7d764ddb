// Package simsoc is a bus-level simulation of the SoC surface the TRNG
// driver touches: the SYSINFO SOC capability word and the TRNG
// control/status register, backed by the same low-quality LFSR the
// hardware substitutes for its physical noise source in simulation
// builds. It implements mmio.Bus, so the real driver runs against it
// unchanged; the sim-mode bit always reads set.
//
// Time is modeled in bus ticks: every access advances the simulated
// hardware by one tick, and the generator deposits one byte into its
// pool every CyclesPerByte ticks while enabled. A posted FIFO-clear
// request is processed at the start of the next tick, so the pool is
// not empty the instant the posting write returns — matching the
// fire-and-forget contract of the real peripheral.
package simsoc

import (
	"fmt"
	"sync"
)

// Register map and bit layout of the simulated hardware. These mirror
// the peripheral's contract; the driver carries its own copies.
const (
	defaultCtrlAddr = 0xFFFFFFB8
	defaultSOCAddr  = 0xFFFFFFE8

	ctrlDataLSB = 0
	ctrlFIFOClr = 28
	ctrlSimMode = 29
	ctrlEnable  = 30
	ctrlValid   = 31

	socIOTRNG = 21

	// Writes only reach the command bits; everything else is status.
	ctrlWritableMask = 1<<ctrlEnable | 1<<ctrlFIFOClr
)

const (
	defaultFIFODepth     = 4
	defaultCyclesPerByte = 8
	defaultSeed          = 0xACE1
)

// Config shapes the simulated hardware. The zero value gives a present
// TRNG with a 4-byte pool, one byte per 8 bus ticks, and the default
// LFSR seed.
type Config struct {
	// NoTRNG omits the capability bit from the SOC word, simulating a
	// build without the peripheral.
	NoTRNG bool
	// FIFODepth is the pool capacity in bytes.
	FIFODepth int
	// CyclesPerByte is the number of bus ticks between produced bytes.
	// Negative disables production entirely, leaving the pool under
	// test control via Push.
	CyclesPerByte int
	// Seed is the LFSR start state; must be non-zero to produce output.
	Seed uint16
	// CtrlAddr and SOCAddr override the reference address map.
	CtrlAddr uint32
	SOCAddr  uint32
}

// SoC is the simulated bus. Safe for concurrent use so tests may
// inspect it from helper goroutines; the real peripheral offers no
// such guarantee.
type SoC struct {
	mu sync.Mutex

	ctrlAddr      uint32
	socAddr       uint32
	soc           uint32
	fifoDepth     int
	cyclesPerByte int
	seed          uint16

	ctrl  uint32 // command bits as last written (EN + pending FIFO_CLR)
	fifo  []byte
	lfsr  uint16
	ticks uint64
}

// New builds a simulated SoC from cfg.
func New(cfg Config) *SoC {
	s := &SoC{
		ctrlAddr:      cfg.CtrlAddr,
		socAddr:       cfg.SOCAddr,
		fifoDepth:     cfg.FIFODepth,
		cyclesPerByte: cfg.CyclesPerByte,
		seed:          cfg.Seed,
	}
	if s.ctrlAddr == 0 {
		s.ctrlAddr = defaultCtrlAddr
	}
	if s.socAddr == 0 {
		s.socAddr = defaultSOCAddr
	}
	if s.fifoDepth == 0 {
		s.fifoDepth = defaultFIFODepth
	}
	if s.cyclesPerByte == 0 {
		s.cyclesPerByte = defaultCyclesPerByte
	}
	if s.seed == 0 {
		s.seed = defaultSeed
	}
	if !cfg.NoTRNG {
		s.soc = 1 << socIOTRNG
	}
	s.lfsr = s.seed
	return s
}

// Read32 implements mmio.Bus.
func (s *SoC) Read32(addr uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step()
	switch addr {
	case s.socAddr:
		return s.soc, nil
	case s.ctrlAddr:
		v := s.compose()
		if len(s.fifo) > 0 {
			// The hardware pops the pool when software observes a
			// valid byte; validity drops until the next byte lands.
			s.fifo = s.fifo[1:]
		}
		return v, nil
	}
	return 0, fmt.Errorf("simsoc: read of unmapped address %#x", addr)
}

// Write32 implements mmio.Bus. Writes to status bits and to the SOC
// word are ignored, as on the real bus.
func (s *SoC) Write32(addr uint32, v uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step()
	switch addr {
	case s.socAddr:
		return nil
	case s.ctrlAddr:
		prev := s.ctrl
		s.ctrl = v & ctrlWritableMask
		if prev&(1<<ctrlEnable) != 0 && s.ctrl&(1<<ctrlEnable) == 0 {
			// Dropping EN resets the generator core.
			s.fifo = nil
			s.lfsr = s.seed
		}
		return nil
	}
	return fmt.Errorf("simsoc: write of unmapped address %#x", addr)
}

// step advances simulated time by one bus tick: pending clear first,
// then byte production.
func (s *SoC) step() {
	s.ticks++
	if s.ctrl&(1<<ctrlFIFOClr) != 0 {
		s.fifo = nil
		s.ctrl &^= 1 << ctrlFIFOClr
	}
	if s.ctrl&(1<<ctrlEnable) == 0 || s.cyclesPerByte < 0 {
		return
	}
	if s.ticks%uint64(s.cyclesPerByte) == 0 && len(s.fifo) < s.fifoDepth {
		s.fifo = append(s.fifo, s.nextByte())
	}
}

// compose assembles the value a bus read of the control register sees.
func (s *SoC) compose() uint32 {
	v := s.ctrl | 1<<ctrlSimMode
	if len(s.fifo) > 0 {
		v |= 1<<ctrlValid | uint32(s.fifo[0])<<ctrlDataLSB
	}
	return v
}

// nextByte clocks the Galois LFSR through eight shifts.
func (s *SoC) nextByte() byte {
	for i := 0; i < 8; i++ {
		bit := s.lfsr & 1
		s.lfsr >>= 1
		if bit != 0 {
			s.lfsr ^= 0xB400
		}
	}
	return byte(s.lfsr)
}

// Ctrl returns the control register as a synchronous inspection: the
// value software would see, without advancing simulated time and
// without consuming the pool head. Pending command bits (a posted
// FIFO clear not yet processed) are visible here.
func (s *SoC) Ctrl() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose()
}

// PoolLen reports how many bytes the pool currently holds.
func (s *SoC) PoolLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fifo)
}

// Push appends a byte to the pool, as if the generator had produced
// it. Intended for tests that need a known next byte.
func (s *SoC) Push(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fifo) < s.fifoDepth {
		s.fifo = append(s.fifo, b)
	}
}

// Ticks returns the number of bus ticks elapsed so far.
func (s *SoC) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}
