package trng

import (
	"errors"
	"fmt"

	"github.com/rvhal/trng_go/mmio"
)

// Control register bit positions. The register is simultaneously a
// command register (EN, FIFO_CLR writable by software) and a status
// register (DATA, SIM, VALID read-only, writes ignored by hardware).
const (
	ctrlDataLSB  = 0  // bits 0..7: most recently produced random byte
	ctrlFIFOClr  = 28 // write 1 to discard the data pool; self-clearing
	ctrlSimMode  = 29 // entropy source is a simulation-only PRNG
	ctrlEnable   = 30 // write 1 to activate the generator
	ctrlValid    = 31 // DATA holds a fresh unconsumed byte
	socIOTRNGBit = 21 // TRNG-present bit in the SYSINFO SOC word
)

// Default register addresses per the reference SoC address map. Both
// are build-time configurable in the hardware and correspondingly
// overridable through Config.
const (
	DefaultCtrlAddr = 0xFFFFFFB8 // TRNG control/status register
	DefaultSOCAddr  = 0xFFFFFFE8 // SYSINFO SOC capability word
)

// DefaultSettleLoops is the default iteration count of the busy spin
// run after the reset and activation writes in Enable.
const DefaultSettleLoops = 256

var (
	// ErrNoData is returned by ReadByte when no fresh byte is
	// available. It is the expected steady-state outcome of polling a
	// generator that produces bytes at its own cadence; callers retry.
	ErrNoData = errors.New("trng: no random data available")

	// ErrSimulated marks an entropy source running in simulation mode.
	// The driver never returns it on its own; it is the sentinel for
	// callers that treat a simulated source as a policy violation.
	ErrSimulated = errors.New("trng: entropy source is simulated")
)

// Config adjusts a Device for non-default SoC builds. The zero value
// selects the reference address map and the default settle spin.
type Config struct {
	// CtrlAddr overrides DefaultCtrlAddr when non-zero.
	CtrlAddr uint32
	// SOCAddr overrides DefaultSOCAddr when non-zero.
	SOCAddr uint32
	// SettleLoops overrides DefaultSettleLoops when non-zero.
	SettleLoops int
	// Settle replaces the busy spin entirely when non-nil. It must
	// block for at least the hardware's minimum settling interval.
	// A calibrated timer wait is an acceptable substitute.
	Settle func() error
}

// Device drives one TRNG peripheral over a Bus. There is exactly one
// such peripheral per SoC; a Device holds no state of its own beyond
// addressing, and every operation talks straight to the register.
// Access is not serialized here: if several goroutines share a Device,
// the caller must wrap it in its own mutual exclusion, since Enable's
// multi-step sequence and FIFOClear's read-modify-write must not be
// interleaved with any other access to the register.
type Device struct {
	bus         mmio.Bus
	ctrlAddr    uint32
	socAddr     uint32
	settleLoops int
	settle      func() error
}

// New returns a Device for the TRNG reachable over b.
func New(b mmio.Bus, cfg Config) *Device {
	d := &Device{
		bus:         b,
		ctrlAddr:    cfg.CtrlAddr,
		socAddr:     cfg.SOCAddr,
		settleLoops: cfg.SettleLoops,
		settle:      cfg.Settle,
	}
	if d.ctrlAddr == 0 {
		d.ctrlAddr = DefaultCtrlAddr
	}
	if d.socAddr == 0 {
		d.socAddr = DefaultSOCAddr
	}
	if d.settleLoops == 0 {
		d.settleLoops = DefaultSettleLoops
	}
	return d
}

// Available reports whether the TRNG was synthesized into the SoC at
// all, by testing the capability bit in the SYSINFO SOC word. It must
// return true before any other operation is meaningful; driving the
// control register of an absent peripheral reads unmapped bus space.
func (d *Device) Available() (bool, error) {
	v, err := d.bus.Read32(d.socAddr)
	if err != nil {
		return false, fmt.Errorf("trng: capability read: %w", err)
	}
	return v&(1<<socIOTRNGBit) != 0, nil
}

// Enable activates the entropy generator from a clean state: reset the
// register, let the hardware settle, set the enable bit, settle again,
// then discard anything the generator produced while warming up. It
// never assumes the register's prior state, so calling it on an
// already-enabled device simply re-runs the full sequence.
func (d *Device) Enable() error {
	if err := d.bus.Write32(d.ctrlAddr, 0); err != nil {
		return fmt.Errorf("trng: reset: %w", err)
	}
	if err := d.runSettle(); err != nil {
		return err
	}
	if err := d.bus.Write32(d.ctrlAddr, 1<<ctrlEnable); err != nil {
		return fmt.Errorf("trng: activate: %w", err)
	}
	if err := d.runSettle(); err != nil {
		return err
	}
	// Output produced during the settling window has uncertain
	// statistics; never let it surface as the first random byte.
	return d.FIFOClear()
}

// Disable deactivates the generator immediately. No settling required.
func (d *Device) Disable() error {
	if err := d.bus.Write32(d.ctrlAddr, 0); err != nil {
		return fmt.Errorf("trng: disable: %w", err)
	}
	return nil
}

// FIFOClear requests that the hardware discard its pooled random data.
// The request bit self-clears once the hardware has processed it; the
// call returns as soon as the request is posted and makes no claim
// that the pool is already empty. The enable bit is preserved.
func (d *Device) FIFOClear() error {
	v, err := d.bus.Read32(d.ctrlAddr)
	if err != nil {
		return fmt.Errorf("trng: fifo clear: %w", err)
	}
	if err := d.bus.Write32(d.ctrlAddr, v|1<<ctrlFIFOClr); err != nil {
		return fmt.Errorf("trng: fifo clear: %w", err)
	}
	return nil
}

// ReadByte probes the register once. If the valid bit is set it
// returns the data byte observed in that same read; otherwise it
// returns ErrNoData. It never blocks and never retries — waiting for
// data is the caller's loop (see ReadBytes).
func (d *Device) ReadByte() (byte, error) {
	v, err := d.bus.Read32(d.ctrlAddr)
	if err != nil {
		return 0, fmt.Errorf("trng: ctrl read: %w", err)
	}
	if v&(1<<ctrlValid) == 0 {
		return 0, ErrNoData
	}
	return byte(v >> ctrlDataLSB), nil
}

// SimMode reports whether the peripheral was built with its physical
// entropy source replaced by a deterministic PRNG. Output from a
// simulated source is fit for functional testing only; callers
// gathering entropy for security purposes must refuse it (ErrSimulated
// is the conventional sentinel to surface in that case).
func (d *Device) SimMode() (bool, error) {
	v, err := d.bus.Read32(d.ctrlAddr)
	if err != nil {
		return false, fmt.Errorf("trng: ctrl read: %w", err)
	}
	return v&(1<<ctrlSimMode) != 0, nil
}

//go:noinline
func nop() {}

// runSettle blocks for the post-write settling window: a
// fixed-iteration spin with no bus traffic, so it cannot disturb the
// register or consume pooled output while the hardware stabilizes.
func (d *Device) runSettle() error {
	if d.settle != nil {
		return d.settle()
	}
	for i := 0; i < d.settleLoops; i++ {
		nop()
	}
	return nil
}

// CtrlFields is the decoded view of a raw control register word.
type CtrlFields struct {
	Data      byte
	Valid     bool
	Enabled   bool
	SimMode   bool
	FIFOClear bool
}

// DecodeCtrl splits a raw control register value into its logical
// fields. Data is only meaningful when Valid is set. Intended for
// diagnostic tooling; normal consumers use the Device operations.
func DecodeCtrl(v uint32) CtrlFields {
	return CtrlFields{
		Data:      byte(v >> ctrlDataLSB),
		Valid:     v&(1<<ctrlValid) != 0,
		Enabled:   v&(1<<ctrlEnable) != 0,
		SimMode:   v&(1<<ctrlSimMode) != 0,
		FIFOClear: v&(1<<ctrlFIFOClr) != 0,
	}
}
