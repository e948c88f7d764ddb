package trng_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rvhal/trng_go/simsoc"
	"github.com/rvhal/trng_go/trng"
)

// quiet returns a simulated SoC that never produces bytes on its own,
// so tests control the pool entirely through Push, plus a driver on it.
func quiet(t *testing.T) (*simsoc.SoC, *trng.Device) {
	t.Helper()
	soc := simsoc.New(simsoc.Config{CyclesPerByte: -1})
	return soc, trng.New(soc, trng.Config{})
}

// drain performs one probe to let the simulated hardware process the
// FIFO-clear request that Enable leaves posted.
func drain(t *testing.T, dev *trng.Device) {
	t.Helper()
	if _, err := dev.ReadByte(); !errors.Is(err, trng.ErrNoData) {
		t.Fatalf("expected empty pool after enable, got %v", err)
	}
}

func TestAvailable(t *testing.T) {
	_, dev := quiet(t)
	ok, err := dev.Available()
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if !ok {
		t.Error("TRNG should be present in default sim build")
	}
}

func TestAvailableAbsent(t *testing.T) {
	// The capability bit alone decides availability, regardless of
	// what the TRNG register itself would read.
	soc := simsoc.New(simsoc.Config{NoTRNG: true, CyclesPerByte: -1})
	soc.Push(0xFF)
	dev := trng.New(soc, trng.Config{})
	ok, err := dev.Available()
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if ok {
		t.Error("TRNG reported present in a build without it")
	}
}

func TestEnableDisable(t *testing.T) {
	soc, dev := quiet(t)
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !trng.DecodeCtrl(soc.Ctrl()).Enabled {
		t.Fatal("enable bit not set after Enable")
	}
	if err := dev.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if trng.DecodeCtrl(soc.Ctrl()).Enabled {
		t.Fatal("enable bit still set after Disable")
	}
}

func TestEnableIdempotent(t *testing.T) {
	soc, dev := quiet(t)
	for i := 0; i < 2; i++ {
		if err := dev.Enable(); err != nil {
			t.Fatalf("Enable #%d: %v", i+1, err)
		}
	}
	if !trng.DecodeCtrl(soc.Ctrl()).Enabled {
		t.Fatal("enable bit not set after repeated Enable")
	}
}

func TestEnablePostsPoolClear(t *testing.T) {
	soc, dev := quiet(t)
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	// The clear request is posted but not yet processed: inspected
	// synchronously it reads set, and one bus access later it is gone.
	if !trng.DecodeCtrl(soc.Ctrl()).FIFOClear {
		t.Fatal("no pool-clear request posted by Enable")
	}
	drain(t, dev)
	if trng.DecodeCtrl(soc.Ctrl()).FIFOClear {
		t.Fatal("pool-clear request still posted after hardware processed it")
	}
}

func TestEnableDiscardsWarmupOutput(t *testing.T) {
	// With production running, output lands in the pool between the
	// activation write and the posted clear; it must be discarded by
	// that clear, not surfaced as the first random byte.
	soc := simsoc.New(simsoc.Config{CyclesPerByte: 1})
	dev := trng.New(soc, trng.Config{})
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if soc.PoolLen() == 0 {
		t.Fatal("expected warm-up output in the pool before the clear lands")
	}
	_, _ = dev.ReadByte() // first access after Enable processes the clear
	if n := soc.PoolLen(); n > 1 {
		t.Fatalf("warm-up output survived the pool clear: %d bytes pooled", n)
	}
}

func TestFIFOClearPreservesEnable(t *testing.T) {
	soc, dev := quiet(t)
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := dev.FIFOClear(); err != nil {
			t.Fatalf("FIFOClear #%d: %v", i+1, err)
		}
		f := trng.DecodeCtrl(soc.Ctrl())
		if !f.Enabled {
			t.Fatalf("FIFOClear #%d cleared the enable bit", i+1)
		}
		if !f.FIFOClear {
			t.Fatalf("FIFOClear #%d did not post the request bit", i+1)
		}
	}
}

func TestReadByteNotReady(t *testing.T) {
	soc, dev := quiet(t)
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	drain(t, dev)

	before := soc.Ctrl()
	if _, err := dev.ReadByte(); !errors.Is(err, trng.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if after := soc.Ctrl(); after != before {
		t.Fatalf("empty probe changed register state: %#08x -> %#08x", before, after)
	}
}

func TestReadByteValidGated(t *testing.T) {
	soc, dev := quiet(t)
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	drain(t, dev)

	soc.Push(0xA7)
	b, err := dev.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if b != 0xA7 {
		t.Fatalf("ReadByte = %#02x, want 0xa7", b)
	}
	// The byte was consumed; validity drops until the next one lands.
	if _, err := dev.ReadByte(); !errors.Is(err, trng.ErrNoData) {
		t.Fatalf("expected ErrNoData after consuming the byte, got %v", err)
	}

	if err := dev.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if trng.DecodeCtrl(soc.Ctrl()).Enabled {
		t.Fatal("enable bit still set after Disable")
	}
}

func TestSimModeIndependent(t *testing.T) {
	_, dev := quiet(t)
	sim, err := dev.SimMode()
	if err != nil {
		t.Fatalf("SimMode: %v", err)
	}
	if !sim {
		t.Fatal("simulated SoC must report sim mode while disabled")
	}
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if sim, _ = dev.SimMode(); !sim {
		t.Fatal("simulated SoC must report sim mode while enabled")
	}
}

func TestReadBytes(t *testing.T) {
	soc := simsoc.New(simsoc.Config{CyclesPerByte: 1})
	dev := trng.New(soc, trng.Config{})
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := dev.ReadBytes(ctx, 16)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if len(data) != 16 {
		t.Fatalf("ReadBytes returned %d bytes, want 16", len(data))
	}
}

func TestReadBytesDeadline(t *testing.T) {
	_, dev := quiet(t)
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := dev.ReadBytes(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded from a silent generator, got %v", err)
	}
}

func TestReadBitsMasksTrailing(t *testing.T) {
	soc := simsoc.New(simsoc.Config{CyclesPerByte: 1})
	dev := trng.New(soc, trng.Config{})
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := dev.ReadBits(ctx, 12)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("ReadBits(12) returned %d bytes, want 2", len(data))
	}
	if data[1]&0x0F != 0 {
		t.Fatalf("trailing bits not zeroed: %#02x", data[1])
	}
}

func TestCollectBitsAtInterval(t *testing.T) {
	soc := simsoc.New(simsoc.Config{CyclesPerByte: 1})
	dev := trng.New(soc, trng.Config{})
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batches := 0
	err := dev.CollectBitsAtInterval(ctx, 64, time.Millisecond, func(b []byte) {
		if len(b) != 8 {
			t.Errorf("batch has %d bytes, want 8", len(b))
		}
		batches++
		if batches == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if batches != 3 {
		t.Fatalf("got %d batches, want 3", batches)
	}
}

// errBus fails every transaction, standing in for a broken transport.
type errBus struct{}

func (errBus) Read32(uint32) (uint32, error) { return 0, errors.New("bus fault") }
func (errBus) Write32(uint32, uint32) error  { return errors.New("bus fault") }

func TestBusErrorsPropagate(t *testing.T) {
	dev := trng.New(errBus{}, trng.Config{})
	if err := dev.Enable(); err == nil {
		t.Fatal("Enable over a failing bus did not error")
	}
	if _, err := dev.ReadByte(); err == nil || errors.Is(err, trng.ErrNoData) {
		t.Fatalf("ReadByte over a failing bus returned %v, want transport error", err)
	}
	if _, err := dev.Available(); err == nil {
		t.Fatal("Available over a failing bus did not error")
	}
}

func TestCustomSettle(t *testing.T) {
	soc := simsoc.New(simsoc.Config{CyclesPerByte: -1})
	calls := 0
	dev := trng.New(soc, trng.Config{Settle: func() error {
		calls++
		return nil
	}})
	if err := dev.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if calls != 2 {
		t.Fatalf("settle ran %d times during Enable, want 2", calls)
	}
}
