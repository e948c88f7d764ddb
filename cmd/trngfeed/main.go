//go:build linux

// trngfeed drains the hardware TRNG into the kernel entropy pool via
// the RNDADDENTROPY ioctl, the way rngd feeds other hardware sources.
// A source reporting sim mode is refused outright: deterministic
// output must never be credited as entropy, so there is deliberately
// no override flag.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/rvhal/trng_go/hostbus"
	"github.com/rvhal/trng_go/trng"
)

// ioctl number for RNDADDENTROPY: _IOW('R', 0x03, int[2]).
const rndAddEntropy = 0x40085203

const maxChunk = 512

// randPoolInfo mirrors the kernel's struct rand_pool_info with an
// inline buffer large enough for one chunk.
type randPoolInfo struct {
	entropyCount int32
	bufSize      int32
	buf          [maxChunk]byte
}

// addEntropy mixes data into the kernel pool, crediting creditBits of
// entropy for it.
func addEntropy(f *os.File, data []byte, creditBits int) error {
	if len(data) > maxChunk {
		return errors.New("chunk too large")
	}
	info := randPoolInfo{
		entropyCount: int32(creditBits),
		bufSize:      int32(len(data)),
	}
	copy(info.buf[:], data)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), rndAddEntropy, uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return errno
	}
	return nil
}

func main() {
	busKind := flag.String("bus", "mem", "register access path: mem|uart")
	memPath := flag.String("mem", "", "backing file for -bus mem (default /dev/mem)")
	port := flag.String("port", "", "serial port for -bus uart")
	chunk := flag.Int("chunk", 64, "bytes fed per round (max 512)")
	interval := flag.Duration("interval", 10*time.Second, "delay between rounds")
	credit := flag.Int("credit", 4, "entropy bits credited per raw byte (raw output is unconditioned; stay conservative)")
	flag.Parse()

	if *chunk <= 0 || *chunk > maxChunk {
		log.Fatalf("-chunk must be 1..%d", maxChunk)
	}
	if *credit < 0 || *credit > 8 {
		log.Fatal("-credit must be 0..8")
	}

	bus, closer, err := hostbus.Open(hostbus.Options{Kind: *busKind, MemPath: *memPath, Port: *port})
	if err != nil {
		log.Fatalf("open bus: %v", err)
	}
	defer closer.Close()

	dev := trng.New(bus, trng.Config{})
	present, err := dev.Available()
	if err != nil {
		log.Fatalf("capability check: %v", err)
	}
	if !present {
		log.Fatal("TRNG not synthesized in this SoC build")
	}
	if err := dev.Enable(); err != nil {
		log.Fatalf("enable: %v", err)
	}
	defer func() { _ = dev.Disable() }()

	sim, err := dev.SimMode()
	if err != nil {
		log.Fatalf("sim-mode check: %v", err)
	}
	if sim {
		log.Fatalf("refusing to feed kernel pool: %v", trng.ErrSimulated)
	}

	random, err := os.OpenFile("/dev/random", os.O_WRONLY, 0)
	if err != nil {
		log.Fatalf("open /dev/random: %v", err)
	}
	defer random.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	log.Printf("feeding %d bytes every %s, crediting %d bits/byte", *chunk, interval.String(), *credit)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		roundCtx, cancel := context.WithTimeout(ctx, *interval)
		data, err := dev.ReadBytes(roundCtx, *chunk)
		cancel()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Fatalf("read error: %v", err)
		}
		if err := addEntropy(random, data, *credit*len(data)); err != nil {
			log.Fatalf("RNDADDENTROPY: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
