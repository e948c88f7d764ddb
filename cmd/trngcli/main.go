// trngcli reads random bits from the hardware TRNG over a mapped
// memory window or the serial debug monitor. It can read once or at a
// fixed interval.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/rvhal/trng_go/hostbus"
	"github.com/rvhal/trng_go/trng"
)

func main() {
	busKind := flag.String("bus", "mem", "register access path: mem|uart")
	memPath := flag.String("mem", "", "backing file for -bus mem (default /dev/mem)")
	windowBase := flag.String("window-base", "", "physical base of the mapped I/O window, e.g. 0xFFFFFF00")
	port := flag.String("port", "", "serial port for -bus uart")
	bits := flag.Int("bits", 1024, "number of bits to read per batch")
	interval := flag.Duration("interval", 0, "interval between reads (e.g. 2s). 0 for one-shot")
	timeout := flag.Duration("timeout", 10*time.Second, "per-batch read deadline")
	allowSim := flag.Bool("allow-sim", false, "proceed even if the entropy source is simulated")
	flag.Parse()

	opts := hostbus.Options{Kind: *busKind, MemPath: *memPath, Port: *port}
	if *windowBase != "" {
		base, err := hostbus.ParseAddr(*windowBase)
		if err != nil {
			log.Fatal(err)
		}
		opts.WindowBase = base
	}
	bus, closer, err := hostbus.Open(opts)
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
		if !*allowSim {
			log.Fatalf("%v (pass -allow-sim to read anyway)", trng.ErrSimulated)
		}
		log.Print("warning: entropy source is simulated; output is not random")
	}

	if *interval == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		data, err := dev.ReadBits(ctx, *bits)
		if err != nil {
			log.Fatalf("read error: %v", err)
		}
		fmt.Printf("read %d bits (%d bytes)\n", *bits, len(data))
		fmt.Printf("%s\n", hex.EncodeToString(data))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	log.Printf("reading %d bits every %s. press Ctrl+C to stop...", *bits, interval.String())
	err = dev.CollectBitsAtInterval(ctx, *bits, *interval, func(b []byte) {
		fmt.Printf("%s  %d bits  %s\n", time.Now().Format(time.RFC3339), *bits, hex.EncodeToString(b))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("collect error: %v", err)
	}
}
