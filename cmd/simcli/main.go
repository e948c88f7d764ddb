// simcli exercises the full TRNG register protocol against the
// simulated SoC, so the driver surface can be tried without hardware.
// The simulated source always reports sim-mode; output is an LFSR
// stream and only useful for functional testing.
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

	"github.com/rvhal/trng_go/simsoc"
	"github.com/rvhal/trng_go/trng"
)

func main() {
	bits := flag.Int("bits", 1024, "number of bits to read per batch")
	interval := flag.Duration("interval", 0, "interval between reads (e.g. 2s). 0 for one-shot")
	seed := flag.Uint("seed", 0, "LFSR seed for the simulated source (0 for default)")
	cadence := flag.Int("cadence", 1, "bus ticks per produced byte")
	flag.Parse()

	soc := simsoc.New(simsoc.Config{Seed: uint16(*seed), CyclesPerByte: *cadence})
	dev := trng.New(soc, trng.Config{})

	present, err := dev.Available()
	if err != nil {
		log.Fatalf("capability check: %v", err)
	}
	if !present {
		log.Fatal("simulated SoC reports no TRNG")
	}
	if err := dev.Enable(); err != nil {
		log.Fatalf("enable: %v", err)
	}
	defer func() { _ = dev.Disable() }()

	if sim, _ := dev.SimMode(); sim {
		log.Print("entropy source is simulated (as expected here)")
	}

	if *interval == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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
