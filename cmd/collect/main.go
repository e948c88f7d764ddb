// collect samples the TRNG at a fixed interval and appends each batch
// to a .bin file plus a timestamp,ones-count line to a .csv, using the
// shared file naming convention so zscore can recover the parameters.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/rvhal/trng_go/bitstat"
	"github.com/rvhal/trng_go/hostbus"
	"github.com/rvhal/trng_go/naming"
	"github.com/rvhal/trng_go/trng"
)

func main() {
	bitsFlag := flag.Int("bits", 2048, "number of bits per batch (required > 0)")
	intervalSec := flag.Int("interval", 1, "interval between batches in seconds (required > 0)")
	deviceFlag := flag.String("device", "sim", "source to read from: trng|sim")
	busKind := flag.String("bus", "mem", "register access path for -device trng: mem|uart")
	memPath := flag.String("mem", "", "backing file for -bus mem (default /dev/mem)")
	port := flag.String("port", "", "serial port for -bus uart")
	outDir := flag.String("outdir", "data", "output directory for files")
	allowSim := flag.Bool("allow-sim", false, "collect from real hardware even if it reports sim mode")
	flag.Parse()

	if *bitsFlag <= 0 {
		log.Fatal("-bits must be > 0")
	}
	if *intervalSec <= 0 {
		log.Fatal("-interval must be > 0")
	}

	var dev naming.Device
	kind := *busKind
	switch *deviceFlag {
	case string(naming.DeviceTRNG):
		dev = naming.DeviceTRNG
	case string(naming.DeviceSim):
		dev = naming.DeviceSim
		kind = "sim"
	default:
		log.Fatalf("invalid -device: %s (allowed: trng, sim)", *deviceFlag)
	}

	bus, closer, err := hostbus.Open(hostbus.Options{Kind: kind, MemPath: *memPath, Port: *port})
	if err != nil {
		log.Fatalf("open bus: %v", err)
	}
	defer closer.Close()

	gen := trng.New(bus, trng.Config{})
	present, err := gen.Available()
	if err != nil {
		log.Fatalf("capability check: %v", err)
	}
	if !present {
		log.Fatal("TRNG not synthesized in this SoC build")
	}
	if err := gen.Enable(); err != nil {
		log.Fatalf("enable: %v", err)
	}
	defer func() { _ = gen.Disable() }()

	if dev == naming.DeviceTRNG {
		sim, serr := gen.SimMode()
		if serr != nil {
			log.Fatalf("sim-mode check: %v", serr)
		}
		if sim && !*allowSim {
			log.Fatalf("%v (pass -allow-sim to collect anyway)", trng.ErrSimulated)
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("creating outdir: %v", err)
	}
	binPath, csvPath, err := naming.BuildBinCSVPaths(*outDir, time.Now(), dev, *bitsFlag, *intervalSec)
	if err != nil {
		log.Fatalf("build filenames: %v", err)
	}

	binFile, err := os.OpenFile(binPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		log.Fatalf("open bin file: %v", err)
	}
	defer func() { _ = binFile.Close() }()
	binBuf := bufio.NewWriter(binFile)
	defer binBuf.Flush()

	csvFile, err := os.OpenFile(csvPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		log.Fatalf("open csv file: %v", err)
	}
	defer func() { _ = csvFile.Close() }()
	csvBuf := bufio.NewWriter(csvFile)
	defer csvBuf.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bitCount := *bitsFlag
	interval := time.Duration(*intervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("collecting %d bits every %s from %s", bitCount, interval.String(), string(dev))
	sampleNum := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Bound each batch so a stalled generator surfaces as an error
		// instead of a silent hang.
		batchCtx, cancel := context.WithTimeout(ctx, interval+10*time.Second)
		batch, rerr := gen.ReadBits(batchCtx, bitCount)
		cancel()
		if rerr != nil {
			if !errors.Is(rerr, context.Canceled) {
				log.Printf("read error: %v", rerr)
			}
			return
		}

		if _, werr := binBuf.Write(batch); werr != nil {
			log.Fatalf("write bin: %v", werr)
		}
		_ = binBuf.Flush()

		ones := bitstat.CountOnes(batch, bitCount)
		sampleNum++
		ts := time.Now().Format("20060102T15:04:05")
		if _, werr := fmt.Fprintf(csvBuf, "%s,%d\n", ts, ones); werr != nil {
			log.Fatalf("write csv: %v", werr)
		}
		_ = csvBuf.Flush()

		fmt.Printf("sample %d: ones=%d/%d at %s\n", sampleNum, ones, bitCount, ts)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
