// trngdetect reports whether the TRNG is present in the SoC build and
// dumps the decoded control register for diagnostics. It performs no
// state changes other than the register reads themselves.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rvhal/trng_go/hostbus"
	"github.com/rvhal/trng_go/trng"
)

func main() {
	busKind := flag.String("bus", "mem", "register access path: mem|uart|sim")
	memPath := flag.String("mem", "", "backing file for -bus mem (default /dev/mem)")
	port := flag.String("port", "", "serial port for -bus uart")
	flag.Parse()

	bus, closer, err := hostbus.Open(hostbus.Options{Kind: *busKind, MemPath: *memPath, Port: *port})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	dev := trng.New(bus, trng.Config{})
	present, err := dev.Available()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !present {
		fmt.Println("TRNG not synthesized in this SoC build")
		return
	}
	fmt.Println("TRNG present")

	raw, err := bus.Read32(trng.DefaultCtrlAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	f := trng.DecodeCtrl(raw)
	fmt.Printf("ctrl:      %#08x\n", raw)
	fmt.Printf("enabled:   %v\n", f.Enabled)
	fmt.Printf("sim mode:  %v\n", f.SimMode)
	fmt.Printf("valid:     %v\n", f.Valid)
	if f.Valid {
		fmt.Printf("data:      %#02x\n", f.Data)
	}
	if f.SimMode {
		fmt.Println("note: entropy source is a simulation-only PRNG; do not use for security purposes")
	}
}
