// Package trng drives the memory-mapped true random number generator of
// an FPGA soft SoC through its single 32-bit control/status register. It
// covers the full register protocol (discovery, enable/disable with
// settling, pool clearing, valid-gated byte extraction, simulation-mode
// introspection) plus deadline-bounded polling helpers for callers that
// want whole buffers rather than single probes.
package trng
