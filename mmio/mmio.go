// Package mmio provides word-granular access to memory-mapped peripheral
// registers. The Bus interface is the seam between register-level drivers
// and whatever actually carries the access: a /dev/mem mapping (Mem), a
// serial debug-monitor link, or a simulated SoC in tests.
package mmio

// Bus reads and writes 32-bit peripheral registers at absolute bus
// addresses. Implementations must not cache, coalesce or reorder
// accesses; every call corresponds to exactly one bus transaction.
type Bus interface {
	Read32(addr uint32) (uint32, error)
	Write32(addr uint32, v uint32) error
}
