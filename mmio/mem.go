package mmio

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem is the default backing file for Mem on Linux.
const DevMem = "/dev/mem"

var (
	// ErrOutOfWindow is returned for accesses outside the mapped window.
	ErrOutOfWindow = errors.New("mmio: address outside mapped window")
	// ErrUnaligned is returned for accesses not on a 32-bit boundary.
	ErrUnaligned = errors.New("mmio: address not word aligned")
)

// Mem is a Bus backed by a memory mapping of a physical address window.
// It maps [base, base+size) from the given file, typically /dev/mem.
// Accesses go through atomic loads and stores so the compiler cannot
// elide or reorder them; they are real bus transactions on every call.
type Mem struct {
	mapping []byte
	base    uint32
	size    uint32
	skew    int // offset of base within the page-aligned mapping
}

// OpenMem maps size bytes at physical address base from path.
// The window is rounded out to page boundaries internally; only
// [base, base+size) is addressable through the Bus methods.
func OpenMem(path string, base, size uint32) (*Mem, error) {
	if size == 0 || size%4 != 0 {
		return nil, fmt.Errorf("mmio: invalid window size %d", size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open %s: %w", path, err)
	}
	defer f.Close()

	page := int64(unix.Getpagesize())
	off := int64(base) &^ (page - 1)
	skew := int(int64(base) - off)
	length := skew + int(size)

	mapping, err := unix.Mmap(int(f.Fd()), off, length,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: mmap %s at %#x: %w", path, base, err)
	}
	return &Mem{mapping: mapping, base: base, size: size, skew: skew}, nil
}

// OpenDevMem maps size bytes at physical address base from /dev/mem.
func OpenDevMem(base, size uint32) (*Mem, error) {
	return OpenMem(DevMem, base, size)
}

func (m *Mem) word(addr uint32) (*uint32, error) {
	if m.mapping == nil {
		return nil, errors.New("mmio: mapping closed")
	}
	if addr%4 != 0 {
		return nil, fmt.Errorf("%w: %#x", ErrUnaligned, addr)
	}
	if addr < m.base || addr-m.base > m.size-4 {
		return nil, fmt.Errorf("%w: %#x", ErrOutOfWindow, addr)
	}
	off := m.skew + int(addr-m.base)
	return (*uint32)(unsafe.Pointer(&m.mapping[off])), nil
}

// Read32 performs a single 32-bit read at addr.
func (m *Mem) Read32(addr uint32) (uint32, error) {
	p, err := m.word(addr)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

// Write32 performs a single 32-bit write at addr.
func (m *Mem) Write32(addr uint32, v uint32) error {
	p, err := m.word(addr)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, v)
	return nil
}

// Close unmaps the window. The Mem must not be used afterwards.
func (m *Mem) Close() error {
	if m.mapping == nil {
		return nil
	}
	err := unix.Munmap(m.mapping)
	m.mapping = nil
	return err
}
