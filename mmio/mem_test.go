package mmio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// backing creates a zeroed file large enough to map the test window.
func backing(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regs")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("creating backing file: %v", err)
	}
	return path
}

func TestMemReadWrite(t *testing.T) {
	path := backing(t, 1<<16)
	m, err := OpenMem(path, 0x1000, 0x100)
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer m.Close()

	if err := m.Write32(0x1038, 0xDEADBEEF); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	v, err := m.Read32(0x1038)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if v != 0xDEADBEEF {
		t.Fatalf("Read32 = %#08x, want 0xdeadbeef", v)
	}

	// Words are independent; a neighbouring register is untouched.
	v, err = m.Read32(0x103C)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if v != 0 {
		t.Fatalf("neighbouring word = %#08x, want 0", v)
	}
}

func TestMemWindowEdges(t *testing.T) {
	path := backing(t, 1<<16)
	m, err := OpenMem(path, 0x1000, 0x100)
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer m.Close()

	// First and last word of the window are reachable.
	if _, err := m.Read32(0x1000); err != nil {
		t.Errorf("first word: %v", err)
	}
	if _, err := m.Read32(0x10FC); err != nil {
		t.Errorf("last word: %v", err)
	}

	for _, addr := range []uint32{0x0FFC, 0x1100, 0xFFFFFFFC} {
		if _, err := m.Read32(addr); !errors.Is(err, ErrOutOfWindow) {
			t.Errorf("Read32(%#x) = %v, want ErrOutOfWindow", addr, err)
		}
	}
	if _, err := m.Read32(0x1002); !errors.Is(err, ErrUnaligned) {
		t.Errorf("unaligned read = %v, want ErrUnaligned", err)
	}
	if err := m.Write32(0x1101, 1); err == nil {
		t.Error("out-of-window unaligned write did not error")
	}
}

func TestMemUnalignedBase(t *testing.T) {
	// A window that does not start on a page boundary still addresses
	// its words correctly.
	path := backing(t, 1<<16)
	m, err := OpenMem(path, 0x1F00, 0x100)
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer m.Close()

	if err := m.Write32(0x1FE8, 0x00200000); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	v, err := m.Read32(0x1FE8)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if v != 0x00200000 {
		t.Fatalf("Read32 = %#08x, want 0x00200000", v)
	}
}

func TestMemBadSize(t *testing.T) {
	path := backing(t, 1<<16)
	for _, size := range []uint32{0, 6} {
		if _, err := OpenMem(path, 0x1000, size); err == nil {
			t.Errorf("OpenMem with size %d did not error", size)
		}
	}
}

func TestMemClosed(t *testing.T) {
	path := backing(t, 1<<16)
	m, err := OpenMem(path, 0x1000, 0x100)
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Read32(0x1000); err == nil {
		t.Error("read through a closed mapping did not error")
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
