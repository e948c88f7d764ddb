package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Device identifies the bus the random bits were collected over.
// Allowed values are "trng" (real hardware) and "sim" (simulated SoC).
type Device string

const (
	DeviceTRNG Device = "trng"
	DeviceSim  Device = "sim"
)

// Validate checks whether d is one of the allowed device identifiers.
func (d Device) Validate() error {
	if d == DeviceTRNG || d == DeviceSim {
		return nil
	}
	return fmt.Errorf("invalid device: %q (allowed: trng, sim)", string(d))
}

// BuildBaseName builds the base filename using the convention:
//
//	YYYYMMDDTHHMMSS_{device}_s{bits}_i{interval}
//
// where bits > 0 is the sample size in bits per collection and
// interval > 0 is the seconds between collections. The timestamp is
// taken from the provided time instant.
func BuildBaseName(now time.Time, device Device, bits int, intervalSeconds int) (string, error) {
	if err := device.Validate(); err != nil {
		return "", err
	}
	if bits <= 0 {
		return "", errors.New("bits must be > 0")
	}
	if intervalSeconds <= 0 {
		return "", errors.New("intervalSeconds must be > 0")
	}
	stamp := now.Format("20060102T150405")
	return fmt.Sprintf("%s_%s_s%d_i%d", stamp, string(device), bits, intervalSeconds), nil
}

// Info is the metadata recovered from a sample file name.
type Info struct {
	Start    time.Time
	Device   Device
	Bits     int
	Interval int // seconds
}

var baseNameRe = regexp.MustCompile(`(\d{8}T\d{6})_(trng|sim)_s(\d+)_i(\d+)`)

// ParseBaseName recovers collection metadata from a path whose file
// name follows the BuildBaseName convention. Any directory components
// and extension are ignored.
func ParseBaseName(path string) (Info, error) {
	name := filepath.Base(path)
	m := baseNameRe.FindStringSubmatch(name)
	if m == nil {
		return Info{}, fmt.Errorf("file name does not follow naming convention: %s", name)
	}
	start, err := time.Parse("20060102T150405", m[1])
	if err != nil {
		return Info{}, fmt.Errorf("bad timestamp in %s: %w", name, err)
	}
	bits, err := strconv.Atoi(m[3])
	if err != nil {
		return Info{}, err
	}
	interval, err := strconv.Atoi(m[4])
	if err != nil {
		return Info{}, err
	}
	return Info{Start: start, Device: Device(m[2]), Bits: bits, Interval: interval}, nil
}

// WithExt appends an extension (with or without leading dot) to a base
// name. Empty ext returns base unchanged.
func WithExt(base string, ext string) string {
	if ext == "" {
		return base
	}
	return base + "." + strings.TrimPrefix(ext, ".")
}

// JoinDir joins an optional directory with a filename. Empty dir
// returns name as-is.
func JoinDir(dir string, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// BuildBinCSVPaths builds full paths for the .bin and .csv outputs of
// one collection run inside dir (dir may be empty).
func BuildBinCSVPaths(dir string, now time.Time, device Device, bits int, intervalSeconds int) (binPath string, csvPath string, err error) {
	base, err := BuildBaseName(now, device, bits, intervalSeconds)
	if err != nil {
		return "", "", err
	}
	return JoinDir(dir, WithExt(base, "bin")), JoinDir(dir, WithExt(base, "csv")), nil
}
