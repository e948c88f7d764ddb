package trng

import (
	"context"
	"errors"
	"time"
)

// pollInterval is how long ReadBytes backs off after an empty probe.
// The generator fills its pool at hardware cadence; re-probing faster
// than this just burns bus bandwidth.
const pollInterval = 500 * time.Microsecond

// ReadBytes polls the generator until n bytes have been collected or
// ctx is done. The retry policy lives here, not in ReadByte: each
// empty probe backs off briefly and checks the context, so a caller
// wanting a bounded wait passes a deadline context.
func (d *Device) ReadBytes(ctx context.Context, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("trng: byte count must be positive")
	}
	buf := make([]byte, 0, n)
	for len(buf) < n {
		b, err := d.ReadByte()
		if err == nil {
			buf = append(buf, b)
			continue
		}
		if !errors.Is(err, ErrNoData) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		time.Sleep(pollInterval)
	}
	return buf, nil
}

// ReadBits collects bitCount bits and returns them packed MSB-first in
// each byte. The final byte's unused trailing bits are zeroed.
func (d *Device) ReadBits(ctx context.Context, bitCount int) ([]byte, error) {
	if bitCount <= 0 {
		return nil, errors.New("trng: bitCount must be positive")
	}
	data, err := d.ReadBytes(ctx, (bitCount+7)/8)
	if err != nil {
		return nil, err
	}
	if extra := (8 - bitCount%8) % 8; extra != 0 {
		data[len(data)-1] &= 0xFF << extra
	}
	return data, nil
}

// CollectBitsAtInterval reads bitCount bits every interval, invoking
// onBatch with the bytes each time. The first read happens
// immediately. It runs until ctx is cancelled or a read fails, and
// returns the terminating error.
func (d *Device) CollectBitsAtInterval(ctx context.Context, bitCount int, interval time.Duration, onBatch func([]byte)) error {
	if bitCount <= 0 {
		return errors.New("trng: bitCount must be positive")
	}
	if interval <= 0 {
		return errors.New("trng: interval must be positive")
	}
	if onBatch == nil {
		return errors.New("trng: onBatch callback must not be nil")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b, err := d.ReadBits(ctx, bitCount)
		if err != nil {
			return err
		}
		onBatch(b)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
