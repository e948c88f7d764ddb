// Package bitstat computes the block statistics the collection and
// analysis tools share: ones counts per sample block and the running
// z-score of the cumulative mean against the fair-coin expectation.
package bitstat

import (
	"math"
	"math/bits"
)

// CountOnes returns the number of set bits in buf, considering only
// bitCount bits total. Unused trailing bits of the final byte are not
// counted, so a partially filled last byte is handled correctly.
func CountOnes(buf []byte, bitCount int) int {
	if bitCount <= 0 || len(buf) == 0 {
		return 0
	}
	bytesUsed := (bitCount + 7) / 8
	if bytesUsed > len(buf) {
		bytesUsed = len(buf)
	}
	total := 0
	for i := 0; i < bytesUsed-1; i++ {
		total += bits.OnesCount8(buf[i])
	}
	usedBitsInLast := bitCount - (bytesUsed-1)*8
	if usedBitsInLast <= 0 || usedBitsInLast > 8 {
		usedBitsInLast = 8
	}
	mask := byte(0xFF) << (8 - usedBitsInLast)
	total += bits.OnesCount8(buf[bytesUsed-1] & mask)
	return total
}

// Point is one sample in a z-score series.
type Point struct {
	Ones           int
	CumulativeMean float64
	ZScore         float64
}

// ZSeries computes, for each block's ones count, the cumulative mean
// and its z-score against the expectation for blockBits fair bits:
//
//	expected mean     = blockBits / 2
//	expected std dev  = sqrt(blockBits / 4)
//	z_i = (cumMean_i - mean) / (stddev / sqrt(i+1))
//
// A non-positive blockBits yields a series with zero z-scores.
func ZSeries(ones []int, blockBits int) []Point {
	pts := make([]Point, len(ones))
	expectedMean := 0.5 * float64(blockBits)
	expectedStdDev := math.Sqrt(float64(blockBits) * 0.25)
	sum := 0
	for i, n := range ones {
		sum += n
		cumMean := float64(sum) / float64(i+1)
		pts[i] = Point{Ones: n, CumulativeMean: cumMean}
		if expectedStdDev > 0 {
			pts[i].ZScore = (cumMean - expectedMean) / (expectedStdDev / math.Sqrt(float64(i+1)))
		}
	}
	return pts
}
