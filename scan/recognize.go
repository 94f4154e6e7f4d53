package scan

import (
	"github.com/paperback-web/paperback/block"
)

// Recognize converts a sampled NDOT x NDOT grayscale grid into bits,
// packs them into a 128-byte frame, and runs Reed-Solomon correction
// and the CRC-16 re-check spec.md §4.9/§4.1 require. It returns the
// corrected frame and the number of symbol errors Reed-Solomon
// corrected (0..16), or an error if the block is uncorrectable.
func Recognize(sg SampledGrid) (block.Frame, int, error) {
	threshold := otsuThreshold(sg)

	grid := block.NewDotGrid()
	for row := 0; row < block.NDOT; row++ {
		for col := 0; col < block.NDOT; col++ {
			grid.Set(row, col, sg.Values[row][col] < threshold)
		}
	}

	buf := grid.ToFrame()
	return block.Unpack(buf)
}

// otsuThreshold picks a black/white cut point for the sampled grid.
// Per spec.md §4.9 this may be a fixed halfway point between the
// observed min and max, or an Otsu-style search; this implementation
// does the latter (maximizing inter-class variance over the 256-level
// histogram), falling back to the halfway point when the grid is
// degenerate (every value identical).
func otsuThreshold(sg SampledGrid) byte {
	var hist [256]int
	for row := 0; row < block.NDOT; row++ {
		for col := 0; col < block.NDOT; col++ {
			hist[sg.Values[row][col]]++
		}
	}

	total := block.NDOT * block.NDOT
	var sumAll float64
	for v, count := range hist {
		sumAll += float64(v * count)
	}

	var sumB, wB float64
	var bestVariance float64
	bestThreshold := 128

	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		variance := wB * wF * (mB - mF) * (mB - mF)
		if variance > bestVariance {
			bestVariance = variance
			bestThreshold = t
		}
	}
	if bestVariance == 0 {
		min, max := byte(255), byte(0)
		for row := 0; row < block.NDOT; row++ {
			for col := 0; col < block.NDOT; col++ {
				v := sg.Values[row][col]
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
			}
		}
		return byte((int(min) + int(max)) / 2)
	}
	return byte(bestThreshold)
}
