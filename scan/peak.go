// Package scan implements the decode-side half of the codec: locating
// the dot grid in a scanned page, sampling each block's bits back out
// with sub-pixel precision, and recognizing those bits into the 128
// framed bytes the reedsolomon package corrects.
package scan

const (
	// NHYST bounds the length of any histogram fed to the peak finder.
	NHYST = 1024
	// NPEAK is the maximum number of peaks the peak finder extracts.
	NPEAK = 32
)

// Peak is one extracted peak: its sub-sample position (first moment)
// and its height (local maximum of the hump).
type Peak struct {
	Pos    float64
	Height int
}

// PeakResult is the grid estimate the peak finder derives from a
// projection histogram: a representative peak position, the inferred
// pitch between consecutive grid lines, and a confidence weight.
type PeakResult struct {
	Peak   float64
	Step   float64
	Weight float64
}

// FindPeaks implements spec.md §4.7.1. h is an integer projection
// histogram of length <= NHYST.
//
// Step 1 builds a decaying envelope L that never falls more than d per
// sample below its neighbors' values, forward then backward, so L sits
// at or above h everywhere and touches h exactly at h's local maxima;
// D[i] = L[i]-h[i] is therefore a hump everywhere EXCEPT at a genuine
// grid line, where it troughs to zero — detecting "hump" boundaries
// this way lets the same threshold/extraction logic in steps 2-4 work
// whether the caller's histogram is peak-shaped or valley-shaped at
// grid lines, which is why FindPeaks is reused by both the rough grid
// locator (contrast projection, peaks at grid lines) and the block
// sampler (which windows a much shorter, noisier projection).
func FindPeaks(h []int) []Peak {
	n := len(h)
	if n == 0 {
		return nil
	}
	amin, amax := h[0], h[0]
	for _, v := range h {
		if v < amin {
			amin = v
		}
		if v > amax {
			amax = v
		}
	}
	d := (amax - amin + 16) / 32
	if d < 1 {
		d = 1
	}

	L := make([]int, n)
	L[0] = h[0]
	for i := 1; i < n; i++ {
		L[i] = maxi(L[i-1]-d, h[i])
	}
	for i := n - 2; i >= 0; i-- {
		L[i] = maxi(L[i+1]-d, L[i])
	}

	D := make([]int, n)
	dmax := 0
	for i := range h {
		D[i] = L[i] - h[i]
		if D[i] > dmax {
			dmax = D[i]
		}
	}
	if dmax == 0 {
		return nil
	}
	threshold := (dmax * 3) / 4

	var peaks []Peak
	i := 0
	for i < n {
		if D[i] <= threshold {
			i++
			continue
		}
		start := i
		var weightSum, posSum float64
		height := 0
		for i < n && D[i] > threshold {
			weightSum += float64(D[i])
			posSum += float64(i) * float64(D[i])
			if D[i] > height {
				height = D[i]
			}
			i++
		}
		_ = start
		if weightSum > 0 {
			peaks = append(peaks, Peak{Pos: posSum / weightSum, Height: height})
		}
		if len(peaks) >= NPEAK {
			break
		}
	}

	// Suppress peaks that are much weaker than their immediate neighbor
	// in either direction (spec.md: "suppress peaks whose height is
	// less than 1/8 of the immediately previous kept peak, and drop the
	// previous one if it is 1/8 of this new one").
	var kept []Peak
	for _, p := range peaks {
		if len(kept) == 0 {
			kept = append(kept, p)
			continue
		}
		prev := kept[len(kept)-1]
		if float64(p.Height) < float64(prev.Height)/8 {
			continue
		}
		if float64(prev.Height) < float64(p.Height)/8 {
			kept = kept[:len(kept)-1]
		}
		kept = append(kept, p)
	}
	return kept
}

// EstimatePitch implements peak-finder steps 3-4: it finds the most
// common spacing between peak pairs, then least-squares fits a linear
// model peak ~= x0 + step*k over the pairs consistent with that
// spacing, restricted to peaks whose height is at least 25% of the
// strongest peak.
func EstimatePitch(peaks []Peak) PeakResult {
	if len(peaks) < 2 {
		return PeakResult{}
	}

	strongest := 0
	for _, p := range peaks {
		if p.Height > strongest {
			strongest = p.Height
		}
	}
	heightFloor := float64(strongest) * 0.25

	var strong []Peak
	for _, p := range peaks {
		if float64(p.Height) >= heightFloor {
			strong = append(strong, p)
		}
	}
	if len(strong) < 2 {
		return PeakResult{}
	}

	distCounts := make(map[int]int)
	for i := 0; i < len(strong); i++ {
		for j := i + 1; j < len(strong); j++ {
			d := int(strong[j].Pos - strong[i].Pos)
			if d > 0 {
				distCounts[d]++
			}
		}
	}
	if len(distCounts) == 0 {
		return PeakResult{}
	}

	bestDist, bestScore := 0, -1
	for dist := range distCounts {
		window := dist/33 + 1
		score := 0
		for d := dist; d <= dist+window; d++ {
			score += distCounts[d]
		}
		if score > bestScore {
			bestScore = score
			bestDist = dist
		}
	}
	window := bestDist/33 + 1

	// Normal equations for peak ~= x0 + step*k, using pairwise
	// differences consistent with bestDist as unit steps.
	var sumK, sumK2, sumP, sumKP, totalHeight float64
	var sn int
	for i := 0; i < len(strong); i++ {
		for j := i + 1; j < len(strong); j++ {
			diff := strong[j].Pos - strong[i].Pos
			d := int(diff)
			if d < bestDist || d > bestDist+window {
				continue
			}
			k := diff / float64(bestDist)
			if k <= 0 {
				continue
			}
			kRound := round(k)
			sumK += kRound
			sumK2 += kRound * kRound
			sumP += strong[j].Pos
			sumKP += kRound * strong[j].Pos
			totalHeight += float64(strong[j].Height)
			sn++
		}
	}
	if sn == 0 {
		return PeakResult{Peak: strong[0].Pos, Step: float64(bestDist), Weight: float64(strong[0].Height)}
	}

	nF := float64(sn)
	denom := nF*sumK2 - sumK*sumK
	var step, x0 float64
	if denom != 0 {
		step = (nF*sumKP - sumK*sumP) / denom
		x0 = (sumP - step*sumK) / nF
	} else {
		step = float64(bestDist)
		x0 = sumP / nF
	}

	return PeakResult{Peak: x0, Step: step, Weight: totalHeight / nF}
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func round(f float64) float64 {
	if f < 0 {
		return -round(-f)
	}
	return float64(int64(f + 0.5))
}
