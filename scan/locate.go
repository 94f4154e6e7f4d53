package scan

import (
	"fmt"
)

// Bounds is the rough bounding box of the printed dot-grid area within
// a scanned page buffer.
type Bounds struct {
	XMin, XMax, YMin, YMax int
}

// Intensity summarizes the grayscale range within Bounds. It is not
// used for hard binarization — sampling stays grayscale throughout —
// only to sanity-check that the scan actually contains contrast.
type Intensity struct {
	Mean, Min, Max byte
}

// Grid is the complete result of locating the dot grid on one page:
// its bounding box, intensity range, and the affine skew/pitch fit
// along each axis.
type Grid struct {
	Bounds    Bounds
	Intensity Intensity
	X, Y      PeakResult
	XAngle    float64 // 1/1024ths of a pixel per row
	YAngle    float64 // 1/1024ths of a pixel per column
}

// ErrGridNotFound is returned by Locate when the peak finder cannot
// establish a confident grid fit: zero weight, too tight a pitch, or
// axis pitches too dissimilar to be the same dot grid.
type ErrGridNotFound struct {
	Reason string
}

func (e *ErrGridNotFound) Error() string {
	return fmt.Sprintf("scan: grid not found: %s", e.Reason)
}

const (
	ndotMinStep  = 32 // NDOT, duplicated here to avoid an import cycle with block
	sampleCols   = 256
	sampleRows   = 256
	skewRangeLim = 2 * 1024 / 20 // +-0.1 "radian-ish" units, per spec.md §8 boundary behaviour
)

// RoughBounds implements spec.md §4.7's rough-bounds step: subsample
// ~256 rows/columns, score each by local 3x3 contrast, and project
// onto X and Y to find the region whose contrast is at least half the
// peak contrast.
func RoughBounds(pixels []byte, w, h int) Bounds {
	colScore := projectContrast(pixels, w, h, true)
	rowScore := projectContrast(pixels, w, h, false)

	xmin, xmax := thresholdRange(colScore)
	ymin, ymax := thresholdRange(rowScore)
	return Bounds{XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax}
}

func projectContrast(pixels []byte, w, h int, columns bool) []int {
	n := w
	step := 1
	if columns {
		n = w
		if n > sampleCols {
			step = n / sampleCols
		}
	} else {
		n = h
		if n > sampleRows {
			step = n / sampleRows
		}
	}
	out := make([]int, n)
	for i := 0; i < n; i += step {
		var x, y int
		if columns {
			x, y = i, h/2
		} else {
			x, y = w/2, i
		}
		out[i] = localContrast(pixels, w, h, x, y)
	}
	return out
}

func localContrast(pixels []byte, w, h, x, y int) int {
	lo, hi := byte(255), byte(0)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			px, py := x+dx, y+dy
			if px < 0 || py < 0 || px >= w || py >= h {
				continue
			}
			v := pixels[py*w+px]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return int(hi) - int(lo)
}

func thresholdRange(scores []int) (int, int) {
	max := 0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max == 0 {
		return 0, len(scores) - 1
	}
	threshold := max / 2
	first, last := -1, -1
	for i, s := range scores {
		if s >= threshold {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	if first == -1 {
		return 0, len(scores) - 1
	}
	return first, last
}

// MeasureIntensity computes mean/min/max grayscale over Bounds.
func MeasureIntensity(pixels []byte, w int, b Bounds) Intensity {
	var sum, count int
	lo, hi := byte(255), byte(0)
	for y := b.YMin; y <= b.YMax; y++ {
		for x := b.XMin; x <= b.XMax; x++ {
			idx := y*w + x
			if idx < 0 || idx >= len(pixels) {
				continue
			}
			v := pixels[idx]
			sum += int(v)
			count++
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	mean := byte(0)
	if count > 0 {
		mean = byte(sum / count)
	}
	return Intensity{Mean: mean, Min: lo, Max: hi}
}

// Locate runs the full grid-locator pipeline of spec.md §4.7 and
// returns ErrGridNotFound if the fit fails any of its guards.
func Locate(pixels []byte, w, h int) (Grid, error) {
	bounds := RoughBounds(pixels, w, h)
	intensity := MeasureIntensity(pixels, w, bounds)

	xFit, xAngle := bestAxisFit(pixels, w, h, bounds, true)
	yFit, yAngle := bestAxisFit(pixels, w, h, bounds, false)

	if xFit.Weight == 0 || yFit.Weight == 0 {
		return Grid{}, &ErrGridNotFound{Reason: "zero weight axis fit"}
	}
	if xFit.Step < ndotMinStep || yFit.Step < ndotMinStep {
		return Grid{}, &ErrGridNotFound{Reason: "pitch below NDOT"}
	}
	ratio := xFit.Step / yFit.Step
	if ratio < 0.4 || ratio > 2.5 {
		return Grid{}, &ErrGridNotFound{Reason: "axis pitch ratio out of bounds"}
	}

	return Grid{
		Bounds: bounds, Intensity: intensity,
		X: xFit, Y: yFit, XAngle: xAngle, YAngle: yAngle,
	}, nil
}

// bestAxisFit tries every skew a in [-skewRangeLim, skewRangeLim] (in
// 1/1024 pixel-per-row units), builds a shifted projection histogram,
// runs the peak finder, and keeps the fit with the highest weight after
// penalizing large skew by 1/(|a|+10), per spec.md §4.7.
func bestAxisFit(pixels []byte, w, h int, b Bounds, xAxis bool) (PeakResult, float64) {
	var best PeakResult
	var bestScore float64
	var bestAngle float64

	for a := -skewRangeLim; a <= skewRangeLim; a++ {
		hist := shiftedProjection(pixels, w, h, b, xAxis, a)
		peaks := FindPeaks(hist)
		fit := EstimatePitch(peaks)
		if fit.Weight <= 0 {
			continue
		}
		score := fit.Weight / (absF(float64(a)) + 10)
		if score > bestScore {
			bestScore = score
			best = fit
			bestAngle = float64(a)
		}
	}
	return best, bestAngle
}

// shiftedProjection builds a histogram along one axis, shifting each
// sample row (resp. column) by row*a/1024 to test a candidate skew.
func shiftedProjection(pixels []byte, w, h int, b Bounds, xAxis bool, a int) []int {
	if xAxis {
		n := b.XMax - b.XMin + 1
		if n <= 0 || n > NHYST {
			n = minInt(maxIntv(n, 1), NHYST)
		}
		hist := make([]int, n)
		for row := b.YMin; row <= b.YMax; row++ {
			shift := row * a / 1024
			for i := 0; i < n; i++ {
				x := b.XMin + i + shift
				if x < 0 || x >= w || row < 0 || row >= h {
					continue
				}
				hist[i] += int(255 - pixels[row*w+x])
			}
		}
		return hist
	}
	n := b.YMax - b.YMin + 1
	if n <= 0 || n > NHYST {
		n = minInt(maxIntv(n, 1), NHYST)
	}
	hist := make([]int, n)
	for col := b.XMin; col <= b.XMax; col++ {
		shift := col * a / 1024
		for i := 0; i < n; i++ {
			y := b.YMin + i + shift
			if y < 0 || y >= h || col < 0 || col >= w {
				continue
			}
			hist[i] += int(255 - pixels[y*w+col])
		}
	}
	return hist
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxIntv(a, b int) int {
	if a > b {
		return a
	}
	return b
}
