package scan

import (
	"fmt"
	"math"

	"github.com/paperback-web/paperback/block"
)

const (
	// SubDX, SubDY tile the composite-grid fallback (spec.md §4.8 point 5).
	SubDX, SubDY = 8, 8
	// MaxDotSize bounds the dot-size search.
	MaxDotSize = 4

	cmin, cmax = 0, 255
)

// BlockPosition locates a block within the page's block grid, used to
// derive its rotated sampling origin.
type BlockPosition struct {
	PosX, PosY   int
	NPosY        int // total block rows on the page, for the Y axis flip
	BlockBorder  int
}

// SampledGrid is an NDOT x NDOT grid of raw grayscale intensities
// sampled from the scanned bitmap, one value per dot position, before
// thresholding into bits.
type SampledGrid struct {
	Values [block.NDOT][block.NDOT]byte
}

// errStepMismatch is returned internally when a block's locally
// re-estimated pitch disagrees too much with the page's global pitch;
// SampleBlock surfaces it as a plain error per spec.md §4.8 point 3
// ("reject (return -1)").
var errStepMismatch = fmt.Errorf("scan: local pitch disagrees with global pitch by more than 1/16")

// SampleBlock implements spec.md §4.8: it samples one block's region of
// the scanned bitmap with sub-pixel rotated bilinear interpolation,
// refines the local grid fit, and searches shift and dot-size
// parameters until recognize.Recognize accepts the result (or every
// combination has been tried).
func SampleBlock(pixels []byte, w, h int, g Grid, pos BlockPosition) (block.Frame, int, error) {
	x0 := g.X.Peak + g.X.Step*float64(pos.PosX-pos.BlockBorder)
	y0 := g.Y.Peak + g.Y.Step*float64(pos.NPosY-pos.PosY-1-pos.BlockBorder)

	bufdx := int(math.Ceil(float64(block.NDOT+3) * g.X.Step))
	bufdy := int(math.Ceil(float64(block.NDOT+3) * g.Y.Step))
	if bufdx < 1 || bufdy < 1 {
		return block.Frame{}, -1, fmt.Errorf("scan: degenerate block buffer size %dx%d", bufdx, bufdy)
	}

	buf := sampleAffine(pixels, w, h, x0, y0, bufdx, bufdy, g.XAngle/1024, g.YAngle/1024)
	sharpen(buf, bufdx, bufdy, autoSharpenK(g.X.Step))

	localX := projectAndFit(buf, bufdx, bufdy, true)
	localY := projectAndFit(buf, bufdx, bufdy, false)
	if localX.Step == 0 || localY.Step == 0 {
		return block.Frame{}, -1, errStepMismatch
	}
	if relDiff(localX.Step, g.X.Step) > 1.0/16 || relDiff(localY.Step, g.Y.Step) > 1.0/16 {
		return block.Frame{}, -1, errStepMismatch
	}

	dotStepX := localX.Step / float64(block.NDOT+3)
	dotStepY := localY.Step / float64(block.NDOT+3)
	dotOriginX := localX.Peak + 2*dotStepX
	dotOriginY := localY.Peak + 2*dotStepY

	maxDotSize := dotSizeBudget(localX.Step)

	bestErrors := -2 // sentinel: "nothing tried yet"
	var bestFrame block.Frame
	haveBest := false

	for dotSize := 1; dotSize <= maxDotSize; dotSize++ {
		for _, shift := range [][2]int{{0, 0}, {-1, 0}, {1, 0}, {0, -1}, {0, 1}, {-1, -1}, {-1, 1}, {1, -1}, {1, 1}} {
			sg := buildSampledGrid(buf, bufdx, bufdy, dotOriginX, dotOriginY, dotStepX, dotStepY, dotSize, shift[0], shift[1])
			frame, errs, err := Recognize(sg)
			if err == nil && (!haveBest || errs < bestErrors) {
				bestFrame, bestErrors, haveBest = frame, errs, true
			}
			if err == nil && errs == 0 {
				return frame, errs, nil
			}
		}
	}

	if haveBest {
		return bestFrame, bestErrors, nil
	}

	// Composite fallback: tile SUBDXxSUBDY sub-blocks, each taking the
	// shift that maximizes intra-sub-block variance (cleanest dots).
	sg := buildCompositeGrid(buf, bufdx, bufdy, dotOriginX, dotOriginY, dotStepX, dotStepY)
	frame, errs, err := Recognize(sg)
	if err != nil {
		return block.Frame{}, -1, fmt.Errorf("scan: block unrecoverable after composite fallback: %w", err)
	}
	return frame, errs, nil
}

func dotSizeBudget(step float64) int {
	size := 1
	for size < MaxDotSize && step > float64(block.NDOT+3)*float64(size+1) {
		size++
	}
	return size
}

func relDiff(a, b float64) float64 {
	if b == 0 {
		return math.Inf(1)
	}
	d := (a - b) / b
	if d < 0 {
		return -d
	}
	return d
}

func autoSharpenK(step float64) float64 {
	k := 1.0 / step
	if k > 1 {
		k = 1
	}
	if k < 0 {
		k = 0
	}
	return k
}

// sampleAffine fills a bufdx x bufdy grayscale buffer by bilinearly
// sampling pixels through the affine map
// (i,j) -> (x0+i+(y0+j)*xangle, y0+j+(x0+i)*yangle).
func sampleAffine(pixels []byte, w, h int, x0, y0 float64, bufdx, bufdy int, xangle, yangle float64) []byte {
	buf := make([]byte, bufdx*bufdy)
	for j := 0; j < bufdy; j++ {
		for i := 0; i < bufdx; i++ {
			fx := x0 + float64(i) + (y0+float64(j))*xangle
			fy := y0 + float64(j) + (x0+float64(i))*yangle
			buf[j*bufdx+i] = bilinear(pixels, w, h, fx, fy)
		}
	}
	return buf
}

func bilinear(pixels []byte, w, h int, fx, fy float64) byte {
	if fx < 0 || fy < 0 || fx >= float64(w-1) || fy >= float64(h-1) {
		return cmax
	}
	x0 := int(fx)
	y0 := int(fy)
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	p00 := float64(pixels[y0*w+x0])
	p10 := float64(pixels[y0*w+x0+1])
	p01 := float64(pixels[(y0+1)*w+x0])
	p11 := float64(pixels[(y0+1)*w+x0+1])

	top := p00*(1-dx) + p10*dx
	bot := p01*(1-dx) + p11*dx
	v := top*(1-dy) + bot*dy
	return byte(clampF(v, cmin, cmax))
}

func clampF(v float64, lo, hi byte) float64 {
	if v < float64(lo) {
		return float64(lo)
	}
	if v > float64(hi) {
		return float64(hi)
	}
	return v
}

// sharpen applies the 5-point kernel of spec.md §4.8 point 2, in place.
func sharpen(buf []byte, w, h int, k float64) {
	if k <= 0 {
		return
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := float64(buf[y*w+x])
			n := float64(buf[(y-1)*w+x])
			s := float64(buf[(y+1)*w+x])
			e := float64(buf[y*w+x+1])
			wv := float64(buf[y*w+x-1])
			v := center*(1+4*k) - k*(n+s+e+wv)
			out[y*w+x] = byte(clampF(v, cmin, cmax))
		}
	}
	copy(buf, out)
}

// projectAndFit projects buf onto one axis (inverted, so dark dots
// produce histogram peaks) and runs the peak finder over it.
func projectAndFit(buf []byte, w, h int, xAxis bool) PeakResult {
	var hist []int
	if xAxis {
		hist = make([]int, w)
		for x := 0; x < w; x++ {
			sum := 0
			for y := 0; y < h; y++ {
				sum += 255 - int(buf[y*w+x])
			}
			hist[x] = sum
		}
	} else {
		hist = make([]int, h)
		for y := 0; y < h; y++ {
			sum := 0
			for x := 0; x < w; x++ {
				sum += 255 - int(buf[y*w+x])
			}
			hist[y] = sum
		}
	}
	return EstimatePitch(FindPeaks(hist))
}

// buildSampledGrid averages a dotSize x dotSize neighborhood at each of
// the NDOT x NDOT dot centers, offset by a +-1 pixel shift.
func buildSampledGrid(buf []byte, w, h int, originX, originY, stepX, stepY float64, dotSize, shiftX, shiftY int) SampledGrid {
	var sg SampledGrid
	half := dotSize / 2
	for row := 0; row < block.NDOT; row++ {
		for col := 0; col < block.NDOT; col++ {
			cx := int(originX+stepX*float64(col)) + shiftX
			cy := int(originY+stepY*float64(row)) + shiftY
			sg.Values[row][col] = averageNeighborhood(buf, w, h, cx, cy, half, dotSize)
		}
	}
	return sg
}

func averageNeighborhood(buf []byte, w, h, cx, cy, half, size int) byte {
	var sum, count int
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			x := cx - half + dx
			y := cy - half + dy
			if x < 0 || y < 0 || x >= w || y >= h {
				sum += cmax
				count++
				continue
			}
			sum += int(buf[y*w+x])
			count++
		}
	}
	if count == 0 {
		return cmax
	}
	return byte(sum / count)
}

// buildCompositeGrid tiles the NDOT x NDOT grid into SUBDX x SUBDY
// sub-blocks, picking per sub-block the +-1 pixel shift that maximizes
// intra-sub-block variance (spec.md §4.8 point 5: highest dispersion
// implies the cleanest separation between black and white dots).
func buildCompositeGrid(buf []byte, w, h int, originX, originY, stepX, stepY float64) SampledGrid {
	var sg SampledGrid
	rowsPer := block.NDOT / SubDY
	colsPer := block.NDOT / SubDX

	for subRow := 0; subRow < SubDY; subRow++ {
		for subCol := 0; subCol < SubDX; subCol++ {
			bestVariance := -1.0
			var bestVals [][2]int
			var bestGridVals map[[2]int]byte

			for _, shift := range [][2]int{{0, 0}, {-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				vals := make(map[[2]int]byte)
				var samples []float64
				for r := 0; r < rowsPer; r++ {
					for c := 0; c < colsPer; c++ {
						row := subRow*rowsPer + r
						col := subCol*colsPer + c
						cx := int(originX+stepX*float64(col)) + shift[0]
						cy := int(originY+stepY*float64(row)) + shift[1]
						v := averageNeighborhood(buf, w, h, cx, cy, 0, 1)
						vals[[2]int{row, col}] = v
						samples = append(samples, float64(v))
					}
				}
				variance := varianceOf(samples)
				if variance > bestVariance {
					bestVariance = variance
					bestGridVals = vals
					bestVals = nil
					for k := range vals {
						bestVals = append(bestVals, k)
					}
				}
			}
			for _, pos := range bestVals {
				sg.Values[pos[0]][pos[1]] = bestGridVals[pos]
			}
		}
	}
	return sg
}

func varianceOf(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))
	var sq float64
	for _, s := range samples {
		sq += (s - mean) * (s - mean)
	}
	return sq / float64(len(samples))
}
