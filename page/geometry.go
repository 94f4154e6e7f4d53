// Package page computes the pixel geometry of one printed page from
// its DPI/paper/dot options, and synthesizes or (by the scan package)
// is read back from the dot-grid raster for every block on that page.
package page

import (
	"fmt"

	"github.com/paperback-web/paperback/block"
)

// Geometry is the full set of pixel measurements derived from one
// encode job's options, held constant across every page of that job.
type Geometry struct {
	DPI              int
	DotPercent       int
	Redundancy       int
	Border           int
	PaperWidth1000   uint32
	PaperHeight1000  uint32

	PageWidthPx, PageHeightPx int
	CellPx                    int
	DotSidePx                 int
	BlockSidePx               int
	NX, NY                    int
	GroupsPerPage             int
	PageSize                  int // bytes of stream represented on one page
}

// NewGeometry computes a Geometry from the page options, following
// spec.md §4.5 exactly: this formula is the authoritative one (spec.md
// §9 flags a second, inconsistent formula in one encoder variant as not
// to be guessed at).
func NewGeometry(dpi, dotPercent, redundancy, border int, paperWidth1000, paperHeight1000 uint32) (Geometry, error) {
	if dpi < 40 || dpi > 600 {
		return Geometry{}, fmt.Errorf("page: dpi %d out of range [40,600]", dpi)
	}
	if dotPercent < 50 || dotPercent > 100 {
		return Geometry{}, fmt.Errorf("page: dotpercent %d out of range [50,100]", dotPercent)
	}
	if redundancy < block.NGroupMin || redundancy > block.NGroupMax {
		return Geometry{}, fmt.Errorf("page: redundancy %d out of range [%d,%d]", redundancy, block.NGroupMin, block.NGroupMax)
	}

	g := Geometry{
		DPI: dpi, DotPercent: dotPercent, Redundancy: redundancy, Border: border,
		PaperWidth1000: paperWidth1000, PaperHeight1000: paperHeight1000,
	}

	// 1. Page pixels.
	g.PageWidthPx = int(round(float64(paperWidth1000) * float64(dpi) / 1000.0))
	g.PageHeightPx = int(round(float64(paperHeight1000) * float64(dpi) / 1000.0))

	// 2. Cell and dot side.
	g.CellPx = maxInt(2, int(round(float64(dpi)/120.0)))
	g.DotSidePx = maxInt(1, int(round(float64(g.CellPx)*float64(dotPercent)/100.0)))

	// 3. Block side: NDOT+3 accounts for two guard rows/cols plus the
	// sync row/col (§4.6).
	g.BlockSidePx = (block.NDOT + 3) * g.CellPx

	// 4. Usable tiling area.
	usableX := g.PageWidthPx - 2*border
	usableY := g.PageHeightPx - 2*border
	if usableX < g.BlockSidePx || usableY < g.BlockSidePx {
		return Geometry{}, fmt.Errorf("page: usable area %dx%d too small for a single %dpx block", usableX, usableY, g.BlockSidePx)
	}
	g.NX = usableX / g.BlockSidePx
	g.NY = usableY / g.BlockSidePx

	// 5. groups_per_page and pagesize.
	totalCells := g.NX * g.NY
	g.GroupsPerPage = (totalCells - (redundancy + 1)) / (redundancy + 1)
	if g.GroupsPerPage < 1 {
		return Geometry{}, fmt.Errorf("page: %dx%d grid too small to fit redundancy %d", g.NX, g.NY, redundancy)
	}
	g.PageSize = g.GroupsPerPage * redundancy * block.NDATA

	return g, nil
}

func round(f float64) float64 {
	if f < 0 {
		return -round(-f)
	}
	return float64(int64(f + 0.5))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
