package page

import (
	"github.com/paperback-web/paperback/block"
)

const (
	white = 0xFF
	black = 0x00
)

// Raster is one page's grayscale pixel buffer, painted from the
// superblock and the data/parity blocks that belong on this page.
type Raster struct {
	Geometry      Geometry
	Width, Height int
	Pixels        []byte // grayscale, 0=black, 255=white, row-major
}

// Paint synthesizes one page: cells are filled per spec.md §4.6's
// layout rule, then each cell is painted as an NDOT x NDOT dot matrix
// with a sync ring. dataBlocks and parityBlocks must already be the
// framed 128-byte bytes, one per block in row-major group order;
// superblock is the single framed superblock shared by every row's
// first column (spec.md §4.6: "remaining cells repeat the superblock").
func Paint(geo Geometry, superblock [block.Size]byte, dataBlocks, parityBlocks [][block.Size]byte, printBorder bool) *Raster {
	r := &Raster{Geometry: geo, Width: geo.PageWidthPx, Height: geo.PageHeightPx}
	r.Pixels = make([]byte, r.Width*r.Height)
	for i := range r.Pixels {
		r.Pixels[i] = white
	}

	cols := geo.GroupsPerPage + 1
	for j := 0; j < geo.NY; j++ {
		for i := 0; i < geo.NX; i++ {
			k := j*geo.NX + i
			frame := selectCell(k, geo.Redundancy, geo.GroupsPerPage, cols, superblock, dataBlocks, parityBlocks)
			r.paintCell(i, j, frame)
		}
	}

	if printBorder && geo.Border > 0 {
		r.paintBorder(geo.Border)
	}
	return r
}

// selectCell implements spec.md §4.6's cell assignment rule verbatim.
func selectCell(k, redundancy, groupsPerPage, cols int, superblock [block.Size]byte, dataBlocks, parityBlocks [][block.Size]byte) [block.Size]byte {
	row := k / cols
	col := k % cols

	switch {
	case row <= redundancy && col == 0:
		return superblock
	case row < redundancy && col >= 1 && col-1 < groupsPerPage:
		idx := row*groupsPerPage + (col - 1)
		if idx < len(dataBlocks) {
			return dataBlocks[idx]
		}
		return superblock
	case row == redundancy && col >= 1 && col-1 < groupsPerPage:
		idx := col - 1
		if idx < len(parityBlocks) {
			return parityBlocks[idx]
		}
		return superblock
	default:
		return superblock
	}
}

// paintCell draws the block at grid position (col, row) in cell units.
func (r *Raster) paintCell(col, row int, frame [block.Size]byte) {
	grid := block.FromFrame(frame)
	cell := r.Geometry.CellPx
	originX := r.Geometry.Border + col*r.Geometry.BlockSidePx
	originY := r.Geometry.Border + row*r.Geometry.BlockSidePx

	// Guard row (top) and guard column (left): fully filled (black).
	r.fillCellRow(originX, originY, 0, r.Geometry.NDOTPlus3())
	r.fillCellCol(originX, originY, 0, r.Geometry.NDOTPlus3())

	// Sync row/col (index 1): alternating dots.
	for c := 0; c < r.Geometry.NDOTPlus3(); c++ {
		r.fillDot(originX+c*cell, originY+1*cell, c%2 == 0)
	}
	for rr := 0; rr < r.Geometry.NDOTPlus3(); rr++ {
		r.fillDot(originX+1*cell, originY+rr*cell, rr%2 == 0)
	}

	// Dot matrix: offset by 2 guard+sync rows/cols.
	for dr := 0; dr < block.NDOT; dr++ {
		for dc := 0; dc < block.NDOT; dc++ {
			r.fillDot(originX+(dc+2)*cell, originY+(dr+2)*cell, grid.Get(dr, dc))
		}
	}
}

func (g Geometry) NDOTPlus3() int { return block.NDOT + 3 }

// fillDot paints a dotpercent-sized square inside the cell at pixel
// origin (x,y); black==true paints the dot, false leaves it white.
func (r *Raster) fillDot(x, y int, blackDot bool) {
	if !blackDot {
		return
	}
	side := r.Geometry.DotSidePx
	cell := r.Geometry.CellPx
	pad := (cell - side) / 2
	for dy := 0; dy < side; dy++ {
		for dx := 0; dx < side; dx++ {
			r.set(x+pad+dx, y+pad+dy, black)
		}
	}
}

func (r *Raster) fillCellRow(originX, originY, cellRow, ncells int) {
	cell := r.Geometry.CellPx
	y0 := originY + cellRow*cell
	for yy := 0; yy < cell; yy++ {
		for xx := 0; xx < ncells*cell; xx++ {
			r.set(originX+xx, y0+yy, black)
		}
	}
}

func (r *Raster) fillCellCol(originX, originY, cellCol, ncells int) {
	cell := r.Geometry.CellPx
	x0 := originX + cellCol*cell
	for xx := 0; xx < cell; xx++ {
		for yy := 0; yy < ncells*cell; yy++ {
			r.set(x0+xx, originY+yy, black)
		}
	}
}

func (r *Raster) paintBorder(border int) {
	for x := 0; x < r.Width; x++ {
		for t := 0; t < border; t++ {
			r.set(x, t, black)
			r.set(x, r.Height-1-t, black)
		}
	}
	for y := 0; y < r.Height; y++ {
		for t := 0; t < border; t++ {
			r.set(t, y, black)
			r.set(r.Width-1-t, y, black)
		}
	}
}

func (r *Raster) set(x, y int, v byte) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return
	}
	r.Pixels[y*r.Width+x] = v
}
