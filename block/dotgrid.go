package block

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// DotGrid is the NDOT x NDOT = 1024-bit dot matrix painted into, or
// sampled out of, one raster block. Bit (row*NDOT+col) set means a
// black dot was painted at that grid position, representing a logical
// 1; clear means white, a logical 0.
type DotGrid struct {
	bits *bitset.BitSet
}

// NewDotGrid returns an all-clear (all-white) grid.
func NewDotGrid() *DotGrid {
	return &DotGrid{bits: bitset.New(NDOT * NDOT)}
}

// Set paints or clears the dot at (row, col).
func (g *DotGrid) Set(row, col int, black bool) {
	idx := uint(row*NDOT + col)
	if black {
		g.bits.Set(idx)
	} else {
		g.bits.Clear(idx)
	}
}

// Get reports whether the dot at (row, col) is black.
func (g *DotGrid) Get(row, col int) bool {
	return g.bits.Test(uint(row*NDOT + col))
}

// FromFrame paints a DotGrid from the 128-byte frame contents: addr
// (4 bytes) followed by data+crc+ecc (124 bytes), 1024 bits total,
// most significant bit of byte 0 first.
func FromFrame(buf [Size]byte) *DotGrid {
	g := NewDotGrid()
	for byteIdx, b := range buf {
		for bit := 0; bit < 8; bit++ {
			black := b&(0x80>>uint(bit)) != 0
			pos := byteIdx*8 + bit
			g.Set(pos/NDOT, pos%NDOT, black)
		}
	}
	return g
}

// ToFrame packs the 1024 bits of the grid back into a 128-byte buffer,
// the inverse of FromFrame.
func (g *DotGrid) ToFrame() [Size]byte {
	var buf [Size]byte
	for byteIdx := range buf {
		var b byte
		for bit := 0; bit < 8; bit++ {
			pos := byteIdx*8 + bit
			if g.Get(pos/NDOT, pos%NDOT) {
				b |= 0x80 >> uint(bit)
			}
		}
		buf[byteIdx] = b
	}
	return buf
}

// MarshalBinary and UnmarshalBinary expose the underlying bitset's
// compact wire representation, useful when retaining many grids
// without re-expanding them to a full byte-per-bit form.
func (g *DotGrid) MarshalBinary() ([]byte, error) {
	return g.bits.MarshalBinary()
}

func (g *DotGrid) UnmarshalBinary(data []byte) error {
	if g.bits == nil {
		g.bits = bitset.New(NDOT * NDOT)
	}
	if err := g.bits.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("block: unmarshal dot grid: %w", err)
	}
	return nil
}
