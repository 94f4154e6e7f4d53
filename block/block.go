// Package block implements the 128-byte framed block and superblock
// layout shared by every cell painted on a page: a 4-byte address, a
// 90-byte payload, a 2-byte CRC, and a 32-byte Reed-Solomon parity
// tail. It also carries the dot-grid representation a raster cell is
// painted from and sampled back into.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/paperback-web/paperback/crc16"
	"github.com/paperback-web/paperback/reedsolomon"
)

const (
	// NDOT is the dot-grid side within one block, in bit positions.
	NDOT = 32
	// NDATA is the payload byte count of a data block.
	NDATA = 90
	// ECCSize is the Reed-Solomon parity byte count appended to a block.
	ECCSize = 32
	// Size is the total framed block size: addr(4) + data(90) + crc(2) + ecc(32).
	Size = 4 + NDATA + 2 + ECCSize
	// Pad is the number of virtual leading zero bytes that extend a
	// framed block to the 255-byte RS codeword length.
	Pad = 255 - Size

	// Superblock is the sentinel address identifying a superblock.
	Superblock = 0xFFFFFFFF

	// NGroupMin and NGroupMax bound the redundancy group size.
	NGroupMin = 2
	NGroupMax = 10
)

func init() {
	if Size != 128 {
		panic("block: framed block size drifted from the fixed 128-byte raster invariant")
	}
}

// Frame is the 128-byte unit painted onto one raster cell. Addr carries
// either a data-block offset, a parity-block offset tagged with the
// group size in its top 4 bits, or the Superblock sentinel.
type Frame struct {
	Addr uint32
	Data [NDATA]byte
}

// IsSuperblock reports whether this frame's address is the superblock
// sentinel.
func (f Frame) IsSuperblock() bool {
	return f.Addr == Superblock
}

// NGroup returns the redundancy group size carried in the top 4 bits of
// Addr. The encoder sets it only on parity blocks; data blocks carry a
// plain offset, so a nonzero NGroup marks a parity block.
func (f Frame) NGroup() int {
	return int(f.Addr >> 28)
}

// Offset returns the low 28 bits of Addr: the byte offset of this
// block's payload within the compressed/encrypted stream.
func (f Frame) Offset() uint32 {
	return f.Addr & 0x0FFFFFFF
}

// ParityAddr builds the addr field for a parity block covering
// `redundancy` data blocks starting at `offset`.
func ParityAddr(offset uint32, redundancy int) uint32 {
	return (offset & 0x0FFFFFFF) | (uint32(redundancy) << 28)
}

// Pack serializes the frame into a 128-byte buffer: addr, data, a
// CRC-16 over addr||data, and a 32-byte Reed-Solomon parity computed
// over the same 128 bytes padded to a 255-byte codeword.
func (f Frame) Pack() [Size]byte {
	var buf [Size]byte
	binary.LittleEndian.PutUint32(buf[0:4], f.Addr)
	copy(buf[4:4+NDATA], f.Data[:])
	crc := crc16.Checksum(buf[0 : 4+NDATA])
	binary.LittleEndian.PutUint16(buf[4+NDATA:4+NDATA+2], crc)
	parity := reedsolomon.Encode8(buf[:4+NDATA+2], Pad)
	copy(buf[4+NDATA+2:], parity[:])
	return buf
}

// Unpack runs Reed-Solomon correction over buf in place, then parses
// the corrected bytes into a Frame. It returns the number of corrected
// symbol errors, or an error if the block is uncorrectable or fails its
// CRC after correction.
func Unpack(buf [Size]byte) (Frame, int, error) {
	corrected := reedsolomon.Decode8(buf[:], nil, Pad)
	if corrected < 0 || corrected > reedsolomon.MaxCorrectable {
		return Frame{}, corrected, fmt.Errorf("block: uncorrectable (rs returned %d)", corrected)
	}

	gotCRC := binary.LittleEndian.Uint16(buf[4+NDATA : 4+NDATA+2])
	wantCRC := crc16.Checksum(buf[0 : 4+NDATA])
	if gotCRC != wantCRC {
		return Frame{}, corrected, fmt.Errorf("block: crc mismatch after %d-byte correction: got %#04x want %#04x", corrected, gotCRC, wantCRC)
	}

	var f Frame
	f.Addr = binary.LittleEndian.Uint32(buf[0:4])
	copy(f.Data[:], buf[4:4+NDATA])
	return f, corrected, nil
}
