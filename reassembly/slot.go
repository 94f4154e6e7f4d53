// Package reassembly implements C12: matching incoming superblocks to
// in-flight files, placing decoded data/parity blocks, cross-block XOR
// erasure recovery, and completion detection.
package reassembly

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/paperback-web/paperback/block"
)

// DataValid mirrors spec.md §3's three-state per-block status.
type DataValid byte

const (
	Missing    DataValid = 0
	Payload    DataValid = 1
	ParityCopy DataValid = 2
)

// Slot is one in-flight file's reassembly state: spec.md §3's
// "FileReassembly slot".
type Slot struct {
	Identity   block.Identity
	Superblock block.Superblock // the first superblock observed for this file: carries salt/iv/filecrc/mode for final emission
	Redundancy int

	NBlock int
	NPages int

	Data      []byte      // nblock*NDATA bytes
	DataValid []DataValid // length nblock

	parityData    [][block.NDATA]byte
	parityPresent []bool

	// received and parity mirror DataValid/parityPresent as bitsets and
	// are kept in step with them, but nothing reads them: Complete
	// compares the NData counter with NBlock, and recoverGroup scans
	// DataValid. They are never the source of truth.
	received *bitset.BitSet
	parity   *bitset.BitSet

	MinPageAddr, MaxPageAddr uint32
	sawAnyAddr               bool

	GoodBlocks      int
	BadBlocks       int
	RestoredBytes   int
	RecoveredBlocks int
	NData           int
}

// NewSlot allocates a reassembly slot from a parsed superblock. ngroup
// is the redundancy group size recorded on that superblock (spec.md
// §4.10: "record ngroup from superblock").
func NewSlot(sb block.Superblock, ngroup int) (*Slot, error) {
	if ngroup < block.NGroupMin || ngroup > block.NGroupMax {
		return nil, fmt.Errorf("reassembly: ngroup %d out of range [%d,%d]", ngroup, block.NGroupMin, block.NGroupMax)
	}
	nblock := int(ceilDiv(sb.Datasize, block.NDATA))
	npages := 1
	if sb.Pagesize > 0 {
		npages = int(ceilDiv(sb.Datasize, sb.Pagesize))
	}
	ngroups := (nblock + ngroup - 1) / ngroup
	if ngroups < 1 {
		ngroups = 1
	}

	return &Slot{
		Identity:      sb.Identity(),
		Superblock:    sb,
		Redundancy:    ngroup,
		NBlock:        nblock,
		NPages:        npages,
		Data:          make([]byte, nblock*block.NDATA),
		DataValid:     make([]DataValid, nblock),
		parityData:    make([][block.NDATA]byte, ngroups),
		parityPresent: make([]bool, ngroups),
		received:      bitset.New(uint(nblock)),
		parity:        bitset.New(uint(ngroups)),
	}, nil
}

func ceilDiv(a uint32, b int) uint32 {
	if b <= 0 {
		return 0
	}
	return (a + uint32(b) - 1) / uint32(b)
}

func (s *Slot) groupOf(blockIdx int) int {
	return blockIdx / s.Redundancy
}

// BeginPage resets the per-page address window tracked across
// PlaceData/PlaceParity calls for the page about to be decoded.
func (s *Slot) BeginPage() {
	s.MinPageAddr, s.MaxPageAddr = 0, 0
	s.sawAnyAddr = false
}

func (s *Slot) observe(offset uint32) {
	if !s.sawAnyAddr {
		s.MinPageAddr, s.MaxPageAddr = offset, offset
		s.sawAnyAddr = true
		return
	}
	if offset < s.MinPageAddr {
		s.MinPageAddr = offset
	}
	if offset > s.MaxPageAddr {
		s.MaxPageAddr = offset
	}
}

// PlaceData copies a data block's payload into the slot, per spec.md
// §4.10: only the first copy of a given offset counts (an already
// datavalid block is not overwritten by a duplicate/redundant page).
func (s *Slot) PlaceData(offset uint32, payload [block.NDATA]byte) error {
	if offset%block.NDATA != 0 {
		return fmt.Errorf("reassembly: data offset %d not aligned to NDATA", offset)
	}
	idx := int(offset) / block.NDATA
	if idx < 0 || idx >= s.NBlock {
		return fmt.Errorf("reassembly: data offset %d out of range for datasize", offset)
	}
	s.observe(offset)
	if s.DataValid[idx] != Missing {
		return nil
	}
	copy(s.Data[idx*block.NDATA:(idx+1)*block.NDATA], payload[:])
	s.DataValid[idx] = Payload
	s.received.Set(uint(idx))
	s.NData++
	s.GoodBlocks++
	return nil
}

// PlaceParity records a parity block's payload for the group starting
// at offset, per spec.md §4.10.
func (s *Slot) PlaceParity(offset uint32, ngroup int, payload [block.NDATA]byte) error {
	if offset%block.NDATA != 0 {
		return fmt.Errorf("reassembly: parity offset %d not aligned to NDATA", offset)
	}
	blockIdx := int(offset) / block.NDATA
	groupIdx := s.groupOf(blockIdx)
	if groupIdx < 0 || groupIdx >= len(s.parityData) {
		return fmt.Errorf("reassembly: parity offset %d maps to an out-of-range group", offset)
	}
	s.observe(offset)
	s.parityData[groupIdx] = payload
	s.parityPresent[groupIdx] = true
	s.parity.Set(uint(groupIdx))
	return nil
}

// Complete reports whether every data block in the file has been
// recovered (spec.md §4.10: "ndata == nblock").
func (s *Slot) Complete() bool {
	return s.NData >= s.NBlock
}

// Assemble returns the reconstructed stream bytes, valid only once
// Complete() is true.
func (s *Slot) Assemble() []byte {
	return s.Data
}
