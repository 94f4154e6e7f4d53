package reassembly

import (
	"math/rand"
	"testing"

	"github.com/paperback-web/paperback/block"
)

func testSuperblock(datasize, pagesize uint32) block.Superblock {
	return block.Superblock{
		Name:     "test.bin",
		Datasize: datasize,
		Pagesize: pagesize,
		Origsize: datasize,
	}
}

func TestNewSlotComputesBlockAndPageCounts(t *testing.T) {
	sb := testSuperblock(1000, 450) // NDATA=90, redundancy=5 -> pagesize=5*90=450
	s, err := NewSlot(sb, 5)
	if err != nil {
		t.Fatalf("NewSlot: %v", err)
	}
	wantBlocks := 12 // ceil(1000/90)
	if s.NBlock != wantBlocks {
		t.Fatalf("NBlock = %d, want %d", s.NBlock, wantBlocks)
	}
	wantPages := 3 // ceil(1000/450)
	if s.NPages != wantPages {
		t.Fatalf("NPages = %d, want %d", s.NPages, wantPages)
	}
}

func TestNewSlotRejectsBadNGroup(t *testing.T) {
	sb := testSuperblock(1000, 450)
	if _, err := NewSlot(sb, 1); err == nil {
		t.Fatal("expected an error for ngroup below NGroupMin")
	}
	if _, err := NewSlot(sb, 11); err == nil {
		t.Fatal("expected an error for ngroup above NGroupMax")
	}
}

func TestPlaceDataFillsSlotAndMarksComplete(t *testing.T) {
	const redundancy = 2
	sb := testSuperblock(block.NDATA*4, block.NDATA*4)
	s, err := NewSlot(sb, redundancy)
	if err != nil {
		t.Fatalf("NewSlot: %v", err)
	}
	s.BeginPage()
	r := rand.New(rand.NewSource(1))
	for i := 0; i < s.NBlock; i++ {
		var payload [block.NDATA]byte
		r.Read(payload[:])
		if err := s.PlaceData(uint32(i*block.NDATA), payload); err != nil {
			t.Fatalf("PlaceData(%d): %v", i, err)
		}
	}
	if !s.Complete() {
		t.Fatal("slot not complete after placing every data block")
	}
	if s.GoodBlocks != s.NBlock {
		t.Fatalf("GoodBlocks = %d, want %d", s.GoodBlocks, s.NBlock)
	}
}

func TestPlaceDataDuplicateOffsetIgnored(t *testing.T) {
	sb := testSuperblock(block.NDATA*2, block.NDATA*2)
	s, err := NewSlot(sb, 2)
	if err != nil {
		t.Fatalf("NewSlot: %v", err)
	}
	s.BeginPage()
	var first, second [block.NDATA]byte
	for i := range first {
		first[i] = 1
		second[i] = 2
	}
	if err := s.PlaceData(0, first); err != nil {
		t.Fatalf("PlaceData first: %v", err)
	}
	if err := s.PlaceData(0, second); err != nil {
		t.Fatalf("PlaceData duplicate: %v", err)
	}
	if s.Data[0] != 1 {
		t.Fatal("duplicate PlaceData overwrote the original payload")
	}
	if s.NData != 1 {
		t.Fatalf("NData = %d after a duplicate placement, want 1", s.NData)
	}
}

func TestErasureRecoveryReconstructsMissingPayload(t *testing.T) {
	const redundancy = 4
	sb := testSuperblock(block.NDATA*redundancy, block.NDATA*redundancy)
	s, err := NewSlot(sb, redundancy)
	if err != nil {
		t.Fatalf("NewSlot: %v", err)
	}

	r := rand.New(rand.NewSource(2))
	payloads := make([][block.NDATA]byte, redundancy)
	for i := range payloads {
		r.Read(payloads[i][:])
	}
	parity := BuildParityPayload(payloads)

	s.BeginPage()
	missing := 2
	for i, p := range payloads {
		if i == missing {
			continue
		}
		if err := s.PlaceData(uint32(i*block.NDATA), p); err != nil {
			t.Fatalf("PlaceData(%d): %v", i, err)
		}
	}
	if err := s.PlaceParity(0, redundancy, parity); err != nil {
		t.Fatalf("PlaceParity: %v", err)
	}

	recovered := s.RecoverPage()
	if recovered != 1 {
		t.Fatalf("RecoverPage returned %d, want 1", recovered)
	}
	got := s.Data[missing*block.NDATA : (missing+1)*block.NDATA]
	for i := range got {
		if got[i] != payloads[missing][i] {
			t.Fatalf("recovered byte %d = %#02x, want %#02x", i, got[i], payloads[missing][i])
		}
	}
	if !s.Complete() {
		t.Fatal("slot should be complete after recovering its only missing block")
	}
	if s.RecoveredBlocks != 1 || s.RestoredBytes != block.NDATA {
		t.Fatalf("RecoveredBlocks=%d RestoredBytes=%d, want 1 and %d", s.RecoveredBlocks, s.RestoredBytes, block.NDATA)
	}
}

func TestErasureRecoveryRequiresExactlyOneMissing(t *testing.T) {
	const redundancy = 4
	sb := testSuperblock(block.NDATA*redundancy, block.NDATA*redundancy)
	s, err := NewSlot(sb, redundancy)
	if err != nil {
		t.Fatalf("NewSlot: %v", err)
	}
	r := rand.New(rand.NewSource(3))
	payloads := make([][block.NDATA]byte, redundancy)
	for i := range payloads {
		r.Read(payloads[i][:])
	}
	parity := BuildParityPayload(payloads)

	s.BeginPage()
	// Place only the first two of four data blocks: two are missing.
	for i := 0; i < 2; i++ {
		if err := s.PlaceData(uint32(i*block.NDATA), payloads[i]); err != nil {
			t.Fatalf("PlaceData(%d): %v", i, err)
		}
	}
	if err := s.PlaceParity(0, redundancy, parity); err != nil {
		t.Fatalf("PlaceParity: %v", err)
	}
	if recovered := s.RecoverPage(); recovered != 0 {
		t.Fatalf("RecoverPage recovered %d blocks with two missing, want 0", recovered)
	}
}

func TestStoreAddLookupAndTooManyFiles(t *testing.T) {
	st := NewStore()
	for i := 0; i < NFile; i++ {
		sb := testSuperblock(block.NDATA, block.NDATA)
		sb.Name = string(rune('a' + i))
		if _, err := st.Add(sb, 2); err != nil {
			t.Fatalf("Add file %d: %v", i, err)
		}
	}
	overflow := testSuperblock(block.NDATA, block.NDATA)
	overflow.Name = "overflow"
	if _, err := st.Add(overflow, 2); err == nil {
		t.Fatal("expected TooManyFiles when exceeding NFile distinct slots")
	}

	sb0 := testSuperblock(block.NDATA, block.NDATA)
	sb0.Name = "a"
	if _, ok := st.Lookup(sb0.Identity()); !ok {
		t.Fatal("Lookup failed to find a previously added slot by identity")
	}
}

func TestStoreAddSameIdentityReturnsExistingSlot(t *testing.T) {
	st := NewStore()
	sb := testSuperblock(block.NDATA, block.NDATA)
	first, err := st.Add(sb, 2)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := st.Add(sb, 2)
	if err != nil {
		t.Fatalf("Add (duplicate identity): %v", err)
	}
	if first != second {
		t.Fatal("Add with the same identity did not return the existing slot")
	}
}
