package scan

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestRingPutGetRoundTrip(t *testing.T) {
	r := NewRing(2)
	pixels := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(pixels)

	if err := r.Put(1, pixels, 64, 64); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, w, h, ok := r.Get(1)
	if !ok {
		t.Fatal("expected a hit for a just-stored key")
	}
	if w != 64 || h != 64 {
		t.Fatalf("dims = %dx%d, want 64x64", w, h)
	}
	if !bytes.Equal(got, pixels) {
		t.Fatal("ring round trip did not reproduce the original pixels")
	}
}

func TestRingEvictsOldestBeyondSize(t *testing.T) {
	r := NewRing(2)
	page := func(b byte) []byte {
		p := make([]byte, 256)
		for i := range p {
			p[i] = b
		}
		return p
	}
	if err := r.Put(1, page(1), 16, 16); err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	if err := r.Put(2, page(2), 16, 16); err != nil {
		t.Fatalf("Put 2: %v", err)
	}
	if err := r.Put(3, page(3), 16, 16); err != nil {
		t.Fatalf("Put 3: %v", err)
	}
	if _, _, _, ok := r.Get(1); ok {
		t.Fatal("key 1 should have been evicted once the ring exceeded its size")
	}
	if _, _, _, ok := r.Get(2); !ok {
		t.Fatal("key 2 should still be retained")
	}
	if _, _, _, ok := r.Get(3); !ok {
		t.Fatal("key 3 should still be retained")
	}
}

func TestRingGetMissReturnsFalse(t *testing.T) {
	r := NewRing(2)
	if _, _, _, ok := r.Get(99); ok {
		t.Fatal("expected a miss for a key never stored")
	}
}
