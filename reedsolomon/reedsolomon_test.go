package reedsolomon

import (
	"math/rand"
	"testing"
)

func encodeCodeword(msgLen, pad int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	msg := make([]byte, msgLen)
	r.Read(msg)
	parity := Encode8(msg, pad)
	out := make([]byte, msgLen+NSYM)
	copy(out, msg)
	copy(out[msgLen:], parity[:])
	return out
}

func TestEncode8ParityLength(t *testing.T) {
	const pad = 165 // a 58-byte message; block itself frames a 96-byte message with Pad = 127
	msgLen := 255 - NSYM - pad
	cw := encodeCodeword(msgLen, pad, 1)
	if len(cw) != msgLen+NSYM {
		t.Fatalf("codeword length = %d, want %d", len(cw), msgLen+NSYM)
	}
}

func TestDecode8CleanCodewordReturnsZero(t *testing.T) {
	const pad = 165
	msgLen := 255 - NSYM - pad
	cw := encodeCodeword(msgLen, pad, 2)
	n := Decode8(cw, nil, pad)
	if n != 0 {
		t.Fatalf("Decode8 on clean codeword = %d, want 0", n)
	}
}

func TestDecode8CorrectsUpToMaxErrors(t *testing.T) {
	const pad = 165
	msgLen := 255 - NSYM - pad
	for errs := 1; errs <= MaxCorrectable; errs++ {
		cw := encodeCodeword(msgLen, pad, int64(100+errs))
		original := make([]byte, len(cw))
		copy(original, cw)

		r := rand.New(rand.NewSource(int64(errs)))
		positions := r.Perm(len(cw))[:errs]
		for _, p := range positions {
			var flip byte
			for flip == 0 {
				flip = byte(r.Intn(256))
			}
			cw[p] ^= flip
		}

		n := Decode8(cw, nil, pad)
		if n != errs {
			t.Fatalf("errs=%d: Decode8 returned %d, want %d", errs, n, errs)
		}
		for i := range cw {
			if cw[i] != original[i] {
				t.Fatalf("errs=%d: byte %d not restored: got %#02x want %#02x", errs, i, cw[i], original[i])
			}
		}
	}
}

func TestDecode8RejectsTooManyErrors(t *testing.T) {
	const pad = 165
	msgLen := 255 - NSYM - pad
	cw := encodeCodeword(msgLen, pad, 300)

	r := rand.New(rand.NewSource(301))
	positions := r.Perm(len(cw))[:MaxCorrectable+1]
	for _, p := range positions {
		var flip byte
		for flip == 0 {
			flip = byte(r.Intn(256))
		}
		cw[p] ^= flip
	}

	n := Decode8(cw, nil, pad)
	if n != -1 && n <= MaxCorrectable {
		t.Fatalf("Decode8 with %d errors returned %d, want -1 or a value > %d", MaxCorrectable+1, n, MaxCorrectable)
	}
	// The contract (spec §4.1) is: callers must treat n>=17 or n==-1 as bad.
	if n >= 0 && n <= MaxCorrectable {
		t.Fatalf("Decode8 silently accepted an uncorrectable codeword with n=%d", n)
	}
}

func TestDecode8WithErasures(t *testing.T) {
	const pad = 165
	msgLen := 255 - NSYM - pad
	cw := encodeCodeword(msgLen, pad, 5)
	original := make([]byte, len(cw))
	copy(original, cw)

	erasurePositions := []int{0, 3, 7}
	for _, p := range erasurePositions {
		cw[p] ^= 0xFF
	}

	n := Decode8(cw, erasurePositions, pad)
	if n < 0 {
		t.Fatalf("Decode8 with erasures failed, returned %d", n)
	}
	for i := range cw {
		if cw[i] != original[i] {
			t.Fatalf("byte %d not restored: got %#02x want %#02x", i, cw[i], original[i])
		}
	}
}

func TestGeneratorHasExpectedDegree(t *testing.T) {
	if len(generator) != NSYM+1 {
		t.Fatalf("generator degree = %d, want %d", len(generator)-1, NSYM)
	}
	if generator[0] != 1 {
		t.Fatalf("generator leading coefficient = %#02x, want 1 (monic)", generator[0])
	}
}

func TestEncode8PanicsOnWrongLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Encode8 did not panic on mismatched message length")
		}
	}()
	Encode8(make([]byte, 10), 165)
}
