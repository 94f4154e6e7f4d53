// Package reedsolomon implements the RS(255,223) codec used to protect
// every 128-byte framed block. The code is a BCH(255,223) code over
// GF(2^8) with first consecutive root alpha^112 and a root step of 11
// (not 1) — these two constants must never change, or pages printed
// against a prior build of this codec become unreadable.
package reedsolomon

import "github.com/paperback-web/paperback/gf"

const (
	// NSYM is the number of RS parity bytes per codeword (ECC_SIZE).
	NSYM = 32
	// FCR is the exponent of the first consecutive root, alpha^FCR.
	FCR = 112
	// Step is the exponent stride between consecutive roots.
	Step = 11
	// MaxCorrectable is the largest error count Decode8 will accept.
	MaxCorrectable = 16
)

var t = gf.Std()

// generator is the degree-32 generator polynomial, coefficients in
// descending order (generator[0] is the x^32 coefficient, implicitly 1).
var generator = buildGenerator()

func buildGenerator() []byte {
	gen := []byte{1}
	for i := 0; i < NSYM; i++ {
		root := t.Pow(FCR + Step*i)
		gen = mulMonomialDesc(gen, root)
	}
	return gen
}

// mulMonomialDesc multiplies a descending-order polynomial p by (x + root).
func mulMonomialDesc(p []byte, root byte) []byte {
	out := make([]byte, len(p)+1)
	for i := range out {
		var a, b byte
		if i < len(p) {
			a = p[i]
		}
		if i > 0 {
			b = t.Mul(p[i-1], root)
		}
		out[i] = a ^ b
	}
	return out
}

// Encode8 computes the 32 RS parity bytes for message. message must have
// length 255-NSYM-pad; pad is the count of virtual leading zero bytes
// that would extend the shortened codeword to the full 255 bytes (these
// are never transmitted and never affect the parity, since they are
// always zero).
func Encode8(message []byte, pad int) [NSYM]byte {
	msgLen := gf.FieldSize - NSYM - pad
	if len(message) != msgLen {
		panic("reedsolomon: Encode8 message length does not match pad")
	}
	buf := make([]byte, msgLen+NSYM)
	copy(buf, message)
	for i := 0; i < msgLen; i++ {
		coef := buf[i]
		if coef == 0 {
			continue
		}
		for j, g := range generator {
			buf[i+j] ^= t.Mul(g, coef)
		}
	}
	var parity [NSYM]byte
	copy(parity[:], buf[msgLen:])
	return parity
}
