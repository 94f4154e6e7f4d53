package reedsolomon

import "github.com/paperback-web/paperback/gf"

// Decode8 corrects errors in-place in data, which holds the full
// transmitted codeword suffix (message followed by parity,
// len(data) == 255-pad) before the CRC is re-checked by the caller. It
// returns the number of corrected symbol errors (0..MaxCorrectable), or
// -1 if the block is uncorrectable — in which case data may have been
// partially, incorrectly "corrected" and must be discarded by the
// caller.
//
// erasures holds indices into data whose positions are already known to
// be unreliable (e.g. from a torn scan); it is usually empty, since this
// codec's erasure recovery happens a layer up, via cross-block XOR
// parity rather than RS erasures — but the RS codec supports it as a
// general capability.
//
// The code's roots are not consecutive powers of alpha (step 11, not
// step 1), which breaks the textbook Berlekamp–Massey/Forney derivation
// that assumes step 1. Since 11 is coprime to 255, beta := alpha^11 is
// itself a primitive element of GF(2^8), so substituting
// d_i = c_i * (alpha^112)^i turns the strided syndromes S_j = r(alpha^112
// * beta^j) into the ordinary syndromes of D(x) = sum(d_i x^i) evaluated
// at consecutive powers of beta starting at beta^0. All of the algebra
// below (Berlekamp–Massey, Chien search, Forney) is therefore done in
// "beta-space": field values are computed as t.Pow(Step*exp) instead of
// t.Pow(exp), and the resulting error magnitude is un-twisted by
// alpha^(-112*position) before being applied to the real codeword byte.
func Decode8(data []byte, erasures []int, pad int) int {
	n := gf.FieldSize - pad
	if len(data) != n {
		panic("reedsolomon: Decode8 data length does not match pad")
	}
	if len(erasures) > NSYM {
		return -1
	}

	syn := syndromes(data, n)
	if allZero(syn[:]) {
		return 0
	}

	erasureLoc := erasureLocator(erasures, n)
	if len(erasureLoc)-1 > NSYM {
		return -1
	}

	forneySyn := convolveTruncate(syn[:], erasureLoc, NSYM)
	errLoc := berlekampMassey(forneySyn)

	lambda := polyMul(erasureLoc, errLoc)
	lambda = trim(lambda)
	v := len(lambda) - 1 // total errata count
	if v <= 0 || v > MaxCorrectable*2 {
		return -1
	}

	positions, ok := chienSearch(lambda, n)
	if !ok || len(positions) != v {
		return -1
	}

	omega := convolveTruncate(syn[:], lambda, NSYM)
	lambdaDeriv := formalDerivative(lambda)

	for _, pos := range positions {
		// Xk is the locator value in beta-space: beta^pos = alpha^(Step*pos).
		Xk := t.Pow(Step * pos)
		XkInv := t.Inv(Xk)
		num := t.Mul(Xk, polyEval(omega, XkInv))
		den := polyEval(lambdaDeriv, XkInv)
		if den == 0 {
			return -1
		}
		// Un-twist: the error found is in D-space (d_i = c_i*alpha^(FCR*i));
		// the real byte correction is eps = e' * alpha^(-FCR*pos).
		eps := t.Mul(t.Div(num, den), t.Pow(-FCR*pos))
		idx := n - 1 - pos
		if idx < 0 || idx >= n {
			return -1
		}
		data[idx] ^= eps
	}

	// Re-validate: a successful correction must drive every syndrome to
	// zero. This rejects error patterns that Chien/Forney "solved" for a
	// locator whose roots didn't actually correspond to real errors.
	if after := syndromes(data, n); !allZero(after[:]) {
		return -1
	}
	if v > MaxCorrectable {
		return -1
	}
	return v
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// syndromes evaluates the received word (n real bytes, descending degree
// n-1 down to 0, i.e. data[0] is the highest-degree coefficient) at the
// 32 roots alpha^(FCR+Step*j), j=0..31, via Horner's method.
func syndromes(data []byte, n int) [NSYM]byte {
	var s [NSYM]byte
	for j := 0; j < NSYM; j++ {
		root := t.Pow(FCR + Step*j)
		var acc byte
		for i := 0; i < n; i++ {
			acc = t.Mul(acc, root) ^ data[i]
		}
		s[j] = acc
	}
	return s
}

// erasureLocator builds Lambda0(x) = product(1 + Xk*x) for each erasure
// position (ascending coefficients, Lambda0[0]=1), with Xk = beta^pos,
// pos = n-1-idx matching the descending data/codeword convention.
func erasureLocator(erasures []int, n int) []byte {
	sigma := []byte{1}
	for _, idx := range erasures {
		pos := n - 1 - idx
		Xk := t.Pow(Step * pos)
		sigma = polyMul(sigma, []byte{1, Xk})
	}
	return sigma
}

// berlekampMassey finds the error-only locator polynomial (ascending,
// monic) from the Forney-modified syndromes S (which already account
// for known erasures).
func berlekampMassey(S []byte) []byte {
	C := []byte{1}
	B := []byte{1}
	L := 0
	m := 1
	b := byte(1)
	for nIdx := 0; nIdx < len(S); nIdx++ {
		delta := S[nIdx]
		for i := 1; i <= L && i < len(C); i++ {
			delta ^= t.Mul(C[i], S[nIdx-i])
		}
		if delta == 0 {
			m++
			continue
		}
		Tc := make([]byte, len(C))
		copy(Tc, C)
		coef := t.Div(delta, b)
		C = polyAddShifted(C, B, coef, m)
		if 2*L <= nIdx {
			L = nIdx + 1 - L
			B = Tc
			b = delta
			m = 1
		} else {
			m++
		}
	}
	return trim(C)
}

// chienSearch finds every root position p in [0, n) such that
// lambda(beta^-p) == 0, returning the corresponding positions (not data
// indices). ok is false only when no root is found; the caller compares
// the number of roots with deg(lambda).
func chienSearch(lambda []byte, n int) ([]int, bool) {
	var positions []int
	for pos := 0; pos < n; pos++ {
		x := t.Pow(-Step * pos)
		if polyEval(lambda, x) == 0 {
			positions = append(positions, pos)
		}
	}
	return positions, len(positions) > 0
}

func formalDerivative(p []byte) []byte {
	if len(p) <= 1 {
		return []byte{0}
	}
	out := make([]byte, len(p)-1)
	for k := 1; k < len(p); k++ {
		if k%2 == 1 {
			out[k-1] = p[k]
		}
	}
	return out
}

// polyMul convolves two ascending-order polynomials over GF(2^8).
func polyMul(a, b []byte) []byte {
	out := make([]byte, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			out[i+j] ^= t.Mul(av, bv)
		}
	}
	return out
}

// convolveTruncate computes (a*b) mod x^limit, ascending order.
func convolveTruncate(a, b []byte, limit int) []byte {
	out := make([]byte, limit)
	for i, av := range a {
		if av == 0 || i >= limit {
			continue
		}
		for j, bv := range b {
			if i+j >= limit {
				break
			}
			out[i+j] ^= t.Mul(av, bv)
		}
	}
	return out
}

// polyEval evaluates an ascending-order polynomial at x via Horner's method.
func polyEval(p []byte, x byte) byte {
	var acc byte
	for i := len(p) - 1; i >= 0; i-- {
		acc = t.Mul(acc, x) ^ p[i]
	}
	return acc
}

// polyAddShifted computes C(x) XOR coef*x^shift*B(x), ascending order.
func polyAddShifted(C, B []byte, coef byte, shift int) []byte {
	size := len(C)
	if need := len(B) + shift; need > size {
		size = need
	}
	out := make([]byte, size)
	copy(out, C)
	for i, bv := range B {
		out[i+shift] ^= t.Mul(coef, bv)
	}
	return out
}

// trim drops trailing zero high-degree coefficients, keeping at least
// the constant term.
func trim(p []byte) []byte {
	end := len(p)
	for end > 1 && p[end-1] == 0 {
		end--
	}
	return p[:end]
}
