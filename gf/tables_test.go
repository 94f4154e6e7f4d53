package gf

import "testing"

func TestExpLogAreInverses(t *testing.T) {
	tb := Std()
	for i := 0; i < FieldSize; i++ {
		v := tb.Exp[i]
		if v == 0 {
			t.Fatalf("Exp[%d] == 0, antilog table must never produce zero", i)
		}
		if int(tb.Log[v]) != i {
			t.Fatalf("Log[Exp[%d]] = %d, want %d", i, tb.Log[v], i)
		}
	}
}

func TestExpTableDoubledForWraparound(t *testing.T) {
	tb := Std()
	for i := FieldSize; i < 510; i++ {
		if tb.Exp[i] != tb.Exp[i-FieldSize] {
			t.Fatalf("Exp[%d] = %#02x, want Exp[%d] = %#02x", i, tb.Exp[i], i-FieldSize, tb.Exp[i-FieldSize])
		}
	}
}

func TestMulByZeroIsZero(t *testing.T) {
	tb := Std()
	if tb.Mul(0, 0x53) != 0 || tb.Mul(0x53, 0) != 0 {
		t.Fatal("multiplying by zero must yield zero")
	}
}

func TestMulIsCommutative(t *testing.T) {
	tb := Std()
	for a := 1; a < 256; a++ {
		for b := 1; b < 256; b++ {
			if tb.Mul(byte(a), byte(b)) != tb.Mul(byte(b), byte(a)) {
				t.Fatalf("Mul(%#02x,%#02x) != Mul(%#02x,%#02x)", a, b, b, a)
			}
		}
	}
}

func TestDivUndoesMul(t *testing.T) {
	tb := Std()
	for a := 1; a < 256; a++ {
		for b := 1; b < 256; b++ {
			prod := tb.Mul(byte(a), byte(b))
			if got := tb.Div(prod, byte(b)); got != byte(a) {
				t.Fatalf("Div(Mul(%#02x,%#02x),%#02x) = %#02x, want %#02x", a, b, b, got, a)
			}
		}
	}
}

func TestInvIsMultiplicativeInverse(t *testing.T) {
	tb := Std()
	for a := 1; a < 256; a++ {
		inv := tb.Inv(byte(a))
		if got := tb.Mul(byte(a), inv); got != 1 {
			t.Fatalf("Mul(%#02x, Inv(%#02x)=%#02x) = %#02x, want 1", a, a, inv, got)
		}
	}
}

func TestPowWrapsNegativeExponents(t *testing.T) {
	tb := Std()
	for _, exp := range []int{-1, -255, -509, 0, 254, 255, 509} {
		got := tb.Pow(exp)
		want := tb.Pow(((exp % FieldSize) + FieldSize) % FieldSize)
		if got != want {
			t.Fatalf("Pow(%d) = %#02x, want %#02x", exp, got, want)
		}
	}
	if tb.Pow(0) != 1 {
		t.Fatalf("Pow(0) = %#02x, want 1", tb.Pow(0))
	}
}

func TestAlphaIsPrimitive(t *testing.T) {
	tb := Std()
	seen := make(map[byte]bool)
	x := byte(1)
	for i := 0; i < FieldSize; i++ {
		if seen[x] {
			t.Fatalf("alpha^%d repeated a value already seen; alpha is not primitive over %d elements", i, FieldSize)
		}
		seen[x] = true
		x = tb.Mul(x, Alpha)
	}
	if x != 1 {
		t.Fatalf("alpha^%d = %#02x, want 1 (cycle must close)", FieldSize, x)
	}
}
