package stream

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("paperback web storage "), 500)
	compressed, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Fatalf("compressed size %d not smaller than original %d for repetitive input", len(compressed), len(data))
	}
	got, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("decompressed output does not match original")
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := Decompress([]byte("not a gzip stream")); err == nil {
		t.Fatal("expected an error decompressing a non-gzip buffer")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	salt, iv, err := NewSaltAndIV()
	if err != nil {
		t.Fatalf("NewSaltAndIV: %v", err)
	}
	plaintext := []byte("Hello world, this message is not a multiple of 16 bytes.")
	ciphertext, err := Encrypt(plaintext, "correct horse battery staple", salt, iv)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(ciphertext)%16 != 0 {
		t.Fatalf("ciphertext length %d not a multiple of the AES block size", len(ciphertext))
	}
	got, err := Decrypt(ciphertext, "correct horse battery staple", salt, iv)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("decrypted output does not match original plaintext")
	}
}

func TestDecryptWithWrongPasswordProducesGarbage(t *testing.T) {
	salt, iv, err := NewSaltAndIV()
	if err != nil {
		t.Fatalf("NewSaltAndIV: %v", err)
	}
	plaintext := bytes.Repeat([]byte("x"), 64)
	ciphertext, err := Encrypt(plaintext, "correct horse battery staple", salt, iv)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := Decrypt(ciphertext, "correct horse battery stapler", salt, iv)
	// A wrong key leaves a random final byte. pkcs7Unpad checks only that
	// it is nonzero and no larger than the buffer, so Decrypt may either
	// report an error or return a truncated garbage buffer; either way it
	// must not reproduce the plaintext.
	if err == nil && bytes.Equal(got, plaintext) {
		t.Fatal("decryption with the wrong password unexpectedly reproduced the plaintext")
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	var salt [SaltSize]byte
	rand.New(rand.NewSource(1)).Read(salt[:])
	k1 := DeriveKey("hunter2", salt)
	k2 := DeriveKey("hunter2", salt)
	if !bytes.Equal(k1, k2) {
		t.Fatal("DeriveKey is not deterministic for the same password and salt")
	}
	if len(k1) != KeySize {
		t.Fatalf("DeriveKey length = %d, want %d", len(k1), KeySize)
	}
}

func TestDeriveKeyDiffersBySalt(t *testing.T) {
	var salt1, salt2 [SaltSize]byte
	rand.New(rand.NewSource(1)).Read(salt1[:])
	rand.New(rand.NewSource(2)).Read(salt2[:])
	if bytes.Equal(DeriveKey("hunter2", salt1), DeriveKey("hunter2", salt2)) {
		t.Fatal("DeriveKey produced the same key for two different salts")
	}
}
