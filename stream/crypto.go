package stream

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2-HMAC-SHA256 iteration count. spec.md §9
	// flags this as unusually large and directs implementers to preserve
	// it exactly for wire compatibility rather than "modernise" it.
	Iterations = 524288
	// KeySize is the derived AES-256 key length in bytes.
	KeySize = 32
	// SaltSize and IVSize are both 16 bytes, stored per-superblock so any
	// single decoded page suffices to unlock the whole stream.
	SaltSize = 16
	IVSize   = 16
)

// DeriveKey runs PBKDF2-HMAC-SHA256 over password and salt for the
// fixed Iterations count, producing a KeySize-byte AES-256 key.
func DeriveKey(password string, salt [SaltSize]byte) []byte {
	return pbkdf2.Key([]byte(password), salt[:], Iterations, KeySize, sha256.New)
}

// NewSaltAndIV generates a fresh random salt and IV for one encrypt call.
func NewSaltAndIV() (salt [SaltSize]byte, iv [IVSize]byte, err error) {
	if _, err = rand.Read(salt[:]); err != nil {
		return salt, iv, fmt.Errorf("stream: generate salt: %w", err)
	}
	if _, err = rand.Read(iv[:]); err != nil {
		return salt, iv, fmt.Errorf("stream: generate iv: %w", err)
	}
	return salt, iv, nil
}

// Encrypt pads plaintext to a 16-byte boundary with PKCS#7 and encrypts
// it with AES-256-CBC under the key derived from password and salt.
func Encrypt(plaintext []byte, password string, salt [SaltSize]byte, iv [IVSize]byte) ([]byte, error) {
	block, err := aes.NewCipher(DeriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("stream: new cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt reverses Encrypt. It does not itself verify the result — the
// caller checks CRC-16 over the decrypted payload against the
// superblock's filecrc, per spec.md §4.3's BadPassword handling.
func Decrypt(ciphertext []byte, password string, salt [SaltSize]byte, iv [IVSize]byte) ([]byte, error) {
	block, err := aes.NewCipher(DeriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("stream: new cipher: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("stream: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+padLen)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("stream: cannot unpad empty buffer")
	}
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > len(b) {
		return nil, fmt.Errorf("stream: invalid pkcs7 padding length %d", padLen)
	}
	return b[:len(b)-padLen], nil
}
