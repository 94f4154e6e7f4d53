// Package stream implements the two adapters layered around the raw
// file bytes before they are cut into blocks: gzip compression and
// PBKDF2/AES-256-CBC encryption.
package stream

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Compress gzips b at level 9. Called only when EncodeOptions.Compress > 0.
func Compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("stream: new gzip writer: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return nil, fmt.Errorf("stream: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("stream: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates a gzip stream. Per spec.md §4.3, an invalid
// stream is DecompressFailed; a valid stream whose decompressed length
// does not match origsize is not an error here — the caller compares
// lengths itself and decides whether to deliver the truncated prefix.
func Decompress(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("stream: new gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("stream: gzip read: %w", err)
	}
	return out, nil
}
