package scan

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// defaultRingSize is the number of recently analyzed pages kept around
// for shift re-analysis, per spec.md §4.8 point 5 ("retry with a
// different dot-size guess"). Purely a memory/latency tradeoff: it
// never changes what a retry decodes, only whether the caller has to
// resubmit the bitmap to get it.
const defaultRingSize = 2

// pageEntry is one ring slot: an lz4-compressed grayscale buffer plus
// enough to reinflate and reinterpret it.
type pageEntry struct {
	key        int
	width      int
	height     int
	compressed []byte
	rawLen     int
}

// Ring retains the last few analyzed pages' grayscale buffers in
// compressed form, so a retry at a different dot-size guess can pull
// the original bitmap back out without the caller resubmitting it.
type Ring struct {
	size    int
	entries []pageEntry
	next    int
}

// NewRing constructs a page-retention ring of the given size. A
// non-positive size falls back to defaultRingSize.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = defaultRingSize
	}
	return &Ring{size: size}
}

// Put compresses pixels with lz4 and stores it under key (typically a
// page index), evicting the oldest entry once the ring is full.
func (r *Ring) Put(key int, pixels []byte, w, h int) error {
	bound := lz4.CompressBlockBound(len(pixels))
	dst := make([]byte, bound)
	var c lz4.Compressor
	n, err := c.CompressBlock(pixels, dst)
	if err != nil {
		return fmt.Errorf("scan: ring compress: %w", err)
	}
	entry := pageEntry{key: key, width: w, height: h, compressed: dst[:n], rawLen: len(pixels)}
	if n == 0 {
		// lz4 reports n==0 for incompressible input; retain the
		// original bytes uncompressed rather than lose the page.
		entry.compressed = append([]byte(nil), pixels...)
		entry.rawLen = -1 // sentinel: stored raw, skip decompression on Get
	}

	for i, e := range r.entries {
		if e.key == key {
			r.entries[i] = entry
			return nil
		}
	}
	if len(r.entries) < r.size {
		r.entries = append(r.entries, entry)
		return nil
	}
	r.entries[r.next] = entry
	r.next = (r.next + 1) % r.size
	return nil
}

// Get reinflates the page previously stored under key, if it is still
// in the ring.
func (r *Ring) Get(key int) (pixels []byte, w, h int, ok bool) {
	for _, e := range r.entries {
		if e.key != key {
			continue
		}
		if e.rawLen < 0 {
			return append([]byte(nil), e.compressed...), e.width, e.height, true
		}
		dst := make([]byte, e.rawLen)
		n, err := lz4.UncompressBlock(e.compressed, dst)
		if err != nil || n != e.rawLen {
			return nil, 0, 0, false
		}
		return dst, e.width, e.height, true
	}
	return nil, 0, 0, false
}
