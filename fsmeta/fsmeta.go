// Package fsmeta is an optional convenience layer for callers building
// a job.EncodeInput from a real filesystem path. Nothing in the core
// codec pipeline imports this package: file I/O is an external
// collaborator's job, not the codec's.
package fsmeta

import (
	"time"

	"github.com/pkg/xattr"
	times "gopkg.in/djherbis/times.v1"

	"github.com/paperback-web/paperback/block"
)

// attributeXattrName is the extended attribute a caller may have set on
// a file (e.g. mirroring a DOS attribute byte from a mounted exFAT
// share) to round-trip through the superblock's free-form Attrs byte.
const attributeXattrName = "user.paperback.attributes"

// ModTime reads the most precise modification time the platform
// exposes for path, preferring birth time when the filesystem records
// one, and returns it as a Windows FILETIME ready for
// block.Superblock.Modified.
func ModTime(path string) (uint64, error) {
	t, err := times.Stat(path)
	if err != nil {
		return 0, err
	}
	mt := t.ModTime()
	if t.HasBirthTime() {
		bt := t.BirthTime()
		if bt.Before(mt) {
			mt = bt
		}
	}
	return block.ToFileTime(unixMillis(mt)), nil
}

func unixMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// Attributes reads the attributeXattrName extended attribute into a
// single byte, for callers that want to preserve one byte of
// OS-specific metadata through the paper medium. Absence of xattr
// support on the platform/filesystem, or absence of the attribute
// itself, degrades to (0, nil): this is a convenience, never a
// contract, so it is never a fatal error.
func Attributes(path string) (byte, error) {
	v, err := xattr.Get(path, attributeXattrName)
	if err != nil {
		return 0, nil
	}
	if len(v) == 0 {
		return 0, nil
	}
	return v[0], nil
}

// SetAttributes writes b back into the attributeXattrName extended
// attribute, the inverse of Attributes, for a caller restoring a
// decoded file's metadata onto disk. Failure is non-fatal for the same
// reason Attributes degrades quietly: not every filesystem supports
// extended attributes.
func SetAttributes(path string, b byte) error {
	return xattr.Set(path, attributeXattrName, []byte{b})
}
