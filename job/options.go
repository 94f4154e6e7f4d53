package job

import (
	"fmt"

	"github.com/paperback-web/paperback/block"
)

// defaultPaperWidth1000/Height1000 are A4 in thousandths of an inch,
// matching spec.md §6's default paper size.
const (
	defaultPaperWidth1000  uint32 = 8270
	defaultPaperHeight1000 uint32 = 11690
	defaultBorderPx               = 10
)

// EncodeOptions mirrors spec.md §6's option enumeration.
type EncodeOptions struct {
	DPI             int
	DotPercent      int
	Redundancy      int
	Compress        int // any value 1..9 turns gzip on, always at level 9 (stream.Compress); ApplyDefaults replaces a zero value with 9, so an explicit "off" is not distinguished from unset
	Encryption      bool
	Password        string
	PrintBorder     bool
	PaperWidth1000  uint32
	PaperHeight1000 uint32
}

// ApplyDefaults fills zero-valued fields with spec.md §6's defaults.
func (o *EncodeOptions) ApplyDefaults() {
	if o.DPI == 0 {
		o.DPI = 200
	}
	if o.DotPercent == 0 {
		o.DotPercent = 70
	}
	if o.Redundancy == 0 {
		o.Redundancy = 5
	}
	if o.Compress == 0 {
		o.Compress = 9
	}
	if o.PaperWidth1000 == 0 {
		o.PaperWidth1000 = defaultPaperWidth1000
	}
	if o.PaperHeight1000 == 0 {
		o.PaperHeight1000 = defaultPaperHeight1000
	}
}

// Validate checks every field against spec.md §6's bounds, returning an
// InvalidParameter error naming the offending field on the first
// violation found.
func (o EncodeOptions) Validate() error {
	if o.DPI < 40 || o.DPI > 600 {
		return invalidParameter("DPI", errRange(o.DPI, 40, 600))
	}
	if o.DotPercent < 50 || o.DotPercent > 100 {
		return invalidParameter("DotPercent", errRange(o.DotPercent, 50, 100))
	}
	if o.Redundancy < block.NGroupMin || o.Redundancy > block.NGroupMax {
		return invalidParameter("Redundancy", errRange(o.Redundancy, block.NGroupMin, block.NGroupMax))
	}
	if o.Compress < 0 || o.Compress > 9 {
		return invalidParameter("Compress", errRange(o.Compress, 0, 9))
	}
	if o.Encryption && o.Password == "" {
		return invalidParameter("Password", errEmpty("encryption requested without a password"))
	}
	if o.PaperWidth1000 == 0 || o.PaperHeight1000 == 0 {
		return invalidParameter("PaperWidth1000/PaperHeight1000", errEmpty("paper dimensions must be nonzero"))
	}
	return nil
}

// DecodeOptions mirrors spec.md §6's decode option surface.
type DecodeOptions struct {
	Password        string
	KeepDiagnostics bool
}

func errRange(got, lo, hi int) error {
	return &rangeError{got: got, lo: lo, hi: hi}
}

type rangeError struct {
	got, lo, hi int
}

func (e *rangeError) Error() string {
	return fmt.Sprintf("%d out of range [%d,%d]", e.got, e.lo, e.hi)
}

func errEmpty(msg string) error {
	return &emptyError{msg: msg}
}

type emptyError struct {
	msg string
}

func (e *emptyError) Error() string {
	return e.msg
}
