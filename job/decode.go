package job

import (
	"fmt"

	"github.com/paperback-web/paperback/block"
	"github.com/paperback-web/paperback/crc16"
	"github.com/paperback-web/paperback/reassembly"
	"github.com/paperback-web/paperback/scan"
	"github.com/paperback-web/paperback/stream"
	"github.com/ulikunitz/xz"
)

const (
	minBitmapDim = 128
	maxBitmapDim = 32768
)

// DecodeImage is spec.md §6's decode input element: one scanned page.
type DecodeImage struct {
	Width, Height int
	Pixels        []byte
}

type decStage int

const (
	decWaiting decStage = iota
	decLoadBitmap
	decFindGrid
	decFindAngles
	decPrepare
	decDecodeBlock
	decFinish
)

type decodeState struct {
	opts  DecodeOptions
	store *reassembly.Store

	pending []DecodeImage

	stage decStage
	img   DecodeImage
	grid  scan.Grid
	nx    int
	ny    int
	posX  int
	posY  int

	curSlot *reassembly.Slot

	finished []*DecodedFile

	ring    *scan.Ring
	pageSeq int
}

// NewDecodeJob constructs a decode job with an empty page queue. Pages
// are supplied one at a time via SubmitPage.
func NewDecodeJob(opts DecodeOptions) *Job {
	j := newJob(kindDecode, "decode")
	j.dec = &decodeState{opts: opts, store: reassembly.NewStore(), stage: decWaiting, ring: scan.NewRing(0)}
	return j
}

// SubmitPage enqueues one scanned page. Pages must be submitted in the
// order spec.md §6 requires (numeric collation of filename); the
// decoder does not reorder them. Bitmap-dimension validation happens
// here so a single UnsupportedBitmap page does not abort the job.
func (j *Job) SubmitPage(img DecodeImage) error {
	if j.kind != kindDecode {
		return fmt.Errorf("job: SubmitPage called on a non-decode job")
	}
	if img.Width < minBitmapDim || img.Width > maxBitmapDim || img.Height < minBitmapDim || img.Height > maxBitmapDim {
		return newError(UnsupportedBitmap, fmt.Errorf("dimensions %dx%d outside [%d,%d]", img.Width, img.Height, minBitmapDim, maxBitmapDim))
	}
	if len(img.Pixels) != img.Width*img.Height {
		return newError(UnsupportedBitmap, fmt.Errorf("pixel buffer length %d != %d*%d", len(img.Pixels), img.Width, img.Height))
	}
	j.dec.pending = append(j.dec.pending, img)
	return nil
}

func (j *Job) nextDecode() Update {
	s := j.dec
	switch s.stage {
	case decWaiting:
		if len(s.pending) == 0 {
			return Update{Status: StatusWaitingForPage}
		}
		s.img, s.pending = s.pending[0], s.pending[1:]
		s.stage = decLoadBitmap
		return Update{Status: StatusRunning, Progress: 0}

	case decLoadBitmap:
		s.pageSeq++
		if err := s.ring.Put(s.pageSeq, s.img.Pixels, s.img.Width, s.img.Height); err != nil {
			j.log.WithError(err).Warn("page retention ring failed to retain page, continuing without retry cache")
		}
		s.stage = decFindGrid
		return Update{Status: StatusRunning, Progress: 10}

	case decFindGrid:
		grid, err := scan.Locate(s.img.Pixels, s.img.Width, s.img.Height)
		if err != nil {
			j.log.WithError(err).Warn("grid not found")
			diag := s.buildDiagnostics()
			s.stage = decWaiting
			return Update{Status: StatusRunning, Progress: 0, Err: newError(GridNotFound, err), Diagnostics: diag}
		}
		s.grid = grid
		s.stage = decFindAngles
		return Update{Status: StatusRunning, Progress: 20}

	case decFindAngles:
		// XAngle/YAngle are already computed by scan.Locate; this stage
		// exists to mirror spec.md §4.11's four-step decode preamble.
		bx := s.grid.Bounds.XMax - s.grid.Bounds.XMin
		by := s.grid.Bounds.YMax - s.grid.Bounds.YMin
		s.nx = int(float64(bx)/s.grid.X.Step) + 1
		s.ny = int(float64(by)/s.grid.Y.Step) + 1
		if s.nx < 1 {
			s.nx = 1
		}
		if s.ny < 1 {
			s.ny = 1
		}
		s.stage = decPrepare
		return Update{Status: StatusRunning, Progress: 30}

	case decPrepare:
		s.posX, s.posY = 0, 0
		if s.curSlot != nil {
			s.curSlot.BeginPage()
		}
		s.stage = decDecodeBlock
		return Update{Status: StatusRunning, Progress: 40}

	case decDecodeBlock:
		return s.decodeNextBlock(j)

	case decFinish:
		if s.curSlot != nil && !s.curSlot.Complete() {
			recovered := s.curSlot.RecoverPage()
			j.stats.RecoveredBlocks += recovered
			j.stats.RestoredBytes += recovered * block.NDATA
		}
		if s.curSlot != nil && s.curSlot.Complete() {
			df := &DecodedFile{Filename: s.curSlot.Identity.Name}
			bytes, err := s.emitFile(j, s.curSlot)
			if err != nil {
				s.stage = decWaiting
				return Update{Status: StatusRunning, Progress: 0, Err: err}
			}
			df.Bytes = bytes
			s.finished = append(s.finished, df)
			s.store.Remove(s.curSlot)
			s.curSlot = nil
			s.stage = decWaiting
			return Update{Status: StatusRunning, Progress: 100, Result: df, Files: s.finished}
		}
		var diag *Diagnostics
		if s.curSlot != nil {
			j.log.Warn("page incomplete, continuing with subsequent pages")
			diag = s.buildDiagnostics()
		}
		s.stage = decWaiting
		return Update{Status: StatusRunning, Progress: 100, Files: s.finished, Diagnostics: diag}

	default:
		return Update{Status: StatusDone, Progress: 100}
	}
}

// decodeNextBlock samples and reassembles exactly one cell position,
// then advances the cursor (or moves to decFinish once the page's
// cells are exhausted).
func (s *decodeState) decodeNextBlock(j *Job) Update {
	if s.posY >= s.ny {
		s.stage = decFinish
		return Update{Status: StatusRunning, Progress: 90}
	}

	pos := scan.BlockPosition{PosX: s.posX, PosY: s.posY, NPosY: s.ny}
	frame, _, err := scan.SampleBlock(s.img.Pixels, s.img.Width, s.img.Height, s.grid, pos)
	s.advanceCursor()

	if err != nil {
		j.stats.BadBlocks++
		// Uncorrectable at the single-block level: non-fatal to the job,
		// cross-block XOR parity (reassembly.Slot.RecoverPage) may still
		// recover it once the page completes.
		return Update{Status: StatusRunning, Progress: s.blockProgress(), Err: newError(BlockUncorrectable, err)}
	}
	j.stats.GoodBlocks++

	if frame.IsSuperblock() {
		sb, err := block.ParseSuperblock(frame)
		if err == nil {
			slot, addErr := s.store.Add(sb, int(sb.Redundancy))
			if addErr != nil {
				// TooManyFiles is fatal for the new file only (spec.md §7);
				// the job keeps decoding whatever file it already tracks.
				j.log.WithError(addErr).Warn("too many concurrent files, dropping new superblock")
				return Update{Status: StatusRunning, Progress: s.blockProgress(), Err: newError(TooManyFiles, addErr)}
			}
			if s.curSlot != slot {
				s.curSlot = slot
				s.curSlot.BeginPage()
			}
		}
		return Update{Status: StatusRunning, Progress: s.blockProgress()}
	}

	if s.curSlot == nil {
		return Update{Status: StatusRunning, Progress: s.blockProgress()}
	}

	if frame.NGroup() > 0 {
		if placeErr := s.curSlot.PlaceParity(frame.Offset(), frame.NGroup(), frame.Data); placeErr != nil {
			j.log.WithError(placeErr).Warn("parity block rejected")
		}
	} else {
		if placeErr := s.curSlot.PlaceData(frame.Offset(), frame.Data); placeErr != nil {
			j.log.WithError(placeErr).Warn("data block rejected")
		}
	}
	return Update{Status: StatusRunning, Progress: s.blockProgress()}
}

func (s *decodeState) advanceCursor() {
	s.posX++
	if s.posX >= s.nx {
		s.posX = 0
		s.posY++
	}
}

func (s *decodeState) blockProgress() int {
	total := s.nx * s.ny
	if total == 0 {
		return 90
	}
	done := s.posY*s.nx + s.posX
	p := 40 + (50 * done / total)
	if p > 90 {
		p = 90
	}
	return p
}

// emitFile decrypts/decompresses the reassembled stream, validates it,
// and returns the original bytes. Filecrc is checked immediately after
// decryption and before decompression: stream.Decrypt on a wrong
// password rarely errors by itself (PKCS#7 padding is only loosely
// validated, see stream/stream_test.go), so checking the CRC before
// handing garbage to gzip is what lets a wrong password surface as
// BadPassword instead of a misleading DecompressFailed.
func (s *decodeState) emitFile(j *Job, slot *reassembly.Slot) ([]byte, error) {
	payload := slot.Assemble()
	sb := slot.Superblock

	if sb.Mode&block.ModeEncrypted != 0 {
		decrypted, err := stream.Decrypt(payload, s.opts.Password, sb.Salt, sb.IV)
		if err != nil {
			j.log.Warn("decrypt failed")
			return nil, newError(BadPassword, err)
		}
		payload = decrypted
	}

	if crc16.Checksum(payload) != sb.Filecrc {
		if sb.Mode&block.ModeEncrypted != 0 {
			return nil, newError(BadPassword, fmt.Errorf("filecrc mismatch after decryption"))
		}
		j.log.Warn("filecrc mismatch on reassembled payload")
	}

	if sb.Mode&block.ModeCompressed != 0 {
		decompressed, err := stream.Decompress(payload)
		if err != nil {
			j.log.WithError(err).Error("decompress failed")
			return nil, newError(DecompressFailed, err)
		}
		payload = decompressed
	}

	if uint32(len(payload)) != sb.Origsize {
		j.log.Warn("decoded length does not match origsize, delivering truncated prefix")
	}
	return payload, nil
}

// buildDiagnostics compresses the current page buffer with xz for
// offline triage, if the caller opted in.
func (s *decodeState) buildDiagnostics() *Diagnostics {
	if !s.opts.KeepDiagnostics {
		return nil
	}
	// Pull the page back out of the retention ring rather than reaching
	// into s.img directly: this is the same path a dot-size retry would
	// use to recover the bitmap without the caller resubmitting it.
	pixels, w, h, ok := s.ring.Get(s.pageSeq)
	if !ok {
		pixels, w, h = s.img.Pixels, s.img.Width, s.img.Height
	}
	snapshot, err := xzCompress(pixels)
	if err != nil {
		return nil
	}
	return &Diagnostics{Width: w, Height: h, Snapshot: snapshot}
}

func xzCompress(b []byte) ([]byte, error) {
	var buf fixedBuffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// fixedBuffer is a minimal io.Writer sink; avoids pulling in bytes.Buffer
// just to satisfy xz.NewWriter's io.Writer parameter.
type fixedBuffer struct {
	data []byte
}

func (b *fixedBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
