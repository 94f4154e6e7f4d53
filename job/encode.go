package job

import (
	"fmt"
	"strings"

	"github.com/paperback-web/paperback/block"
	"github.com/paperback-web/paperback/crc16"
	"github.com/paperback-web/paperback/page"
	"github.com/paperback-web/paperback/reassembly"
	"github.com/paperback-web/paperback/stream"
)

// EncodeInput is spec.md §6's encode input tuple plus options.
type EncodeInput struct {
	Filename   string
	Bytes      []byte
	ModifiedMS int64
	Options    EncodeOptions
}

type encStage int

const (
	encPrepare encStage = iota
	encCompress
	encEncrypt
	encLayout
	encEmitPage
	encDone
)

type encodeState struct {
	input EncodeInput
	opts  EncodeOptions
	stage encStage

	payload  []byte
	mode     byte
	salt, iv [16]byte
	filecrc  uint16 // CRC-16 of payload as it stands immediately before encryption (or the final bytes, if encryption is off)

	geo        page.Geometry
	dataFrames []block.Frame // nblock frames, in stream order
	sbTemplate block.Superblock

	totalPages int
	pageIndex  int
}

// NewEncodeJob constructs an encode job. Options are defaulted and
// validated synchronously, since an InvalidParameter is a job-creation
// failure, not a progress update (spec.md §7: "fatal for the job").
func NewEncodeJob(in EncodeInput) (*Job, error) {
	opts := in.Options
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	j := newJob(kindEncode, "encode")
	j.enc = &encodeState{input: in, opts: opts, stage: encPrepare}
	return j, nil
}

func (j *Job) nextEncode() Update {
	s := j.enc
	switch s.stage {
	case encPrepare:
		s.stage = encCompress
		return Update{Status: StatusRunning, Progress: 0}

	case encCompress:
		payload := s.input.Bytes
		if s.opts.Compress > 0 {
			compressed, err := stream.Compress(payload)
			if err != nil {
				j.log.WithError(err).Error("compress failed")
				return Update{Status: StatusError, Err: newError(DecompressFailed, err)}
			}
			payload = compressed
			s.mode |= block.ModeCompressed
		}
		s.payload = payload
		// Computed here, before encryption: lets the decoder validate a
		// password by checking this CRC immediately after decrypting,
		// without first having to attempt decompression.
		s.filecrc = crc16.Checksum(payload)
		s.stage = encEncrypt
		return Update{Status: StatusRunning, Progress: 10}

	case encEncrypt:
		if s.opts.Encryption {
			salt, iv, err := stream.NewSaltAndIV()
			if err != nil {
				j.log.WithError(err).Error("salt/iv generation failed")
				return Update{Status: StatusError, Err: newError(InvalidParameter, err)}
			}
			ciphertext, err := stream.Encrypt(s.payload, s.opts.Password, salt, iv)
			if err != nil {
				j.log.WithError(err).Error("encrypt failed")
				return Update{Status: StatusError, Err: newError(InvalidParameter, err)}
			}
			s.payload = ciphertext
			s.salt, s.iv = salt, iv
			s.mode |= block.ModeEncrypted
		}
		s.stage = encLayout
		return Update{Status: StatusRunning, Progress: 20}

	case encLayout:
		if err := s.layout(); err != nil {
			j.log.WithError(err).Error("layout failed")
			return Update{Status: StatusError, Err: newError(InvalidParameter, err)}
		}
		s.stage = encEmitPage
		return Update{Status: StatusRunning, Progress: 30}

	case encEmitPage:
		if s.pageIndex >= s.totalPages {
			s.stage = encDone
			return Update{Status: StatusDone, Progress: 100}
		}
		pg := s.emitPage(s.pageIndex)
		j.log.WithField("page_index", s.pageIndex).Info("page emitted")
		s.pageIndex++
		progress := 30 + (70 * s.pageIndex / s.totalPages)
		status := StatusRunning
		if s.pageIndex >= s.totalPages {
			status = StatusDone
			progress = 100
		}
		return Update{Status: status, Progress: progress, Page: pg}

	default:
		return Update{Status: StatusDone, Progress: 100}
	}
}

// layout computes the page geometry, splits the payload into NDATA-byte
// data blocks, and prepares the superblock template shared by every
// page (only the Page field differs between pages, spec.md §3).
func (s *encodeState) layout() error {
	geo, err := page.NewGeometry(s.opts.DPI, s.opts.DotPercent, s.opts.Redundancy, borderOrZero(s.opts), s.opts.PaperWidth1000, s.opts.PaperHeight1000)
	if err != nil {
		return err
	}
	s.geo = geo

	nblock := (len(s.payload) + block.NDATA - 1) / block.NDATA
	if nblock == 0 {
		nblock = 0 // a zero-length file still gets one superblock-only page
	}
	s.dataFrames = make([]block.Frame, nblock)
	for i := 0; i < nblock; i++ {
		var data [block.NDATA]byte
		start := i * block.NDATA
		end := start + block.NDATA
		if end > len(s.payload) {
			end = len(s.payload)
		}
		copy(data[:], s.payload[start:end])
		s.dataFrames[i] = block.Frame{Addr: uint32(start), Data: data}
	}

	ngroupsTotal := (nblock + s.opts.Redundancy - 1) / s.opts.Redundancy
	s.totalPages = (ngroupsTotal + geo.GroupsPerPage - 1) / geo.GroupsPerPage
	if s.totalPages < 1 {
		s.totalPages = 1
	}

	s.sbTemplate = block.Superblock{
		Datasize:   uint32(len(s.payload)),
		Pagesize:   uint32(geo.PageSize),
		Origsize:   uint32(len(s.input.Bytes)),
		Mode:       s.mode,
		Redundancy: byte(s.opts.Redundancy),
		Modified:   block.ToFileTime(s.input.ModifiedMS),
		Filecrc:    s.filecrc,
		Name:       s.input.Filename,
		Salt:       s.salt,
		IV:         s.iv,
	}
	return nil
}

func borderOrZero(o EncodeOptions) int {
	if o.PrintBorder {
		return defaultBorderPx
	}
	return 0
}

// buildPageBlocks computes the packed superblock, data-block, and
// parity-block buffers for pageIndex, before rasterization. Split out
// of emitPage so tests can corrupt individual block buffers (spec.md
// §8 scenarios 4-5) between construction and painting.
func (s *encodeState) buildPageBlocks(pageIndex int) (sbBuf [block.Size]byte, dataBlocks, parityBlocks [][block.Size]byte) {
	groupsPerPage := s.geo.GroupsPerPage
	redundancy := s.opts.Redundancy

	sb := s.sbTemplate
	sb.Page = uint16(pageIndex)
	sbFrame, _ := sb.Frame()
	sbBuf = sbFrame.Pack()

	dataBlocks = make([][block.Size]byte, groupsPerPage*redundancy)
	parityBlocks = make([][block.Size]byte, groupsPerPage)
	for i := range dataBlocks {
		dataBlocks[i] = sbBuf
	}
	for i := range parityBlocks {
		parityBlocks[i] = sbBuf
	}

	for g := 0; g < groupsPerPage; g++ {
		globalGroup := pageIndex*groupsPerPage + g
		start := globalGroup * redundancy
		var payloads [][block.NDATA]byte
		for m := 0; m < redundancy; m++ {
			blockIdx := start + m
			if blockIdx >= len(s.dataFrames) {
				break
			}
			f := s.dataFrames[blockIdx]
			dataBlocks[m*groupsPerPage+g] = f.Pack()
			payloads = append(payloads, f.Data)
		}
		if len(payloads) == 0 {
			continue
		}
		parityAddr := block.ParityAddr(uint32(start*block.NDATA), redundancy)
		parityFrame := block.Frame{Addr: parityAddr, Data: reassembly.BuildParityPayload(payloads)}
		parityBlocks[g] = parityFrame.Pack()
	}
	return sbBuf, dataBlocks, parityBlocks
}

// emitPage builds the block list for pageIndex and paints it.
func (s *encodeState) emitPage(pageIndex int) *Page {
	sbBuf, dataBlocks, parityBlocks := s.buildPageBlocks(pageIndex)

	raster := page.Paint(s.geo, sbBuf, dataBlocks, parityBlocks, s.opts.PrintBorder)

	return &Page{
		Filename:  pageFilename(s.input.Filename, pageIndex, s.totalPages),
		PageIndex: pageIndex,
		Pixels:    raster.Pixels,
		Width:     raster.Width,
		Height:    raster.Height,
	}
}

// pageFilename implements spec.md §6's output naming rule.
func pageFilename(name string, pageIndex, totalPages int) string {
	if totalPages <= 1 {
		return name
	}
	stem, ext := splitExt(name)
	return fmt.Sprintf("%s_%04d%s", stem, pageIndex, ext)
}

func splitExt(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}
