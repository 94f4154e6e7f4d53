package job

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// JobStatus is the coarse phase reported on every Update.
type JobStatus string

const (
	StatusRunning JobStatus = "running"
	// StatusWaitingForPage is a decode-job-only status: the state
	// machine has drained every page submitted so far and is waiting for
	// SubmitPage to be called again.
	StatusWaitingForPage JobStatus = "waiting_for_page"
	StatusDone           JobStatus = "done"
	StatusError          JobStatus = "error"
)

// ReassemblyStats mirrors the per-block/page counters spec.md §7
// requires the caller be able to read back, independent of the log
// lines emitted for the same conditions.
type ReassemblyStats struct {
	GoodBlocks      int
	BadBlocks       int
	RecoveredBlocks int
	RestoredBytes   int
}

// Diagnostics carries an opt-in compressed snapshot of the page buffer
// that triggered a GridNotFound or PageIncomplete condition, for
// offline triage. Populated only when DecodeOptions.KeepDiagnostics is
// set (spec.md §7).
type Diagnostics struct {
	Width, Height int
	// Snapshot is the page's grayscale buffer, xz-compressed.
	Snapshot []byte
}

// DecodedFile is one file produced by a decode job.
type DecodedFile struct {
	Filename string
	Bytes    []byte
}

// Page is one page emitted by an encode job: spec.md §6's encode
// output element. Filename is "<stem>_<pageIndex:04d>.<ext>" when the
// job spans more than one page, else "<stem>.<ext>".
type Page struct {
	Filename  string
	PageIndex int
	Pixels    []byte
	Width     int
	Height    int
}

// Update is one entry in the pull-based progress sequence spec.md §6
// describes. An encode job's sequence ends with StatusDone after its
// last page, or with StatusError. A decode job reports each decoded
// file in Result/Files on a StatusRunning update, carries its errors in
// Err on StatusRunning updates, reports StatusWaitingForPage once its
// queue is drained, and ends only when cancelled.
type Update struct {
	Status      JobStatus
	Progress    int // 0..100
	Result      *DecodedFile
	Files       []*DecodedFile
	Page        *Page // set on encode jobs, once per emitted page
	Err         error
	Stats       ReassemblyStats
	Diagnostics *Diagnostics
}

type jobKind int

const (
	kindEncode jobKind = iota
	kindDecode
)

// Job drives one encode or decode operation to completion. It is safe
// to call from exactly one goroutine at a time (spec.md §5); running N
// jobs concurrently means running N Jobs on N goroutines, never sharing
// one Job across goroutines.
type Job struct {
	ID  uuid.UUID
	log *logrus.Entry

	kind      jobKind
	cancelled bool
	done      bool

	stats ReassemblyStats

	enc *encodeState
	dec *decodeState
}

func newJob(kind jobKind, op string) *Job {
	id := uuid.New()
	return &Job{
		ID:   id,
		kind: kind,
		log: logrus.WithFields(logrus.Fields{
			"job_id":    id.String(),
			"operation": op,
		}),
	}
}

// Cancel stops the job; the next Next() call returns a terminal
// StatusDone update with no result.
func (j *Job) Cancel() {
	j.cancelled = true
	j.log.Warn("job cancelled")
}

// Next advances the job by exactly one state transition and returns the
// resulting Update. The second return value is false once the job has
// reached a terminal state (StatusDone or StatusError) and should not
// be called again.
func (j *Job) Next() (Update, bool) {
	if j.done {
		return Update{Status: StatusDone, Progress: 100}, false
	}
	if j.cancelled {
		j.done = true
		return Update{Status: StatusDone, Progress: 100}, false
	}

	var u Update
	switch j.kind {
	case kindEncode:
		u = j.nextEncode()
	case kindDecode:
		u = j.nextDecode()
	}
	u.Stats = j.stats
	if u.Status == StatusDone || u.Status == StatusError {
		j.done = true
		return u, false
	}
	return u, true
}
