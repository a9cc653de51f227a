package pipeline

import (
	"github.com/google/uuid"

	"github.com/backmassage/stitch/internal/process"
)

// Event is one message on the progress stream. Seq is private to JobID,
// starts at 0 and has no gaps.
type Event struct {
	JobID   uuid.UUID
	Seq     uint64
	Payload Payload
}

// Terminal reports whether the event ends its job's stream.
func (e Event) Terminal() bool {
	switch e.Payload.(type) {
	case Finished, Failed:
		return true
	}
	return false
}

// Payload is implemented by every event variant.
type Payload interface {
	payload()
}

// Start is the first event of every job.
type Start struct {
	Target string
}

// Prepared reports the concat manifest written for the job.
type Prepared struct {
	Manifest string
}

// Info summarizes the probe results. Mode is "concat" or "filter_complex".
type Info struct {
	SourceCount  int
	TotalSeconds float64
	HasAudio     bool
	Mode         string
}

// Phase names the stage the job is entering.
type Phase struct {
	Label string
}

// Warning is a non-fatal problem worth showing to the user.
type Warning struct {
	Message string
}

// Progress reports encoded output time against the expected total.
type Progress struct {
	TotalSeconds   float64
	CurrentSeconds float64
}

// Finished ends a successful job.
type Finished struct {
	Exit        *process.Exit
	OutputBytes int64
}

// Failed ends an unsuccessful job.
type Failed struct {
	Err error
}

func (Start) payload()    {}
func (Prepared) payload() {}
func (Info) payload()     {}
func (Phase) payload()    {}
func (Warning) payload()  {}
func (Progress) payload() {}
func (Finished) payload() {}
func (Failed) payload()   {}

// Phase labels.
const (
	PhasePreparing = "Preparing concatenation file"
	PhaseProbing   = "Probing sources"
	PhaseEncoding  = "Encoding"
)
