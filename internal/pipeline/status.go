package pipeline

import "github.com/rotisserie/eris"

// Status is the presentational phase of a run.
//
// Only Idle, Completed and Error reflect real outcomes. Enriching and
// AiValidation are paced by fixed timers so a user can follow along; they do
// not correspond to separate backend work.
type Status int

const (
	Idle Status = iota
	Discovery
	Enriching
	AiValidation
	Completed
	Error
)

var statusNames = [...]string{
	Idle:         "IDLE",
	Discovery:    "DISCOVERY",
	Enriching:    "ENRICHING",
	AiValidation: "AI_VALIDATION",
	Completed:    "COMPLETED",
	Error:        "ERROR",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, eris.Errorf("pipeline: invalid status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return eris.Errorf("pipeline: unknown status %q", string(b))
}

// Running reports whether a run is in flight.
func (s Status) Running() bool {
	return s == Discovery || s == Enriching || s == AiValidation
}

// Settled reports whether s is a terminal state of a run.
func (s Status) Settled() bool {
	return s == Completed || s == Error
}
