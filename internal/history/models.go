package history

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
	// StatusRejected marks runs that never started because a precondition,
	// configuration or validation check failed.
	StatusRejected Status = "rejected"
)

var statusSet = map[Status]struct{}{
	StatusRunning:   {},
	StatusFinished:  {},
	StatusCancelled: {},
	StatusRejected:  {},
}

// ParseStatus converts a user supplied string into a Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether the status will not change again.
func (s Status) IsTerminal() bool {
	return s != StatusRunning
}

// Run is a single journal entry.
type Run struct {
	ID         int64
	RunID      string
	Mode       string
	AudioFile  string
	DialogFile string
	RigPath    string
	Recognizer string
	Status     Status
	CueCount   int
	KeyCount   int
	HoldCount  int
	FirstFrame int
	LastFrame  int
	Unmapped   []string
	ErrorText  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome captures the terminal values written by Finish.
type Outcome struct {
	Status     Status
	CueCount   int
	KeyCount   int
	HoldCount  int
	FirstFrame int
	LastFrame  int
	Unmapped   []string
	Err        error
}
