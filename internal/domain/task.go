package domain

import "time"

// TaskHandle identifies a submitted remote task.
type TaskHandle struct {
	ID          string
	Mode        Mode
	SubmittedAt time.Time
}

// TaskClass is the remote status collapsed into the three states the poll loop acts on.
type TaskClass string

const (
	TaskPending   TaskClass = "pending"
	TaskSucceeded TaskClass = "succeeded"
	TaskFailed    TaskClass = "failed"
)

// TaskStatus is one classified status observation.
type TaskStatus struct {
	Class TaskClass
	// Raw is the status token as the remote service sent it.
	Raw      string
	Outputs  []string
	Progress float64
	// Payload is the full status body, kept verbatim for failure diagnostics.
	Payload []byte
}
