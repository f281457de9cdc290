package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// JobStatus enumerates the persisted states of a queued generation job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further transition can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Job is the locally persisted record of one video generation.
type Job struct {
	ID           string
	Status       JobStatus
	Model        string
	AspectRatio  string
	SpecJSON     []byte
	TaskID       string
	Progress     float64
	Outputs      []string
	StorageKey   string
	Bytes        int64
	ErrorKind    ErrorKind
	ErrorMessage string
	Diagnostic   []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// JobResult is recorded when a job succeeds.
type JobResult struct {
	TaskID     string
	Outputs    []string
	StorageKey string
	Bytes      int64
}

// JobFailure is recorded when a job reaches a terminal error.
type JobFailure struct {
	Kind       ErrorKind
	Message    string
	Diagnostic []byte
}

// FailureFor classifies err and keeps the remote evidence as the diagnostic.
func FailureFor(err error) JobFailure {
	failure := JobFailure{Kind: ClassifyError(err), Message: err.Error()}
	var (
		remote  *RemoteJobFailure
		submit  *SubmitError
		timeout *TimeoutError
		fetch   *FetchError
	)
	switch {
	case errors.As(err, &remote):
		failure.Diagnostic = remote.Payload
	case errors.As(err, &submit):
		failure.Diagnostic, _ = json.Marshal(map[string]any{
			"status_code": submit.StatusCode,
			"body":        submit.Body,
			"hint":        submit.Hint,
		})
	case errors.As(err, &timeout):
		failure.Diagnostic, _ = json.Marshal(map[string]any{
			"task_id":    timeout.TaskID,
			"polls":      timeout.Polls,
			"elapsed_ms": timeout.Elapsed.Milliseconds(),
		})
	case errors.As(err, &fetch):
		failure.Diagnostic, _ = json.Marshal(map[string]any{
			"op":          fetch.Op,
			"status_code": fetch.StatusCode,
			"retryable":   fetch.Retryable(),
		})
	}
	return failure
}
