package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConfig          = errors.New("configuration error")
	ErrValidation      = errors.New("validation error")
	ErrSubmit          = errors.New("submit failed")
	ErrFetch           = errors.New("fetch failed")
	ErrRemoteJobFailed = errors.New("remote job failed")
	ErrTimedOut        = errors.New("poll budget exhausted")
	ErrInvalidImage    = errors.New("invalid image")
)

// ErrorKind is the persisted classification of a terminal job error.
type ErrorKind string

const (
	ErrorKindConfig     ErrorKind = "config"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindImage      ErrorKind = "image"
	ErrorKindSubmit     ErrorKind = "submit"
	ErrorKindFetch      ErrorKind = "fetch"
	ErrorKindRemote     ErrorKind = "remote_failure"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindInternal   ErrorKind = "internal"
)

// ConfigError reports a missing or malformed startup setting.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config: %s is required", e.Key)
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// ValidationError rejects a request before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SubmitError carries a non-2xx submission response verbatim. Submissions are
// never retried.
type SubmitError struct {
	StatusCode int
	Body       string
	Hint       HintCode
}

func (e *SubmitError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 500 {
		body = body[:500]
	}
	return fmt.Sprintf("submit status %d: %s", e.StatusCode, body)
}

func (e *SubmitError) Unwrap() error { return ErrSubmit }

// FetchError is a transport-level failure while polling or downloading.
// StatusCode is zero when no response was received.
type FetchError struct {
	Op         string
	StatusCode int
	// Permanent marks failures that no response will fix, such as a
	// malformed artifact URL.
	Permanent bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Retryable reports whether repeating the request may succeed: no response,
// an unreadable success body, a 5xx, 408 or 429. Any other 4xx is an answer,
// not an outage.
func (e *FetchError) Retryable() bool {
	if e.Permanent {
		return false
	}
	switch {
	case e.StatusCode < 400, e.StatusCode >= 500:
		return true
	case e.StatusCode == 408, e.StatusCode == 429:
		return true
	}
	return false
}

// IsRetryableFetch reports whether err is a FetchError worth repeating.
func IsRetryableFetch(err error) bool {
	var fetch *FetchError
	return errors.As(err, &fetch) && fetch.Retryable()
}

// RemoteJobFailure is the remote service reporting a failed, errored or
// cancelled task. Payload is the status body exactly as received.
type RemoteJobFailure struct {
	TaskID  string
	Payload []byte
}

func (e *RemoteJobFailure) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, strings.TrimSpace(string(e.Payload)))
}

func (e *RemoteJobFailure) Unwrap() error { return ErrRemoteJobFailed }

// TimeoutError is a client-side give-up; the remote task may still be running.
type TimeoutError struct {
	TaskID  string
	Polls   int
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s still pending after %d polls (%s)", e.TaskID, e.Polls, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error { return ErrTimedOut }

// ClassifyError maps an error onto the persisted ErrorKind.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig):
		return ErrorKindConfig
	case errors.Is(err, ErrValidation):
		return ErrorKindValidation
	case errors.Is(err, ErrInvalidImage):
		return ErrorKindImage
	case errors.Is(err, ErrSubmit):
		return ErrorKindSubmit
	case errors.Is(err, ErrRemoteJobFailed):
		return ErrorKindRemote
	case errors.Is(err, ErrTimedOut):
		return ErrorKindTimeout
	case errors.Is(err, ErrFetch):
		return ErrorKindFetch
	default:
		return ErrorKindInternal
	}
}
