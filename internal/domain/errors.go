package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSourceInUse rejects deleting a source that an active job still crawls.
	ErrSourceInUse = errors.New("source is referenced by an active job")
)

// ValidationError rejects malformed input before any state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// InvalidStateError rejects a lifecycle action the job's state does not allow.
type InvalidStateError struct {
	JobID  string
	From   JobStatus
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("job %s: cannot %s from state %s", e.JobID, e.Action, e.From)
}

// NotRetryableError rejects retry of a job whose can_retry is false.
type NotRetryableError struct {
	JobID  string
	Status JobStatus
}

func (e *NotRetryableError) Error() string {
	return fmt.Sprintf("job %s is not retryable in state %s", e.JobID, e.Status)
}

// FetchErrorKind classifies per-URL fetch failures.
type FetchErrorKind string

const (
	FetchErrorNetwork    FetchErrorKind = "network"
	FetchErrorTimeout    FetchErrorKind = "timeout"
	FetchErrorHTTPStatus FetchErrorKind = "http_status"
	FetchErrorTooLarge   FetchErrorKind = "too_large"
	FetchErrorExtraction FetchErrorKind = "extraction"
)

// FetchError is a per-URL network, timeout or HTTP failure. It is recorded
// against the job and never aborts it.
type FetchError struct {
	URL        string
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchErrorHTTPStatus {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionReason distinguishes unsupported formats from corrupt documents.
type ExtractionReason string

const (
	ExtractionUnsupportedFormat ExtractionReason = "unsupported_format"
	ExtractionCorruptDocument   ExtractionReason = "corrupt_document"
)

// ExtractionError is recorded like a FetchError.
type ExtractionError struct {
	URL    string
	Reason ExtractionReason
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.URL, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// JobFailure is a job-level failure; the job moves to failed with Summary as
// its error_summary.
type JobFailure struct {
	JobID   string
	Summary string
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Summary)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
