// Package job runs print jobs against the shared printer connection and
// reports each outcome on a dispatch queue.
package job

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"zebra-label/internal/label"
)

// ErrBusy is returned by Submit while another job is in flight
var ErrBusy = errors.New("a print job is already in progress")

// Job is one request to print a record
type Job struct {
	ID     uuid.UUID
	Record label.Record
	Size   label.Size
	Copies int
}

func New(rec label.Record, size label.Size, copies int) Job {
	return Job{
		ID:     uuid.New(),
		Record: rec,
		Size:   size,
		Copies: copies,
	}
}

// Reason says which phase of a job failed
type Reason int

const (
	ReasonConnectionUnavailable Reason = iota
	ReasonLanguageUndetected
	ReasonEncodingFailed
	ReasonWriteFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonConnectionUnavailable:
		return "connection unavailable"
	case ReasonLanguageUndetected:
		return "language undetected"
	case ReasonEncodingFailed:
		return "encoding failed"
	case ReasonWriteFailed:
		return "write failed"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Failure is handed to OnFailure
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Reason.String()
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Listener receives the outcome of a submitted job. Exactly one method is
// called per accepted job, on the orchestrator's dispatcher.
type Listener interface {
	OnSuccess(j Job)
	OnFailure(j Job, f *Failure)
}

// ListenerFuncs adapts a pair of functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Success func(Job)
	Failure func(Job, *Failure)
}

func (l ListenerFuncs) OnSuccess(j Job) {
	if l.Success != nil {
		l.Success(j)
	}
}

func (l ListenerFuncs) OnFailure(j Job, f *Failure) {
	if l.Failure != nil {
		l.Failure(j, f)
	}
}
