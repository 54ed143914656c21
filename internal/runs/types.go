package runs

import (
	"context"
	"time"

	"github.com/dvloznov/billflow/internal/domain"
)

// Status is the state of one extraction attempt.
type Status string

const (
	// StatusRunning indicates the extraction call is outstanding.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded indicates a record was created.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates no record was created.
	StatusFailed Status = "FAILED"
)

// Run is one upload attempt. A failed run is the user-visible failure
// notice; the record store never sees it.
type Run struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`

	// Filename is the uploaded document's name.
	Filename string `json:"filename"`

	// Kind is the kind the user declared before uploading.
	Kind domain.Kind `json:"kind"`

	// Status is the current status of the run.
	Status Status `json:"status"`

	// ErrorKind classifies the failure, if any.
	ErrorKind domain.ErrorKind `json:"error_kind,omitempty"`

	// Error contains error details if the run failed.
	Error string `json:"error,omitempty"`

	// RecordID is the created record on success.
	RecordID string `json:"record_id,omitempty"`

	// Confidence is the extraction confidence score on success.
	Confidence int `json:"confidence,omitempty"`

	// StartedAt is when the upload was accepted.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run reached a final status.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Store defines the interface for storing and retrieving runs.
type Store interface {
	// Save saves or updates a run.
	Save(ctx context.Context, run *Run) error

	// Get retrieves a run by ID.
	Get(ctx context.Context, id string) (*Run, error)

	// List retrieves runs, newest first, with optional filtering.
	List(ctx context.Context, filter Filter) ([]*Run, error)
}

// Filter defines filtering criteria for listing runs.
type Filter struct {
	// Status filters runs by status.
	Status Status

	// RecordID filters runs by created record.
	RecordID string

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// maxErrorLen caps stored error text.
const maxErrorLen = 2000

// Fail marks run failed at t with err's text and classification.
func (r *Run) Fail(err error, t time.Time) {
	r.Status = StatusFailed
	r.ErrorKind = domain.KindOf(err)
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	r.Error = msg
	r.FinishedAt = &t
}

// Succeed marks run succeeded at t for the created record.
func (r *Run) Succeed(recordID string, confidence int, t time.Time) {
	r.Status = StatusSucceeded
	r.RecordID = recordID
	r.Confidence = confidence
	r.FinishedAt = &t
}
