package queue

import (
	"errors"
	"fmt"
)

const (
	Stream          = "IMPORTER_JOBS"
	StreamSubjects  = "importer.>"
	SubjectBulkRun  = "importer.bulk.run"
	SubjectBulkDone = "importer.bulk.done"
	SubjectDLQ      = "importer.dlq"
	durableBulk     = "importer_bulk"
)

// BulkJob is the payload of importer.bulk.run.
type BulkJob struct {
	BatchID     string   `json:"batch_id"`
	URLs        []string `json:"urls"`
	RequestedBy string   `json:"requested_by,omitempty"`
}

func (j BulkJob) validate() error {
	if j.BatchID == "" {
		return errors.New("batch_id required")
	}
	if len(j.URLs) == 0 {
		return errors.New("urls required")
	}
	return nil
}

// PermanentError marks a job failure that redelivery cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the worker dead-letters the job instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
