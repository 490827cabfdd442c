package app

import (
	"time"

	"tidy-go/internal/tidy"
)

// Operation statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Operation identifies one CLI invocation. Its ID is the UTC start time and
// names the log file; the per-run history itself lives in the database.
type Operation struct {
	ID       string
	Name     string
	Root     string
	Mutating bool
	Status   string
}

// NewOperation creates an operation started at now.
func NewOperation(name, root string, mutating bool, now time.Time) *Operation {
	return &Operation{
		ID:       now.UTC().Format("20060102T150405Z"),
		Name:     name,
		Root:     root,
		Mutating: mutating,
		Status:   StatusSuccess,
	}
}

// LogFileName is the per-operation log file name.
func (op *Operation) LogFileName() string {
	return logFilePrefix + op.ID + logFileSuffix
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = StatusError
}

// Finish derives the final status from a run's summary and error.
func (op *Operation) Finish(summary *tidy.Summary, err error) {
	switch {
	case err != nil:
		op.Status = StatusError
	case summary != nil && summary.HasErrors():
		op.Status = StatusPartial
	default:
		op.Status = StatusSuccess
	}
}
