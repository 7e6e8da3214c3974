// Package diag carries the diagnostics sink: the single channel through which
// failures of the session engine become visible to the user.
package diag

import "time"

// Diagnostic is one failure report
type Diagnostic struct {
	Stage string
	Err   error
	Time  time.Time
}

// New stamps a diagnostic for stage
func New(stage string, err error) Diagnostic {
	return Diagnostic{Stage: stage, Err: err, Time: time.Now()}
}

// String renders the one-line "stage: reason" form
func (d Diagnostic) String() string {
	if d.Err == nil {
		return d.Stage
	}
	if d.Stage == "" {
		return d.Err.Error()
	}
	return d.Stage + ": " + d.Err.Error()
}

// Sink receives diagnostics
type Sink interface {
	Report(d Diagnostic)
}
