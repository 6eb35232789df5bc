package deploy

import (
	"errors"
	"fmt"
)

// ErrNoCheckpoint is returned by Recover when there is nothing to resume.
var ErrNoCheckpoint = errors.New("no checkpoint exists; run 'deployctl deploy' first")

// PreconditionError means a stage's required input is missing and could not
// be auto-remediated. It halts the run with remediation instructions.
type PreconditionError struct {
	Stage  Stage
	Reason string
	Remedy string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("precondition for stage %q not met: %s", e.Stage, e.Reason)
	if e.Remedy != "" {
		msg += "\n  remediation: " + e.Remedy
	}
	return msg
}

// StageFailure means a stage's action failed. The checkpoint stays at the
// last successful stage so 'recover' can retry from there.
type StageFailure struct {
	Stage Stage
	Cause error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Cause)
}

func (e *StageFailure) Unwrap() error {
	return e.Cause
}
