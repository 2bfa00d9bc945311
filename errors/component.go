// Package errors defines the error taxonomy shared by the stage executor,
// the thread pool, and the pipeline façade. It never panics or throws on
// its own behalf; it only classifies and tags errors produced elsewhere.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies the origin of an error raised while driving a pipeline.
type Code int

const (
	// Step marks an error returned by a user transform.
	Step Code = iota
	// Underflow marks an internal writer reference-count bug; it should
	// be unreachable and is kept only as a defensive assertion.
	Underflow
	// Shutdown marks a pool or stage torn down with work still pending.
	Shutdown
)

func (c Code) String() string {
	switch c {
	case Step:
		return "STEP"
	case Underflow:
		return "UNDERFLOW"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// Error is the interface satisfied by every error this package produces;
// Stage identifies which named pipeline stage raised it.
type Error interface {
	error
	Code() Code
	Stage() string
}

// StageError tags an underlying error with the Code and stage name that
// produced it.
type StageError struct {
	code  Code
	stage string
	err   error
}

// NewStep wraps err as a Step error attributed to stage.
func NewStep(stage string, err error) error {
	return &StageError{code: Step, stage: stage, err: err}
}

// NewShutdown reports a stage torn down mid-work.
func NewShutdown(stage string) error {
	return &StageError{code: Shutdown, stage: stage, err: errors.New("stage shut down with work pending")}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("streampipe %s error (stage: %s): %s", e.code, e.stage, e.err)
}

func (e *StageError) Unwrap() error { return e.err }
func (e *StageError) Code() Code    { return e.code }
func (e *StageError) Stage() string { return e.stage }

// IsStepError reports whether err originated from a user transform.
func IsStepError(err error) bool { return isCode(err, Step) }

// IsShutdownError reports whether err originated from a mid-work teardown.
func IsShutdownError(err error) bool { return isCode(err, Shutdown) }

func isCode(err error, code Code) bool {
	var se *StageError
	if !errors.As(err, &se) {
		return false
	}
	return se.code == code
}
