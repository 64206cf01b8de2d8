package validation

import (
	"context"
	"errors"
)

var (
	// ErrExecutionHalted is returned by an executor that stopped a
	// transaction for a reason attributable to the transaction itself.
	ErrExecutionHalted = errors.New("validation: execution halted")

	// ErrInvalidEOF is returned by an executor that rejected EOF container
	// code deployed or called by the transaction.
	ErrInvalidEOF = errors.New("validation: invalid EOF code")
)

// FromExecution maps an error reported while executing a transaction to an
// outcome. A nil error is valid. Unrecognised errors are internal errors.
func FromExecution(err error) Outcome {
	var r InvalidReason
	switch {
	case err == nil:
		return Valid()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r = ExecutionInterrupted
	case errors.Is(err, ErrExecutionHalted):
		r = ExecutionHalted
	case errors.Is(err, ErrInvalidEOF):
		r = EOFCodeInvalid
	case errors.As(err, &r) && r.IsKnown():
		// Executors may report a taxonomy reason directly.
	default:
		r = InternalError
	}
	return Invalid(r).at(StageExecution)
}
