package validation

import "fmt"

// Stage identifies a step of the classification pipeline. Stages run in
// their declared order.
type Stage uint8

const (
	StageNone Stage = iota
	StageFormat
	StageSignature
	StageSizing
	StageEconomic
	StageAccount
	StageChain
	StagePool
	StagePlugin
	StageExecution
)

var stageNames = [...]string{
	StageNone:      "none",
	StageFormat:    "format",
	StageSignature: "signature",
	StageSizing:    "sizing",
	StageEconomic:  "economic",
	StageAccount:   "account",
	StageChain:     "chain",
	StagePool:      "pool",
	StagePlugin:    "plugin",
	StageExecution: "execution",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Outcome is the result of classifying one transaction: either valid, or
// invalid with exactly one reason. Plugin reasons also carry the plugin's
// message as cause.
type Outcome struct {
	reason InvalidReason
	cause  string
	stage  Stage
}

// Valid returns the valid outcome.
func Valid() Outcome { return Outcome{} }

// Invalid returns an invalid outcome with reason r.
func Invalid(r InvalidReason) Outcome {
	return Outcome{reason: r}
}

// InvalidWithCause returns an invalid outcome with a plugin cause. The
// cause is dropped for reasons that do not carry one.
func InvalidWithCause(r InvalidReason, cause string) Outcome {
	if !r.CarriesCause() {
		cause = ""
	}
	return Outcome{reason: r, cause: cause}
}

func (o Outcome) at(s Stage) Outcome {
	o.stage = s
	return o
}

// IsValid reports whether the transaction passed every check.
func (o Outcome) IsValid() bool { return o.reason == 0 }

// Reason returns the failure reason, zero when valid.
func (o Outcome) Reason() InvalidReason { return o.reason }

// Cause returns the plugin message of a plugin rejection.
func (o Outcome) Cause() string { return o.cause }

// Stage returns the stage that rejected the transaction.
func (o Outcome) Stage() Stage { return o.stage }

// Err returns nil for a valid outcome and a *TxError otherwise.
func (o Outcome) Err() error {
	if o.IsValid() {
		return nil
	}
	return &TxError{Reason: o.reason, Cause: o.cause, Stage: o.stage}
}

func (o Outcome) String() string {
	switch {
	case o.IsValid():
		return "VALID"
	case o.cause != "":
		return fmt.Sprintf("INVALID(%s: %s)", o.reason, o.cause)
	}
	return fmt.Sprintf("INVALID(%s)", o.reason)
}

// TxError is the error form of an invalid outcome. It unwraps to its
// reason, so errors.Is(err, NonceTooLow) works.
type TxError struct {
	Reason InvalidReason
	Cause  string
	Stage  Stage
}

func (e *TxError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("invalid transaction: %s: %s", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid transaction: %s", e.Reason)
}

func (e *TxError) Unwrap() error { return e.Reason }
