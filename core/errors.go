package core

import (
	"errors"
	"fmt"
)

// FailureCode names each way the pipeline can fail. The codes are part of the
// caller contract and surface verbatim in API responses.
type FailureCode string

const (
	// FailureParse: the extractor produced nothing usable. Surfaced to the
	// user as "please restate your bet".
	FailureParse FailureCode = "ParseFailure"

	// FailureValidation: a slot answer was rejected. Re-ask, bounded retries.
	FailureValidation FailureCode = "ValidationFailure"

	// FailureRiskBlocked: the gate requires explicit acknowledgment. Not a
	// failure in the usual sense, a required extra step.
	FailureRiskBlocked FailureCode = "RiskBlocked"

	// FailureStaging: the provisional metadata write failed. Retryable, no
	// ledger side effect has occurred.
	FailureStaging FailureCode = "StagingFailure"

	// FailureLedgerTimeout: the ledger write exceeded its deadline. Never
	// auto-retried; the transaction may still have landed.
	FailureLedgerTimeout FailureCode = "LedgerTimeout"

	// FailureLedgerRejected: the ledger returned an error. Retryable with the
	// same staged metadata.
	FailureLedgerRejected FailureCode = "LedgerRejected"

	// FailureFinalize: the ledger write succeeded but the metadata finalize
	// failed. The wager exists; only the artifact needs regenerating.
	FailureFinalize FailureCode = "FinalizeFailure"
)

// PipelineError is the typed failure every stage returns. The original
// intent always rides along so the caller can offer "try again" without
// re-asking completed slots.
type PipelineError struct {
	Code    FailureCode
	Message string
	Intent  BettingIntent

	// TxMayHaveLanded is set on ledger timeouts: the write raced the deadline
	// and may have succeeded after it fired.
	TxMayHaveLanded bool

	// WagerExists is set on finalize failures: funds are committed and the
	// wager is live even though its metadata is incomplete.
	WagerExists bool

	Err error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *PipelineError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may simply re-invoke the failed
// operation. Ledger timeouts are explicitly not retryable.
func (e *PipelineError) Retryable() bool {
	switch e.Code {
	case FailureStaging, FailureLedgerRejected, FailureValidation, FailureParse:
		return true
	}
	return false
}

// Fail builds a PipelineError carrying the intent snapshot.
func Fail(code FailureCode, intent BettingIntent, msg string) *PipelineError {
	return &PipelineError{Code: code, Message: msg, Intent: intent}
}

// FailWrap builds a PipelineError wrapping an underlying cause.
func FailWrap(code FailureCode, intent BettingIntent, msg string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: msg, Intent: intent, Err: err}
}

// AsPipelineError unwraps err into a *PipelineError when possible.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
