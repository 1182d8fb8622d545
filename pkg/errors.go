package vault

import (
	"fmt"
)

type ErrorCode string

const (
	// identity errors: data-integrity bugs, never retried.
	ScriptIdentityMismatch ErrorCode = "script-identity-mismatch"
	RegistrationRejected   ErrorCode = "registration-rejected"

	// funding errors: fatal for this attempt, user-actionable.
	NoFundsAtAddress  ErrorCode = "no-funds-at-address"
	InsufficientFunds ErrorCode = "insufficient-funds"

	// construction errors: assembler bugs; fail closed, emit no CBOR.
	InvalidAddress       ErrorCode = "invalid-address"
	ValueArithmeticError ErrorCode = "value-arithmetic-error"
	MissingWitness       ErrorCode = "missing-witness"
	RedeemerIndexError   ErrorCode = "redeemer-index-mismatch"
	InvalidTxn           ErrorCode = "invalid-txn"

	// network / ledger errors.
	LedgerRejection ErrorCode = "ledger-rejection" // tx is wrong; rebuild, don't retry
	NetworkError    ErrorCode = "network-error"    // transient; retried with backoff

	// signer errors.
	UserRejected ErrorCode = "user-rejected" // clean cancellation, not a fault
	SigningError ErrorCode = "signing-error"

	// registry / generic.
	BadRequest    ErrorCode = "bad-request"
	NotAvailable  ErrorCode = "not-available"
	NotFound      ErrorCode = "not-found"
	AlreadyExists ErrorCode = "already-exists"
	BadTransition ErrorCode = "bad-transition"
	DBConflict    ErrorCode = "db-conflict"
	UnknownError  ErrorCode = "unknown-error"
)

type ErrorInfo struct {
	Code    ErrorCode // machine-readable ErrorCode enumeration
	Message string    // human-readable debug message
	Action  string    // suggested next action, may be empty
}

func (e *ErrorInfo) Error() string {
	return string(e.Message)
}

func NewErr(code ErrorCode, format string, args ...any) error {
	return &ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewErrWithAction attaches a suggested next action for the caller
// (retry / fund address / check registry).
func NewErrWithAction(code ErrorCode, action string, format string, args ...any) error {
	return &ErrorInfo{Code: code, Message: fmt.Sprintf(format, args...), Action: action}
}

func IsError(err error, ofType ErrorCode) bool {
	if e, ok := err.(*ErrorInfo); ok {
		return e.Code == ofType
	}
	return false
}

func IsNotFoundError(err error) bool {
	return IsError(err, NotFound)
}

func IsInsufficientFundsError(err error) bool {
	return IsError(err, InsufficientFunds)
}

func IsUserRejectedError(err error) bool {
	return IsError(err, UserRejected)
}

// CodeOf extracts the machine code from any error.
func CodeOf(err error) ErrorCode {
	if e, ok := err.(*ErrorInfo); ok {
		return e.Code
	}
	return UnknownError
}

// Retryable reports whether the failure is transient (network-level) as
// opposed to a ledger rejection or a construction bug.
func Retryable(err error) bool {
	return IsError(err, NetworkError) || IsError(err, NotAvailable)
}
