package services

import (
	"errors"

	"github.com/ruralpay/txengine/internal/models"
)

// Outcomes a single transaction can be rejected with. None of them is fatal
// to a run.
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrUnknownReference     = errors.New("unknown transaction reference")
	ErrInvalidState         = errors.New("invalid transaction state")
	ErrUnknownAccount       = errors.New("unknown account")
	ErrAccountLocked        = errors.New("account is locked")
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
	ErrInvariantViolation   = errors.New("balance invariant violated")
)

// Outcome labels used in logs and run summaries.
const (
	OutcomeApplied           = "applied"
	OutcomeInvalidAmount     = "invalid_amount"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeUnknownReference  = "unknown_reference"
	OutcomeInvalidState      = "invalid_state"
	OutcomeUnknownAccount    = "unknown_account"
	OutcomeAccountLocked     = "account_locked"
	OutcomeDuplicate         = "duplicate_transaction"
	OutcomeInvariant         = "invariant_violation"
	OutcomeMalformed         = "malformed_record"
	OutcomeUnknown           = "unknown"
)

// Outcome maps an error returned by the ledger or processor to its label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeApplied
	case errors.Is(err, ErrInvalidAmount):
		return OutcomeInvalidAmount
	case errors.Is(err, ErrInsufficientFunds):
		return OutcomeInsufficientFunds
	case errors.Is(err, ErrUnknownReference):
		return OutcomeUnknownReference
	case errors.Is(err, ErrInvalidState):
		return OutcomeInvalidState
	case errors.Is(err, ErrUnknownAccount):
		return OutcomeUnknownAccount
	case errors.Is(err, ErrAccountLocked):
		return OutcomeAccountLocked
	case errors.Is(err, ErrDuplicateTransaction):
		return OutcomeDuplicate
	case errors.Is(err, ErrInvariantViolation):
		return OutcomeInvariant
	case errors.Is(err, models.ErrMalformedRecord):
		return OutcomeMalformed
	default:
		return OutcomeUnknown
	}
}
