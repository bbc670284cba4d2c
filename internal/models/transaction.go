package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of events the engine understands.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionDispute    TransactionType = "dispute"
	TransactionResolve    TransactionType = "resolve"
	TransactionChargeback TransactionType = "chargeback"
)

// ParseTransactionType accepts the lower-case wire names, ignoring case and
// surrounding whitespace.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(s))); t {
	case TransactionDeposit, TransactionWithdrawal, TransactionDispute, TransactionResolve, TransactionChargeback:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// CarriesAmount reports whether the type must come with an amount.
func (t TransactionType) CarriesAmount() bool {
	return t == TransactionDeposit || t == TransactionWithdrawal
}

// Transaction is a single input event.
type Transaction struct {
	Type   TransactionType  `json:"type" validate:"required,oneof=deposit withdrawal dispute resolve chargeback"`
	Client uint16           `json:"client"`
	Tx     uint32           `json:"tx"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// RecordState tracks where a recorded transaction sits in the dispute lifecycle.
type RecordState int

const (
	RecordRecorded RecordState = iota
	RecordDisputed
	RecordChargedBack
)

func (s RecordState) String() string {
	switch s {
	case RecordRecorded:
		return "recorded"
	case RecordDisputed:
		return "disputed"
	case RecordChargedBack:
		return "charged_back"
	default:
		return fmt.Sprintf("RecordState(%d)", int(s))
	}
}

// TransactionRecord is the history entry kept for every applied deposit or
// withdrawal, so later disputes can find the amount.
type TransactionRecord struct {
	Tx     uint32
	Client uint16
	Kind   TransactionType
	Amount decimal.Decimal
	State  RecordState
}

// DisputableAmount is what a dispute moves into held. Withdrawals can be
// disputed and charged back but have already left the account, so nothing
// is held for them.
func (r *TransactionRecord) DisputableAmount() decimal.Decimal {
	if r.Kind == TransactionWithdrawal {
		return decimal.Zero
	}
	return r.Amount
}

// Disputed reports whether the record is currently under dispute.
func (r *TransactionRecord) Disputed() bool {
	return r.State == RecordDisputed
}

// ErrMalformedRecord marks input that could not be decoded into a
// Transaction. Sources wrap it so consumers can skip the row and carry on.
var ErrMalformedRecord = errors.New("malformed transaction record")
