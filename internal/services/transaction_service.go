package services

import (
	"errors"
	"fmt"
	"io"

	"github.com/ruralpay/txengine/internal/models"
	"github.com/shopspring/decimal"
)

// TransactionSource hands the processor one transaction at a time. Next
// returns io.EOF once the stream is exhausted. Errors wrapping
// models.ErrMalformedRecord skip the offending row; any other error ends the
// run.
type TransactionSource interface {
	Next() (models.Transaction, error)
}

// Auditor receives one entry per processed transaction.
type Auditor interface {
	LogTransaction(runID string, tx models.Transaction, status string)
	LogRejection(runID string, tx models.Transaction, status string, err error)
	LogError(runID string, err error)
}

// Summary counts what happened during a run. Processed counts transactions
// handed to Process; Malformed counts every malformed record, whether the
// source failed to decode it or Process could not interpret it.
type Summary struct {
	RunID     string         `json:"runId"`
	Processed int            `json:"processed"`
	Applied   int            `json:"applied"`
	Rejected  int            `json:"rejected"`
	Malformed int            `json:"malformed"`
	Outcomes  map[string]int `json:"outcomes"`
}

type TransactionService struct {
	ledger  *AccountLedger
	history map[uint32]*models.TransactionRecord
	audit   Auditor
	runID   string
	summary Summary
}

func NewTransactionService(ledger *AccountLedger, audit Auditor, runID string) *TransactionService {
	return &TransactionService{
		ledger:  ledger,
		history: make(map[uint32]*models.TransactionRecord),
		audit:   audit,
		runID:   runID,
		summary: Summary{RunID: runID, Outcomes: make(map[string]int)},
	}
}

// Ledger exposes the ledger the service drives, for snapshots.
func (s *TransactionService) Ledger() *AccountLedger {
	return s.ledger
}

// Record returns a copy of the history entry for tx.
func (s *TransactionService) Record(tx uint32) (models.TransactionRecord, bool) {
	record, ok := s.history[tx]
	if !ok {
		return models.TransactionRecord{}, false
	}
	return *record, true
}

// Summary returns the counters accumulated so far.
func (s *TransactionService) Summary() Summary {
	out := s.summary
	out.Outcomes = make(map[string]int, len(s.summary.Outcomes))
	for k, v := range s.summary.Outcomes {
		out.Outcomes[k] = v
	}
	return out
}

// Run drains source in order. It only fails when the source itself fails;
// rejected or malformed transactions are counted, audited and skipped.
func (s *TransactionService) Run(source TransactionSource) (Summary, error) {
	for {
		tx, err := source.Next()
		if errors.Is(err, io.EOF) {
			return s.Summary(), nil
		}
		if err != nil {
			if errors.Is(err, models.ErrMalformedRecord) {
				s.summary.Malformed++
				s.summary.Outcomes[OutcomeMalformed]++
				if s.audit != nil {
					s.audit.LogError(s.runID, err)
				}
				continue
			}
			return s.Summary(), fmt.Errorf("reading transactions: %w", err)
		}

		s.Process(tx)
	}
}

// Process applies a single transaction and returns nil or the reason it was
// rejected. A rejected transaction leaves the ledger and history untouched.
func (s *TransactionService) Process(tx models.Transaction) error {
	err := s.apply(tx)

	status := Outcome(err)
	s.summary.Processed++
	s.summary.Outcomes[status]++
	switch {
	case err == nil:
		s.summary.Applied++
	case errors.Is(err, models.ErrMalformedRecord):
		s.summary.Malformed++
	default:
		s.summary.Rejected++
	}

	if s.audit != nil {
		if err != nil {
			s.audit.LogRejection(s.runID, tx, status, err)
		} else {
			s.audit.LogTransaction(s.runID, tx, status)
		}
	}
	return err
}

func (s *TransactionService) apply(tx models.Transaction) error {
	switch tx.Type {
	case models.TransactionDeposit:
		return s.deposit(tx)
	case models.TransactionWithdrawal:
		return s.withdraw(tx)
	case models.TransactionDispute:
		return s.dispute(tx)
	case models.TransactionResolve:
		return s.resolve(tx)
	case models.TransactionChargeback:
		return s.chargeback(tx)
	default:
		return fmt.Errorf("tx %d: unsupported type %q: %w", tx.Tx, tx.Type, models.ErrMalformedRecord)
	}
}

func (s *TransactionService) deposit(tx models.Transaction) error {
	amount, err := s.fundingAmount(tx)
	if err != nil {
		return err
	}
	if err := s.ledger.Deposit(tx.Client, amount); err != nil {
		return fmt.Errorf("tx %d: %w", tx.Tx, err)
	}
	s.record(tx, amount)
	return nil
}

func (s *TransactionService) withdraw(tx models.Transaction) error {
	amount, err := s.fundingAmount(tx)
	if err != nil {
		return err
	}
	if err := s.ledger.Withdraw(tx.Client, amount); err != nil {
		return fmt.Errorf("tx %d: %w", tx.Tx, err)
	}
	s.record(tx, amount)
	return nil
}

func (s *TransactionService) dispute(tx models.Transaction) error {
	record, err := s.lookup(tx)
	if err != nil {
		return err
	}
	if record.State != models.RecordRecorded {
		return fmt.Errorf("dispute tx %d is %s: %w", tx.Tx, record.State, ErrInvalidState)
	}

	if err := s.ledger.Hold(record.Client, record.DisputableAmount()); err != nil {
		return fmt.Errorf("dispute tx %d: %w", tx.Tx, err)
	}
	record.State = models.RecordDisputed
	return nil
}

func (s *TransactionService) resolve(tx models.Transaction) error {
	record, err := s.lookup(tx)
	if err != nil {
		return err
	}
	if !record.Disputed() {
		return fmt.Errorf("resolve tx %d is %s: %w", tx.Tx, record.State, ErrInvalidState)
	}

	if err := s.ledger.Release(record.Client, record.DisputableAmount()); err != nil {
		return fmt.Errorf("resolve tx %d: %w", tx.Tx, err)
	}
	record.State = models.RecordRecorded
	return nil
}

func (s *TransactionService) chargeback(tx models.Transaction) error {
	record, err := s.lookup(tx)
	if err != nil {
		return err
	}
	if !record.Disputed() {
		return fmt.Errorf("chargeback tx %d is %s: %w", tx.Tx, record.State, ErrInvalidState)
	}

	if err := s.ledger.Chargeback(record.Client, record.DisputableAmount()); err != nil {
		return fmt.Errorf("chargeback tx %d: %w", tx.Tx, err)
	}
	record.State = models.RecordChargedBack
	return nil
}

// fundingAmount validates a deposit or withdrawal before it reaches the
// ledger, so a bad record never creates an account.
func (s *TransactionService) fundingAmount(tx models.Transaction) (decimal.Decimal, error) {
	if tx.Amount == nil {
		return decimal.Decimal{}, fmt.Errorf("%s tx %d: missing amount: %w", tx.Type, tx.Tx, ErrInvalidAmount)
	}
	if !tx.Amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%s tx %d: amount %s: %w", tx.Type, tx.Tx, tx.Amount, ErrInvalidAmount)
	}
	if _, seen := s.history[tx.Tx]; seen {
		return decimal.Decimal{}, fmt.Errorf("%s tx %d: %w", tx.Type, tx.Tx, ErrDuplicateTransaction)
	}
	return *tx.Amount, nil
}

// lookup finds the record a dispute-family transaction refers to. A record
// owned by another client is treated as unknown.
func (s *TransactionService) lookup(tx models.Transaction) (*models.TransactionRecord, error) {
	record, ok := s.history[tx.Tx]
	if !ok {
		return nil, fmt.Errorf("%s tx %d: %w", tx.Type, tx.Tx, ErrUnknownReference)
	}
	if record.Client != tx.Client {
		return nil, fmt.Errorf("%s tx %d: client %d does not own it: %w", tx.Type, tx.Tx, tx.Client, ErrUnknownReference)
	}
	return record, nil
}

func (s *TransactionService) record(tx models.Transaction, amount decimal.Decimal) {
	s.history[tx.Tx] = &models.TransactionRecord{
		Tx:     tx.Tx,
		Client: tx.Client,
		Kind:   tx.Type,
		Amount: amount,
		State:  models.RecordRecorded,
	}
}
