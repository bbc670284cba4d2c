package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ruralpay/txengine/internal/models"
	"github.com/ruralpay/txengine/internal/validation"
	"github.com/shopspring/decimal"
)

var expectedHeader = []string{"type", "client", "tx", "amount"}

// RowError describes a row that could not be turned into a transaction.
// It wraps models.ErrMalformedRecord so callers can skip it.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() []error {
	return []error{models.ErrMalformedRecord, e.Err}
}

// TransactionReader decodes transactions from CSV with the columns
// type, client, tx, amount. Fields are trimmed and the amount column may be
// left off entirely for dispute, resolve and chargeback rows.
type TransactionReader struct {
	csv       *csv.Reader
	validator *validation.Helper
	header    bool
}

func NewTransactionReader(r io.Reader) *TransactionReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	return &TransactionReader{
		csv:       cr,
		validator: validation.Default(),
	}
}

// Next returns the next transaction, io.EOF at the end of input, a *RowError
// for a bad row, or the underlying error when the input itself fails.
func (r *TransactionReader) Next() (models.Transaction, error) {
	if !r.header {
		if err := r.readHeader(); err != nil {
			return models.Transaction{}, err
		}
		r.header = true
	}

	for {
		record, err := r.csv.Read()
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return models.Transaction{}, &RowError{Line: parseErr.Line, Err: parseErr.Err}
			}
			return models.Transaction{}, err
		}

		line, _ := r.csv.FieldPos(0)
		if blank(record) {
			continue
		}

		tx, err := r.decode(record)
		if err != nil {
			return models.Transaction{}, &RowError{Line: line, Err: err}
		}
		return tx, nil
	}
}

func (r *TransactionReader) readHeader() error {
	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("reading header: %w", err)
	}

	if len(record) < len(expectedHeader)-1 || len(record) > len(expectedHeader) {
		return fmt.Errorf("unexpected header %q", record)
	}
	for i, field := range record {
		if !strings.EqualFold(strings.TrimSpace(field), expectedHeader[i]) {
			return fmt.Errorf("unexpected header column %d: %q, want %q", i+1, field, expectedHeader[i])
		}
	}
	return nil
}

func (r *TransactionReader) decode(record []string) (models.Transaction, error) {
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}
	if len(record) < 3 {
		return models.Transaction{}, fmt.Errorf("expected at least 3 fields, got %d", len(record))
	}

	txType, err := models.ParseTransactionType(record[0])
	if err != nil {
		return models.Transaction{}, err
	}

	client, err := strconv.ParseUint(record[1], 10, 16)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("client %q: %w", record[1], err)
	}

	id, err := strconv.ParseUint(record[2], 10, 32)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("tx %q: %w", record[2], err)
	}

	tx := models.Transaction{
		Type:   txType,
		Client: uint16(client),
		Tx:     uint32(id),
	}

	// Fields past the amount column are ignored.
	raw := ""
	if len(record) >= 4 {
		raw = record[3]
	}

	switch {
	case txType.CarriesAmount() && raw == "":
		return models.Transaction{}, fmt.Errorf("%s tx %d: amount is required", txType, id)
	case !txType.CarriesAmount() && raw != "":
		return models.Transaction{}, fmt.Errorf("%s tx %d: unexpected amount %q", txType, id, raw)
	case raw != "":
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("amount %q: %w", raw, err)
		}
		tx.Amount = &amount
	}

	if err := r.validator.ValidateStruct(&tx); err != nil {
		return models.Transaction{}, fmt.Errorf("invalid record: %s", validation.Summary(err))
	}
	return tx, nil
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
