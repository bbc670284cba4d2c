package services

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/ruralpay/txengine/internal/models"
	"github.com/shopspring/decimal"
)

// LockedPolicy decides what a locked account still accepts.
type LockedPolicy string

const (
	// LockedRejectFunding blocks deposits and withdrawals but lets open
	// disputes on the account run their course.
	LockedRejectFunding LockedPolicy = "reject-funding"
	// LockedFreeze blocks every mutation.
	LockedFreeze LockedPolicy = "freeze"
	// LockedAllow ignores the lock flag entirely.
	LockedAllow LockedPolicy = "allow"
)

// ParseLockedPolicy returns LockedRejectFunding for an empty string.
func ParseLockedPolicy(s string) (LockedPolicy, error) {
	switch p := LockedPolicy(s); p {
	case "":
		return LockedRejectFunding, nil
	case LockedRejectFunding, LockedFreeze, LockedAllow:
		return p, nil
	default:
		return "", fmt.Errorf("unknown locked-account policy %q", s)
	}
}

// AccountLedger holds per-client balances. It is not safe for concurrent use:
// a run owns its ledger exclusively.
type AccountLedger struct {
	accounts map[uint16]*models.Account
	policy   LockedPolicy
}

func NewAccountLedger(policy LockedPolicy) *AccountLedger {
	if policy == "" {
		policy = LockedRejectFunding
	}
	return &AccountLedger{
		accounts: make(map[uint16]*models.Account),
		policy:   policy,
	}
}

// Policy returns the locked-account policy in effect.
func (l *AccountLedger) Policy() LockedPolicy {
	return l.policy
}

// Deposit credits available funds, creating the account on first use.
func (l *AccountLedger) Deposit(client uint16, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("deposit of %s for client %d: %w", amount, client, ErrInvalidAmount)
	}

	account, ok := l.accounts[client]
	if !ok {
		account = &models.Account{Client: client}
	}

	if err := l.mutate(account, true, func(a *models.Account) error {
		a.Available = a.Available.Add(amount)
		a.Total = a.Total.Add(amount)
		return nil
	}); err != nil {
		return fmt.Errorf("deposit for client %d: %w", client, err)
	}

	if !ok {
		l.accounts[client] = account
	}
	return nil
}

// Withdraw debits available funds. An unseen client cannot withdraw.
func (l *AccountLedger) Withdraw(client uint16, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("withdrawal of %s for client %d: %w", amount, client, ErrInvalidAmount)
	}

	account, ok := l.accounts[client]
	if !ok {
		return fmt.Errorf("withdrawal for client %d: %w", client, ErrUnknownAccount)
	}

	if err := l.mutate(account, true, func(a *models.Account) error {
		if a.Available.LessThan(amount) {
			return fmt.Errorf("available %s below %s: %w", a.Available, amount, ErrInsufficientFunds)
		}
		a.Available = a.Available.Sub(amount)
		a.Total = a.Total.Sub(amount)
		return nil
	}); err != nil {
		return fmt.Errorf("withdrawal for client %d: %w", client, err)
	}
	return nil
}

// Hold moves funds from available to held. Hold, Release and Chargeback
// accept a zero amount: balances stay put but the lock policy still applies
// and Chargeback still locks.
func (l *AccountLedger) Hold(client uint16, amount decimal.Decimal) error {
	account, err := l.existing(client, amount)
	if err != nil {
		return fmt.Errorf("hold: %w", err)
	}

	if err := l.mutate(account, false, func(a *models.Account) error {
		if a.Available.LessThan(amount) {
			return fmt.Errorf("available %s below %s: %w", a.Available, amount, ErrInsufficientFunds)
		}
		a.Available = a.Available.Sub(amount)
		a.Held = a.Held.Add(amount)
		return nil
	}); err != nil {
		return fmt.Errorf("hold for client %d: %w", client, err)
	}
	return nil
}

// Release moves funds from held back to available.
func (l *AccountLedger) Release(client uint16, amount decimal.Decimal) error {
	account, err := l.existing(client, amount)
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}

	if err := l.mutate(account, false, func(a *models.Account) error {
		if a.Held.LessThan(amount) {
			return fmt.Errorf("held %s below %s: %w", a.Held, amount, ErrInvalidState)
		}
		a.Held = a.Held.Sub(amount)
		a.Available = a.Available.Add(amount)
		return nil
	}); err != nil {
		return fmt.Errorf("release for client %d: %w", client, err)
	}
	return nil
}

// Chargeback removes held funds from the account and locks it.
func (l *AccountLedger) Chargeback(client uint16, amount decimal.Decimal) error {
	account, err := l.existing(client, amount)
	if err != nil {
		return fmt.Errorf("chargeback: %w", err)
	}

	if err := l.mutate(account, false, func(a *models.Account) error {
		if a.Held.LessThan(amount) {
			return fmt.Errorf("held %s below %s: %w", a.Held, amount, ErrInvalidState)
		}
		a.Held = a.Held.Sub(amount)
		a.Total = a.Total.Sub(amount)
		a.Locked = true
		return nil
	}); err != nil {
		return fmt.Errorf("chargeback for client %d: %w", client, err)
	}
	return nil
}

// Account returns a copy of the client's account.
func (l *AccountLedger) Account(client uint16) (models.Account, bool) {
	account, ok := l.accounts[client]
	if !ok {
		return models.Account{}, false
	}
	return *account, true
}

// Len returns the number of known accounts.
func (l *AccountLedger) Len() int {
	return len(l.accounts)
}

// Snapshot yields one snapshot per known account ordered by client id. The
// sequence can be ranged over any number of times; each pass reflects the
// ledger at the moment it starts.
func (l *AccountLedger) Snapshot() iter.Seq[models.Snapshot] {
	return func(yield func(models.Snapshot) bool) {
		for _, client := range slices.Sorted(maps.Keys(l.accounts)) {
			if !yield(l.accounts[client].Snapshot()) {
				return
			}
		}
	}
}

// Snapshots collects Snapshot into a slice.
func (l *AccountLedger) Snapshots() []models.Snapshot {
	return slices.Collect(l.Snapshot())
}

func (l *AccountLedger) existing(client uint16, amount decimal.Decimal) (*models.Account, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount %s for client %d: %w", amount, client, ErrInvalidAmount)
	}
	account, ok := l.accounts[client]
	if !ok {
		return nil, fmt.Errorf("client %d: %w", client, ErrUnknownAccount)
	}
	return account, nil
}

// mutate applies fn to a copy of the account and commits the copy only when
// fn succeeds and the invariant still holds.
func (l *AccountLedger) mutate(account *models.Account, funding bool, fn func(*models.Account) error) error {
	if account.Locked {
		switch {
		case l.policy == LockedFreeze:
			return ErrAccountLocked
		case l.policy == LockedRejectFunding && funding:
			return ErrAccountLocked
		}
	}

	next := *account
	if err := fn(&next); err != nil {
		return err
	}
	if err := checkInvariant(next); err != nil {
		return err
	}

	*account = next
	return nil
}

func checkInvariant(a models.Account) error {
	if !a.Total.Equal(a.Available.Add(a.Held)) {
		return fmt.Errorf("total %s != available %s + held %s: %w", a.Total, a.Available, a.Held, ErrInvariantViolation)
	}
	if a.Available.IsNegative() || a.Held.IsNegative() {
		return fmt.Errorf("negative balance available=%s held=%s: %w", a.Available, a.Held, ErrInvariantViolation)
	}
	return nil
}
