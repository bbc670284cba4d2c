package services

import (
	"testing"

	"github.com/ruralpay/txengine/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertBalances(t *testing.T, l *AccountLedger, client uint16, available, held, total string, locked bool) {
	t.Helper()
	account, ok := l.Account(client)
	require.True(t, ok, "account %d should exist", client)
	assert.True(t, dec(available).Equal(account.Available), "available: want %s got %s", available, account.Available)
	assert.True(t, dec(held).Equal(account.Held), "held: want %s got %s", held, account.Held)
	assert.True(t, dec(total).Equal(account.Total), "total: want %s got %s", total, account.Total)
	assert.Equal(t, locked, account.Locked)
}

func TestAccountLedger_Deposit(t *testing.T) {
	t.Run("creates account on first deposit", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)

		require.NoError(t, l.Deposit(1, dec("10.0")))
		assertBalances(t, l, 1, "10", "0", "10", false)
		assert.Equal(t, 1, l.Len())
	})

	t.Run("accumulates", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)

		require.NoError(t, l.Deposit(1, dec("1.1234")))
		require.NoError(t, l.Deposit(1, dec("2.0001")))
		assertBalances(t, l, 1, "3.1235", "0", "3.1235", false)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)

		assert.ErrorIs(t, l.Deposit(1, dec("0")), ErrInvalidAmount)
		assert.ErrorIs(t, l.Deposit(1, dec("-5")), ErrInvalidAmount)
		assert.Equal(t, 0, l.Len(), "rejected deposit must not create an account")
	})
}

func TestAccountLedger_Withdraw(t *testing.T) {
	t.Run("debits available", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)
		require.NoError(t, l.Deposit(1, dec("2")))

		require.NoError(t, l.Withdraw(1, dec("1")))
		assertBalances(t, l, 1, "1", "0", "1", false)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)
		require.NoError(t, l.Deposit(1, dec("10")))

		assert.ErrorIs(t, l.Withdraw(1, dec("15")), ErrInsufficientFunds)
		assertBalances(t, l, 1, "10", "0", "10", false)
	})

	t.Run("exact balance", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)
		require.NoError(t, l.Deposit(1, dec("10")))

		require.NoError(t, l.Withdraw(1, dec("10.0000")))
		assertBalances(t, l, 1, "0", "0", "0", false)
	})

	t.Run("unknown account", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)

		assert.ErrorIs(t, l.Withdraw(7, dec("1")), ErrUnknownAccount)
		assert.Equal(t, 0, l.Len())
	})

	t.Run("held funds cannot be withdrawn", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)
		require.NoError(t, l.Deposit(1, dec("2")))
		require.NoError(t, l.Hold(1, dec("2")))

		assert.ErrorIs(t, l.Withdraw(1, dec("1")), ErrInsufficientFunds)
	})
}

func TestAccountLedger_HoldReleaseChargeback(t *testing.T) {
	t.Run("hold and release round trip", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)
		require.NoError(t, l.Deposit(1, dec("5")))

		require.NoError(t, l.Hold(1, dec("2")))
		assertBalances(t, l, 1, "3", "2", "5", false)

		require.NoError(t, l.Release(1, dec("2")))
		assertBalances(t, l, 1, "5", "0", "5", false)
	})

	t.Run("chargeback removes held funds and locks", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)
		require.NoError(t, l.Deposit(1, dec("5")))
		require.NoError(t, l.Hold(1, dec("2")))

		require.NoError(t, l.Chargeback(1, dec("2")))
		assertBalances(t, l, 1, "3", "0", "3", true)
	})

	t.Run("hold beyond available", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)
		require.NoError(t, l.Deposit(1, dec("1")))

		assert.ErrorIs(t, l.Hold(1, dec("2")), ErrInsufficientFunds)
		assertBalances(t, l, 1, "1", "0", "1", false)
	})

	t.Run("release beyond held", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)
		require.NoError(t, l.Deposit(1, dec("1")))

		assert.ErrorIs(t, l.Release(1, dec("1")), ErrInvalidState)
		assert.ErrorIs(t, l.Chargeback(1, dec("1")), ErrInvalidState)
		assertBalances(t, l, 1, "1", "0", "1", false)
	})

	t.Run("unknown account", func(t *testing.T) {
		l := NewAccountLedger(LockedRejectFunding)

		assert.ErrorIs(t, l.Hold(9, dec("1")), ErrUnknownAccount)
		assert.ErrorIs(t, l.Release(9, dec("1")), ErrUnknownAccount)
		assert.ErrorIs(t, l.Chargeback(9, dec("1")), ErrUnknownAccount)
		assert.Equal(t, 0, l.Len())
	})
}

func TestAccountLedger_LockedPolicy(t *testing.T) {
	locked := func(t *testing.T, policy LockedPolicy) *AccountLedger {
		t.Helper()
		l := NewAccountLedger(policy)
		require.NoError(t, l.Deposit(1, dec("10")))
		require.NoError(t, l.Hold(1, dec("4")))
		require.NoError(t, l.Chargeback(1, dec("2")))
		assertBalances(t, l, 1, "6", "2", "8", true)
		return l
	}

	t.Run("reject-funding blocks deposits and withdrawals", func(t *testing.T) {
		l := locked(t, LockedRejectFunding)

		assert.ErrorIs(t, l.Deposit(1, dec("1")), ErrAccountLocked)
		assert.ErrorIs(t, l.Withdraw(1, dec("1")), ErrAccountLocked)
		require.NoError(t, l.Release(1, dec("2")))
		assertBalances(t, l, 1, "8", "0", "8", true)
	})

	t.Run("freeze blocks everything", func(t *testing.T) {
		l := locked(t, LockedFreeze)

		assert.ErrorIs(t, l.Deposit(1, dec("1")), ErrAccountLocked)
		assert.ErrorIs(t, l.Release(1, dec("2")), ErrAccountLocked)
		assertBalances(t, l, 1, "6", "2", "8", true)
	})

	t.Run("allow ignores the lock", func(t *testing.T) {
		l := locked(t, LockedAllow)

		require.NoError(t, l.Deposit(1, dec("1")))
		require.NoError(t, l.Withdraw(1, dec("7")))
		assertBalances(t, l, 1, "0", "2", "2", true)
	})
}

func TestParseLockedPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    LockedPolicy
		wantErr bool
	}{
		{"", LockedRejectFunding, false},
		{"reject-funding", LockedRejectFunding, false},
		{"freeze", LockedFreeze, false},
		{"allow", LockedAllow, false},
		{"sometimes", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLockedPolicy(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		assert.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestAccountLedger_Snapshot(t *testing.T) {
	l := NewAccountLedger(LockedRejectFunding)
	require.NoError(t, l.Deposit(3, dec("3")))
	require.NoError(t, l.Deposit(1, dec("1")))
	require.NoError(t, l.Deposit(2, dec("2")))

	var clients []uint16
	for s := range l.Snapshot() {
		clients = append(clients, s.Client)
	}
	assert.Equal(t, []uint16{1, 2, 3}, clients)

	t.Run("restartable", func(t *testing.T) {
		seq := l.Snapshot()
		first := 0
		for range seq {
			first++
		}
		second := 0
		for range seq {
			second++
		}
		assert.Equal(t, 3, first)
		assert.Equal(t, first, second)
	})

	t.Run("early stop", func(t *testing.T) {
		var got []models.Snapshot
		for s := range l.Snapshot() {
			got = append(got, s)
			break
		}
		require.Len(t, got, 1)
		assert.Equal(t, uint16(1), got[0].Client)
	})

	t.Run("empty ledger", func(t *testing.T) {
		assert.Empty(t, NewAccountLedger(LockedRejectFunding).Snapshots())
	})
}

func TestCheckInvariant(t *testing.T) {
	assert.NoError(t, checkInvariant(models.Account{Available: dec("1"), Held: dec("2"), Total: dec("3")}))
	assert.ErrorIs(t, checkInvariant(models.Account{Available: dec("1"), Held: dec("2"), Total: dec("4")}), ErrInvariantViolation)
	assert.ErrorIs(t, checkInvariant(models.Account{Available: dec("-1"), Held: dec("2"), Total: dec("1")}), ErrInvariantViolation)
}

func TestAccountLedger_ZeroAmountDisputeOps(t *testing.T) {
	l := NewAccountLedger(LockedRejectFunding)
	require.NoError(t, l.Deposit(1, dec("3")))

	require.NoError(t, l.Hold(1, decimal.Zero))
	require.NoError(t, l.Release(1, decimal.Zero))
	assertBalances(t, l, 1, "3", "0", "3", false)

	require.NoError(t, l.Chargeback(1, decimal.Zero))
	assertBalances(t, l, 1, "3", "0", "3", true)

	assert.ErrorIs(t, l.Hold(1, dec("-1")), ErrInvalidAmount)
	assert.ErrorIs(t, l.Chargeback(9, decimal.Zero), ErrUnknownAccount)
}
