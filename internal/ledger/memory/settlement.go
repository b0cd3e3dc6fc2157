// Package memory provides in-memory ledger implementations used by tests,
// the simulator, and single-process deployments.
package memory

import (
	"context"
	"math"
	"sync"

	"curvepool/internal/ledger"
)

// SettlementLedger is an in-memory implementation of ledger.SettlementLedger.
type SettlementLedger struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

// NewSettlementLedger creates an empty in-memory settlement ledger.
func NewSettlementLedger() *SettlementLedger {
	return &SettlementLedger{
		balances: make(map[string]uint64),
	}
}

// BalanceOf returns the balance of an account. Unknown accounts hold zero.
func (l *SettlementLedger) BalanceOf(_ context.Context, account string) (uint64, error) {
	if account == "" {
		return 0, ledger.ErrInvalidInput
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

// Transfer moves amount between accounts.
func (l *SettlementLedger) Transfer(_ context.Context, from, to string, amount uint64) error {
	if from == "" || to == "" || amount == 0 {
		return ledger.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return ledger.ErrInsufficientBalance
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// Mint credits new settlement units to an account.
func (l *SettlementLedger) Mint(_ context.Context, account string, amount uint64) error {
	if account == "" || amount == 0 {
		return ledger.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[account] > math.MaxUint64-amount {
		return ledger.ErrInvalidInput
	}
	l.balances[account] += amount
	return nil
}

var _ ledger.SettlementLedger = (*SettlementLedger)(nil)
