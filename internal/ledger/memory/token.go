package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"curvepool/internal/ledger"
)

// TokenLedger is an in-memory implementation of ledger.TokenLedger.
type TokenLedger struct {
	mu       sync.RWMutex
	balances map[string]uint64 // keyed by token|holder
}

// NewTokenLedger creates an empty in-memory token ledger.
func NewTokenLedger() *TokenLedger {
	return &TokenLedger{
		balances: make(map[string]uint64),
	}
}

func holdingKey(token, holder string) string {
	return fmt.Sprintf("%s|%s", token, holder)
}

// Mint credits freshly issued tokens to a holder.
func (l *TokenLedger) Mint(_ context.Context, token, holder string, amount uint64) error {
	if token == "" || holder == "" || amount == 0 {
		return ledger.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := holdingKey(token, holder)
	if l.balances[key] > math.MaxUint64-amount {
		return ledger.ErrInvalidInput
	}
	l.balances[key] += amount
	return nil
}

// Burn destroys tokens held by a holder.
func (l *TokenLedger) Burn(_ context.Context, token, holder string, amount uint64) error {
	if token == "" || holder == "" || amount == 0 {
		return ledger.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := holdingKey(token, holder)
	if l.balances[key] < amount {
		return ledger.ErrInsufficientBalance
	}
	l.balances[key] -= amount
	return nil
}

// Transfer moves tokens between holders of the same token.
func (l *TokenLedger) Transfer(_ context.Context, token, from, to string, amount uint64) error {
	if token == "" || from == "" || to == "" || amount == 0 {
		return ledger.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fromKey := holdingKey(token, from)
	if l.balances[fromKey] < amount {
		return ledger.ErrInsufficientBalance
	}
	l.balances[fromKey] -= amount
	l.balances[holdingKey(token, to)] += amount
	return nil
}

// BalanceOf returns the holder's balance for a token. Unknown holdings are zero.
func (l *TokenLedger) BalanceOf(_ context.Context, token, holder string) (uint64, error) {
	if token == "" || holder == "" {
		return 0, ledger.ErrInvalidInput
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[holdingKey(token, holder)], nil
}

var _ ledger.TokenLedger = (*TokenLedger)(nil)
