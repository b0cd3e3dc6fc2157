// Package ledger defines the custody collaborators the engine settles
// against. The engine never owns balances itself: tokens live in the
// custodial token ledger and settlement currency in the settlement ledger,
// both keyed by opaque account addresses. A pool's custody account is its
// own storage key.
package ledger

import (
	"context"
	"errors"
)

// Ledger errors.
var (
	// ErrInsufficientBalance is returned when a transfer or burn exceeds
	// the source balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidInput is returned for empty accounts or zero amounts.
	ErrInvalidInput = errors.New("invalid ledger input")
)

// SettlementLedger tracks balances of the single settlement currency.
type SettlementLedger interface {
	// BalanceOf returns the current balance of an account.
	BalanceOf(ctx context.Context, account string) (uint64, error)

	// Transfer moves amount from one account to another. Returns
	// ErrInsufficientBalance if the source balance is too low.
	Transfer(ctx context.Context, from, to string, amount uint64) error

	// Mint credits new settlement units to an account. Exercised by tests
	// and tooling; a production deployment funds accounts externally.
	Mint(ctx context.Context, account string, amount uint64) error
}

// TokenLedger tracks balances of issued tokens, keyed by (token, holder).
// The token identifier is the issuing pool's key.
type TokenLedger interface {
	// Mint credits freshly issued tokens to a holder. Called exactly once
	// per pool, at creation, with the full total supply.
	Mint(ctx context.Context, token, holder string, amount uint64) error

	// Burn destroys tokens held by a holder.
	Burn(ctx context.Context, token, holder string, amount uint64) error

	// Transfer moves tokens between holders of the same token.
	Transfer(ctx context.Context, token, from, to string, amount uint64) error

	// BalanceOf returns the holder's balance for a token.
	BalanceOf(ctx context.Context, token, holder string) (uint64, error)
}
