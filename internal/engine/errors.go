package engine

import "errors"

// Operation errors. Every failure is synchronous and non-retryable; the
// failed operation leaves pool state and ledger balances unchanged.
var (
	// ErrInvalidArgument is returned for zero or out-of-range amounts and
	// malformed identities.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPermissionDenied is returned when a non-creator invokes a
	// creator-only operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyExists is returned when creating a pool whose
	// (creator, symbol) pair already has one.
	ErrAlreadyExists = errors.New("pool already exists")

	// ErrInsufficientFunds is returned when the payer's settlement balance
	// or the pool reserve is below the required amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientTokenBalance is returned when a seller holds fewer
	// tokens than offered.
	ErrInsufficientTokenBalance = errors.New("insufficient token balance")

	// ErrInsufficientCustodialTokens is returned when the pool's custody
	// holds fewer tokens than a buy would release.
	ErrInsufficientCustodialTokens = errors.New("insufficient custodial tokens")

	// ErrInvalidState is returned for oracle operations before graduation
	// and for trades against a zero oracle price.
	ErrInvalidState = errors.New("invalid pool state")

	// ErrCooldownNotExpired is returned when a reserve withdrawal arrives
	// before the cooldown elapses.
	ErrCooldownNotExpired = errors.New("withdrawal cooldown not expired")

	// ErrExceedsWithdrawalLimit is returned when a reserve withdrawal
	// exceeds the percentage cap on the live reserve.
	ErrExceedsWithdrawalLimit = errors.New("exceeds withdrawal limit")

	// ErrInsufficientBacking is returned when a reserve withdrawal would
	// drop the reserve below the backing floor.
	ErrInsufficientBacking = errors.New("insufficient backing")
)
