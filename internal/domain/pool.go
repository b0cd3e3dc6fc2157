package domain

import "fmt"

// SaleStatus describes the trading state presented to callers.
type SaleStatus string

// Sale status constants, checked in priority order Emergency > Graduated > Bonding.
const (
	SaleStatusEmergency SaleStatus = "EMERGENCY"
	SaleStatusGraduated SaleStatus = "GRADUATED"
	SaleStatusBonding   SaleStatus = "BONDING"
)

// Pool is the per-token liquidity pool record. One pool exists per
// (creator identity, symbol) pair; it is created once and never deleted.
//
// Reserve tracks the settlement-currency backing for circulating tokens.
// The pool's custodial settlement balance may exceed Reserve; the excess
// is the fee float accumulated from trading fees.
type Pool struct {
	// Identity
	CreatorIdentity string // base58 ed25519 public key, sole privileged caller
	Symbol          string
	Name            string
	IconRef         string
	ProjectURLRef   string
	Decimals        uint8
	AssetType       string

	// Curve parameters, fixed at creation
	TotalSupply uint64 // upper bound on circulating supply, minted into custody at creation
	K           uint64 // curve constant
	FeeRateBps  uint64 // trade fee in basis points, 0..10000

	// Withdrawal guardrails, fixed at creation
	BackingRatioBps           uint64
	WithdrawalLimitBps        uint64
	WithdrawalCooldownSeconds uint64

	// Graduation parameters, fixed at creation
	GraduationThreshold uint64 // circulating supply at which the pool graduates
	GraduationTarget    string // external venue reference, display only

	// Mutable state
	Reserve                 uint64
	CirculatingSupply       uint64
	LastWithdrawalTimestamp int64 // unix seconds, updated only by successful reserve withdrawal
	IsGraduated             bool  // monotone false -> true
	IsEmergency             bool  // monotone false -> true, no recovery path
	OraclePrice             uint64
	LastOracleUpdate        int64 // unix seconds

	CreatedAt int64 // unix seconds

	// Version guards optimistic store updates. Incremented on every
	// successful mutation.
	Version uint64
}

// Key returns the storage key for this pool.
func (p *Pool) Key() string {
	return PoolKey(p.CreatorIdentity, p.Symbol)
}

// PoolKey builds the composite key identifying a pool. The same key doubles
// as the pool's custody account address on both ledgers.
func PoolKey(creatorIdentity, symbol string) string {
	return fmt.Sprintf("%s|%s", creatorIdentity, symbol)
}

// Status derives the caller-facing sale status. Emergency takes priority
// over graduation, which takes priority over the initial bonding phase.
func (p *Pool) Status() SaleStatus {
	switch {
	case p.IsEmergency:
		return SaleStatusEmergency
	case p.IsGraduated:
		return SaleStatusGraduated
	default:
		return SaleStatusBonding
	}
}

// Clone returns a deep copy. Stores and the engine hand out copies so no
// caller can mutate shared state outside a transition.
func (p *Pool) Clone() *Pool {
	c := *p
	return &c
}
