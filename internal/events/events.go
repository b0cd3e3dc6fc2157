// Package events defines the typed notification stream emitted after each
// successful pool mutation. The event stream is the sole audit trail; the
// engine itself keeps no history.
package events

import (
	"context"

	"curvepool/internal/domain"
)

// Type identifies the kind of event.
type Type string

// Event type constants.
const (
	TypePoolCreated        Type = "pool_created"
	TypeTradeExecuted      Type = "trade_executed"
	TypeGraduated          Type = "graduated"
	TypeOracleUpdated      Type = "oracle_updated"
	TypeFeesWithdrawn      Type = "fees_withdrawn"
	TypeReserveWithdrawn   Type = "reserve_withdrawn"
	TypeEmergencyWithdrawn Type = "emergency_withdrawn"
)

// TradeSide distinguishes buys from sells.
type TradeSide string

// Trade side constants.
const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Event is the unified notification envelope. Exactly one payload field is
// set, matching Type.
type Event struct {
	Type      Type   `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Creator   string `json:"creator"`
	Symbol    string `json:"symbol"`

	Created    *PoolCreated   `json:"created,omitempty"`
	Trade      *TradeExecuted `json:"trade,omitempty"`
	Graduation *Graduated     `json:"graduation,omitempty"`
	Oracle     *OracleUpdated `json:"oracle,omitempty"`
	Withdrawal *Withdrawal    `json:"withdrawal,omitempty"`
}

// PoolCreated is emitted once per pool.
type PoolCreated struct {
	Name        string `json:"name"`
	TotalSupply uint64 `json:"total_supply"`
	K           uint64 `json:"k"`
	FeeRateBps  uint64 `json:"fee_rate_bps"`
}

// TradeExecuted is emitted after every successful buy or sell.
type TradeExecuted struct {
	Side        TradeSide `json:"side"`
	Trader      string    `json:"trader"`
	TokenAmount uint64    `json:"token_amount"`
	// GrossAmount is the settlement volume before the fee split: money in
	// for buys, gross refund for sells.
	GrossAmount uint64 `json:"gross_amount"`
	Fee         uint64 `json:"fee"`
	NetAmount   uint64 `json:"net_amount"`

	ReserveAfter     uint64 `json:"reserve_after"`
	CirculatingAfter uint64 `json:"circulating_after"`
}

// Graduated is emitted exactly once, when circulating supply reaches the
// graduation threshold.
type Graduated struct {
	CirculatingSupply   uint64 `json:"circulating_supply"`
	GraduationThreshold uint64 `json:"graduation_threshold"`
	GraduationTarget    string `json:"graduation_target"`
}

// OracleUpdated is emitted after a successful oracle price update.
type OracleUpdated struct {
	Price uint64 `json:"price"`
}

// Withdrawal is emitted for fee, reserve, and emergency withdrawals.
type Withdrawal struct {
	Amount       uint64 `json:"amount"`
	ReserveAfter uint64 `json:"reserve_after"`
	// Reason carries the caller-supplied justification for emergency
	// withdrawals; empty otherwise.
	Reason string `json:"reason,omitempty"`
}

// Sink accepts events synchronously after a successful mutation. A sink
// failure never rolls the mutation back; durable sinks own their retries.
type Sink interface {
	Emit(ctx context.Context, ev *Event) error
}

// PoolRef is a convenience constructor for the envelope fields shared by
// every event.
func PoolRef(t Type, p *domain.Pool, ts int64) *Event {
	return &Event{
		Type:      t,
		Timestamp: ts,
		Creator:   p.CreatorIdentity,
		Symbol:    p.Symbol,
	}
}
