// Package engine implements the bonding-curve pool operations: creation,
// curve- and oracle-priced trading, graduation, and guarded reserve
// withdrawals.
//
// Every operation against a pool runs as a single serialized transition:
// preconditions first, then mutation and fund transfers as one unit, or
// nothing. The engine performs no logging; failures surface as typed
// errors and presentation belongs to the caller-facing layer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"curvepool/internal/curve"
	"curvepool/internal/domain"
	"curvepool/internal/events"
	"curvepool/internal/identity"
	"curvepool/internal/ledger"
	"curvepool/internal/observability"
	"curvepool/internal/storage"
)

// Engine executes pool operations against injected collaborators.
type Engine struct {
	pools  storage.PoolStore
	tokens ledger.TokenLedger
	settle ledger.SettlementLedger
	clock  Clock
	sink   events.Sink

	metrics *observability.Metrics // optional
	locks   *keyedLocks
}

// New creates an engine. sink and metrics may be nil.
func New(
	pools storage.PoolStore,
	tokens ledger.TokenLedger,
	settle ledger.SettlementLedger,
	clock Clock,
	sink events.Sink,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		pools:   pools,
		tokens:  tokens,
		settle:  settle,
		clock:   clock,
		sink:    sink,
		metrics: metrics,
		locks:   newKeyedLocks(),
	}
}

// CreateParams holds every pool parameter fixed at creation.
type CreateParams struct {
	CreatorIdentity string
	Symbol          string
	Name            string
	IconRef         string
	ProjectURLRef   string
	Decimals        uint8
	AssetType       string

	TotalSupply uint64
	K           uint64
	FeeRateBps  uint64

	BackingRatioBps           uint64
	WithdrawalLimitBps        uint64
	WithdrawalCooldownSeconds uint64

	GraduationThreshold uint64
	GraduationTarget    string
}

// Create registers a new pool and mints its full total supply into pool
// custody. The reserve starts at zero. Fails with ErrAlreadyExists if the
// (creator, symbol) pair already has a pool.
func (e *Engine) Create(ctx context.Context, p CreateParams) (_ *domain.Pool, err error) {
	defer func() { e.countError("create", err) }()
	if err := identity.Validate(p.CreatorIdentity); err != nil {
		return nil, fmt.Errorf("%w: creator identity: %s", ErrInvalidArgument, err)
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidArgument)
	}
	if p.TotalSupply == 0 {
		return nil, fmt.Errorf("%w: zero total supply", ErrInvalidArgument)
	}
	if p.FeeRateBps > 10_000 || p.BackingRatioBps > 10_000 || p.WithdrawalLimitBps > 10_000 {
		return nil, fmt.Errorf("%w: basis points exceed 10000", ErrInvalidArgument)
	}

	key := domain.PoolKey(p.CreatorIdentity, p.Symbol)
	unlock := e.locks.acquire(key)
	defer unlock()

	now := e.clock.Now()
	pool := &domain.Pool{
		CreatorIdentity:           p.CreatorIdentity,
		Symbol:                    p.Symbol,
		Name:                      p.Name,
		IconRef:                   p.IconRef,
		ProjectURLRef:             p.ProjectURLRef,
		Decimals:                  p.Decimals,
		AssetType:                 p.AssetType,
		TotalSupply:               p.TotalSupply,
		K:                         p.K,
		FeeRateBps:                p.FeeRateBps,
		BackingRatioBps:           p.BackingRatioBps,
		WithdrawalLimitBps:        p.WithdrawalLimitBps,
		WithdrawalCooldownSeconds: p.WithdrawalCooldownSeconds,
		GraduationThreshold:       p.GraduationThreshold,
		GraduationTarget:          p.GraduationTarget,
		CreatedAt:                 now,
	}

	if err := e.pools.Insert(ctx, pool); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert pool: %w", err)
	}

	if err := e.tokens.Mint(ctx, key, key, pool.TotalSupply); err != nil {
		return nil, fmt.Errorf("mint total supply: %w", err)
	}

	ev := events.PoolRef(events.TypePoolCreated, pool, now)
	ev.Created = &events.PoolCreated{
		Name:        pool.Name,
		TotalSupply: pool.TotalSupply,
		K:           pool.K,
		FeeRateBps:  pool.FeeRateBps,
	}
	e.emit(ctx, ev)

	if e.metrics != nil {
		e.metrics.PoolsCreated.Inc()
		e.recordPoolState(pool)
	}

	return pool.Clone(), nil
}

// BuyQuote is the fee and token breakdown of a prospective buy.
type BuyQuote struct {
	PaidAmount  uint64 `json:"paid_amount"`
	Fee         uint64 `json:"fee"`
	NetAmount   uint64 `json:"net_amount"`
	TokenAmount uint64 `json:"token_amount"`
}

// SellQuote is the refund breakdown of a prospective sell.
type SellQuote struct {
	TokenAmount uint64 `json:"token_amount"`
	GrossRefund uint64 `json:"gross_refund"`
	Fee         uint64 `json:"fee"`
	NetAmount   uint64 `json:"net_amount"`
}

// quoteBuy applies the fee split and the lifecycle-appropriate pricing
// formula. Shared by Buy and GetBuyPrice so quotes match execution.
func quoteBuy(p *domain.Pool, paidAmount uint64) (*BuyQuote, error) {
	if paidAmount == 0 {
		return nil, fmt.Errorf("%w: paid amount must be positive", ErrInvalidArgument)
	}

	fee, net := curve.SplitFee(paidAmount, p.FeeRateBps)

	var (
		tokenAmount uint64
		err         error
	)
	if p.IsGraduated {
		tokenAmount, err = curve.OracleBuyAmount(p.OraclePrice, net)
	} else {
		tokenAmount, err = curve.BuyAmount(p.K, p.CirculatingSupply, net)
	}
	if err != nil {
		return nil, mapCurveErr(err)
	}

	return &BuyQuote{
		PaidAmount:  paidAmount,
		Fee:         fee,
		NetAmount:   net,
		TokenAmount: tokenAmount,
	}, nil
}

// quoteSell prices a sell. The bonding-curve branch uses the post-trade
// supply: selling back tokens just bought never fully recovers the amount
// paid, even before fees. Shared by Sell and GetSellPrice.
func quoteSell(p *domain.Pool, tokenAmount uint64) (*SellQuote, error) {
	if tokenAmount == 0 {
		return nil, fmt.Errorf("%w: token amount must be positive", ErrInvalidArgument)
	}

	var (
		gross uint64
		err   error
	)
	if p.IsGraduated {
		gross, err = curve.OracleSellRefund(p.OraclePrice, tokenAmount)
	} else {
		gross, err = curve.SellAmount(p.K, p.CirculatingSupply, tokenAmount)
	}
	if err != nil {
		return nil, mapCurveErr(err)
	}

	fee, net := curve.SplitFee(gross, p.FeeRateBps)
	return &SellQuote{
		TokenAmount: tokenAmount,
		GrossRefund: gross,
		Fee:         fee,
		NetAmount:   net,
	}, nil
}

// Buy purchases tokens from the pool for paidAmount settlement units.
// Returns the token amount received.
func (e *Engine) Buy(ctx context.Context, buyerIdentity, creatorIdentity, symbol string, paidAmount uint64) (_ uint64, err error) {
	defer func() { e.countError("buy", err) }()
	if paidAmount == 0 {
		return 0, fmt.Errorf("%w: paid amount must be positive", ErrInvalidArgument)
	}

	key := domain.PoolKey(creatorIdentity, symbol)
	unlock := e.locks.acquire(key)
	defer unlock()

	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return 0, fmt.Errorf("load pool: %w", err)
	}
	now := e.clock.Now()

	buyerBalance, err := e.settle.BalanceOf(ctx, buyerIdentity)
	if err != nil {
		return 0, fmt.Errorf("buyer balance: %w", err)
	}
	if buyerBalance < paidAmount {
		return 0, ErrInsufficientFunds
	}

	quote, err := quoteBuy(pool, paidAmount)
	if err != nil {
		return 0, err
	}

	custody, err := e.tokens.BalanceOf(ctx, key, key)
	if err != nil {
		return 0, fmt.Errorf("pool custody balance: %w", err)
	}
	if custody < quote.TokenAmount {
		return 0, ErrInsufficientCustodialTokens
	}

	next := pool.Clone()
	if next.Reserve > math.MaxUint64-quote.NetAmount {
		return 0, fmt.Errorf("%w: reserve overflow", ErrInvalidArgument)
	}
	next.Reserve += quote.NetAmount
	next.CirculatingSupply += quote.TokenAmount

	// Graduation is checked against the post-mutation supply and flips at
	// most once, inside the same transition as the triggering buy.
	graduated := false
	if !next.IsGraduated && next.CirculatingSupply >= next.GraduationThreshold {
		next.IsGraduated = true
		graduated = true
	}

	if err := e.settle.Transfer(ctx, buyerIdentity, key, paidAmount); err != nil {
		return 0, mapLedgerErr(err, ErrInsufficientFunds)
	}
	if err := e.transferTokens(ctx, key, key, buyerIdentity, quote.TokenAmount); err != nil {
		e.unwindSettle(ctx, key, buyerIdentity, paidAmount)
		return 0, mapLedgerErr(err, ErrInsufficientCustodialTokens)
	}
	if err := e.pools.Update(ctx, next); err != nil {
		e.unwindTokens(ctx, key, buyerIdentity, key, quote.TokenAmount)
		e.unwindSettle(ctx, key, buyerIdentity, paidAmount)
		return 0, fmt.Errorf("update pool: %w", err)
	}

	ev := events.PoolRef(events.TypeTradeExecuted, next, now)
	ev.Trade = &events.TradeExecuted{
		Side:             events.SideBuy,
		Trader:           buyerIdentity,
		TokenAmount:      quote.TokenAmount,
		GrossAmount:      paidAmount,
		Fee:              quote.Fee,
		NetAmount:        quote.NetAmount,
		ReserveAfter:     next.Reserve,
		CirculatingAfter: next.CirculatingSupply,
	}
	e.emit(ctx, ev)

	if graduated {
		gev := events.PoolRef(events.TypeGraduated, next, now)
		gev.Graduation = &events.Graduated{
			CirculatingSupply:   next.CirculatingSupply,
			GraduationThreshold: next.GraduationThreshold,
			GraduationTarget:    next.GraduationTarget,
		}
		e.emit(ctx, gev)
	}

	if e.metrics != nil {
		e.metrics.TradesExecuted.WithLabelValues(string(events.SideBuy)).Inc()
		e.metrics.TradeVolume.WithLabelValues(string(events.SideBuy)).Add(float64(paidAmount))
		if graduated {
			e.metrics.Graduations.Inc()
		}
		e.recordPoolState(next)
	}

	return quote.TokenAmount, nil
}

// Sell returns tokens to the pool. Returns the net settlement amount paid
// to the seller after the fee.
func (e *Engine) Sell(ctx context.Context, sellerIdentity, creatorIdentity, symbol string, tokenAmount uint64) (_ uint64, err error) {
	defer func() { e.countError("sell", err) }()
	if tokenAmount == 0 {
		return 0, fmt.Errorf("%w: token amount must be positive", ErrInvalidArgument)
	}

	key := domain.PoolKey(creatorIdentity, symbol)
	unlock := e.locks.acquire(key)
	defer unlock()

	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return 0, fmt.Errorf("load pool: %w", err)
	}
	now := e.clock.Now()

	sellerBalance, err := e.tokens.BalanceOf(ctx, key, sellerIdentity)
	if err != nil {
		return 0, fmt.Errorf("seller balance: %w", err)
	}
	if sellerBalance < tokenAmount {
		return 0, ErrInsufficientTokenBalance
	}

	quote, err := quoteSell(pool, tokenAmount)
	if err != nil {
		return 0, err
	}

	// The reserve must cover the GROSS refund; the fee portion stays in
	// custody and swells the fee float.
	if pool.Reserve < quote.GrossRefund {
		return 0, ErrInsufficientFunds
	}

	next := pool.Clone()
	next.Reserve -= quote.GrossRefund
	next.CirculatingSupply -= tokenAmount

	if err := e.transferTokens(ctx, key, sellerIdentity, key, tokenAmount); err != nil {
		return 0, mapLedgerErr(err, ErrInsufficientTokenBalance)
	}
	if err := e.transferSettle(ctx, key, sellerIdentity, quote.NetAmount); err != nil {
		e.unwindTokens(ctx, key, key, sellerIdentity, tokenAmount)
		return 0, mapLedgerErr(err, ErrInsufficientFunds)
	}
	if err := e.pools.Update(ctx, next); err != nil {
		e.unwindSettle(ctx, sellerIdentity, key, quote.NetAmount)
		e.unwindTokens(ctx, key, key, sellerIdentity, tokenAmount)
		return 0, fmt.Errorf("update pool: %w", err)
	}

	ev := events.PoolRef(events.TypeTradeExecuted, next, now)
	ev.Trade = &events.TradeExecuted{
		Side:             events.SideSell,
		Trader:           sellerIdentity,
		TokenAmount:      tokenAmount,
		GrossAmount:      quote.GrossRefund,
		Fee:              quote.Fee,
		NetAmount:        quote.NetAmount,
		ReserveAfter:     next.Reserve,
		CirculatingAfter: next.CirculatingSupply,
	}
	e.emit(ctx, ev)

	if e.metrics != nil {
		e.metrics.TradesExecuted.WithLabelValues(string(events.SideSell)).Inc()
		e.metrics.TradeVolume.WithLabelValues(string(events.SideSell)).Add(float64(quote.GrossRefund))
		e.recordPoolState(next)
	}

	return quote.NetAmount, nil
}

// countError bumps the failure counter for op. No-op on success or when
// metrics are disabled.
func (e *Engine) countError(op string, err error) {
	if err != nil && e.metrics != nil {
		e.metrics.OperationErrors.WithLabelValues(op).Inc()
	}
}

// emit delivers an event if a sink is configured. Delivery failures never
// roll back a committed mutation; durable sinks own their retries.
func (e *Engine) emit(ctx context.Context, ev *events.Event) {
	if e.sink == nil {
		return
	}
	_ = e.sink.Emit(ctx, ev)
}

func (e *Engine) recordPoolState(p *domain.Pool) {
	e.metrics.PoolReserve.WithLabelValues(p.CreatorIdentity, p.Symbol).Set(float64(p.Reserve))
	e.metrics.PoolCirculating.WithLabelValues(p.CreatorIdentity, p.Symbol).Set(float64(p.CirculatingSupply))
}

// transferTokens moves tokens, treating a zero amount as a no-op. A buy
// priced below the multiplier legitimately quotes zero tokens.
func (e *Engine) transferTokens(ctx context.Context, token, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return e.tokens.Transfer(ctx, token, from, to, amount)
}

func (e *Engine) transferSettle(ctx context.Context, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return e.settle.Transfer(ctx, from, to, amount)
}

func (e *Engine) unwindSettle(ctx context.Context, from, to string, amount uint64) {
	if amount == 0 {
		return
	}
	_ = e.settle.Transfer(ctx, from, to, amount)
}

func (e *Engine) unwindTokens(ctx context.Context, token, from, to string, amount uint64) {
	if amount == 0 {
		return
	}
	_ = e.tokens.Transfer(ctx, token, from, to, amount)
}

// mapCurveErr translates pricing errors into the operation taxonomy.
func mapCurveErr(err error) error {
	switch {
	case errors.Is(err, curve.ErrZeroOraclePrice):
		return fmt.Errorf("%w: oracle price not set", ErrInvalidState)
	case errors.Is(err, curve.ErrExceedsSupply):
		return fmt.Errorf("%w: token amount exceeds circulating supply", ErrInvalidArgument)
	case errors.Is(err, curve.ErrOverflow):
		return fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	default:
		return err
	}
}

// mapLedgerErr translates a balance failure into the given taxonomy error.
// Balances are pre-checked so this only fires on a racing external ledger.
func mapLedgerErr(err error, insufficient error) error {
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		return insufficient
	}
	return err
}
