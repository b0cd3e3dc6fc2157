package engine

import (
	"context"
	"fmt"

	"curvepool/internal/curve"
	"curvepool/internal/domain"
	"curvepool/internal/events"
)

// UpdateOraclePrice sets the externally supplied price used for all
// post-graduation trading. Creator-only; the pool must be graduated and
// the price positive.
func (e *Engine) UpdateOraclePrice(ctx context.Context, callerIdentity, creatorIdentity, symbol string, newPrice uint64) (err error) {
	defer func() { e.countError("oracle_update", err) }()
	key := domain.PoolKey(creatorIdentity, symbol)
	unlock := e.locks.acquire(key)
	defer unlock()

	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}

	if callerIdentity != pool.CreatorIdentity {
		return ErrPermissionDenied
	}
	if !pool.IsGraduated {
		return fmt.Errorf("%w: pool has not graduated", ErrInvalidState)
	}
	if newPrice == 0 {
		return fmt.Errorf("%w: oracle price must be positive", ErrInvalidArgument)
	}

	now := e.clock.Now()
	next := pool.Clone()
	next.OraclePrice = newPrice
	next.LastOracleUpdate = now

	if err := e.pools.Update(ctx, next); err != nil {
		return fmt.Errorf("update pool: %w", err)
	}

	ev := events.PoolRef(events.TypeOracleUpdated, next, now)
	ev.Oracle = &events.OracleUpdated{Price: newPrice}
	e.emit(ctx, ev)

	if e.metrics != nil {
		e.metrics.OracleUpdates.Inc()
	}
	return nil
}

// WithdrawFees pays accumulated trading fees to the creator. The fee float
// is the custodial settlement balance in excess of the tracked reserve;
// no cooldown or backing check applies to it.
func (e *Engine) WithdrawFees(ctx context.Context, callerIdentity, creatorIdentity, symbol string, amount uint64) (err error) {
	defer func() { e.countError("withdraw_fees", err) }()
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}

	key := domain.PoolKey(creatorIdentity, symbol)
	unlock := e.locks.acquire(key)
	defer unlock()

	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}
	if callerIdentity != pool.CreatorIdentity {
		return ErrPermissionDenied
	}

	custodial, err := e.settle.BalanceOf(ctx, key)
	if err != nil {
		return fmt.Errorf("custodial balance: %w", err)
	}
	feeFloat := uint64(0)
	if custodial > pool.Reserve {
		feeFloat = custodial - pool.Reserve
	}
	if amount > feeFloat {
		return ErrInsufficientFunds
	}

	if err := e.settle.Transfer(ctx, key, callerIdentity, amount); err != nil {
		return mapLedgerErr(err, ErrInsufficientFunds)
	}

	// Fee withdrawal shrinks only the float; tracked pool state is
	// untouched, so nothing is persisted.
	ev := events.PoolRef(events.TypeFeesWithdrawn, pool, e.clock.Now())
	ev.Withdrawal = &events.Withdrawal{Amount: amount, ReserveAfter: pool.Reserve}
	e.emit(ctx, ev)

	if e.metrics != nil {
		e.metrics.Withdrawals.WithLabelValues("fees").Inc()
		e.metrics.WithdrawalVolume.WithLabelValues("fees").Add(float64(amount))
	}
	return nil
}

// WithdrawReserve pays part of the reserve to the creator, subject to the
// cooldown, the percentage cap on the live reserve, and the backing floor.
func (e *Engine) WithdrawReserve(ctx context.Context, callerIdentity, creatorIdentity, symbol string, amount uint64) (err error) {
	defer func() { e.countError("withdraw_reserve", err) }()
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}

	key := domain.PoolKey(creatorIdentity, symbol)
	unlock := e.locks.acquire(key)
	defer unlock()

	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}
	if callerIdentity != pool.CreatorIdentity {
		return ErrPermissionDenied
	}

	now := e.clock.Now()
	if now < pool.LastWithdrawalTimestamp+int64(pool.WithdrawalCooldownSeconds) {
		return ErrCooldownNotExpired
	}

	// Cap is evaluated against the reserve at call time, not a historical
	// baseline.
	limit := curve.FloorBps(pool.Reserve, pool.WithdrawalLimitBps)
	if amount > limit {
		return ErrExceedsWithdrawalLimit
	}

	floor := curve.FloorBps(pool.CirculatingSupply, pool.BackingRatioBps)
	if pool.Reserve-amount < floor {
		return ErrInsufficientBacking
	}

	next := pool.Clone()
	next.Reserve -= amount
	next.LastWithdrawalTimestamp = now

	if err := e.settle.Transfer(ctx, key, callerIdentity, amount); err != nil {
		return mapLedgerErr(err, ErrInsufficientFunds)
	}
	if err := e.pools.Update(ctx, next); err != nil {
		e.unwindSettle(ctx, callerIdentity, key, amount)
		return fmt.Errorf("update pool: %w", err)
	}

	ev := events.PoolRef(events.TypeReserveWithdrawn, next, now)
	ev.Withdrawal = &events.Withdrawal{Amount: amount, ReserveAfter: next.Reserve}
	e.emit(ctx, ev)

	if e.metrics != nil {
		e.metrics.Withdrawals.WithLabelValues("reserve").Inc()
		e.metrics.WithdrawalVolume.WithLabelValues("reserve").Add(float64(amount))
		e.recordPoolState(next)
	}
	return nil
}

// EmergencyWithdraw is the crisis escape hatch. It marks the pool
// emergency permanently, bypasses the cooldown, the percentage cap, and
// the backing floor, and is limited only by total custodial funds. The
// reserve floors at zero; backing can be zeroed out entirely.
func (e *Engine) EmergencyWithdraw(ctx context.Context, callerIdentity, creatorIdentity, symbol string, amount uint64, reason string) (err error) {
	defer func() { e.countError("withdraw_emergency", err) }()
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}

	key := domain.PoolKey(creatorIdentity, symbol)
	unlock := e.locks.acquire(key)
	defer unlock()

	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}
	if callerIdentity != pool.CreatorIdentity {
		return ErrPermissionDenied
	}

	custodial, err := e.settle.BalanceOf(ctx, key)
	if err != nil {
		return fmt.Errorf("custodial balance: %w", err)
	}
	if amount > custodial {
		return ErrInsufficientFunds
	}

	next := pool.Clone()
	next.IsEmergency = true
	if amount >= next.Reserve {
		next.Reserve = 0
	} else {
		next.Reserve -= amount
	}
	// LastWithdrawalTimestamp is untouched: later discretionary
	// withdrawals keep their cooldown and backing checks unchanged.

	if err := e.settle.Transfer(ctx, key, callerIdentity, amount); err != nil {
		return mapLedgerErr(err, ErrInsufficientFunds)
	}
	if err := e.pools.Update(ctx, next); err != nil {
		e.unwindSettle(ctx, callerIdentity, key, amount)
		return fmt.Errorf("update pool: %w", err)
	}

	ev := events.PoolRef(events.TypeEmergencyWithdrawn, next, e.clock.Now())
	ev.Withdrawal = &events.Withdrawal{Amount: amount, ReserveAfter: next.Reserve, Reason: reason}
	e.emit(ctx, ev)

	if e.metrics != nil {
		e.metrics.Withdrawals.WithLabelValues("emergency").Inc()
		e.metrics.WithdrawalVolume.WithLabelValues("emergency").Add(float64(amount))
		e.recordPoolState(next)
	}
	return nil
}
