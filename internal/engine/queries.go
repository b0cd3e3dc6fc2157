package engine

import (
	"context"
	"fmt"
	"math/bits"

	"curvepool/internal/curve"
	"curvepool/internal/domain"
)

// GetBuyPrice quotes a buy without executing it. The quote goes through
// the same fee and pricing path as Buy, so it matches execution against
// the same pool state.
func (e *Engine) GetBuyPrice(ctx context.Context, creatorIdentity, symbol string, paidAmount uint64) (*BuyQuote, error) {
	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	return quoteBuy(pool, paidAmount)
}

// GetSellPrice quotes a sell without executing it.
func (e *Engine) GetSellPrice(ctx context.Context, creatorIdentity, symbol string, tokenAmount uint64) (*SellQuote, error) {
	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	return quoteSell(pool, tokenAmount)
}

// GetTokenInfo returns the compact pool projection.
func (e *Engine) GetTokenInfo(ctx context.Context, creatorIdentity, symbol string) (*domain.TokenInfo, error) {
	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	info := tokenInfo(pool)
	return &info, nil
}

// GetFullTokenInfo returns every pool field.
func (e *Engine) GetFullTokenInfo(ctx context.Context, creatorIdentity, symbol string) (*domain.FullTokenInfo, error) {
	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}

	return &domain.FullTokenInfo{
		TokenInfo:                 tokenInfo(pool),
		IconRef:                   pool.IconRef,
		ProjectURLRef:             pool.ProjectURLRef,
		AssetType:                 pool.AssetType,
		Reserve:                   pool.Reserve,
		K:                         pool.K,
		FeeRateBps:                pool.FeeRateBps,
		BackingRatioBps:           pool.BackingRatioBps,
		WithdrawalLimitBps:        pool.WithdrawalLimitBps,
		WithdrawalCooldownSeconds: pool.WithdrawalCooldownSeconds,
		GraduationThreshold:       pool.GraduationThreshold,
		GraduationTarget:          pool.GraduationTarget,
		IsGraduated:               pool.IsGraduated,
		IsEmergency:               pool.IsEmergency,
		OraclePrice:               pool.OraclePrice,
		LastOracleUpdate:          pool.LastOracleUpdate,
		CreatedAt:                 pool.CreatedAt,
	}, nil
}

// GetGraduationProgress reports progress toward the graduation threshold.
func (e *Engine) GetGraduationProgress(ctx context.Context, creatorIdentity, symbol string) (*domain.GraduationProgress, error) {
	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}

	return &domain.GraduationProgress{
		CirculatingSupply:   pool.CirculatingSupply,
		GraduationThreshold: pool.GraduationThreshold,
		ProgressBps:         progressBps(pool.CirculatingSupply, pool.GraduationThreshold),
		IsGraduated:         pool.IsGraduated,
	}, nil
}

// GetWithdrawalInfo reports the creator's current withdrawal headroom.
func (e *Engine) GetWithdrawalInfo(ctx context.Context, creatorIdentity, symbol string) (*domain.WithdrawalInfo, error) {
	pool, err := e.pools.Get(ctx, creatorIdentity, symbol)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}

	custodial, err := e.settle.BalanceOf(ctx, pool.Key())
	if err != nil {
		return nil, fmt.Errorf("custodial balance: %w", err)
	}
	feeFloat := uint64(0)
	if custodial > pool.Reserve {
		feeFloat = custodial - pool.Reserve
	}

	return &domain.WithdrawalInfo{
		Reserve:                 pool.Reserve,
		FeeFloat:                feeFloat,
		LastWithdrawalTimestamp: pool.LastWithdrawalTimestamp,
		CooldownSeconds:         pool.WithdrawalCooldownSeconds,
		NextWithdrawalTime:      pool.LastWithdrawalTimestamp + int64(pool.WithdrawalCooldownSeconds),
		MaxReserveWithdrawal:    curve.FloorBps(pool.Reserve, pool.WithdrawalLimitBps),
		BackingFloor:            curve.FloorBps(pool.CirculatingSupply, pool.BackingRatioBps),
	}, nil
}

func tokenInfo(p *domain.Pool) domain.TokenInfo {
	return domain.TokenInfo{
		CreatorIdentity:   p.CreatorIdentity,
		Symbol:            p.Symbol,
		Name:              p.Name,
		Decimals:          p.Decimals,
		TotalSupply:       p.TotalSupply,
		CirculatingSupply: p.CirculatingSupply,
		SaleStatus:        p.Status(),
	}
}

// progressBps returns circulating/threshold in basis points, capped at
// 10000. A zero threshold counts as fully reached.
func progressBps(circulating, threshold uint64) uint64 {
	if threshold == 0 || circulating >= threshold {
		return 10_000
	}
	hi, lo := bits.Mul64(circulating, 10_000)
	q, _ := bits.Div64(hi, lo, threshold)
	return q
}
