package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curvepool/internal/domain"
	"curvepool/internal/events"
	ledgermem "curvepool/internal/ledger/memory"
	storagemem "curvepool/internal/storage/memory"
)

// creatorID is a canonical on-curve base58 identity (the zero key).
const creatorID = "11111111111111111111111111111111"

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

func (c *fakeClock) advance(seconds int64) { c.now += seconds }

type fixture struct {
	eng    *Engine
	pools  *storagemem.PoolStore
	tokens *ledgermem.TokenLedger
	settle *ledgermem.SettlementLedger
	clock  *fakeClock
	sink   *events.Recorder
}

func newFixture() *fixture {
	f := &fixture{
		pools:  storagemem.NewPoolStore(),
		tokens: ledgermem.NewTokenLedger(),
		settle: ledgermem.NewSettlementLedger(),
		clock:  &fakeClock{now: 1_700_000_000},
		sink:   events.NewRecorder(),
	}
	f.eng = New(f.pools, f.tokens, f.settle, f.clock, f.sink, nil)
	return f
}

// defaultParams matches the reference scenario: k=100, 1% fee, graduation
// at half the supply.
func defaultParams() CreateParams {
	return CreateParams{
		CreatorIdentity:           creatorID,
		Symbol:                    "CRV",
		Name:                      "Curve Token",
		Decimals:                  6,
		AssetType:                 "meme",
		TotalSupply:               1_000_000,
		K:                         100,
		FeeRateBps:                100,
		BackingRatioBps:           5_000,
		WithdrawalLimitBps:        2_000,
		WithdrawalCooldownSeconds: 86_400,
		GraduationThreshold:       500_000,
		GraduationTarget:          "external-dex",
	}
}

func (f *fixture) create(t *testing.T, p CreateParams) *domain.Pool {
	t.Helper()
	pool, err := f.eng.Create(context.Background(), p)
	require.NoError(t, err)
	return pool
}

func (f *fixture) fund(t *testing.T, account string, amount uint64) {
	t.Helper()
	require.NoError(t, f.settle.Mint(context.Background(), account, amount))
}

func (f *fixture) pool(t *testing.T, symbol string) *domain.Pool {
	t.Helper()
	p, err := f.pools.Get(context.Background(), creatorID, symbol)
	require.NoError(t, err)
	return p
}

func TestCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	pool := f.create(t, defaultParams())
	assert.Equal(t, uint64(0), pool.Reserve)
	assert.Equal(t, uint64(0), pool.CirculatingSupply)
	assert.False(t, pool.IsGraduated)
	assert.False(t, pool.IsEmergency)
	assert.Equal(t, domain.SaleStatusBonding, pool.Status())

	// full supply sits in pool custody
	custody, err := f.tokens.BalanceOf(ctx, pool.Key(), pool.Key())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), custody)

	created := f.sink.OfType(events.TypePoolCreated)
	require.Len(t, created, 1)
	assert.Equal(t, uint64(1_000_000), created[0].Created.TotalSupply)
}

func TestCreate_Duplicate(t *testing.T) {
	f := newFixture()

	f.create(t, defaultParams())
	_, err := f.eng.Create(context.Background(), defaultParams())
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := defaultParams()
	p.CreatorIdentity = "not-an-identity!"
	_, err := f.eng.Create(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	p = defaultParams()
	p.Symbol = ""
	_, err = f.eng.Create(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	p = defaultParams()
	p.TotalSupply = 0
	_, err = f.eng.Create(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	p = defaultParams()
	p.FeeRateBps = 10_001
	_, err = f.eng.Create(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// Reference scenario: buy 10_000 at zero supply with k=100 and a 1% fee
// yields fee 100, net 9_900, 99 tokens.
func TestBuy_ReferenceScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.create(t, defaultParams())
	f.fund(t, "buyer-1", 10_000)

	tokens, err := f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), tokens)

	pool := f.pool(t, "CRV")
	assert.Equal(t, uint64(9_900), pool.Reserve)
	assert.Equal(t, uint64(99), pool.CirculatingSupply)

	// buyer paid the full amount and holds the tokens
	bal, _ := f.settle.BalanceOf(ctx, "buyer-1")
	assert.Equal(t, uint64(0), bal)
	held, _ := f.tokens.BalanceOf(ctx, pool.Key(), "buyer-1")
	assert.Equal(t, uint64(99), held)

	// the fee stays in custody as the float
	custodial, _ := f.settle.BalanceOf(ctx, pool.Key())
	assert.Equal(t, uint64(10_000), custodial)
	assert.Equal(t, uint64(100), custodial-pool.Reserve)

	trades := f.sink.OfType(events.TypeTradeExecuted)
	require.Len(t, trades, 1)
	assert.Equal(t, events.SideBuy, trades[0].Trade.Side)
	assert.Equal(t, uint64(100), trades[0].Trade.Fee)
	assert.Equal(t, uint64(9_900), trades[0].Trade.NetAmount)
}

// Continuing the reference scenario: selling 50 of the 99 tokens quotes
// the multiplier at the post-trade supply of 49.
func TestSell_ReferenceScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.create(t, defaultParams())
	f.fund(t, "buyer-1", 10_000)
	_, err := f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", 10_000)
	require.NoError(t, err)

	net, err := f.eng.Sell(ctx, "buyer-1", creatorID, "CRV", 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_950), net)

	pool := f.pool(t, "CRV")
	assert.Equal(t, uint64(4_900), pool.Reserve)
	assert.Equal(t, uint64(49), pool.CirculatingSupply)

	bal, _ := f.settle.BalanceOf(ctx, "buyer-1")
	assert.Equal(t, uint64(4_950), bal)

	// both trade fees have accumulated in the float
	custodial, _ := f.settle.BalanceOf(ctx, pool.Key())
	assert.Equal(t, uint64(150), custodial-pool.Reserve)
}

func TestBuy_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.create(t, defaultParams())

	_, err := f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// buyer cannot afford the payment
	f.fund(t, "buyer-1", 999)
	_, err = f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", 1_000)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// failed buy left nothing behind
	pool := f.pool(t, "CRV")
	assert.Equal(t, uint64(0), pool.Reserve)
	assert.Equal(t, uint64(0), pool.CirculatingSupply)
}

func TestBuy_InsufficientCustodialTokens(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// k=0 below one supply step prices tokens 1:1, so a payment larger
	// than the total supply would release more tokens than custody holds
	p := defaultParams()
	p.K = 0
	p.FeeRateBps = 0
	p.TotalSupply = 100
	f.create(t, p)
	f.fund(t, "buyer-1", 101)

	_, err := f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", 101)
	assert.ErrorIs(t, err, ErrInsufficientCustodialTokens)
}

func TestBuy_ZeroTokenQuote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := defaultParams()
	p.FeeRateBps = 0
	f.create(t, p)
	f.fund(t, "buyer-1", 50)

	// paying below the multiplier quotes zero tokens but still commits
	// the payment to the reserve
	tokens, err := f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tokens)

	pool := f.pool(t, "CRV")
	assert.Equal(t, uint64(50), pool.Reserve)
	assert.Equal(t, uint64(0), pool.CirculatingSupply)
}

func TestSell_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.create(t, defaultParams())
	f.fund(t, "buyer-1", 10_000)
	_, err := f.eng.Sell(ctx, "buyer-1", creatorID, "CRV", 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// seller holds no tokens
	_, err = f.eng.Sell(ctx, "buyer-1", creatorID, "CRV", 10)
	assert.ErrorIs(t, err, ErrInsufficientTokenBalance)
}

// A reserve withdrawal can leave the reserve unable to cover a full
// sell-back; the sell must fail against the GROSS refund.
func TestSell_ReserveBelowGrossRefund(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.create(t, defaultParams())
	f.fund(t, "buyer-1", 10_000)
	_, err := f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", 10_000)
	require.NoError(t, err)

	// creator drains the percentage cap: reserve 9_900 -> 7_920
	require.NoError(t, f.eng.WithdrawReserve(ctx, creatorID, creatorID, "CRV", 1_980))

	// gross refund for all 99 tokens is 9_900 > 7_920
	_, err = f.eng.Sell(ctx, "buyer-1", creatorID, "CRV", 99)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// state unchanged by the failed sell
	pool := f.pool(t, "CRV")
	assert.Equal(t, uint64(7_920), pool.Reserve)
	assert.Equal(t, uint64(99), pool.CirculatingSupply)
}

func TestQuotesMatchExecution(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.create(t, defaultParams())
	f.fund(t, "buyer-1", 25_000)

	buyQuote, err := f.eng.GetBuyPrice(ctx, creatorID, "CRV", 25_000)
	require.NoError(t, err)
	tokens, err := f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", 25_000)
	require.NoError(t, err)
	assert.Equal(t, buyQuote.TokenAmount, tokens)

	sellQuote, err := f.eng.GetSellPrice(ctx, creatorID, "CRV", tokens)
	require.NoError(t, err)
	net, err := f.eng.Sell(ctx, "buyer-1", creatorID, "CRV", tokens)
	require.NoError(t, err)
	assert.Equal(t, sellQuote.NetAmount, net)
}

// Custody plus circulating tokens always equals total supply, and the
// custodial settlement balance always covers the tracked reserve.
func TestInvariants_BuySellSequence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.create(t, defaultParams())
	f.fund(t, "buyer-1", 1_000_000)

	key := domain.PoolKey(creatorID, "CRV")
	check := func() {
		pool := f.pool(t, "CRV")
		custody, err := f.tokens.BalanceOf(ctx, key, key)
		require.NoError(t, err)
		assert.Equal(t, pool.TotalSupply, custody+pool.CirculatingSupply)
		assert.LessOrEqual(t, pool.CirculatingSupply, pool.TotalSupply)

		custodial, err := f.settle.BalanceOf(ctx, key)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, custodial, pool.Reserve)
	}

	amounts := []uint64{10_000, 3_333, 777, 50_000, 12}
	for _, paid := range amounts {
		_, err := f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", paid)
		require.NoError(t, err)
		check()
	}

	for _, sell := range []uint64{1, 40, 200} {
		_, err := f.eng.Sell(ctx, "buyer-1", creatorID, "CRV", sell)
		require.NoError(t, err)
		check()
	}
}

func TestGetTokenInfo_StatusPriority(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := defaultParams()
	p.K = 1
	p.FeeRateBps = 0
	f.create(t, p)
	f.fund(t, "buyer-1", 600_000)

	// push past graduation
	_, err := f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", 500_000)
	require.NoError(t, err)

	info, err := f.eng.GetTokenInfo(ctx, creatorID, "CRV")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusGraduated, info.SaleStatus)

	// emergency outranks graduated
	require.NoError(t, f.eng.EmergencyWithdraw(ctx, creatorID, creatorID, "CRV", 1_000, "halt"))
	info, err = f.eng.GetTokenInfo(ctx, creatorID, "CRV")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusEmergency, info.SaleStatus)
}

func TestGetGraduationProgress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := defaultParams()
	p.FeeRateBps = 0
	f.create(t, p)
	f.fund(t, "buyer-1", 100_000)

	// 1_000 tokens of a 500_000 threshold = 20 bps
	_, err := f.eng.Buy(ctx, "buyer-1", creatorID, "CRV", 100_000)
	require.NoError(t, err)

	progress, err := f.eng.GetGraduationProgress(ctx, creatorID, "CRV")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), progress.CirculatingSupply)
	assert.Equal(t, uint64(20), progress.ProgressBps)
	assert.False(t, progress.IsGraduated)
}
