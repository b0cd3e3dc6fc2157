package curve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuyAmount_ZeroMultiplier(t *testing.T) {
	// k=0 and supply below one step: tokens are 1:1 with payment
	tokens, err := BuyAmount(0, 999_999, 5_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), tokens)
}

func TestBuyAmount_FloorDivision(t *testing.T) {
	tests := []struct {
		name        string
		k           uint64
		circulating uint64
		netPaid     uint64
		want        uint64
	}{
		{"flat k", 100, 0, 9_900, 99},
		{"truncates remainder", 100, 0, 9_999, 99},
		{"supply step raises multiplier", 100, 2_500_000, 10_000, 98},   // multiplier 102
		{"k zero but supply contributes", 0, 3_000_000, 10_000, 3_333}, // multiplier 3
		{"payment below multiplier quotes zero", 100, 0, 99, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuyAmount(tt.k, tt.circulating, tt.netPaid)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSellAmount_UsesPostTradeSupply(t *testing.T) {
	// circulating 1_500_000, selling 600_000 drops post-trade supply to
	// 900_000, below one supply step: multiplier is k alone.
	gross, err := SellAmount(10, 1_500_000, 600_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000_000), gross)

	// Selling only 100_000 keeps post-trade supply at 1_400_000: multiplier 11.
	gross, err = SellAmount(10, 1_500_000, 100_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_100_000), gross)
}

func TestSellAmount_ZeroMultiplier(t *testing.T) {
	gross, err := SellAmount(0, 500_000, 500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), gross)
}

func TestSellAmount_ExceedsSupply(t *testing.T) {
	_, err := SellAmount(100, 50, 51)
	assert.ErrorIs(t, err, ErrExceedsSupply)
}

func TestSellAmount_Overflow(t *testing.T) {
	_, err := SellAmount(math.MaxUint64, 2, 2)
	assert.ErrorIs(t, err, ErrOverflow)
}

// Buying and immediately selling back never recovers the full payment,
// even with fees at zero: the sell multiplier is computed at the lower
// post-sale supply and floor division leaks the remainder into the pool.
func TestRoundTrip_NotValuePreserving(t *testing.T) {
	const k = 100
	circulating := uint64(0)

	paid := uint64(10_000)
	tokens, err := BuyAmount(k, circulating, paid)
	require.NoError(t, err)
	circulating += tokens

	refund, err := SellAmount(k, circulating, tokens)
	require.NoError(t, err)
	assert.LessOrEqual(t, refund, paid)
}

// Marginal price per token is non-decreasing in circulating supply for a
// fixed k.
func TestMarginalPrice_NonDecreasing(t *testing.T) {
	const k = 7
	var prev uint64
	for circ := uint64(0); circ <= 10_000_000; circ += 250_000 {
		m, err := multiplierAt(k, circ)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, m, prev, "multiplier decreased at supply %d", circ)
		prev = m
	}
}

func TestMultiplierAt_Overflow(t *testing.T) {
	_, err := multiplierAt(math.MaxUint64, 1_000_000)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestOracleBuyAmount(t *testing.T) {
	tokens, err := OracleBuyAmount(250, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), tokens)

	_, err = OracleBuyAmount(0, 10_000)
	assert.ErrorIs(t, err, ErrZeroOraclePrice)
}

func TestOracleSellRefund(t *testing.T) {
	gross, err := OracleSellRefund(250, 40)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), gross)

	_, err = OracleSellRefund(0, 40)
	assert.ErrorIs(t, err, ErrZeroOraclePrice)

	_, err = OracleSellRefund(math.MaxUint64, 2)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestFloorBps(t *testing.T) {
	assert.Equal(t, uint64(100), FloorBps(10_000, 100))
	assert.Equal(t, uint64(0), FloorBps(99, 100))
	assert.Equal(t, uint64(10_000), FloorBps(10_000, 10_000))
	// 128-bit intermediate keeps large reserves exact
	assert.Equal(t, uint64(math.MaxUint64/2), FloorBps(math.MaxUint64, 5_000))
}
