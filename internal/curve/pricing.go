// Package curve implements the bonding-curve pricing and fee math.
// All arithmetic is unsigned integer with floor division; multiplication
// paths are overflow-checked and reject rather than wrap.
package curve

import (
	"errors"
	"math/bits"
)

// SupplyStep is the circulating-supply interval over which the curve
// multiplier increases by one.
const SupplyStep = 1_000_000

// Pricing errors.
var (
	// ErrOverflow is returned when a quote would exceed uint64 range.
	ErrOverflow = errors.New("amount overflows uint64")

	// ErrExceedsSupply is returned when a sell quote is requested for more
	// tokens than are circulating.
	ErrExceedsSupply = errors.New("token amount exceeds circulating supply")

	// ErrZeroOraclePrice is returned when an oracle quote is requested
	// against an unset oracle price.
	ErrZeroOraclePrice = errors.New("oracle price is zero")
)

// BuyAmount quotes the tokens received for netPaid settlement units at the
// PRE-trade circulating supply. A zero multiplier prices tokens 1:1.
func BuyAmount(k, circulatingBefore, netPaid uint64) (uint64, error) {
	multiplier, err := multiplierAt(k, circulatingBefore)
	if err != nil {
		return 0, err
	}
	if multiplier == 0 {
		return netPaid, nil
	}
	return netPaid / multiplier, nil
}

// SellAmount quotes the gross settlement refund for tokenAmount tokens.
// The multiplier is computed at the POST-trade supply, so a round trip of
// buy-then-sell never recovers the full amount paid even before fees.
func SellAmount(k, circulatingBefore, tokenAmount uint64) (uint64, error) {
	if tokenAmount > circulatingBefore {
		return 0, ErrExceedsSupply
	}
	multiplier, err := multiplierAt(k, circulatingBefore-tokenAmount)
	if err != nil {
		return 0, err
	}
	if multiplier == 0 {
		return tokenAmount, nil
	}
	return checkedMul(tokenAmount, multiplier)
}

// OracleBuyAmount quotes tokens for netPaid at an externally supplied price.
// Used exclusively after graduation.
func OracleBuyAmount(oraclePrice, netPaid uint64) (uint64, error) {
	if oraclePrice == 0 {
		return 0, ErrZeroOraclePrice
	}
	return netPaid / oraclePrice, nil
}

// OracleSellRefund quotes the gross refund for tokenAmount at an externally
// supplied price. Used exclusively after graduation.
func OracleSellRefund(oraclePrice, tokenAmount uint64) (uint64, error) {
	if oraclePrice == 0 {
		return 0, ErrZeroOraclePrice
	}
	return checkedMul(tokenAmount, oraclePrice)
}

// multiplierAt computes k + circulating/SupplyStep.
func multiplierAt(k, circulating uint64) (uint64, error) {
	step := circulating / SupplyStep
	multiplier, carry := bits.Add64(k, step, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return multiplier, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// FloorBps returns value*bps/10000 with 128-bit intermediate precision.
// bps must not exceed 10000; callers validate basis-point parameters at
// pool creation.
func FloorBps(value, bps uint64) uint64 {
	hi, lo := bits.Mul64(value, bps)
	q, _ := bits.Div64(hi, lo, 10_000)
	return q
}
