package curve

// SplitFee divides a trade volume into fee and net portions.
// fee = volume*feeRateBps/10000 (floor), net = volume - fee.
//
// On buys the split applies to money in before quoting tokens; on sells it
// applies to the gross refund before paying the seller. The fee portion is
// never ledgered separately: it stays in pool custody as the gap between
// the custodial settlement balance and the tracked reserve (the fee float).
func SplitFee(volume, feeRateBps uint64) (fee, net uint64) {
	fee = FloorBps(volume, feeRateBps)
	return fee, volume - fee
}
