package yap

import (
	"math/big"
)

// AvailablePool computes how much of the annual emission budget is
// unlocked: floor(elapsed_seconds * vault_balance / SECONDS_PER_YEAR).
// Zero elapsed yields zero; a full year yields the entire vault. The
// math is big-int throughout since vault balances sit in the 10^18+
// raw-unit range.
func AvailablePool(elapsedSeconds int64, vaultBalance *big.Int) *big.Int {
	if elapsedSeconds <= 0 || vaultBalance == nil || vaultBalance.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(big.NewInt(elapsedSeconds), vaultBalance)
	return out.Quo(out, big.NewInt(SecondsPerYear))
}
