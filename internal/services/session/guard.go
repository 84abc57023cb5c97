// Package session decides whether a simulation run may execute another trade.
package session

import (
	"math/big"

	"github.com/vadiminshakov/swapsim/internal/domain"
)

// ShouldContinue reports whether both balances strictly exceed minBalance
// and fewer than maxTrades trades were executed.
func ShouldContinue(balances domain.Balances, executed int, minBalance *big.Int, maxTrades int) bool {
	if executed >= maxTrades {
		return false
	}
	if balances.A == nil || balances.B == nil {
		return false
	}
	return balances.A.Cmp(minBalance) > 0 && balances.B.Cmp(minBalance) > 0
}
