package domain

import "math/big"

// SwapResult is what the exchange reports for an executed swap.
type SwapResult struct {
	AmountOut *big.Int
	Fee       *big.Int
}

// PoolMetrics are the pool price readings recorded after each trade.
type PoolMetrics struct {
	// OraclePrice is the moving-average price oracle.
	OraclePrice *big.Int
	// VirtualPrice is the invariant per LP token.
	VirtualPrice *big.Int
	// SpotPrice is the instantaneous price of coin 1 in coin 0.
	SpotPrice *big.Int
}
