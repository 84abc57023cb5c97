package domain

import "math/big"

// TelemetryRow is one record per executed trade.
type TelemetryRow struct {
	Timestamp    int64
	BlockNumber  int64
	Direction    Direction
	OraclePrice  *big.Int
	VirtualPrice *big.Int
	SpotPrice    *big.Int
	AmountIn     *big.Int
	AmountOut    *big.Int
	PoolBefore   Balances
	PoolAfter    Balances
	Fee          *big.Int
	GasUsed      uint64
}

// TelemetryTable is the ordered, finalized output of one run. Row index equals trade index.
type TelemetryTable struct {
	RunID int
	Rows  []TelemetryRow
}

// Len returns the number of rows.
func (t *TelemetryTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
