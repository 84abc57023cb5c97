package domain

import "math/big"

// TradePlan is an ordered, finite sequence of signed trade sizes.
// The sign encodes the direction, the magnitude is the input amount.
type TradePlan struct {
	values []*big.Int
}

// NewTradePlan copies values into an immutable plan.
func NewTradePlan(values []*big.Int) TradePlan {
	copied := make([]*big.Int, len(values))
	for i, v := range values {
		copied[i] = new(big.Int).Set(v)
	}
	return TradePlan{values: copied}
}

// Len returns the number of trades in the plan.
func (p TradePlan) Len() int {
	return len(p.values)
}

// Amount returns a copy of the i-th signed trade size.
func (p TradePlan) Amount(i int) *big.Int {
	return new(big.Int).Set(p.values[i])
}

// Values returns a copy of all trade sizes.
func (p TradePlan) Values() []*big.Int {
	out := make([]*big.Int, len(p.values))
	for i, v := range p.values {
		out[i] = new(big.Int).Set(v)
	}
	return out
}
