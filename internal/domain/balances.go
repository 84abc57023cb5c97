package domain

import (
	"fmt"
	"math/big"
)

// Balances holds amounts of both pool assets, A first.
type Balances struct {
	A *big.Int
	B *big.Int
}

// NewBalances copies a and b into a new Balances value.
func NewBalances(a, b *big.Int) Balances {
	return Balances{A: new(big.Int).Set(a), B: new(big.Int).Set(b)}
}

// Get returns the balance of the coin with index i.
func (b Balances) Get(i int) *big.Int {
	if i == 0 {
		return b.A
	}
	return b.B
}

// Clone returns a deep copy.
func (b Balances) Clone() Balances {
	return NewBalances(orZero(b.A), orZero(b.B))
}

// Equal reports whether both balances match.
func (b Balances) Equal(other Balances) bool {
	return orZero(b.A).Cmp(orZero(other.A)) == 0 && orZero(b.B).Cmp(orZero(other.B)) == 0
}

// String returns a human-readable string representation.
func (b Balances) String() string {
	return fmt.Sprintf("(%s, %s)", orZero(b.A).String(), orZero(b.B).String())
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
