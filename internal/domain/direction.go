package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// Direction of a swap between the two pool assets.
type Direction int

const (
	// DirectionForward spends asset A (coin 0) and receives asset B (coin 1).
	DirectionForward Direction = iota
	// DirectionReverse spends asset B (coin 1) and receives asset A (coin 0).
	DirectionReverse
)

// String returns the string representation.
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionReverse:
		return "reverse"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Coins returns the input and output coin indexes.
func (d Direction) Coins() (in, out int) {
	if d == DirectionReverse {
		return 1, 0
	}
	return 0, 1
}

// ParseDirection parses "forward" or "reverse".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward", "a_to_b":
		return DirectionForward, nil
	case "reverse", "b_to_a":
		return DirectionReverse, nil
	default:
		return 0, errors.Errorf("unknown direction %q", s)
	}
}

// DirectionOf maps a signed plan value to a direction and an input amount.
// Non-negative values trade forward, negative values trade the absolute value in reverse.
func DirectionOf(value *big.Int) (Direction, *big.Int) {
	if value.Sign() < 0 {
		return DirectionReverse, new(big.Int).Neg(value)
	}
	return DirectionForward, new(big.Int).Set(value)
}
