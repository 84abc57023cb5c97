package domain

import (
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
	}{
		{in: "forward", want: DirectionForward},
		{in: " Reverse ", want: DirectionReverse},
		{in: "a_to_b", want: DirectionForward},
		{in: "B_TO_A", want: DirectionReverse},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDirectionUnknown(t *testing.T) {
	_, err := ParseDirection("sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"sideways"`)

	_, hasStack := err.(interface{ StackTrace() errors.StackTrace })
	assert.True(t, hasStack, "error carries a stack trace")
}

func TestDirectionOf(t *testing.T) {
	dir, amount := DirectionOf(big.NewInt(-7))
	assert.Equal(t, DirectionReverse, dir)
	assert.Equal(t, "7", amount.String())

	dir, amount = DirectionOf(big.NewInt(0))
	assert.Equal(t, DirectionForward, dir)
	assert.Equal(t, "0", amount.String())
}
