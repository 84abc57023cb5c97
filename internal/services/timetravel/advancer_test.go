package timetravel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/swapsim/internal/domain"
	"pgregory.net/rapid"
)

func TestNew_InvalidBlockDuration(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = New(-12)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name           string
		seconds        int64
		expectedTime   int64
		expectedBlocks int64
	}{
		{name: "one block", seconds: 12, expectedTime: 1012, expectedBlocks: 51},
		{name: "zero", seconds: 0, expectedTime: 1000, expectedBlocks: 50},
		{name: "partial block", seconds: 11, expectedTime: 1011, expectedBlocks: 50},
		{name: "two and a half blocks", seconds: 30, expectedTime: 1030, expectedBlocks: 52},
	}

	a, err := New(domain.DefaultBlockDuration)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := domain.NewClock(1000, 50)
			require.NoError(t, a.Advance(clock, tt.seconds))
			assert.Equal(t, tt.expectedTime, clock.Timestamp)
			assert.Equal(t, tt.expectedBlocks, clock.BlockNumber)
		})
	}
}

func TestAdvance_SubBlockStepsNeverAccumulate(t *testing.T) {
	a, err := New(12)
	require.NoError(t, err)

	clock := domain.NewClock(0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, a.Advance(clock, 5))
	}

	assert.Equal(t, int64(500), clock.Timestamp)
	assert.Equal(t, int64(0), clock.BlockNumber)
}

func TestAdvance_NegativeSeconds(t *testing.T) {
	a, err := New(12)
	require.NoError(t, err)

	clock := domain.NewClock(100, 1)
	err = a.Advance(clock, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
	assert.Equal(t, int64(100), clock.Timestamp)
	assert.Equal(t, int64(1), clock.BlockNumber)
}

func TestAdvance_MonotonicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		blockDuration := rapid.Int64Range(1, 60).Draw(t, "block_duration")
		steps := rapid.SliceOfN(rapid.Int64Range(0, 1000), 1, 100).Draw(t, "steps")

		a, err := New(blockDuration)
		if err != nil {
			t.Fatalf("new: %v", err)
		}

		clock := domain.NewClock(0, 0)
		var expectedBlocks int64
		prev := clock.Timestamp
		for _, s := range steps {
			if err := a.Advance(clock, s); err != nil {
				t.Fatalf("advance: %v", err)
			}
			if clock.Timestamp < prev {
				t.Fatalf("clock went backwards: %d < %d", clock.Timestamp, prev)
			}
			prev = clock.Timestamp
			expectedBlocks += s / blockDuration
		}
		if clock.BlockNumber != expectedBlocks {
			t.Fatalf("block number %d, expected %d", clock.BlockNumber, expectedBlocks)
		}
	})
}
