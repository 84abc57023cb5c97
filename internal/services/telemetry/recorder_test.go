package telemetry

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

func TestRecorder_AppendKeepsOrder(t *testing.T) {
	r := NewRecorder(4)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Append(domain.TelemetryRow{Timestamp: int64(100 + i), AmountIn: big.NewInt(int64(i))}))
	}
	assert.Equal(t, 5, r.Len())

	table := r.Finalize()
	assert.Equal(t, 4, table.RunID)
	require.Equal(t, 5, table.Len())
	for i, row := range table.Rows {
		assert.Equal(t, int64(100+i), row.Timestamp)
	}
}

func TestRecorder_FinalizeStopsAppends(t *testing.T) {
	r := NewRecorder(1)
	require.NoError(t, r.Append(domain.TelemetryRow{Timestamp: 1}))

	table := r.Finalize()
	assert.True(t, r.Finalized())

	err := r.Append(domain.TelemetryRow{Timestamp: 2})
	assert.ErrorIs(t, err, ErrFinalized)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, r.Len())
}

func TestRecorder_TableIsACopy(t *testing.T) {
	r := NewRecorder(1)
	require.NoError(t, r.Append(domain.TelemetryRow{Timestamp: 1}))

	table := r.Table()
	require.NoError(t, r.Append(domain.TelemetryRow{Timestamp: 2}))

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 2, r.Len())
}
