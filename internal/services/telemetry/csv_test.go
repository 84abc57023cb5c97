package telemetry

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

func sampleTable() *domain.TelemetryTable {
	return &domain.TelemetryTable{
		RunID: 0,
		Rows: []domain.TelemetryRow{
			{
				Timestamp:    1000,
				BlockNumber:  50,
				Direction:    domain.DirectionReverse,
				OraclePrice:  big.NewInt(1000000000000000000),
				VirtualPrice: big.NewInt(1000000000000000001),
				SpotPrice:    big.NewInt(999999999999999999),
				AmountIn:     big.NewInt(100),
				AmountOut:    big.NewInt(99),
				PoolBefore:   domain.NewBalances(big.NewInt(5000), big.NewInt(5000)),
				PoolAfter:    domain.NewBalances(big.NewInt(4901), big.NewInt(5100)),
				Fee:          big.NewInt(1),
				GasUsed:      120000,
			},
			{
				Timestamp:    1012,
				BlockNumber:  51,
				Direction:    domain.DirectionForward,
				OraclePrice:  big.NewInt(1000000000000000002),
				VirtualPrice: big.NewInt(1000000000000000003),
				SpotPrice:    big.NewInt(1000000000000000004),
				AmountIn:     big.NewInt(50),
				AmountOut:    big.NewInt(49),
				PoolBefore:   domain.NewBalances(big.NewInt(4901), big.NewInt(5100)),
				PoolAfter:    domain.NewBalances(big.NewInt(4951), big.NewInt(5051)),
				Fee:          nil,
				GasUsed:      98000,
			},
		},
	}
}

func TestCSVExporter_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter("ETH", "frxETH").Write(&buf, sampleTable()))

	g := goldie.New(t)
	g.Assert(t, "telemetry", buf.Bytes())
}

func TestCSVExporter_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter("", "").Write(&buf, &domain.TelemetryTable{}))

	assert.Equal(t,
		",block_timestamp,block_number,direction,price_oracle,virtual_price,p,dx,dy,"+
			"pool_coin0_balance_before_swap,pool_coin1_balance_before_swap,"+
			"pool_coin0_balance_after_swap,pool_coin1_balance_after_swap,swap_fee,gas_used\n",
		buf.String())
}

func TestCSVExporter_WriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, FileName("walk", 3))

	require.NoError(t, NewCSVExporter("ETH", "frxETH").WriteFile(path, sampleTable()))

	written, err := os.ReadFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter("ETH", "frxETH").Write(&buf, sampleTable()))
	assert.Equal(t, buf.String(), string(written))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestNextRunID(t *testing.T) {
	dir := t.TempDir()

	next, err := NextRunID(dir, "walk")
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	for _, name := range []string{"walk_0.csv", "walk_7.csv", "walk_12.csv", "walk_x.csv", "other_99.csv", "walk_100.csv.tmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "walk_500.csv"), 0o755))

	next, err = NextRunID(dir, "walk")
	require.NoError(t, err)
	assert.Equal(t, 13, next)
}

func TestNextRunID_MissingDir(t *testing.T) {
	next, err := NextRunID(filepath.Join(t.TempDir(), "absent"), "walk")
	require.NoError(t, err)
	assert.Equal(t, 0, next)
}
