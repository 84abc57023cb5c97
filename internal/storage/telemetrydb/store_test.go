package telemetrydb

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func table(runID int, amounts ...int64) *domain.TelemetryTable {
	rows := make([]domain.TelemetryRow, 0, len(amounts))
	for i, a := range amounts {
		rows = append(rows, domain.TelemetryRow{
			Timestamp:  int64(1000 + 12*i),
			AmountIn:   big.NewInt(a),
			AmountOut:  big.NewInt(a - 1),
			PoolBefore: domain.NewBalances(big.NewInt(10), big.NewInt(10)),
			PoolAfter:  domain.NewBalances(big.NewInt(11), big.NewInt(9)),
		})
	}
	return &domain.TelemetryTable{RunID: runID, Rows: rows}
}

func TestStore_SaveRunAndRead(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.SaveRun(ctx, "walk", domain.RunStateComplete, nil, table(0, 5, 7, 9)))

	n, err := store.RowCount(ctx, "walk", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	amounts, err := store.AmountsIn(ctx, "walk", 0)
	require.NoError(t, err)
	require.Len(t, amounts, 3)
	assert.Equal(t, "5", amounts[0].String())
	assert.Equal(t, "9", amounts[2].String())
}

func TestStore_NextRunID(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	next, err := store.NextRunID(ctx, "walk")
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	require.NoError(t, store.SaveRun(ctx, "walk", domain.RunStateComplete, nil, table(4, 1)))
	require.NoError(t, store.SaveRun(ctx, "walk", domain.RunStateAborted, errors.New("rejected"), table(9)))
	require.NoError(t, store.SaveRun(ctx, "other", domain.RunStateComplete, nil, table(50, 1)))

	next, err = store.NextRunID(ctx, "walk")
	require.NoError(t, err)
	assert.Equal(t, 10, next)
}

func TestStore_DuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.SaveRun(ctx, "walk", domain.RunStateComplete, nil, table(1, 1, 2)))
	assert.Error(t, store.SaveRun(ctx, "walk", domain.RunStateComplete, nil, table(1, 3, 4, 5)))

	n, err := store.RowCount(ctx, "walk", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(errors.Wrap(sqlite3.Error{Code: sqlite3.ErrBusy}, "insert run")))
	assert.True(t, isBusy(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.False(t, isBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, isBusy(errors.New("other")))
}
