package batch

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/swapsim/internal/chain"
	"github.com/vadiminshakov/swapsim/internal/deploy"
	"github.com/vadiminshakov/swapsim/internal/domain"
	"github.com/vadiminshakov/swapsim/internal/services/simulation"
	"github.com/vadiminshakov/swapsim/internal/services/snapshot"
	"github.com/vadiminshakov/swapsim/internal/services/telemetry"
	"github.com/vadiminshakov/swapsim/internal/services/timetravel"
	"github.com/vadiminshakov/swapsim/internal/storage/telemetrydb"
)

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

type fixture struct {
	env    *chain.Env
	dep    *deploy.Deployment
	runner *Runner
}

func newFixture(t *testing.T, target snapshot.Snapshotter) *fixture {
	t.Helper()
	env := chain.NewEnv(domain.NewClock(1_700_000_000, 1), nil)
	dep, err := deploy.Deploy(env, deploy.DefaultConfig(), nil)
	require.NoError(t, err)
	actors, err := dep.Provision(pow10(30), pow10(25))
	require.NoError(t, err)

	advancer, err := timetravel.New(domain.DefaultBlockDuration)
	require.NoError(t, err)
	driver, err := simulation.NewDriver(dep.Exchange, env.Clock(), advancer, nil)
	require.NoError(t, err)

	if target == nil {
		target = env
	}
	scope, err := snapshot.NewScope(target, nil, nil)
	require.NoError(t, err)

	runner := NewRunner(driver, scope, actors.Swapper, telemetry.NewCSVExporter("eth", "frxeth"), nil)
	return &fixture{env: env, dep: dep, runner: runner}
}

func walkConfig(dir string, trials int) Config {
	return Config{
		Name:         "walks",
		Prefix:       "walk",
		OutputDir:    dir,
		Trials:       trials,
		Steps:        5,
		MinMagnitude: pow10(17),
		MaxMagnitude: pow10(18),
		Seed:         42,
		SwapDuration: 12,
		MinBalance:   big.NewInt(100),
	}
}

type fakeRecorder struct {
	rollbacks int
	batches   int
}

func (r *fakeRecorder) RecordRollbackFailure() { r.rollbacks++ }
func (r *fakeRecorder) RecordBatch(float64)    { r.batches++ }

func TestRunContinuesRunIDs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "walk_4.csv"), []byte("old"), 0o644))
	f := newFixture(t, nil)
	rec := &fakeRecorder{}
	f.runner.WithRecorder(rec)
	baseline := f.dep.Pool.Balances()

	report, err := f.runner.Run(context.Background(), walkConfig(dir, 3))
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	for i, o := range report.Outcomes {
		assert.Equal(t, 5+i, o.RunID)
		assert.Equal(t, domain.RunStateComplete, o.State)
		assert.Equal(t, 5, o.Rows)
		assert.NoError(t, o.Err)
		assert.FileExists(t, filepath.Join(dir, telemetry.FileName("walk", o.RunID)))
	}
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, 1, rec.batches)

	after := f.dep.Pool.Balances()
	assert.Equal(t, baseline[0].String(), after[0].String())
	assert.Equal(t, baseline[1].String(), after[1].String())
}

func TestRunIsReproducible(t *testing.T) {
	f := newFixture(t, nil)
	first, second := t.TempDir(), t.TempDir()

	_, err := f.runner.Run(context.Background(), walkConfig(first, 2))
	require.NoError(t, err)
	_, err = f.runner.Run(context.Background(), walkConfig(second, 2))
	require.NoError(t, err)

	for _, name := range []string{"walk_0.csv", "walk_1.csv"} {
		a, err := os.ReadFile(filepath.Join(first, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(second, name))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}

	a, err := os.ReadFile(filepath.Join(first, "walk_0.csv"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(first, "walk_1.csv"))
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(b), "trials use different seeds")
}

func TestRejectedTrialsDoNotStopBatch(t *testing.T) {
	f := newFixture(t, nil)
	cfg := walkConfig(t.TempDir(), 3)
	cfg.MinMagnitude = pow10(31)
	cfg.MaxMagnitude = pow10(31)

	report, err := f.runner.Run(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, 3, report.Failed())
	for _, o := range report.Outcomes {
		assert.Equal(t, domain.RunStateAborted, o.State)
		assert.Equal(t, 0, o.Rows)
		assert.True(t, errors.Is(o.Err, domain.ErrTradeRejected))
	}
}

type brokenTarget struct {
	*chain.Env
}

func (b brokenTarget) Restore(context.Context, []byte) error {
	return errors.New("disk on fire")
}

func TestRollbackFailureStopsBatch(t *testing.T) {
	env := chain.NewEnv(domain.NewClock(0, 0), nil)
	f := newFixture(t, brokenTarget{Env: env})
	rec := &fakeRecorder{}
	f.runner.WithRecorder(rec)

	report, err := f.runner.Run(context.Background(), walkConfig(t.TempDir(), 3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRollbackFailed))
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, 1, rec.rollbacks)
	assert.Equal(t, 0, rec.batches)
}

func TestRunUsesSinkRunIDs(t *testing.T) {
	store, err := telemetrydb.Open(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, "walks", domain.RunStateComplete, nil, &domain.TelemetryTable{RunID: 11}))

	f := newFixture(t, nil)
	f.runner.WithSink(store)

	report, err := f.runner.Run(ctx, walkConfig(t.TempDir(), 1))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, 12, report.Outcomes[0].RunID)

	rows, err := store.RowCount(ctx, "walks", 12)
	require.NoError(t, err)
	assert.Equal(t, 5, rows)
}

func TestRunValidatesConfig(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.runner.Run(context.Background(), Config{Prefix: "walk"})
	assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))

	cfg := walkConfig(t.TempDir(), 1)
	cfg.MinMagnitude = big.NewInt(0)
	_, err = f.runner.Run(context.Background(), cfg)
	assert.True(t, errors.Is(err, domain.ErrInvalidRange))
}
