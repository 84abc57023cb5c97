package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/config"
	"github.com/vadiminshakov/swapsim/internal/chain"
	"github.com/vadiminshakov/swapsim/internal/deploy"
	"github.com/vadiminshakov/swapsim/internal/domain"
	"github.com/vadiminshakov/swapsim/internal/exchange/stableswap"
	"github.com/vadiminshakov/swapsim/internal/observability"
	"github.com/vadiminshakov/swapsim/internal/services/batch"
	"github.com/vadiminshakov/swapsim/internal/services/simulation"
	"github.com/vadiminshakov/swapsim/internal/services/snapshot"
	"github.com/vadiminshakov/swapsim/internal/services/telemetry"
	"github.com/vadiminshakov/swapsim/internal/services/timetravel"
	"github.com/vadiminshakov/swapsim/internal/storage/snapshots"
	"github.com/vadiminshakov/swapsim/internal/storage/telemetrydb"
	"go.uber.org/zap"
)

// Simulator owns one provisioned environment and runs the scenarios and walks of a config entry on it.
type Simulator struct {
	Config config.Config

	env        *chain.Env
	deployment *deploy.Deployment
	actors     deploy.Actors
	driver     *simulation.Driver
	scope      *snapshot.Scope
	exporter   *telemetry.CSVExporter
	store      *telemetrydb.Store
	journal    *snapshots.WALStore
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ScenarioResult is the outcome of one fixed scenario.
type ScenarioResult struct {
	Name     string
	Isolated bool
	Result   *simulation.Result
	Path     string
}

// Summary is everything a simulator produced.
type Summary struct {
	Name         string
	Scenarios    []ScenarioResult
	Walks        *batch.Report
	PoolBalances domain.Balances
}

// NewSimulator deploys the pool, funds the actors and seeds liquidity. metrics may be nil.
func NewSimulator(conf config.Config, metrics *observability.Metrics, logger *zap.Logger) (*Simulator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("simulation", conf.Name))

	env := chain.NewEnv(domain.NewClock(conf.StartTimestamp, conf.StartBlock), logger)

	deployConf := deploy.DefaultConfig()
	deployConf.CoinSymbol = conf.Pool.CoinSymbol
	deployConf.Pool = stableswap.Params{
		A:         conf.Pool.A,
		Fee:       conf.Pool.Fee,
		AdminFee:  conf.Pool.AdminFee,
		MaExpTime: conf.Pool.MaExpTime,
	}
	dep, err := deploy.Deploy(env, deployConf, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to deploy pool")
	}
	actors, err := dep.Provision(conf.Funding, conf.Liquidity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to provision actors")
	}

	advancer, err := timetravel.New(conf.BlockDuration)
	if err != nil {
		return nil, err
	}
	driver, err := simulation.NewDriver(dep.Exchange, env.Clock(), advancer, logger)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		driver.WithObserver(metrics)
	}

	s := &Simulator{
		Config:     conf,
		env:        env,
		deployment: dep,
		actors:     actors,
		driver:     driver,
		exporter:   telemetry.NewCSVExporter("eth", strings.ToLower(conf.Pool.CoinSymbol)),
		metrics:    metrics,
		logger:     logger,
	}

	var store snapshot.Store
	if conf.SnapshotDir != "" {
		s.journal, err = snapshots.NewWALStore(conf.SnapshotDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open snapshot journal")
		}
		store = s.journal
	}
	s.scope, err = snapshot.NewScope(env, store, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	if conf.Database != "" {
		if err := os.MkdirAll(filepath.Dir(conf.Database), 0o755); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "failed to create database dir")
		}
		s.store, err = telemetrydb.Open(conf.Database)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "failed to open telemetry database")
		}
	}

	return s, nil
}

// Close releases the journal and the database.
func (s *Simulator) Close() error {
	var err error
	if s.journal != nil {
		err = s.journal.Close()
	}
	if s.store != nil {
		if cerr := s.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Env returns the simulated chain.
func (s *Simulator) Env() *chain.Env {
	return s.env
}

// Deployment returns the provisioned contracts.
func (s *Simulator) Deployment() *deploy.Deployment {
	return s.deployment
}

// Run executes all scenarios in order, then the walks.
func (s *Simulator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{Name: s.Config.Name}

	results, err := s.RunScenarios(ctx)
	summary.Scenarios = results
	if err != nil {
		return summary, err
	}

	if s.Config.Walks != nil {
		report, err := s.RunWalks(ctx)
		summary.Walks = report
		if err != nil {
			return summary, err
		}
	}

	summary.PoolBalances, err = s.deployment.Exchange.PoolBalances(ctx)
	return summary, err
}

// RunScenarios runs the fixed scenarios in order. An isolated scenario is
// rolled back and the pool is checked against its prior balances; other
// scenarios keep their state. A rejected scenario does not stop the rest.
func (s *Simulator) RunScenarios(ctx context.Context) ([]ScenarioResult, error) {
	results := make([]ScenarioResult, 0, len(s.Config.Scenarios))

	for _, sc := range s.Config.Scenarios {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.runScenario(ctx, sc)
		if res != nil {
			results = append(results, *res)
		}
		if err != nil {
			if errors.Is(err, domain.ErrRollbackFailed) && s.metrics != nil {
				s.metrics.RecordRollbackFailure()
			}
			return results, errors.Wrapf(err, "scenario %s", sc.Name)
		}
	}

	return results, nil
}

func (s *Simulator) runScenario(ctx context.Context, sc config.Scenario) (*ScenarioResult, error) {
	logger := s.logger.With(zap.String("scenario", sc.Name))

	runID := 0
	if s.store != nil {
		next, err := s.store.NextRunID(ctx, sc.Name)
		if err != nil {
			return nil, err
		}
		runID = next
	}

	baseline, err := s.deployment.Exchange.PoolBalances(ctx)
	if err != nil {
		return nil, err
	}

	var result *simulation.Result
	err = s.scope.Run(ctx, runID, func(ctx context.Context, tx *snapshot.Tx) error {
		if !sc.Isolated {
			tx.Commit()
		}
		res, err := s.driver.Run(ctx, simulation.RunConfig{
			ID:           runID,
			Actor:        s.actors.Swapper,
			Amount:       sc.Amount,
			Direction:    sc.Direction,
			SwapDuration: sc.SwapDuration,
			MinBalance:   sc.MinBalance,
			MaxTrades:    sc.MaxSwaps,
		})
		result = res
		return err
	})
	if errors.Is(err, domain.ErrRollbackFailed) || result == nil {
		return nil, err
	}

	out := &ScenarioResult{Name: sc.Name, Isolated: sc.Isolated, Result: result}
	if result.Err != nil {
		logger.Warn("scenario aborted", zap.Int("trades", result.Trades), zap.Error(result.Err))
	}

	if sc.Isolated {
		after, err := s.deployment.Exchange.PoolBalances(ctx)
		if err != nil {
			return out, err
		}
		if !after.Equal(baseline) {
			return out, errors.Wrapf(domain.ErrRollbackFailed, "pool balances %s differ from baseline %s", after, baseline)
		}
	}

	if sc.Output != "" {
		out.Path = filepath.Join(s.Config.OutputDir, sc.Output)
		if err := s.exporter.WriteFile(out.Path, result.Table); err != nil {
			return out, errors.Wrap(err, "failed to export telemetry")
		}
	}
	if s.store != nil {
		if err := s.store.SaveRun(ctx, sc.Name, result.State, result.Err, result.Table); err != nil {
			return out, errors.Wrap(err, "failed to store telemetry")
		}
	}

	logger.Info("scenario finished",
		zap.String("state", string(result.State)),
		zap.Int("trades", result.Trades),
		zap.String("output", out.Path))
	return out, nil
}

// RunWalks runs the configured batch of random walks from the current state.
func (s *Simulator) RunWalks(ctx context.Context) (*batch.Report, error) {
	w := s.Config.Walks
	if w == nil {
		return nil, errors.Wrap(domain.ErrInvalidConfiguration, "no walks configured")
	}

	runner := batch.NewRunner(s.driver, s.scope, s.actors.Swapper, s.exporter, s.logger)
	if s.store != nil {
		runner.WithSink(s.store)
	}
	if s.metrics != nil {
		runner.WithRecorder(s.metrics)
	}

	return runner.Run(ctx, batch.Config{
		Name:         w.Prefix,
		Prefix:       w.Prefix,
		OutputDir:    s.Config.OutputDir,
		Trials:       w.Trials,
		Steps:        w.Steps,
		MinMagnitude: w.MinMagnitude,
		MaxMagnitude: w.MaxMagnitude,
		Seed:         w.Seed,
		SwapDuration: w.SwapDuration,
		MinBalance:   w.MinBalance,
		MaxTrades:    w.MaxSwaps,
	})
}

// SwapperBalances returns the swapper's current holdings.
func (s *Simulator) SwapperBalances(ctx context.Context) (domain.Balances, error) {
	return s.deployment.Exchange.Balances(ctx, s.actors.Swapper)
}
