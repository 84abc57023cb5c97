// Package batch runs independent random-walk trials from one baseline state.
package batch

import (
	"context"
	"math/big"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/domain"
	"github.com/vadiminshakov/swapsim/internal/services/simulation"
	"github.com/vadiminshakov/swapsim/internal/services/snapshot"
	"github.com/vadiminshakov/swapsim/internal/services/telemetry"
	"github.com/vadiminshakov/swapsim/internal/services/walk"
	"go.uber.org/zap"
)

// Config describes a batch of trials.
type Config struct {
	Name      string
	Prefix    string
	OutputDir string
	Trials    int

	Steps        int
	MinMagnitude *big.Int
	MaxMagnitude *big.Int
	Seed         int64

	SwapDuration int64
	MinBalance   *big.Int
	MaxTrades    int
}

func (c Config) validate() error {
	if c.Trials <= 0 {
		return errors.Wrapf(domain.ErrInvalidConfiguration, "trials must be positive, got %d", c.Trials)
	}
	if c.Prefix == "" {
		return errors.Wrap(domain.ErrInvalidConfiguration, "output prefix is empty")
	}
	return nil
}

// Sink stores finished runs in addition to the CSV files.
type Sink interface {
	SaveRun(ctx context.Context, scenario string, state domain.RunState, runErr error, table *domain.TelemetryTable) error
	NextRunID(ctx context.Context, scenario string) (int, error)
}

// Recorder receives batch level measurements.
type Recorder interface {
	RecordRollbackFailure()
	RecordBatch(seconds float64)
}

// Outcome is the result of one trial.
type Outcome struct {
	RunID int
	State domain.RunState
	Rows  int
	Path  string
	Err   error
}

// Report lists the outcomes of a batch in run order.
type Report struct {
	Outcomes []Outcome
}

// Failed returns the number of trials that ended with an error.
func (r *Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Runner executes batches. Each trial runs inside a snapshot scope and is rolled back afterwards.
type Runner struct {
	driver   *simulation.Driver
	scope    *snapshot.Scope
	actor    common.Address
	exporter *telemetry.CSVExporter
	sink     Sink
	recorder Recorder
	logger   *zap.Logger
}

// NewRunner creates a runner trading on behalf of actor.
func NewRunner(driver *simulation.Driver, scope *snapshot.Scope, actor common.Address, exporter *telemetry.CSVExporter, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		driver:   driver,
		scope:    scope,
		actor:    actor,
		exporter: exporter,
		logger:   logger,
	}
}

// WithSink stores runs in s as well.
func (r *Runner) WithSink(s Sink) *Runner {
	r.sink = s
	return r
}

// WithRecorder reports batch measurements to rec.
func (r *Runner) WithRecorder(rec Recorder) *Runner {
	r.recorder = rec
	return r
}

// Run executes cfg.Trials trials. Run ids continue after the highest id already
// present in the output directory (and the sink). A rejected trial is recorded
// in its outcome and the batch moves on; a failed rollback stops the batch.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	first, err := r.firstRunID(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(zap.String("batch", cfg.Name))
	logger.Info("batch started", zap.Int("first_run_id", first), zap.Int("trials", cfg.Trials))

	report := &Report{}
	for n := 0; n < cfg.Trials; n++ {
		runID := first + n
		outcome, err := r.trial(ctx, cfg, runID)
		if outcome != nil {
			report.Outcomes = append(report.Outcomes, *outcome)
		}
		if err != nil {
			if errors.Is(err, domain.ErrRollbackFailed) && r.recorder != nil {
				r.recorder.RecordRollbackFailure()
			}
			logger.Error("batch stopped", zap.Int("run_id", runID), zap.Error(err))
			return report, err
		}
	}

	if r.recorder != nil {
		r.recorder.RecordBatch(time.Since(start).Seconds())
	}
	logger.Info("batch finished",
		zap.Int("trials", len(report.Outcomes)),
		zap.Int("failed", report.Failed()),
		zap.Duration("elapsed", time.Since(start)))

	return report, nil
}

func (r *Runner) firstRunID(ctx context.Context, cfg Config) (int, error) {
	first, err := telemetry.NextRunID(cfg.OutputDir, cfg.Prefix)
	if err != nil {
		return 0, errors.Wrap(err, "scan existing outputs")
	}
	if r.sink != nil {
		stored, err := r.sink.NextRunID(ctx, cfg.Name)
		if err != nil {
			return 0, errors.Wrap(err, "read stored run ids")
		}
		first = max(first, stored)
	}
	return first, nil
}

// trial runs one walk. A nil error with a non-nil Outcome.Err means the run
// failed but the batch may continue.
func (r *Runner) trial(ctx context.Context, cfg Config, runID int) (*Outcome, error) {
	plan, err := walk.Generate(cfg.MinMagnitude, cfg.MaxMagnitude, cfg.Steps, cfg.Seed+int64(runID))
	if err != nil {
		return nil, errors.Wrapf(err, "generate walk for run %d", runID)
	}

	var result *simulation.Result
	scopeErr := r.scope.Run(ctx, runID, func(ctx context.Context, _ *snapshot.Tx) error {
		res, err := r.driver.Run(ctx, simulation.RunConfig{
			ID:           runID,
			Actor:        r.actor,
			Plan:         &plan,
			SwapDuration: cfg.SwapDuration,
			MinBalance:   cfg.MinBalance,
			MaxTrades:    cfg.MaxTrades,
		})
		result = res
		return err
	})

	if errors.Is(scopeErr, domain.ErrRollbackFailed) {
		return nil, scopeErr
	}
	if result == nil {
		return nil, errors.Wrapf(scopeErr, "run %d", runID)
	}

	outcome := &Outcome{RunID: runID, State: result.State, Rows: result.Table.Len(), Err: result.Err}
	if err := r.export(ctx, cfg, result, outcome); err != nil {
		return outcome, err
	}

	if outcome.Err != nil {
		r.logger.Warn("trial failed", zap.Int("run_id", runID), zap.Error(outcome.Err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome, ctxErr
		}
	}
	return outcome, nil
}

func (r *Runner) export(ctx context.Context, cfg Config, result *simulation.Result, outcome *Outcome) error {
	if r.exporter != nil && cfg.OutputDir != "" {
		path := filepath.Join(cfg.OutputDir, telemetry.FileName(cfg.Prefix, outcome.RunID))
		if err := r.exporter.WriteFile(path, result.Table); err != nil {
			return errors.Wrapf(err, "export run %d", outcome.RunID)
		}
		outcome.Path = path
	}
	if r.sink != nil {
		if err := r.sink.SaveRun(ctx, cfg.Name, result.State, result.Err, result.Table); err != nil {
			return errors.Wrapf(err, "store run %d", outcome.RunID)
		}
	}
	return nil
}
