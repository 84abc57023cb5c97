package simulation

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/domain"
	"github.com/vadiminshakov/swapsim/internal/services/session"
	"github.com/vadiminshakov/swapsim/internal/services/telemetry"
	"github.com/vadiminshakov/swapsim/internal/services/timetravel"
	"go.uber.org/zap"
)

// RunConfig describes one simulation run. Either Plan is set, or Amount and Direction.
type RunConfig struct {
	ID    int
	Actor common.Address

	Amount    *big.Int
	Direction domain.Direction
	Plan      *domain.TradePlan

	// SwapDuration is the number of seconds the clock advances after each trade.
	SwapDuration int64
	MinBalance   *big.Int
	// MaxTrades caps the run. Required in fixed mode, optional with a plan.
	MaxTrades int
}

func (c RunConfig) validate() error {
	if c.Plan != nil {
		if c.Plan.Len() == 0 {
			return errors.Wrap(domain.ErrInvalidConfiguration, "trade plan is empty")
		}
		if c.MaxTrades < 0 {
			return errors.Wrapf(domain.ErrInvalidConfiguration, "max trades must not be negative, got %d", c.MaxTrades)
		}
	} else {
		if c.Amount == nil || c.Amount.Sign() <= 0 {
			return errors.Wrapf(domain.ErrInvalidConfiguration, "swap amount must be positive, got %v", c.Amount)
		}
		if c.MaxTrades <= 0 {
			return errors.Wrapf(domain.ErrInvalidConfiguration, "max trades must be positive, got %d", c.MaxTrades)
		}
	}
	if c.MinBalance == nil || c.MinBalance.Sign() < 0 {
		return errors.Wrapf(domain.ErrInvalidConfiguration, "minimum balance must not be negative, got %v", c.MinBalance)
	}
	if c.SwapDuration < 0 {
		return errors.Wrapf(domain.ErrInvalidConfiguration, "swap duration must not be negative, got %d", c.SwapDuration)
	}
	return nil
}

// ceiling returns the maximum number of trades the run may execute.
func (c RunConfig) ceiling() int {
	if c.Plan == nil {
		return c.MaxTrades
	}
	if c.MaxTrades > 0 && c.MaxTrades < c.Plan.Len() {
		return c.MaxTrades
	}
	return c.Plan.Len()
}

// trade returns the direction and input amount of the n-th trade.
func (c RunConfig) trade(n int) (domain.Direction, *big.Int) {
	if c.Plan == nil {
		return c.Direction, new(big.Int).Set(c.Amount)
	}
	return domain.DirectionOf(c.Plan.Amount(n))
}

// Result is the outcome of a run.
type Result struct {
	RunID  int
	State  domain.RunState
	Table  *domain.TelemetryTable
	Trades int
	// Err is the error that aborted the run, if any.
	Err error
}

// Driver executes runs against one exchange. It is not safe for concurrent use.
type Driver struct {
	exchange Exchange
	clock    *domain.Clock
	advancer *timetravel.Advancer
	observer Observer
	logger   *zap.Logger
}

// NewDriver creates a driver. clock is the environment clock the exchange reads.
func NewDriver(exchange Exchange, clock *domain.Clock, advancer *timetravel.Advancer, logger *zap.Logger) (*Driver, error) {
	if exchange == nil || clock == nil || advancer == nil {
		return nil, errors.Wrap(domain.ErrInvalidConfiguration, "driver requires exchange, clock and advancer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		exchange: exchange,
		clock:    clock,
		advancer: advancer,
		observer: nopObserver{},
		logger:   logger,
	}, nil
}

// WithObserver sets the observer notified about trades and finished runs.
func (d *Driver) WithObserver(o Observer) *Driver {
	if o != nil {
		d.observer = o
	}
	return d
}

// Run executes trades until the ceiling is reached, a balance falls to the floor,
// or a trade is rejected. On abort the partial result is returned with the error.
func (d *Driver) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := d.logger.With(zap.Int("run_id", cfg.ID), zap.String("actor", cfg.Actor.Hex()))
	recorder := telemetry.NewRecorder(cfg.ID)
	res := &Result{RunID: cfg.ID, State: domain.RunStateRunning}
	ceiling := cfg.ceiling()

	logger.Info("run started", zap.Int("max_trades", ceiling), zap.Int64("timestamp", d.clock.Timestamp))

	for {
		if err := ctx.Err(); err != nil {
			return d.abort(res, recorder, logger, errors.Wrap(err, "run interrupted"))
		}

		balances, err := d.exchange.Balances(ctx, cfg.Actor)
		if err != nil {
			return d.abort(res, recorder, logger, errors.Wrap(err, "read actor balances"))
		}
		if !session.ShouldContinue(balances, res.Trades, cfg.MinBalance, ceiling) {
			break
		}

		row, err := d.step(ctx, cfg, res.Trades)
		if err != nil {
			return d.abort(res, recorder, logger, err)
		}
		if err := recorder.Append(row); err != nil {
			return d.abort(res, recorder, logger, err)
		}
		d.observer.TradeExecuted(row.Direction, row.GasUsed)

		if err := d.advancer.Advance(d.clock, cfg.SwapDuration); err != nil {
			return d.abort(res, recorder, logger, err)
		}
		res.Trades++
	}

	res.State = domain.RunStateComplete
	res.Table = recorder.Finalize()
	d.observer.RunFinished(res.State)
	logger.Info("run complete", zap.Int("trades", res.Trades), zap.Int64("timestamp", d.clock.Timestamp))

	return res, nil
}

func (d *Driver) step(ctx context.Context, cfg RunConfig, n int) (domain.TelemetryRow, error) {
	before, err := d.exchange.PoolBalances(ctx)
	if err != nil {
		return domain.TelemetryRow{}, errors.Wrap(err, "read pool balances")
	}

	dir, amount := cfg.trade(n)
	timestamp, block := d.clock.Timestamp, d.clock.BlockNumber

	swap, err := d.exchange.Swap(ctx, cfg.Actor, dir, amount, big.NewInt(0))
	if err != nil {
		return domain.TelemetryRow{}, errors.Wrapf(err, "trade %d: %s %s", n, dir, amount)
	}

	gas, err := d.exchange.GasUsed(ctx)
	if err != nil {
		return domain.TelemetryRow{}, errors.Wrap(err, "read gas used")
	}
	metrics, err := d.exchange.Metrics(ctx)
	if err != nil {
		return domain.TelemetryRow{}, errors.Wrap(err, "read pool metrics")
	}
	after, err := d.exchange.PoolBalances(ctx)
	if err != nil {
		return domain.TelemetryRow{}, errors.Wrap(err, "read pool balances")
	}

	d.logger.Debug("trade executed",
		zap.Int("run_id", cfg.ID),
		zap.Int("trade", n),
		zap.Stringer("direction", dir),
		zap.String("dx", amount.String()),
		zap.String("dy", swap.AmountOut.String()),
		zap.Uint64("gas", gas))

	return domain.TelemetryRow{
		Timestamp:    timestamp,
		BlockNumber:  block,
		Direction:    dir,
		OraclePrice:  metrics.OraclePrice,
		VirtualPrice: metrics.VirtualPrice,
		SpotPrice:    metrics.SpotPrice,
		AmountIn:     amount,
		AmountOut:    swap.AmountOut,
		PoolBefore:   before,
		PoolAfter:    after,
		Fee:          swap.Fee,
		GasUsed:      gas,
	}, nil
}

func (d *Driver) abort(res *Result, recorder *telemetry.Recorder, logger *zap.Logger, err error) (*Result, error) {
	res.State = domain.RunStateAborted
	res.Table = recorder.Finalize()
	res.Err = err
	d.observer.RunFinished(res.State)
	logger.Warn("run aborted", zap.Int("trades", res.Trades), zap.Error(err))
	return res, err
}
