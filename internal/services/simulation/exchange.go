// Package simulation drives an exchange through a sequence of trades and records one telemetry row per trade.
package simulation

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

// Exchange is the capability the driver needs from a two-asset exchange.
// Rejected trades return an error wrapping domain.ErrTradeRejected and leave no state change.
type Exchange interface {
	// Balances returns the actor's holdings of both assets.
	Balances(ctx context.Context, actor common.Address) (domain.Balances, error)
	// PoolBalances returns the exchange reserves.
	PoolBalances(ctx context.Context) (domain.Balances, error)
	Swap(ctx context.Context, actor common.Address, dir domain.Direction, amountIn, minAmountOut *big.Int) (domain.SwapResult, error)
	Metrics(ctx context.Context) (domain.PoolMetrics, error)
	// GasUsed returns the gas of the last submitted swap.
	GasUsed(ctx context.Context) (uint64, error)
}

// Observer receives run events. Implementations must be cheap; they are called inline.
type Observer interface {
	TradeExecuted(dir domain.Direction, gasUsed uint64)
	RunFinished(state domain.RunState)
}

type nopObserver struct{}

func (nopObserver) TradeExecuted(domain.Direction, uint64) {}
func (nopObserver) RunFinished(domain.RunState) {}
