package stableswap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/chain"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

// Adapter exposes a Pool through the simulation exchange capability.
type Adapter struct {
	pool *Pool
}

// NewAdapter wraps pool.
func NewAdapter(pool *Pool) *Adapter {
	return &Adapter{pool: pool}
}

// Balances returns the actor's native coin and token holdings.
func (a *Adapter) Balances(_ context.Context, actor common.Address) (domain.Balances, error) {
	return domain.Balances{
		A: a.pool.env.Balance(actor),
		B: a.pool.token.BalanceOf(actor),
	}, nil
}

func (a *Adapter) PoolBalances(_ context.Context) (domain.Balances, error) {
	b := a.pool.Balances()
	return domain.Balances{A: b[0], B: b[1]}, nil
}

// Swap submits exchange(i, j, amountIn, minAmountOut). Reverts become rejected trades.
func (a *Adapter) Swap(_ context.Context, actor common.Address, dir domain.Direction, amountIn, minAmountOut *big.Int) (domain.SwapResult, error) {
	i, j := dir.Coins()
	dy, fee, err := a.pool.Exchange(actor, i, j, amountIn, minAmountOut)
	if err != nil {
		if errors.Is(err, chain.ErrReverted) || errors.Is(err, chain.ErrInsufficientBalance) {
			return domain.SwapResult{}, errors.Wrapf(domain.ErrTradeRejected, "%v", err)
		}
		return domain.SwapResult{}, err
	}
	return domain.SwapResult{AmountOut: dy, Fee: fee}, nil
}

func (a *Adapter) Metrics(_ context.Context) (domain.PoolMetrics, error) {
	vp, err := a.pool.VirtualPrice()
	if err != nil {
		return domain.PoolMetrics{}, errors.Wrap(err, "virtual price")
	}
	p, err := a.pool.SpotPrice()
	if err != nil {
		return domain.PoolMetrics{}, errors.Wrap(err, "spot price")
	}
	return domain.PoolMetrics{
		OraclePrice:  a.pool.PriceOracle(),
		VirtualPrice: vp,
		SpotPrice:    p,
	}, nil
}

func (a *Adapter) GasUsed(_ context.Context) (uint64, error) {
	return a.pool.env.LastGasUsed(), nil
}
