package stableswap

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/swapsim/internal/chain"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

type poolFixture struct {
	env    *chain.Env
	pool   *Pool
	token  *chain.Token
	trader common.Address
}

func newPoolFixture(t *testing.T) *poolFixture {
	t.Helper()
	env := chain.NewEnv(domain.NewClock(1_000, 10), nil)
	deployer := chain.GenerateAddress("deployer")
	token := env.DeployToken(deployer, "Frax Ether", "frxETH", 18)
	lp := env.DeployToken(deployer, "LP", "LP", 18)
	pool, err := Deploy(env, deployer, token, lp, DefaultParams(), nil)
	require.NoError(t, err)

	provider := chain.GenerateAddress("provider")
	env.SetBalance(provider, ether(10_000))
	token.Mint(provider, ether(10_000))
	token.Approve(provider, pool.Address(), chain.MaxUint256)
	_, err = pool.AddLiquidity(provider, [NCoins]*big.Int{ether(1_000), ether(1_000)}, big.NewInt(0))
	require.NoError(t, err)

	trader := chain.GenerateAddress("trader")
	env.SetBalance(trader, ether(100))
	token.Mint(trader, ether(100))
	token.Approve(trader, pool.Address(), chain.MaxUint256)

	return &poolFixture{env: env, pool: pool, token: token, trader: trader}
}

func TestDeployRejectsBadParams(t *testing.T) {
	env := chain.NewEnv(nil, nil)
	deployer := chain.GenerateAddress("deployer")
	token := env.DeployToken(deployer, "A", "A", 18)
	lp := env.DeployToken(deployer, "LP", "LP", 18)

	params := DefaultParams()
	params.A = 0
	_, err := Deploy(env, deployer, token, lp, params, nil)
	assert.Error(t, err)

	params = DefaultParams()
	params.Fee = FeeDenominator
	_, err = Deploy(env, deployer, token, lp, params, nil)
	assert.Error(t, err)
}

func TestExchangeMatchesQuote(t *testing.T) {
	f := newPoolFixture(t)

	quoted, err := f.pool.GetDy(0, 1, ether(1))
	require.NoError(t, err)

	tokenBefore := f.token.BalanceOf(f.trader)
	dy, fee, err := f.pool.Exchange(f.trader, 0, 1, ether(1), big.NewInt(0))
	require.NoError(t, err)

	assert.Equal(t, quoted.String(), dy.String())
	assert.Positive(t, fee.Sign())
	assert.Equal(t, new(big.Int).Add(tokenBefore, dy).String(), f.token.BalanceOf(f.trader).String())
	assert.Equal(t, ether(99).String(), f.env.Balance(f.trader).String())
	assert.Greater(t, f.env.LastGasUsed(), chain.GasTx)
}

func TestExchangeRejections(t *testing.T) {
	tests := []struct {
		name  string
		i, j  int
		dx    *big.Int
		minDy *big.Int
	}{
		{name: "zero amount", i: 0, j: 1, dx: big.NewInt(0)},
		{name: "negative amount", i: 0, j: 1, dx: big.NewInt(-5)},
		{name: "same coin", i: 1, j: 1, dx: ether(1)},
		{name: "insufficient balance", i: 0, j: 1, dx: ether(101)},
		{name: "slippage", i: 1, j: 0, dx: ether(1), minDy: ether(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPoolFixture(t)
			before, err := f.env.Snapshot(context.Background())
			require.NoError(t, err)

			_, _, err = f.pool.Exchange(f.trader, tt.i, tt.j, tt.dx, tt.minDy)
			require.Error(t, err)
			assert.True(t, errors.Is(err, chain.ErrReverted))

			after, err := f.env.Snapshot(context.Background())
			require.NoError(t, err)

			var b, a map[string]any
			require.NoError(t, json.Unmarshal(before, &b))
			require.NoError(t, json.Unmarshal(after, &a))
			// the failed call still reports its gas
			delete(b, "gas_used")
			delete(a, "gas_used")
			assert.Equal(t, b, a)
		})
	}
}

func TestQuoteRefusesInputAboveCounterReserve(t *testing.T) {
	f := newPoolFixture(t)

	_, err := f.pool.GetDy(0, 1, ether(1_000))
	require.NoError(t, err)

	for _, dx := range []*big.Int{
		ether(1_001),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(29), nil),
	} {
		_, err := f.pool.GetDy(0, 1, dx)
		require.Error(t, err, dx.String())
		assert.True(t, errors.Is(err, chain.ErrReverted))
		assert.Contains(t, err.Error(), "exceeds coin 1 reserve")
	}

	rich := chain.GenerateAddress("whale")
	f.env.SetBalance(rich, ether(5_000))
	_, _, err = f.pool.Exchange(rich, 0, 1, ether(2_000), big.NewInt(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds coin 1 reserve")
	assert.Equal(t, ether(5_000).String(), f.env.Balance(rich).String())
}

func TestAdapterMapsRevertsToRejections(t *testing.T) {
	f := newPoolFixture(t)
	adapter := NewAdapter(f.pool)

	_, err := adapter.Swap(context.Background(), f.trader, domain.DirectionForward, ether(500), big.NewInt(0))
	assert.True(t, errors.Is(err, domain.ErrTradeRejected))

	res, err := adapter.Swap(context.Background(), f.trader, domain.DirectionReverse, ether(1), big.NewInt(0))
	require.NoError(t, err)
	assert.Positive(t, res.AmountOut.Sign())

	metrics, err := adapter.Metrics(context.Background())
	require.NoError(t, err)
	assert.Positive(t, metrics.VirtualPrice.Sign())
	assert.Positive(t, metrics.SpotPrice.Sign())
	assert.Positive(t, metrics.OraclePrice.Sign())

	balances, err := adapter.Balances(context.Background(), f.trader)
	require.NoError(t, err)
	assert.Equal(t, ether(99).String(), balances.B.String())
}

func TestOracleFollowsPriceOverTime(t *testing.T) {
	f := newPoolFixture(t)

	_, _, err := f.pool.Exchange(f.trader, 0, 1, ether(50), big.NewInt(0))
	require.NoError(t, err)
	last := f.pool.LastPrice()
	require.Equal(t, 1, last.Cmp(ether(1)))

	assert.Equal(t, ether(1).String(), f.pool.PriceOracle().String(), "no time has passed")

	f.env.Clock().Timestamp += 866
	mid := f.pool.PriceOracle()
	assert.Equal(t, 1, mid.Cmp(ether(1)))
	assert.Equal(t, -1, mid.Cmp(last))

	f.env.Clock().Timestamp += 866 * 50
	assert.Equal(t, last.String(), f.pool.PriceOracle().String())
}

func TestPoolStateRoundTrip(t *testing.T) {
	f := newPoolFixture(t)
	state, err := f.pool.State()
	require.NoError(t, err)

	_, _, err = f.pool.Exchange(f.trader, 0, 1, ether(3), big.NewInt(0))
	require.NoError(t, err)

	require.NoError(t, f.pool.SetState(state))
	again, err := f.pool.State()
	require.NoError(t, err)
	assert.JSONEq(t, string(state), string(again))
}
