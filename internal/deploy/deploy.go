// Package deploy provisions a simulated chain with a StableSwap pool, funded actors and seed liquidity.
package deploy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/chain"
	"github.com/vadiminshakov/swapsim/internal/exchange/stableswap"
	"go.uber.org/zap"
)

const (
	DeployerAlias = "deployer"
	ProviderAlias = "liquidity_provider"
	SwapperAlias  = "swapper"
)

// Config names the pool tokens and carries the pool parameters.
type Config struct {
	CoinName   string
	CoinSymbol string
	LPName     string
	LPSymbol   string
	Pool       stableswap.Params
}

// DefaultConfig describes the frxETH/ETH pool.
func DefaultConfig() Config {
	return Config{
		CoinName:   "Frax Ether",
		CoinSymbol: "frxETH",
		LPName:     "Curve.fi ETH/frxETH",
		LPSymbol:   "frxETHCRV",
		Pool:       stableswap.DefaultParams(),
	}
}

// Deployment is a provisioned environment.
type Deployment struct {
	Env      *chain.Env
	Deployer common.Address
	Coin     *chain.Token
	LP       *chain.Token
	Pool     *stableswap.Pool
	Exchange *stableswap.Adapter

	logger *zap.Logger
}

// Deploy creates the coin, the LP token and the pool on env.
func Deploy(env *chain.Env, cfg Config, logger *zap.Logger) (*Deployment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if env == nil {
		return nil, errors.New("deploy requires an environment")
	}

	deployer := chain.GenerateAddress(DeployerAlias)
	coin := env.DeployToken(deployer, cfg.CoinName, cfg.CoinSymbol, 18)
	lp := env.DeployToken(deployer, cfg.LPName, cfg.LPSymbol, 18)

	pool, err := stableswap.Deploy(env, deployer, coin, lp, cfg.Pool, logger)
	if err != nil {
		return nil, errors.Wrap(err, "deploy pool")
	}

	return &Deployment{
		Env:      env,
		Deployer: deployer,
		Coin:     coin,
		LP:       lp,
		Pool:     pool,
		Exchange: stableswap.NewAdapter(pool),
		logger:   logger,
	}, nil
}

// Fund credits actor with amount of both the native coin and the pool token.
func (d *Deployment) Fund(actor common.Address, amount *big.Int) {
	d.Env.SetBalance(actor, amount)
	d.Coin.Mint(actor, amount)
	d.logger.Debug("actor funded", zap.String("actor", actor.Hex()), zap.String("amount", amount.String()))
}

// ApprovePool lets the pool pull an unlimited amount of the token from actor.
func (d *Deployment) ApprovePool(actor common.Address) {
	d.Coin.Approve(actor, d.Pool.Address(), chain.MaxUint256)
}

// AddLiquidity deposits amount of each coin from provider and returns the minted shares.
func (d *Deployment) AddLiquidity(provider common.Address, amount *big.Int) (*big.Int, error) {
	d.ApprovePool(provider)
	minted, err := d.Pool.AddLiquidity(provider, [stableswap.NCoins]*big.Int{amount, amount}, big.NewInt(0))
	if err != nil {
		return nil, errors.Wrap(err, "add liquidity")
	}
	d.logger.Info("liquidity added",
		zap.String("provider", provider.Hex()),
		zap.String("amount", amount.String()),
		zap.String("minted", minted.String()))
	return minted, nil
}

// Actors are the funded accounts of a provisioned environment.
type Actors struct {
	Provider common.Address
	Swapper  common.Address
}

// Provision funds the liquidity provider and the swapper, seeds the pool with
// liquidity of each coin and approves the pool for the swapper.
func (d *Deployment) Provision(funding, liquidity *big.Int) (Actors, error) {
	actors := Actors{
		Provider: chain.GenerateAddress(ProviderAlias),
		Swapper:  chain.GenerateAddress(SwapperAlias),
	}
	d.Fund(actors.Provider, funding)
	d.Fund(actors.Swapper, funding)

	if _, err := d.AddLiquidity(actors.Provider, liquidity); err != nil {
		return Actors{}, err
	}
	d.ApprovePool(actors.Swapper)

	return actors, nil
}
