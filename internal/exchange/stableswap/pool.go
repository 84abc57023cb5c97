package stableswap

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/chain"
	"go.uber.org/zap"
)

// Params are the pool constructor arguments.
type Params struct {
	A         uint64 `yaml:"a"`
	Fee       uint64 `yaml:"fee"`
	AdminFee  uint64 `yaml:"admin_fee"`
	MaExpTime uint64 `yaml:"ma_exp_time"`
}

// DefaultParams mirrors the deployed frxETH/ETH pool.
func DefaultParams() Params {
	return Params{
		A:         120,
		Fee:       4_000_000,
		AdminFee:  5_000_000_000,
		MaExpTime: 866,
	}
}

func (p Params) validate() error {
	if p.A == 0 {
		return errors.New("amplification must be positive")
	}
	if p.Fee >= FeeDenominator || p.AdminFee > FeeDenominator {
		return errors.Errorf("fee %d / admin fee %d out of range", p.Fee, p.AdminFee)
	}
	if p.MaExpTime == 0 {
		return errors.New("ma_exp_time must be positive")
	}
	return nil
}

// Pool is a two-coin StableSwap pool. Coin 0 is the native coin, coin 1 an ERC20 token.
type Pool struct {
	env     *chain.Env
	address common.Address
	token   *chain.Token
	lp      *chain.Token
	logger  *zap.Logger

	amp       *uint256.Int
	fee       *uint256.Int
	adminFee  *uint256.Int
	maExpTime uint64

	balances   [NCoins]*uint256.Int
	lastPrice  *uint256.Int
	maPrice    *uint256.Int
	maLastTime int64
}

// Deploy creates the pool on env. token is coin 1 and lp the pool's share token.
func Deploy(env *chain.Env, deployer common.Address, token, lp *chain.Token, params Params, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if env == nil || token == nil || lp == nil {
		return nil, errors.New("pool requires env, coin and lp token")
	}
	if err := params.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pool params")
	}

	p := &Pool{
		env:        env,
		token:      token,
		lp:         lp,
		logger:     logger,
		amp:        uint256.NewInt(params.A * APrecision),
		fee:        uint256.NewInt(params.Fee),
		adminFee:   uint256.NewInt(params.AdminFee),
		maExpTime:  params.MaExpTime,
		balances:   [NCoins]*uint256.Int{new(uint256.Int), new(uint256.Int)},
		lastPrice:  precision.Clone(),
		maPrice:    precision.Clone(),
		maLastTime: env.Clock().Timestamp,
	}
	p.address = env.Deploy(deployer, p)

	logger.Info("pool deployed",
		zap.String("address", p.address.Hex()),
		zap.String("coin1", token.Symbol()),
		zap.Uint64("A", params.A),
		zap.Uint64("fee", params.Fee))
	return p, nil
}

// Address returns the pool address.
func (p *Pool) Address() common.Address {
	return p.address
}

// Coins returns the coin addresses in pool order.
func (p *Pool) Coins() [NCoins]common.Address {
	return [NCoins]common.Address{chain.NativeCoin, p.token.Address()}
}

// Balances returns the pool's accounted balances.
func (p *Pool) Balances() [NCoins]*big.Int {
	return [NCoins]*big.Int{p.balances[0].ToBig(), p.balances[1].ToBig()}
}

// LPToken returns the share token.
func (p *Pool) LPToken() *chain.Token {
	return p.lp
}

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, errors.Wrapf(chain.ErrReverted, "invalid amount %v", v)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, errors.Wrapf(chain.ErrReverted, "amount %s overflows uint256", v)
	}
	return u, nil
}

func reverted(err error, op string) error {
	return errors.Wrapf(chain.ErrReverted, "%s: %v", op, err)
}

// canPay checks that from holds amount of coin i and, for the token, has approved the pool.
func (p *Pool) canPay(from common.Address, i int, amount *big.Int) error {
	if i == 0 {
		if balance := p.env.Balance(from); balance.Cmp(amount) < 0 {
			return errors.Wrapf(chain.ErrInsufficientBalance, "native: have %s need %s", balance, amount)
		}
		return nil
	}
	return p.token.CanTransferFrom(p.address, from, amount)
}

func (p *Pool) pull(from common.Address, i int, amount *big.Int) error {
	if i == 0 {
		return p.env.TransferNative(from, p.address, amount)
	}
	return p.token.TransferFrom(p.address, from, p.address, amount)
}

func (p *Pool) push(to common.Address, j int, amount *big.Int) error {
	if j == 0 {
		return p.env.TransferNative(p.address, to, amount)
	}
	return p.token.Transfer(p.address, to, amount)
}

// AddLiquidity deposits amounts and mints share tokens to provider.
// Unbalanced deposits after the first one pay the imbalance fee.
func (p *Pool) AddLiquidity(provider common.Address, amounts [NCoins]*big.Int, minMint *big.Int) (*big.Int, error) {
	p.env.BeginTx()
	defer p.env.EndTx()

	var deposit [NCoins]*uint256.Int
	for i, a := range amounts {
		u, err := toU256(a)
		if err != nil {
			return nil, err
		}
		deposit[i] = u
	}

	supply, err := toU256(p.lp.TotalSupply())
	if err != nil {
		return nil, err
	}
	p.env.UseGas(NCoins*chain.GasSload + chain.GasSload)

	c := &calc{}
	old := p.balances
	d0 := new(uint256.Int)
	iterations := 0
	if !supply.IsZero() {
		var n int
		d0, n, err = getD(old, p.amp)
		iterations += n
		if err != nil {
			return nil, reverted(err, "add_liquidity")
		}
	}

	var next [NCoins]*uint256.Int
	for i := range next {
		if supply.IsZero() && deposit[i].IsZero() {
			return nil, errors.Wrap(chain.ErrReverted, "initial deposit requires all coins")
		}
		next[i] = c.add(old[i], deposit[i])
	}

	d1, n, err := getD(next, p.amp)
	iterations += n
	if err != nil {
		return nil, reverted(err, "add_liquidity")
	}
	if !d1.Gt(d0) {
		return nil, errors.Wrap(chain.ErrReverted, "invariant did not grow")
	}

	stored := next
	mint := d1
	if !supply.IsZero() {
		fee := c.div(c.mul(p.fee, nCoins), uint256.NewInt(4*(NCoins-1)))
		for i := range next {
			ideal := c.div(c.mul(d1, old[i]), d0)
			var diff *uint256.Int
			if ideal.Gt(next[i]) {
				diff = c.sub(ideal, next[i])
			} else {
				diff = c.sub(next[i], ideal)
			}
			coinFee := c.div(c.mul(fee, diff), feeDenom)
			stored[i] = c.sub(next[i], c.div(c.mul(coinFee, p.adminFee), feeDenom))
			next[i] = c.sub(next[i], coinFee)
		}
		d2, n, err := getD(next, p.amp)
		iterations += n
		if err != nil {
			return nil, reverted(err, "add_liquidity")
		}
		mint = c.div(c.mul(supply, c.sub(d2, d0)), d0)
	}
	if c.err != nil {
		return nil, reverted(c.err, "add_liquidity")
	}
	p.env.UseGas(uint64(iterations) * chain.GasIteration)

	minted := mint.ToBig()
	if minMint != nil && minted.Cmp(minMint) < 0 {
		return nil, errors.Wrapf(chain.ErrReverted, "slippage: minted %s below %s", minted, minMint)
	}
	for i := range amounts {
		if err := p.canPay(provider, i, amounts[i]); err != nil {
			return nil, reverted(err, "add_liquidity")
		}
	}
	price, err := getP(stored, p.amp, d1)
	if err != nil {
		return nil, reverted(err, "add_liquidity")
	}
	for i := range amounts {
		if err := p.pull(provider, i, amounts[i]); err != nil {
			return nil, reverted(err, "add_liquidity")
		}
	}

	p.savePrice(price)
	p.balances = stored
	p.env.UseGas(NCoins * chain.GasSstore)
	p.lp.Mint(provider, minted)

	p.logger.Debug("liquidity added",
		zap.String("provider", provider.Hex()),
		zap.String("minted", minted.String()))
	return minted, nil
}

// GetDy quotes an exchange of dx of coin i for coin j, net of fees.
func (p *Pool) GetDy(i, j int, dx *big.Int) (*big.Int, error) {
	q, err := p.quote(i, j, dx)
	if err != nil {
		return nil, err
	}
	return q.dy.ToBig(), nil
}

type quote struct {
	dx, dy, fee, adminFee *uint256.Int
	iterations            int
}

func (p *Pool) quote(i, j int, dx *big.Int) (quote, error) {
	in, err := toU256(dx)
	if err != nil {
		return quote{}, err
	}
	if in.IsZero() {
		return quote{}, errors.Wrap(chain.ErrReverted, "zero exchange amount")
	}
	// solvency guard: no input above the whole reserve of coin j
	if in.Gt(p.balances[j]) {
		return quote{}, errors.Wrapf(chain.ErrReverted, "exchange amount %s exceeds coin %d reserve %s", in, j, p.balances[j])
	}

	c := &calc{}
	x := c.add(p.balances[i], in)
	y, iterations, err := getY(i, j, x, p.balances, p.amp)
	if err != nil {
		return quote{}, reverted(err, "exchange")
	}
	dy := c.sub(c.sub(p.balances[j], y), uint256.NewInt(1))
	fee := c.div(c.mul(dy, p.fee), feeDenom)
	dy = c.sub(dy, fee)
	adminFee := c.div(c.mul(fee, p.adminFee), feeDenom)
	if c.err != nil {
		return quote{}, reverted(c.err, "exchange")
	}
	return quote{dx: in, dy: dy, fee: fee, adminFee: adminFee, iterations: iterations}, nil
}

// Exchange swaps dx of coin i from trader for coin j. It returns the amount
// received and the fee charged in coin j. A failed exchange leaves no trace.
func (p *Pool) Exchange(trader common.Address, i, j int, dx, minDy *big.Int) (*big.Int, *big.Int, error) {
	p.env.BeginTx()
	defer p.env.EndTx()

	if i == j || i < 0 || j < 0 || i >= NCoins || j >= NCoins {
		return nil, nil, errors.Wrapf(chain.ErrReverted, "invalid coin pair %d -> %d", i, j)
	}
	p.env.UseGas(NCoins*chain.GasSload + 2*chain.GasSload)

	q, err := p.quote(i, j, dx)
	if err != nil {
		return nil, nil, err
	}
	p.env.UseGas(uint64(q.iterations) * chain.GasIteration)

	dy := q.dy.ToBig()
	if minDy != nil && dy.Cmp(minDy) < 0 {
		return nil, nil, errors.Wrapf(chain.ErrReverted, "exchange resulted in fewer coins than expected: %s < %s", dy, minDy)
	}
	if err := p.canPay(trader, i, dx); err != nil {
		return nil, nil, reverted(err, "exchange")
	}

	c := &calc{}
	var next [NCoins]*uint256.Int
	next[i] = c.add(p.balances[i], q.dx)
	next[j] = c.sub(p.balances[j], c.add(q.dy, q.adminFee))
	if c.err != nil {
		return nil, nil, reverted(c.err, "exchange")
	}
	d, n, err := getD(next, p.amp)
	if err != nil {
		return nil, nil, reverted(err, "exchange")
	}
	p.env.UseGas(uint64(n) * chain.GasIteration)
	price, err := getP(next, p.amp, d)
	if err != nil {
		return nil, nil, reverted(err, "exchange")
	}

	if err := p.pull(trader, i, dx); err != nil {
		return nil, nil, reverted(err, "exchange")
	}
	if err := p.push(trader, j, dy); err != nil {
		return nil, nil, reverted(err, "exchange")
	}
	p.savePrice(price)
	p.balances = next
	p.env.UseGas(NCoins*chain.GasSstore + chain.GasLog)

	return dy, q.fee.ToBig(), nil
}

// savePrice folds the previous spot price into the moving average and stores the new one.
func (p *Pool) savePrice(price *uint256.Int) {
	if price.IsZero() {
		return
	}
	p.maPrice = p.movingAverage()
	if price.Gt(maxPrice) {
		price = maxPrice.Clone()
	}
	p.lastPrice = price
	if now := p.env.Clock().Timestamp; p.maLastTime < now {
		p.maLastTime = now
	}
	p.env.UseGas(3 * chain.GasSstore)
}

func (p *Pool) movingAverage() *uint256.Int {
	now := p.env.Clock().Timestamp
	if p.maLastTime >= now {
		return p.maPrice.Clone()
	}
	alpha := emaWeight(uint64(now-p.maLastTime), p.maExpTime)
	c := &calc{}
	weighted := c.add(
		c.mul(p.lastPrice, c.sub(precision, alpha)),
		c.mul(p.maPrice, alpha),
	)
	return c.div(weighted, precision)
}

// PriceOracle returns the exponential moving average of the spot price at the current block time.
func (p *Pool) PriceOracle() *big.Int {
	return p.movingAverage().ToBig()
}

// LastPrice returns the last stored spot price.
func (p *Pool) LastPrice() *big.Int {
	return p.lastPrice.ToBig()
}

// SpotPrice returns the current marginal price.
func (p *Pool) SpotPrice() (*big.Int, error) {
	d, _, err := getD(p.balances, p.amp)
	if err != nil {
		return nil, reverted(err, "get_p")
	}
	price, err := getP(p.balances, p.amp, d)
	if err != nil {
		return nil, reverted(err, "get_p")
	}
	return price.ToBig(), nil
}

// VirtualPrice returns the invariant per share, scaled by 1e18.
func (p *Pool) VirtualPrice() (*big.Int, error) {
	supply := p.lp.TotalSupply()
	if supply.Sign() == 0 {
		return nil, errors.Wrap(chain.ErrReverted, "pool has no liquidity")
	}
	d, _, err := getD(p.balances, p.amp)
	if err != nil {
		return nil, reverted(err, "get_virtual_price")
	}
	vp := new(big.Int).Mul(d.ToBig(), precision.ToBig())
	return vp.Div(vp, supply), nil
}

type poolState struct {
	Balances   [NCoins]string `json:"balances"`
	LastPrice  string         `json:"last_price"`
	MaPrice    string         `json:"ma_price"`
	MaLastTime int64          `json:"ma_last_time"`
}

// State implements chain.Contract.
func (p *Pool) State() (json.RawMessage, error) {
	return json.Marshal(poolState{
		Balances:   [NCoins]string{p.balances[0].Dec(), p.balances[1].Dec()},
		LastPrice:  p.lastPrice.Dec(),
		MaPrice:    p.maPrice.Dec(),
		MaLastTime: p.maLastTime,
	})
}

// SetState implements chain.Contract.
func (p *Pool) SetState(raw json.RawMessage) error {
	var s poolState
	if err := json.Unmarshal(raw, &s); err != nil {
		return errors.Wrap(err, "decode pool state")
	}

	parse := func(v string) (*uint256.Int, error) {
		u := new(uint256.Int)
		if err := u.SetFromDecimal(v); err != nil {
			return nil, errors.Wrapf(err, "parse %q", v)
		}
		return u, nil
	}

	var balances [NCoins]*uint256.Int
	for i, v := range s.Balances {
		u, err := parse(v)
		if err != nil {
			return err
		}
		balances[i] = u
	}
	last, err := parse(s.LastPrice)
	if err != nil {
		return err
	}
	ma, err := parse(s.MaPrice)
	if err != nil {
		return err
	}

	p.balances = balances
	p.lastPrice = last
	p.maPrice = ma
	p.maLastTime = s.MaLastTime
	return nil
}
