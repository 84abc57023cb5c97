// Package stableswap simulates a two-coin StableSwap pool holding the native
// coin and one ERC20 token.
package stableswap

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	NCoins         = 2
	APrecision     = 100
	FeeDenominator = 10_000_000_000
	maxIterations  = 255
)

var (
	precision  = uint256.NewInt(1_000_000_000_000_000_000)
	maxPrice   = new(uint256.Int).Mul(uint256.NewInt(2), precision)
	nCoins     = uint256.NewInt(NCoins)
	aPrecision = uint256.NewInt(APrecision)
	feeDenom   = uint256.NewInt(FeeDenominator)
)

var (
	errOverflow      = errors.New("arithmetic overflow")
	errUnderflow     = errors.New("arithmetic underflow")
	errDivByZero     = errors.New("division by zero")
	errNoConvergence = errors.New("invariant did not converge")
)

// calc performs checked 256-bit arithmetic and keeps the first failure.
type calc struct {
	err error
}

func (c *calc) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *calc) add(a, b *uint256.Int) *uint256.Int {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		c.fail(errOverflow)
	}
	return z
}

func (c *calc) sub(a, b *uint256.Int) *uint256.Int {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		c.fail(errUnderflow)
	}
	return z
}

func (c *calc) mul(a, b *uint256.Int) *uint256.Int {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		c.fail(errOverflow)
	}
	return z
}

func (c *calc) div(a, b *uint256.Int) *uint256.Int {
	if b.IsZero() {
		c.fail(errDivByZero)
		return new(uint256.Int)
	}
	return new(uint256.Int).Div(a, b)
}

func within1(a, b *uint256.Int) bool {
	if a.Gt(b) {
		return new(uint256.Int).Sub(a, b).LtUint64(2)
	}
	return new(uint256.Int).Sub(b, a).LtUint64(2)
}

// getD solves the StableSwap invariant for D with Newton's method.
// amp is A multiplied by APrecision. It also returns the iteration count.
func getD(xp [NCoins]*uint256.Int, amp *uint256.Int) (*uint256.Int, int, error) {
	c := &calc{}
	s := c.add(xp[0], xp[1])
	if s.IsZero() {
		return new(uint256.Int), 0, nil
	}

	d := s.Clone()
	ann := c.mul(amp, nCoins)
	for i := 1; i <= maxIterations; i++ {
		dp := d.Clone()
		for _, x := range xp {
			dp = c.div(c.mul(dp, d), c.mul(x, nCoins))
		}
		prev := d
		num := c.mul(c.add(c.div(c.mul(ann, s), aPrecision), c.mul(dp, nCoins)), d)
		den := c.add(
			c.div(c.mul(c.sub(ann, aPrecision), d), aPrecision),
			c.mul(uint256.NewInt(NCoins+1), dp),
		)
		d = c.div(num, den)
		if c.err != nil {
			return nil, i, c.err
		}
		if within1(d, prev) {
			return d, i, nil
		}
	}

	return nil, maxIterations, errNoConvergence
}

// getY returns the new balance of coin j after coin i is set to x, keeping D constant.
func getY(i, j int, x *uint256.Int, xp [NCoins]*uint256.Int, amp *uint256.Int) (*uint256.Int, int, error) {
	if i == j || i < 0 || j < 0 || i >= NCoins || j >= NCoins {
		return nil, 0, errors.Errorf("invalid coin pair %d -> %d", i, j)
	}

	d, iterations, err := getD(xp, amp)
	if err != nil {
		return nil, iterations, err
	}

	c := &calc{}
	ann := c.mul(amp, nCoins)
	cc := d.Clone()
	s := new(uint256.Int)
	for k := 0; k < NCoins; k++ {
		var xk *uint256.Int
		switch k {
		case i:
			xk = x
		case j:
			continue
		default:
			xk = xp[k]
		}
		s = c.add(s, xk)
		cc = c.div(c.mul(cc, d), c.mul(xk, nCoins))
	}
	cc = c.div(c.mul(c.mul(cc, d), aPrecision), c.mul(ann, nCoins))
	b := c.add(s, c.div(c.mul(d, aPrecision), ann))

	y := d.Clone()
	for n := 1; n <= maxIterations; n++ {
		prev := y
		y = c.div(c.add(c.mul(y, y), cc), c.sub(c.add(c.mul(uint256.NewInt(2), y), b), d))
		if c.err != nil {
			return nil, iterations + n, c.err
		}
		if within1(y, prev) {
			return y, iterations + n, nil
		}
	}

	return nil, iterations + maxIterations, errNoConvergence
}

// getP returns the marginal price of coin 1 in units of coin 0, scaled by 1e18.
func getP(xp [NCoins]*uint256.Int, amp, d *uint256.Int) (*uint256.Int, error) {
	c := &calc{}
	dr := c.div(d, uint256.NewInt(NCoins*NCoins))
	for _, x := range xp {
		dr = c.div(c.mul(dr, d), x)
	}
	xp0A := c.div(c.mul(c.mul(amp, nCoins), xp[0]), aPrecision)
	num := c.add(xp0A, c.div(c.mul(dr, xp[0]), xp[1]))
	p := c.div(c.mul(precision, num), c.add(xp0A, dr))
	if c.err != nil {
		return nil, c.err
	}
	return p, nil
}

// emaWeight returns exp(-elapsed/expTime) scaled by 1e18.
func emaWeight(elapsed, expTime uint64) *uint256.Int {
	if expTime == 0 {
		return new(uint256.Int)
	}
	x := decimal.NewFromInt(int64(elapsed)).DivRound(decimal.NewFromInt(int64(expTime)), 18)
	if x.GreaterThan(decimal.NewFromInt(41)) {
		return new(uint256.Int)
	}
	e, err := x.Neg().ExpTaylor(18)
	if err != nil {
		return new(uint256.Int)
	}
	w, overflow := uint256.FromBig(e.Shift(18).Floor().BigInt())
	if overflow {
		return new(uint256.Int).Set(precision)
	}
	return w
}
