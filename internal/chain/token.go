package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// MaxUint256 is the conventional unlimited allowance.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Token is a simulated ERC20 token.
type Token struct {
	env         *Env
	address     common.Address
	name        string
	symbol      string
	decimals    uint8
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
}

func newToken(env *Env, addr common.Address, name, symbol string, decimals uint8) *Token {
	return &Token{
		env:         env,
		address:     addr,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Name() string { return t.name }
func (t *Token) Symbol() string { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

// TotalSupply returns the minted supply.
func (t *Token) TotalSupply() *big.Int {
	return new(big.Int).Set(t.totalSupply)
}

// BalanceOf returns the token balance of owner.
func (t *Token) BalanceOf(owner common.Address) *big.Int {
	if b, ok := t.balances[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Allowance returns how much spender may move on behalf of owner.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Mint creates amount tokens for to.
func (t *Token) Mint(to common.Address, amount *big.Int) {
	t.env.UseGas(GasSload + 2*GasSstore + GasLog)
	t.balances[to] = new(big.Int).Add(t.BalanceOf(to), amount)
	t.totalSupply = new(big.Int).Add(t.totalSupply, amount)
}

// Approve sets the allowance of spender over owner's tokens.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) {
	t.env.UseGas(GasSstore + GasLog)
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)
}

// CanTransferFrom reports whether TransferFrom would succeed.
func (t *Token) CanTransferFrom(spender, from common.Address, amount *big.Int) error {
	if balance := t.BalanceOf(from); balance.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "%s: have %s need %s", t.symbol, balance, amount)
	}
	if allowance := t.Allowance(from, spender); allowance.Cmp(amount) < 0 {
		return errors.Wrapf(ErrReverted, "%s: allowance %s below %s", t.symbol, allowance, amount)
	}
	return nil
}

// Transfer moves tokens from the caller.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	balance := t.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "%s: have %s need %s", t.symbol, balance, amount)
	}
	t.env.UseGas(2*GasSload + 2*GasSstore + GasLog)
	t.balances[from] = balance.Sub(balance, amount)
	t.balances[to] = new(big.Int).Add(t.BalanceOf(to), amount)
	return nil
}

// TransferFrom moves tokens on behalf of from and spends the allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := t.CanTransferFrom(spender, from, amount); err != nil {
		return err
	}
	t.env.UseGas(GasSload + GasSstore)
	t.allowances[from][spender] = new(big.Int).Sub(t.Allowance(from, spender), amount)
	return t.Transfer(from, to, amount)
}

type tokenState struct {
	TotalSupply string                       `json:"total_supply"`
	Balances    map[string]string            `json:"balances"`
	Allowances  map[string]map[string]string `json:"allowances"`
}

func (t *Token) state() tokenState {
	s := tokenState{
		TotalSupply: t.totalSupply.String(),
		Balances:    make(map[string]string, len(t.balances)),
		Allowances:  make(map[string]map[string]string, len(t.allowances)),
	}
	for addr, b := range t.balances {
		s.Balances[addr.Hex()] = b.String()
	}
	for owner, spenders := range t.allowances {
		m := make(map[string]string, len(spenders))
		for spender, a := range spenders {
			m[spender.Hex()] = a.String()
		}
		s.Allowances[owner.Hex()] = m
	}
	return s
}

func (t *Token) setState(s tokenState) error {
	supply, ok := new(big.Int).SetString(s.TotalSupply, 10)
	if !ok {
		return errors.Errorf("invalid total supply %q", s.TotalSupply)
	}

	balances := make(map[common.Address]*big.Int, len(s.Balances))
	for hex, raw := range s.Balances {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return errors.Errorf("invalid balance %q for %s", raw, hex)
		}
		balances[common.HexToAddress(hex)] = v
	}

	allowances := make(map[common.Address]map[common.Address]*big.Int, len(s.Allowances))
	for ownerHex, spenders := range s.Allowances {
		m := make(map[common.Address]*big.Int, len(spenders))
		for spenderHex, raw := range spenders {
			v, ok := new(big.Int).SetString(raw, 10)
			if !ok {
				return errors.Errorf("invalid allowance %q for %s", raw, spenderHex)
			}
			m[common.HexToAddress(spenderHex)] = v
		}
		allowances[common.HexToAddress(ownerHex)] = m
	}

	t.totalSupply = supply
	t.balances = balances
	t.allowances = allowances
	return nil
}
