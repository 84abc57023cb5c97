// Package chain is an in-memory ledger environment: native balances, ERC20 tokens,
// simulated contracts, a gas meter and the chain clock, all of which can be
// captured and restored as one serialized snapshot.
package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/domain"
	"go.uber.org/zap"
)

// NativeCoin is the placeholder address pools use for the native coin.
var NativeCoin = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

var (
	// ErrReverted is the cause of every failed contract call.
	ErrReverted = errors.New("execution reverted")
	// ErrInsufficientBalance is returned when an account cannot cover a transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Contract is simulated contract storage that takes part in snapshots.
type Contract interface {
	State() (json.RawMessage, error)
	SetState(state json.RawMessage) error
}

// Env is the simulated chain. It is not safe for concurrent use: one driver owns it at a time.
type Env struct {
	clock     *domain.Clock
	native    map[common.Address]*big.Int
	tokens    map[common.Address]*Token
	contracts map[common.Address]Contract
	nonces    map[common.Address]uint64
	meter     uint64
	gasUsed   uint64
	logger    *zap.Logger
}

// NewEnv creates an empty chain running on clock.
func NewEnv(clock *domain.Clock, logger *zap.Logger) *Env {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = domain.NewClock(0, 0)
	}
	return &Env{
		clock:     clock,
		native:    make(map[common.Address]*big.Int),
		tokens:    make(map[common.Address]*Token),
		contracts: make(map[common.Address]Contract),
		nonces:    make(map[common.Address]uint64),
		logger:    logger,
	}
}

// Clock returns the chain clock. Only the time advancer mutates it.
func (e *Env) Clock() *domain.Clock {
	return e.clock
}

// GenerateAddress derives a stable account address from a human alias.
func GenerateAddress(alias string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(alias))[12:])
}

// nextAddress returns the address a contract deployed by deployer gets.
func (e *Env) nextAddress(deployer common.Address) common.Address {
	nonce := e.nonces[deployer]
	e.nonces[deployer] = nonce + 1
	return crypto.CreateAddress(deployer, nonce)
}

// SetBalance overwrites the native balance of addr.
func (e *Env) SetBalance(addr common.Address, amount *big.Int) {
	e.native[addr] = new(big.Int).Set(amount)
}

// Balance returns the native balance of addr.
func (e *Env) Balance(addr common.Address) *big.Int {
	if b, ok := e.native[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// TransferNative moves native coin between accounts.
func (e *Env) TransferNative(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.Wrapf(ErrReverted, "negative transfer %s", amount)
	}
	balance := e.Balance(from)
	if balance.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "native: have %s need %s", balance, amount)
	}
	e.UseGas(GasTransfer)
	e.native[from] = balance.Sub(balance, amount)
	e.native[to] = new(big.Int).Add(e.Balance(to), amount)
	return nil
}

// DeployToken creates an ERC20 token owned by deployer.
func (e *Env) DeployToken(deployer common.Address, name, symbol string, decimals uint8) *Token {
	token := newToken(e, e.nextAddress(deployer), name, symbol, decimals)
	e.tokens[token.address] = token
	e.logger.Debug("token deployed", zap.String("symbol", symbol), zap.String("address", token.address.Hex()))
	return token
}

// Token returns a deployed token.
func (e *Env) Token(addr common.Address) (*Token, bool) {
	t, ok := e.tokens[addr]
	return t, ok
}

// Deploy registers contract storage and returns its address.
func (e *Env) Deploy(deployer common.Address, contract Contract) common.Address {
	addr := e.nextAddress(deployer)
	e.contracts[addr] = contract
	return addr
}

// BeginTx resets the gas meter for a new state-changing call.
func (e *Env) BeginTx() {
	e.meter = GasTx
}

// UseGas charges gas to the current call.
func (e *Env) UseGas(amount uint64) {
	e.meter += amount
}

// EndTx closes the current call and records its gas.
func (e *Env) EndTx() uint64 {
	e.gasUsed = e.meter
	e.meter = 0
	return e.gasUsed
}

// LastGasUsed returns the gas of the last finished call.
func (e *Env) LastGasUsed() uint64 {
	return e.gasUsed
}

type envState struct {
	Clock     domain.Clock               `json:"clock"`
	GasUsed   uint64                     `json:"gas_used"`
	Nonces    map[string]uint64          `json:"nonces"`
	Native    map[string]string          `json:"native"`
	Tokens    map[string]tokenState      `json:"tokens"`
	Contracts map[string]json.RawMessage `json:"contracts"`
}

// Snapshot serializes the whole chain state. Map keys are sorted by the
// encoder, so equal states produce equal bytes.
func (e *Env) Snapshot(ctx context.Context) ([]byte, error) {
	state := envState{
		Clock:     *e.clock,
		GasUsed:   e.gasUsed,
		Nonces:    make(map[string]uint64, len(e.nonces)),
		Native:    make(map[string]string, len(e.native)),
		Tokens:    make(map[string]tokenState, len(e.tokens)),
		Contracts: make(map[string]json.RawMessage, len(e.contracts)),
	}
	for addr, n := range e.nonces {
		state.Nonces[addr.Hex()] = n
	}
	for addr, b := range e.native {
		state.Native[addr.Hex()] = b.String()
	}
	for addr, t := range e.tokens {
		state.Tokens[addr.Hex()] = t.state()
	}
	for addr, c := range e.contracts {
		raw, err := c.State()
		if err != nil {
			return nil, errors.Wrapf(err, "snapshot contract %s", addr.Hex())
		}
		state.Contracts[addr.Hex()] = raw
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return nil, errors.Wrap(err, "encode chain state")
	}
	return payload, nil
}

// Restore reapplies a state produced by Snapshot. Tokens and contracts keep
// their identity; ones deployed after the snapshot are removed.
func (e *Env) Restore(ctx context.Context, payload []byte) error {
	var state envState
	if err := json.Unmarshal(payload, &state); err != nil {
		return errors.Wrap(err, "decode chain state")
	}

	native := make(map[common.Address]*big.Int, len(state.Native))
	for hex, raw := range state.Native {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return errors.Errorf("invalid native balance %q for %s", raw, hex)
		}
		native[common.HexToAddress(hex)] = v
	}

	for _, addr := range sortedAddresses(e.tokens) {
		ts, ok := state.Tokens[addr.Hex()]
		if !ok {
			delete(e.tokens, addr)
			continue
		}
		if err := e.tokens[addr].setState(ts); err != nil {
			return errors.Wrapf(err, "restore token %s", addr.Hex())
		}
	}
	for hex := range state.Tokens {
		if _, ok := e.tokens[common.HexToAddress(hex)]; !ok {
			return errors.Errorf("token %s from snapshot is not deployed", hex)
		}
	}

	for _, addr := range sortedAddresses(e.contracts) {
		raw, ok := state.Contracts[addr.Hex()]
		if !ok {
			delete(e.contracts, addr)
			continue
		}
		if err := e.contracts[addr].SetState(raw); err != nil {
			return errors.Wrapf(err, "restore contract %s", addr.Hex())
		}
	}
	for hex := range state.Contracts {
		if _, ok := e.contracts[common.HexToAddress(hex)]; !ok {
			return errors.Errorf("contract %s from snapshot is not deployed", hex)
		}
	}

	nonces := make(map[common.Address]uint64, len(state.Nonces))
	for hex, n := range state.Nonces {
		nonces[common.HexToAddress(hex)] = n
	}

	*e.clock = state.Clock
	e.gasUsed = state.GasUsed
	e.meter = 0
	e.native = native
	e.nonces = nonces

	return nil
}

func sortedAddresses[T any](m map[common.Address]T) []common.Address {
	out := make([]common.Address, 0, len(m))
	for addr := range m {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}
