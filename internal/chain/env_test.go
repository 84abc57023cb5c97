package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

func TestGenerateAddressIsStable(t *testing.T) {
	a := GenerateAddress("swapper")
	b := GenerateAddress("swapper")
	c := GenerateAddress("liquidity_provider")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestTransferNative(t *testing.T) {
	env := NewEnv(nil, nil)
	alice, bob := GenerateAddress("alice"), GenerateAddress("bob")
	env.SetBalance(alice, big.NewInt(100))

	require.NoError(t, env.TransferNative(alice, bob, big.NewInt(40)))
	assert.Equal(t, "60", env.Balance(alice).String())
	assert.Equal(t, "40", env.Balance(bob).String())

	err := env.TransferNative(bob, alice, big.NewInt(41))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, "40", env.Balance(bob).String())
}

func TestTokenTransferFrom(t *testing.T) {
	env := NewEnv(nil, nil)
	owner, spender := GenerateAddress("owner"), GenerateAddress("spender")
	token := env.DeployToken(owner, "Frax Ether", "frxETH", 18)
	token.Mint(owner, big.NewInt(1000))

	err := token.TransferFrom(spender, owner, spender, big.NewInt(10))
	assert.True(t, errors.Is(err, ErrReverted), "no allowance yet")

	token.Approve(owner, spender, big.NewInt(500))
	require.NoError(t, token.TransferFrom(spender, owner, spender, big.NewInt(200)))

	assert.Equal(t, "800", token.BalanceOf(owner).String())
	assert.Equal(t, "200", token.BalanceOf(spender).String())
	assert.Equal(t, "300", token.Allowance(owner, spender).String())
	assert.Equal(t, "1000", token.TotalSupply().String())
}

func TestGasMeter(t *testing.T) {
	env := NewEnv(nil, nil)
	alice := GenerateAddress("alice")
	env.SetBalance(alice, big.NewInt(10))

	env.BeginTx()
	require.NoError(t, env.TransferNative(alice, GenerateAddress("bob"), big.NewInt(1)))
	used := env.EndTx()

	assert.Equal(t, GasTx+GasTransfer, used)
	assert.Equal(t, used, env.LastGasUsed())
}

type fakeContract struct {
	value string
}

func (c *fakeContract) State() (json.RawMessage, error) {
	return json.Marshal(c.value)
}

func (c *fakeContract) SetState(raw json.RawMessage) error {
	return json.Unmarshal(raw, &c.value)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := NewEnv(domain.NewClock(1000, 50), nil)
	deployer, user := GenerateAddress("deployer"), GenerateAddress("user")
	env.SetBalance(user, big.NewInt(5))
	token := env.DeployToken(deployer, "Token", "TKN", 18)
	token.Mint(user, big.NewInt(7))
	contract := &fakeContract{value: "before"}
	env.Deploy(deployer, contract)

	state, err := env.Snapshot(ctx)
	require.NoError(t, err)

	env.SetBalance(user, big.NewInt(99))
	token.Mint(user, big.NewInt(1))
	contract.value = "after"
	env.Clock().Timestamp += 120
	env.Clock().BlockNumber += 10
	extra := env.DeployToken(deployer, "Extra", "EXT", 6)

	require.NoError(t, env.Restore(ctx, state))

	assert.Equal(t, "5", env.Balance(user).String())
	assert.Equal(t, "7", token.BalanceOf(user).String())
	assert.Equal(t, "before", contract.value)
	assert.Equal(t, int64(1000), env.Clock().Timestamp)
	assert.Equal(t, int64(50), env.Clock().BlockNumber)
	_, ok := env.Token(extra.Address())
	assert.False(t, ok)

	again, err := env.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, again)
}

func TestRestoreRejectsGarbage(t *testing.T) {
	env := NewEnv(nil, nil)
	assert.Error(t, env.Restore(context.Background(), []byte("not json")))
}
