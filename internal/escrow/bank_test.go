package escrow

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenX = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	vault  = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestMintAndTransfer(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Mint(tokenX, alice, u(100)))

	require.NoError(t, b.Transfer(tokenX, alice, bob, u(40)))
	assert.Equal(t, u(60), b.BalanceOf(tokenX, alice))
	assert.Equal(t, u(40), b.BalanceOf(tokenX, bob))
	assert.Equal(t, u(100), b.TotalSupply(tokenX))

	err := b.Transfer(tokenX, bob, alice, u(41))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, u(40), b.BalanceOf(tokenX, bob))
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Mint(tokenX, alice, u(100)))

	err := b.TransferFrom(tokenX, vault, alice, vault, u(10))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	b.Approve(tokenX, alice, vault, u(30))
	require.NoError(t, b.TransferFrom(tokenX, vault, alice, vault, u(25)))
	assert.Equal(t, u(5), b.Allowance(tokenX, alice, vault))
	assert.Equal(t, u(25), b.BalanceOf(tokenX, vault))
}

func TestTransferFromRestoresAllowanceOnFailure(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Mint(tokenX, alice, u(10)))
	b.Approve(tokenX, alice, vault, u(50))

	err := b.TransferFrom(tokenX, vault, alice, vault, u(20))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, u(50), b.Allowance(tokenX, alice, vault))
}

func TestFrozenAccount(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Mint(tokenX, alice, u(10)))
	b.Freeze(tokenX, bob)

	require.ErrorIs(t, b.Transfer(tokenX, alice, bob, u(1)), ErrFrozen)

	b.Unfreeze(tokenX, bob)
	require.NoError(t, b.Transfer(tokenX, alice, bob, u(1)))
}

func TestSnapshotRevert(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Mint(tokenX, alice, u(100)))

	snap := b.Snapshot()
	require.NoError(t, b.Transfer(tokenX, alice, bob, u(30)))
	require.NoError(t, b.Mint(tokenX, bob, u(5)))
	b.Approve(tokenX, bob, vault, u(7))

	b.RevertToSnapshot(snap)
	assert.Equal(t, u(100), b.BalanceOf(tokenX, alice))
	assert.True(t, b.BalanceOf(tokenX, bob).IsZero())
	assert.Equal(t, u(100), b.TotalSupply(tokenX))
	assert.True(t, b.Allowance(tokenX, bob, vault).IsZero())

	assert.Panics(t, func() { b.RevertToSnapshot(snap) })
}

func TestHookErrorRevertsTransfer(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.Mint(tokenX, alice, u(10)))

	hookErr := errors.New("rejected by receiver")
	var calls int
	b.SetHook(tokenX, func(token, from, to common.Address, amount *uint256.Int) error {
		calls++
		return hookErr
	})

	err := b.Transfer(tokenX, alice, bob, u(4))
	require.ErrorIs(t, err, hookErr)
	assert.Equal(t, 1, calls)
	assert.Equal(t, u(10), b.BalanceOf(tokenX, alice))
	assert.True(t, b.BalanceOf(tokenX, bob).IsZero())

	b.SetHook(tokenX, nil)
	require.NoError(t, b.Transfer(tokenX, alice, bob, u(4)))
	assert.Equal(t, 1, calls)
}

func TestZeroTransferIsNoop(t *testing.T) {
	b := NewBank()
	b.Freeze(tokenX, alice)
	require.NoError(t, b.Transfer(tokenX, alice, bob, u(0)))
	require.NoError(t, b.TransferFrom(tokenX, vault, alice, bob, nil))
}
