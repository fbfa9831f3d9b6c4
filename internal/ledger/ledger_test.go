package ledger

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflow/internal/escrow"
)

const startTime = 1_700_000_000

var (
	admin   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	feeTo   = common.HexToAddress("0xfeefeefeefeefeefeefeefeefeefeefeefeefee0")
	custody = common.HexToAddress("0xc0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0")
	alice   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	tokenA  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type manualClock struct {
	now int64
}

func (c *manualClock) Now() time.Time { return time.Unix(c.now, 0) }

func (c *manualClock) advance(seconds int64) { c.now += seconds }

type fixture struct {
	l     *Ledger
	bank  *escrow.Bank
	clock *manualClock
}

// newFixture funds alice and bob with 1,000,000 of each token and approves
// custody to pull all of it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	bank := escrow.NewBank()
	clock := &manualClock{now: startTime}
	l, err := New(Config{Admin: admin, FeeRecipient: feeTo, Custody: custody}, bank, nil, WithClock(clock.Now))
	require.NoError(t, err)

	for _, owner := range []common.Address{alice, bob} {
		for _, token := range []common.Address{tokenA, tokenB} {
			require.NoError(t, bank.Mint(token, owner, u(1_000_000)))
			bank.Approve(token, owner, custody, u(1_000_000))
		}
	}
	return &fixture{l: l, bank: bank, clock: clock}
}

func (f *fixture) custodyOf(token common.Address) *uint256.Int {
	return f.bank.BalanceOf(token, custody)
}

// held is everything the ledger owes for token: stream escrow, pool reserves
// and uncollected fees.
func (f *fixture) held(token common.Address) *uint256.Int {
	total := new(uint256.Int)
	for _, s := range f.l.streams {
		if s.Token == token && s.Status == StreamStatusActive {
			total.Add(total, new(uint256.Int).Sub(s.Deposit, s.Withdrawn))
		}
	}
	for _, p := range f.l.pools {
		if p.TokenA == token {
			total.Add(total, p.ReserveA)
			total.Add(total, p.FeesA)
		}
		if p.TokenB == token {
			total.Add(total, p.ReserveB)
			total.Add(total, p.FeesB)
		}
	}
	return total
}

func (f *fixture) requireSolvent(t *testing.T) {
	t.Helper()
	for _, token := range []common.Address{tokenA, tokenB} {
		require.Equal(t, f.held(token), f.custodyOf(token), "custody of %s", token.Hex())
	}
}

func TestNewValidatesConfig(t *testing.T) {
	bank := escrow.NewBank()

	_, err := New(Config{Custody: custody}, bank, nil)
	require.Error(t, err)

	_, err = New(Config{Admin: admin}, bank, nil)
	require.Error(t, err)

	_, err = New(Config{Admin: admin, Custody: custody, FeeBps: FeeDenominator}, bank, nil)
	require.Error(t, err)

	_, err = New(Config{Admin: admin, Custody: custody}, nil, nil)
	require.Error(t, err)

	l, err := New(Config{Admin: admin, Custody: custody}, bank, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultFeeBps), l.FeeBps())
	assert.Equal(t, admin, l.FeeRecipient())
	assert.Equal(t, custody, l.Custody())
}

func TestPauseIsAdminOnly(t *testing.T) {
	f := newFixture(t)

	err := f.l.Pause(alice)
	require.ErrorIs(t, err, ErrAuthorization)
	assert.False(t, f.l.Paused())

	require.NoError(t, f.l.Pause(admin))
	assert.True(t, f.l.Paused())
	require.ErrorIs(t, f.l.Pause(admin), ErrState)

	require.ErrorIs(t, f.l.Unpause(bob), ErrAuthorization)
	require.NoError(t, f.l.Unpause(admin))
	require.ErrorIs(t, f.l.Unpause(admin), ErrState)
	assert.False(t, f.l.Paused())
}

func TestPauseBlocksEntryButNotExit(t *testing.T) {
	f := newFixture(t)
	streamID, err := f.l.CreateStream(alice, CreateStreamParams{
		Recipient: bob, Token: tokenA, Deposit: u(1000), RatePerSecond: mustRate(t, 1000, 1000), Duration: 1000,
	})
	require.NoError(t, err)
	poolID, _, err := f.l.CreatePool(alice, tokenA, tokenB, u(10_000), u(10_000))
	require.NoError(t, err)
	_, err = f.l.Swap(bob, poolID, tokenA, u(1000), nil)
	require.NoError(t, err)

	require.NoError(t, f.l.Pause(admin))
	f.clock.advance(100)

	_, err = f.l.CreateStream(alice, CreateStreamParams{
		Recipient: bob, Token: tokenA, Deposit: u(10), RatePerSecond: mustRate(t, 10, 10), Duration: 10,
	})
	require.ErrorIs(t, err, ErrPaused)
	_, _, err = f.l.CreatePool(bob, tokenA, tokenB, u(1), u(1))
	require.ErrorIs(t, err, ErrPaused)
	_, err = f.l.Swap(bob, poolID, tokenA, u(10), nil)
	require.ErrorIs(t, err, ErrPaused)
	_, err = f.l.AddLiquidity(bob, poolID, u(10), u(10))
	require.ErrorIs(t, err, ErrPaused)
	_, err = f.l.RemoveLiquidity(alice, poolID, u(10))
	require.ErrorIs(t, err, ErrPaused)

	claimed, err := f.l.Claim(bob, streamID)
	require.NoError(t, err)
	assert.Equal(t, u(100), claimed)
	_, _, err = f.l.CancelStream(alice, streamID)
	require.NoError(t, err)

	feesA, _, err := f.l.CollectFees(admin, poolID)
	require.NoError(t, err)
	assert.Equal(t, u(3), feesA)

	info, err := f.l.PoolInfo(poolID)
	require.NoError(t, err)
	assert.True(t, info.Paused)
	assert.Equal(t, PoolStatusActive, info.Status)
	f.requireSolvent(t)
}

func TestSetFeeRecipient(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.l.SetFeeRecipient(alice, carol), ErrAuthorization)
	require.ErrorIs(t, f.l.SetFeeRecipient(admin, common.Address{}), ErrValidation)
	require.NoError(t, f.l.SetFeeRecipient(admin, carol))
	assert.Equal(t, carol, f.l.FeeRecipient())

	notes := f.l.Notifications(0)
	require.Len(t, notes, 1)
	assert.Equal(t, FeeRecipientUpdated{Previous: feeTo, Current: carol}, notes[0].Event)
}

func TestReentrantCallIsRejected(t *testing.T) {
	f := newFixture(t)
	streamID, err := f.l.CreateStream(alice, CreateStreamParams{
		Recipient: bob, Token: tokenA, Deposit: u(1000), RatePerSecond: mustRate(t, 1000, 1000), Duration: 1000,
	})
	require.NoError(t, err)
	f.clock.advance(500)

	var innerErrs []error
	f.bank.SetHook(tokenA, func(token, from, to common.Address, amount *uint256.Int) error {
		_, err := f.l.Claim(bob, streamID)
		innerErrs = append(innerErrs, err)
		_, _, err = f.l.CancelStream(alice, streamID)
		innerErrs = append(innerErrs, err)
		return nil
	})

	claimed, err := f.l.Claim(bob, streamID)
	require.NoError(t, err)
	assert.Equal(t, u(500), claimed)

	require.Len(t, innerErrs, 2)
	for _, err := range innerErrs {
		require.ErrorIs(t, err, ErrReentrant)
	}

	info, err := f.l.StreamInfo(streamID)
	require.NoError(t, err)
	assert.Equal(t, u(500), info.Withdrawn)
	assert.True(t, info.Active)
	assert.Equal(t, u(500), f.bank.BalanceOf(tokenA, custody))
}

func TestHookErrorIsReportedAsTransfer(t *testing.T) {
	f := newFixture(t)
	streamID, err := f.l.CreateStream(alice, CreateStreamParams{
		Recipient: bob, Token: tokenA, Deposit: u(1000), RatePerSecond: mustRate(t, 1000, 1000), Duration: 1000,
	})
	require.NoError(t, err)
	f.clock.advance(500)

	f.bank.SetHook(tokenA, func(token, from, to common.Address, amount *uint256.Int) error {
		_, err := f.l.Claim(bob, streamID)
		return err
	})

	_, err = f.l.Claim(bob, streamID)
	require.ErrorIs(t, err, ErrTransfer)
	require.ErrorIs(t, err, ErrReentrant)
	assert.Equal(t, "transfer", Kind(err))

	info, err := f.l.StreamInfo(streamID)
	require.NoError(t, err)
	assert.True(t, info.Withdrawn.IsZero())
	assert.Equal(t, u(1000), f.bank.BalanceOf(tokenA, custody))
}

func TestFailedPayoutRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	streamID, err := f.l.CreateStream(alice, CreateStreamParams{
		Recipient: bob, Token: tokenA, Deposit: u(1000), RatePerSecond: mustRate(t, 1000, 1000), Duration: 1000,
	})
	require.NoError(t, err)
	f.clock.advance(400)

	f.bank.Freeze(tokenA, alice)
	before := f.l.Notifications(0)

	_, _, err = f.l.CancelStream(alice, streamID)
	require.ErrorIs(t, err, ErrTransfer)
	require.ErrorIs(t, err, escrow.ErrFrozen)

	info, err := f.l.StreamInfo(streamID)
	require.NoError(t, err)
	assert.Equal(t, StreamStatusActive, info.Status)
	assert.True(t, info.Withdrawn.IsZero())
	assert.Equal(t, u(1000), f.custodyOf(tokenA))
	assert.True(t, f.bank.BalanceOf(tokenA, bob).Eq(u(1_000_000)))
	assert.Equal(t, before, f.l.Notifications(0))

	f.bank.Unfreeze(tokenA, alice)
	got, refund, err := f.l.CancelStream(alice, streamID)
	require.NoError(t, err)
	assert.Equal(t, u(400), got)
	assert.Equal(t, u(600), refund)
	f.requireSolvent(t)
}

func TestNotificationsAreSequenced(t *testing.T) {
	f := newFixture(t)
	streamID, err := f.l.CreateStream(alice, CreateStreamParams{
		Recipient: bob, Token: tokenA, Deposit: u(100), RatePerSecond: mustRate(t, 100, 100), Duration: 100,
	})
	require.NoError(t, err)

	_, err = f.l.Claim(bob, streamID)
	require.ErrorIs(t, err, ErrNothingToClaim)

	f.clock.advance(10)
	_, err = f.l.Claim(bob, streamID)
	require.NoError(t, err)

	notes := f.l.Notifications(0)
	require.Len(t, notes, 2)
	assert.Equal(t, uint64(1), notes[0].Seq)
	assert.Equal(t, uint64(startTime), notes[0].Timestamp)
	assert.Equal(t, "StreamCreated", notes[0].Event.EventName())
	assert.Equal(t, uint64(2), notes[1].Seq)
	assert.Equal(t, uint64(startTime+10), notes[1].Timestamp)

	claimed, ok := notes[1].Event.(StreamClaimed)
	require.True(t, ok)
	assert.Equal(t, u(10), claimed.Amount)
	assert.Equal(t, u(10), claimed.Withdrawn)

	tail := f.l.Notifications(1)
	require.Len(t, tail, 1)
	assert.Equal(t, uint64(2), tail[0].Seq)
	assert.Empty(t, f.l.Notifications(2))
}

func mustRate(t *testing.T, deposit, duration uint64) *uint256.Int {
	t.Helper()
	rate, err := RateFor(u(deposit), duration)
	require.NoError(t, err)
	return rate
}
