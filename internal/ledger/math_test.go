package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateFor(t *testing.T) {
	rate, err := RateFor(u(1000), 1000)
	require.NoError(t, err)
	assert.Equal(t, RateScale, rate)

	rate, err = RateFor(u(1000), 86400)
	require.NoError(t, err)
	assert.Equal(t, "11574074074074074", FormatAmount(rate))

	_, err = RateFor(u(1000), 0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestQuoteSwap(t *testing.T) {
	cases := []struct {
		name                  string
		reserveIn, reserveOut uint64
		amountIn, feeBps      uint64
		wantOut, wantFee      uint64
	}{
		{"dust", 1000, 1000, 1, 30, 0, 0},
		{"hundred", 1000, 1000, 100, 30, 90, 0},
		{"fee rounds down", 1000, 1000, 999, 30, 498, 2},
		{"fee rounds down past a whole unit", 1000, 1000, 1004, 30, 500, 3},
		{"no fee", 1000, 1000, 1000, 0, 500, 0},
		{"deep pool", 1_000_000, 2_000_000, 10_000, 30, 19_743, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, fee, err := QuoteSwap(u(tc.reserveIn), u(tc.reserveOut), u(tc.amountIn), tc.feeBps)
			require.NoError(t, err)
			assert.Equal(t, u(tc.wantOut), out)
			assert.Equal(t, u(tc.wantFee), fee)
		})
	}

	_, _, err := QuoteSwap(u(0), u(10), u(1), 30)
	require.ErrorIs(t, err, ErrNoLiquidity)
	_, _, err = QuoteSwap(u(10), u(10), u(0), 30)
	require.ErrorIs(t, err, ErrValidation)
	_, _, err = QuoteSwap(u(10), u(10), u(1), FeeDenominator)
	require.ErrorIs(t, err, ErrValidation)
}

func TestInitialShares(t *testing.T) {
	shares, err := initialShares(u(1000), u(1000))
	require.NoError(t, err)
	assert.Equal(t, u(1000), shares)

	shares, err = initialShares(u(1), u(3))
	require.NoError(t, err)
	assert.Equal(t, u(1), shares)

	huge := new(uint256.Int).SetAllOne()
	_, err = initialShares(huge, u(2))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestMulDivRounding(t *testing.T) {
	down, err := mulDiv(u(10), u(10), u(3))
	require.NoError(t, err)
	assert.Equal(t, u(33), down)

	up, err := mulDivUp(u(10), u(10), u(3))
	require.NoError(t, err)
	assert.Equal(t, u(34), up)

	exact, err := mulDivUp(u(10), u(9), u(3))
	require.NoError(t, err)
	assert.Equal(t, u(30), exact)
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" 115792089237316195423570985008687907853269984665640564039457584007913129639935 ")
	require.NoError(t, err)
	assert.Equal(t, new(uint256.Int).SetAllOne(), v)

	v, err = ParseAmount("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = ParseAmount("-1")
	require.Error(t, err)
	_, err = ParseAmount("1e18")
	require.Error(t, err)
	_, err = ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639936")
	require.Error(t, err)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "", Kind(errors.New("boom")))
	assert.Equal(t, "state", Kind(ErrReentrant))
	assert.Equal(t, "validation", Kind(ErrOverflow))
	assert.Equal(t, "authorization", Kind(fmt.Errorf("wrapped: %w", ErrNotAdmin)))
	assert.Equal(t, "not_found", Kind(ErrNotFound))
	assert.Equal(t, "transfer", Kind(fmt.Errorf("%w: pay: %w", ErrTransfer, ErrReentrant)))
}
