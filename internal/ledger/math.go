package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

const (
	// FeeDenominator is the basis-point denominator for swap fees.
	FeeDenominator = 10_000
	// DefaultFeeBps is the swap fee (0.3%).
	DefaultFeeBps = 30
)

// RateScale is the fixed-point scale of a stream's rate per second.
var RateScale = uint256.NewInt(1_000_000_000_000_000_000)

// RateFor returns the largest rate per second (scaled by RateScale) that
// releases at most deposit over duration seconds.
func RateFor(deposit *uint256.Int, duration uint64) (*uint256.Int, error) {
	if duration == 0 {
		return nil, validationf("duration must be positive")
	}
	return mulDiv(deposit, RateScale, uint256.NewInt(duration))
}

// QuoteSwap prices a constant-product swap of amountIn against the given
// reserves. The output is priced on floor(amountIn*(10000-feeBps)/10000) and
// the fee is floor(amountIn*feeBps/10000); the rounding remainder between the
// two belongs to the pool. Results are rounded down, in favor of the pool.
func QuoteSwap(reserveIn, reserveOut, amountIn *uint256.Int, feeBps uint64) (amountOut, fee *uint256.Int, err error) {
	if isZero(amountIn) {
		return nil, nil, validationf("amount in must be positive")
	}
	if feeBps >= FeeDenominator {
		return nil, nil, validationf("fee %d bps out of range", feeBps)
	}
	if isZero(reserveIn) || isZero(reserveOut) {
		return nil, nil, ErrNoLiquidity
	}

	afterFee, err := mulDiv(amountIn, uint256.NewInt(FeeDenominator-feeBps), uint256.NewInt(FeeDenominator))
	if err != nil {
		return nil, nil, err
	}
	fee, err = mulDiv(amountIn, uint256.NewInt(feeBps), uint256.NewInt(FeeDenominator))
	if err != nil {
		return nil, nil, err
	}

	denom, err := add(reserveIn, afterFee)
	if err != nil {
		return nil, nil, err
	}
	amountOut, err = mulDiv(reserveOut, afterFee, denom)
	if err != nil {
		return nil, nil, err
	}
	return amountOut, fee, nil
}

// initialShares is floor(sqrt(amountA*amountB)), at least 1.
func initialShares(amountA, amountB *uint256.Int) (*uint256.Int, error) {
	product, err := mul(amountA, amountB)
	if err != nil {
		return nil, err
	}
	shares := new(uint256.Int).Sqrt(product)
	if shares.IsZero() {
		shares.SetOne()
	}
	return shares, nil
}

func add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// mulDiv returns floor(x*y/d). d must be non-zero.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	p, err := mul(x, y)
	if err != nil {
		return nil, err
	}
	return p.Div(p, d), nil
}

// mulDivUp returns ceil(x*y/d). d must be non-zero.
func mulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	p, err := mul(x, y)
	if err != nil {
		return nil, err
	}
	q := new(uint256.Int).Div(p, d)
	if !new(uint256.Int).Mod(p, d).IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

func minOf(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return x.Clone()
	}
	return y.Clone()
}

// subFloor returns x-y, or zero when y > x.
func subFloor(x, y *uint256.Int) *uint256.Int {
	if y.Gt(x) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(x, y)
}

func isZero(x *uint256.Int) bool {
	return x == nil || x.IsZero()
}

func clone(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x.Clone()
}

// ParseAmount parses a base-10 token amount.
func ParseAmount(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(uint256.Int), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	amount, overflow := uint256.FromBig(parsed)
	if overflow {
		return nil, fmt.Errorf("amount exceeds 256 bits: %s", value)
	}
	return amount, nil
}

// FormatAmount renders an amount in base 10.
func FormatAmount(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.ToBig().String()
}
