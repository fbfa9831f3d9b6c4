package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolStatus is the administrative state of a single pool.
type PoolStatus uint8

const (
	PoolStatusActive PoolStatus = iota
	PoolStatusPaused
)

func (s PoolStatus) String() string {
	switch s {
	case PoolStatusActive:
		return "active"
	case PoolStatusPaused:
		return "paused"
	default:
		return fmt.Sprintf("PoolStatus(%d)", uint8(s))
	}
}

// Pool is a two-asset constant-product pool.
type Pool struct {
	ID          uint64
	TokenA      common.Address
	TokenB      common.Address
	ReserveA    *uint256.Int
	ReserveB    *uint256.Int
	TotalShares *uint256.Int
	FeesA       *uint256.Int
	FeesB       *uint256.Int
	Status      PoolStatus
}

func (p *Pool) clone() *Pool {
	c := *p
	c.ReserveA = clone(p.ReserveA)
	c.ReserveB = clone(p.ReserveB)
	c.TotalShares = clone(p.TotalShares)
	c.FeesA = clone(p.FeesA)
	c.FeesB = clone(p.FeesB)
	return &c
}

// PoolInfo is a read-only snapshot of a pool. Paused is true when either the
// pool or the whole ledger is paused.
type PoolInfo struct {
	Pool
	Paused bool
}

// LiquidityChange reports the token amounts and shares of a liquidity
// operation.
type LiquidityChange struct {
	AmountA *uint256.Int
	AmountB *uint256.Int
	Shares  *uint256.Int
}

// SwapResult reports the output of an executed swap.
type SwapResult struct {
	TokenOut  common.Address
	AmountOut *uint256.Int
	Fee       *uint256.Int
}

type positionKey struct {
	pool  uint64
	owner common.Address
}

// CreatePool escrows the initial reserves from caller and mints
// floor(sqrt(amountA*amountB)) shares, at least one, to the caller.
func (l *Ledger) CreatePool(caller, tokenA, tokenB common.Address, amountA, amountB *uint256.Int) (uint64, *uint256.Int, error) {
	var (
		id     uint64
		shares *uint256.Int
	)
	err := l.execute("createPool", caller, func(o *op) error {
		if l.paused {
			return ErrPaused
		}
		switch {
		case tokenA == (common.Address{}) || tokenB == (common.Address{}):
			return validationf("token is the zero address")
		case tokenA == tokenB:
			return validationf("identical tokens %s", tokenA.Hex())
		case isZero(amountA) || isZero(amountB):
			return validationf("initial amounts must be positive")
		}

		var err error
		shares, err = initialShares(amountA, amountB)
		if err != nil {
			return err
		}
		p := &Pool{
			ID:          l.nextPoolID,
			TokenA:      tokenA,
			TokenB:      tokenB,
			ReserveA:    amountA.Clone(),
			ReserveB:    amountB.Clone(),
			TotalShares: shares.Clone(),
			FeesA:       new(uint256.Int),
			FeesB:       new(uint256.Int),
			Status:      PoolStatusActive,
		}
		o.addPool(p)
		o.setPosition(positionKey{pool: p.ID, owner: caller}, shares.Clone())

		if err := o.pull(tokenA, caller, amountA); err != nil {
			return err
		}
		if err := o.pull(tokenB, caller, amountB); err != nil {
			return err
		}
		o.emit(PoolCreated{
			PoolID:  p.ID,
			Creator: caller,
			TokenA:  tokenA,
			TokenB:  tokenB,
			AmountA: amountA.Clone(),
			AmountB: amountB.Clone(),
			Shares:  shares.Clone(),
		})
		id = p.ID
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return id, shares, nil
}

// AddLiquidity mints shares for the limiting side of the deposit. Only the
// proportional amounts are pulled from the caller; the excess of the other
// token stays with the caller.
func (l *Ledger) AddLiquidity(caller common.Address, poolID uint64, amountA, amountB *uint256.Int) (LiquidityChange, error) {
	var res LiquidityChange
	err := l.execute("addLiquidity", caller, func(o *op) error {
		p, err := l.activePool(poolID)
		if err != nil {
			return err
		}
		if isZero(amountA) || isZero(amountB) {
			return validationf("amounts must be positive")
		}

		if p.TotalShares.IsZero() {
			// every share was burned; the next provider sets the price again
			shares, err := initialShares(amountA, amountB)
			if err != nil {
				return err
			}
			res = LiquidityChange{AmountA: amountA.Clone(), AmountB: amountB.Clone(), Shares: shares}
		} else {
			res, err = proportionalDeposit(p, amountA, amountB)
			if err != nil {
				return err
			}
		}

		reserveA, err := add(p.ReserveA, res.AmountA)
		if err != nil {
			return err
		}
		reserveB, err := add(p.ReserveB, res.AmountB)
		if err != nil {
			return err
		}
		total, err := add(p.TotalShares, res.Shares)
		if err != nil {
			return err
		}
		key := positionKey{pool: p.ID, owner: caller}
		held, err := add(l.positionOf(key), res.Shares)
		if err != nil {
			return err
		}

		o.touchPool(p)
		p.ReserveA, p.ReserveB, p.TotalShares = reserveA, reserveB, total
		o.setPosition(key, held)

		if err := o.pull(p.TokenA, caller, res.AmountA); err != nil {
			return err
		}
		if err := o.pull(p.TokenB, caller, res.AmountB); err != nil {
			return err
		}
		o.emit(LiquidityAdded{
			PoolID:   p.ID,
			Provider: caller,
			AmountA:  res.AmountA.Clone(),
			AmountB:  res.AmountB.Clone(),
			Shares:   res.Shares.Clone(),
		})
		return nil
	})
	if err != nil {
		return LiquidityChange{}, err
	}
	return res, nil
}

// proportionalDeposit computes the shares minted for at most amountA and
// amountB, and the amounts needed for exactly those shares rounded up.
func proportionalDeposit(p *Pool, amountA, amountB *uint256.Int) (LiquidityChange, error) {
	byA, err := mulDiv(amountA, p.TotalShares, p.ReserveA)
	if err != nil {
		return LiquidityChange{}, err
	}
	byB, err := mulDiv(amountB, p.TotalShares, p.ReserveB)
	if err != nil {
		return LiquidityChange{}, err
	}
	shares := minOf(byA, byB)
	if shares.IsZero() {
		return LiquidityChange{}, validationf("deposit too small to mint a share")
	}
	usedA, err := mulDivUp(shares, p.ReserveA, p.TotalShares)
	if err != nil {
		return LiquidityChange{}, err
	}
	usedB, err := mulDivUp(shares, p.ReserveB, p.TotalShares)
	if err != nil {
		return LiquidityChange{}, err
	}
	return LiquidityChange{AmountA: usedA, AmountB: usedB, Shares: shares}, nil
}

// RemoveLiquidity burns shares and returns the proportional reserves,
// rounded down.
func (l *Ledger) RemoveLiquidity(caller common.Address, poolID uint64, shares *uint256.Int) (LiquidityChange, error) {
	var res LiquidityChange
	err := l.execute("removeLiquidity", caller, func(o *op) error {
		p, err := l.activePool(poolID)
		if err != nil {
			return err
		}
		if isZero(shares) {
			return validationf("shares must be positive")
		}
		key := positionKey{pool: p.ID, owner: caller}
		held := l.positionOf(key)
		if held.Lt(shares) {
			return fmt.Errorf("%w: have %s, burning %s", ErrInsufficientShares, FormatAmount(held), FormatAmount(shares))
		}

		outA, err := mulDiv(p.ReserveA, shares, p.TotalShares)
		if err != nil {
			return err
		}
		outB, err := mulDiv(p.ReserveB, shares, p.TotalShares)
		if err != nil {
			return err
		}
		if outA.IsZero() && outB.IsZero() {
			return validationf("burning %s shares returns nothing", FormatAmount(shares))
		}
		res = LiquidityChange{AmountA: outA, AmountB: outB, Shares: shares.Clone()}

		o.touchPool(p)
		p.ReserveA = new(uint256.Int).Sub(p.ReserveA, outA)
		p.ReserveB = new(uint256.Int).Sub(p.ReserveB, outB)
		p.TotalShares = new(uint256.Int).Sub(p.TotalShares, shares)
		o.setPosition(key, new(uint256.Int).Sub(held, shares))

		if err := o.pay(p.TokenA, caller, outA); err != nil {
			return err
		}
		if err := o.pay(p.TokenB, caller, outB); err != nil {
			return err
		}
		o.emit(LiquidityRemoved{
			PoolID:   p.ID,
			Provider: caller,
			AmountA:  outA.Clone(),
			AmountB:  outB.Clone(),
			Shares:   shares.Clone(),
		})
		return nil
	})
	if err != nil {
		return LiquidityChange{}, err
	}
	return res, nil
}

// SwapAmount quotes the output of swapping amountIn of tokenIn.
func (l *Ledger) SwapAmount(poolID uint64, tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	p, err := l.pool(poolID)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, _, err := p.sides(tokenIn)
	if err != nil {
		return nil, err
	}
	out, _, err := QuoteSwap(reserveIn, reserveOut, amountIn, l.cfg.FeeBps)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Swap sells amountIn of tokenIn to the pool. It fails with ErrSlippage when
// the output would be below minAmountOut.
func (l *Ledger) Swap(caller common.Address, poolID uint64, tokenIn common.Address, amountIn, minAmountOut *uint256.Int) (SwapResult, error) {
	var res SwapResult
	err := l.execute("swap", caller, func(o *op) error {
		p, err := l.activePool(poolID)
		if err != nil {
			return err
		}
		reserveIn, reserveOut, tokenOut, err := p.sides(tokenIn)
		if err != nil {
			return err
		}
		out, fee, err := QuoteSwap(reserveIn, reserveOut, amountIn, l.cfg.FeeBps)
		if err != nil {
			return err
		}
		if minAmountOut != nil && out.Lt(minAmountOut) {
			return fmt.Errorf("%w: out %s, min %s", ErrSlippage, FormatAmount(out), FormatAmount(minAmountOut))
		}

		// Everything but the booked fee enters the reserve.
		credited := new(uint256.Int).Sub(amountIn, fee)
		newIn, err := add(reserveIn, credited)
		if err != nil {
			return err
		}
		newOut := new(uint256.Int).Sub(reserveOut, out)

		o.touchPool(p)
		if tokenIn == p.TokenA {
			fees, err := add(p.FeesA, fee)
			if err != nil {
				return err
			}
			p.ReserveA, p.ReserveB, p.FeesA = newIn, newOut, fees
		} else {
			fees, err := add(p.FeesB, fee)
			if err != nil {
				return err
			}
			p.ReserveB, p.ReserveA, p.FeesB = newIn, newOut, fees
		}

		if err := o.pull(tokenIn, caller, amountIn); err != nil {
			return err
		}
		if err := o.pay(tokenOut, caller, out); err != nil {
			return err
		}
		res = SwapResult{TokenOut: tokenOut, AmountOut: out, Fee: fee}
		o.emit(Swapped{
			PoolID:    p.ID,
			Trader:    caller,
			TokenIn:   tokenIn,
			TokenOut:  tokenOut,
			AmountIn:  amountIn.Clone(),
			AmountOut: out.Clone(),
			Fee:       fee.Clone(),
		})
		return nil
	})
	if err != nil {
		return SwapResult{}, err
	}
	return res, nil
}

// CollectFees pays the accumulated swap fees of a pool to the fee recipient.
// It is admin-only and allowed while paused.
func (l *Ledger) CollectFees(caller common.Address, poolID uint64) (feesA, feesB *uint256.Int, err error) {
	err = l.execute("collectFees", caller, func(o *op) error {
		if err := l.requireAdmin(caller); err != nil {
			return err
		}
		p, err := l.pool(poolID)
		if err != nil {
			return err
		}
		feesA, feesB = p.FeesA.Clone(), p.FeesB.Clone()

		o.touchPool(p)
		p.FeesA, p.FeesB = new(uint256.Int), new(uint256.Int)

		recipient := l.cfg.FeeRecipient
		if err := o.pay(p.TokenA, recipient, feesA); err != nil {
			return err
		}
		if err := o.pay(p.TokenB, recipient, feesB); err != nil {
			return err
		}
		o.emit(FeesCollected{
			PoolID:    p.ID,
			Recipient: recipient,
			AmountA:   feesA.Clone(),
			AmountB:   feesB.Clone(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return feesA, feesB, nil
}

// PausePool blocks liquidity changes and swaps on one pool.
func (l *Ledger) PausePool(caller common.Address, poolID uint64) error {
	return l.setPoolStatus("pausePool", caller, poolID, PoolStatusPaused)
}

// UnpausePool lifts a pool pause. The global pause still applies.
func (l *Ledger) UnpausePool(caller common.Address, poolID uint64) error {
	return l.setPoolStatus("unpausePool", caller, poolID, PoolStatusActive)
}

func (l *Ledger) setPoolStatus(name string, caller common.Address, poolID uint64, status PoolStatus) error {
	return l.execute(name, caller, func(o *op) error {
		if err := l.requireAdmin(caller); err != nil {
			return err
		}
		p, err := l.pool(poolID)
		if err != nil {
			return err
		}
		if p.Status == status {
			return fmt.Errorf("%w: pool %d already %s", ErrState, poolID, status)
		}
		o.touchPool(p)
		p.Status = status
		o.emit(PoolPauseChanged{PoolID: p.ID, Account: caller, Paused: status == PoolStatusPaused})
		return nil
	})
}

// PoolInfo returns a snapshot of a pool.
func (l *Ledger) PoolInfo(poolID uint64) (PoolInfo, error) {
	p, err := l.pool(poolID)
	if err != nil {
		return PoolInfo{}, err
	}
	return PoolInfo{Pool: *p.clone(), Paused: l.paused || p.Status == PoolStatusPaused}, nil
}

// Position returns the shares owner holds in a pool.
func (l *Ledger) Position(owner common.Address, poolID uint64) (*uint256.Int, error) {
	if _, err := l.pool(poolID); err != nil {
		return nil, err
	}
	return l.positionOf(positionKey{pool: poolID, owner: owner}), nil
}

// PoolCount returns the number of pools ever created.
func (l *Ledger) PoolCount() int {
	return len(l.pools)
}

func (l *Ledger) pool(id uint64) (*Pool, error) {
	p, ok := l.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: pool %d", ErrNotFound, id)
	}
	return p, nil
}

// activePool returns the pool if neither it nor the ledger is paused.
func (l *Ledger) activePool(id uint64) (*Pool, error) {
	p, err := l.pool(id)
	if err != nil {
		return nil, err
	}
	if l.paused || p.Status == PoolStatusPaused {
		return nil, fmt.Errorf("%w: pool %d", ErrPaused, id)
	}
	return p, nil
}

func (l *Ledger) positionOf(key positionKey) *uint256.Int {
	if v, ok := l.positions[key]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}

// sides orders the reserves of p for a swap selling tokenIn.
func (p *Pool) sides(tokenIn common.Address) (reserveIn, reserveOut *uint256.Int, tokenOut common.Address, err error) {
	switch tokenIn {
	case p.TokenA:
		return p.ReserveA, p.ReserveB, p.TokenB, nil
	case p.TokenB:
		return p.ReserveB, p.ReserveA, p.TokenA, nil
	default:
		return nil, nil, common.Address{}, validationf("token %s is not in pool %d", tokenIn.Hex(), p.ID)
	}
}

func (o *op) addPool(p *Pool) {
	l := o.l
	l.pools[p.ID] = p
	l.nextPoolID++
	o.journal.append(func() {
		delete(l.pools, p.ID)
		l.nextPoolID--
	})
}

func (o *op) touchPool(p *Pool) {
	saved := p.clone()
	o.journal.append(func() { *p = *saved })
}

// setPosition stores shares for key; a zero balance removes the entry.
func (o *op) setPosition(key positionKey, shares *uint256.Int) {
	l := o.l
	prev, had := l.positions[key]
	o.journal.append(func() {
		if had {
			l.positions[key] = prev
		} else {
			delete(l.positions, key)
		}
	})
	if shares.IsZero() {
		delete(l.positions, key)
		return
	}
	l.positions[key] = shares
}
