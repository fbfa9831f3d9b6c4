package script

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"payflow/internal/ledger"
)

type handler func(h *Host, step Step) (map[string]string, error)

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"create_stream":     (*Host).createStream,
		"claim":             (*Host).claim,
		"cancel_stream":     (*Host).cancelStream,
		"create_pool":       (*Host).createPool,
		"add_liquidity":     (*Host).addLiquidity,
		"remove_liquidity":  (*Host).removeLiquidity,
		"swap":              (*Host).swap,
		"collect_fees":      (*Host).collectFees,
		"pause":             (*Host).pause,
		"unpause":           (*Host).unpause,
		"pause_pool":        (*Host).pausePool,
		"unpause_pool":      (*Host).unpausePool,
		"set_fee_recipient": (*Host).setFeeRecipient,
		"mint":              (*Host).mintStep,
		"approve":           (*Host).approveStep,
		"freeze":            (*Host).freeze,
		"unfreeze":          (*Host).unfreeze,
	}
}

// args resolves addresses and amounts for a step, keeping the first error.
// Malformed input is reported as a ledger validation error so that
// expect_error: validation covers it.
type args struct {
	h   *Host
	err error
}

func (a *args) addr(ref string) common.Address {
	if a.err != nil {
		return common.Address{}
	}
	addr, err := a.h.Address(ref)
	if err != nil {
		a.err = fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}
	return addr
}

func (a *args) amount(value string) *uint256.Int {
	if a.err != nil {
		return nil
	}
	v, err := ledger.ParseAmount(value)
	if err != nil {
		a.err = fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}
	return v
}

func (h *Host) createStream(step Step) (map[string]string, error) {
	a := &args{h: h}
	caller := a.addr(step.Caller)
	p := ledger.CreateStreamParams{
		Recipient: a.addr(step.Recipient),
		Token:     a.addr(step.Token),
		Deposit:   a.amount(step.Deposit),
		Duration:  step.Duration,
	}
	if step.Rate != "" {
		p.RatePerSecond = a.amount(step.Rate)
	}
	if a.err != nil {
		return nil, a.err
	}
	if p.RatePerSecond == nil {
		rate, err := ledger.RateFor(p.Deposit, p.Duration)
		if err != nil {
			return nil, err
		}
		p.RatePerSecond = rate
	}

	id, err := h.ledger.CreateStream(caller, p)
	if err != nil {
		return nil, err
	}
	return map[string]string{"stream_id": strconv.FormatUint(id, 10), "rate": amountOut(p.RatePerSecond)}, nil
}

func (h *Host) claim(step Step) (map[string]string, error) {
	a := &args{h: h}
	caller := a.addr(step.Caller)
	if a.err != nil {
		return nil, a.err
	}
	amount, err := h.ledger.Claim(caller, step.StreamID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"amount": amountOut(amount)}, nil
}

func (h *Host) cancelStream(step Step) (map[string]string, error) {
	a := &args{h: h}
	caller := a.addr(step.Caller)
	if a.err != nil {
		return nil, a.err
	}
	toRecipient, refund, err := h.ledger.CancelStream(caller, step.StreamID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"recipient_amount": amountOut(toRecipient), "sender_refund": amountOut(refund)}, nil
}

func (h *Host) createPool(step Step) (map[string]string, error) {
	a := &args{h: h}
	caller := a.addr(step.Caller)
	tokenA, tokenB := a.addr(step.TokenA), a.addr(step.TokenB)
	amountA, amountB := a.amount(step.AmountA), a.amount(step.AmountB)
	if a.err != nil {
		return nil, a.err
	}
	id, shares, err := h.ledger.CreatePool(caller, tokenA, tokenB, amountA, amountB)
	if err != nil {
		return nil, err
	}
	return map[string]string{"pool_id": strconv.FormatUint(id, 10), "shares": amountOut(shares)}, nil
}

func liquidityOutput(c ledger.LiquidityChange) map[string]string {
	return map[string]string{
		"amount_a": amountOut(c.AmountA),
		"amount_b": amountOut(c.AmountB),
		"shares":   amountOut(c.Shares),
	}
}

func (h *Host) addLiquidity(step Step) (map[string]string, error) {
	a := &args{h: h}
	caller := a.addr(step.Caller)
	amountA, amountB := a.amount(step.AmountA), a.amount(step.AmountB)
	if a.err != nil {
		return nil, a.err
	}
	change, err := h.ledger.AddLiquidity(caller, step.PoolID, amountA, amountB)
	if err != nil {
		return nil, err
	}
	return liquidityOutput(change), nil
}

func (h *Host) removeLiquidity(step Step) (map[string]string, error) {
	a := &args{h: h}
	caller := a.addr(step.Caller)
	shares := a.amount(step.Shares)
	if a.err != nil {
		return nil, a.err
	}
	change, err := h.ledger.RemoveLiquidity(caller, step.PoolID, shares)
	if err != nil {
		return nil, err
	}
	return liquidityOutput(change), nil
}

func (h *Host) swap(step Step) (map[string]string, error) {
	a := &args{h: h}
	caller := a.addr(step.Caller)
	tokenIn := a.addr(step.TokenIn)
	amountIn := a.amount(step.AmountIn)
	var minOut *uint256.Int
	if step.MinOut != "" {
		minOut = a.amount(step.MinOut)
	}
	if a.err != nil {
		return nil, a.err
	}
	res, err := h.ledger.Swap(caller, step.PoolID, tokenIn, amountIn, minOut)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"token_out":  res.TokenOut.Hex(),
		"amount_out": amountOut(res.AmountOut),
		"fee":        amountOut(res.Fee),
	}, nil
}

func (h *Host) collectFees(step Step) (map[string]string, error) {
	a := &args{h: h}
	caller := a.addr(step.Caller)
	if a.err != nil {
		return nil, a.err
	}
	feesA, feesB, err := h.ledger.CollectFees(caller, step.PoolID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"fees_a": amountOut(feesA), "fees_b": amountOut(feesB)}, nil
}

func (h *Host) adminCall(step Step, fn func(caller common.Address) error) (map[string]string, error) {
	a := &args{h: h}
	caller := a.addr(step.Caller)
	if a.err != nil {
		return nil, a.err
	}
	return nil, fn(caller)
}

func (h *Host) pause(step Step) (map[string]string, error) {
	return h.adminCall(step, h.ledger.Pause)
}

func (h *Host) unpause(step Step) (map[string]string, error) {
	return h.adminCall(step, h.ledger.Unpause)
}

func (h *Host) pausePool(step Step) (map[string]string, error) {
	return h.adminCall(step, func(caller common.Address) error {
		return h.ledger.PausePool(caller, step.PoolID)
	})
}

func (h *Host) unpausePool(step Step) (map[string]string, error) {
	return h.adminCall(step, func(caller common.Address) error {
		return h.ledger.UnpausePool(caller, step.PoolID)
	})
}

func (h *Host) setFeeRecipient(step Step) (map[string]string, error) {
	a := &args{h: h}
	recipient := a.addr(step.Account)
	if a.err != nil {
		return nil, a.err
	}
	return h.adminCall(step, func(caller common.Address) error {
		return h.ledger.SetFeeRecipient(caller, recipient)
	})
}

// The remaining ops act on the bank directly and bypass the ledger.

func (h *Host) mintStep(step Step) (map[string]string, error) {
	if err := h.mint(step.Token, step.To, step.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}
	return nil, nil
}

func (h *Host) approveStep(step Step) (map[string]string, error) {
	owner := step.Owner
	if owner == "" {
		owner = step.Caller
	}
	if err := h.approve(step.Token, owner, step.Spender, step.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}
	return nil, nil
}

func (h *Host) freeze(step Step) (map[string]string, error) {
	a := &args{h: h}
	token, account := a.addr(step.Token), a.addr(step.Account)
	if a.err != nil {
		return nil, a.err
	}
	h.bank.Freeze(token, account)
	return nil, nil
}

func (h *Host) unfreeze(step Step) (map[string]string, error) {
	a := &args{h: h}
	token, account := a.addr(step.Token), a.addr(step.Account)
	if a.err != nil {
		return nil, a.err
	}
	h.bank.Unfreeze(token, account)
	return nil, nil
}
