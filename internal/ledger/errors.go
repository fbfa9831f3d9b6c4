package ledger

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a ledger operation wraps one of these,
// so callers can tell failures apart with errors.Is. A failed transfer also
// keeps its cause in the chain, which may itself be a ledger error raised
// from a transfer hook; Kind reports such failures as transfer.
var (
	ErrValidation         = errors.New("ledger: validation failed")
	ErrAuthorization      = errors.New("ledger: unauthorized")
	ErrState              = errors.New("ledger: invalid state")
	ErrSlippage           = errors.New("ledger: slippage exceeded")
	ErrInsufficientShares = errors.New("ledger: insufficient shares")
	ErrTransfer           = errors.New("ledger: transfer failed")
	ErrNotFound           = errors.New("ledger: not found")
)

var (
	ErrReentrant      = fmt.Errorf("%w: reentrant call", ErrState)
	ErrPaused         = fmt.Errorf("%w: paused", ErrState)
	ErrStreamInactive = fmt.Errorf("%w: stream is not active", ErrState)
	ErrNothingToClaim = fmt.Errorf("%w: nothing to claim", ErrState)
	ErrNoLiquidity    = fmt.Errorf("%w: pool has no liquidity", ErrState)
	ErrOverflow       = fmt.Errorf("%w: arithmetic overflow", ErrValidation)
	ErrNotAdmin       = fmt.Errorf("%w: caller is not the admin", ErrAuthorization)
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Kind names the error kind wrapped by err, or "" if err is not a ledger error.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransfer):
		return "transfer"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrSlippage):
		return "slippage"
	case errors.Is(err, ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return ""
	}
}
