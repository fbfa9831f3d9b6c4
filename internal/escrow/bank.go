package escrow

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("escrow: insufficient balance")
	ErrInsufficientAllowance = errors.New("escrow: insufficient allowance")
	ErrFrozen                = errors.New("escrow: account frozen")
	ErrSupplyOverflow        = errors.New("escrow: total supply overflow")
)

// TransferHook runs after a balance move of the token it is registered for.
// It may call into arbitrary code. A non-nil error fails the transfer.
type TransferHook func(token, from, to common.Address, amount *uint256.Int) error

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

type holderKey struct {
	token   common.Address
	account common.Address
}

// Bank is an in-memory fungible token ledger for any number of tokens.
// Every balance and allowance change is journaled so callers can take a
// snapshot before a multi-transfer operation and revert all of it on failure.
//
// Bank is not safe for concurrent use.
type Bank struct {
	balances   map[common.Address]map[common.Address]*uint256.Int
	supply     map[common.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	frozen     map[holderKey]struct{}
	hooks      map[common.Address]TransferHook

	journal   []func()
	snapshots []int
}

func NewBank() *Bank {
	return &Bank{
		balances:   make(map[common.Address]map[common.Address]*uint256.Int),
		supply:     make(map[common.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
		frozen:     make(map[holderKey]struct{}),
		hooks:      make(map[common.Address]TransferHook),
	}
}

// BalanceOf returns a copy of the owner's balance of token.
func (b *Bank) BalanceOf(token, owner common.Address) *uint256.Int {
	if bal, ok := b.balances[token][owner]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// TotalSupply returns a copy of the minted supply of token.
func (b *Bank) TotalSupply(token common.Address) *uint256.Int {
	if s, ok := b.supply[token]; ok {
		return s.Clone()
	}
	return new(uint256.Int)
}

// Allowance returns how much spender may still move out of owner's balance.
func (b *Bank) Allowance(token, owner, spender common.Address) *uint256.Int {
	if a, ok := b.allowances[allowanceKey{token, owner, spender}]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Mint creates amount units of token in the to account.
func (b *Bank) Mint(token, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	supply, overflow := new(uint256.Int).AddOverflow(b.TotalSupply(token), amount)
	if overflow {
		return fmt.Errorf("%w: token %s", ErrSupplyOverflow, token.Hex())
	}
	b.setSupply(token, supply)
	b.setBalance(token, to, new(uint256.Int).Add(b.BalanceOf(token, to), amount))
	return nil
}

// Approve sets the allowance of spender over owner's token balance.
func (b *Bank) Approve(token, owner, spender common.Address, amount *uint256.Int) {
	if amount == nil {
		amount = new(uint256.Int)
	}
	b.setAllowance(allowanceKey{token, owner, spender}, amount.Clone())
}

// Freeze makes every transfer of token touching account fail.
func (b *Bank) Freeze(token, account common.Address) {
	b.frozen[holderKey{token, account}] = struct{}{}
}

// Unfreeze reverses Freeze.
func (b *Bank) Unfreeze(token, account common.Address) {
	delete(b.frozen, holderKey{token, account})
}

// SetHook registers a callback for every balance move of token. A nil hook
// removes the registration.
func (b *Bank) SetHook(token common.Address, hook TransferHook) {
	if hook == nil {
		delete(b.hooks, token)
		return
	}
	b.hooks[token] = hook
}

// Transfer moves amount of token from one account to another. On failure no
// balance is changed.
func (b *Bank) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if b.isFrozen(token, from) || b.isFrozen(token, to) {
		return fmt.Errorf("%w: token %s", ErrFrozen, token.Hex())
	}

	bal := b.BalanceOf(token, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal.ToBig(), amount.ToBig())
	}

	snap := b.Snapshot()
	b.setBalance(token, from, new(uint256.Int).Sub(bal, amount))
	b.setBalance(token, to, new(uint256.Int).Add(b.BalanceOf(token, to), amount))

	if hook, ok := b.hooks[token]; ok {
		if err := hook(token, from, to, amount.Clone()); err != nil {
			b.RevertToSnapshot(snap)
			return fmt.Errorf("transfer hook: %w", err)
		}
	}
	return nil
}

// TransferFrom moves amount of token from one account to another on behalf of
// spender, consuming spender's allowance. An owner moving its own funds needs
// no allowance.
func (b *Bank) TransferFrom(token, spender, from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}

	snap := b.Snapshot()
	if spender != from {
		key := allowanceKey{token, from, spender}
		allowed := b.Allowance(token, from, spender)
		if allowed.Lt(amount) {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowed.ToBig(), amount.ToBig())
		}
		b.setAllowance(key, new(uint256.Int).Sub(allowed, amount))
	}

	if err := b.Transfer(token, from, to, amount); err != nil {
		b.RevertToSnapshot(snap)
		return err
	}
	return nil
}

// Snapshot returns an identifier for the current state.
func (b *Bank) Snapshot() int {
	b.snapshots = append(b.snapshots, len(b.journal))
	return len(b.snapshots) - 1
}

// RevertToSnapshot undoes every change made after the snapshot was taken.
// Snapshots taken after id become invalid.
func (b *Bank) RevertToSnapshot(id int) {
	if id < 0 || id >= len(b.snapshots) {
		panic(fmt.Sprintf("escrow: snapshot %d cannot be reverted", id))
	}
	mark := b.snapshots[id]
	for i := len(b.journal) - 1; i >= mark; i-- {
		b.journal[i]()
	}
	b.journal = b.journal[:mark]
	b.snapshots = b.snapshots[:id]
}

func (b *Bank) isFrozen(token, account common.Address) bool {
	_, ok := b.frozen[holderKey{token, account}]
	return ok
}

func (b *Bank) setBalance(token, owner common.Address, amount *uint256.Int) {
	holders, ok := b.balances[token]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		b.balances[token] = holders
	}
	prev, existed := holders[owner]
	b.journal = append(b.journal, func() {
		if existed {
			holders[owner] = prev
		} else {
			delete(holders, owner)
		}
	})
	holders[owner] = amount
}

func (b *Bank) setSupply(token common.Address, amount *uint256.Int) {
	prev, existed := b.supply[token]
	b.journal = append(b.journal, func() {
		if existed {
			b.supply[token] = prev
		} else {
			delete(b.supply, token)
		}
	})
	b.supply[token] = amount
}

func (b *Bank) setAllowance(key allowanceKey, amount *uint256.Int) {
	prev, existed := b.allowances[key]
	b.journal = append(b.journal, func() {
		if existed {
			b.allowances[key] = prev
		} else {
			delete(b.allowances, key)
		}
	})
	b.allowances[key] = amount
}
