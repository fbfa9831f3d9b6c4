package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Event is a notification payload emitted by a committed operation.
type Event interface {
	EventName() string
}

type StreamCreated struct {
	StreamID      uint64
	Sender        common.Address
	Recipient     common.Address
	Token         common.Address
	Deposit       *uint256.Int
	RatePerSecond *uint256.Int
	StartTime     uint64
	Duration      uint64
}

type StreamClaimed struct {
	StreamID  uint64
	Recipient common.Address
	Token     common.Address
	Amount    *uint256.Int
	Withdrawn *uint256.Int
}

type StreamCancelled struct {
	StreamID        uint64
	Sender          common.Address
	Recipient       common.Address
	Token           common.Address
	RecipientAmount *uint256.Int
	SenderRefund    *uint256.Int
}

type PoolCreated struct {
	PoolID  uint64
	Creator common.Address
	TokenA  common.Address
	TokenB  common.Address
	AmountA *uint256.Int
	AmountB *uint256.Int
	Shares  *uint256.Int
}

type LiquidityAdded struct {
	PoolID   uint64
	Provider common.Address
	AmountA  *uint256.Int
	AmountB  *uint256.Int
	Shares   *uint256.Int
}

type LiquidityRemoved struct {
	PoolID   uint64
	Provider common.Address
	AmountA  *uint256.Int
	AmountB  *uint256.Int
	Shares   *uint256.Int
}

type Swapped struct {
	PoolID    uint64
	Trader    common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Fee       *uint256.Int
}

type FeesCollected struct {
	PoolID    uint64
	Recipient common.Address
	AmountA   *uint256.Int
	AmountB   *uint256.Int
}

type Paused struct {
	Account common.Address
}

type Unpaused struct {
	Account common.Address
}

type PoolPauseChanged struct {
	PoolID  uint64
	Account common.Address
	Paused  bool
}

type FeeRecipientUpdated struct {
	Previous common.Address
	Current  common.Address
}

func (StreamCreated) EventName() string       { return "StreamCreated" }
func (StreamClaimed) EventName() string       { return "StreamClaimed" }
func (StreamCancelled) EventName() string     { return "StreamCancelled" }
func (PoolCreated) EventName() string         { return "PoolCreated" }
func (LiquidityAdded) EventName() string      { return "LiquidityAdded" }
func (LiquidityRemoved) EventName() string    { return "LiquidityRemoved" }
func (Swapped) EventName() string             { return "Swapped" }
func (FeesCollected) EventName() string       { return "FeesCollected" }
func (Paused) EventName() string              { return "Paused" }
func (Unpaused) EventName() string            { return "Unpaused" }
func (PoolPauseChanged) EventName() string    { return "PoolPauseChanged" }
func (FeeRecipientUpdated) EventName() string { return "FeeRecipientUpdated" }

// Notification is one outbox entry. Seq starts at 1 and increases by one per
// emitted event.
type Notification struct {
	Seq       uint64
	Timestamp uint64
	Event     Event
}

// Outbox is the append-only log of notifications from committed operations.
type Outbox struct {
	entries []Notification
}

func (o *Outbox) append(ts uint64, ev Event) {
	o.entries = append(o.entries, Notification{
		Seq:       uint64(len(o.entries)) + 1,
		Timestamp: ts,
		Event:     ev,
	})
}

// Since returns the notifications with Seq greater than seq.
func (o *Outbox) Since(seq uint64) []Notification {
	if seq >= uint64(len(o.entries)) {
		return nil
	}
	out := make([]Notification, len(o.entries)-int(seq))
	copy(out, o.entries[seq:])
	return out
}

// Len returns the number of notifications.
func (o *Outbox) Len() int {
	return len(o.entries)
}
