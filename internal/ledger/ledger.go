package ledger

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Escrow moves fungible token units in and out of ledger custody. Snapshot and
// RevertToSnapshot let the ledger undo every transfer of an aborted operation.
type Escrow interface {
	BalanceOf(token, owner common.Address) *uint256.Int
	Transfer(token, from, to common.Address, amount *uint256.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *uint256.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// Config holds the identities and fee settings of a ledger.
type Config struct {
	// Admin is the single privileged principal for pause and fee collection.
	Admin        common.Address
	FeeRecipient common.Address
	// Custody is the escrow account holding all deposits and reserves.
	Custody common.Address
	// FeeBps is the swap fee in basis points. Zero means DefaultFeeBps.
	FeeBps uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger hosts the stream ledger and the liquidity pool engine.
//
// Operations run one at a time and either commit every state change, token
// transfer and notification, or none of them. The ledger must be driven by a
// single goroutine; a call made from inside a token transfer callback fails
// with ErrReentrant.
type Ledger struct {
	cfg    Config
	escrow Escrow
	logger *zap.Logger
	now    func() time.Time

	paused bool
	locked bool

	streams      map[uint64]*Stream
	nextStreamID uint64

	pools      map[uint64]*Pool
	nextPoolID uint64
	positions  map[positionKey]*uint256.Int

	outbox Outbox
}

// New builds a Ledger. The escrow must hold no custody balances the ledger
// does not know about.
func New(cfg Config, escrow Escrow, logger *zap.Logger, opts ...Option) (*Ledger, error) {
	if escrow == nil {
		return nil, fmt.Errorf("escrow is nil")
	}
	if cfg.Admin == (common.Address{}) {
		return nil, fmt.Errorf("admin address is required")
	}
	if cfg.Custody == (common.Address{}) {
		return nil, fmt.Errorf("custody address is required")
	}
	if cfg.FeeRecipient == (common.Address{}) {
		cfg.FeeRecipient = cfg.Admin
	}
	if cfg.FeeBps == 0 {
		cfg.FeeBps = DefaultFeeBps
	}
	if cfg.FeeBps >= FeeDenominator {
		return nil, fmt.Errorf("fee bps must be below %d", FeeDenominator)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Ledger{
		cfg:          cfg,
		escrow:       escrow,
		logger:       logger,
		now:          time.Now,
		streams:      make(map[uint64]*Stream),
		nextStreamID: 1,
		pools:        make(map[uint64]*Pool),
		nextPoolID:   1,
		positions:    make(map[positionKey]*uint256.Int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Admin returns the privileged principal.
func (l *Ledger) Admin() common.Address { return l.cfg.Admin }

// FeeRecipient returns the account that receives collected swap fees.
func (l *Ledger) FeeRecipient() common.Address { return l.cfg.FeeRecipient }

// FeeBps returns the swap fee in basis points.
func (l *Ledger) FeeBps() uint64 { return l.cfg.FeeBps }

// Custody returns the escrow account of the ledger.
func (l *Ledger) Custody() common.Address { return l.cfg.Custody }

// Paused reports whether the whole ledger is paused.
func (l *Ledger) Paused() bool { return l.paused }

// Notifications returns the outbox entries with Seq greater than afterSeq.
func (l *Ledger) Notifications(afterSeq uint64) []Notification {
	return l.outbox.Since(afterSeq)
}

// Pause blocks stream creation and every pool mutation except fee collection.
func (l *Ledger) Pause(caller common.Address) error {
	return l.execute("pause", caller, func(o *op) error {
		if err := l.requireAdmin(caller); err != nil {
			return err
		}
		if l.paused {
			return ErrPaused
		}
		o.setPaused(true)
		o.emit(Paused{Account: caller})
		return nil
	})
}

// Unpause lifts a global pause.
func (l *Ledger) Unpause(caller common.Address) error {
	return l.execute("unpause", caller, func(o *op) error {
		if err := l.requireAdmin(caller); err != nil {
			return err
		}
		if !l.paused {
			return fmt.Errorf("%w: not paused", ErrState)
		}
		o.setPaused(false)
		o.emit(Unpaused{Account: caller})
		return nil
	})
}

// SetFeeRecipient changes where collected swap fees are paid.
func (l *Ledger) SetFeeRecipient(caller, recipient common.Address) error {
	return l.execute("setFeeRecipient", caller, func(o *op) error {
		if err := l.requireAdmin(caller); err != nil {
			return err
		}
		if recipient == (common.Address{}) {
			return validationf("fee recipient is the zero address")
		}
		prev := l.cfg.FeeRecipient
		o.journal.append(func() { l.cfg.FeeRecipient = prev })
		l.cfg.FeeRecipient = recipient
		o.emit(FeeRecipientUpdated{Previous: prev, Current: recipient})
		return nil
	})
}

func (l *Ledger) requireAdmin(caller common.Address) error {
	if caller != l.cfg.Admin {
		return ErrNotAdmin
	}
	return nil
}

func (l *Ledger) timestamp() uint64 {
	ts := l.now().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// execute runs fn as one all-or-nothing operation.
func (l *Ledger) execute(name string, caller common.Address, fn func(o *op) error) error {
	if l.locked {
		l.logger.Warn("reentrant call rejected", zap.String("op", name), zap.String("caller", caller.Hex()))
		return ErrReentrant
	}
	l.locked = true
	defer func() { l.locked = false }()

	snap := l.escrow.Snapshot()
	o := &op{l: l}
	if err := fn(o); err != nil {
		o.journal.revert()
		l.escrow.RevertToSnapshot(snap)
		l.logger.Warn("operation aborted",
			zap.String("op", name),
			zap.String("caller", caller.Hex()),
			zap.String("kind", Kind(err)),
			zap.Error(err),
		)
		return err
	}

	ts := l.timestamp()
	for _, ev := range o.staged {
		l.outbox.append(ts, ev)
	}
	l.logger.Debug("operation committed",
		zap.String("op", name),
		zap.String("caller", caller.Hex()),
		zap.Int("events", len(o.staged)),
		zap.Int("outbox_len", l.outbox.Len()),
	)
	return nil
}

// op carries the undo journal and staged notifications of one operation.
type op struct {
	l       *Ledger
	journal journal
	staged  []Event
}

func (o *op) emit(ev Event) {
	o.staged = append(o.staged, ev)
}

func (o *op) setPaused(paused bool) {
	prev := o.l.paused
	o.journal.append(func() { o.l.paused = prev })
	o.l.paused = paused
}

// pull moves amount of token from the caller into custody.
func (o *op) pull(token, from common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	custody := o.l.cfg.Custody
	if err := o.l.escrow.TransferFrom(token, custody, from, custody, amount); err != nil {
		return fmt.Errorf("%w: pull %s of %s from %s: %w", ErrTransfer, FormatAmount(amount), token.Hex(), from.Hex(), err)
	}
	return nil
}

// pay moves amount of token out of custody.
func (o *op) pay(token, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := o.l.escrow.Transfer(token, o.l.cfg.Custody, to, amount); err != nil {
		return fmt.Errorf("%w: pay %s of %s to %s: %w", ErrTransfer, FormatAmount(amount), token.Hex(), to.Hex(), err)
	}
	return nil
}

type journal struct {
	undo []func()
}

func (j *journal) append(fn func()) {
	j.undo = append(j.undo, fn)
}

func (j *journal) revert() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}
