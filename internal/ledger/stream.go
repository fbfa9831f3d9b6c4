package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StreamStatus is the lifecycle state of a stream.
type StreamStatus uint8

const (
	StreamStatusActive StreamStatus = iota
	StreamStatusCompleted
	StreamStatusCancelled
)

func (s StreamStatus) String() string {
	switch s {
	case StreamStatusActive:
		return "active"
	case StreamStatusCompleted:
		return "completed"
	case StreamStatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("StreamStatus(%d)", uint8(s))
	}
}

// Stream is a linear release of a deposit from sender to recipient.
type Stream struct {
	ID        uint64
	Sender    common.Address
	Recipient common.Address
	Token     common.Address
	Deposit   *uint256.Int
	// RatePerSecond is scaled by RateScale.
	RatePerSecond *uint256.Int
	StartTime     uint64
	Duration      uint64
	Withdrawn     *uint256.Int
	Status        StreamStatus
}

func (s *Stream) clone() *Stream {
	c := *s
	c.Deposit = clone(s.Deposit)
	c.RatePerSecond = clone(s.RatePerSecond)
	c.Withdrawn = clone(s.Withdrawn)
	return &c
}

// accrued is the amount released by time now, capped at the deposit.
func (s *Stream) accrued(now uint64) *uint256.Int {
	if now <= s.StartTime {
		return new(uint256.Int)
	}
	elapsed := now - s.StartTime
	var released *uint256.Int
	var err error
	if elapsed >= s.Duration {
		released, err = mulDivUp(s.RatePerSecond, uint256.NewInt(s.Duration), RateScale)
	} else {
		released, err = mulDiv(s.RatePerSecond, uint256.NewInt(elapsed), RateScale)
	}
	// rate*duration fits in 256 bits once the stream is funded, so err is
	// only possible for records built outside CreateStream.
	if err != nil {
		return s.Deposit.Clone()
	}
	return minOf(released, s.Deposit)
}

// available is accrued minus withdrawn for an active stream.
func (s *Stream) available(now uint64) *uint256.Int {
	if s.Status != StreamStatusActive {
		return new(uint256.Int)
	}
	return subFloor(s.accrued(now), s.Withdrawn)
}

// StreamInfo is a read-only snapshot of a stream.
type StreamInfo struct {
	Stream
	Active bool
	// RemainingBalance is the part of the deposit still held in escrow.
	RemainingBalance *uint256.Int
	Available        *uint256.Int
}

// CreateStreamParams describes a new stream.
type CreateStreamParams struct {
	Recipient     common.Address
	Token         common.Address
	Deposit       *uint256.Int
	RatePerSecond *uint256.Int
	Duration      uint64
}

// CreateStream escrows the deposit from caller and starts a stream at the
// current ledger time.
func (l *Ledger) CreateStream(caller common.Address, p CreateStreamParams) (uint64, error) {
	var id uint64
	err := l.execute("createStream", caller, func(o *op) error {
		if l.paused {
			return ErrPaused
		}
		if err := validateStream(caller, p); err != nil {
			return err
		}

		s := &Stream{
			ID:            l.nextStreamID,
			Sender:        caller,
			Recipient:     p.Recipient,
			Token:         p.Token,
			Deposit:       p.Deposit.Clone(),
			RatePerSecond: p.RatePerSecond.Clone(),
			StartTime:     l.timestamp(),
			Duration:      p.Duration,
			Withdrawn:     new(uint256.Int),
			Status:        StreamStatusActive,
		}
		o.addStream(s)

		if err := o.pull(p.Token, caller, p.Deposit); err != nil {
			return err
		}
		o.emit(StreamCreated{
			StreamID:      s.ID,
			Sender:        s.Sender,
			Recipient:     s.Recipient,
			Token:         s.Token,
			Deposit:       s.Deposit.Clone(),
			RatePerSecond: s.RatePerSecond.Clone(),
			StartTime:     s.StartTime,
			Duration:      s.Duration,
		})
		id = s.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func validateStream(sender common.Address, p CreateStreamParams) error {
	switch {
	case p.Recipient == (common.Address{}):
		return validationf("recipient is the zero address")
	case p.Token == (common.Address{}):
		return validationf("token is the zero address")
	case p.Recipient == sender:
		return validationf("recipient equals sender")
	case isZero(p.Deposit):
		return validationf("deposit must be positive")
	case p.Duration == 0:
		return validationf("duration must be positive")
	case isZero(p.RatePerSecond):
		return validationf("rate must be positive")
	}

	required, err := mul(p.RatePerSecond, uint256.NewInt(p.Duration))
	if err != nil {
		return err
	}
	funded, err := mul(p.Deposit, RateScale)
	if err != nil {
		return err
	}
	if funded.Lt(required) {
		return validationf("deposit %s does not cover rate over %ds", FormatAmount(p.Deposit), p.Duration)
	}
	return nil
}

// Claim pays the recipient everything released and not yet withdrawn.
func (l *Ledger) Claim(caller common.Address, streamID uint64) (*uint256.Int, error) {
	var amount *uint256.Int
	err := l.execute("claim", caller, func(o *op) error {
		s, err := l.stream(streamID)
		if err != nil {
			return err
		}
		if caller != s.Recipient {
			return fmt.Errorf("%w: only the recipient can claim stream %d", ErrAuthorization, streamID)
		}
		if s.Status != StreamStatusActive {
			return ErrStreamInactive
		}
		amount = s.available(l.timestamp())
		if amount.IsZero() {
			return ErrNothingToClaim
		}

		o.touchStream(s)
		s.Withdrawn = new(uint256.Int).Add(s.Withdrawn, amount)
		if s.Withdrawn.Eq(s.Deposit) {
			s.Status = StreamStatusCompleted
		}

		if err := o.pay(s.Token, s.Recipient, amount); err != nil {
			return err
		}
		o.emit(StreamClaimed{
			StreamID:  s.ID,
			Recipient: s.Recipient,
			Token:     s.Token,
			Amount:    amount.Clone(),
			Withdrawn: s.Withdrawn.Clone(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// CancelStream ends a stream, paying the recipient what has accrued and
// refunding the rest of the deposit to the sender.
func (l *Ledger) CancelStream(caller common.Address, streamID uint64) (recipientAmount, senderRefund *uint256.Int, err error) {
	err = l.execute("cancelStream", caller, func(o *op) error {
		s, err := l.stream(streamID)
		if err != nil {
			return err
		}
		if caller != s.Sender {
			return fmt.Errorf("%w: only the sender can cancel stream %d", ErrAuthorization, streamID)
		}
		if s.Status != StreamStatusActive {
			return ErrStreamInactive
		}

		accrued := s.accrued(l.timestamp())
		recipientAmount = subFloor(accrued, s.Withdrawn)
		senderRefund = new(uint256.Int).Sub(s.Deposit, accrued)

		o.touchStream(s)
		s.Withdrawn = maxOf(accrued, s.Withdrawn)
		s.Status = StreamStatusCancelled

		if err := o.pay(s.Token, s.Recipient, recipientAmount); err != nil {
			return err
		}
		if err := o.pay(s.Token, s.Sender, senderRefund); err != nil {
			return err
		}
		o.emit(StreamCancelled{
			StreamID:        s.ID,
			Sender:          s.Sender,
			Recipient:       s.Recipient,
			Token:           s.Token,
			RecipientAmount: recipientAmount.Clone(),
			SenderRefund:    senderRefund.Clone(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return recipientAmount, senderRefund, nil
}

// AvailableToClaim returns the amount the recipient could claim now.
func (l *Ledger) AvailableToClaim(streamID uint64) (*uint256.Int, error) {
	s, err := l.stream(streamID)
	if err != nil {
		return nil, err
	}
	return s.available(l.timestamp()), nil
}

// StreamInfo returns a snapshot of a stream.
func (l *Ledger) StreamInfo(streamID uint64) (StreamInfo, error) {
	s, err := l.stream(streamID)
	if err != nil {
		return StreamInfo{}, err
	}
	info := StreamInfo{
		Stream:           *s.clone(),
		Active:           s.Status == StreamStatusActive,
		RemainingBalance: new(uint256.Int),
		Available:        s.available(l.timestamp()),
	}
	if info.Active {
		info.RemainingBalance = new(uint256.Int).Sub(s.Deposit, s.Withdrawn)
	}
	return info, nil
}

// StreamCount returns the number of streams ever created.
func (l *Ledger) StreamCount() int {
	return len(l.streams)
}

func (l *Ledger) stream(id uint64) (*Stream, error) {
	s, ok := l.streams[id]
	if !ok {
		return nil, fmt.Errorf("%w: stream %d", ErrNotFound, id)
	}
	return s, nil
}

func (o *op) addStream(s *Stream) {
	l := o.l
	l.streams[s.ID] = s
	l.nextStreamID++
	o.journal.append(func() {
		delete(l.streams, s.ID)
		l.nextStreamID--
	})
}

// touchStream records the current state of s so it can be restored.
func (o *op) touchStream(s *Stream) {
	saved := s.clone()
	o.journal.append(func() { *s = *saved })
}

func maxOf(x, y *uint256.Int) *uint256.Int {
	if x.Gt(y) {
		return x.Clone()
	}
	return y.Clone()
}
