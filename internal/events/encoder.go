package events

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"payflow/internal/ledger"
	"payflow/internal/model"
)

// Encoder turns ledger notifications into log records.
type Encoder struct {
	abi     abi.ABI
	chainID uint64
	address common.Address
	now     func() time.Time
}

// NewEncoder builds an Encoder that stamps records with chainID and the
// ledger address.
func NewEncoder(chainID uint64, address common.Address) (*Encoder, error) {
	parsed, err := LedgerABI()
	if err != nil {
		return nil, fmt.Errorf("parse ledger abi: %w", err)
	}
	return &Encoder{abi: parsed, chainID: chainID, address: address, now: time.Now}, nil
}

// Encode converts one notification.
func (e *Encoder) Encode(n ledger.Notification) (model.LogRecord, error) {
	if n.Event == nil {
		return model.LogRecord{}, fmt.Errorf("notification %d has no event", n.Seq)
	}
	name := n.Event.EventName()
	event, ok := e.abi.Events[name]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("no abi for event %s", name)
	}

	topics, values, err := eventArgs(n.Event)
	if err != nil {
		return model.LogRecord{}, err
	}
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", name, err)
	}

	hexTopics := make([]string, 0, len(topics)+1)
	hexTopics = append(hexTopics, event.ID.Hex())
	for _, topic := range topics {
		hexTopics = append(hexTopics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     e.chainID,
		BlockNumber: n.Seq,
		TxHash:      txHash(n.Seq, event.ID, data).Hex(),
		Address:     e.address.Hex(),
		Topics:      hexTopics,
		Data:        hexutil.Encode(data),
		Timestamp:   n.Timestamp,
		IngestedAt:  e.now().UTC().Format(time.RFC3339),
	}, nil
}

// EncodeAll converts notifications in order.
func (e *Encoder) EncodeAll(notes []ledger.Notification) ([]model.LogRecord, error) {
	out := make([]model.LogRecord, 0, len(notes))
	for _, n := range notes {
		rec, err := e.Encode(n)
		if err != nil {
			return nil, fmt.Errorf("encode seq %d: %w", n.Seq, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// eventArgs splits an event into indexed topics and packed values, in ABI
// argument order.
func eventArgs(ev ledger.Event) ([]common.Hash, []interface{}, error) {
	switch ev := ev.(type) {
	case ledger.StreamCreated:
		return []common.Hash{idTopic(ev.StreamID), addrTopic(ev.Sender), addrTopic(ev.Recipient)},
			[]interface{}{ev.Token, big256(ev.Deposit), big256(ev.RatePerSecond), ev.StartTime, ev.Duration}, nil
	case ledger.StreamClaimed:
		return []common.Hash{idTopic(ev.StreamID), addrTopic(ev.Recipient)},
			[]interface{}{ev.Token, big256(ev.Amount), big256(ev.Withdrawn)}, nil
	case ledger.StreamCancelled:
		return []common.Hash{idTopic(ev.StreamID), addrTopic(ev.Sender), addrTopic(ev.Recipient)},
			[]interface{}{ev.Token, big256(ev.RecipientAmount), big256(ev.SenderRefund)}, nil
	case ledger.PoolCreated:
		return []common.Hash{idTopic(ev.PoolID), addrTopic(ev.Creator)},
			[]interface{}{ev.TokenA, ev.TokenB, big256(ev.AmountA), big256(ev.AmountB), big256(ev.Shares)}, nil
	case ledger.LiquidityAdded:
		return []common.Hash{idTopic(ev.PoolID), addrTopic(ev.Provider)},
			[]interface{}{big256(ev.AmountA), big256(ev.AmountB), big256(ev.Shares)}, nil
	case ledger.LiquidityRemoved:
		return []common.Hash{idTopic(ev.PoolID), addrTopic(ev.Provider)},
			[]interface{}{big256(ev.AmountA), big256(ev.AmountB), big256(ev.Shares)}, nil
	case ledger.Swapped:
		return []common.Hash{idTopic(ev.PoolID), addrTopic(ev.Trader)},
			[]interface{}{ev.TokenIn, ev.TokenOut, big256(ev.AmountIn), big256(ev.AmountOut), big256(ev.Fee)}, nil
	case ledger.FeesCollected:
		return []common.Hash{idTopic(ev.PoolID), addrTopic(ev.Recipient)},
			[]interface{}{big256(ev.AmountA), big256(ev.AmountB)}, nil
	case ledger.Paused:
		return nil, []interface{}{ev.Account}, nil
	case ledger.Unpaused:
		return nil, []interface{}{ev.Account}, nil
	case ledger.PoolPauseChanged:
		return []common.Hash{idTopic(ev.PoolID), addrTopic(ev.Account)},
			[]interface{}{ev.Paused}, nil
	case ledger.FeeRecipientUpdated:
		return []common.Hash{addrTopic(ev.Previous), addrTopic(ev.Current)}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported event type %T", ev)
	}
}

func idTopic(id uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(id))
}

func addrTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func big256(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

// txHash derives a stable pseudo transaction hash for a notification.
func txHash(seq uint64, topic0 common.Hash, data []byte) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return crypto.Keccak256Hash(buf[:], topic0.Bytes(), data)
}
