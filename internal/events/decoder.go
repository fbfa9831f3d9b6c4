package events

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"payflow/internal/model"
)

// Decoder turns log records back into typed ledger events.
type Decoder struct {
	abi         abi.ABI
	topicToName map[string]string
}

// NewDecoder builds a Decoder for every ledger event.
func NewDecoder() (*Decoder, error) {
	parsed, err := LedgerABI()
	if err != nil {
		return nil, fmt.Errorf("parse ledger abi: %w", err)
	}
	topicToName := make(map[string]string, len(parsed.Events))
	for name, event := range parsed.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}
	return &Decoder{abi: parsed, topicToName: topicToName}, nil
}

// CanDecode checks if the topic0 is a ledger event.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent whose Decoded field holds
// one of the model event payloads.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	event := d.abi.Events[name]

	fields, err := unpackFields(event, log)
	if err != nil {
		return nil, err
	}
	decoded, err := buildPayload(name, fields)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	return &model.TypedEvent{
		ChainID:   log.ChainID,
		Seq:       log.Seq(),
		TxHash:    log.TxHash,
		Address:   log.Address,
		EventName: name,
		Timestamp: log.Timestamp,
		Decoded:   decoded,
		Raw:       &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func unpackFields(event abi.Event, log model.LogRecord) (*fieldReader, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics[1:])
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(fields, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(fields, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return &fieldReader{fields: fields}, nil
}

func buildPayload(name string, f *fieldReader) (interface{}, error) {
	var out interface{}
	switch name {
	case "StreamCreated":
		out = model.StreamCreatedData{
			StreamID:      f.id("streamId"),
			Sender:        f.address("sender"),
			Recipient:     f.address("recipient"),
			Token:         f.address("token"),
			Deposit:       f.amount("deposit"),
			RatePerSecond: f.amount("ratePerSecond"),
			StartTime:     f.u64("startTime"),
			Duration:      f.u64("duration"),
		}
	case "StreamClaimed":
		out = model.StreamClaimedData{
			StreamID:  f.id("streamId"),
			Recipient: f.address("recipient"),
			Token:     f.address("token"),
			Amount:    f.amount("amount"),
			Withdrawn: f.amount("withdrawn"),
		}
	case "StreamCancelled":
		out = model.StreamCancelledData{
			StreamID:        f.id("streamId"),
			Sender:          f.address("sender"),
			Recipient:       f.address("recipient"),
			Token:           f.address("token"),
			RecipientAmount: f.amount("recipientAmount"),
			SenderRefund:    f.amount("senderRefund"),
		}
	case "PoolCreated":
		out = model.PoolCreatedData{
			PoolID:  f.id("poolId"),
			Creator: f.address("creator"),
			TokenA:  f.address("tokenA"),
			TokenB:  f.address("tokenB"),
			AmountA: f.amount("amountA"),
			AmountB: f.amount("amountB"),
			Shares:  f.amount("shares"),
		}
	case "LiquidityAdded", "LiquidityRemoved":
		out = model.LiquidityEventData{
			PoolID:   f.id("poolId"),
			Provider: f.address("provider"),
			AmountA:  f.amount("amountA"),
			AmountB:  f.amount("amountB"),
			Shares:   f.amount("shares"),
		}
	case "Swapped":
		out = model.SwappedData{
			PoolID:    f.id("poolId"),
			Trader:    f.address("trader"),
			TokenIn:   f.address("tokenIn"),
			TokenOut:  f.address("tokenOut"),
			AmountIn:  f.amount("amountIn"),
			AmountOut: f.amount("amountOut"),
			Fee:       f.amount("fee"),
		}
	case "FeesCollected":
		out = model.FeesCollectedData{
			PoolID:    f.id("poolId"),
			Recipient: f.address("recipient"),
			AmountA:   f.amount("amountA"),
			AmountB:   f.amount("amountB"),
		}
	case "Paused", "Unpaused":
		out = model.PauseEventData{Account: f.address("account")}
	case "PoolPauseChanged":
		out = model.PoolPauseChangedData{
			PoolID:  f.id("poolId"),
			Account: f.address("account"),
			Paused:  f.flag("paused"),
		}
	case "FeeRecipientUpdated":
		out = model.FeeRecipientUpdatedData{
			Previous: f.address("previous"),
			Current:  f.address("current"),
		}
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if f.err != nil {
		return nil, f.err
	}
	return out, nil
}

// fieldReader reads typed values out of an unpacked event and keeps the
// first mismatch.
type fieldReader struct {
	fields map[string]interface{}
	err    error
}

func (f *fieldReader) fail(key string) {
	if f.err == nil {
		f.err = fmt.Errorf("field %s: unexpected %T", key, f.fields[key])
	}
}

func (f *fieldReader) address(key string) string {
	v, ok := f.fields[key].(common.Address)
	if !ok {
		f.fail(key)
		return ""
	}
	return v.Hex()
}

func (f *fieldReader) amount(key string) string {
	v, ok := f.fields[key].(*big.Int)
	if !ok || v == nil {
		f.fail(key)
		return ""
	}
	return v.String()
}

func (f *fieldReader) id(key string) uint64 {
	v, ok := f.fields[key].(*big.Int)
	if !ok || v == nil || !v.IsUint64() {
		f.fail(key)
		return 0
	}
	return v.Uint64()
}

func (f *fieldReader) u64(key string) uint64 {
	v, ok := f.fields[key].(uint64)
	if !ok {
		f.fail(key)
		return 0
	}
	return v
}

func (f *fieldReader) flag(key string) bool {
	v, ok := f.fields[key].(bool)
	if !ok {
		f.fail(key)
		return false
	}
	return v
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
