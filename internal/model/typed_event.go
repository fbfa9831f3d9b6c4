package model

// TypedEvent is a decoded ledger notification.
type TypedEvent struct {
	ChainID   uint64     `json:"chain_id"`
	Seq       uint64     `json:"seq"`
	TxHash    string     `json:"tx_hash"`
	Address   string     `json:"address"`
	EventName string     `json:"event_name"`
	Timestamp uint64     `json:"timestamp"`
	Decoded   any        `json:"decoded"`
	Raw       *RawLogRef `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
