package model

// DecodeError records a log record that could not be decoded.
type DecodeError struct {
	ChainID uint64 `json:"chain_id"`
	Seq     uint64 `json:"seq"`
	TxHash  string `json:"tx_hash"`
	Address string `json:"address"`
	Topic0  string `json:"topic0"`
	Error   string `json:"error"`
}
