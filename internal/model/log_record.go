package model

// LogRecord is a ledger notification encoded as an EVM-style log. Every
// notification is its own block: BlockNumber carries the outbox sequence
// number and LogIndex is always zero.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	TxHash      string   `json:"tx_hash"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at,omitempty"`
}

// Seq returns the outbox sequence number of the record.
func (lr LogRecord) Seq() uint64 {
	return lr.BlockNumber
}

// Topic0 returns the event signature topic, or "" when the record has none.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}
