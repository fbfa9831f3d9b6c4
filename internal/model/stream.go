package model

// StreamRow is the mirrored state of a payment stream.
type StreamRow struct {
	ChainID       uint64 `json:"chain_id"`
	StreamID      uint64 `json:"stream_id"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	Token         string `json:"token"`
	Deposit       string `json:"deposit"`
	RatePerSecond string `json:"rate_per_second"`
	StartTime     uint64 `json:"start_time"`
	Duration      uint64 `json:"duration"`
	Withdrawn     string `json:"withdrawn"`
	// Status is "active", "completed" or "cancelled".
	Status     string `json:"status"`
	CreatedSeq uint64 `json:"created_seq"`
	LastSeq    uint64 `json:"last_seq"`
}
