package model

// Amounts are base-10 strings so 256-bit values survive JSON.

// StreamCreatedData is the decoded StreamCreated payload.
type StreamCreatedData struct {
	StreamID      uint64 `json:"stream_id"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	Token         string `json:"token"`
	Deposit       string `json:"deposit"`
	RatePerSecond string `json:"rate_per_second"`
	StartTime     uint64 `json:"start_time"`
	Duration      uint64 `json:"duration"`
}

// StreamClaimedData is the decoded StreamClaimed payload.
type StreamClaimedData struct {
	StreamID  uint64 `json:"stream_id"`
	Recipient string `json:"recipient"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Withdrawn string `json:"withdrawn"`
}

// StreamCancelledData is the decoded StreamCancelled payload.
type StreamCancelledData struct {
	StreamID        uint64 `json:"stream_id"`
	Sender          string `json:"sender"`
	Recipient       string `json:"recipient"`
	Token           string `json:"token"`
	RecipientAmount string `json:"recipient_amount"`
	SenderRefund    string `json:"sender_refund"`
}

// PoolCreatedData is the decoded PoolCreated payload.
type PoolCreatedData struct {
	PoolID  uint64 `json:"pool_id"`
	Creator string `json:"creator"`
	TokenA  string `json:"token_a"`
	TokenB  string `json:"token_b"`
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
	Shares  string `json:"shares"`
}

// LiquidityEventData is the decoded LiquidityAdded or LiquidityRemoved payload.
type LiquidityEventData struct {
	PoolID   uint64 `json:"pool_id"`
	Provider string `json:"provider"`
	AmountA  string `json:"amount_a"`
	AmountB  string `json:"amount_b"`
	Shares   string `json:"shares"`
}

// SwappedData is the decoded Swapped payload.
type SwappedData struct {
	PoolID    uint64 `json:"pool_id"`
	Trader    string `json:"trader"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Fee       string `json:"fee"`
}

// FeesCollectedData is the decoded FeesCollected payload.
type FeesCollectedData struct {
	PoolID    uint64 `json:"pool_id"`
	Recipient string `json:"recipient"`
	AmountA   string `json:"amount_a"`
	AmountB   string `json:"amount_b"`
}

// PauseEventData is the decoded Paused or Unpaused payload.
type PauseEventData struct {
	Account string `json:"account"`
}

// PoolPauseChangedData is the decoded PoolPauseChanged payload.
type PoolPauseChangedData struct {
	PoolID  uint64 `json:"pool_id"`
	Account string `json:"account"`
	Paused  bool   `json:"paused"`
}

// FeeRecipientUpdatedData is the decoded FeeRecipientUpdated payload.
type FeeRecipientUpdatedData struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
}
