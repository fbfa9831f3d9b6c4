package model

// PoolRow is the mirrored state of a liquidity pool.
type PoolRow struct {
	ChainID     uint64 `json:"chain_id"`
	PoolID      uint64 `json:"pool_id"`
	TokenA      string `json:"token_a"`
	TokenB      string `json:"token_b"`
	ReserveA    string `json:"reserve_a"`
	ReserveB    string `json:"reserve_b"`
	TotalShares string `json:"total_shares"`
	FeesA       string `json:"fees_a"`
	FeesB       string `json:"fees_b"`
	Paused      bool   `json:"paused"`
	CreatedSeq  uint64 `json:"created_seq"`
	LastSeq     uint64 `json:"last_seq"`
}

// PositionRow is the mirrored LP share balance of one owner in one pool.
type PositionRow struct {
	ChainID uint64 `json:"chain_id"`
	PoolID  uint64 `json:"pool_id"`
	Owner   string `json:"owner"`
	Shares  string `json:"shares"`
	LastSeq uint64 `json:"last_seq"`
}
