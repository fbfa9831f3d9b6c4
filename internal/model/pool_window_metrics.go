package model

import "time"

// PoolWindowMetrics stores aggregated swap activity for a pool window.
// Volumes and fees are raw token units; the Display fields are scaled by
// token decimals when metadata is known.
type PoolWindowMetrics struct {
	ChainID        uint64
	PoolID         uint64
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	VolumeA        string
	VolumeB        string
	FeeA           string
	FeeB           string
	VolumeADisplay *string
	VolumeBDisplay *string
	FeeADisplay    *string
	FeeBDisplay    *string
	LastSeq        uint64
}
