package mirror

import (
	"fmt"
	"math/big"
	"sort"

	"payflow/internal/model"
)

// Accumulator holds swap totals for one pool window.
type Accumulator struct {
	ChainID     uint64
	PoolID      uint64
	TokenA      string
	TokenB      string
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64
	VolumeA     *big.Int
	VolumeB     *big.Int
	FeeA        *big.Int
	FeeB        *big.Int
	LastSeq     uint64
}

func NewAccumulator(pool model.PoolRow, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:     pool.ChainID,
		PoolID:      pool.PoolID,
		TokenA:      pool.TokenA,
		TokenB:      pool.TokenB,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeA:     new(big.Int),
		VolumeB:     new(big.Int),
		FeeA:        new(big.Int),
		FeeB:        new(big.Int),
	}
}

// AddSwap counts both legs of a swap as volume and the fee in the input token.
func (a *Accumulator) AddSwap(seq uint64, swap model.SwappedData) error {
	amounts, err := parseAmounts(swap.AmountIn, swap.AmountOut, swap.Fee)
	if err != nil {
		return err
	}
	amountIn, amountOut, fee := amounts[0], amounts[1], amounts[2]

	switch {
	case sameAddress(swap.TokenIn, a.TokenA):
		a.VolumeA.Add(a.VolumeA, amountIn)
		a.VolumeB.Add(a.VolumeB, amountOut)
		a.FeeA.Add(a.FeeA, fee)
	case sameAddress(swap.TokenIn, a.TokenB):
		a.VolumeB.Add(a.VolumeB, amountIn)
		a.VolumeA.Add(a.VolumeA, amountOut)
		a.FeeB.Add(a.FeeB, fee)
	default:
		return fmt.Errorf("token %s not in pool %d", swap.TokenIn, a.PoolID)
	}

	a.SwapCount++
	if seq > a.LastSeq {
		a.LastSeq = seq
	}
	return nil
}

type windowKey struct {
	poolID uint64
	start  uint64
}

// Windows buckets swaps into fixed windows per pool.
type Windows struct {
	size uint64
	acc  map[windowKey]*Accumulator
}

func NewWindows(sizeSeconds uint64) (*Windows, error) {
	if sizeSeconds == 0 {
		return nil, fmt.Errorf("window seconds must be > 0")
	}
	return &Windows{size: sizeSeconds, acc: make(map[windowKey]*Accumulator)}, nil
}

func (w *Windows) Size() uint64 {
	return w.size
}

// Add records a swap on pool at ts.
func (w *Windows) Add(pool model.PoolRow, seq, ts uint64, swap model.SwappedData) error {
	start := windowStart(ts, w.size)
	key := windowKey{poolID: pool.PoolID, start: start}
	acc := w.acc[key]
	if acc == nil {
		acc = NewAccumulator(pool, start, start+w.size)
		w.acc[key] = acc
	}
	return acc.AddSwap(seq, swap)
}

// ChangedIn returns windows whose last swap falls in r, ordered by pool
// then window start.
func (w *Windows) ChangedIn(r SeqRange) []*Accumulator {
	var out []*Accumulator
	for _, acc := range w.acc {
		if r.Contains(acc.LastSeq) {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PoolID != out[j].PoolID {
			return out[i].PoolID < out[j].PoolID
		}
		return out[i].WindowStart < out[j].WindowStart
	})
	return out
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}
