package mirror

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"payflow/internal/model"
)

const (
	statusActive    = "active"
	statusCompleted = "completed"
	statusCancelled = "cancelled"
)

type streamState struct {
	row       model.StreamRow
	deposit   *big.Int
	withdrawn *big.Int
}

type poolState struct {
	row         model.PoolRow
	reserveA    *big.Int
	reserveB    *big.Int
	totalShares *big.Int
	feesA       *big.Int
	feesB       *big.Int
	paused      bool
}

type positionKey struct {
	poolID uint64
	owner  string
}

type positionState struct {
	row    model.PositionRow
	shares *big.Int
}

// Projection rebuilds ledger state from decoded events. Events must be
// applied in seq order.
type Projection struct {
	streams   map[uint64]*streamState
	pools     map[uint64]*poolState
	positions map[positionKey]*positionState
	paused    bool
	lastSeq   uint64
}

func NewProjection() *Projection {
	return &Projection{
		streams:   make(map[uint64]*streamState),
		pools:     make(map[uint64]*poolState),
		positions: make(map[positionKey]*positionState),
	}
}

// LastSeq returns the seq of the last applied event.
func (p *Projection) LastSeq() uint64 {
	return p.lastSeq
}

// Apply folds one event into the projection. A global pause marks every
// pool row paused; fee recipient changes carry no row state.
func (p *Projection) Apply(ev *model.TypedEvent) error {
	if ev == nil {
		return fmt.Errorf("nil event")
	}
	if ev.Seq <= p.lastSeq {
		return fmt.Errorf("event seq %d not after %d", ev.Seq, p.lastSeq)
	}

	var err error
	switch data := ev.Decoded.(type) {
	case model.StreamCreatedData:
		err = p.streamCreated(ev, data)
	case model.StreamClaimedData:
		err = p.streamClaimed(ev, data)
	case model.StreamCancelledData:
		err = p.streamCancelled(ev, data)
	case model.PoolCreatedData:
		err = p.poolCreated(ev, data)
	case model.LiquidityEventData:
		err = p.liquidity(ev, data)
	case model.SwappedData:
		err = p.swapped(ev, data)
	case model.FeesCollectedData:
		err = p.feesCollected(ev, data)
	case model.PoolPauseChangedData:
		err = p.poolPauseChanged(ev, data)
	case model.PauseEventData:
		p.setPaused(ev, ev.EventName == "Paused")
	case model.FeeRecipientUpdatedData:
	default:
		err = fmt.Errorf("unsupported payload %T", ev.Decoded)
	}
	if err != nil {
		return fmt.Errorf("apply %s seq %d: %w", ev.EventName, ev.Seq, err)
	}
	p.lastSeq = ev.Seq
	return nil
}

func (p *Projection) streamCreated(ev *model.TypedEvent, data model.StreamCreatedData) error {
	if _, ok := p.streams[data.StreamID]; ok {
		return fmt.Errorf("stream %d already exists", data.StreamID)
	}
	deposit, err := parseAmount(data.Deposit)
	if err != nil {
		return err
	}
	p.streams[data.StreamID] = &streamState{
		row: model.StreamRow{
			ChainID:       ev.ChainID,
			StreamID:      data.StreamID,
			Sender:        data.Sender,
			Recipient:     data.Recipient,
			Token:         data.Token,
			Deposit:       data.Deposit,
			RatePerSecond: data.RatePerSecond,
			StartTime:     data.StartTime,
			Duration:      data.Duration,
			Status:        statusActive,
			CreatedSeq:    ev.Seq,
		},
		deposit:   deposit,
		withdrawn: new(big.Int),
	}
	p.streams[data.StreamID].touch(ev.Seq)
	return nil
}

func (p *Projection) streamClaimed(ev *model.TypedEvent, data model.StreamClaimedData) error {
	s, ok := p.streams[data.StreamID]
	if !ok {
		return fmt.Errorf("unknown stream %d", data.StreamID)
	}
	withdrawn, err := parseAmount(data.Withdrawn)
	if err != nil {
		return err
	}
	s.withdrawn = withdrawn
	if withdrawn.Cmp(s.deposit) >= 0 {
		s.row.Status = statusCompleted
	}
	s.touch(ev.Seq)
	return nil
}

func (p *Projection) streamCancelled(ev *model.TypedEvent, data model.StreamCancelledData) error {
	s, ok := p.streams[data.StreamID]
	if !ok {
		return fmt.Errorf("unknown stream %d", data.StreamID)
	}
	paid, err := parseAmount(data.RecipientAmount)
	if err != nil {
		return err
	}
	s.withdrawn.Add(s.withdrawn, paid)
	s.row.Status = statusCancelled
	s.touch(ev.Seq)
	return nil
}

func (p *Projection) poolCreated(ev *model.TypedEvent, data model.PoolCreatedData) error {
	if _, ok := p.pools[data.PoolID]; ok {
		return fmt.Errorf("pool %d already exists", data.PoolID)
	}
	amounts, err := parseAmounts(data.AmountA, data.AmountB, data.Shares)
	if err != nil {
		return err
	}
	pool := &poolState{
		row: model.PoolRow{
			ChainID:    ev.ChainID,
			PoolID:     data.PoolID,
			TokenA:     data.TokenA,
			TokenB:     data.TokenB,
			CreatedSeq: ev.Seq,
		},
		reserveA:    amounts[0],
		reserveB:    amounts[1],
		totalShares: amounts[2],
		feesA:       new(big.Int),
		feesB:       new(big.Int),
	}
	pool.touch(ev.Seq)
	p.pools[data.PoolID] = pool
	p.addShares(ev, data.PoolID, data.Creator, amounts[2])
	return nil
}

func (p *Projection) liquidity(ev *model.TypedEvent, data model.LiquidityEventData) error {
	pool, ok := p.pools[data.PoolID]
	if !ok {
		return fmt.Errorf("unknown pool %d", data.PoolID)
	}
	amounts, err := parseAmounts(data.AmountA, data.AmountB, data.Shares)
	if err != nil {
		return err
	}

	if ev.EventName == "LiquidityRemoved" {
		pool.reserveA.Sub(pool.reserveA, amounts[0])
		pool.reserveB.Sub(pool.reserveB, amounts[1])
		pool.totalShares.Sub(pool.totalShares, amounts[2])
		p.addShares(ev, data.PoolID, data.Provider, new(big.Int).Neg(amounts[2]))
	} else {
		pool.reserveA.Add(pool.reserveA, amounts[0])
		pool.reserveB.Add(pool.reserveB, amounts[1])
		pool.totalShares.Add(pool.totalShares, amounts[2])
		p.addShares(ev, data.PoolID, data.Provider, amounts[2])
	}
	pool.touch(ev.Seq)
	return nil
}

func (p *Projection) swapped(ev *model.TypedEvent, data model.SwappedData) error {
	pool, ok := p.pools[data.PoolID]
	if !ok {
		return fmt.Errorf("unknown pool %d", data.PoolID)
	}
	amounts, err := parseAmounts(data.AmountIn, data.AmountOut, data.Fee)
	if err != nil {
		return err
	}
	amountIn, amountOut, fee := amounts[0], amounts[1], amounts[2]
	credited := new(big.Int).Sub(amountIn, fee)

	switch {
	case sameAddress(data.TokenIn, pool.row.TokenA):
		pool.reserveA.Add(pool.reserveA, credited)
		pool.feesA.Add(pool.feesA, fee)
		pool.reserveB.Sub(pool.reserveB, amountOut)
	case sameAddress(data.TokenIn, pool.row.TokenB):
		pool.reserveB.Add(pool.reserveB, credited)
		pool.feesB.Add(pool.feesB, fee)
		pool.reserveA.Sub(pool.reserveA, amountOut)
	default:
		return fmt.Errorf("token %s not in pool %d", data.TokenIn, data.PoolID)
	}
	pool.touch(ev.Seq)
	return nil
}

func (p *Projection) feesCollected(ev *model.TypedEvent, data model.FeesCollectedData) error {
	pool, ok := p.pools[data.PoolID]
	if !ok {
		return fmt.Errorf("unknown pool %d", data.PoolID)
	}
	amounts, err := parseAmounts(data.AmountA, data.AmountB)
	if err != nil {
		return err
	}
	pool.feesA.Sub(pool.feesA, amounts[0])
	pool.feesB.Sub(pool.feesB, amounts[1])
	pool.touch(ev.Seq)
	return nil
}

func (p *Projection) poolPauseChanged(ev *model.TypedEvent, data model.PoolPauseChangedData) error {
	pool, ok := p.pools[data.PoolID]
	if !ok {
		return fmt.Errorf("unknown pool %d", data.PoolID)
	}
	pool.paused = data.Paused
	pool.touch(ev.Seq)
	return nil
}

// setPaused records a global pause. Every pool's effective state changes, so
// every pool row is rewritten.
func (p *Projection) setPaused(ev *model.TypedEvent, paused bool) {
	p.paused = paused
	for _, pool := range p.pools {
		pool.touch(ev.Seq)
	}
}

func (p *Projection) addShares(ev *model.TypedEvent, poolID uint64, owner string, delta *big.Int) {
	key := positionKey{poolID: poolID, owner: strings.ToLower(owner)}
	pos, ok := p.positions[key]
	if !ok {
		pos = &positionState{
			row:    model.PositionRow{ChainID: ev.ChainID, PoolID: poolID, Owner: owner},
			shares: new(big.Int),
		}
		p.positions[key] = pos
	}
	pos.shares.Add(pos.shares, delta)
	pos.row.LastSeq = ev.Seq
}

// Pool returns the current row of a pool.
func (p *Projection) Pool(id uint64) (model.PoolRow, bool) {
	pool, ok := p.pools[id]
	if !ok {
		return model.PoolRow{}, false
	}
	return pool.snapshot(p.paused), true
}

// Stream returns the current row of a stream.
func (p *Projection) Stream(id uint64) (model.StreamRow, bool) {
	s, ok := p.streams[id]
	if !ok {
		return model.StreamRow{}, false
	}
	return s.snapshot(), true
}

// Position returns the share balance of owner in a pool.
func (p *Projection) Position(poolID uint64, owner string) (model.PositionRow, bool) {
	pos, ok := p.positions[positionKey{poolID: poolID, owner: strings.ToLower(owner)}]
	if !ok {
		return model.PositionRow{}, false
	}
	return pos.snapshot(), true
}

// Changed holds rows last touched inside a seq range.
type Changed struct {
	Streams   []model.StreamRow
	Pools     []model.PoolRow
	Positions []model.PositionRow
}

func (c Changed) Len() int {
	return len(c.Streams) + len(c.Pools) + len(c.Positions)
}

// ChangedIn returns rows whose LastSeq falls in r, ordered by id.
func (p *Projection) ChangedIn(r SeqRange) Changed {
	var out Changed
	for _, s := range p.streams {
		if r.Contains(s.row.LastSeq) {
			out.Streams = append(out.Streams, s.snapshot())
		}
	}
	for _, pool := range p.pools {
		if r.Contains(pool.row.LastSeq) {
			out.Pools = append(out.Pools, pool.snapshot(p.paused))
		}
	}
	for _, pos := range p.positions {
		if r.Contains(pos.row.LastSeq) {
			out.Positions = append(out.Positions, pos.snapshot())
		}
	}

	sort.Slice(out.Streams, func(i, j int) bool { return out.Streams[i].StreamID < out.Streams[j].StreamID })
	sort.Slice(out.Pools, func(i, j int) bool { return out.Pools[i].PoolID < out.Pools[j].PoolID })
	sort.Slice(out.Positions, func(i, j int) bool {
		a, b := out.Positions[i], out.Positions[j]
		if a.PoolID != b.PoolID {
			return a.PoolID < b.PoolID
		}
		return strings.ToLower(a.Owner) < strings.ToLower(b.Owner)
	})
	return out
}

func (s *streamState) touch(seq uint64) { s.row.LastSeq = seq }

func (s *streamState) snapshot() model.StreamRow {
	row := s.row
	row.Withdrawn = s.withdrawn.String()
	return row
}

func (p *poolState) touch(seq uint64) { p.row.LastSeq = seq }

func (p *poolState) snapshot(globalPause bool) model.PoolRow {
	row := p.row
	row.Paused = p.paused || globalPause
	row.ReserveA = p.reserveA.String()
	row.ReserveB = p.reserveB.String()
	row.TotalShares = p.totalShares.String()
	row.FeesA = p.feesA.String()
	row.FeesB = p.feesB.String()
	return row
}

func (p *positionState) snapshot() model.PositionRow {
	row := p.row
	row.Shares = p.shares.String()
	return row
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return parsed, nil
}

func parseAmounts(values ...string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		parsed, err := parseAmount(v)
		if err != nil {
			return nil, err
		}
		out[i] = parsed
	}
	return out, nil
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
