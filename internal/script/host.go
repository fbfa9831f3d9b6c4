package script

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"payflow/internal/escrow"
	"payflow/internal/ledger"
)

// ErrExpectation is returned when a step outcome differs from what the
// scenario declares.
var ErrExpectation = errors.New("script: expectation failed")

// StepResult is the outcome of one step.
type StepResult struct {
	Index  int               `json:"index"`
	Op     string            `json:"op"`
	Time   uint64            `json:"time"`
	Caller string            `json:"caller,omitempty"`
	Output map[string]string `json:"output,omitempty"`
	Error  string            `json:"error,omitempty"`
	Kind   string            `json:"kind,omitempty"`
}

// Host runs a scenario against a fresh ledger and bank with a manual clock.
type Host struct {
	sc       *Scenario
	accounts map[string]common.Address
	bank     *escrow.Bank
	ledger   *ledger.Ledger
	custody  common.Address
	now      uint64
	logger   *zap.Logger
}

// NewHost builds the ledger and applies the scenario's mints and approvals.
func NewHost(sc *Scenario, logger *zap.Logger) (*Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Host{
		sc:       sc,
		accounts: make(map[string]common.Address, len(sc.Accounts)),
		bank:     escrow.NewBank(),
		now:      sc.StartTime,
		logger:   logger,
	}
	if h.now == 0 {
		h.now = uint64(time.Now().Unix())
	}
	for name, hex := range sc.Accounts {
		if !common.IsHexAddress(hex) {
			return nil, fmt.Errorf("account %s: invalid address %q", name, hex)
		}
		h.accounts[strings.ToLower(name)] = common.HexToAddress(hex)
	}

	cfg := ledger.Config{FeeBps: sc.FeeBps}
	var err error
	if cfg.Admin, err = h.Address(sc.Admin); err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	if cfg.Custody, err = h.Address(sc.Custody); err != nil {
		return nil, fmt.Errorf("custody: %w", err)
	}
	if sc.FeeRecipient != "" {
		if cfg.FeeRecipient, err = h.Address(sc.FeeRecipient); err != nil {
			return nil, fmt.Errorf("fee recipient: %w", err)
		}
	}
	h.custody = cfg.Custody

	h.ledger, err = ledger.New(cfg, h.bank, logger, ledger.WithClock(h.clock))
	if err != nil {
		return nil, err
	}

	for i, m := range sc.Mint {
		if err := h.mint(m.Token, m.To, m.Amount); err != nil {
			return nil, fmt.Errorf("mint %d: %w", i, err)
		}
	}
	for i, a := range sc.Approve {
		if err := h.approve(a.Token, a.Owner, a.Spender, a.Amount); err != nil {
			return nil, fmt.Errorf("approve %d: %w", i, err)
		}
	}
	return h, nil
}

func (h *Host) Ledger() *ledger.Ledger { return h.ledger }

func (h *Host) Bank() *escrow.Bank { return h.bank }

// Now returns the current scenario time in unix seconds.
func (h *Host) Now() uint64 { return h.now }

func (h *Host) clock() time.Time {
	return time.Unix(int64(h.now), 0)
}

// Address resolves an account name or a hex address.
func (h *Host) Address(ref string) (common.Address, error) {
	ref = strings.TrimSpace(ref)
	if addr, ok := h.accounts[strings.ToLower(ref)]; ok {
		return addr, nil
	}
	if !common.IsHexAddress(ref) {
		return common.Address{}, fmt.Errorf("unknown account %q", ref)
	}
	return common.HexToAddress(ref), nil
}

// Run executes every step in order. It stops at the first step whose
// outcome does not match its expectation and returns the results so far.
func (h *Host) Run() ([]StepResult, error) {
	results := make([]StepResult, 0, len(h.sc.Steps))
	for i, step := range h.sc.Steps {
		res, err := h.Step(i, step)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Step advances the clock and executes a single step.
func (h *Host) Step(index int, step Step) (StepResult, error) {
	switch {
	case step.At != nil:
		if *step.At < h.now {
			return StepResult{Index: index, Op: step.Op}, fmt.Errorf("step %d: time %d is before %d", index, *step.At, h.now)
		}
		h.now = *step.At
	case step.Advance > 0:
		h.now += step.Advance
	}

	res := StepResult{Index: index, Op: step.Op, Time: h.now, Caller: step.Caller}
	handler, ok := handlers[step.Op]
	if !ok {
		return res, fmt.Errorf("step %d: unknown op %q", index, step.Op)
	}

	out, err := handler(h, step)
	res.Output = out
	if err != nil {
		res.Error = err.Error()
		res.Kind = ledger.Kind(err)
	}
	h.logger.Debug("step", zap.Int("index", index), zap.String("op", step.Op), zap.Uint64("time", h.now), zap.String("kind", res.Kind), zap.Error(err))

	if err := checkOutcome(step, res); err != nil {
		return res, fmt.Errorf("%w: step %d (%s): %v", ErrExpectation, index, step.Op, err)
	}
	return res, nil
}

func checkOutcome(step Step, res StepResult) error {
	if step.ExpectError != "" {
		if res.Error == "" {
			return fmt.Errorf("expected %s error, got success", step.ExpectError)
		}
		if res.Kind != step.ExpectError {
			return fmt.Errorf("expected %s error, got %q: %s", step.ExpectError, res.Kind, res.Error)
		}
		return nil
	}
	if res.Error != "" {
		return fmt.Errorf("unexpected error: %s", res.Error)
	}
	for key, want := range step.Expect {
		got, ok := res.Output[key]
		if !ok {
			return fmt.Errorf("no output %q", key)
		}
		if !strings.EqualFold(got, strings.TrimSpace(want)) {
			return fmt.Errorf("%s = %s, want %s", key, got, want)
		}
	}
	return nil
}

func (h *Host) mint(tokenRef, toRef, amount string) error {
	token, err := h.Address(tokenRef)
	if err != nil {
		return err
	}
	to, err := h.Address(toRef)
	if err != nil {
		return err
	}
	v, err := ledger.ParseAmount(amount)
	if err != nil {
		return err
	}
	return h.bank.Mint(token, to, v)
}

func (h *Host) approve(tokenRef, ownerRef, spenderRef, amount string) error {
	token, err := h.Address(tokenRef)
	if err != nil {
		return err
	}
	owner, err := h.Address(ownerRef)
	if err != nil {
		return err
	}
	spender := h.custody
	if spenderRef != "" {
		if spender, err = h.Address(spenderRef); err != nil {
			return err
		}
	}
	v, err := ledger.ParseAmount(amount)
	if err != nil {
		return err
	}
	h.bank.Approve(token, owner, spender, v)
	return nil
}

func amountOut(v *uint256.Int) string {
	return ledger.FormatAmount(v)
}
