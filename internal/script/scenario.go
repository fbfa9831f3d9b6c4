package script

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted ledger session. Addresses may be given as hex or
// as names declared under accounts.
type Scenario struct {
	Admin        string            `yaml:"admin"`
	FeeRecipient string            `yaml:"fee_recipient"`
	Custody      string            `yaml:"custody"`
	FeeBps       uint64            `yaml:"fee_bps"`
	StartTime    uint64            `yaml:"start_time"`
	Accounts     map[string]string `yaml:"accounts"`
	Mint         []Mint            `yaml:"mint"`
	Approve      []Approval        `yaml:"approve"`
	Steps        []Step            `yaml:"steps"`
}

type Mint struct {
	Token  string `yaml:"token"`
	To     string `yaml:"to"`
	Amount string `yaml:"amount"`
}

// Approval defaults Spender to the ledger custody account.
type Approval struct {
	Token   string `yaml:"token"`
	Owner   string `yaml:"owner"`
	Spender string `yaml:"spender"`
	Amount  string `yaml:"amount"`
}

// Step is one operation. Only the fields the op reads are used.
type Step struct {
	At      *uint64 `yaml:"at"`
	Advance uint64  `yaml:"advance"`
	Op      string  `yaml:"op"`
	Caller  string  `yaml:"caller"`

	Recipient string `yaml:"recipient"`
	Token     string `yaml:"token"`
	Deposit   string `yaml:"deposit"`
	Rate      string `yaml:"rate"`
	Duration  uint64 `yaml:"duration"`
	StreamID  uint64 `yaml:"stream_id"`

	PoolID   uint64 `yaml:"pool_id"`
	TokenA   string `yaml:"token_a"`
	TokenB   string `yaml:"token_b"`
	AmountA  string `yaml:"amount_a"`
	AmountB  string `yaml:"amount_b"`
	Shares   string `yaml:"shares"`
	TokenIn  string `yaml:"token_in"`
	AmountIn string `yaml:"amount_in"`
	MinOut   string `yaml:"min_out"`

	Account string `yaml:"account"`
	Owner   string `yaml:"owner"`
	Spender string `yaml:"spender"`
	To      string `yaml:"to"`
	Amount  string `yaml:"amount"`

	ExpectError string            `yaml:"expect_error"`
	Expect      map[string]string `yaml:"expect"`
}

var errorKinds = map[string]bool{
	"validation":          true,
	"authorization":       true,
	"state":               true,
	"slippage":            true,
	"insufficient_shares": true,
	"transfer":            true,
	"not_found":           true,
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Admin == "" {
		return fmt.Errorf("scenario: admin is required")
	}
	if sc.Custody == "" {
		return fmt.Errorf("scenario: custody is required")
	}
	for i, step := range sc.Steps {
		if _, ok := handlers[step.Op]; !ok {
			return fmt.Errorf("scenario: step %d: unknown op %q", i, step.Op)
		}
		if step.At != nil && step.Advance != 0 {
			return fmt.Errorf("scenario: step %d: at and advance are exclusive", i)
		}
		if step.ExpectError != "" && !errorKinds[step.ExpectError] {
			return fmt.Errorf("scenario: step %d: unknown error kind %q", i, step.ExpectError)
		}
		if step.ExpectError != "" && len(step.Expect) > 0 {
			return fmt.Errorf("scenario: step %d: expect and expect_error are exclusive", i)
		}
	}
	return nil
}
