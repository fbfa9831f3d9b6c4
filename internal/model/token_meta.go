package model

// TokenMeta captures ERC20 metadata used for display formatting.
type TokenMeta struct {
	Address  string `json:"address" yaml:"address"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
	// Source is "rpc" for fetched metadata and "config" for static entries.
	Source string `json:"source,omitempty" yaml:"-"`
}
