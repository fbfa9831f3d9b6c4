package tokenmeta

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payflow/internal/model"
)

// Cache holds token metadata by address.
type Cache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewCache() *Cache {
	return &Cache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *Cache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *Cache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Resolver answers metadata from static entries first, then over RPC when
// a caller is configured. Fetched results are cached.
type Resolver struct {
	caller Caller
	cache  *Cache
	logger *zap.Logger
}

// NewResolver seeds the cache with static entries. caller may be nil.
func NewResolver(caller Caller, static []model.TokenMeta, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := NewCache()
	for _, meta := range static {
		addr := strings.TrimSpace(meta.Address)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid token address: %q", meta.Address)
		}
		token := common.HexToAddress(addr)
		meta.Address = token.Hex()
		meta.Source = "config"
		cache.Set(token, meta)
	}
	return &Resolver{caller: caller, cache: cache, logger: logger}, nil
}

// Resolve returns metadata for token.
func (r *Resolver) Resolve(ctx context.Context, token string) (model.TokenMeta, error) {
	if !common.IsHexAddress(token) {
		return model.TokenMeta{}, fmt.Errorf("invalid token address: %s", token)
	}
	addr := common.HexToAddress(token)
	if meta, ok := r.cache.Get(addr); ok {
		return meta, nil
	}
	if r.caller == nil {
		return model.TokenMeta{}, fmt.Errorf("no metadata for %s", addr.Hex())
	}

	meta, err := FetchTokenMeta(ctx, r.caller, addr, r.logger)
	if err != nil {
		return model.TokenMeta{}, err
	}
	r.cache.Set(addr, meta)
	r.logger.Debug("token metadata fetched", zap.String("token", addr.Hex()), zap.String("symbol", meta.Symbol), zap.Uint8("decimals", meta.Decimals))
	return meta, nil
}

// FormatAmount renders a raw token amount with decimals fractional digits.
func FormatAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	exp := int32(decimals)
	return decimal.NewFromBigInt(value, -exp).StringFixed(exp)
}
