package tokenmeta

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflow/internal/model"
)

type fakeCaller struct {
	responses map[string][]byte
	calls     int
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	resp, ok := f.responses[string(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func packOutput(t *testing.T, l *lazyABI, method string, value interface{}) (string, []byte) {
	t.Helper()
	parsed, err := l.get()
	require.NoError(t, err)
	m := parsed.Methods[method]
	out, err := m.Outputs.Pack(value)
	require.NoError(t, err)
	return string(m.ID), out
}

func stringToken(t *testing.T) *fakeCaller {
	f := &fakeCaller{responses: map[string][]byte{}}
	for method, value := range map[string]interface{}{"decimals": uint8(6), "symbol": "USDC", "name": "USD Coin"} {
		id, out := packOutput(t, erc20String, method, value)
		f.responses[id] = out
	}
	return f
}

var usdc = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func TestFetchTokenMetaString(t *testing.T) {
	meta, err := FetchTokenMeta(context.Background(), stringToken(t), usdc, nil)
	require.NoError(t, err)
	assert.Equal(t, model.TokenMeta{Address: usdc.Hex(), Decimals: 6, Symbol: "USDC", Name: "USD Coin", Source: "rpc"}, meta)
}

func TestFetchTokenMetaBytes32(t *testing.T) {
	f := &fakeCaller{responses: map[string][]byte{}}
	id, out := packOutput(t, erc20String, "decimals", uint8(18))
	f.responses[id] = out
	var sym, name [32]byte
	copy(sym[:], "MKR")
	copy(name[:], "Maker")
	id, out = packOutput(t, erc20Bytes32, "symbol", sym)
	f.responses[id] = out
	id, out = packOutput(t, erc20Bytes32, "name", name)
	f.responses[id] = out

	meta, err := FetchTokenMeta(context.Background(), f, usdc, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), meta.Decimals)
	assert.Equal(t, "MKR", meta.Symbol)
	assert.Equal(t, "Maker", meta.Name)
}

func TestFetchTokenMetaRequiresDecimals(t *testing.T) {
	_, err := FetchTokenMeta(context.Background(), &fakeCaller{}, usdc, nil)
	require.Error(t, err)

	_, err = FetchTokenMeta(context.Background(), nil, usdc, nil)
	require.Error(t, err)
}

func TestResolverPrefersStaticAndCaches(t *testing.T) {
	caller := stringToken(t)
	tokenB := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	r, err := NewResolver(caller, []model.TokenMeta{{Address: tokenB.Hex(), Decimals: 8, Symbol: "WBTC"}}, nil)
	require.NoError(t, err)

	meta, err := r.Resolve(context.Background(), tokenB.Hex())
	require.NoError(t, err)
	assert.Equal(t, "config", meta.Source)
	assert.Equal(t, uint8(8), meta.Decimals)
	assert.Zero(t, caller.calls)

	_, err = r.Resolve(context.Background(), usdc.Hex())
	require.NoError(t, err)
	calls := caller.calls
	meta, err = r.Resolve(context.Background(), usdc.Hex())
	require.NoError(t, err)
	assert.Equal(t, "USDC", meta.Symbol)
	assert.Equal(t, calls, caller.calls)

	_, err = r.Resolve(context.Background(), "not-an-address")
	require.Error(t, err)
}

func TestResolverWithoutCaller(t *testing.T) {
	r, err := NewResolver(nil, nil, nil)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), usdc.Hex())
	require.Error(t, err)

	_, err = NewResolver(nil, []model.TokenMeta{{Address: "0x12"}}, nil)
	require.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		value    string
		decimals uint8
		want     string
	}{
		{"1500000", 6, "1.500000"},
		{"1", 18, "0.000000000000000001"},
		{"42", 0, "42"},
		{"0", 2, "0.00"},
	}
	for _, tc := range cases {
		v, ok := new(big.Int).SetString(tc.value, 10)
		require.True(t, ok)
		assert.Equal(t, tc.want, FormatAmount(v, tc.decimals))
	}
	assert.Equal(t, "0", FormatAmount(nil, 6))
}
