package model

import (
	"encoding/json"
	"testing"
)

func TestLogRecordAccessors(t *testing.T) {
	lr := LogRecord{BlockNumber: 42, Topics: []string{"0xaaa", "0xbbb"}}
	if lr.Seq() != 42 {
		t.Fatalf("seq = %d, want 42", lr.Seq())
	}
	if lr.Topic0() != "0xaaa" {
		t.Fatalf("topic0 = %q", lr.Topic0())
	}
	if (LogRecord{}).Topic0() != "" {
		t.Fatalf("empty record should have no topic0")
	}
}

func TestSwappedDataJSONStringFields(t *testing.T) {
	payload := SwappedData{
		PoolID:    3,
		Trader:    "0x1111111111111111111111111111111111111111",
		TokenIn:   "0x00000000000000000000000000000000000000a1",
		TokenOut:  "0x00000000000000000000000000000000000000b2",
		AmountIn:  "115792089237316195423570985008687907853269984665640564039457584007913129639935",
		AmountOut: "42",
		Fee:       "0",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount_in", "amount_out", "fee"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
	if _, ok := decoded["pool_id"].(float64); !ok {
		t.Fatalf("pool_id should be a number")
	}
}
