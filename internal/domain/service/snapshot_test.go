package service

import (
	"math"
	"testing"

	"fundingarb/internal/domain/model"
)

// TestValidRows 测试载入快照时的行校验
func TestValidRows(t *testing.T) {
	rows := []model.UnifiedRow{
		{Symbol: "BTC", Rates: map[string]float64{"binance": 0.0001, "lighter": -0.0002}},
		{Symbol: "", Rates: map[string]float64{"binance": 0.0001, "lighter": 0.0002}},
		{Symbol: "ETH", Rates: map[string]float64{"binance": 0.0001}},
		{Symbol: "SOL", Rates: map[string]float64{"binance": math.NaN(), "lighter": 0.1}},
		{Symbol: "DOGE", Rates: map[string]float64{"binance": 0.1, "lighter": 0.1}, Spreads: map[string]float64{"binance": math.Inf(1)}},
		{Symbol: "XRP", Rates: map[string]float64{"binance": 0.1, "lighter": 0.1}, Quotes: map[string]model.Quote{"binance": {Bid: math.NaN(), Ask: 1}}},
	}

	got := ValidRows(rows)
	if len(got) != 1 || got[0].Symbol != "BTC" {
		t.Fatalf("expected only BTC, got %+v", got)
	}
	if out := ValidRows(nil); out == nil {
		t.Error("ValidRows(nil) should not be nil")
	}
}
