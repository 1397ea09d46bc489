package service

import (
	"testing"

	"fundingarb/internal/domain/model"
)

func f(v float64) *float64 { return &v }

// TestSignedRate 测试方向和 value 回退
func TestSignedRate(t *testing.T) {
	if got := SignedRate(model.FundingPoint{Rate: f(0.01), Direction: "short"}); got != -0.01 {
		t.Errorf("short: %v", got)
	}
	if got := SignedRate(model.FundingPoint{Value: 0.02, Direction: "long"}); got != 0.02 {
		t.Errorf("value fallback: %v", got)
	}
}

// TestDeriveHistory 测试统计字段
func TestDeriveHistory(t *testing.T) {
	points := []model.FundingPoint{
		{Timestamp: 3, Rate: f(0.03)},
		{Timestamp: 1, Rate: f(0.01)},
		{Timestamp: 2, Rate: f(0.02), Direction: "short"},
	}
	r := DeriveHistory(model.LighterMarket{MarketID: 1, Symbol: "BTC"}, points, 1000)
	if len(r.Series) != 3 || r.Series[0] != 0.01 || r.Series[1] != -0.02 || r.Series[2] != 0.03 {
		t.Fatalf("series = %v", r.Series)
	}
	if !almostEqual(*r.SevenDayRate, 0.02) {
		t.Errorf("sum = %v", *r.SevenDayRate)
	}
	if !almostEqual(*r.AverageRate, 0.02/3) {
		t.Errorf("avg = %v", *r.AverageRate)
	}
	if *r.CurrentRate != 0.03 {
		t.Errorf("current = %v", *r.CurrentRate)
	}
	if !almostEqual(*r.SevenDayProfit, 0.2) {
		t.Errorf("profit = %v", *r.SevenDayProfit)
	}
	want := (0.2 / 2000) * (365.0 / 7) * 100
	if !almostEqual(*r.AnnualizedRate, want) {
		t.Errorf("annualized = %v, want %v", *r.AnnualizedRate, want)
	}
}

// TestDeriveHistoryEmpty 没有数据时保留当前费率
func TestDeriveHistoryEmpty(t *testing.T) {
	r := DeriveHistory(model.LighterMarket{Symbol: "ETH", CurrentRate: f(0.001)}, nil, 1000)
	if r.AverageRate != nil || r.SevenDayRate != nil || r.CurrentRate == nil || *r.CurrentRate != 0.001 {
		t.Errorf("unexpected %+v", r)
	}
}

// TestFilterHistoryMarkets 去重和排除
func TestFilterHistoryMarkets(t *testing.T) {
	in := []model.LighterMarket{
		{MarketID: 1, Symbol: "BTC"},
		{MarketID: 1, Symbol: "btc"},
		{MarketID: 2, Symbol: "TSLA"},
		{MarketID: 3, Symbol: "EURUSD"},
		{MarketID: 4, Symbol: "ETH"},
		{MarketID: 5, Symbol: ""},
	}
	out := FilterHistoryMarkets(in, ExcludedHistorySymbols)
	if len(out) != 2 || out[0].Symbol != "BTC" || out[1].Symbol != "ETH" {
		t.Errorf("unexpected %+v", out)
	}
}

// TestHasPair 测试 binance 候选交易对
func TestHasPair(t *testing.T) {
	pairs := map[string]struct{}{"BTCUSDT": {}, "ETHUSDT": {}}
	for _, s := range []string{"BTC", "BTCUSDT", "ETHUSD", "ETHUSDC"} {
		if !HasPair(s, pairs) {
			t.Errorf("%s should match", s)
		}
	}
	if HasPair("DOGE", pairs) {
		t.Error("DOGE should not match")
	}
}
