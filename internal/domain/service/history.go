package service

import (
	"fmt"
	"sort"
	"strings"

	"fundingarb/internal/domain/model"
)

// HistoryDays 统计窗口
const HistoryDays = 7

// ExcludedHistorySymbols 股票、外汇和贵金属市场不参与统计
var ExcludedHistorySymbols = []string{
	"COIN", "HOOD", "NVDA", "TSLA", "PLTR", "GOOGL", "META", "AAPL", "MSFT", "AMZN",
	"EURUSD", "GBPUSD", "USDCAD", "USDCHF", "USDJPY", "USDKRW", "AUDUSD", "NZDUSD",
	"XAU", "XAG",
}

// SignedRate rate 缺失时用 value，short 方向取负
func SignedRate(p model.FundingPoint) float64 {
	v := p.Value
	if p.Rate != nil {
		v = *p.Rate
	}
	if strings.EqualFold(p.Direction, "short") {
		return -v
	}
	return v
}

// BuildSeries 按时间排序后的带符号费率
func BuildSeries(points []model.FundingPoint) []float64 {
	sorted := append([]model.FundingPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	out := make([]float64, 0, len(sorted))
	for _, p := range sorted {
		if v := SignedRate(p); model.IsFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// DeriveHistory 根据序列计算均值、7 天累计、收益和年化
func DeriveHistory(market model.LighterMarket, points []model.FundingPoint, principal float64) model.HistoryRow {
	series := BuildSeries(points)
	row := model.HistoryRow{
		MarketID:    market.MarketID,
		Symbol:      market.Symbol,
		Series:      series,
		CurrentRate: market.CurrentRate,
	}
	if len(series) == 0 {
		return row
	}

	var sum float64
	for _, v := range series {
		sum += v
	}
	avg := sum / float64(len(series))
	last := series[len(series)-1]
	row.AverageRate = &avg
	row.CurrentRate = &last
	row.SevenDayRate = &sum

	if principal > 0 {
		profit := principal * sum / 100
		annualized := (profit / (2 * principal)) * (365.0 / HistoryDays) * 100
		row.SevenDayProfit = &profit
		row.AnnualizedRate = &annualized
	}
	return row
}

// FilterHistoryMarkets 按 (marketId, symbol) 去重并去掉排除列表
func FilterHistoryMarkets(markets []model.LighterMarket, excluded []string) []model.LighterMarket {
	skip := make(map[string]struct{}, len(excluded))
	for _, s := range excluded {
		skip[strings.ToUpper(s)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(markets))
	out := make([]model.LighterMarket, 0, len(markets))
	for _, m := range markets {
		sym := strings.ToUpper(strings.TrimSpace(m.Symbol))
		if sym == "" {
			continue
		}
		if _, ok := skip[sym]; ok {
			continue
		}
		key := fmt.Sprintf("%d-%s", m.MarketID, sym)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		m.Symbol = sym
		out = append(out, m)
	}
	return out
}

// BinanceCandidates 在 binance 现货上可能对应的 USDT 交易对
func BinanceCandidates(symbol string) []string {
	s := strings.ToUpper(symbol)
	out := []string{s, s + "USDT"}
	if strings.HasSuffix(s, "USDC") {
		out = append(out, strings.TrimSuffix(s, "USDC")+"USDT")
	} else if strings.HasSuffix(s, "USD") {
		out = append(out, strings.TrimSuffix(s, "USD")+"USDT")
	}
	return out
}

// HasPair 任一候选在 pairs 中
func HasPair(symbol string, pairs map[string]struct{}) bool {
	for _, c := range BinanceCandidates(symbol) {
		if _, ok := pairs[c]; ok {
			return true
		}
	}
	return false
}
