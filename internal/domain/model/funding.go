package model

import (
	"math"
	"sort"
	"time"
)

// FundingObservation 单个交易所单个合约的资金费率，已归一化为 8h 小数
type FundingObservation struct {
	Venue      string    `json:"venue"`
	RawSymbol  string    `json:"rawSymbol"`
	Symbol     string    `json:"symbol"`
	RatePer8h  float64   `json:"ratePer8h"`
	ObservedAt time.Time `json:"observedAt"`
}

// MarketQuote 盘口最优买卖价
type MarketQuote struct {
	Venue  string  `json:"venue"`
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// Valid 买卖价都为正且有限
func (q MarketQuote) Valid() bool {
	return IsFinite(q.Bid) && IsFinite(q.Ask) && q.Bid > 0 && q.Ask > 0
}

// Spread (ask-bid)/ask
func (q MarketQuote) Spread() float64 {
	return (q.Ask - q.Bid) / q.Ask
}

// Quote is the bid/ask pair attached to a row.
type Quote struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// UnifiedRow 同一个标准化 symbol 在多个交易所的费率
type UnifiedRow struct {
	Symbol  string             `json:"symbol"`
	Rates   map[string]float64 `json:"rates"`
	Spreads map[string]float64 `json:"spreads,omitempty"`
	Quotes  map[string]Quote   `json:"quotes,omitempty"`
}

// Venues 按 KnownVenues 顺序返回有费率的交易所
func (r UnifiedRow) Venues() []string {
	out := make([]string, 0, len(r.Rates))
	for v := range r.Rates {
		out = append(out, v)
	}
	SortVenues(out)
	return out
}

// Table 一次 join 的不可变结果
type Table struct {
	ID          string       `json:"id,omitempty"`
	Rows        []UnifiedRow `json:"rows"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

// EmptyTable is what readers get before the first join.
func EmptyTable() Table {
	return Table{Rows: []UnifiedRow{}}
}

// Empty 没有任何行
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// SortVenues 按 KnownVenues 顺序排序，未知交易所按字母排在最后
func SortVenues(vs []string) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := VenueIndex(vs[i]), VenueIndex(vs[j])
		if a != b {
			return a < b
		}
		return vs[i] < vs[j]
	})
}

// IsFinite 不是 NaN 也不是 Inf
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
