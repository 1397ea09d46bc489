package model

import "time"

// LighterMarket lighter 上的一个永续市场
type LighterMarket struct {
	MarketID    int64    `json:"marketId"`
	Symbol      string   `json:"symbol"`
	CurrentRate *float64 `json:"currentRate"`
}

// FundingPoint 一条历史资金费记录
type FundingPoint struct {
	Timestamp int64    `json:"timestamp"`
	Value     float64  `json:"value"`
	Rate      *float64 `json:"rate"`
	Direction string   `json:"direction"`
}

// HistoryRow 一个市场近 7 天的资金费统计，Series 是按时间排序的带符号费率
type HistoryRow struct {
	MarketID       int64     `json:"marketId"`
	Symbol         string    `json:"symbol"`
	CurrentRate    *float64  `json:"currentRate"`
	AverageRate    *float64  `json:"averageRate"`
	Series         []float64 `json:"series"`
	SevenDayRate   *float64  `json:"sevenDayRate"`
	SevenDayProfit *float64  `json:"sevenDayProfit"`
	AnnualizedRate *float64  `json:"annualizedRate"`
}

// HistorySnapshot 持久化到磁盘的历史结果
type HistorySnapshot struct {
	Rows        []HistoryRow `json:"rows"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

// HistoryState 对外暴露的历史查询状态
type HistoryState struct {
	Rows        []HistoryRow `json:"rows"`
	Refreshing  bool         `json:"refreshing"`
	Error       string       `json:"error,omitempty"`
	LastUpdated time.Time    `json:"lastUpdated,omitempty"`
}
