package model

// SortKey 排序字段
type SortKey string

const (
	SortByDiff      SortKey = "diff"
	SortByNetProfit SortKey = "net"
)

// ParseSortKey 未知值退回 fallback
func ParseSortKey(s string, fallback SortKey) SortKey {
	switch SortKey(s) {
	case SortByDiff, SortByNetProfit:
		return SortKey(s)
	}
	return fallback
}

// CostSource 开平仓成本的来源
type CostSource string

const (
	CostLive    CostSource = "live"
	CostDefault CostSource = "default"
)

// SpreadOpportunity 资金费率价差机会：高费率一侧做空，低费率一侧做多
type SpreadOpportunity struct {
	Symbol               string     `json:"symbol"`
	HighVenue            string     `json:"highVenue"`
	LowVenue             string     `json:"lowVenue"`
	HighRate             float64    `json:"highRate"`
	LowRate              float64    `json:"lowRate"`
	RateDiff             float64    `json:"rateDiff"`
	Estimated24hRate     float64    `json:"estimated24hRate"`
	EstimatedGrossProfit float64    `json:"estimatedGrossProfit"`
	OpenCost             float64    `json:"openCost"`
	CloseCost            float64    `json:"closeCost"`
	NetProfit            float64    `json:"netProfit"`
	CostSource           CostSource `json:"costSource"`
}

// ShortVenue 做空的交易所
func (o SpreadOpportunity) ShortVenue() string { return o.HighVenue }

// LongVenue 做多的交易所
func (o SpreadOpportunity) LongVenue() string { return o.LowVenue }
