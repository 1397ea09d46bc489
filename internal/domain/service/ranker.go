package service

import (
	"sort"

	"fundingarb/internal/domain/model"
)

const (
	// DefaultLimit 默认返回前 10 个机会
	DefaultLimit = 10
	// DefaultFallbackSpread 没有配置的交易所使用的默认价差
	DefaultFallbackSpread = 0.0005
)

// DefaultSpreads 没有实时盘口时使用的交易所默认价差
func DefaultSpreads() map[string]float64 {
	return map[string]float64{
		model.VenueBinance:     0.0002,
		model.VenueVariational: 0.001,
	}
}

// RankOptions 排名参数
type RankOptions struct {
	CapitalUSD     float64
	Limit          int
	SortBy         model.SortKey
	DefaultSpreads map[string]float64
}

func (o RankOptions) defaultSpread(venue string) float64 {
	if s, ok := o.DefaultSpreads[venue]; ok {
		return s
	}
	return DefaultFallbackSpread
}

// Rank 生成所有交易所对的机会，稳定排序后截断
func Rank(rows []model.UnifiedRow, opts RankOptions) []model.SpreadOpportunity {
	out := Opportunities(rows, opts)
	switch opts.SortBy {
	case model.SortByNetProfit:
		sort.SliceStable(out, func(i, j int) bool { return out[i].NetProfit > out[j].NetProfit })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].RateDiff > out[j].RateDiff })
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Opportunities 未排序的全部机会，交易所对按名字顺序遍历
func Opportunities(rows []model.UnifiedRow, opts RankOptions) []model.SpreadOpportunity {
	out := make([]model.SpreadOpportunity, 0)
	for _, row := range rows {
		venues := make([]string, 0, len(row.Rates))
		for v := range row.Rates {
			venues = append(venues, v)
		}
		sort.Strings(venues)
		for i := 0; i < len(venues); i++ {
			for j := i + 1; j < len(venues); j++ {
				if opp, ok := PairOpportunity(row, venues[i], venues[j], opts); ok {
					out = append(out, opp)
				}
			}
		}
	}
	return out
}

// PairOpportunity 计算一对交易所的机会：费率高的一侧做空，低的一侧做多
func PairOpportunity(row model.UnifiedRow, a, b string, opts RankOptions) (model.SpreadOpportunity, bool) {
	high, low := a, b
	if row.Rates[b] > row.Rates[a] {
		high, low = b, a
	}
	diff := row.Rates[high] - row.Rates[low]
	if !(diff > 0) {
		return model.SpreadOpportunity{}, false
	}

	capital := opts.CapitalUSD
	gross := capital * diff * PeriodsPerDay

	var openCost, closeCost float64
	source := model.CostDefault
	short, shortOK := row.Quotes[high]
	long, longOK := row.Quotes[low]
	if shortOK && longOK && short.Bid > 0 && short.Ask > 0 && long.Bid > 0 && long.Ask > 0 {
		openCost = (long.Ask - short.Bid) / short.Bid
		closeCost = (short.Ask - long.Bid) / short.Ask
		source = model.CostLive
	} else {
		avg := (opts.defaultSpread(high) + opts.defaultSpread(low)) / 2
		openCost, closeCost = avg, avg
	}

	return model.SpreadOpportunity{
		Symbol:               row.Symbol,
		HighVenue:            high,
		LowVenue:             low,
		HighRate:             row.Rates[high],
		LowRate:              row.Rates[low],
		RateDiff:             diff,
		Estimated24hRate:     diff * PeriodsPerDay,
		EstimatedGrossProfit: gross,
		OpenCost:             openCost,
		CloseCost:            closeCost,
		NetProfit:            gross - (openCost+closeCost)*capital,
		CostSource:           source,
	}, true
}
