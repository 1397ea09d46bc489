package service

import (
	"sort"

	"fundingarb/internal/domain/model"
)

// MinVenuesPerRow 至少两个交易所才有价差
const MinVenuesPerRow = 2

// Join 按标准 symbol 合并各交易所的费率，同一交易所重复的 symbol 后写覆盖前写
func Join(observations map[string][]model.FundingObservation, quotes map[string][]model.MarketQuote) []model.UnifiedRow {
	rates := make(map[string]map[string]float64)
	for venue, list := range observations {
		for _, o := range list {
			if o.Symbol == "" || !model.IsFinite(o.RatePer8h) {
				continue
			}
			m := rates[o.Symbol]
			if m == nil {
				m = make(map[string]float64)
				rates[o.Symbol] = m
			}
			m[venue] = o.RatePer8h
		}
	}

	book := make(map[string]map[string]model.MarketQuote)
	for venue, list := range quotes {
		for _, q := range list {
			if q.Symbol == "" || !q.Valid() {
				continue
			}
			m := book[q.Symbol]
			if m == nil {
				m = make(map[string]model.MarketQuote)
				book[q.Symbol] = m
			}
			m[venue] = q
		}
	}

	symbols := make([]string, 0, len(rates))
	for sym, m := range rates {
		if len(m) >= MinVenuesPerRow {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	rows := make([]model.UnifiedRow, 0, len(symbols))
	for _, sym := range symbols {
		row := model.UnifiedRow{Symbol: sym, Rates: rates[sym]}
		if qs := book[sym]; len(qs) > 0 {
			row.Spreads = make(map[string]float64, len(qs))
			row.Quotes = make(map[string]model.Quote, len(qs))
			for venue, q := range qs {
				row.Spreads[venue] = q.Spread()
				row.Quotes[venue] = model.Quote{Bid: q.Bid, Ask: q.Ask}
			}
		}
		rows = append(rows, row)
	}
	return rows
}
