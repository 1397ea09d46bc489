package service

import "fundingarb/internal/domain/model"

// ValidRow 持久化数据载入时的行校验：symbol 非空，至少两个有限费率，价差和报价都是有限值
func ValidRow(row model.UnifiedRow) bool {
	if row.Symbol == "" {
		return false
	}
	finite := 0
	for _, r := range row.Rates {
		if !model.IsFinite(r) {
			return false
		}
		finite++
	}
	if finite < MinVenuesPerRow {
		return false
	}
	for _, s := range row.Spreads {
		if !model.IsFinite(s) {
			return false
		}
	}
	for _, q := range row.Quotes {
		if !model.IsFinite(q.Bid) || !model.IsFinite(q.Ask) {
			return false
		}
	}
	return true
}

// ValidRows 过滤掉不合法的行，返回值不为 nil
func ValidRows(rows []model.UnifiedRow) []model.UnifiedRow {
	out := make([]model.UnifiedRow, 0, len(rows))
	for _, r := range rows {
		if ValidRow(r) {
			out = append(out, r)
		}
	}
	return out
}
