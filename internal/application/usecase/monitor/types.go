package monitor

import "fundingarb/internal/domain/model"

// Querier 聚合层的只读查询面
type Querier interface {
	Table() model.Table
	Opportunities(capital float64, limit int, sortBy model.SortKey) []model.SpreadOpportunity
	StatusLine() string
}
