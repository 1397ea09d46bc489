package port

import (
	"context"
	"time"

	"fundingarb/internal/domain/model"
)

// HistorySource lighter 历史资金费
type HistorySource interface {
	Markets(ctx context.Context) ([]model.LighterMarket, error)
	FundingHistory(ctx context.Context, marketID int64, start, end time.Time) ([]model.FundingPoint, error)
}

// PairLister 返回现货 USDT 交易对集合
type PairLister interface {
	USDTPairs(ctx context.Context) (map[string]struct{}, error)
}

// HistoryStore 历史结果快照
type HistoryStore interface {
	Load() (*model.HistorySnapshot, error)
	Save(snap model.HistorySnapshot) error
}
