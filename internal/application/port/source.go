package port

import (
	"context"

	"fundingarb/internal/domain/model"
)

// FundingSource HTTP 轮询的资金费率数据源
type FundingSource interface {
	Venue() string
	FetchFunding(ctx context.Context) ([]model.FundingObservation, error)
}

// QuoteSource 可选的盘口数据源
type QuoteSource interface {
	Venue() string
	FetchQuotes(ctx context.Context) ([]model.MarketQuote, error)
}

// StreamSource websocket 推送的数据源，channel 在 ctx 结束后关闭
type StreamSource interface {
	Venue() string
	Subscribe(ctx context.Context) (<-chan model.StreamEvent, error)
}

// Pacer 限制连续请求之间的间隔
type Pacer interface {
	Wait(ctx context.Context) error
}
