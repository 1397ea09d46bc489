package exchange

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer 连续请求之间至少间隔 gap，第一次不等待
type Pacer struct {
	lim *rate.Limiter
}

// NewPacer gap<=0 不限速
func NewPacer(gap time.Duration) *Pacer {
	limit := rate.Inf
	if gap > 0 {
		limit = rate.Every(gap)
	}
	return &Pacer{lim: rate.NewLimiter(limit, 1)}
}

// Wait 阻塞到下一个请求可以发出
func (p *Pacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}
