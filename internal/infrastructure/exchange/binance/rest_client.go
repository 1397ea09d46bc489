package binance

import (
	"context"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFuturesURL = "https://fapi.binance.com"
	DefaultSpotURL    = "https://api.binance.com"

	zeroFundingRate = "0.00000000"
)

// FuturesClient Binance U 本位合约 REST 客户端。aster 使用相同的接口，只是地址不同
type FuturesClient struct {
	venue    string
	baseURL  string
	http     *exchange.Client
	resolver *service.SymbolResolver
	conv     service.Convention
	// skipInactive 跳过 nextFundingTime==0 或费率为 0.00000000 的合约（已下架或未开始计费）
	skipInactive bool
	now          func() time.Time
}

// FuturesOptions 构造参数
type FuturesOptions struct {
	Venue        string
	BaseURL      string
	HTTP         *exchange.Client
	Resolver     *service.SymbolResolver
	Convention   service.Convention
	SkipInactive bool
}

// PremiumIndexResp premiumIndex 响应
type PremiumIndexResp struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// FundingInfoResp fundingInfo 响应，只包含非默认周期的合约
type FundingInfoResp struct {
	Symbol               string  `json:"symbol"`
	FundingIntervalHours float64 `json:"fundingIntervalHours"`
}

// BookTickerResp 最优挂单
type BookTickerResp struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

// NewFuturesClient 创建合约客户端
func NewFuturesClient(opts FuturesOptions) *FuturesClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultFuturesURL
	}
	if opts.HTTP == nil {
		opts.HTTP = exchange.NewClient(10 * time.Second)
	}
	if opts.Resolver == nil {
		opts.Resolver = exchange.ResolverFor(opts.Venue)
	}
	return &FuturesClient{
		venue:        opts.Venue,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		http:         opts.HTTP,
		resolver:     opts.Resolver,
		conv:         opts.Convention,
		skipInactive: opts.SkipInactive,
		now:          time.Now,
	}
}

func (c *FuturesClient) Venue() string { return c.venue }

// FetchFunding premiumIndex 和 fundingInfo 并行请求；fundingInfo 失败时按默认周期计算
func (c *FuturesClient) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	var (
		premium []PremiumIndexResp
		info    []FundingInfoResp
		infoErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.http.GetJSON(gctx, c.venue, "premiumIndex", c.baseURL+"/fapi/v1/premiumIndex", &premium)
	})
	g.Go(func() error {
		infoErr = c.http.GetJSON(gctx, c.venue, "fundingInfo", c.baseURL+"/fapi/v1/fundingInfo", &info)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if infoErr != nil {
		log.Warn().Str("venue", c.venue).Err(infoErr).Msg("fundingInfo unavailable, using default intervals")
	}

	intervals := make(map[string]float64, len(info))
	for _, i := range info {
		if i.Symbol != "" && i.FundingIntervalHours > 0 {
			intervals[strings.ToUpper(i.Symbol)] = i.FundingIntervalHours
		}
	}

	now := c.now()
	out := make([]model.FundingObservation, 0, len(premium))
	for _, p := range premium {
		if c.skipInactive && (p.NextFundingTime == 0 || p.LastFundingRate == zeroFundingRate) {
			continue
		}
		raw, ok := exchange.ParseFloat(p.LastFundingRate)
		if !ok {
			continue
		}
		sym := c.resolver.Canonicalize(p.Symbol)
		if sym == "" {
			continue
		}
		conv := c.conv.WithInterval(intervals[strings.ToUpper(p.Symbol)])
		out = append(out, model.FundingObservation{
			Venue:      c.venue,
			RawSymbol:  p.Symbol,
			Symbol:     sym,
			RatePer8h:  service.Normalize(raw, conv),
			ObservedAt: now,
		})
	}
	return out, nil
}

// FetchQuotes 全市场 bookTicker
func (c *FuturesClient) FetchQuotes(ctx context.Context) ([]model.MarketQuote, error) {
	var tickers []BookTickerResp
	if err := c.http.GetJSON(ctx, c.venue, "bookTicker", c.baseURL+"/fapi/v1/ticker/bookTicker", &tickers); err != nil {
		return nil, err
	}
	out := make([]model.MarketQuote, 0, len(tickers))
	for _, t := range tickers {
		bid, ok1 := exchange.ParseFloat(t.BidPrice)
		ask, ok2 := exchange.ParseFloat(t.AskPrice)
		if !ok1 || !ok2 {
			continue
		}
		q := model.MarketQuote{Venue: c.venue, Symbol: c.resolver.Canonicalize(t.Symbol), Bid: bid, Ask: ask}
		if q.Valid() {
			out = append(out, q)
		}
	}
	return out, nil
}
