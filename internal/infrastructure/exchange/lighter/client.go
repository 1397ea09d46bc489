package lighter

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"
)

const (
	DefaultURL = "https://mainnet.zklighter.elliot.ai"

	// exchangeLighter funding-rates 也会返回其他交易所的费率，只保留 lighter 自己的
	exchangeLighter = "lighter"
	resolution1h    = "1h"
)

type fundingRate struct {
	MarketID int64           `json:"market_id"`
	Exchange string          `json:"exchange"`
	Symbol   string          `json:"symbol"`
	Rate     exchange.Number `json:"rate"`
}

type fundingRatesResp struct {
	Code         int           `json:"code"`
	FundingRates []fundingRate `json:"funding_rates"`
}

type fundingPoint struct {
	Timestamp int64           `json:"timestamp"`
	Value     exchange.Number `json:"value"`
	Rate      exchange.Number `json:"rate"`
	Direction string          `json:"direction"`
}

type fundingsResp struct {
	Code       int            `json:"code"`
	Message    string         `json:"message"`
	Resolution string         `json:"resolution"`
	Fundings   []fundingPoint `json:"fundings"`
}

// Client Lighter 当前费率和历史资金费
type Client struct {
	baseURL  string
	http     *exchange.Client
	resolver *service.SymbolResolver
	conv     service.Convention
	now      func() time.Time
}

func New(deps source.Deps) *Client {
	base := deps.BaseURL
	if base == "" {
		base = DefaultURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(base, "/"),
		http:     deps.HTTP,
		resolver: deps.Resolver,
		conv:     deps.Convention,
		now:      time.Now,
	}
	if c.http == nil {
		c.http = exchange.NewClient(10 * time.Second)
	}
	if c.resolver == nil {
		c.resolver = exchange.ResolverFor(model.VenueLighter)
	}
	return c
}

func (c *Client) Venue() string { return model.VenueLighter }

func (c *Client) rates(ctx context.Context) ([]fundingRate, error) {
	var resp fundingRatesResp
	if err := c.http.GetJSON(ctx, model.VenueLighter, "funding-rates", c.baseURL+"/api/v1/funding-rates", &resp); err != nil {
		return nil, err
	}
	out := resp.FundingRates[:0]
	for _, r := range resp.FundingRates {
		if r.Exchange == exchangeLighter && r.Symbol != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Client) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	rates, err := c.rates(ctx)
	if err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]model.FundingObservation, 0, len(rates))
	for _, r := range rates {
		if !r.Rate.Valid || !model.IsFinite(r.Rate.Value) {
			continue
		}
		sym := c.resolver.Canonicalize(r.Symbol)
		if sym == "" {
			continue
		}
		out = append(out, model.FundingObservation{
			Venue:      model.VenueLighter,
			RawSymbol:  r.Symbol,
			Symbol:     sym,
			RatePer8h:  service.Normalize(r.Rate.Value, c.conv),
			ObservedAt: now,
		})
	}
	return out, nil
}

// Markets 历史查询用的市场列表，排除和去重由调用方处理
func (c *Client) Markets(ctx context.Context) ([]model.LighterMarket, error) {
	rates, err := c.rates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.LighterMarket, 0, len(rates))
	for _, r := range rates {
		m := model.LighterMarket{MarketID: r.MarketID, Symbol: strings.ToUpper(r.Symbol)}
		if r.Rate.Valid && model.IsFinite(r.Rate.Value) {
			v := r.Rate.Value
			m.CurrentRate = &v
		}
		out = append(out, m)
	}
	return out, nil
}

// FundingHistory 1h 粒度，count_back=0 让服务端返回整个窗口
func (c *Client) FundingHistory(ctx context.Context, marketID int64, start, end time.Time) ([]model.FundingPoint, error) {
	q := url.Values{}
	q.Set("market_id", strconv.FormatInt(marketID, 10))
	q.Set("resolution", resolution1h)
	q.Set("start_timestamp", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("end_timestamp", strconv.FormatInt(end.UnixMilli(), 10))
	q.Set("count_back", "0")
	endpoint, err := exchange.BuildURL(c.baseURL, "/api/v1/fundings", q)
	if err != nil {
		return nil, &model.FetchError{Venue: model.VenueLighter, Op: "fundings", Err: err}
	}

	var resp fundingsResp
	if err := c.http.GetJSON(ctx, model.VenueLighter, "fundings", endpoint, &resp); err != nil {
		return nil, err
	}
	out := make([]model.FundingPoint, 0, len(resp.Fundings))
	for _, f := range resp.Fundings {
		p := model.FundingPoint{Timestamp: f.Timestamp, Direction: f.Direction}
		if f.Value.Valid {
			p.Value = f.Value.Value
		}
		if f.Rate.Valid {
			v := f.Rate.Value
			p.Rate = &v
		}
		out = append(out, p)
	}
	return out, nil
}

func init() {
	source.Register(model.VenueLighter, func(deps source.Deps) source.Adapter {
		return source.Adapter{Funding: New(deps)}
	})
}
