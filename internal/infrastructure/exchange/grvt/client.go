package grvt

import (
	"context"
	"errors"
	"strings"
	"time"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"
)

const (
	DefaultURL = "https://market-data.grvt.io/full/v1"
	DefaultGap = 500 * time.Millisecond
)

var errNoFundingPoint = errors.New("no funding point")

type instrumentsReq struct {
	Kind     []string `json:"kind"`
	Quote    []string `json:"quote"`
	IsActive bool     `json:"is_active"`
}

type instrument struct {
	Instrument string `json:"instrument"`
	Base       string `json:"base"`
	Quote      string `json:"quote"`
	Kind       string `json:"kind"`
}

type instrumentsResp struct {
	Result []instrument `json:"result"`
}

type fundingReq struct {
	Instrument string `json:"instrument"`
	Limit      int    `json:"limit"`
}

type fundingPoint struct {
	Instrument       string          `json:"instrument"`
	FundingRate      exchange.Number `json:"funding_rate"`
	FundingRate8hAvg exchange.Number `json:"funding_rate_8_h_avg"`
	FundingTime      string          `json:"funding_time"`
}

type fundingResp struct {
	Result []fundingPoint `json:"result"`
}

// Client GRVT 只能逐个合约查询资金费率，请求之间按 pacer 间隔串行发出
type Client struct {
	baseURL  string
	http     *exchange.Client
	pacer    port.Pacer
	resolver *service.SymbolResolver
	conv     service.Convention
	now      func() time.Time
}

func New(deps source.Deps) *Client {
	base := deps.BaseURL
	if base == "" {
		base = DefaultURL
	}
	gap := deps.Gap
	if gap <= 0 {
		gap = DefaultGap
	}
	c := &Client{
		baseURL:  strings.TrimRight(base, "/"),
		http:     deps.HTTP,
		pacer:    exchange.NewPacer(gap),
		resolver: deps.Resolver,
		conv:     deps.Convention,
		now:      time.Now,
	}
	if c.http == nil {
		c.http = exchange.NewClient(10 * time.Second)
	}
	if c.resolver == nil {
		c.resolver = exchange.ResolverFor(model.VenueGRVT)
	}
	return c
}

func (c *Client) Venue() string { return model.VenueGRVT }

// FetchFunding 单个合约失败不影响其他合约，失败列表通过 *model.PartialError 返回
func (c *Client) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	var list instrumentsResp
	req := instrumentsReq{Kind: []string{"PERPETUAL"}, Quote: []string{"USDT"}, IsActive: true}
	if err := c.http.PostJSON(ctx, model.VenueGRVT, "instruments", c.baseURL+"/instruments", req, &list); err != nil {
		return nil, err
	}

	out := make([]model.FundingObservation, 0, len(list.Result))
	var failures []model.InstrumentFailure
	for _, inst := range list.Result {
		if inst.Instrument == "" {
			continue
		}
		if err := c.pacer.Wait(ctx); err != nil {
			// ctx 结束，剩余合约不再请求
			failures = append(failures, model.InstrumentFailure{Symbol: inst.Instrument, Err: err})
			break
		}
		rate, err := c.fetchOne(ctx, inst.Instrument)
		if err != nil {
			failures = append(failures, model.InstrumentFailure{Symbol: inst.Instrument, Err: err})
			continue
		}
		sym := c.resolver.Canonicalize(inst.Base)
		if sym == "" {
			continue
		}
		out = append(out, model.FundingObservation{
			Venue:      model.VenueGRVT,
			RawSymbol:  inst.Instrument,
			Symbol:     sym,
			RatePer8h:  service.Normalize(rate, c.conv),
			ObservedAt: c.now(),
		})
	}
	if len(failures) > 0 {
		return out, &model.PartialError{Venue: model.VenueGRVT, Failures: failures}
	}
	return out, nil
}

// fetchOne 优先使用 8h 平均值
func (c *Client) fetchOne(ctx context.Context, name string) (float64, error) {
	var resp fundingResp
	if err := c.http.PostJSON(ctx, model.VenueGRVT, "funding", c.baseURL+"/funding", fundingReq{Instrument: name, Limit: 1}, &resp); err != nil {
		return 0, err
	}
	if len(resp.Result) == 0 {
		return 0, errNoFundingPoint
	}
	p := resp.Result[0]
	switch {
	case p.FundingRate8hAvg.Valid && model.IsFinite(p.FundingRate8hAvg.Value):
		return p.FundingRate8hAvg.Value, nil
	case p.FundingRate.Valid && model.IsFinite(p.FundingRate.Value):
		return p.FundingRate.Value, nil
	}
	return 0, errNoFundingPoint
}

func init() {
	source.Register(model.VenueGRVT, func(deps source.Deps) source.Adapter {
		return source.Adapter{Funding: New(deps)}
	})
}
