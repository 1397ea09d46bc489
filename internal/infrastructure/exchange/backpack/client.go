package backpack

import (
	"context"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"
)

const DefaultURL = "https://api.backpack.exchange"

// markPrice /api/v1/markPrices 的单个条目，数字字段可能是字符串也可能是数字
type markPrice struct {
	Symbol               string          `json:"symbol"`
	FundingRate          exchange.Number `json:"fundingRate"`
	MarkPrice            exchange.Number `json:"markPrice"`
	NextFundingTimestamp int64           `json:"nextFundingTimestamp"`
}

// Client Backpack 永续合约资金费率（1h 周期）
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
		c.resolver = exchange.ResolverFor(model.VenueBackpack)
	}
	return c
}

func (c *Client) Venue() string { return model.VenueBackpack }

func (c *Client) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	var items []markPrice
	if err := c.http.GetJSON(ctx, model.VenueBackpack, "markPrices", c.baseURL+"/api/v1/markPrices", &items); err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]model.FundingObservation, 0, len(items))
	for _, it := range items {
		if !it.FundingRate.Valid || !model.IsFinite(it.FundingRate.Value) {
			continue
		}
		sym := c.resolver.Canonicalize(it.Symbol)
		if sym == "" {
			continue
		}
		out = append(out, model.FundingObservation{
			Venue:      model.VenueBackpack,
			RawSymbol:  it.Symbol,
			Symbol:     sym,
			RatePer8h:  service.Normalize(it.FundingRate.Value, c.conv),
			ObservedAt: now,
		})
	}
	return out, nil
}

func init() {
	source.Register(model.VenueBackpack, func(deps source.Deps) source.Adapter {
		return source.Adapter{Funding: New(deps)}
	})
}
