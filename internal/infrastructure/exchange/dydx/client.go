package dydx

import (
	"context"
	"sort"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"
)

const (
	DefaultURL = "https://indexer.dydx.trade/v4"

	statusActive = "ACTIVE"
)

type market struct {
	Ticker          string `json:"ticker"`
	NextFundingRate string `json:"nextFundingRate"`
	Status          string `json:"status"`
	OraclePrice     string `json:"oraclePrice"`
}

type marketsResp struct {
	Markets map[string]market `json:"markets"`
}

// Client dYdX v4 indexer perpetualMarkets，nextFundingRate 为 1h 小数
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
		c.resolver = exchange.ResolverFor(model.VenueDYDX)
	}
	return c
}

func (c *Client) Venue() string { return model.VenueDYDX }

func (c *Client) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	var resp marketsResp
	if err := c.http.GetJSON(ctx, model.VenueDYDX, "perpetualMarkets", c.baseURL+"/perpetualMarkets", &resp); err != nil {
		return nil, err
	}

	// map 遍历顺序不固定，按 key 排序保证输出稳定
	keys := make([]string, 0, len(resp.Markets))
	for k := range resp.Markets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := c.now()
	out := make([]model.FundingObservation, 0, len(keys))
	for _, k := range keys {
		m := resp.Markets[k]
		if m.Status != statusActive {
			continue
		}
		raw, ok := exchange.ParseFloat(m.NextFundingRate)
		if !ok {
			continue
		}
		sym := c.resolver.Canonicalize(m.Ticker)
		if sym == "" {
			continue
		}
		out = append(out, model.FundingObservation{
			Venue:      model.VenueDYDX,
			RawSymbol:  m.Ticker,
			Symbol:     sym,
			RatePer8h:  service.Normalize(raw, c.conv),
			ObservedAt: now,
		})
	}
	return out, nil
}

func init() {
	source.Register(model.VenueDYDX, func(deps source.Deps) source.Adapter {
		return source.Adapter{Funding: New(deps)}
	})
}
