package variational

import (
	"context"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"
)

const DefaultURL = "https://omni-client-api.prod.ap-northeast-1.variational.io"

type bidAsk struct {
	Bid string `json:"bid"`
	Ask string `json:"ask"`
}

type listing struct {
	Ticker      string `json:"ticker"`
	MarkPrice   string `json:"mark_price"`
	FundingRate string `json:"funding_rate"`
	Quotes      struct {
		Size1k  bidAsk `json:"size_1k"`
		BestBid string `json:"best_bid"`
		BestAsk string `json:"best_ask"`
	} `json:"quotes"`
}

type statsResp struct {
	NumMarkets int       `json:"num_markets"`
	Listings   []listing `json:"listings"`
}

// Client Variational /metadata/stats，funding_rate 是年化小数
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
		c.resolver = exchange.ResolverFor(model.VenueVariational)
	}
	return c
}

func (c *Client) Venue() string { return model.VenueVariational }

func (c *Client) stats(ctx context.Context) (*statsResp, error) {
	var resp statsResp
	if err := c.http.GetJSON(ctx, model.VenueVariational, "metadata/stats", c.baseURL+"/metadata/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	resp, err := c.stats(ctx)
	if err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]model.FundingObservation, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		raw, ok := exchange.ParseFloat(l.FundingRate)
		if !ok {
			continue
		}
		sym := c.resolver.Canonicalize(l.Ticker)
		if sym == "" {
			continue
		}
		out = append(out, model.FundingObservation{
			Venue:      model.VenueVariational,
			RawSymbol:  l.Ticker,
			Symbol:     sym,
			RatePer8h:  service.Normalize(raw, c.conv),
			ObservedAt: now,
		})
	}
	return out, nil
}

// FetchQuotes 使用 1k 档位报价，缺失时退回到 best bid/ask
func (c *Client) FetchQuotes(ctx context.Context) ([]model.MarketQuote, error) {
	resp, err := c.stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.MarketQuote, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		bid, ask := l.Quotes.Size1k.Bid, l.Quotes.Size1k.Ask
		if bid == "" {
			bid = l.Quotes.BestBid
		}
		if ask == "" {
			ask = l.Quotes.BestAsk
		}
		b, ok1 := exchange.ParseFloat(bid)
		a, ok2 := exchange.ParseFloat(ask)
		if !ok1 || !ok2 {
			continue
		}
		q := model.MarketQuote{Venue: model.VenueVariational, Symbol: c.resolver.Canonicalize(l.Ticker), Bid: b, Ask: a}
		if q.Valid() {
			out = append(out, q)
		}
	}
	return out, nil
}

func init() {
	source.Register(model.VenueVariational, func(deps source.Deps) source.Adapter {
		c := New(deps)
		return source.Adapter{Funding: c, Quotes: c}
	})
}
