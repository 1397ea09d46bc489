package ethereal

import (
	"context"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"
)

const (
	DefaultURL = "https://api.ethereal.trade/v1"

	statusActive = "ACTIVE"
)

type product struct {
	ID            string `json:"id"`
	Ticker        string `json:"ticker"`
	BaseTokenName string `json:"baseTokenName"`
	FundingRate1h string `json:"fundingRate1h"`
	Status        string `json:"status"`
}

type productResp struct {
	Data    []product `json:"data"`
	HasNext bool      `json:"hasNext"`
}

// Client Ethereal /product，fundingRate1h 为 1h 小数
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
		c.resolver = exchange.ResolverFor(model.VenueEthereal)
	}
	return c
}

func (c *Client) Venue() string { return model.VenueEthereal }

func (c *Client) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	var resp productResp
	if err := c.http.GetJSON(ctx, model.VenueEthereal, "product", c.baseURL+"/product", &resp); err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]model.FundingObservation, 0, len(resp.Data))
	for _, p := range resp.Data {
		if p.Status != statusActive {
			continue
		}
		raw, ok := exchange.ParseFloat(p.FundingRate1h)
		if !ok {
			continue
		}
		sym := c.resolver.Canonicalize(p.BaseTokenName)
		if sym == "" {
			continue
		}
		out = append(out, model.FundingObservation{
			Venue:      model.VenueEthereal,
			RawSymbol:  p.Ticker,
			Symbol:     sym,
			RatePer8h:  service.Normalize(raw, c.conv),
			ObservedAt: now,
		})
	}
	return out, nil
}

func init() {
	source.Register(model.VenueEthereal, func(deps source.Deps) source.Adapter {
		return source.Adapter{Funding: New(deps)}
	})
}
