package paradex

import (
	"context"
	"strings"
	"sync"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultURL = "https://api.prod.paradex.trade/v1"

type marketDef struct {
	Symbol             string  `json:"symbol"`
	FundingPeriodHours float64 `json:"funding_period_hours"`
}

type marketsResp struct {
	Results []marketDef `json:"results"`
}

type summary struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"funding_rate"`
	Bid         string `json:"bid"`
	Ask         string `json:"ask"`
}

type summaryResp struct {
	Results []summary `json:"results"`
}

// Client Paradex 市场概要。funding_period_hours 第一次成功取到后缓存，之后不再请求 /markets
type Client struct {
	baseURL  string
	http     *exchange.Client
	resolver *service.SymbolResolver
	conv     service.Convention
	now      func() time.Time

	mu      sync.RWMutex
	periods map[string]float64
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
		c.resolver = exchange.ResolverFor(model.VenueParadex)
	}
	return c
}

func (c *Client) Venue() string { return model.VenueParadex }

func (c *Client) cachedPeriods() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.periods
}

func (c *Client) loadPeriods(ctx context.Context) (map[string]float64, error) {
	var resp marketsResp
	if err := c.http.GetJSON(ctx, model.VenueParadex, "markets", c.baseURL+"/markets", &resp); err != nil {
		return nil, err
	}
	periods := make(map[string]float64, len(resp.Results))
	for _, m := range resp.Results {
		if m.FundingPeriodHours > 0 {
			periods[m.Symbol] = m.FundingPeriodHours
		}
	}
	c.mu.Lock()
	c.periods = periods
	c.mu.Unlock()
	return periods, nil
}

func (c *Client) summaries(ctx context.Context) ([]summary, error) {
	var resp summaryResp
	if err := c.http.GetJSON(ctx, model.VenueParadex, "markets/summary", c.baseURL+"/markets/summary?market=ALL", &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// perp 只保留永续，期权等其他合约跳过
func perp(symbol string) bool {
	return strings.HasSuffix(strings.ToUpper(symbol), "-PERP")
}

// FetchFunding 周期未缓存时与 summary 并行拉取；/markets 失败按默认周期计算，下次重试
func (c *Client) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	periods := c.cachedPeriods()
	var rows []summary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = c.summaries(gctx)
		return err
	})
	if periods == nil {
		g.Go(func() error {
			p, err := c.loadPeriods(gctx)
			if err != nil {
				log.Warn().Str("venue", model.VenueParadex).Err(err).Msg("funding periods unavailable, using default")
				return nil
			}
			periods = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := c.now()
	out := make([]model.FundingObservation, 0, len(rows))
	for _, s := range rows {
		if !perp(s.Symbol) {
			continue
		}
		raw, ok := exchange.ParseFloat(s.FundingRate)
		if !ok {
			continue
		}
		sym := c.resolver.Canonicalize(s.Symbol)
		if sym == "" {
			continue
		}
		out = append(out, model.FundingObservation{
			Venue:      model.VenueParadex,
			RawSymbol:  s.Symbol,
			Symbol:     sym,
			RatePer8h:  service.Normalize(raw, c.conv.WithInterval(periods[s.Symbol])),
			ObservedAt: now,
		})
	}
	return out, nil
}

func (c *Client) FetchQuotes(ctx context.Context) ([]model.MarketQuote, error) {
	rows, err := c.summaries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.MarketQuote, 0, len(rows))
	for _, s := range rows {
		if !perp(s.Symbol) {
			continue
		}
		bid, ok1 := exchange.ParseFloat(s.Bid)
		ask, ok2 := exchange.ParseFloat(s.Ask)
		if !ok1 || !ok2 {
			continue
		}
		q := model.MarketQuote{Venue: model.VenueParadex, Symbol: c.resolver.Canonicalize(s.Symbol), Bid: bid, Ask: ask}
		if q.Valid() {
			out = append(out, q)
		}
	}
	return out, nil
}

func init() {
	source.Register(model.VenueParadex, func(deps source.Deps) source.Adapter {
		c := New(deps)
		return source.Adapter{Funding: c, Quotes: c}
	})
}
