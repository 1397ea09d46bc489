package nado

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"sort"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"

	"github.com/tidwall/gjson"
)

const (
	DefaultGatewayURL = "https://gateway.prod.nado.xyz/v1/query"
	DefaultArchiveURL = "https://archive.prod.nado.xyz/v1"

	productPerp   = "perp"
	statusSuccess = "success"
)

var (
	errInvalidJSON = errors.New("decode: invalid json")
	errStatus      = errors.New("query status not success")

	// x18 定点数的缩放因子
	scaleX18 = new(big.Float).SetFloat64(1e18)
)

// Client Nado 网关和归档服务。数值都是 x18 定点整数字符串
type Client struct {
	gatewayURL string
	archiveURL string
	http       *exchange.Client
	resolver   *service.SymbolResolver
	conv       service.Convention
	now        func() time.Time
}

func New(deps source.Deps) *Client {
	c := &Client{
		gatewayURL: deps.BaseURL,
		archiveURL: deps.AltURL,
		http:       deps.HTTP,
		resolver:   deps.Resolver,
		conv:       deps.Convention,
		now:        time.Now,
	}
	if c.gatewayURL == "" {
		c.gatewayURL = DefaultGatewayURL
	}
	if c.archiveURL == "" {
		c.archiveURL = DefaultArchiveURL
	}
	if c.http == nil {
		c.http = exchange.NewClient(10 * time.Second)
	}
	if c.resolver == nil {
		c.resolver = exchange.ResolverFor(model.VenueNado)
	}
	return c
}

func (c *Client) Venue() string { return model.VenueNado }

// ParseX18 "1500000000000000" → 0.0015
func ParseX18(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, ok := new(big.Float).SetString(s)
	if !ok {
		return 0, false
	}
	f, _ := new(big.Float).Quo(v, scaleX18).Float64()
	if !model.IsFinite(f) {
		return 0, false
	}
	return f, true
}

func (c *Client) query(ctx context.Context, op, endpoint string, body any) (gjson.Result, error) {
	data, err := c.http.Do(ctx, model.VenueNado, op, http.MethodPost, endpoint, body)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, &model.FetchError{Venue: model.VenueNado, Op: op, Err: errInvalidJSON}
	}
	return gjson.ParseBytes(data), nil
}

// perps product_id → 原始 symbol，按 id 排序
func (c *Client) perps(ctx context.Context) (map[int64]string, []int64, error) {
	res, err := c.query(ctx, "symbols", c.gatewayURL, map[string]string{"type": "symbols"})
	if err != nil {
		return nil, nil, err
	}
	names := make(map[int64]string)
	res.Get("data.symbols").ForEach(func(_, s gjson.Result) bool {
		if s.Get("type").String() != productPerp {
			return true
		}
		id := s.Get("product_id")
		sym := s.Get("symbol").String()
		if !id.Exists() || sym == "" {
			return true
		}
		names[id.Int()] = sym
		return true
	})
	ids := make([]int64, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return names, ids, nil
}

// FetchFunding 归档返回的是日费率，换算到 8h。未知 product_id 跳过
func (c *Client) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	names, ids, err := c.perps(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.FundingObservation{}, nil
	}
	body := map[string]any{"funding_rates": map[string]any{"product_ids": ids}}
	res, err := c.query(ctx, "funding_rates", c.archiveURL, body)
	if err != nil {
		return nil, err
	}

	now := c.now()
	out := make([]model.FundingObservation, 0, len(ids))
	res.ForEach(func(_, item gjson.Result) bool {
		raw, ok := names[item.Get("product_id").Int()]
		if !ok {
			return true
		}
		daily, ok := ParseX18(item.Get("funding_rate_x18").String())
		if !ok {
			return true
		}
		sym := c.resolver.Canonicalize(raw)
		if sym == "" {
			return true
		}
		out = append(out, model.FundingObservation{
			Venue:      model.VenueNado,
			RawSymbol:  raw,
			Symbol:     sym,
			RatePer8h:  service.Normalize(daily, c.conv),
			ObservedAt: now,
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (c *Client) FetchQuotes(ctx context.Context) ([]model.MarketQuote, error) {
	names, ids, err := c.perps(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.MarketQuote{}, nil
	}
	res, err := c.query(ctx, "market_prices", c.gatewayURL, map[string]any{"type": "market_prices", "product_ids": ids})
	if err != nil {
		return nil, err
	}
	if res.Get("status").String() != statusSuccess {
		return nil, &model.FetchError{Venue: model.VenueNado, Op: "market_prices", Err: errStatus}
	}

	out := make([]model.MarketQuote, 0, len(ids))
	res.Get("data.market_prices").ForEach(func(_, item gjson.Result) bool {
		raw, ok := names[item.Get("product_id").Int()]
		if !ok {
			return true
		}
		bid, ok1 := ParseX18(item.Get("bid_x18").String())
		ask, ok2 := ParseX18(item.Get("ask_x18").String())
		if !ok1 || !ok2 {
			return true
		}
		q := model.MarketQuote{Venue: model.VenueNado, Symbol: c.resolver.Canonicalize(raw), Bid: bid, Ask: ask}
		if q.Valid() {
			out = append(out, q)
		}
		return true
	})
	return out, nil
}

func init() {
	source.Register(model.VenueNado, func(deps source.Deps) source.Adapter {
		c := New(deps)
		return source.Adapter{Funding: c, Quotes: c}
	})
}
