package hyperliquid

import (
	"context"
	"net/http"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"

	"github.com/tidwall/gjson"
)

const (
	DefaultURL = "https://api.hyperliquid.xyz"

	// perpVenue predictedFundings 里 Hyperliquid 自己的永续
	perpVenue = "HlPerp"
	// defaultIntervalHours 条目没有给出周期时使用
	defaultIntervalHours = 1.0
)

// Client Hyperliquid predictedFundings
//
// 响应是嵌套 tuple：[[coin, [[venue, {fundingRate, nextFundingTime, fundingIntervalHours}], ...]], ...]
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
		c.resolver = exchange.ResolverFor(model.VenueHyperliquid)
	}
	return c
}

func (c *Client) Venue() string { return model.VenueHyperliquid }

func (c *Client) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	body := map[string]string{"type": "predictedFundings"}
	data, err := c.http.Do(ctx, model.VenueHyperliquid, "predictedFundings", http.MethodPost, c.baseURL+"/info", body)
	if err != nil {
		return nil, err
	}
	return c.parse(data)
}

func (c *Client) parse(data []byte) ([]model.FundingObservation, error) {
	if !gjson.ValidBytes(data) {
		return nil, &model.FetchError{Venue: model.VenueHyperliquid, Op: "predictedFundings", Err: errInvalidJSON}
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, &model.FetchError{Venue: model.VenueHyperliquid, Op: "predictedFundings", Err: errNotArray}
	}

	now := c.now()
	var out []model.FundingObservation
	root.ForEach(func(_, tuple gjson.Result) bool {
		coin := tuple.Get("0").String()
		sym := c.resolver.Canonicalize(coin)
		if sym == "" {
			return true
		}
		tuple.Get("1").ForEach(func(_, entry gjson.Result) bool {
			if entry.Get("0").String() != perpVenue {
				return true
			}
			point := entry.Get("1")
			if !point.IsObject() {
				return false
			}
			raw, ok := exchange.ParseFloat(point.Get("fundingRate").String())
			if !ok {
				return false
			}
			hours := point.Get("fundingIntervalHours").Float()
			if hours <= 0 {
				hours = defaultIntervalHours
			}
			out = append(out, model.FundingObservation{
				Venue:      model.VenueHyperliquid,
				RawSymbol:  coin,
				Symbol:     sym,
				RatePer8h:  service.Normalize(raw, c.conv.WithInterval(hours)),
				ObservedAt: now,
			})
			return false
		})
		return true
	})
	if out == nil {
		out = []model.FundingObservation{}
	}
	return out, nil
}

func init() {
	source.Register(model.VenueHyperliquid, func(deps source.Deps) source.Adapter {
		return source.Adapter{Funding: New(deps)}
	})
}
