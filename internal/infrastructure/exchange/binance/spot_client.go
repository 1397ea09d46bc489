package binance

import (
	"context"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/infrastructure/exchange"
)

// SpotPairs 查询 binance 现货正在交易的 USDT 交易对
type SpotPairs struct {
	baseURL string
	http    *exchange.Client
}

type spotTicker struct {
	Symbol string `json:"symbol"`
}

// NewSpotPairs baseURL 为空时使用 api.binance.com
func NewSpotPairs(baseURL string, hc *exchange.Client) *SpotPairs {
	if baseURL == "" {
		baseURL = DefaultSpotURL
	}
	if hc == nil {
		hc = exchange.NewClient(10 * time.Second)
	}
	return &SpotPairs{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// USDTPairs 返回大写的交易对集合
func (s *SpotPairs) USDTPairs(ctx context.Context) (map[string]struct{}, error) {
	var tickers []spotTicker
	endpoint := s.baseURL + "/api/v3/ticker/24hr?symbolStatus=TRADING&type=MINI"
	if err := s.http.GetJSON(ctx, model.VenueBinance, "ticker/24hr", endpoint, &tickers); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		sym := strings.ToUpper(t.Symbol)
		if strings.HasSuffix(sym, "USDT") {
			out[sym] = struct{}{}
		}
	}
	return out, nil
}
