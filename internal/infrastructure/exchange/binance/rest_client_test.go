package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, routes map[string]string, status map[string]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code, ok := status[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server, skip bool) *FuturesClient {
	return NewFuturesClient(FuturesOptions{
		Venue:        model.VenueBinance,
		BaseURL:      srv.URL,
		HTTP:         exchange.NewClientWith(srv.Client()),
		Convention:   service.ConventionFor(model.VenueBinance),
		SkipInactive: skip,
	})
}

const premiumIndex = `[
  {"symbol":"BTCUSDT","markPrice":"60000","lastFundingRate":"0.00010000","nextFundingTime":1700000000000},
  {"symbol":"SOLUSDT","markPrice":"150","lastFundingRate":"0.00020000","nextFundingTime":1700000000000},
  {"symbol":"DEADUSDT","markPrice":"1","lastFundingRate":"0.00000000","nextFundingTime":1700000000000},
  {"symbol":"OLDUSDT","markPrice":"1","lastFundingRate":"0.00030000","nextFundingTime":0},
  {"symbol":"BADUSDT","markPrice":"1","lastFundingRate":"","nextFundingTime":1700000000000}
]`

// TestFetchFunding 按 fundingInfo 的周期换算，并跳过未激活合约
func TestFetchFunding(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/fapi/v1/premiumIndex": premiumIndex,
		"/fapi/v1/fundingInfo":  `[{"symbol":"SOLUSDT","fundingIntervalHours":4}]`,
	}, nil)

	obs, err := newClient(srv, true).FetchFunding(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)

	got := map[string]float64{}
	for _, o := range obs {
		assert.Equal(t, model.VenueBinance, o.Venue)
		got[o.Symbol] = o.RatePer8h
	}
	assert.InDelta(t, 0.0001, got["BTC"], 1e-12)
	assert.InDelta(t, 0.0004, got["SOL"], 1e-12)
}

// TestFetchFundingKeepsInactive aster 不跳过
func TestFetchFundingKeepsInactive(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/fapi/v1/premiumIndex": premiumIndex,
		"/fapi/v1/fundingInfo":  `[]`,
	}, nil)

	obs, err := newClient(srv, false).FetchFunding(context.Background())
	require.NoError(t, err)
	assert.Len(t, obs, 4)
}

// TestFetchFundingInfoUnavailable fundingInfo 失败按 8h 计算
func TestFetchFundingInfoUnavailable(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/fapi/v1/premiumIndex": premiumIndex,
	}, map[string]int{"/fapi/v1/fundingInfo": http.StatusInternalServerError})

	obs, err := newClient(srv, true).FetchFunding(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)
	for _, o := range obs {
		if o.Symbol == "SOL" {
			assert.InDelta(t, 0.0002, o.RatePer8h, 1e-12)
		}
	}
}

// TestFetchFundingHTTPError premiumIndex 失败返回 FetchError
func TestFetchFundingHTTPError(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/fapi/v1/fundingInfo": `[]`,
	}, map[string]int{"/fapi/v1/premiumIndex": http.StatusServiceUnavailable})

	_, err := newClient(srv, true).FetchFunding(context.Background())
	var fe *model.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "premiumIndex", fe.Op)
	assert.Equal(t, http.StatusServiceUnavailable, fe.Status)
}

// TestFetchQuotes 丢弃无效报价
func TestFetchQuotes(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/fapi/v1/ticker/bookTicker": `[
		  {"symbol":"BTCUSDT","bidPrice":"59999.9","askPrice":"60000.1"},
		  {"symbol":"ZEROUSDT","bidPrice":"0","askPrice":"1"}
		]`,
	}, nil)

	quotes, err := newClient(srv, true).FetchQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "BTC", quotes[0].Symbol)
	assert.InDelta(t, 60000.1, quotes[0].Ask, 1e-9)
}

// TestSpotPairs 只保留 USDT 结尾的交易对
func TestSpotPairs(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/api/v3/ticker/24hr": `[{"symbol":"BTCUSDT"},{"symbol":"ethusdt"},{"symbol":"BTCFDUSD"}]`,
	}, nil)

	pairs, err := NewSpotPairs(srv.URL, exchange.NewClientWith(srv.Client())).USDTPairs(context.Background())
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
	assert.Contains(t, pairs, "BTCUSDT")
	assert.Contains(t, pairs, "ETHUSDT")
}

func TestVenue(t *testing.T) {
	c := NewFuturesClient(FuturesOptions{Venue: model.VenueAster, HTTP: exchange.NewClient(time.Second)})
	assert.Equal(t, model.VenueAster, c.Venue())
}
