package grvt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFetchFundingPartial 单个合约失败时返回其余结果和 PartialError
func TestFetchFundingPartial(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/instruments":
			w.Write([]byte(`{"result":[
			  {"instrument":"BTC_USDT_Perp","base":"BTC","quote":"USDT","kind":"PERPETUAL"},
			  {"instrument":"ETH_USDT_Perp","base":"ETH","quote":"USDT","kind":"PERPETUAL"},
			  {"instrument":"SOL_USDT_Perp","base":"sol","quote":"USDT","kind":"PERPETUAL"}
			]}`))
		case "/funding":
			mu.Lock()
			calls = append(calls, time.Now())
			mu.Unlock()
			var req fundingReq
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 1, req.Limit)
			switch req.Instrument {
			case "BTC_USDT_Perp":
				w.Write([]byte(`{"result":[{"instrument":"BTC_USDT_Perp","funding_rate":0.02,"funding_rate_8_h_avg":0.01}]}`))
			case "ETH_USDT_Perp":
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			default:
				w.Write([]byte(`{"result":[{"instrument":"SOL_USDT_Perp","funding_rate":0.03}]}`))
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(source.Deps{
		BaseURL:    srv.URL,
		HTTP:       exchange.NewClientWith(srv.Client()),
		Convention: service.ConventionFor(model.VenueGRVT),
		Gap:        20 * time.Millisecond,
	})
	obs, err := c.FetchFunding(context.Background())

	var partial *model.PartialError
	require.True(t, errors.As(err, &partial))
	require.Len(t, partial.Failures, 1)
	assert.Equal(t, "ETH_USDT_Perp", partial.Failures[0].Symbol)
	assert.Contains(t, err.Error(), "Partial data: ETH_USDT_Perp: grvt funding: http 429")

	require.Len(t, obs, 2)
	assert.Equal(t, "BTC", obs[0].Symbol)
	assert.InDelta(t, 0.0001, obs[0].RatePer8h, 1e-12)
	assert.Equal(t, "SOL", obs[1].Symbol)
	assert.InDelta(t, 0.0003, obs[1].RatePer8h, 1e-12)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 3)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), 15*time.Millisecond)
	}
}

// TestFetchFundingInstrumentsError 合约列表失败直接返回
func TestFetchFundingInstrumentsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(source.Deps{BaseURL: srv.URL, HTTP: exchange.NewClientWith(srv.Client()), Gap: time.Millisecond})
	obs, err := c.FetchFunding(context.Background())
	assert.Nil(t, obs)
	var fe *model.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "instruments", fe.Op)
}
