package backpack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFetchFunding 1h 费率乘以 8，去掉 _USDC_PERP
func TestFetchFunding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/markPrices", r.URL.Path)
		w.Write([]byte(`[
		  {"symbol":"BTC_USDC_PERP","fundingRate":"0.0000125","markPrice":"60000"},
		  {"symbol":"SOL_USDC_PERP","fundingRate":-0.00005,"markPrice":150},
		  {"symbol":"ETH_USDC_PERP","fundingRate":null}
		]`))
	}))
	defer srv.Close()

	c := New(source.Deps{BaseURL: srv.URL, HTTP: exchange.NewClientWith(srv.Client()), Convention: service.ConventionFor(model.VenueBackpack)})
	obs, err := c.FetchFunding(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "BTC", obs[0].Symbol)
	assert.InDelta(t, 0.0001, obs[0].RatePer8h, 1e-12)
	assert.Equal(t, "SOL", obs[1].Symbol)
	assert.InDelta(t, -0.0004, obs[1].RatePer8h, 1e-12)
}

// TestFetchFundingHTTPError 失败不返回数据
func TestFetchFundingHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(source.Deps{BaseURL: srv.URL, HTTP: exchange.NewClientWith(srv.Client())})
	obs, err := c.FetchFunding(context.Background())
	assert.Nil(t, obs)
	assert.EqualError(t, err, "backpack markPrices: http 503: Service Unavailable")
}
