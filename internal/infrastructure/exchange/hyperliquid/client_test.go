package hyperliquid

import (
	"context"
	"encoding/json"
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

const predicted = `[
  ["BTC", [["BinPerp", {"fundingRate":"0.0001","nextFundingTime":1,"fundingIntervalHours":8}],
           ["HlPerp",  {"fundingRate":"0.0000125","nextFundingTime":1,"fundingIntervalHours":1}]]],
  ["kBONK", [["HlPerp", {"fundingRate":"-0.00002","nextFundingTime":1,"fundingIntervalHours":4}]]],
  ["ETH", [["HlPerp", null]]],
  ["SOL", [["BybitPerp", {"fundingRate":"0.0003","nextFundingTime":1,"fundingIntervalHours":8}]]]
]`

// TestFetchFunding 只取 HlPerp，按条目周期换算，k 前缀转为 1000
func TestFetchFunding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/info", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "predictedFundings", body["type"])
		w.Write([]byte(predicted))
	}))
	defer srv.Close()

	c := New(source.Deps{
		BaseURL:    srv.URL,
		HTTP:       exchange.NewClientWith(srv.Client()),
		Convention: service.ConventionFor(model.VenueHyperliquid),
	})
	obs, err := c.FetchFunding(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "BTC", obs[0].Symbol)
	assert.InDelta(t, 0.0001, obs[0].RatePer8h, 1e-12)
	assert.Equal(t, "1000BONK", obs[1].Symbol)
	assert.Equal(t, "kBONK", obs[1].RawSymbol)
	assert.InDelta(t, -0.00004, obs[1].RatePer8h, 1e-12)
}

// TestParseNotArray 非数组响应返回 FetchError
func TestParseNotArray(t *testing.T) {
	c := New(source.Deps{})
	_, err := c.parse([]byte(`{"error":"busy"}`))
	require.Error(t, err)
	var fe *model.FetchError
	assert.ErrorAs(t, err, &fe)

	obs, err := c.parse([]byte(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, obs)
	assert.Empty(t, obs)
}
