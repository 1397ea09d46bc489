package variational

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

const stats = `{"num_markets":3,"listings":[
  {"ticker":"btc","mark_price":"60000","funding_rate":"0.1095","quotes":{"size_1k":{"bid":"59990","ask":"60010"}}},
  {"ticker":"eth","mark_price":"3000","funding_rate":"-0.2190","quotes":{"best_bid":"2999","best_ask":"3001"}},
  {"ticker":"bad","mark_price":"1","funding_rate":"n/a","quotes":{}}
]}`

func newClient(t *testing.T) *Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metadata/stats", r.URL.Path)
		w.Write([]byte(stats))
	}))
	t.Cleanup(srv.Close)
	return New(source.Deps{
		BaseURL:    srv.URL,
		HTTP:       exchange.NewClientWith(srv.Client()),
		Convention: service.ConventionFor(model.VenueVariational),
	})
}

// TestFetchFunding 年化费率除以 1095
func TestFetchFunding(t *testing.T) {
	obs, err := newClient(t).FetchFunding(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "BTC", obs[0].Symbol)
	assert.InDelta(t, 0.0001, obs[0].RatePer8h, 1e-12)
	assert.InDelta(t, -0.0002, obs[1].RatePer8h, 1e-12)
}

// TestFetchQuotes 1k 档位缺失时使用 best bid/ask
func TestFetchQuotes(t *testing.T) {
	quotes, err := newClient(t).FetchQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, model.MarketQuote{Venue: model.VenueVariational, Symbol: "BTC", Bid: 59990, Ask: 60010}, quotes[0])
	assert.Equal(t, model.MarketQuote{Venue: model.VenueVariational, Symbol: "ETH", Bid: 2999, Ask: 3001}, quotes[1])
}
