package edgex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/source"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *parser {
	now := func() time.Time { return time.Unix(1_700_000_000, 0) }
	return newParser(service.NewSymbolResolver(service.ResolverConfig{Suffixes: []string{"USDT", "USD"}}),
		service.ConventionFor(model.VenueEdgeX), now)
}

// TestHandlePing 原样回传 time
func TestHandlePing(t *testing.T) {
	p := newTestParser()
	reply, ev := p.handle([]byte(`{"type":"ping","time":"1700000000123"}`))
	assert.Nil(t, ev)
	assert.Equal(t, control{Type: "pong", Time: "1700000000123"}, reply)

	reply, _ = p.handle([]byte(`{"type":"ping"}`))
	assert.Equal(t, control{Type: "pong", Time: "1700000000000"}, reply)
}

// TestHandleSnapshotAndUpdate 快照替换，增量合并，名义价值不足的合约被删除
func TestHandleSnapshotAndUpdate(t *testing.T) {
	p := newTestParser()
	_, ev := p.handle([]byte(`{"type":"quote-event","channel":"ticker.all.1s","content":{"dataType":"Snapshot","data":[
	  {"contractId":"1","contractName":"BTCUSD","openInterest":"10","lastPrice":"60000","fundingRate":"0.00005"},
	  {"contractId":"2","contractName":"TINYUSD","openInterest":"10","lastPrice":"1","fundingRate":"0.001"}
	]}}`))
	require.NotNil(t, ev)
	assert.Equal(t, model.EventSnapshot, ev.Kind)
	require.Len(t, ev.Upserts, 1)
	btc := ev.Upserts["BTCUSD"]
	assert.Equal(t, "BTC", btc.Symbol)
	assert.InDelta(t, 0.0001, btc.RatePer8h, 1e-12)

	_, ev = p.handle([]byte(`{"type":"quote-event","channel":"ticker.all.1s","content":{"dataType":"changed","data":[
	  {"contractId":"1","contractName":"BTCUSD","openInterest":"0.1","lastPrice":"60000","fundingRate":"0.00005"},
	  {"contractId":"3","contractName":"ETHUSD","openInterest":"100","lastPrice":"3000","fundingRate":"-0.0001"}
	]}}`))
	require.NotNil(t, ev)
	assert.Equal(t, model.EventUpdate, ev.Kind)
	assert.Equal(t, []string{"BTCUSD"}, ev.Removals)
	assert.InDelta(t, -0.0002, ev.Upserts["ETHUSD"].RatePer8h, 1e-12)
}

// TestHandleIgnored 其他频道、空增量和坏数据不产生事件
func TestHandleIgnored(t *testing.T) {
	p := newTestParser()
	for _, msg := range []string{
		`not json`,
		`{"type":"subscribed","channel":"ticker.all.1s"}`,
		`{"type":"quote-event","channel":"depth.1","content":{"dataType":"snapshot","data":[]}}`,
		`{"type":"quote-event","channel":"ticker.all.1s","content":{"dataType":"changed","data":[]}}`,
	} {
		reply, ev := p.handle([]byte(msg))
		assert.Nil(t, reply, msg)
		assert.Nil(t, ev, msg)
	}

	_, ev := p.handle([]byte(`{"type":"quote-event","channel":"ticker.all.1s","content":{"dataType":"snapshot","data":[]}}`))
	require.NotNil(t, ev)
	assert.Equal(t, model.EventSnapshot, ev.Kind)
	assert.Empty(t, ev.Upserts)
}

// TestSubscribe 连接后订阅，回复 ping，推送快照
func TestSubscribe(t *testing.T) {
	upgrader := gws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("timestamp"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		assert.Equal(t, "subscribe", sub["type"])
		assert.Equal(t, TickerChannel, sub["channel"])

		conn.WriteMessage(gws.TextMessage, []byte(`{"type":"ping","time":"42"}`))
		var pong map[string]string
		if err := conn.ReadJSON(&pong); err != nil {
			return
		}
		assert.Equal(t, map[string]string{"type": "pong", "time": "42"}, pong)

		conn.WriteMessage(gws.TextMessage, []byte(`{"type":"quote-event","channel":"ticker.all.1s","content":{"dataType":"snapshot","data":[
		  {"contractId":"1","contractName":"BTCUSD","openInterest":"10","lastPrice":"60000","fundingRate":"0.00005"}]}}`))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(source.Deps{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"), Convention: service.ConventionFor(model.VenueEdgeX)})
	s.delay = 50 * time.Millisecond
	ch, err := s.Subscribe(ctx)
	require.NoError(t, err)

	var got []model.StreamEvent
	timeout := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out, got %d events", len(got))
		}
	}
	assert.Equal(t, model.EventStatus, got[0].Kind)
	assert.Equal(t, model.StateConnected, got[0].State)
	assert.Equal(t, model.EventSnapshot, got[1].Kind)
	assert.Contains(t, got[1].Upserts, "BTCUSD")

	cancel()
	for range ch {
	}
}
