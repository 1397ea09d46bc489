package service

import (
	"testing"

	"fundingarb/internal/domain/model"
)

// TestStatusLine 测试降级状态汇总
func TestStatusLine(t *testing.T) {
	if got := StatusLine(nil); got != "all sources healthy" {
		t.Errorf("got %q", got)
	}
	got := StatusLine([]model.SourceStatus{
		{Source: "edgex", Venue: model.VenueEdgeX, State: model.StateDisconnected},
		{Source: "grvt", Venue: model.VenueGRVT, State: model.StateIdle},
		{Source: "binance", Venue: model.VenueBinance, State: model.StateError, LastError: "binance premiumIndex: http 503: down"},
	})
	want := "degraded: binance (binance premiumIndex: http 503: down) | edgex (disconnected, retrying)"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}
