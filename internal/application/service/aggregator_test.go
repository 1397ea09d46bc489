package service

import (
	"context"
	"testing"
	"time"

	"fundingarb/internal/domain/model"
)

// TestAggregatorRecompute 测试提交后 join 以及无变化时跳过
func TestAggregatorRecompute(t *testing.T) {
	agg := NewAggregator([]string{"a", "b"}, AggregatorOptions{})

	if agg.Recompute() {
		t.Fatal("nothing committed, recompute should be skipped")
	}
	if tbl := agg.Table(); tbl.Rows == nil || len(tbl.Rows) != 0 {
		t.Fatalf("expected empty non-nil rows, got %+v", tbl)
	}

	agg.CommitFunding("a", []model.FundingObservation{fo("a", "BTC", 0.0001), fo("a", "ETH", 0.0001)})
	agg.CommitFunding("b", []model.FundingObservation{fo("b", "BTC", -0.0002)})
	if !agg.Recompute() {
		t.Fatal("expected recompute")
	}
	first := agg.Table()
	if len(first.Rows) != 1 || first.Rows[0].Symbol != "BTC" || first.ID == "" {
		t.Fatalf("unexpected table %+v", first)
	}
	if agg.Recompute() {
		t.Error("no snapshot changed, recompute should be skipped")
	}
	if agg.Table().ID != first.ID {
		t.Error("table id changed without recompute")
	}

	opps := agg.Opportunities(1000, 10, model.SortByDiff)
	if len(opps) != 1 || opps[0].HighVenue != "a" {
		t.Errorf("unexpected opportunities %+v", opps)
	}
}

// TestAggregatorUnknownVenue 未知交易所的提交被忽略
func TestAggregatorUnknownVenue(t *testing.T) {
	agg := NewAggregator([]string{"a"}, AggregatorOptions{})
	if agg.CommitFunding("zzz", []model.FundingObservation{fo("zzz", "BTC", 1)}) {
		t.Error("commit for unknown venue should fail")
	}
}

// TestAggregatorCommitIsCopied 提交后修改原 slice 不影响快照
func TestAggregatorCommitIsCopied(t *testing.T) {
	agg := NewAggregator([]string{"a", "b"}, AggregatorOptions{})
	in := []model.FundingObservation{fo("a", "BTC", 1)}
	agg.CommitFunding("a", in)
	agg.CommitFunding("b", []model.FundingObservation{fo("b", "BTC", 2)})
	in[0].RatePer8h = 99
	agg.Recompute()
	if v, _ := rateOf(agg.Table(), "BTC", "a"); v != 1 {
		t.Errorf("committed snapshot was mutated: %v", v)
	}
}

// TestAggregatorSeed 冷启动快照被回填，后续提交只替换对应交易所
func TestAggregatorSeed(t *testing.T) {
	agg := NewAggregator([]string{"a", "b"}, AggregatorOptions{})
	seed := &model.Table{
		Rows:        []model.UnifiedRow{{Symbol: "BTC", Rates: map[string]float64{"a": 1, "b": 2}}},
		LastUpdated: time.Now().Add(-time.Hour),
	}
	if !agg.Seed(seed) {
		t.Fatal("seed should succeed")
	}
	if agg.Seed(seed) {
		t.Error("second seed should be ignored")
	}
	if agg.Recompute() {
		t.Error("seed alone should not trigger recompute")
	}

	agg.CommitFunding("a", []model.FundingObservation{fo("a", "BTC", 3)})
	agg.Recompute()
	if v, _ := rateOf(agg.Table(), "BTC", "b"); v != 2 {
		t.Errorf("seeded venue b lost, got %v", v)
	}
	if v, _ := rateOf(agg.Table(), "BTC", "a"); v != 3 {
		t.Errorf("venue a not updated, got %v", v)
	}
}

// TestAggregatorPublisher 回调拿到最新的表
func TestAggregatorPublisher(t *testing.T) {
	agg := NewAggregator([]string{"a", "b"}, AggregatorOptions{})
	got := make(chan model.Table, 4)
	agg.OnPublish(func(ctx context.Context, table model.Table) { got <- table })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.RunPublisher(ctx)

	agg.CommitFunding("a", []model.FundingObservation{fo("a", "BTC", 1)})
	agg.CommitFunding("b", []model.FundingObservation{fo("b", "BTC", 2)})
	agg.Recompute()

	select {
	case tbl := <-got:
		if tbl.ID != agg.Table().ID {
			t.Errorf("published %s, current %s", tbl.ID, agg.Table().ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish hook not called")
	}
}

// TestAggregatorStatusLine 状态汇总
func TestAggregatorStatusLine(t *testing.T) {
	agg := NewAggregator([]string{model.VenueBinance}, AggregatorOptions{})
	agg.SetStatus(model.SourceStatus{Source: "binance", Venue: model.VenueBinance, State: model.StateIdle})
	if got := agg.StatusLine(); got != "all sources healthy" {
		t.Errorf("got %q", got)
	}
	agg.UpdateStatus("binance", func(st *model.SourceStatus) {
		st.State = model.StateError
		st.LastError = "boom"
	})
	if got := agg.StatusLine(); got != "degraded: binance (boom)" {
		t.Errorf("got %q", got)
	}
}
