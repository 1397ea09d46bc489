package svc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/infrastructure/config"
	"fundingarb/internal/infrastructure/storage/snapshot"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Snapshot.Path = filepath.Join(dir, "funding-snapshot.json")
	cfg.History.Path = filepath.Join(dir, "lighter-history.json")
	cfg.SQLite.Path = filepath.Join(dir, "fundingarb.db")
	return cfg
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// TestNewRegistersSources 默认配置下全部交易所都有数据源
func TestNewRegistersSources(t *testing.T) {
	sc, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer sc.Close()

	if got := sc.Aggregator.Venues(); len(got) != len(model.KnownVenues) {
		t.Errorf("expected %d venues, got %v", len(model.KnownVenues), got)
	}
	sources := sc.Scheduler.Sources()
	for _, want := range []string{"binance", "binance:quotes", "aster:quotes", "grvt", "lighter", "nado:quotes"} {
		if !contains(sources, want) {
			t.Errorf("missing source %q in %v", want, sources)
		}
	}
	// edgex 只有 websocket
	if contains(sources, "edgex") {
		t.Error("edgex should not be polled")
	}
	if sc.History != nil {
		t.Error("history should be disabled by default")
	}
}

// TestNewEnabledSubset 只启用配置中的交易所
func TestNewEnabledSubset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Venues.Enabled = []string{model.VenueBinance, model.VenueEdgeX}
	cfg.History.Enabled = true

	sc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer sc.Close()

	if got := sc.Aggregator.Venues(); len(got) != 2 {
		t.Errorf("unexpected venues %v", got)
	}
	if got := sc.Scheduler.Sources(); len(got) != 2 {
		t.Errorf("unexpected sources %v", got)
	}
	if sc.History == nil {
		t.Error("history should be enabled")
	}
	if _, err := sc.BuildHTTPServer(); err != nil {
		t.Errorf("build http server: %v", err)
	}
}

// TestWarmStartFromSnapshot 启动时用快照填充表
func TestWarmStartFromSnapshot(t *testing.T) {
	cfg := testConfig(t)
	store := snapshot.NewTableStore(cfg.Snapshot.Path, 24*time.Hour)
	err := store.Save(model.Table{
		ID: "prev",
		Rows: []model.UnifiedRow{{
			Symbol: "BTC",
			Rates:  map[string]float64{model.VenueBinance: 0.0001, model.VenueLighter: -0.0002},
		}},
		LastUpdated: time.Now(),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	sc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer sc.Close()

	tbl := sc.Aggregator.Table()
	if len(tbl.Rows) != 1 || tbl.Rows[0].Symbol != "BTC" {
		t.Fatalf("warm start table not loaded: %+v", tbl)
	}
	if got := sc.Aggregator.Funding(model.VenueBinance); len(got) != 1 {
		t.Errorf("expected seeded binance funding, got %v", got)
	}
}

// TestWarmStartFromSQLite 没有快照时退回 SQLite
func TestWarmStartFromSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.SQLite.Enabled = true

	// 第一次启动：发布一张表写入 sqlite
	sc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sc.publish(context.Background(), model.Table{
		ID: "t1",
		Rows: []model.UnifiedRow{
			{Symbol: "ETH", Rates: map[string]float64{model.VenueBinance: 0.0002, model.VenueAster: 0.0001}},
		},
		LastUpdated: time.Now(),
	})
	sc.Close()

	// 删掉快照只留 sqlite
	cfg.Snapshot.Path = filepath.Join(t.TempDir(), "missing.json")
	sc, err = New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer sc.Close()

	tbl := sc.Aggregator.Table()
	if len(tbl.Rows) != 1 || tbl.Rows[0].Symbol != "ETH" {
		t.Fatalf("sqlite warm start not loaded: %+v", tbl)
	}
}

// TestConventionOverrides 配置覆盖交易所报价方式
func TestConventionOverrides(t *testing.T) {
	yes, no := true, false
	c := conventionFor(model.VenueGRVT, config.VenueConfig{Percent: &no})
	if c.Percent {
		t.Error("percent override ignored")
	}
	c = conventionFor(model.VenueBinance, config.VenueConfig{Annualized: &yes, IntervalHours: 4})
	if !c.Annualized || c.IntervalHours != 4 {
		t.Errorf("unexpected convention %+v", c)
	}
	if c := conventionFor(model.VenueBackpack, config.VenueConfig{}); c.IntervalHours != 1 {
		t.Errorf("default interval lost: %+v", c)
	}
}

// TestDefaultSpreadOverride 配置覆盖默认价差
func TestDefaultSpreadOverride(t *testing.T) {
	cfg := testConfig(t)
	s := 0.0003
	cfg.Venues.Binance.DefaultSpread = &s
	sc := &ServiceContext{Config: cfg}
	spreads := sc.defaultSpreads()
	if spreads[model.VenueBinance] != 0.0003 {
		t.Errorf("binance spread %v", spreads[model.VenueBinance])
	}
	if spreads[model.VenueVariational] != 0.001 {
		t.Errorf("variational spread %v", spreads[model.VenueVariational])
	}
}
