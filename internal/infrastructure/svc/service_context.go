package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"fundingarb/internal/application/port"
	"fundingarb/internal/application/service"
	"fundingarb/internal/application/usecase/monitor"
	"fundingarb/internal/domain/model"
	domainservice "fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/config"
	"fundingarb/internal/infrastructure/container"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/exchange/binance"
	"fundingarb/internal/infrastructure/exchange/lighter"
	"fundingarb/internal/infrastructure/metrics"
	"fundingarb/internal/infrastructure/source"
	"fundingarb/internal/infrastructure/storage/snapshot"
	"fundingarb/internal/interfaces/console"
	httpapi "fundingarb/internal/interfaces/http"

	// 注册全部交易所 adapter
	_ "fundingarb/internal/infrastructure/exchange/all"
)

// publishTimeout 单次发布写存储的上限
const publishTimeout = 10 * time.Second

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	container *container.Container
	http      *exchange.Client
	metrics   port.Metrics
	snapshots port.SnapshotStore
	repo      port.Repository

	// 输出端口
	Sink port.Sink

	// 应用业务组件（依赖基础设施）
	Aggregator *service.Aggregator
	Scheduler  *service.Scheduler
	Streams    *service.StreamRunner
	History    *service.HistoryService

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		http:        exchange.NewClient(cfg.RequestTimeout()),
		metrics:     metrics.Recorder{},
		snapshots:   snapshot.NewTableStore(cfg.Snapshot.Path, time.Duration(cfg.Snapshot.MaxAgeHours)*time.Hour),
		Sink:        console.NewSink(),
		closerChain: make([]func() error, 0),
	}

	// 初始化所有组件，按依赖顺序
	if err := sc.initializeComponents(); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 初始化所有应用组件
// 按照依赖关系有序初始化，确保不会有循环依赖
func (sc *ServiceContext) initializeComponents() error {
	// 0. 存储层
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// 1. 数据源
	adapters := sc.buildAdapters()
	if len(adapters) == 0 {
		return ErrNoSourcesEnabled
	}

	// 2. 聚合层，交易所列表在这里固定
	venues := make([]string, 0, len(adapters))
	for _, a := range adapters {
		venues = append(venues, a.venue)
	}
	sc.Aggregator = service.NewAggregator(venues, service.AggregatorOptions{
		DefaultSpreads: sc.defaultSpreads(),
		Metrics:        sc.metrics,
	})
	sc.warmStart()
	sc.Aggregator.OnPublish(sc.publish)

	// 3. 调度器和 websocket
	sc.Scheduler = service.NewScheduler(sc.Aggregator, service.SchedulerOptions{
		Timeout: sc.Config.RequestTimeout(),
		Metrics: sc.metrics,
	})
	var streams []port.StreamSource
	for _, a := range adapters {
		vc := sc.Config.Venue(a.venue)
		if a.Funding != nil {
			sc.Scheduler.AddFunding(a.Funding, vc.FundingInterval())
		}
		if a.Quotes != nil {
			sc.Scheduler.AddQuotes(a.Quotes, vc.QuoteInterval())
		}
		if a.Stream != nil {
			streams = append(streams, a.Stream)
		}
	}
	sc.Streams = service.NewStreamRunner(sc.Aggregator, sc.metrics, streams...)

	// 4. lighter 历史
	if sc.Config.History.Enabled {
		sc.initHistory()
	}

	log.Info().
		Strs("venues", venues).
		Int("sources", len(sc.Scheduler.Sources())).
		Int("streams", len(streams)).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 初始化存储层
func (sc *ServiceContext) initializeStorage() error {
	c, err := container.New(sc.Ctx, sc.Config)
	if err != nil {
		return err
	}
	sc.container = c
	sc.repo = c.Repository()

	// 注册关闭回调
	sc.closerChain = append(sc.closerChain, c.Close)

	log.Info().Int("stores", c.Stores()).Msg("✓ Storage initialized")
	return nil
}

type venueAdapter struct {
	venue string
	source.Adapter
}

// buildAdapters 按配置顺序构造已注册的交易所 adapter
func (sc *ServiceContext) buildAdapters() []venueAdapter {
	out := make([]venueAdapter, 0, len(sc.Config.Venues.Enabled))
	for _, venue := range sc.Config.Venues.Enabled {
		factory, ok := source.Get(venue)
		if !ok {
			log.Warn().Str("venue", venue).Err(ErrUnknownSource).Msg("venue skipped")
			continue
		}
		vc := sc.Config.Venue(venue)
		a := factory(source.Deps{
			HTTP:       sc.http,
			BaseURL:    vc.BaseURL,
			AltURL:     vc.AltURL,
			Convention: conventionFor(venue, vc),
			Gap:        vc.Gap(),
			Resolver:   exchange.ResolverFor(venue),
		})
		if a.Funding == nil && a.Stream == nil {
			log.Warn().Str("venue", venue).Msg("adapter has no funding source, skipped")
			continue
		}
		out = append(out, venueAdapter{venue: venue, Adapter: a})
	}
	return out
}

// conventionFor 默认报价方式叠加配置覆盖项
func conventionFor(venue string, vc config.VenueConfig) domainservice.Convention {
	c := domainservice.ConventionFor(venue)
	if vc.Percent != nil {
		c.Percent = *vc.Percent
	}
	if vc.Annualized != nil {
		c.Annualized = *vc.Annualized
	}
	return c.WithInterval(vc.IntervalHours)
}

func (sc *ServiceContext) defaultSpreads() map[string]float64 {
	spreads := domainservice.DefaultSpreads()
	for _, venue := range model.KnownVenues {
		if s := sc.Config.Venue(venue).DefaultSpread; s != nil {
			spreads[venue] = *s
		}
	}
	return spreads
}

// warmStart 优先使用 JSON 快照，没有时退回 SQLite 中的最新表
func (sc *ServiceContext) warmStart() {
	table, err := sc.snapshots.Load()
	if err != nil {
		log.Warn().Err(err).Msg("load snapshot failed")
	}
	from := "snapshot"
	if table == nil {
		table = sc.loadLatest()
		from = "sqlite"
	}
	if table == nil {
		return
	}
	if sc.Aggregator.Seed(table) {
		log.Info().
			Str("from", from).
			Int("rows", len(table.Rows)).
			Time("lastUpdated", table.LastUpdated).
			Msg("✓ Warm start table loaded")
	}
}

func (sc *ServiceContext) loadLatest() *model.Table {
	loader := sc.container.LatestLoader()
	if loader == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()
	table, err := loader.LoadLatest(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("load latest table from sqlite failed")
		return nil
	}
	if table == nil {
		return nil
	}
	maxAge := time.Duration(sc.Config.Snapshot.MaxAgeHours) * time.Hour
	if time.Since(table.LastUpdated) > maxAge {
		return nil
	}
	table.Rows = domainservice.ValidRows(table.Rows)
	if table.Empty() {
		return nil
	}
	return table
}

// publish 每张新表写快照并同步到全部存储
func (sc *ServiceContext) publish(ctx context.Context, table model.Table) {
	if err := sc.snapshots.Save(table); err != nil {
		log.Warn().Err(err).Msg("save snapshot failed")
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := sc.repo.UpsertLatest(wctx, table); err != nil {
		log.Warn().Err(err).Str("table", table.ID).Msg("mirror latest table failed")
	}
}

// initHistory lighter 历史统计，binance 现货交易对用于过滤
func (sc *ServiceContext) initHistory() {
	lc := sc.Config.Venue(model.VenueLighter)
	src := lighter.New(source.Deps{
		HTTP:       sc.http,
		BaseURL:    lc.BaseURL,
		Convention: conventionFor(model.VenueLighter, lc),
		Resolver:   exchange.ResolverFor(model.VenueLighter),
	})
	pairs := binance.NewSpotPairs(sc.Config.Venue(model.VenueBinance).AltURL, sc.http)
	store := snapshot.NewHistoryStore(sc.Config.History.Path, time.Duration(sc.Config.Snapshot.MaxAgeHours)*time.Hour)

	excluded := sc.Config.History.Excluded
	if len(excluded) == 0 {
		excluded = nil
	}
	sc.History = service.NewHistoryService(src, pairs, store, service.HistoryOptions{
		PrincipalUSD:       sc.Config.History.PrincipalUSD,
		RefreshInterval:    time.Duration(sc.Config.History.RefreshMin) * time.Minute,
		RequestGap:         time.Duration(sc.Config.History.GapMs) * time.Millisecond,
		Lookback:           time.Duration(sc.Config.History.LookbackDays) * 24 * time.Hour,
		FilterBinancePairs: sc.Config.History.FilterBinancePairs,
		Excluded:           excluded,
	})
	log.Info().
		Bool("filterBinancePairs", sc.Config.History.FilterBinancePairs).
		Msg("✓ Lighter history initialized")
}

// BuildMonitorServiceDeps 构建终端看板所需的依赖
func (sc *ServiceContext) BuildMonitorServiceDeps() monitor.ServiceDeps {
	return monitor.ServiceDeps{
		Query:        sc.Aggregator,
		Sink:         sc.Sink,
		CapitalUSD:   sc.Config.App.CapitalUSD,
		TopN:         sc.Config.Terminal.TopN,
		Rows:         sc.Config.Terminal.Rows,
		RenderEvery:  sc.Config.RenderEvery(),
		SnapshotSpec: sc.Config.Terminal.SnapshotCron,
	}
}

// BuildHTTPServer 构建 HTTP API
func (sc *ServiceContext) BuildHTTPServer() (*httpapi.Server, error) {
	var history httpapi.HistoryReader
	if sc.History != nil {
		history = sc.History
	}
	return httpapi.NewServer(sc.Aggregator, sc.Scheduler, history, httpapi.Options{
		Addr:        sc.Config.HTTP.Addr,
		CORSOrigins: sc.Config.HTTP.CORSOrigins,
		CacheTTL:    time.Duration(sc.Config.HTTP.CacheTTLSec) * time.Second,
		CapitalUSD:  sc.Config.App.CapitalUSD,
		Limit:       sc.Config.App.Limit,
		Metrics:     metrics.Handler(),
	})
}

// Close 关闭 ServiceContext 中的所有资源
// 应该在所有 goroutine 退出之后调用
func (sc *ServiceContext) Close() error {
	// 按照相反的顺序关闭所有资源
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
