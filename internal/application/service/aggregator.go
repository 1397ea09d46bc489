package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"
	domainservice "fundingarb/internal/domain/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PublishFunc 每次发布新表后调用，按发布顺序串行执行
type PublishFunc func(ctx context.Context, table model.Table)

// AggregatorOptions 聚合层参数
type AggregatorOptions struct {
	DefaultSpreads map[string]float64
	Metrics        port.Metrics
	Now            func() time.Time
}

type fundingSnapshot struct {
	obs []model.FundingObservation
	at  time.Time
}

type quoteSnapshot struct {
	quotes []model.MarketQuote
	at     time.Time
}

// venueSlot 每个交易所一个写者写 funding，一个写者写 quotes
type venueSlot struct {
	funding atomic.Pointer[fundingSnapshot]
	quotes  atomic.Pointer[quoteSnapshot]
}

// Aggregator 持有各交易所已提交的快照，并发布 join 后的表
type Aggregator struct {
	slots  map[string]*venueSlot
	venues []string

	table atomic.Pointer[model.Table]

	mu         sync.Mutex // 串行化 recompute
	seenFund   map[string]*fundingSnapshot
	seenQuotes map[string]*quoteSnapshot

	statusMu sync.RWMutex
	statuses map[string]model.SourceStatus

	notify    chan struct{}
	publishMu sync.Mutex
	hooks     []PublishFunc

	defaultSpreads map[string]float64
	metrics        port.Metrics
	now            func() time.Time
}

// NewAggregator venues 在构造时固定
func NewAggregator(venues []string, opts AggregatorOptions) *Aggregator {
	a := &Aggregator{
		slots:          make(map[string]*venueSlot, len(venues)),
		seenFund:       make(map[string]*fundingSnapshot),
		seenQuotes:     make(map[string]*quoteSnapshot),
		statuses:       make(map[string]model.SourceStatus),
		notify:         make(chan struct{}, 1),
		defaultSpreads: opts.DefaultSpreads,
		metrics:        opts.Metrics,
		now:            opts.Now,
	}
	if a.defaultSpreads == nil {
		a.defaultSpreads = domainservice.DefaultSpreads()
	}
	if a.metrics == nil {
		a.metrics = port.NopMetrics{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	for _, v := range venues {
		if _, ok := a.slots[v]; ok {
			continue
		}
		a.slots[v] = &venueSlot{}
		a.venues = append(a.venues, v)
	}
	return a
}

// Venues 构造时的交易所列表
func (a *Aggregator) Venues() []string {
	return append([]string(nil), a.venues...)
}

// OnPublish 注册发布回调，需在 RunPublisher 之前调用
func (a *Aggregator) OnPublish(fn PublishFunc) {
	a.publishMu.Lock()
	a.hooks = append(a.hooks, fn)
	a.publishMu.Unlock()
}

// CommitFunding 原子替换某个交易所的费率快照
func (a *Aggregator) CommitFunding(venue string, obs []model.FundingObservation) bool {
	slot, ok := a.slots[venue]
	if !ok {
		log.Warn().Str("venue", venue).Msg("commit for unknown venue ignored")
		return false
	}
	slot.funding.Store(&fundingSnapshot{obs: append([]model.FundingObservation(nil), obs...), at: a.now()})
	return true
}

// CommitQuotes 原子替换某个交易所的盘口快照
func (a *Aggregator) CommitQuotes(venue string, quotes []model.MarketQuote) bool {
	slot, ok := a.slots[venue]
	if !ok {
		log.Warn().Str("venue", venue).Msg("commit for unknown venue ignored")
		return false
	}
	slot.quotes.Store(&quoteSnapshot{quotes: append([]model.MarketQuote(nil), quotes...), at: a.now()})
	return true
}

// Funding 当前已提交的费率快照，没有时返回 nil
func (a *Aggregator) Funding(venue string) []model.FundingObservation {
	slot, ok := a.slots[venue]
	if !ok {
		return nil
	}
	if snap := slot.funding.Load(); snap != nil {
		return snap.obs
	}
	return nil
}

// Recompute 读取已提交的快照重新 join；没有任何快照变化时跳过
func (a *Aggregator) Recompute() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	changed := false
	funding := make(map[string][]model.FundingObservation, len(a.slots))
	quotes := make(map[string][]model.MarketQuote, len(a.slots))
	for venue, slot := range a.slots {
		f := slot.funding.Load()
		q := slot.quotes.Load()
		if f != a.seenFund[venue] || q != a.seenQuotes[venue] {
			changed = true
		}
		a.seenFund[venue] = f
		a.seenQuotes[venue] = q
		if f != nil {
			funding[venue] = f.obs
		}
		if q != nil {
			quotes[venue] = q.quotes
		}
	}
	if !changed {
		return false
	}

	rows := domainservice.Join(funding, quotes)
	table := &model.Table{ID: uuid.NewString(), Rows: rows, LastUpdated: a.now()}
	a.table.Store(table)
	a.metrics.TablePublished(len(rows))

	select {
	case a.notify <- struct{}{}:
	default:
	}
	return true
}

// Seed 用快照冷启动，已经有表时忽略。快照中的费率同时回填到还没有提交过的交易所
func (a *Aggregator) Seed(table *model.Table) bool {
	if table == nil || table.Empty() {
		return false
	}
	t := *table
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.table.CompareAndSwap(nil, &t) {
		return false
	}

	funding := make(map[string][]model.FundingObservation)
	quotes := make(map[string][]model.MarketQuote)
	for _, row := range t.Rows {
		for venue, rate := range row.Rates {
			funding[venue] = append(funding[venue], model.FundingObservation{
				Venue: venue, RawSymbol: row.Symbol, Symbol: row.Symbol, RatePer8h: rate, ObservedAt: t.LastUpdated,
			})
		}
		for venue, q := range row.Quotes {
			quotes[venue] = append(quotes[venue], model.MarketQuote{Venue: venue, Symbol: row.Symbol, Bid: q.Bid, Ask: q.Ask})
		}
	}
	for venue, slot := range a.slots {
		if obs, ok := funding[venue]; ok {
			snap := &fundingSnapshot{obs: obs, at: t.LastUpdated}
			if slot.funding.CompareAndSwap(nil, snap) {
				a.seenFund[venue] = snap
			}
		}
		if qs, ok := quotes[venue]; ok {
			snap := &quoteSnapshot{quotes: qs, at: t.LastUpdated}
			if slot.quotes.CompareAndSwap(nil, snap) {
				a.seenQuotes[venue] = snap
			}
		}
	}
	return true
}

// Table 当前发布的表
func (a *Aggregator) Table() model.Table {
	if t := a.table.Load(); t != nil {
		return *t
	}
	return model.EmptyTable()
}

// Opportunities 在当前表上计算排名
func (a *Aggregator) Opportunities(capital float64, limit int, sortBy model.SortKey) []model.SpreadOpportunity {
	return domainservice.Rank(a.Table().Rows, domainservice.RankOptions{
		CapitalUSD:     capital,
		Limit:          limit,
		SortBy:         sortBy,
		DefaultSpreads: a.defaultSpreads,
	})
}

// SetStatus 记录数据源状态
func (a *Aggregator) SetStatus(st model.SourceStatus) {
	a.statusMu.Lock()
	a.statuses[st.Source] = st
	a.statusMu.Unlock()
}

// UpdateStatus 在已有状态上修改
func (a *Aggregator) UpdateStatus(source string, fn func(*model.SourceStatus)) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	st, ok := a.statuses[source]
	if !ok {
		st = model.SourceStatus{Source: source}
	}
	fn(&st)
	a.statuses[source] = st
}

// Status 单个数据源状态
func (a *Aggregator) Status(source string) (model.SourceStatus, bool) {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	st, ok := a.statuses[source]
	return st, ok
}

// Statuses 按交易所顺序返回全部状态
func (a *Aggregator) Statuses() []model.SourceStatus {
	a.statusMu.RLock()
	out := make([]model.SourceStatus, 0, len(a.statuses))
	for _, st := range a.statuses {
		out = append(out, st)
	}
	a.statusMu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := model.VenueIndex(out[i].Venue), model.VenueIndex(out[j].Venue)
		if vi != vj {
			return vi < vj
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// StatusLine 汇总降级数据源
func (a *Aggregator) StatusLine() string {
	return domainservice.StatusLine(a.Statuses())
}

// RunPublisher 把最新的表依次交给回调，同一时间只有一个回调在执行
func (a *Aggregator) RunPublisher(ctx context.Context) {
	var lastID string
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.notify:
		}
		t := a.table.Load()
		if t == nil || t.ID == lastID {
			continue
		}
		lastID = t.ID

		a.publishMu.Lock()
		hooks := append([]PublishFunc(nil), a.hooks...)
		a.publishMu.Unlock()
		for _, fn := range hooks {
			fn(ctx, *t)
		}
	}
}
