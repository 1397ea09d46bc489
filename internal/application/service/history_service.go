package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"
	domainservice "fundingarb/internal/domain/service"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrRefreshInFlight 已有刷新在进行
var ErrRefreshInFlight = errors.New("history refresh already in flight")

// HistorySourceName 历史统计在 HTTP 刷新路由中的名字
const HistorySourceName = "lighter:history"

// HistoryOptions lighter 历史统计参数
type HistoryOptions struct {
	PrincipalUSD       float64
	RefreshInterval    time.Duration
	RequestGap         time.Duration
	Lookback           time.Duration
	FilterBinancePairs bool
	Excluded           []string
	Now                func() time.Time
}

// HistoryService 定时拉取 lighter 各市场近 7 天资金费并计算统计
type HistoryService struct {
	src   port.HistorySource
	pairs port.PairLister
	store port.HistoryStore
	opts  HistoryOptions

	limiter  *rate.Limiter
	state    atomic.Pointer[model.HistoryState]
	inFlight atomic.Bool
}

// NewHistoryService pairs 和 store 可以为 nil
func NewHistoryService(src port.HistorySource, pairs port.PairLister, store port.HistoryStore, opts HistoryOptions) *HistoryService {
	if opts.PrincipalUSD <= 0 {
		opts.PrincipalUSD = 1000
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 10 * time.Minute
	}
	if opts.Lookback <= 0 {
		opts.Lookback = domainservice.HistoryDays * 24 * time.Hour
	}
	if opts.Excluded == nil {
		opts.Excluded = domainservice.ExcludedHistorySymbols
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	limit := rate.Inf
	if opts.RequestGap > 0 {
		limit = rate.Every(opts.RequestGap)
	}
	s := &HistoryService{
		src:     src,
		pairs:   pairs,
		store:   store,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
	s.state.Store(&model.HistoryState{Rows: []model.HistoryRow{}})
	return s
}

// State 当前结果
func (s *HistoryService) State() model.HistoryState {
	return *s.state.Load()
}

// Run 先加载磁盘快照，再立即刷新一次，之后按间隔刷新
func (s *HistoryService) Run(ctx context.Context) error {
	s.loadSnapshot()

	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInFlight) {
			log.Warn().Str("source", HistorySourceName).Err(err).Msg("history refresh failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *HistoryService) loadSnapshot() {
	if s.store == nil {
		return
	}
	snap, err := s.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("load history snapshot failed")
		return
	}
	if snap == nil || len(snap.Rows) == 0 {
		return
	}
	s.state.Store(&model.HistoryState{Rows: snap.Rows, LastUpdated: snap.LastUpdated})
	log.Info().Int("rows", len(snap.Rows)).Msg("✓ History snapshot loaded")
}

// Refresh 顺序拉取每个市场，单个市场失败不影响其他市场
func (s *HistoryService) Refresh(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer s.inFlight.Store(false)
	return s.refresh(ctx)
}

// RefreshAsync 后台刷新，已有刷新在进行时返回 false
func (s *HistoryService) RefreshAsync(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer s.inFlight.Store(false)
		if err := s.refresh(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Str("source", HistorySourceName).Err(err).Msg("history refresh failed")
		}
	}()
	return true
}

func (s *HistoryService) refresh(ctx context.Context) error {
	prev := s.State()
	s.setState(prev.Rows, true, prev.Error, prev.LastUpdated)

	var notes []string
	var pairs map[string]struct{}
	if s.opts.FilterBinancePairs && s.pairs != nil {
		p, err := s.pairs.USDTPairs(ctx)
		if err != nil {
			// 过滤条件拿不到时不过滤
			notes = append(notes, fmt.Sprintf("binance pairs: %v", err))
		} else {
			pairs = p
		}
	}

	markets, err := s.src.Markets(ctx)
	if err != nil {
		s.setState(prev.Rows, false, err.Error(), prev.LastUpdated)
		return fmt.Errorf("load markets: %w", err)
	}
	markets = domainservice.FilterHistoryMarkets(markets, s.opts.Excluded)
	if pairs != nil {
		kept := markets[:0]
		for _, m := range markets {
			if domainservice.HasPair(m.Symbol, pairs) {
				kept = append(kept, m)
			}
		}
		markets = kept
	}
	if len(markets) == 0 {
		s.setState(prev.Rows, false, "no markets", prev.LastUpdated)
		return errors.New("no lighter markets")
	}

	end := s.opts.Now()
	start := end.Add(-s.opts.Lookback)
	rows := make([]model.HistoryRow, 0, len(markets))
	var failures []model.InstrumentFailure
	for _, m := range markets {
		if err := s.limiter.Wait(ctx); err != nil {
			failures = append(failures, model.InstrumentFailure{Symbol: m.Symbol, Err: err})
			break
		}
		points, err := s.src.FundingHistory(ctx, m.MarketID, start, end)
		if err != nil {
			failures = append(failures, model.InstrumentFailure{Symbol: m.Symbol, Err: err})
			continue
		}
		rows = append(rows, domainservice.DeriveHistory(m, points, s.opts.PrincipalUSD))
		s.setState(rows, true, "", prev.LastUpdated)
	}

	if len(failures) > 0 {
		notes = append(notes, (&model.PartialError{Venue: model.VenueLighter, Failures: failures}).Error())
	}
	errMsg := strings.Join(notes, "; ")

	if len(rows) == 0 {
		s.setState(prev.Rows, false, errMsg, prev.LastUpdated)
		return fmt.Errorf("no history rows: %s", errMsg)
	}

	now := s.opts.Now()
	s.setState(rows, false, errMsg, now)
	if s.store != nil {
		if err := s.store.Save(model.HistorySnapshot{Rows: rows, LastUpdated: now}); err != nil {
			log.Warn().Err(err).Msg("save history snapshot failed")
		}
	}
	log.Info().Int("rows", len(rows)).Int("failures", len(failures)).Msg("lighter history refreshed")
	return nil
}

func (s *HistoryService) setState(rows []model.HistoryRow, refreshing bool, errMsg string, updated time.Time) {
	cp := make([]model.HistoryRow, len(rows))
	copy(cp, rows)
	s.state.Store(&model.HistoryState{
		Rows:        cp,
		Refreshing:  refreshing,
		Error:       errMsg,
		LastUpdated: updated,
	})
}
