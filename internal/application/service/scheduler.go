package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultRequestTimeout 单次拉取的超时
	DefaultRequestTimeout = 20 * time.Second
	// DefaultInterval 一般数据源的刷新间隔
	DefaultInterval = 300 * time.Second
)

var (
	// ErrUnknownSource 没有这个数据源
	ErrUnknownSource = errors.New("unknown source")
	// ErrEmptyResult 拉取成功但没有数据，保留上一次的快照
	ErrEmptyResult = errors.New("empty result, keeping previous snapshot")
)

// TriggerResult 手动触发的结果
type TriggerResult int

const (
	TriggerAccepted TriggerResult = iota
	TriggerDropped
)

const (
	taskIdle int32 = iota
	taskFetching
)

type task struct {
	name     string
	venue    string
	kind     model.SourceKind
	interval time.Duration
	fetch    func(ctx context.Context) (int, error)

	state   atomic.Int32
	dropped atomic.Int64
}

// SchedulerOptions 调度参数
type SchedulerOptions struct {
	Timeout time.Duration
	Metrics port.Metrics
	Now     func() time.Time
}

// Scheduler 每个数据源一个状态机：Idle → Fetching → Idle，拉取中的触发会被丢弃并计数
type Scheduler struct {
	agg     *Aggregator
	tasks   []*task
	byName  map[string]*task
	timeout time.Duration
	metrics port.Metrics
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewScheduler 创建调度器
func NewScheduler(agg *Aggregator, opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		agg:     agg,
		byName:  make(map[string]*task),
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRequestTimeout
	}
	if s.metrics == nil {
		s.metrics = port.NopMetrics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// FundingSourceName 费率数据源在调度器中的名字
func FundingSourceName(venue string) string { return venue }

// QuoteSourceName 盘口数据源在调度器中的名字
func QuoteSourceName(venue string) string { return venue + ":quotes" }

// AddFunding 注册费率数据源，需在 Run 之前调用
func (s *Scheduler) AddFunding(src port.FundingSource, interval time.Duration) {
	venue := src.Venue()
	s.add(&task{
		name:     FundingSourceName(venue),
		venue:    venue,
		kind:     model.KindFunding,
		interval: interval,
		fetch: func(ctx context.Context) (int, error) {
			obs, err := src.FetchFunding(ctx)
			var partial *model.PartialError
			if err != nil && !errors.As(err, &partial) {
				return 0, err
			}
			if len(obs) == 0 {
				if err != nil {
					return 0, err
				}
				return 0, ErrEmptyResult
			}
			s.agg.CommitFunding(venue, obs)
			return len(obs), err
		},
	})
}

// AddQuotes 注册盘口数据源，需在 Run 之前调用
func (s *Scheduler) AddQuotes(src port.QuoteSource, interval time.Duration) {
	venue := src.Venue()
	s.add(&task{
		name:     QuoteSourceName(venue),
		venue:    venue,
		kind:     model.KindQuotes,
		interval: interval,
		fetch: func(ctx context.Context) (int, error) {
			quotes, err := src.FetchQuotes(ctx)
			var partial *model.PartialError
			if err != nil && !errors.As(err, &partial) {
				return 0, err
			}
			if len(quotes) == 0 {
				if err != nil {
					return 0, err
				}
				return 0, ErrEmptyResult
			}
			s.agg.CommitQuotes(venue, quotes)
			return len(quotes), err
		},
	})
}

func (s *Scheduler) add(t *task) {
	if t.interval <= 0 {
		t.interval = DefaultInterval
	}
	if _, ok := s.byName[t.name]; ok {
		log.Warn().Str("source", t.name).Msg("duplicate source ignored")
		return
	}
	s.tasks = append(s.tasks, t)
	s.byName[t.name] = t
	s.agg.SetStatus(model.SourceStatus{Source: t.name, Venue: t.venue, Kind: t.kind, State: model.StateIdle})
}

// Sources 已注册的数据源名
func (s *Scheduler) Sources() []string {
	out := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.name)
	}
	return out
}

// Run 每个数据源启动时立即拉取一次，之后按各自间隔拉取。ctx 结束后等待进行中的拉取完成
func (s *Scheduler) Run(ctx context.Context) error {
	var loops sync.WaitGroup
	for _, t := range s.tasks {
		loops.Add(1)
		go func(t *task) {
			defer loops.Done()
			s.loop(ctx, t)
		}(t)
	}
	<-ctx.Done()
	loops.Wait()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	log.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	s.trigger(ctx, t)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx, t)
		}
	}
}

// Trigger 手动触发，和定时触发走同一个门
func (s *Scheduler) Trigger(ctx context.Context, name string) (TriggerResult, error) {
	t, ok := s.byName[name]
	if !ok {
		return TriggerDropped, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if !s.trigger(ctx, t) {
		return TriggerDropped, nil
	}
	return TriggerAccepted, nil
}

func (s *Scheduler) trigger(parent context.Context, t *task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if !t.state.CompareAndSwap(taskIdle, taskFetching) {
		n := t.dropped.Add(1)
		s.metrics.FetchDropped(t.name)
		s.agg.UpdateStatus(t.name, func(st *model.SourceStatus) { st.Dropped = n })
		log.Debug().Str("source", t.name).Msg("fetch in flight, trigger dropped")
		return false
	}
	s.agg.UpdateStatus(t.name, func(st *model.SourceStatus) {
		st.State = model.StateFetching
		st.LastAttempt = s.now()
	})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(parent, t)
	}()
	return true
}

// execute 不受调用方 ctx 取消影响，只受超时限制
func (s *Scheduler) execute(parent context.Context, t *task) {
	defer t.state.Store(taskIdle)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	start := s.now()
	n, err := t.fetch(ctx)
	elapsed := s.now().Sub(start)

	result := "ok"
	var partial *model.PartialError
	switch {
	case err == nil:
	case errors.As(err, &partial):
		result = "partial"
	case errors.Is(err, ErrEmptyResult):
		result = "empty"
	default:
		result = "error"
	}
	s.metrics.FetchObserved(t.name, result, elapsed)
	if n > 0 {
		s.metrics.ObservationsSet(t.name, n)
		s.agg.Recompute()
	}

	s.agg.UpdateStatus(t.name, func(st *model.SourceStatus) {
		if err != nil {
			st.State = model.StateError
			st.LastError = err.Error()
		} else {
			st.State = model.StateIdle
			st.LastError = ""
		}
		if n > 0 {
			st.LastSuccess = s.now()
			st.Count = n
		}
	})

	if err != nil {
		log.Warn().Str("source", t.name).Str("result", result).Err(err).Msg("fetch failed, keeping last snapshot")
	} else {
		log.Debug().Str("source", t.name).Int("count", n).Dur("took", elapsed).Msg("fetch ok")
	}
}
