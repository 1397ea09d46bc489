package service

import (
	"context"
	"sort"
	"sync"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"

	"github.com/rs/zerolog/log"
)

// StreamSourceName websocket 数据源在状态表中的名字
func StreamSourceName(venue string) string { return venue + ":stream" }

// StreamRunner 消费 websocket 数据源的事件并提交到聚合层
type StreamRunner struct {
	agg     *Aggregator
	sources []port.StreamSource
	metrics port.Metrics
}

// NewStreamRunner 创建
func NewStreamRunner(agg *Aggregator, metrics port.Metrics, sources ...port.StreamSource) *StreamRunner {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	r := &StreamRunner{agg: agg, sources: sources, metrics: metrics}
	for _, src := range sources {
		agg.SetStatus(model.SourceStatus{
			Source: StreamSourceName(src.Venue()),
			Venue:  src.Venue(),
			Kind:   model.KindStream,
			State:  model.StateDisconnected,
		})
	}
	return r
}

// Run 阻塞直到 ctx 结束且所有 channel 关闭
func (r *StreamRunner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, src := range r.sources {
		ch, err := src.Subscribe(ctx)
		if err != nil {
			log.Error().Str("venue", src.Venue()).Err(err).Msg("stream subscribe failed")
			r.agg.UpdateStatus(StreamSourceName(src.Venue()), func(st *model.SourceStatus) {
				st.State = model.StateError
				st.LastError = err.Error()
			})
			continue
		}
		wg.Add(1)
		go func(venue string, ch <-chan model.StreamEvent) {
			defer wg.Done()
			r.consume(venue, ch)
		}(src.Venue(), ch)
	}
	wg.Wait()
	return nil
}

// consume 单写者：只有这个 goroutine 修改该交易所的费率快照
func (r *StreamRunner) consume(venue string, ch <-chan model.StreamEvent) {
	name := StreamSourceName(venue)
	cache := make(map[string]model.FundingObservation)
	for _, o := range r.agg.Funding(venue) {
		cache[o.RawSymbol] = o
	}

	for ev := range ch {
		switch ev.Kind {
		case model.EventStatus:
			r.agg.UpdateStatus(name, func(st *model.SourceStatus) {
				st.State = ev.State
				if ev.Err != nil {
					st.LastError = ev.Err.Error()
				} else if ev.State == model.StateConnected {
					st.LastError = ""
				}
			})
			continue

		case model.EventSnapshot:
			cache = make(map[string]model.FundingObservation, len(ev.Upserts))
			for k, o := range ev.Upserts {
				cache[k] = o
			}

		case model.EventUpdate:
			if len(ev.Upserts) == 0 && len(ev.Removals) == 0 {
				continue
			}
			for _, k := range ev.Removals {
				delete(cache, k)
			}
			for k, o := range ev.Upserts {
				cache[k] = o
			}
		}

		list := flatten(cache)
		r.agg.CommitFunding(venue, list)
		r.metrics.ObservationsSet(name, len(list))
		r.agg.UpdateStatus(name, func(st *model.SourceStatus) {
			st.Count = len(list)
			st.LastSuccess = r.agg.now()
		})
		r.agg.Recompute()
	}
	log.Info().Str("venue", venue).Msg("stream closed")
}

func flatten(cache map[string]model.FundingObservation) []model.FundingObservation {
	keys := make([]string, 0, len(cache))
	for k := range cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]model.FundingObservation, 0, len(keys))
	for _, k := range keys {
		out = append(out, cache[k])
	}
	return out
}
