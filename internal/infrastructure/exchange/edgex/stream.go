package edgex

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"fundingarb/internal/domain/model"
	"fundingarb/internal/domain/service"
	"fundingarb/internal/infrastructure/exchange"
	"fundingarb/internal/infrastructure/source"
	"fundingarb/internal/infrastructure/websocket"

	"github.com/rs/zerolog/log"
)

const (
	DefaultURL    = "wss://quote.edgex.exchange/api/v1/public/ws"
	TickerChannel = "ticker.all.1s"

	// MinNotional openInterest × lastPrice 低于该值的合约不展示
	MinNotional = 10_000.0

	typePing       = "ping"
	typePong       = "pong"
	typeSubscribe  = "subscribe"
	typeQuoteEvent = "quote-event"
	dataSnapshot   = "snapshot"
)

type ticker struct {
	ContractID   string          `json:"contractId"`
	ContractName string          `json:"contractName"`
	OpenInterest exchange.Number `json:"openInterest"`
	FundingRate  exchange.Number `json:"fundingRate"`
	FundingTime  string          `json:"fundingTime"`
	LastPrice    exchange.Number `json:"lastPrice"`
}

type message struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Time    json.RawMessage `json:"time"`
	Content struct {
		Channel  string   `json:"channel"`
		DataType string   `json:"dataType"`
		Data     []ticker `json:"data"`
	} `json:"content"`
}

type control struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Time    string `json:"time,omitempty"`
}

// Stream edgeX 全市场 ticker 推送，费率周期 4h
type Stream struct {
	url      string
	resolver *service.SymbolResolver
	conv     service.Convention
	now      func() time.Time
	delay    time.Duration
}

func New(deps source.Deps) *Stream {
	s := &Stream{
		url:      deps.BaseURL,
		resolver: deps.Resolver,
		conv:     deps.Convention,
		now:      time.Now,
	}
	if s.url == "" {
		s.url = DefaultURL
	}
	if s.resolver == nil {
		s.resolver = exchange.ResolverFor(model.VenueEdgeX)
	}
	return s
}

func (s *Stream) Venue() string { return model.VenueEdgeX }

// Subscribe 启动连接循环，ctx 结束后关闭返回的 channel
func (s *Stream) Subscribe(ctx context.Context) (<-chan model.StreamEvent, error) {
	out := make(chan model.StreamEvent, 64)
	p := newParser(s.resolver, s.conv, s.now)

	emit := func(ev model.StreamEvent) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(out)
		websocket.Run(ctx, websocket.Options{
			Venue: model.VenueEdgeX,
			URL: func() string {
				return s.url + "?timestamp=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
			},
			OnConnect: func(sess *websocket.Session) error {
				return sess.WriteJSON(control{Type: typeSubscribe, Channel: TickerChannel})
			},
			OnMessage: func(sess *websocket.Session, data []byte) {
				reply, ev := p.handle(data)
				if reply != nil {
					if err := sess.WriteJSON(reply); err != nil {
						log.Warn().Str("venue", model.VenueEdgeX).Err(err).Msg("pong failed")
					}
				}
				if ev != nil {
					emit(*ev)
				}
			},
			OnState: func(state model.SourceState, err error) {
				emit(model.StreamEvent{Kind: model.EventStatus, State: state, Err: err})
			},
			ReconnectDelay: s.delay,
		})
	}()
	return out, nil
}

// parser 把推送消息转换为事件。contractId → contractName 的映射用来翻译删除
type parser struct {
	resolver *service.SymbolResolver
	conv     service.Convention
	now      func() time.Time
	names    map[string]string
}

func newParser(r *service.SymbolResolver, conv service.Convention, now func() time.Time) *parser {
	return &parser{resolver: r, conv: conv, now: now, names: make(map[string]string)}
}

// handle 返回需要回复的消息和需要发出的事件，都可能为 nil
func (p *parser) handle(data []byte) (any, *model.StreamEvent) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Str("venue", model.VenueEdgeX).Err(err).Msg("ws payload ignored")
		return nil, nil
	}

	switch msg.Type {
	case typePing:
		return control{Type: typePong, Time: pingTime(msg.Time, p.now)}, nil
	case typeQuoteEvent:
	default:
		return nil, nil
	}
	if msg.Channel != TickerChannel {
		return nil, nil
	}

	snapshot := strings.EqualFold(msg.Content.DataType, dataSnapshot)
	if len(msg.Content.Data) == 0 && !snapshot {
		return nil, nil
	}
	if snapshot {
		p.names = make(map[string]string, len(msg.Content.Data))
	}

	now := p.now()
	upserts := make(map[string]model.FundingObservation, len(msg.Content.Data))
	var removals []string
	for _, t := range msg.Content.Data {
		if t.ContractID == "" || t.ContractName == "" {
			continue
		}
		if old, ok := p.names[t.ContractID]; ok && old != t.ContractName {
			removals = append(removals, old)
		}
		p.names[t.ContractID] = t.ContractName

		if !eligible(t) {
			removals = append(removals, t.ContractName)
			continue
		}
		sym := p.resolver.Canonicalize(t.ContractName)
		if sym == "" {
			removals = append(removals, t.ContractName)
			continue
		}
		upserts[t.ContractName] = model.FundingObservation{
			Venue:      model.VenueEdgeX,
			RawSymbol:  t.ContractName,
			Symbol:     sym,
			RatePer8h:  service.Normalize(t.FundingRate.Value, p.conv),
			ObservedAt: now,
		}
	}

	if snapshot {
		return nil, &model.StreamEvent{Kind: model.EventSnapshot, Upserts: upserts}
	}
	return nil, &model.StreamEvent{Kind: model.EventUpdate, Upserts: upserts, Removals: removals}
}

// eligible 价格、持仓和费率都有效并且名义价值达到下限
func eligible(t ticker) bool {
	if !t.OpenInterest.Valid || !t.LastPrice.Valid || !t.FundingRate.Valid {
		return false
	}
	oi, px, rate := t.OpenInterest.Value, t.LastPrice.Value, t.FundingRate.Value
	notional := oi * px
	if !model.IsFinite(oi) || !model.IsFinite(px) || !model.IsFinite(rate) || !model.IsFinite(notional) {
		return false
	}
	return notional >= MinNotional
}

// pingTime 原样回传 ping 的 time，缺失时用当前毫秒
func pingTime(raw json.RawMessage, now func() time.Time) string {
	if len(raw) > 0 {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		if v := strings.TrimSpace(string(raw)); v != "" && v != "null" {
			return v
		}
	}
	return strconv.FormatInt(now().UnixMilli(), 10)
}

func init() {
	source.Register(model.VenueEdgeX, func(deps source.Deps) source.Adapter {
		return source.Adapter{Stream: New(deps)}
	})
}
