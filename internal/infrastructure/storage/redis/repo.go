package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

type Repo struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	keyLatest string // prefix + ":latest"
	keyMeta   string // prefix + ":latest:meta"
	channel   string
}

// LatestRate hash 里每个 "venue:symbol" 字段的值
type LatestRate struct {
	Venue   string   `json:"venue"`
	Symbol  string   `json:"symbol"`
	Rate8h  float64  `json:"rate8h"`
	Spread  *float64 `json:"spread,omitempty"`
	Bid     *float64 `json:"bid,omitempty"`
	Ask     *float64 `json:"ask,omitempty"`
	TableID string   `json:"tableId"`
	Ts      int64    `json:"ts"`
}

// TableEvent PUBLISH 到 channel 的通知，订阅方再去读 hash
type TableEvent struct {
	TableID     string `json:"tableId"`
	Rows        int    `json:"rows"`
	LastUpdated int64  `json:"lastUpdated"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, channel string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "fundingarb"
	}
	if strings.TrimSpace(channel) == "" {
		channel = prefix + ":table"
	}
	return &Repo{
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		keyLatest: prefix + ":latest",
		keyMeta:   prefix + ":latest:meta",
		channel:   channel,
	}
}

// Fields 把表展开成 hash 字段：field = "binance:BTC" -> json
func Fields(table model.Table) (map[string]any, error) {
	ts := table.LastUpdated.UnixMilli()
	out := make(map[string]any)
	for _, row := range table.Rows {
		for _, venue := range row.Venues() {
			lr := LatestRate{Venue: venue, Symbol: row.Symbol, Rate8h: row.Rates[venue], TableID: table.ID, Ts: ts}
			if s, ok := row.Spreads[venue]; ok {
				lr.Spread = &s
			}
			if q, ok := row.Quotes[venue]; ok {
				bid, ask := q.Bid, q.Ask
				lr.Bid, lr.Ask = &bid, &ask
			}
			b, err := json.Marshal(lr)
			if err != nil {
				return nil, fmt.Errorf("encode %s %s: %w", venue, row.Symbol, err)
			}
			out[fmt.Sprintf("%s:%s", venue, row.Symbol)] = string(b)
		}
	}
	return out, nil
}

// UpsertLatest DEL + HSET + EXPIRE 在一个 MULTI 里执行，然后 PUBLISH 通知
func (r *Repo) UpsertLatest(ctx context.Context, table model.Table) error {
	if table.Empty() {
		return nil
	}
	fields, err := Fields(table)
	if err != nil {
		return err
	}
	ev, _ := json.Marshal(TableEvent{TableID: table.ID, Rows: len(table.Rows), LastUpdated: table.LastUpdated.UnixMilli()})

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, r.keyLatest)
	pipe.HSet(ctx, r.keyLatest, fields)
	pipe.Set(ctx, r.keyMeta, string(ev), r.ttl)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, string(ev)).Err()
}

func (r *Repo) Close() error { return r.rdb.Close() }

var _ port.Repository = (*Repo)(nil)
