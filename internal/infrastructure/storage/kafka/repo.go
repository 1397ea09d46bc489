package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"

	"github.com/segmentio/kafka-go"
)

// messageWriter kafka.Writer 的子集，测试里替换
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Repo 每个 symbol 一条消息，key 为 symbol，适合 compacted topic 保存最新状态
type Repo struct {
	w     messageWriter
	topic string
}

// RowMessage 消息体
type RowMessage struct {
	TableID     string                 `json:"tableId"`
	Symbol      string                 `json:"symbol"`
	Rates       map[string]float64     `json:"rates"`
	Spreads     map[string]float64     `json:"spreads,omitempty"`
	Quotes      map[string]model.Quote `json:"quotes,omitempty"`
	LastUpdated int64                  `json:"lastUpdated"`
}

func New(brokers []string, topic string) *Repo {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 200 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Repo{w: w, topic: topic}
}

func newWithWriter(w messageWriter, topic string) *Repo {
	return &Repo{w: w, topic: topic}
}

// Messages 表转换为 kafka 消息
func Messages(table model.Table) ([]kafka.Message, error) {
	ts := table.LastUpdated.UnixMilli()
	out := make([]kafka.Message, 0, len(table.Rows))
	for _, row := range table.Rows {
		b, err := json.Marshal(RowMessage{
			TableID:     table.ID,
			Symbol:      row.Symbol,
			Rates:       row.Rates,
			Spreads:     row.Spreads,
			Quotes:      row.Quotes,
			LastUpdated: ts,
		})
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", row.Symbol, err)
		}
		out = append(out, kafka.Message{
			Key:   []byte(row.Symbol),
			Value: b,
			Headers: []kafka.Header{
				{Key: "table-id", Value: []byte(table.ID)},
				{Key: "venues", Value: []byte(strings.Join(row.Venues(), ","))},
			},
			Time: table.LastUpdated,
		})
	}
	return out, nil
}

func (r *Repo) UpsertLatest(ctx context.Context, table model.Table) error {
	if table.Empty() {
		return nil
	}
	msgs, err := Messages(table)
	if err != nil {
		return err
	}
	if err := r.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write %s: %w", r.topic, err)
	}
	return nil
}

func (r *Repo) Close() error { return r.w.Close() }

var _ port.Repository = (*Repo)(nil)
