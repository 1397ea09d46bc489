package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fundingarb/internal/domain/model"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sampleTable() model.Table {
	return model.Table{
		ID: "t1",
		Rows: []model.UnifiedRow{
			{Symbol: "BTC", Rates: map[string]float64{"lighter": 0.0001, "binance": -0.0002}},
			{Symbol: "ETH", Rates: map[string]float64{"aster": 0.0003, "binance": 0.0001}},
		},
		LastUpdated: time.UnixMilli(5_000),
	}
}

// TestUpsertLatest 每行一条消息，key 为 symbol
func TestUpsertLatest(t *testing.T) {
	w := &fakeWriter{}
	repo := newWithWriter(w, "fundingarb.latest-rates")
	require.NoError(t, repo.UpsertLatest(context.Background(), sampleTable()))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "BTC", string(w.msgs[0].Key))
	assert.Equal(t, "lighter,binance", string(w.msgs[0].Headers[1].Value))

	var body RowMessage
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &body))
	assert.Equal(t, "ETH", body.Symbol)
	assert.Equal(t, "t1", body.TableID)
	assert.Equal(t, int64(5000), body.LastUpdated)

	require.NoError(t, repo.UpsertLatest(context.Background(), model.EmptyTable()))
	assert.Len(t, w.msgs, 2)

	require.NoError(t, repo.Close())
	assert.True(t, w.closed)
}

func TestUpsertLatestError(t *testing.T) {
	repo := newWithWriter(&fakeWriter{err: errors.New("no brokers")}, "topic")
	err := repo.UpsertLatest(context.Background(), sampleTable())
	assert.EqualError(t, err, "kafka write topic: no brokers")
}
