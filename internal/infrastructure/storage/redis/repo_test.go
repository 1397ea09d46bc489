package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"fundingarb/internal/domain/model"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() model.Table {
	return model.Table{
		ID: "t1",
		Rows: []model.UnifiedRow{{
			Symbol:  "BTC",
			Rates:   map[string]float64{"binance": 0.0001, "lighter": -0.0002},
			Spreads: map[string]float64{"binance": 0.0002},
			Quotes:  map[string]model.Quote{"binance": {Bid: 99, Ask: 100}},
		}},
		LastUpdated: time.UnixMilli(1_000),
	}
}

// TestFields 每个 venue:symbol 一个字段
func TestFields(t *testing.T) {
	fields, err := Fields(sampleTable())
	require.NoError(t, err)
	require.Len(t, fields, 2)

	var lr LatestRate
	require.NoError(t, json.Unmarshal([]byte(fields["binance:BTC"].(string)), &lr))
	assert.Equal(t, "t1", lr.TableID)
	assert.Equal(t, int64(1000), lr.Ts)
	require.NotNil(t, lr.Spread)
	assert.InDelta(t, 0.0002, *lr.Spread, 1e-12)
	require.NotNil(t, lr.Ask)
	assert.InDelta(t, 100, *lr.Ask, 1e-12)

	require.NoError(t, json.Unmarshal([]byte(fields["lighter:BTC"].(string)), &lr))
	assert.Nil(t, lr.Spread)
}

// TestUpsertLatest 需要本地 redis，设置 FUNDINGARB_TEST_REDIS 后运行
func TestUpsertLatest(t *testing.T) {
	addr := os.Getenv("FUNDINGARB_TEST_REDIS")
	if addr == "" {
		t.Skip("FUNDINGARB_TEST_REDIS not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	repo := New(rdb, "fundingarb-test", time.Minute, "")
	defer repo.Close()

	sub := rdb.Subscribe(ctx, repo.channel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.UpsertLatest(ctx, sampleTable()))

	n, err := rdb.HLen(ctx, repo.keyLatest).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var ev TableEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	assert.Equal(t, "t1", ev.TableID)
	assert.Equal(t, 1, ev.Rows)

	rdb.Del(ctx, repo.keyLatest, repo.keyMeta)
}
