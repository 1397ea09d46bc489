package http

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"fundingarb/internal/domain/model"
)

// responseCache 机会排名的响应缓存，key 里带表 id，新表发布后旧 key 自然失效
type responseCache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func newResponseCache(maxCost int64, ttl time.Duration) (*responseCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &responseCache{c: c, ttl: ttl}, nil
}

func opportunitiesKey(tableID string, capital float64, limit int, sortBy model.SortKey) string {
	return fmt.Sprintf("opp|%s|%g|%d|%s", tableID, capital, limit, sortBy)
}

func (r *responseCache) get(key string) (opportunitiesResponse, bool) {
	v, ok := r.c.Get(key)
	if !ok {
		return opportunitiesResponse{}, false
	}
	resp, ok := v.(opportunitiesResponse)
	return resp, ok
}

func (r *responseCache) set(key string, resp opportunitiesResponse) {
	r.c.SetWithTTL(key, resp, 1, r.ttl)
}
