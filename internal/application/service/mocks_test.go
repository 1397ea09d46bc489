package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"fundingarb/internal/domain/model"
)

// MockFundingSource 按顺序返回预设结果
type MockFundingSource struct {
	venue string

	mu      sync.Mutex
	results []mockResult
	calls   int
	block   chan struct{}
}

type mockResult struct {
	obs []model.FundingObservation
	err error
}

func NewMockFundingSource(venue string) *MockFundingSource {
	return &MockFundingSource{venue: venue}
}

func (m *MockFundingSource) Then(obs []model.FundingObservation, err error) *MockFundingSource {
	m.mu.Lock()
	m.results = append(m.results, mockResult{obs: obs, err: err})
	m.mu.Unlock()
	return m
}

func (m *MockFundingSource) Venue() string { return m.venue }

func (m *MockFundingSource) FetchFunding(ctx context.Context) ([]model.FundingObservation, error) {
	m.mu.Lock()
	block := m.block
	idx := m.calls
	m.calls++
	var r mockResult
	if len(m.results) > 0 {
		if idx >= len(m.results) {
			idx = len(m.results) - 1
		}
		r = m.results[idx]
	}
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.obs, r.err
}

func (m *MockFundingSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockQuoteSource 固定盘口
type MockQuoteSource struct {
	venue  string
	quotes []model.MarketQuote
}

func (m *MockQuoteSource) Venue() string { return m.venue }

func (m *MockQuoteSource) FetchQuotes(ctx context.Context) ([]model.MarketQuote, error) {
	return m.quotes, nil
}

// MockStreamSource 测试代码直接往 channel 里写事件
type MockStreamSource struct {
	venue string
	ch    chan model.StreamEvent
}

func (m *MockStreamSource) Venue() string { return m.venue }

func (m *MockStreamSource) Subscribe(ctx context.Context) (<-chan model.StreamEvent, error) {
	return m.ch, nil
}

func fo(venue, symbol string, rate float64) model.FundingObservation {
	return model.FundingObservation{Venue: venue, RawSymbol: symbol, Symbol: symbol, RatePer8h: rate}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func rateOf(table model.Table, symbol, venue string) (float64, bool) {
	for _, r := range table.Rows {
		if r.Symbol == symbol {
			v, ok := r.Rates[venue]
			return v, ok
		}
	}
	return 0, false
}
