package port

import "time"

// Metrics 应用层上报的指标
type Metrics interface {
	FetchObserved(source, result string, d time.Duration)
	FetchDropped(source string)
	ObservationsSet(source string, n int)
	TablePublished(rows int)
}

// NopMetrics 不上报
type NopMetrics struct{}

func (NopMetrics) FetchObserved(string, string, time.Duration) {}
func (NopMetrics) FetchDropped(string) {}
func (NopMetrics) ObservationsSet(string, int) {}
func (NopMetrics) TablePublished(int) {}
