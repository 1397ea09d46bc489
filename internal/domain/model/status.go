package model

import "time"

// SourceKind 数据源类型
type SourceKind string

const (
	KindFunding SourceKind = "funding"
	KindQuotes  SourceKind = "quotes"
	KindStream  SourceKind = "stream"
)

// SourceState 数据源状态
type SourceState string

const (
	StateIdle         SourceState = "idle"
	StateFetching     SourceState = "fetching"
	StateError        SourceState = "error"
	StateConnected    SourceState = "connected"
	StateDisconnected SourceState = "disconnected"
)

// SourceStatus 单个数据源的健康状态
type SourceStatus struct {
	Source      string      `json:"source"`
	Venue       string      `json:"venue"`
	Kind        SourceKind  `json:"kind"`
	State       SourceState `json:"state"`
	LastError   string      `json:"lastError,omitempty"`
	LastSuccess time.Time   `json:"lastSuccess,omitempty"`
	LastAttempt time.Time   `json:"lastAttempt,omitempty"`
	Count       int         `json:"count"`
	Dropped     int64       `json:"dropped"`
}

// Degraded 出错或断线
func (s SourceStatus) Degraded() bool {
	return s.State == StateError || s.State == StateDisconnected
}
