package model

// EventKind 推送事件类型
type EventKind int

const (
	// EventSnapshot 全量替换，Upserts 为空表示清空
	EventSnapshot EventKind = iota
	// EventUpdate 增量合并
	EventUpdate
	// EventStatus 连接状态变化
	EventStatus
)

// StreamEvent 是 websocket 数据源发给聚合层的消息，Upserts 和 Removals 以 RawSymbol 为 key
type StreamEvent struct {
	Kind     EventKind
	Upserts  map[string]FundingObservation
	Removals []string
	State    SourceState
	Err      error
}
