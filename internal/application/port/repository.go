package port

import (
	"context"

	"fundingarb/internal/domain/model"
)

// Repository 最新状态镜像，只保存当前表，不保存历史
type Repository interface {
	UpsertLatest(ctx context.Context, table model.Table) error

	// Connection management
	Close() error
}

// LatestLoader 可以提供上次发布的表，用于冷启动
type LatestLoader interface {
	LoadLatest(ctx context.Context) (*model.Table, error)
}
