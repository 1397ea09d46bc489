package port

import "fundingarb/internal/domain/model"

// SnapshotStore 最新 join 结果的本地快照，缺失、损坏或过期时 Load 返回 nil
type SnapshotStore interface {
	Load() (*model.Table, error)
	Save(table model.Table) error
}
