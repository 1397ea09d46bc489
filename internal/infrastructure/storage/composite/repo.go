package composite

import (
	"context"
	"errors"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"

	"golang.org/x/sync/errgroup"
)

// Repo 把同一张表并行写入所有镜像，返回第一个错误；没有镜像时什么也不做
type Repo struct {
	repos []port.Repository
}

func New(repos ...port.Repository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.Repository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

// Len 已配置的镜像数量
func (r *Repo) Len() int { return len(r.repos) }

// UpsertLatest 一个镜像失败不会取消其他镜像的写入
func (r *Repo) UpsertLatest(ctx context.Context, table model.Table) error {
	var g errgroup.Group
	for _, repo := range r.repos {
		g.Go(func() error {
			return repo.UpsertLatest(ctx, table)
		})
	}
	return g.Wait()
}

// Close 关闭全部镜像
func (r *Repo) Close() error {
	var errs []error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ port.Repository = (*Repo)(nil)
