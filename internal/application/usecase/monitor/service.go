package monitor

import (
	"context"
	"errors"
	"time"

	"fundingarb/internal/application/port"
	"fundingarb/internal/domain/model"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type ServiceDeps struct {
	Query        Querier
	Sink         port.Sink
	CapitalUSD   float64
	TopN         int
	Rows         int
	RenderEvery  time.Duration
	SnapshotSpec string // cron 表达式，例如 "@every 5m"，为空不输出快照行
}

type Service struct {
	deps ServiceDeps
	st   *State
	fmt  *Formatter
}

func NewService(deps ServiceDeps) *Service {
	if deps.RenderEvery <= 0 {
		deps.RenderEvery = time.Second
	}
	if deps.TopN <= 0 {
		deps.TopN = 10
	}
	return &Service{
		deps: deps,
		st:   NewState(),
		fmt:  NewFormatter(deps.CapitalUSD, deps.Rows),
	}
}

func (s *Service) view() View {
	return View{
		Table:         s.deps.Query.Table(),
		Opportunities: s.deps.Query.Opportunities(s.deps.CapitalUSD, s.deps.TopN, model.SortByDiff),
		Status:        s.deps.Query.StatusLine(),
	}
}

// Run 表 id 或状态行变化时重绘
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Query == nil || s.deps.Sink == nil {
		return errors.New("monitor: query and sink are required")
	}

	snaps := make(chan time.Time, 1)
	if s.deps.SnapshotSpec != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.deps.SnapshotSpec, func() {
			select {
			case snaps <- time.Now():
			default:
			}
		}); err != nil {
			return err
		}
		c.Start()
		defer c.Stop()
	}

	ticker := time.NewTicker(s.deps.RenderEvery)
	defer ticker.Stop()

	var lastID, lastStatus string
	first := true
	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return ctx.Err()

		case now := <-snaps:
			_ = s.deps.Sink.WriteSnapshot(now, s.fmt.Summary(s.view()))

		case <-ticker.C:
			v := s.view()
			if !first && v.Table.ID == lastID && v.Status == lastStatus {
				continue
			}
			first = false
			lastID, lastStatus = v.Table.ID, v.Status
			s.st.Apply(v.Table)
			if err := s.deps.Sink.WriteFrame(s.fmt.Render(v, s.st)); err != nil {
				log.Warn().Err(err).Msg("render frame failed")
			}
		}
	}
}
