package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/rs/zerolog/log"

	"fundingarb/internal/application/service"
	"fundingarb/internal/domain/model"
)

// Querier 聚合层的只读查询面
type Querier interface {
	Table() model.Table
	Opportunities(capital float64, limit int, sortBy model.SortKey) []model.SpreadOpportunity
	Statuses() []model.SourceStatus
	StatusLine() string
}

// Refresher 手动触发调度器中的数据源
type Refresher interface {
	Trigger(ctx context.Context, name string) (service.TriggerResult, error)
}

// HistoryReader lighter 历史统计
type HistoryReader interface {
	State() model.HistoryState
	RefreshAsync(ctx context.Context) bool
}

type Options struct {
	Addr        string
	CORSOrigins []string
	CacheTTL    time.Duration
	CapitalUSD  float64
	Limit       int
	// Metrics 非 nil 时挂在 /metrics
	Metrics http.Handler
}

type Server struct {
	app       *fiber.App
	opts      Options
	query     Querier
	refresher Refresher
	history   HistoryReader
	cache     *responseCache
}

// NewServer refresher 和 history 可以为 nil
func NewServer(q Querier, r Refresher, h HistoryReader, opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = ":3001"
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Second
	}
	if opts.CapitalUSD <= 0 {
		opts.CapitalUSD = 1000
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	cache, err := newResponseCache(1000, opts.CacheTTL)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:      "fundingarb",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	s := &Server{
		app:       app,
		opts:      opts,
		query:     q,
		refresher: r,
		history:   h,
		cache:     cache,
	}

	app.Use(requestLogger)
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CORSOrigins,
		AllowMethods: []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions},
	}))

	app.Get("/health", func(c fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	a := app.Group("/api")
	a.Get("/rates", s.getRates)
	a.Get("/opportunities", s.getOpportunities)
	a.Get("/status", s.getStatus)
	a.Get("/history", s.getHistory)
	a.Post("/refresh/:source", s.postRefresh)

	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}
	return s, nil
}

// App 测试里直接用 app.Test
func (s *Server) App() *fiber.App { return s.app }

// Run 阻塞直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("starting http server")
		errCh <- s.app.Listen(s.opts.Addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received, stopping http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func requestLogger(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("latency", time.Since(start)).
		Msg("http request")
	return err
}
