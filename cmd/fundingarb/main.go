package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fundingarb/internal/application/usecase/monitor"
	"fundingarb/internal/infrastructure/config"
	"fundingarb/internal/infrastructure/logger"
	"fundingarb/internal/infrastructure/svc"
)

func main() {
	logger.Setup(logger.Options{})

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	mode := flag.String("mode", "", "terminal, server or both (overrides app.mode)")
	capital := flag.Float64("capital", 0, "capital in USD for profit estimates (overrides app.capital_usd)")
	limit := flag.Int("limit", 0, "number of opportunities to return (overrides app.limit)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	if err := cfg.Override(*mode, *capital, *limit); err != nil {
		log.Fatal().Err(err).Msg("invalid flags")
	}

	// 终端看板占用 stdout，有日志文件时控制台不再输出日志
	logger.Setup(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		FileOnly:   cfg.RunsTerminal(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sc.Aggregator.RunPublisher(gctx)
		return nil
	})
	g.Go(func() error { return sc.Scheduler.Run(gctx) })
	g.Go(func() error { return sc.Streams.Run(gctx) })
	if sc.History != nil {
		g.Go(func() error { return sc.History.Run(gctx) })
	}

	if cfg.RunsServer() {
		server, err := sc.BuildHTTPServer()
		if err != nil {
			log.Fatal().Err(err).Msg("http server initialization failed")
		}
		g.Go(func() error { return server.Run(gctx) })
	}
	if cfg.RunsTerminal() {
		dashboard := monitor.NewService(sc.BuildMonitorServiceDeps())
		g.Go(func() error { return dashboard.Run(gctx) })
	}

	log.Info().
		Str("config", *configPath).
		Str("mode", cfg.App.Mode).
		Strs("venues", sc.Aggregator.Venues()).
		Float64("capital_usd", cfg.App.CapitalUSD).
		Msg("fundingarb started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("fundingarb exited")
	}
	log.Info().Msg("fundingarb stopped")
}
