package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"fundingarb/internal/domain/model"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	ModeTerminal = "terminal"
	ModeServer   = "server"
	ModeBoth     = "both"
)

// VenueConfig 单个交易所的覆盖项，零值表示使用默认
type VenueConfig struct {
	BaseURL          string   `toml:"base_url"`
	AltURL           string   `toml:"alt_url"`
	IntervalSec      int      `toml:"interval_sec"`
	QuoteIntervalSec int      `toml:"quote_interval_sec"`
	GapMs            int      `toml:"gap_ms"`
	DefaultSpread    *float64 `toml:"default_spread"`
	Percent          *bool    `toml:"percent"`
	Annualized       *bool    `toml:"annualized"`
	IntervalHours    float64  `toml:"interval_hours"`
}

type Config struct {
	App struct {
		Mode              string  `toml:"mode"`
		CapitalUSD        float64 `toml:"capital_usd"`
		Limit             int     `toml:"limit"`
		RequestTimeoutSec int     `toml:"request_timeout_sec"`
	} `toml:"app"`

	Log struct {
		Level      string `toml:"level"`
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
	} `toml:"log"`

	Venues struct {
		Enabled []string `toml:"enabled"`

		Lighter     VenueConfig `toml:"lighter"`
		Binance     VenueConfig `toml:"binance"`
		EdgeX       VenueConfig `toml:"edgex"`
		GRVT        VenueConfig `toml:"grvt"`
		Aster       VenueConfig `toml:"aster"`
		Backpack    VenueConfig `toml:"backpack"`
		Hyperliquid VenueConfig `toml:"hyperliquid"`
		Variational VenueConfig `toml:"variational"`
		Paradex     VenueConfig `toml:"paradex"`
		Ethereal    VenueConfig `toml:"ethereal"`
		DYDX        VenueConfig `toml:"dydx"`
		Nado        VenueConfig `toml:"nado"`
	} `toml:"venues"`

	Terminal struct {
		RenderEveryMs int    `toml:"render_every_ms"`
		Rows          int    `toml:"rows"`
		TopN          int    `toml:"top_n"`
		SnapshotCron  string `toml:"snapshot_cron"`
	} `toml:"terminal"`

	HTTP struct {
		Addr        string   `toml:"addr"`
		CORSOrigins []string `toml:"cors_origins"`
		CacheTTLSec int      `toml:"cache_ttl_sec"`
	} `toml:"http"`

	Snapshot struct {
		Path        string `toml:"path"`
		MaxAgeHours int    `toml:"max_age_hours"`
	} `toml:"snapshot"`

	History struct {
		Enabled            bool     `toml:"enabled"`
		PrincipalUSD       float64  `toml:"principal_usd"`
		RefreshMin         int      `toml:"refresh_min"`
		GapMs              int      `toml:"gap_ms"`
		LookbackDays       int      `toml:"lookback_days"`
		Path               string   `toml:"path"`
		FilterBinancePairs bool     `toml:"filter_binance_pairs"`
		Excluded           []string `toml:"excluded"`
	} `toml:"history"`

	Redis struct {
		Enabled    bool   `toml:"enabled"`
		Addr       string `toml:"addr"`
		Password   string `toml:"password"`
		DB         int    `toml:"db"`
		Prefix     string `toml:"prefix"`
		TTLSeconds int    `toml:"ttl_seconds"`
		Channel    string `toml:"channel"`
	} `toml:"redis"`

	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`

	Kafka struct {
		Enabled bool     `toml:"enabled"`
		Brokers []string `toml:"brokers"`
		Topic   string   `toml:"topic"`
	} `toml:"kafka"`
}

// Load 读取配置文件。文件不存在或无法解析时使用默认值
func Load(path string) (*Config, error) {
	// .env 可选
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("load .env failed")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("config", path).Msg("config file not found, using defaults")
		} else {
			log.Warn().Err(err).Str("config", path).Msg("config file invalid, using defaults")
		}
		cfg = Config{}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 全部默认值
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	_ = validate(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FUNDINGARB_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("FUNDINGARB_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FUNDINGARB_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FUNDINGARB_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("FUNDINGARB_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Mode == "" {
		cfg.App.Mode = ModeBoth
	}
	if cfg.App.CapitalUSD <= 0 {
		cfg.App.CapitalUSD = 1000
	}
	if cfg.App.Limit <= 0 {
		cfg.App.Limit = 10
	}
	if cfg.App.RequestTimeoutSec <= 0 {
		cfg.App.RequestTimeoutSec = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 7
	}

	if cfg.Venues.Variational.IntervalSec <= 0 {
		cfg.Venues.Variational.IntervalSec = 60
	}
	if cfg.Venues.Variational.QuoteIntervalSec <= 0 {
		cfg.Venues.Variational.QuoteIntervalSec = 60
	}
	if cfg.Venues.GRVT.GapMs <= 0 {
		cfg.Venues.GRVT.GapMs = 500
	}

	if cfg.Terminal.RenderEveryMs <= 0 {
		cfg.Terminal.RenderEveryMs = 1000
	}
	if cfg.Terminal.Rows <= 0 {
		cfg.Terminal.Rows = 30
	}
	if cfg.Terminal.TopN <= 0 {
		cfg.Terminal.TopN = 10
	}
	if cfg.Terminal.SnapshotCron == "" {
		cfg.Terminal.SnapshotCron = "@every 5m"
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":3001"
	}
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"*"}
	}
	if cfg.HTTP.CacheTTLSec <= 0 {
		cfg.HTTP.CacheTTLSec = 5
	}

	if cfg.Snapshot.Path == "" {
		cfg.Snapshot.Path = "data/funding-snapshot.json"
	}
	if cfg.Snapshot.MaxAgeHours <= 0 {
		cfg.Snapshot.MaxAgeHours = 24
	}

	if cfg.History.PrincipalUSD <= 0 {
		cfg.History.PrincipalUSD = 1000
	}
	if cfg.History.RefreshMin <= 0 {
		cfg.History.RefreshMin = 10
	}
	if cfg.History.GapMs <= 0 {
		cfg.History.GapMs = 1200
	}
	if cfg.History.LookbackDays <= 0 {
		cfg.History.LookbackDays = 7
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "data/lighter-history.json"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "fundingarb"
	}
	if cfg.Redis.TTLSeconds <= 0 {
		cfg.Redis.TTLSeconds = 900
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "fundingarb:table"
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "data/fundingarb.db"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "fundingarb.latest-rates"
	}
}

func validate(cfg *Config) error {
	cfg.App.Mode = strings.ToLower(strings.TrimSpace(cfg.App.Mode))
	switch cfg.App.Mode {
	case ModeTerminal, ModeServer, ModeBoth:
	default:
		return fmt.Errorf("app.mode %q must be terminal, server or both", cfg.App.Mode)
	}
	if cfg.App.RequestTimeoutSec < 10 || cfg.App.RequestTimeoutSec > 30 {
		return fmt.Errorf("app.request_timeout_sec %d out of range [10, 30]", cfg.App.RequestTimeoutSec)
	}

	cfg.Venues.Enabled = normalizeVenues(cfg.Venues.Enabled)

	if cfg.Postgres.Enabled && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return errors.New("postgres.dsn empty but enabled")
	}
	cfg.Kafka.Brokers = normalizeList(cfg.Kafka.Brokers)
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers empty but enabled")
	}
	return nil
}

// normalizeVenues 过滤未知交易所；列表为空或全部未知时启用全部
func normalizeVenues(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		v := strings.ToLower(strings.TrimSpace(s))
		if v == "" {
			continue
		}
		if !model.IsKnownVenue(v) {
			log.Warn().Str("venue", v).Msg("unknown venue ignored")
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return append([]string(nil), model.KnownVenues...)
	}
	return out
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Venue 按名字取交易所配置
func (c *Config) Venue(name string) VenueConfig {
	v := &c.Venues
	switch name {
	case model.VenueLighter:
		return v.Lighter
	case model.VenueBinance:
		return v.Binance
	case model.VenueEdgeX:
		return v.EdgeX
	case model.VenueGRVT:
		return v.GRVT
	case model.VenueAster:
		return v.Aster
	case model.VenueBackpack:
		return v.Backpack
	case model.VenueHyperliquid:
		return v.Hyperliquid
	case model.VenueVariational:
		return v.Variational
	case model.VenueParadex:
		return v.Paradex
	case model.VenueEthereal:
		return v.Ethereal
	case model.VenueDYDX:
		return v.DYDX
	case model.VenueNado:
		return v.Nado
	}
	return VenueConfig{}
}

// FundingInterval 费率刷新间隔，默认 300s
func (v VenueConfig) FundingInterval() time.Duration {
	if v.IntervalSec <= 0 {
		return 300 * time.Second
	}
	return time.Duration(v.IntervalSec) * time.Second
}

// QuoteInterval 盘口刷新间隔，默认 300s
func (v VenueConfig) QuoteInterval() time.Duration {
	if v.QuoteIntervalSec <= 0 {
		return 300 * time.Second
	}
	return time.Duration(v.QuoteIntervalSec) * time.Second
}

// Gap 连续请求间隔
func (v VenueConfig) Gap() time.Duration {
	return time.Duration(v.GapMs) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.App.RequestTimeoutSec) * time.Second
}

func (c *Config) RenderEvery() time.Duration {
	return time.Duration(c.Terminal.RenderEveryMs) * time.Millisecond
}

// Override 命令行参数覆盖配置，零值表示不覆盖
func (c *Config) Override(mode string, capital float64, limit int) error {
	if mode != "" {
		c.App.Mode = mode
	}
	if capital > 0 {
		c.App.CapitalUSD = capital
	}
	if limit > 0 {
		c.App.Limit = limit
	}
	return validate(c)
}

// RunsTerminal 是否运行终端看板
func (c *Config) RunsTerminal() bool {
	return c.App.Mode == ModeTerminal || c.App.Mode == ModeBoth
}

// RunsServer 是否运行 HTTP 服务
func (c *Config) RunsServer() bool {
	return c.App.Mode == ModeServer || c.App.Mode == ModeBoth
}
