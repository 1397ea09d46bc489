package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"fundingarb/internal/application/port"
	"fundingarb/internal/infrastructure/config"
	"fundingarb/internal/infrastructure/storage/composite"
	kafkarepo "fundingarb/internal/infrastructure/storage/kafka"
	pgrepo "fundingarb/internal/infrastructure/storage/postgres"
	redisrepo "fundingarb/internal/infrastructure/storage/redis"
	sqliterepo "fundingarb/internal/infrastructure/storage/sqlite"
)

// Container 持有最新状态镜像的存储连接
type Container struct {
	cfg *config.Config

	redisClient *redis.Client
	sqliteRepo  *sqliterepo.Repo
	repos       []port.Repository

	closeOnce   sync.Once
	closerChain []func() error
}

// New 按配置初始化存储层，任何一个失败都会关闭已初始化的资源
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}
	if err := c.initStorage(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// initStorage 初始化存储层（SQLite、Postgres、Redis、Kafka）
func (c *Container) initStorage(ctx context.Context) error {
	if c.cfg.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}
	if c.cfg.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}
	if c.cfg.Redis.Enabled {
		if err := c.initRedis(ctx); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}
	if c.cfg.Kafka.Enabled {
		c.initKafka()
	}
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.SQLite.Path)
	if err != nil {
		return err
	}
	c.sqliteRepo = repo
	c.register(repo, "sqlite")

	log.Info().
		Str("path", c.cfg.SQLite.Path).
		Msg("✓ SQLite initialized")
	return nil
}

func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	c.register(repo, "postgres")

	log.Info().Msg("✓ Postgres initialized")
	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis(parent context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.cfg.Redis.Addr,
		Password: c.cfg.Redis.Password,
		DB:       c.cfg.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.redisClient = rdb
	ttl := time.Duration(c.cfg.Redis.TTLSeconds) * time.Second
	c.register(redisrepo.New(rdb, c.cfg.Redis.Prefix, ttl, c.cfg.Redis.Channel), "redis")

	log.Info().
		Str("addr", c.cfg.Redis.Addr).
		Int("db", c.cfg.Redis.DB).
		Msg("✓ Redis initialized")
	return nil
}

// initKafka writer 懒连接，这里不会失败
func (c *Container) initKafka() {
	c.register(kafkarepo.New(c.cfg.Kafka.Brokers, c.cfg.Kafka.Topic), "kafka")

	log.Info().
		Strs("brokers", c.cfg.Kafka.Brokers).
		Str("topic", c.cfg.Kafka.Topic).
		Msg("✓ Kafka initialized")
}

// register 加入 fan-out 列表并注册关闭回调
func (c *Container) register(repo port.Repository, name string) {
	c.repos = append(c.repos, repo)
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Str("store", name).Msg("closing store")
		return repo.Close()
	})
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// RedisClient 获取 Redis 客户端，未启用时为 nil
func (c *Container) RedisClient() *redis.Client {
	return c.redisClient
}

// Repository 所有已启用存储的 fan-out，没有启用任何存储时为空操作
func (c *Container) Repository() *composite.Repo {
	return composite.New(c.repos...)
}

// LatestLoader 冷启动的后备来源，只有 SQLite 支持
func (c *Container) LatestLoader() port.LatestLoader {
	if c.sqliteRepo == nil {
		return nil
	}
	return c.sqliteRepo
}

// Stores 已启用存储的数量
func (c *Container) Stores() int {
	return len(c.repos)
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
