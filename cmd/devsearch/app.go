package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/config"
	"github.com/kailas-cloud/devsearch/internal/db/rdb"
	dbRedis "github.com/kailas-cloud/devsearch/internal/db/redis"
	logpkg "github.com/kailas-cloud/devsearch/internal/logger"
	devicerepo "github.com/kailas-cloud/devsearch/internal/repository/device"
	indexrepo "github.com/kailas-cloud/devsearch/internal/repository/index"
	"github.com/kailas-cloud/devsearch/internal/version"
)

// app holds the wired stores shared by every command.
type app struct {
	env     string
	cfg     config.Config
	logger  *zap.Logger
	rdb     *rdb.Client
	search  *dbRedis.Store
	records *devicerepo.Repo
	index   *indexrepo.Repo
}

func loadConfig() (config.Config, string, error) {
	env := envFlag
	if env == "" {
		env = config.GetEnv()
	}
	var (
		cfg config.Config
		err error
	)
	if configFlag != "" {
		cfg, err = config.LoadFile(configFlag)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, env, nil
}

// newApp loads config, builds the logger, connects both stores, applies the
// relational schema and makes sure the search index exists.
func newApp(ctx context.Context) (*app, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("starting devsearch",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("search_addrs", cfg.Search.Addrs),
	)

	a := &app{env: env, cfg: cfg, logger: logger}
	if err := a.connect(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	var err error

	a.rdb, err = rdb.Open(rdb.Config{
		Driver:          a.cfg.Database.Driver,
		DSN:             a.cfg.Database.DSN,
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime(),
		QueryTimeout:    a.cfg.Database.QueryTimeout(),
	})
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	if err := a.rdb.WaitForReady(ctx, secs(a.cfg.Database.ReadinessTimeout)); err != nil {
		return fmt.Errorf("record store not ready: %w", err)
	}
	if err := a.rdb.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate record store: %w", err)
	}
	a.logger.Info("connected to record store")

	a.search, err = dbRedis.NewStore(dbRedis.Config{
		Addrs:          a.cfg.Search.Addrs,
		Username:       a.cfg.Search.Username,
		Password:       a.cfg.Search.Password,
		CommandTimeout: a.cfg.Search.CommandTimeout(),
	})
	if err != nil {
		return fmt.Errorf("create search store: %w", err)
	}
	if err := a.search.WaitForReady(ctx, secs(a.cfg.Search.ReadinessTimeout)); err != nil {
		return fmt.Errorf("search store not ready: %w", err)
	}

	a.records = devicerepo.New(a.rdb)
	a.index = indexrepo.New(a.search, a.cfg.Search.KeyPrefix, a.cfg.Search.MaxHits)
	if err := a.index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure search index: %w", err)
	}
	a.logger.Info("connected to search store", zap.String("index", a.index.IndexName()))
	return nil
}

func (a *app) close() {
	if a.search != nil {
		a.search.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("close record store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// secs converts a whole-second config value to a duration.
func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
