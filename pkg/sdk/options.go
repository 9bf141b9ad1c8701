package devsearch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/db/rdb"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver string
	dsn    string

	addrs    []string
	password string

	keyPrefix    string
	maxHits      int
	maxBatchSize int

	healthTimeout time.Duration

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithPostgres stores records in PostgreSQL.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = rdb.DriverPostgres
		c.dsn = dsn
	})
}

// WithSQLite stores records in a SQLite database file (or "file::memory:").
func WithSQLite(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = rdb.DriverSQLite
		c.dsn = dsn
	})
}

// WithRedis configures the search engine: Redis 8+ with the query engine.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces every search key. Default: "devsearch:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithMaxHits caps the number of documents a search returns. Default: 1000.
func WithMaxHits(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxHits = n
	})
}

// WithMaxBatchSize sets the maximum number of items per CreateMany call.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithHealthTimeout bounds each store ping made by Health. Default: 2s.
func WithHealthTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.healthTimeout = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
