package devsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/db/rdb"
	dbRedis "github.com/kailas-cloud/devsearch/internal/db/redis"
	dombatch "github.com/kailas-cloud/devsearch/internal/domain/batch"
	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	devicerepo "github.com/kailas-cloud/devsearch/internal/repository/device"
	indexrepo "github.com/kailas-cloud/devsearch/internal/repository/index"
	deviceuc "github.com/kailas-cloud/devsearch/internal/usecase/device"
	healthuc "github.com/kailas-cloud/devsearch/internal/usecase/health"
	"github.com/kailas-cloud/devsearch/internal/usecase/reconcile"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "devsearch:"
)

// Internal interfaces, swapped for fakes in tests.
type deviceUseCase interface {
	IngestOne(ctx context.Context, in domdevice.Input) (domdevice.Document, error)
	IngestMany(ctx context.Context, inputs []domdevice.Input) []dombatch.Result
	SearchAll(ctx context.Context, keyword string) ([]domdevice.Document, error)
	Get(ctx context.Context, id int64) (domdevice.Document, error)
	Delete(ctx context.Context, id int64) error
}

type sweeper interface {
	Run(ctx context.Context) (reconcile.SweepReport, error)
}

// Client is the devsearch SDK entry point.
type Client struct {
	closers   []func()
	deviceSvc deviceUseCase
	healthSvc healthUseCase
	sweeper   sweeper
	obs       *observer
}

// New connects to both stores, applies the record schema and makes sure
// the search index exists. ctx bounds the readiness checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("devsearch: record store required (use WithPostgres or WithSQLite)")
	}
	if len(cfg.addrs) == 0 {
		return nil, errors.New("devsearch: search engine address required (use WithRedis)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{obs: obs}
	if err := c.connect(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context, cfg *clientConfig) error {
	records, err := rdb.Open(rdb.Config{Driver: cfg.driver, DSN: cfg.dsn})
	if err != nil {
		return fmt.Errorf("devsearch: open record store: %w", err)
	}
	c.closers = append(c.closers, func() { _ = records.Close() })

	if err := records.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		return fmt.Errorf("devsearch: record store not ready: %w", err)
	}
	if err := records.Migrate(ctx); err != nil {
		return fmt.Errorf("devsearch: migrate record store: %w", err)
	}

	search, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
	if err != nil {
		return fmt.Errorf("devsearch: create search store: %w", err)
	}
	c.closers = append(c.closers, search.Close)

	if err := search.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		return fmt.Errorf("devsearch: search store not ready: %w", err)
	}

	recordRepo := devicerepo.New(records)
	indexRepo := indexrepo.New(search, cfg.keyPrefix, cfg.maxHits)
	if err := indexRepo.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("devsearch: ensure index: %w", err)
	}

	log := cfg.logger
	if log == nil {
		log = zap.NewNop()
	}

	svc := deviceuc.New(recordRepo, indexRepo)
	if cfg.maxBatchSize > 0 {
		svc = svc.WithMaxBatchSize(cfg.maxBatchSize)
	}
	c.deviceSvc = svc
	c.healthSvc = healthuc.New(records, indexRepo).WithTimeout(cfg.healthTimeout)
	c.sweeper = reconcile.NewSweeper(recordRepo, indexRepo, reconcile.SweepConfig{}, log)
	return nil
}

// Close releases all resources.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Create stores a device and indexes it. The returned device carries the
// assigned id, also when the error is a *PartialWriteError.
func (c *Client) Create(ctx context.Context, d Device) (_ Device, err error) {
	start := time.Now()
	defer func() { c.obs.observe("create", start, err) }()

	doc, err := c.deviceSvc.IngestOne(ctx, domdevice.Input{Title: d.Title, Content: d.Content})
	if err != nil {
		return deviceFromDoc(doc), fmt.Errorf("create device: %w", err)
	}
	return deviceFromDoc(doc), nil
}

// CreateMany stores every device independently and reports one result per
// item in input order.
func (c *Client) CreateMany(ctx context.Context, devices []Device) []BatchResult {
	start := time.Now()

	inputs := make([]domdevice.Input, len(devices))
	for i, d := range devices {
		inputs[i] = domdevice.Input{Title: d.Title, Content: d.Content}
	}

	results := c.deviceSvc.IngestMany(ctx, inputs)

	var firstErr error
	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = BatchResult{
			Device: deviceFromDoc(r.Document()),
			OK:     r.Status() == dombatch.StatusOK,
			Err:    r.Err(),
		}
		if firstErr == nil && r.Err() != nil {
			firstErr = r.Err()
		}
	}
	c.obs.observe("create_many", start, firstErr)
	return out
}

// Get returns a device from the record store.
func (c *Client) Get(ctx context.Context, id int64) (_ Device, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get", start, err) }()

	doc, err := c.deviceSvc.Get(ctx, id)
	if err != nil {
		return Device{}, fmt.Errorf("get device: %w", err)
	}
	return deviceFromDoc(doc), nil
}

// Delete removes a device from the record store and the index.
func (c *Client) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()

	if err = c.deviceSvc.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

// Search returns every device matching keyword in title (boosted) or
// content, with typo tolerance, most relevant first.
func (c *Client) Search(ctx context.Context, keyword string) (_ []Device, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	docs, err := c.deviceSvc.SearchAll(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return devicesFromDocs(docs), nil
}

// Reindex rebuilds the search index from the record store.
func (c *Client) Reindex(ctx context.Context) (_ ReindexReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reindex", start, err) }()

	rep, err := c.sweeper.Run(ctx)
	if err != nil {
		return ReindexReport{}, fmt.Errorf("reindex: %w", err)
	}
	return ReindexReport{
		Indexed:   rep.Indexed,
		Unchanged: rep.Unchanged,
		Removed:   rep.Removed,
		Failed:    rep.Failed,
	}, nil
}
