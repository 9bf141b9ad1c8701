package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names reported by Check.
const (
	ComponentDatabase = "database"
	ComponentSearch   = "search"
)

const defaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service pings the record store and the search engine.
type Service struct {
	database Pinger
	search   Pinger
	timeout  time.Duration
}

// New creates a Service.
func New(database, search Pinger) *Service {
	return &Service{database: database, search: search, timeout: defaultCheckTimeout}
}

// WithTimeout bounds each component ping.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check pings both stores. Any failing component degrades the report.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		ComponentDatabase: s.ping(ctx, ComponentDatabase, s.database),
		ComponentSearch:   s.ping(ctx, ComponentSearch, s.search),
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks}
}

func (s *Service) ping(ctx context.Context, name string, p Pinger) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		logger.FromContext(ctx).Warn("health check failed", zap.String("component", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
