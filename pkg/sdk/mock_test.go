package devsearch

import (
	"context"

	dombatch "github.com/kailas-cloud/devsearch/internal/domain/batch"
	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	healthuc "github.com/kailas-cloud/devsearch/internal/usecase/health"
	"github.com/kailas-cloud/devsearch/internal/usecase/reconcile"
)

// --- deviceUseCase mock ---

type mockDeviceUC struct {
	ingestOneFn  func(ctx context.Context, in domdevice.Input) (domdevice.Document, error)
	ingestManyFn func(ctx context.Context, inputs []domdevice.Input) []dombatch.Result
	searchFn     func(ctx context.Context, keyword string) ([]domdevice.Document, error)
	getFn        func(ctx context.Context, id int64) (domdevice.Document, error)
	deleteFn     func(ctx context.Context, id int64) error
}

func (m *mockDeviceUC) IngestOne(ctx context.Context, in domdevice.Input) (domdevice.Document, error) {
	return m.ingestOneFn(ctx, in)
}

func (m *mockDeviceUC) IngestMany(ctx context.Context, inputs []domdevice.Input) []dombatch.Result {
	return m.ingestManyFn(ctx, inputs)
}

func (m *mockDeviceUC) SearchAll(ctx context.Context, keyword string) ([]domdevice.Document, error) {
	return m.searchFn(ctx, keyword)
}

func (m *mockDeviceUC) Get(ctx context.Context, id int64) (domdevice.Document, error) {
	return m.getFn(ctx, id)
}

func (m *mockDeviceUC) Delete(ctx context.Context, id int64) error {
	return m.deleteFn(ctx, id)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- sweeper mock ---

type mockSweeper struct {
	report reconcile.SweepReport
	err    error
}

func (m *mockSweeper) Run(context.Context) (reconcile.SweepReport, error) { return m.report, m.err }
