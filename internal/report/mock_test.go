package report

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/banjirlab/floodmap/internal/model"
	"github.com/banjirlab/floodmap/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) InsertMeasurement(ctx context.Context, mm *model.Measurement) error {
	return m.Called(ctx, mm).Error(0)
}

func (m *mockStore) ListUnprocessed(ctx context.Context) ([]model.Measurement, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}

func (m *mockStore) ListMeasurements(ctx context.Context, filter store.MeasurementFilter) ([]model.Measurement, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.Measurement), args.Int(1), args.Error(2)
}

func (m *mockStore) ListYears(ctx context.Context) ([]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *mockStore) BulkUpsertMeasurements(ctx context.Context, ms []model.Measurement) (int64, error) {
	args := m.Called(ctx, ms)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) WriteResult(ctx context.Context, r *model.ClassificationResult, replace bool) error {
	return m.Called(ctx, r, replace).Error(0)
}

func (m *mockStore) ReadResults(ctx context.Context, method model.Method, ids []int64) (map[int64]model.MethodScore, error) {
	args := m.Called(ctx, method, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]model.MethodScore), args.Error(1)
}

func (m *mockStore) SaveClassification(ctx context.Context, measurementID int64, scores map[model.Method]model.MethodScore) error {
	return m.Called(ctx, measurementID, scores).Error(0)
}

func (m *mockStore) EnsureRegion(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Region), args.Error(1)
}

func (m *mockStore) UpsertStation(ctx context.Context, s *model.Station) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockStore) ListStations(ctx context.Context) ([]model.Station, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Station), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
