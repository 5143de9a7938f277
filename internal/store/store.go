// Package store provides persistence for measurements, per-method
// classification results, regions, and fire stations, with Postgres and
// SQLite backends.
package store

import (
	"context"

	"github.com/banjirlab/floodmap/internal/model"
)

// MeasurementFilter narrows measurement listing queries. Limit <= 0 means
// no limit.
type MeasurementFilter struct {
	Year   *int
	Limit  int
	Offset int
}

// Store defines the persistence interface for the classification pipeline.
type Store interface {
	// Measurements
	InsertMeasurement(ctx context.Context, m *model.Measurement) error
	ListUnprocessed(ctx context.Context) ([]model.Measurement, error)
	// ListMeasurements returns measurement rows (with region names joined)
	// ordered by year descending then region name, plus the total count
	// matching the filter before pagination.
	ListMeasurements(ctx context.Context, filter MeasurementFilter) ([]model.Measurement, int, error)
	ListYears(ctx context.Context) ([]int, error)
	BulkUpsertMeasurements(ctx context.Context, ms []model.Measurement) (int64, error)

	// Classification results. WriteResult fails with ErrConflict when a row
	// already exists for the (measurement, method) pair unless replace is
	// set. SaveClassification atomically upserts all method scores for one
	// measurement and flips its processed flag; on error nothing is
	// persisted and the measurement stays eligible for retry.
	WriteResult(ctx context.Context, r *model.ClassificationResult, replace bool) error
	ReadResults(ctx context.Context, method model.Method, ids []int64) (map[int64]model.MethodScore, error)
	SaveClassification(ctx context.Context, measurementID int64, scores map[model.Method]model.MethodScore) error

	// Reference data
	EnsureRegion(ctx context.Context, name string) (int64, error)
	ListRegions(ctx context.Context) ([]model.Region, error)
	UpsertStation(ctx context.Context, s *model.Station) error
	ListStations(ctx context.Context) ([]model.Station, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
